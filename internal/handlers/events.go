package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Subscribe streams hub events over Server-Sent Events. Each hub event
// becomes one event/data pair named after its kind. Connections are dropped
// when the subscriber falls behind; clients resync via the pull endpoints.
// GET /api/events
func (h *Handler) Subscribe(c *gin.Context) {
	sub := h.hub.Subscribe()
	defer sub.Close()

	log.Debug().Msg("SSE subscriber connected")

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub for falling behind.
				return false
			}
			c.SSEvent(string(ev.Kind), gin.H{
				"kind":      ev.Kind,
				"payload":   ev.Payload,
				"timestamp": ev.Timestamp,
			})
			return true
		}
	})

	log.Debug().Msg("SSE subscriber disconnected")
}
