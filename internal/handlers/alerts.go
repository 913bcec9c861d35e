package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/patrolworks/inspection-service/internal/types"
)

const defaultAlertLimit = 50

// ListAlerts returns unhandled alerts, newest first.
// GET /api/alerts?limit=
func (h *Handler) ListAlerts(c *gin.Context) {
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := h.alerts.UnhandledAlerts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	respondOK(c, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// MarkAlertHandled resolves an alert.
// POST /api/alerts/:id/handled
func (h *Handler) MarkAlertHandled(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "alert id must be an integer")
		return
	}

	if err := h.alerts.MarkHandled(c.Request.Context(), alertID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"alert_id": alertID, "handled": true})
}
