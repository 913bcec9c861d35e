package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/patrolworks/inspection-service/internal/cartstate"
	"github.com/patrolworks/inspection-service/internal/types"
)

// UpdateCartStatusRequest is the body for POST /api/cart/status. Absent
// fields keep their previous value.
type UpdateCartStatusRequest struct {
	Online         *bool          `json:"online"`
	CurrentStation *int           `json:"current_station"`
	Mode           types.CartMode `json:"mode"`
	BatteryLevel   *int           `json:"battery_level"`
	LastActivity   string         `json:"last_activity"`
}

// GetCartStatus returns the current snapshot.
// GET /api/cart/status
func (h *Handler) GetCartStatus(c *gin.Context) {
	status, err := h.cart.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}

// UpdateCartStatus merges a telemetry report into the snapshot.
// POST /api/cart/status
func (h *Handler) UpdateCartStatus(c *gin.Context) {
	var req UpdateCartStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorCode(c, 400, "MISSING_FIELD", err.Error())
		return
	}

	status, err := h.cart.Apply(c.Request.Context(), cartstate.Update{
		Online:         req.Online,
		CurrentStation: req.CurrentStation,
		Mode:           req.Mode,
		BatteryLevel:   req.BatteryLevel,
		LastActivity:   req.LastActivity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, status)
}
