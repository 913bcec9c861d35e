package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/patrolworks/inspection-service/internal/types"
)

// ArmRequest optionally names the task types to lock. When empty the locked
// set is seeded from the task types currently pending, the same way the
// original lock toggle behaved.
type ArmRequest struct {
	TaskTypes []types.TaskType `json:"task_types"`
}

// ArmLock enables the auto-requeue session.
// POST /api/lock/arm
func (h *Handler) ArmLock(c *gin.Context) {
	var req ArmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body: "+err.Error())
			return
		}
	}

	lockedTypes := req.TaskTypes
	if len(lockedTypes) == 0 {
		pending, err := h.dispatcher.PendingTasks(c.Request.Context(), 0)
		if err != nil {
			respondError(c, err)
			return
		}
		seen := map[types.TaskType]struct{}{}
		for _, task := range pending {
			if _, ok := seen[task.TaskType]; !ok {
				seen[task.TaskType] = struct{}{}
				lockedTypes = append(lockedTypes, task.TaskType)
			}
		}
	}

	respondOK(c, h.lock.Arm(lockedTypes))
}

// DisarmLock disables the session and cancels pending requeues.
// POST /api/lock/disarm
func (h *Handler) DisarmLock(c *gin.Context) {
	respondOK(c, h.lock.Disarm())
}

// GetLock returns the session snapshot.
// GET /api/lock
func (h *Handler) GetLock(c *gin.Context) {
	respondOK(c, h.lock.Status())
}
