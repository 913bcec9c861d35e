package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/patrolworks/inspection-service/internal/types"
)

// AddTaskRequest is the body for POST /api/tasks.
type AddTaskRequest struct {
	StationID int            `json:"station_id" binding:"required"`
	TaskType  types.TaskType `json:"task_type" binding:"required"`
	Params    map[string]any `json:"params,omitempty"`
}

// ListTasks returns the pending queue, oldest first.
// GET /api/tasks?limit=
func (h *Handler) ListTasks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		respondErrorCode(c, 400, "VALIDATION_ERROR", "limit must be a non-negative integer")
		return
	}

	tasks, err := h.dispatcher.PendingTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}

	respondOK(c, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// AddTask enqueues a new inspection task.
// POST /api/tasks
func (h *Handler) AddTask(c *gin.Context) {
	var req AddTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorCode(c, 400, "MISSING_FIELD", err.Error())
		return
	}

	taskID, err := h.dispatcher.Enqueue(c.Request.Context(), req.StationID, req.TaskType, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Info().
		Str("task_id", taskID).
		Int("station_id", req.StationID).
		Msg("Task added")

	respondCreated(c, gin.H{"task_id": taskID})
}

// AssignTask claims a pending task for processing.
// POST /api/tasks/:id/assign
func (h *Handler) AssignTask(c *gin.Context) {
	taskID := c.Param("id")
	if err := h.dispatcher.Assign(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"task_id": taskID, "status": types.TaskAssigned})
}

// DeleteTask removes a queue entry in any state.
// DELETE /api/tasks/:id
func (h *Handler) DeleteTask(c *gin.Context) {
	taskID := c.Param("id")
	if err := h.dispatcher.Delete(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"task_id": taskID})
}

// ClearTasks removes finished queue entries older than the given age.
// POST /api/tasks/clear?older_than=1h
func (h *Handler) ClearTasks(c *gin.Context) {
	olderThan := time.Duration(0)
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			respondErrorCode(c, 400, "VALIDATION_ERROR", "older_than must be a non-negative duration")
			return
		}
		olderThan = d
	}

	cleared, err := h.dispatcher.ClearCompleted(c.Request.Context(), olderThan)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"cleared": cleared})
}
