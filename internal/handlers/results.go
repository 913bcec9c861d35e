package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/patrolworks/inspection-service/internal/ingest"
	"github.com/patrolworks/inspection-service/internal/types"
)

// IngestResultRequest is the body for POST /api/results, reported by the
// processing service once a task finishes.
type IngestResultRequest struct {
	TaskID         string          `json:"task_id"`
	TaskType       types.TaskType  `json:"task_type" binding:"required"`
	StationID      int             `json:"station_id" binding:"required"`
	Result         json.RawMessage `json:"result"`
	ImageRef       string          `json:"image_ref,omitempty"`
	ProcessingTime *float64        `json:"processing_time,omitempty"`
}

// IngestResult records a completed-task report.
// POST /api/results
func (h *Handler) IngestResult(c *gin.Context) {
	var req IngestResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorCode(c, 400, "MISSING_FIELD", err.Error())
		return
	}

	recordID, err := h.ingestor.Ingest(c.Request.Context(), ingest.Input{
		TaskID:         req.TaskID,
		TaskType:       req.TaskType,
		StationID:      req.StationID,
		Payload:        req.Result,
		ImageRef:       req.ImageRef,
		ProcessingTime: req.ProcessingTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondCreated(c, gin.H{"record_id": recordID})
}
