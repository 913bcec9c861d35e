package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

const defaultHistoryLimit = 100

// historyFilter parses the shared history query parameters.
func historyFilter(c *gin.Context) (store.RecordFilter, error) {
	var filter store.RecordFilter

	if raw := c.Query("task_type"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !types.TaskType(n).Valid() {
			return filter, store.NewValidationError("task_type", "must be a known task type")
		}
		filter.TaskType = types.TaskType(n)
	}
	if raw := c.Query("station_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, store.NewValidationError("station_id", "must be a positive integer")
		}
		filter.StationID = n
	}
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, store.NewValidationError("since", "must be an RFC 3339 timestamp")
		}
		filter.Since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, store.NewValidationError("until", "must be an RFC 3339 timestamp")
		}
		filter.Until = t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, store.NewValidationError("limit", "must be a non-negative integer")
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, store.NewValidationError("offset", "must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

// GetHistory returns task records, newest first.
// GET /api/history?task_type=&station_id=&since=&until=&limit=&offset=
func (h *Handler) GetHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if filter.Limit == 0 {
		filter.Limit = defaultHistoryLimit
	}

	records, err := h.records.Records(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []types.TaskRecord{}
	}

	respondOK(c, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// ExportHistory streams the filtered history as an XLSX workbook.
// GET /api/history/export
func (h *Handler) ExportHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := h.records.Records(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "History"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Task ID", "Task Type", "Station", "Severity", "Confidence", "Processing Time (s)", "Image", "Recorded At"}
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, head)
	}

	for row, rec := range records {
		values := []any{
			rec.ID,
			rec.TaskID,
			rec.TaskType.String(),
			rec.StationID,
			string(rec.Status),
			deref(rec.Confidence),
			deref(rec.ProcessingTime),
			rec.ImageRef,
			rec.Timestamp.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("inspection-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "EXPORT_FAILED", err.Error())
	}
}

// LatestByStation returns the newest record for a station.
// GET /api/stations/:id/latest?task_type=
func (h *Handler) LatestByStation(c *gin.Context) {
	stationID, err := strconv.Atoi(c.Param("id"))
	if err != nil || stationID <= 0 {
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "station id must be a positive integer")
		return
	}

	var taskType types.TaskType
	if raw := c.Query("task_type"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || !types.TaskType(n).Valid() {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "task_type must be a known task type")
			return
		}
		taskType = types.TaskType(n)
	}

	rec, err := h.records.LatestByStation(c.Request.Context(), stationID, taskType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rec)
}

// GetStatistics aggregates records over a trailing window.
// GET /api/statistics?since=&task_type=
func (h *Handler) GetStatistics(c *gin.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	var taskType types.TaskType
	if raw := c.Query("task_type"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !types.TaskType(n).Valid() {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "task_type must be a known task type")
			return
		}
		taskType = types.TaskType(n)
	}

	stats, err := h.records.Statistics(c.Request.Context(), since, taskType)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

func deref(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
