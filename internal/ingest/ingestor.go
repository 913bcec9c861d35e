// Package ingest receives completed-task reports from the processing
// service and turns them into history, alerts, a queue transition, and
// push events. The record and alert writes are one atomic unit; the queue
// transition and the broadcast are best-effort, since a missed transition
// is recoverable through the pull APIs.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/patrolworks/inspection-service/internal/alerts"
	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// Input is one completed-task report.
type Input struct {
	TaskID         string
	TaskType       types.TaskType
	StationID      int
	Payload        json.RawMessage
	ImageRef       string
	ProcessingTime *float64
}

// Ingestor persists results and fans out the resulting events.
type Ingestor struct {
	records store.RecordStore
	queue   store.TaskQueue
	hub     *broadcast.Hub
	logger  zerolog.Logger
}

// New creates an ingestor.
func New(records store.RecordStore, queue store.TaskQueue, hub *broadcast.Hub, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		records: records,
		queue:   queue,
		hub:     hub,
		logger:  logger.With().Str("component", "ingest").Logger(),
	}
}

// Ingest processes one report and returns the new record id.
//
// Steps: classify severity, append the record (and alert, atomically),
// transition the queue entry, publish task_result / alert /
// task_queue_update in that order. A missing or already-terminal queue
// entry is a no-op, not an error; a record write failure fails the whole
// call with no partial state.
func (i *Ingestor) Ingest(ctx context.Context, in Input) (int64, error) {
	if !in.TaskType.Valid() {
		return 0, store.NewValidationError("task_type", fmt.Sprintf("unknown task type %d", in.TaskType))
	}
	if in.StationID <= 0 {
		return 0, store.NewValidationError("station_id", "must be a positive integer")
	}

	res, err := types.ParseResult(in.TaskType, in.Payload)
	if err != nil {
		return 0, store.NewValidationError("result", err.Error())
	}

	severity, draft := alerts.Evaluate(in.TaskType, in.StationID, res)
	now := time.Now().UTC()

	rec := &types.TaskRecord{
		TaskID:         in.TaskID,
		TaskType:       in.TaskType,
		StationID:      in.StationID,
		ImageRef:       in.ImageRef,
		Result:         res,
		Status:         severity,
		Confidence:     res.Confidence,
		ProcessingTime: in.ProcessingTime,
		Timestamp:      now,
	}

	var alert *types.Alert
	if draft != nil {
		alert = &types.Alert{
			Level:     draft.Level,
			AlertType: draft.AlertType,
			Message:   draft.Message,
			Timestamp: now,
		}
	}

	recordID, _, err := i.records.AppendRecord(ctx, rec, alert)
	if err != nil {
		return 0, store.Persistence("append task record", err)
	}

	i.logger.Info().
		Str("task_id", in.TaskID).
		Stringer("task_type", in.TaskType).
		Int("station_id", in.StationID).
		Str("severity", string(severity)).
		Int64("record_id", recordID).
		Msg("Result ingested")

	i.transitionQueue(ctx, in.TaskID, res.Failed(), now)
	i.publish(in, res, recordID, alert, now)

	return recordID, nil
}

// transitionQueue completes or fails the matching queue entry. The entry
// may legitimately be gone (already cleared) or already terminal; both are
// no-ops.
func (i *Ingestor) transitionQueue(ctx context.Context, taskID string, failed bool, at time.Time) {
	if taskID == "" {
		return
	}
	err := i.queue.Finish(ctx, taskID, failed, at)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict):
		i.logger.Debug().Str("task_id", taskID).Err(err).Msg("Queue transition skipped")
	default:
		i.logger.Warn().Str("task_id", taskID).Err(err).Msg("Queue transition failed")
	}
}

func (i *Ingestor) publish(in Input, res *types.TaskResult, recordID int64, alert *types.Alert, at time.Time) {
	i.hub.Publish(broadcast.KindTaskResult, types.TaskResultEvent{
		TaskID:         in.TaskID,
		TaskType:       in.TaskType,
		StationID:      in.StationID,
		Result:         res,
		ImageRef:       in.ImageRef,
		ProcessingTime: in.ProcessingTime,
		Timestamp:      at,
	})

	if alert != nil {
		i.hub.Publish(broadcast.KindAlert, types.AlertEvent{
			Level:     alert.Level,
			AlertType: alert.AlertType,
			Message:   alert.Message,
			RecordID:  &recordID,
			Timestamp: at,
		})
	}

	if in.TaskID != "" {
		i.hub.Publish(broadcast.KindQueueUpdate, types.QueueUpdateEvent{
			Reason: types.QueueReasonRemoved,
			TaskID: in.TaskID,
		})
	}
}
