// Package dispatch owns the task queue operations: enqueue, pending
// listing, assignment, deletion, and completed-entry cleanup. Every
// mutation of the live queue is announced on the broadcast hub.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// DefaultPendingLimit bounds a pending-task listing when the caller does
// not give one.
const DefaultPendingLimit = 50

// Dispatcher coordinates queue mutations against the task queue store.
type Dispatcher struct {
	queue  store.TaskQueue
	hub    *broadcast.Hub
	logger zerolog.Logger
}

// New creates a dispatcher over the given queue store and hub.
func New(queue store.TaskQueue, hub *broadcast.Hub, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		hub:    hub,
		logger: logger.With().Str("component", "dispatch").Logger(),
	}
}

// Enqueue creates a fresh pending task and returns its generated id.
func (d *Dispatcher) Enqueue(ctx context.Context, stationID int, taskType types.TaskType, params map[string]any) (string, error) {
	if !taskType.Valid() {
		return "", store.NewValidationError("task_type", fmt.Sprintf("must be between %d and %d", types.TaskTypeGauge, types.TaskTypeDescription))
	}
	if stationID <= 0 {
		return "", store.NewValidationError("station_id", "must be a positive integer")
	}

	task := &types.Task{
		TaskID:    uuid.NewString(),
		StationID: stationID,
		TaskType:  taskType,
		Status:    types.TaskPending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.queue.Enqueue(ctx, task); err != nil {
		return "", store.Persistence("enqueue task", err)
	}

	d.logger.Info().
		Str("task_id", task.TaskID).
		Int("station_id", stationID).
		Stringer("task_type", taskType).
		Msg("Task enqueued")

	d.hub.Publish(broadcast.KindQueueUpdate, types.QueueUpdateEvent{
		Reason: types.QueueReasonAdded,
		TaskID: task.TaskID,
	})
	return task.TaskID, nil
}

// PendingTasks lists pending tasks in creation order, oldest first.
func (d *Dispatcher) PendingTasks(ctx context.Context, limit int) ([]types.Task, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	tasks, err := d.queue.PendingTasks(ctx, limit)
	if err != nil {
		return nil, store.Persistence("list pending tasks", err)
	}
	return tasks, nil
}

// Assign atomically claims a pending task. Exactly one of any number of
// concurrent calls for the same id succeeds; the rest see ErrConflict.
func (d *Dispatcher) Assign(ctx context.Context, taskID string) error {
	if err := d.queue.Assign(ctx, taskID, time.Now().UTC()); err != nil {
		return store.Persistence("assign task", err)
	}

	d.logger.Info().Str("task_id", taskID).Msg("Task assigned")
	d.hub.Publish(broadcast.KindQueueUpdate, types.QueueUpdateEvent{
		Reason: types.QueueReasonAssigned,
		TaskID: taskID,
	})
	return nil
}

// Delete removes a queue entry in any state. History records are untouched.
func (d *Dispatcher) Delete(ctx context.Context, taskID string) error {
	if err := d.queue.Delete(ctx, taskID); err != nil {
		return store.Persistence("delete task", err)
	}

	d.logger.Info().Str("task_id", taskID).Msg("Task deleted")
	d.hub.Publish(broadcast.KindQueueUpdate, types.QueueUpdateEvent{
		Reason: types.QueueReasonRemoved,
		TaskID: taskID,
	})
	return nil
}

// ClearCompleted removes terminal entries older than the given age and
// returns how many were removed. Live entries are never touched.
func (d *Dispatcher) ClearCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	removed, err := d.queue.ClearCompleted(ctx, cutoff)
	if err != nil {
		return 0, store.Persistence("clear completed tasks", err)
	}
	if removed > 0 {
		d.logger.Info().Int("removed", removed).Msg("Cleared completed tasks")
	}
	return removed, nil
}
