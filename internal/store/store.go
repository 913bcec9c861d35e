// Package store defines the persistence contracts for the task queue, the
// record history, alerts, and the cart status snapshot, plus the error
// taxonomy every implementation maps its failures into. Implementations
// live in internal/database (Postgres) and internal/memstore (in-memory).
package store

import (
	"context"
	"time"

	"github.com/patrolworks/inspection-service/internal/types"
)

// TaskQueue is the durable queue of inspection tasks. It is the sole source
// of truth for pending/assigned/completed/failed state.
type TaskQueue interface {
	// Enqueue inserts a new pending task. The task id must be unique among
	// entries currently in the queue.
	Enqueue(ctx context.Context, task *types.Task) error

	// PendingTasks returns pending tasks in creation order, oldest first.
	PendingTasks(ctx context.Context, limit int) ([]types.Task, error)

	// Task returns a single queue entry by id, or ErrNotFound.
	Task(ctx context.Context, taskID string) (*types.Task, error)

	// Assign transitions a task from pending to assigned. The transition is
	// an atomic compare-and-set: of N concurrent calls for the same id,
	// exactly one succeeds; the rest observe ErrConflict. Unknown ids yield
	// ErrNotFound.
	Assign(ctx context.Context, taskID string, at time.Time) error

	// Finish transitions a non-terminal task to completed, or failed when
	// failed is true. Terminal entries yield ErrConflict, unknown ids
	// ErrNotFound.
	Finish(ctx context.Context, taskID string, failed bool, at time.Time) error

	// Delete removes a queue entry in any state, or ErrNotFound.
	Delete(ctx context.Context, taskID string) error

	// ClearCompleted deletes terminal entries whose completion is older than
	// the cutoff. Pending and assigned entries are never touched. Returns
	// the number of entries removed.
	ClearCompleted(ctx context.Context, olderThan time.Time) (int, error)

	// FailStaleAssigned marks assigned entries whose assignment is older
	// than the cutoff as failed. Entries never move back to pending.
	FailStaleAssigned(ctx context.Context, olderThan time.Time) (int, error)
}

// RecordFilter narrows a history query. Zero values mean "no filter".
type RecordFilter struct {
	TaskType  types.TaskType
	StationID int
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// RecordStore is the append-only history of ingested results.
type RecordStore interface {
	// AppendRecord writes a record and, when alert is non-nil, its alert as
	// one atomic unit: either both ids are assigned or nothing is written.
	AppendRecord(ctx context.Context, rec *types.TaskRecord, alert *types.Alert) (recordID int64, alertID int64, err error)

	// Records returns history entries matching the filter, newest first.
	Records(ctx context.Context, filter RecordFilter) ([]types.TaskRecord, error)

	// LatestByStation returns the newest record for a station, optionally
	// narrowed to one task type (0 means any), or ErrNotFound.
	LatestByStation(ctx context.Context, stationID int, taskType types.TaskType) (*types.TaskRecord, error)

	// Statistics aggregates records since the given time, optionally
	// narrowed to one task type (0 means all).
	Statistics(ctx context.Context, since time.Time, taskType types.TaskType) (*types.Statistics, error)

	// PruneRecords deletes records older than the cutoff and returns the
	// number removed.
	PruneRecords(ctx context.Context, olderThan time.Time) (int, error)
}

// AlertStore reads and resolves raised alerts.
type AlertStore interface {
	// UnhandledAlerts returns unhandled alerts, newest first.
	UnhandledAlerts(ctx context.Context, limit int) ([]types.Alert, error)

	// MarkHandled resolves an alert, or ErrNotFound.
	MarkHandled(ctx context.Context, alertID int64) error
}

// CartStatusStore holds the singleton cart snapshot.
type CartStatusStore interface {
	// SetCartStatus replaces the snapshot in place.
	SetCartStatus(ctx context.Context, status *types.CartStatus) error

	// CartStatus returns the current snapshot, or ErrNotFound when no
	// telemetry has ever been received.
	CartStatus(ctx context.Context) (*types.CartStatus, error)
}
