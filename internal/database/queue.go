package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

const taskColumns = `task_id, station_id, task_type, status, params, created_at, assigned_at, completed_at`

func scanTask(row pgx.Row) (*types.Task, error) {
	var t types.Task
	err := row.Scan(
		&t.TaskID, &t.StationID, &t.TaskType, &t.Status,
		&t.Params, &t.CreatedAt, &t.AssignedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Enqueue inserts a new pending queue entry. A duplicate task id maps to
// ErrConflict.
func (s *Store) Enqueue(ctx context.Context, task *types.Task) error {
	query := `
		INSERT INTO task_queue (task_id, station_id, task_type, status, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := Pool().Exec(ctx, query,
		task.TaskID, task.StationID, task.TaskType, task.Status, task.Params, task.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrConflict
		}
		return fmt.Errorf("error inserting task: %w", err)
	}
	return nil
}

// PendingTasks returns pending entries oldest first.
func (s *Store) PendingTasks(ctx context.Context, limit int) ([]types.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM task_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC, task_id ASC
		LIMIT $1
	`, taskColumns)

	rows, err := Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Task returns a single queue entry by id.
func (s *Store) Task(ctx context.Context, taskID string) (*types.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM task_queue WHERE task_id = $1`, taskColumns)
	t, err := scanTask(Pool().QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error querying task: %w", err)
	}
	return t, nil
}

// Assign moves a pending entry to assigned. The WHERE clause is the
// compare-and-set: concurrent assigns race on the status predicate and only
// one UPDATE matches.
func (s *Store) Assign(ctx context.Context, taskID string, at time.Time) error {
	query := `
		UPDATE task_queue
		SET status = 'assigned', assigned_at = $2
		WHERE task_id = $1 AND status = 'pending'
	`
	tag, err := Pool().Exec(ctx, query, taskID, at)
	if err != nil {
		return fmt.Errorf("error assigning task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, taskID)
	}
	return nil
}

// Finish moves a non-terminal entry to completed, or failed when failed is
// true.
func (s *Store) Finish(ctx context.Context, taskID string, failed bool, at time.Time) error {
	status := types.TaskCompleted
	if failed {
		status = types.TaskFailed
	}
	query := `
		UPDATE task_queue
		SET status = $2, completed_at = $3
		WHERE task_id = $1 AND status IN ('pending', 'assigned')
	`
	tag, err := Pool().Exec(ctx, query, taskID, status, at)
	if err != nil {
		return fmt.Errorf("error finishing task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, taskID)
	}
	return nil
}

// Delete removes a queue entry in any state.
func (s *Store) Delete(ctx context.Context, taskID string) error {
	tag, err := Pool().Exec(ctx, `DELETE FROM task_queue WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("error deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearCompleted deletes terminal entries finished before the cutoff.
func (s *Store) ClearCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		DELETE FROM task_queue
		WHERE status IN ('completed', 'failed') AND completed_at < $1
	`
	tag, err := Pool().Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("error clearing completed tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// FailStaleAssigned marks assigned entries older than the cutoff as failed.
func (s *Store) FailStaleAssigned(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE task_queue
		SET status = 'failed', completed_at = now()
		WHERE status = 'assigned' AND assigned_at < $1
	`
	tag, err := Pool().Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("error failing stale tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// conflictOrNotFound disambiguates a zero-row transition: the entry either
// does not exist or is in a state the transition does not accept.
func (s *Store) conflictOrNotFound(ctx context.Context, taskID string) error {
	var exists bool
	err := Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM task_queue WHERE task_id = $1)`, taskID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("error checking task existence: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
