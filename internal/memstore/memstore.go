// Package memstore provides in-memory implementations of the store
// contracts. It backs unit tests and the memory storage driver used for
// local development; durability comes from the Postgres implementations in
// internal/database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// Store implements every store contract over process memory.
type Store struct {
	mu sync.Mutex

	tasks     map[string]*types.Task
	taskOrder []string // task ids in insertion order

	records      []types.TaskRecord
	nextRecordID int64

	alerts      []types.Alert
	nextAlertID int64

	cart *types.CartStatus
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tasks:        make(map[string]*types.Task),
		nextRecordID: 1,
		nextAlertID:  1,
	}
}

var (
	_ store.TaskQueue       = (*Store)(nil)
	_ store.RecordStore     = (*Store)(nil)
	_ store.AlertStore      = (*Store)(nil)
	_ store.CartStatusStore = (*Store)(nil)
)

func (s *Store) Enqueue(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.TaskID]; exists {
		return store.ErrConflict
	}
	clone := *task
	s.tasks[task.TaskID] = &clone
	s.taskOrder = append(s.taskOrder, task.TaskID)
	return nil
}

func (s *Store) PendingTasks(_ context.Context, limit int) ([]types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Task, 0, limit)
	for _, id := range s.taskOrder {
		task, ok := s.tasks[id]
		if !ok || task.Status != types.TaskPending {
			continue
		}
		out = append(out, *task)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Task(_ context.Context, taskID string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *task
	return &clone, nil
}

func (s *Store) Assign(_ context.Context, taskID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if task.Status != types.TaskPending {
		return store.ErrConflict
	}
	task.Status = types.TaskAssigned
	task.AssignedAt = &at
	return nil
}

func (s *Store) Finish(_ context.Context, taskID string, failed bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if task.Status.Terminal() {
		return store.ErrConflict
	}
	if failed {
		task.Status = types.TaskFailed
	} else {
		task.Status = types.TaskCompleted
	}
	task.CompletedAt = &at
	return nil
}

func (s *Store) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *Store) ClearCompleted(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if !task.Status.Terminal() {
			continue
		}
		if task.CompletedAt != nil && task.CompletedAt.Before(olderThan) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) FailStaleAssigned(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	failed := 0
	now := time.Now().UTC()
	for _, task := range s.tasks {
		if task.Status != types.TaskAssigned {
			continue
		}
		if task.AssignedAt != nil && task.AssignedAt.Before(olderThan) {
			task.Status = types.TaskFailed
			at := now
			task.CompletedAt = &at
			failed++
		}
	}
	return failed, nil
}

func (s *Store) AppendRecord(_ context.Context, rec *types.TaskRecord, alert *types.Alert) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.ID = s.nextRecordID
	s.nextRecordID++
	s.records = append(s.records, stored)

	var alertID int64
	if alert != nil {
		a := *alert
		a.ID = s.nextAlertID
		s.nextAlertID++
		recordID := stored.ID
		a.RecordID = &recordID
		s.alerts = append(s.alerts, a)
		alertID = a.ID
	}
	return stored.ID, alertID, nil
}

func (s *Store) Records(_ context.Context, filter store.RecordFilter) ([]types.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]types.TaskRecord, 0)
	for _, rec := range s.records {
		if filter.TaskType != 0 && rec.TaskType != filter.TaskType {
			continue
		}
		if filter.StationID != 0 && rec.StationID != filter.StationID {
			continue
		}
		if !filter.Since.IsZero() && rec.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && rec.Timestamp.After(filter.Until) {
			continue
		}
		matched = append(matched, rec)
	}

	// Newest first; ties broken by id so ordering is stable.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []types.TaskRecord{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) LatestByStation(ctx context.Context, stationID int, taskType types.TaskType) (*types.TaskRecord, error) {
	records, err := s.Records(ctx, store.RecordFilter{
		StationID: stationID,
		TaskType:  taskType,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, store.ErrNotFound
	}
	rec := records[0]
	return &rec, nil
}

func (s *Store) Statistics(_ context.Context, since time.Time, taskType types.TaskType) (*types.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &types.Statistics{}
	var confSum, procSum float64
	var confN, procN int
	for _, rec := range s.records {
		if rec.Timestamp.Before(since) {
			continue
		}
		if taskType != 0 && rec.TaskType != taskType {
			continue
		}
		stats.TotalCount++
		switch rec.Status {
		case types.SeverityWarning:
			stats.WarningCount++
		case types.SeverityDanger:
			stats.DangerCount++
		default:
			stats.NormalCount++
		}
		if rec.Confidence != nil {
			confSum += *rec.Confidence
			confN++
		}
		if rec.ProcessingTime != nil {
			procSum += *rec.ProcessingTime
			procN++
		}
	}
	if confN > 0 {
		avg := confSum / float64(confN)
		stats.AvgConfidence = &avg
	}
	if procN > 0 {
		avg := procSum / float64(procN)
		stats.AvgProcessingTime = &avg
	}
	return stats, nil
}

func (s *Store) PruneRecords(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, rec := range s.records {
		if rec.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return removed, nil
}

func (s *Store) UnhandledAlerts(_ context.Context, limit int) ([]types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Alert, 0)
	// Alerts are appended in time order; walk backwards for newest first.
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].Handled {
			continue
		}
		out = append(out, s.alerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkHandled(_ context.Context, alertID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Handled = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) SetCartStatus(_ context.Context, status *types.CartStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *status
	s.cart = &clone
	return nil
}

func (s *Store) CartStatus(_ context.Context) (*types.CartStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart == nil {
		return nil, store.ErrNotFound
	}
	clone := *s.cart
	return &clone, nil
}
