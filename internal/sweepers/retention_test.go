package sweepers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrolworks/inspection-service/internal/memstore"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

func seedTask(t *testing.T, st *memstore.Store, id string, status types.TaskStatus, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	then := time.Now().UTC().Add(-age)
	require.NoError(t, st.Enqueue(ctx, &types.Task{
		TaskID:    id,
		StationID: 1,
		TaskType:  types.TaskTypeGauge,
		Status:    types.TaskPending,
		CreatedAt: then,
	}))
	switch status {
	case types.TaskAssigned:
		require.NoError(t, st.Assign(ctx, id, then))
	case types.TaskCompleted:
		require.NoError(t, st.Assign(ctx, id, then))
		require.NoError(t, st.Finish(ctx, id, false, then))
	case types.TaskFailed:
		require.NoError(t, st.Assign(ctx, id, then))
		require.NoError(t, st.Finish(ctx, id, true, then))
	}
}

func TestSweepClearsOldTerminalEntriesOnly(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	seedTask(t, st, "old-completed", types.TaskCompleted, 2*time.Hour)
	seedTask(t, st, "old-failed", types.TaskFailed, 2*time.Hour)
	seedTask(t, st, "fresh-completed", types.TaskCompleted, time.Minute)
	seedTask(t, st, "old-pending", types.TaskPending, 2*time.Hour)

	sw := NewRetentionSweeper(st, st, zerolog.Nop(), time.Minute, time.Hour, 0, 0)
	sw.Sweep(ctx)

	_, err := st.Task(ctx, "old-completed")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Task(ctx, "old-failed")
	assert.ErrorIs(t, err, store.ErrNotFound)

	fresh, err := st.Task(ctx, "fresh-completed")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, fresh.Status)

	pending, err := st.Task(ctx, "old-pending")
	require.NoError(t, err)
	assert.Equal(t, types.TaskPending, pending.Status)
}

func TestSweepFailsStaleAssignments(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	seedTask(t, st, "stale-assigned", types.TaskAssigned, 2*time.Hour)
	seedTask(t, st, "fresh-assigned", types.TaskAssigned, time.Minute)

	sw := NewRetentionSweeper(st, st, zerolog.Nop(), time.Minute, 0, time.Hour, 0)
	sw.Sweep(ctx)

	stale, err := st.Task(ctx, "stale-assigned")
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, stale.Status)

	fresh, err := st.Task(ctx, "fresh-assigned")
	require.NoError(t, err)
	assert.Equal(t, types.TaskAssigned, fresh.Status)
}

func TestSweepPrunesOldRecords(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	old := &types.TaskRecord{
		TaskID: "t-old", TaskType: types.TaskTypeGauge, StationID: 1,
		Status: types.SeverityNormal, Timestamp: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &types.TaskRecord{
		TaskID: "t-fresh", TaskType: types.TaskTypeGauge, StationID: 1,
		Status: types.SeverityNormal, Timestamp: time.Now().UTC(),
	}
	_, _, err := st.AppendRecord(ctx, old, nil)
	require.NoError(t, err)
	_, _, err = st.AppendRecord(ctx, fresh, nil)
	require.NoError(t, err)

	sw := NewRetentionSweeper(st, st, zerolog.Nop(), time.Minute, 0, 0, 24*time.Hour)
	sw.Sweep(ctx)

	recs, err := st.Records(ctx, store.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "t-fresh", recs[0].TaskID)
}

func TestDisabledPassesAreSkipped(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	seedTask(t, st, "old-completed", types.TaskCompleted, 2*time.Hour)
	seedTask(t, st, "stale-assigned", types.TaskAssigned, 2*time.Hour)

	// All retention knobs zero: nothing is touched.
	sw := NewRetentionSweeper(st, st, zerolog.Nop(), time.Minute, 0, 0, 0)
	sw.Sweep(ctx)

	_, err := st.Task(ctx, "old-completed")
	assert.NoError(t, err)
	stale, err := st.Task(ctx, "stale-assigned")
	require.NoError(t, err)
	assert.Equal(t, types.TaskAssigned, stale.Status)
}
