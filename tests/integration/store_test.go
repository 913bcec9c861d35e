package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/patrolworks/inspection-service/internal/database"
	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// TestPostgresStore exercises the Postgres-backed store against a real
// database. Requires Docker; skipped in short mode.
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := setupTestDatabase(ctx)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Connect(ctx, connString, 5, 1, time.Hour, 30*time.Minute))
	t.Cleanup(database.Close)

	require.NoError(t, database.EnsureSchema(ctx))

	s := database.NewStore()

	t.Run("queue lifecycle", func(t *testing.T) {
		task := &types.Task{
			TaskID:    uuid.NewString(),
			StationID: 3,
			TaskType:  types.TaskTypeTemperature,
			Status:    types.TaskPending,
			Params:    map[string]any{"probe": "front"},
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.Enqueue(ctx, task))

		// Duplicate IDs are rejected.
		assert.ErrorIs(t, s.Enqueue(ctx, task), store.ErrConflict)

		pending, err := s.PendingTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, task.TaskID, pending[0].TaskID)
		assert.Equal(t, "front", pending[0].Params["probe"])

		now := time.Now().UTC()
		require.NoError(t, s.Assign(ctx, task.TaskID, now))
		assert.ErrorIs(t, s.Assign(ctx, task.TaskID, now), store.ErrConflict)
		assert.ErrorIs(t, s.Assign(ctx, uuid.NewString(), now), store.ErrNotFound)

		require.NoError(t, s.Finish(ctx, task.TaskID, false, now))

		got, err := s.Task(ctx, task.TaskID)
		require.NoError(t, err)
		assert.Equal(t, types.TaskCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)

		// Terminal entries reject further transitions.
		assert.ErrorIs(t, s.Finish(ctx, task.TaskID, true, now), store.ErrConflict)

		require.NoError(t, s.Delete(ctx, task.TaskID))
		_, err = s.Task(ctx, task.TaskID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("records and alerts", func(t *testing.T) {
		res, err := types.ParseResult(types.TaskTypeTemperature, json.RawMessage(`{"max_temperature": 85.5, "confidence": 0.93, "status": "danger"}`))
		require.NoError(t, err)

		conf := 0.93
		rec := &types.TaskRecord{
			TaskID:     uuid.NewString(),
			TaskType:   types.TaskTypeTemperature,
			StationID:  4,
			Result:     res,
			Status:     types.SeverityDanger,
			Confidence: &conf,
			Timestamp:  time.Now().UTC(),
		}
		alert := &types.Alert{
			Level:     types.AlertDanger,
			AlertType: "temperature",
			Message:   "temperature 85.5 exceeds danger threshold",
			Timestamp: rec.Timestamp,
		}

		recordID, alertID, err := s.AppendRecord(ctx, rec, alert)
		require.NoError(t, err)
		assert.Positive(t, recordID)
		assert.Positive(t, alertID)
		require.NotNil(t, alert.RecordID)
		assert.Equal(t, recordID, *alert.RecordID)

		records, err := s.Records(ctx, store.RecordFilter{StationID: 4})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, types.SeverityDanger, records[0].Status)
		require.NotNil(t, records[0].Result)
		require.NotNil(t, records[0].Result.Temperature)
		assert.InDelta(t, 85.5, records[0].Result.Temperature.Max, 0.001)

		latest, err := s.LatestByStation(ctx, 4, 0)
		require.NoError(t, err)
		assert.Equal(t, recordID, latest.ID)

		stats, err := s.Statistics(ctx, time.Now().UTC().Add(-time.Hour), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.DangerCount)

		alerts, err := s.UnhandledAlerts(ctx, 10)
		require.NoError(t, err)
		require.Len(t, alerts, 1)

		require.NoError(t, s.MarkHandled(ctx, alertID))
		assert.ErrorIs(t, s.MarkHandled(ctx, alertID+1000), store.ErrNotFound)

		alerts, err = s.UnhandledAlerts(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, alerts)

		// Pruning the record detaches the alert instead of deleting it.
		pruned, err := s.PruneRecords(ctx, time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, pruned)
	})

	t.Run("cart status upsert", func(t *testing.T) {
		_, err := s.CartStatus(ctx)
		assert.ErrorIs(t, err, store.ErrNotFound)

		station := 2
		battery := 80
		status := &types.CartStatus{
			Online:         true,
			CurrentStation: &station,
			Mode:           types.ModeSingle,
			BatteryLevel:   &battery,
			Timestamp:      time.Now().UTC(),
		}
		require.NoError(t, s.SetCartStatus(ctx, status))

		battery = 60
		status.BatteryLevel = &battery
		require.NoError(t, s.SetCartStatus(ctx, status))

		got, err := s.CartStatus(ctx)
		require.NoError(t, err)
		assert.True(t, got.Online)
		assert.Equal(t, types.ModeSingle, got.Mode)
		require.NotNil(t, got.BatteryLevel)
		assert.Equal(t, 60, *got.BatteryLevel)
	})

	t.Run("retention", func(t *testing.T) {
		// Old completed task plus a stale assigned one.
		old := time.Now().UTC().Add(-2 * time.Hour)

		done := &types.Task{TaskID: uuid.NewString(), StationID: 1, TaskType: types.TaskTypeGauge, Status: types.TaskPending, CreatedAt: old}
		require.NoError(t, s.Enqueue(ctx, done))
		require.NoError(t, s.Assign(ctx, done.TaskID, old))
		require.NoError(t, s.Finish(ctx, done.TaskID, false, old))

		stuck := &types.Task{TaskID: uuid.NewString(), StationID: 1, TaskType: types.TaskTypeGauge, Status: types.TaskPending, CreatedAt: old}
		require.NoError(t, s.Enqueue(ctx, stuck))
		require.NoError(t, s.Assign(ctx, stuck.TaskID, old))

		cleared, err := s.ClearCompleted(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, cleared)

		failed, err := s.FailStaleAssigned(ctx, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, failed)

		got, err := s.Task(ctx, stuck.TaskID)
		require.NoError(t, err)
		assert.Equal(t, types.TaskFailed, got.Status)
	})
}

func setupTestDatabase(ctx context.Context) (*postgres.PostgresContainer, error) {
	return postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("inspection_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp").
					WithStartupTimeout(60*time.Second),
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(1).
					WithStartupTimeout(60*time.Second),
			),
		),
	)
}
