package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrolworks/inspection-service/internal/broadcast"
	"github.com/patrolworks/inspection-service/internal/cartstate"
	"github.com/patrolworks/inspection-service/internal/dispatch"
	"github.com/patrolworks/inspection-service/internal/ingest"
	"github.com/patrolworks/inspection-service/internal/lock"
	"github.com/patrolworks/inspection-service/internal/memstore"
	"github.com/patrolworks/inspection-service/internal/types"
)

type testEnv struct {
	router *gin.Engine
	store  *memstore.Store
	hub    *broadcast.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := memstore.New()
	hub := broadcast.New(64, zerolog.Nop())
	disp := dispatch.New(st, hub, zerolog.Nop())
	ing := ingest.New(st, st, hub, zerolog.Nop())
	cart := cartstate.New(st, hub, zerolog.Nop())
	lockCtrl := lock.New(disp, hub, 10*time.Millisecond, zerolog.Nop())
	lockCtrl.Start(context.Background())
	t.Cleanup(lockCtrl.Stop)

	h := New(disp, ing, st, st, cart, lockCtrl, hub, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks", h.AddTask)
		api.POST("/tasks/clear", h.ClearTasks)
		api.POST("/tasks/:id/assign", h.AssignTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
		api.POST("/results", h.IngestResult)
		api.GET("/history", h.GetHistory)
		api.GET("/history/export", h.ExportHistory)
		api.GET("/stations/:id/latest", h.LatestByStation)
		api.GET("/statistics", h.GetStatistics)
		api.GET("/alerts", h.ListAlerts)
		api.POST("/alerts/:id/handled", h.MarkAlertHandled)
		api.GET("/cart/status", h.GetCartStatus)
		api.POST("/cart/status", h.UpdateCartStatus)
		api.POST("/lock/arm", h.ArmLock)
		api.POST("/lock/disarm", h.DisarmLock)
		api.GET("/lock", h.GetLock)
	}

	return &testEnv{router: router, store: st, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var envelope map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	}
	return w, envelope
}

func addTask(t *testing.T, e *testEnv, stationID int, taskType types.TaskType) string {
	t.Helper()
	w, envelope := e.do(t, "POST", "/api/tasks", gin.H{
		"station_id": stationID,
		"task_type":  taskType,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := envelope["data"].(map[string]any)
	return data["task_id"].(string)
}

func TestAddAndListTasks(t *testing.T) {
	e := newTestEnv(t)

	first := addTask(t, e, 1, types.TaskTypeGauge)
	second := addTask(t, e, 2, types.TaskTypeTemperature)
	assert.NotEqual(t, first, second)

	w, envelope := e.do(t, "GET", "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", envelope["status"])
	assert.NotEmpty(t, envelope["timestamp"])

	data := envelope["data"].(map[string]any)
	assert.EqualValues(t, 2, data["count"])
	tasks := data["tasks"].([]any)
	// Oldest first.
	assert.Equal(t, first, tasks[0].(map[string]any)["task_id"])
}

func TestAddTaskValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body gin.H
		code string
	}{
		{"missing station", gin.H{"task_type": 1}, "MISSING_FIELD"},
		{"missing type", gin.H{"station_id": 1}, "MISSING_FIELD"},
		{"unknown type", gin.H{"station_id": 1, "task_type": 42}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, envelope := e.do(t, "POST", "/api/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", envelope["status"])
			errBody := envelope["error"].(map[string]any)
			assert.Equal(t, tt.code, errBody["code"])
		})
	}
}

func TestAssignConflictAndNotFound(t *testing.T) {
	e := newTestEnv(t)
	taskID := addTask(t, e, 1, types.TaskTypeGauge)

	w, _ := e.do(t, "POST", "/api/tasks/"+taskID+"/assign", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second assign hits the CAS guard.
	w, envelope := e.do(t, "POST", "/api/tasks/"+taskID+"/assign", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", envelope["error"].(map[string]any)["code"])

	w, envelope = e.do(t, "POST", "/api/tasks/no-such-task/assign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", envelope["error"].(map[string]any)["code"])
}

func TestDeleteTask(t *testing.T) {
	e := newTestEnv(t)
	taskID := addTask(t, e, 1, types.TaskTypeGauge)

	w, _ := e.do(t, "DELETE", "/api/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, "DELETE", "/api/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndToEndInspectionCycle(t *testing.T) {
	e := newTestEnv(t)
	sub := e.hub.Subscribe()
	defer sub.Close()

	taskID := addTask(t, e, 1, types.TaskTypeTemperature)

	w, _ := e.do(t, "POST", "/api/tasks/"+taskID+"/assign", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, envelope := e.do(t, "POST", "/api/results", gin.H{
		"task_id":         taskID,
		"task_type":       types.TaskTypeTemperature,
		"station_id":      1,
		"result":          gin.H{"max_temperature": 82.0},
		"image_ref":       "frames/1/0042.jpg",
		"processing_time": 1.1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recordID := envelope["data"].(map[string]any)["record_id"].(float64)
	assert.Positive(t, recordID)

	// Record carries the danger classification.
	w, envelope = e.do(t, "GET", "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := envelope["data"].(map[string]any)["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "danger", records[0].(map[string]any)["status"])

	// Exactly one danger alert.
	w, envelope = e.do(t, "GET", "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	alerts := envelope["data"].(map[string]any)["alerts"].([]any)
	require.Len(t, alerts, 1)
	assert.Equal(t, "danger", alerts[0].(map[string]any)["level"])

	// Queue entry is completed, so the pending list is empty.
	w, envelope = e.do(t, "GET", "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, envelope["data"].(map[string]any)["count"])

	// Events arrive in causal order. The first two are the add/assign queue
	// updates from the setup steps.
	wantKinds := []broadcast.Kind{
		broadcast.KindQueueUpdate,
		broadcast.KindQueueUpdate,
		broadcast.KindTaskResult,
		broadcast.KindAlert,
		broadcast.KindQueueUpdate,
	}
	for i, want := range wantKinds {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, want, ev.Kind, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestIngestAlertThresholds(t *testing.T) {
	tests := []struct {
		maxTemp    float64
		severity   string
		alertCount int
	}{
		{85, "danger", 1},
		{70, "warning", 1},
		{40, "normal", 0},
	}

	for _, tt := range tests {
		env := newTestEnv(t)
		w, _ := env.do(t, "POST", "/api/results", gin.H{
			"task_type":  types.TaskTypeTemperature,
			"station_id": 1,
			"result":     gin.H{"max_temperature": tt.maxTemp},
		})
		require.Equal(t, http.StatusCreated, w.Code)

		_, envelope := env.do(t, "GET", "/api/alerts", nil)
		alerts := envelope["data"].(map[string]any)["alerts"].([]any)
		assert.Len(t, alerts, tt.alertCount, "max_temperature=%v", tt.maxTemp)

		_, envelope = env.do(t, "GET", "/api/history", nil)
		records := envelope["data"].(map[string]any)["records"].([]any)
		require.Len(t, records, 1)
		assert.Equal(t, tt.severity, records[0].(map[string]any)["status"])
	}
}

func TestMarkAlertHandled(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, "POST", "/api/results", gin.H{
		"task_type":  types.TaskTypeTemperature,
		"station_id": 2,
		"result":     gin.H{"max_temperature": 90.0},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	_, envelope := e.do(t, "GET", "/api/alerts", nil)
	alerts := envelope["data"].(map[string]any)["alerts"].([]any)
	require.Len(t, alerts, 1)
	alertID := int64(alerts[0].(map[string]any)["id"].(float64))

	w, _ = e.do(t, "POST", "/api/alerts/"+strconv.FormatInt(alertID, 10)+"/handled", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, envelope = e.do(t, "GET", "/api/alerts", nil)
	assert.Empty(t, envelope["data"].(map[string]any)["alerts"])

	w, _ = e.do(t, "POST", "/api/alerts/999/handled", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryFilters(t *testing.T) {
	e := newTestEnv(t)

	for station, temp := range map[int]float64{1: 30, 2: 85} {
		w, _ := e.do(t, "POST", "/api/results", gin.H{
			"task_type":  types.TaskTypeTemperature,
			"station_id": station,
			"result":     gin.H{"max_temperature": temp},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	_, envelope := e.do(t, "GET", "/api/history?station_id=2", nil)
	records := envelope["data"].(map[string]any)["records"].([]any)
	require.Len(t, records, 1)
	assert.EqualValues(t, 2, records[0].(map[string]any)["station_id"])

	w, _ := e.do(t, "GET", "/api/history?task_type=42", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestByStation(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, "GET", "/api/stations/7/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(t, "POST", "/api/results", gin.H{
		"task_type":  types.TaskTypeGauge,
		"station_id": 7,
		"result":     gin.H{"status": "normal", "value": 2.5},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, envelope := e.do(t, "GET", "/api/stations/7/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, envelope["data"].(map[string]any)["station_id"])
}

func TestStatistics(t *testing.T) {
	e := newTestEnv(t)

	for _, temp := range []float64{30, 70, 85} {
		w, _ := e.do(t, "POST", "/api/results", gin.H{
			"task_type":  types.TaskTypeTemperature,
			"station_id": 1,
			"result":     gin.H{"max_temperature": temp},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	_, envelope := e.do(t, "GET", "/api/statistics", nil)
	data := envelope["data"].(map[string]any)
	assert.EqualValues(t, 3, data["total_count"])
	assert.EqualValues(t, 1, data["normal_count"])
	assert.EqualValues(t, 1, data["warning_count"])
	assert.EqualValues(t, 1, data["danger_count"])
}

func TestCartStatusRoundTrip(t *testing.T) {
	e := newTestEnv(t)

	// Default snapshot before any report.
	w, envelope := e.do(t, "GET", "/api/cart/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, false, data["online"])
	assert.Equal(t, "idle", data["mode"])

	w, envelope = e.do(t, "POST", "/api/cart/status", gin.H{
		"online":        true,
		"mode":          "working",
		"battery_level": 77,
	})
	require.Equal(t, http.StatusOK, w.Code)
	data = envelope["data"].(map[string]any)
	assert.Equal(t, true, data["online"])
	assert.EqualValues(t, 77, data["battery_level"])

	w, envelope = e.do(t, "POST", "/api/cart/status", gin.H{"mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", envelope["error"].(map[string]any)["code"])
}

func TestLockSession(t *testing.T) {
	e := newTestEnv(t)

	addTask(t, e, 1, types.TaskTypeGauge)

	w, envelope := e.do(t, "POST", "/api/lock/arm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, true, data["enabled"])
	assert.Len(t, data["locked_types"].([]any), 1)

	w, envelope = e.do(t, "GET", "/api/lock", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, envelope["data"].(map[string]any)["enabled"])

	w, envelope = e.do(t, "POST", "/api/lock/disarm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, envelope["data"].(map[string]any)["enabled"])

	// Re-arming with an explicit type list overrides the pending-derived set.
	w, envelope = e.do(t, "POST", "/api/lock/arm", map[string]any{
		"task_types": []int{int(types.TaskTypeTemperature), int(types.TaskTypeSmokeA)},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data = envelope["data"].(map[string]any)
	assert.Equal(t, true, data["enabled"])
	assert.Len(t, data["locked_types"].([]any), 2)
}

func TestHistoryExportXLSX(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, "POST", "/api/results", gin.H{
		"task_type":  types.TaskTypeGauge,
		"station_id": 1,
		"result":     gin.H{"status": "normal", "value": 3.3, "unit": "MPa"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = e.do(t, "GET", "/api/history/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
	// XLSX is a zip container.
	assert.Equal(t, []byte{'P', 'K'}, w.Body.Bytes()[:2])
}

func TestHealthCheckWithMemoryDriver(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "in-memory")
}
