package types

import "time"

// TaskType identifies one of the five fixed inspection categories bound to
// stations on the patrol route.
type TaskType int

const (
	TaskTypeGauge       TaskType = 1 // analog gauge reading
	TaskTypeTemperature TaskType = 2 // thermal temperature check
	TaskTypeSmokeA      TaskType = 3 // smoke check, variant A
	TaskTypeSmokeB      TaskType = 4 // smoke check, variant B
	TaskTypeDescription TaskType = 5 // free-form object description
)

// Valid reports whether t is one of the five known task types.
func (t TaskType) Valid() bool {
	return t >= TaskTypeGauge && t <= TaskTypeDescription
}

func (t TaskType) String() string {
	switch t {
	case TaskTypeGauge:
		return "gauge"
	case TaskTypeTemperature:
		return "temperature"
	case TaskTypeSmokeA:
		return "smoke_a"
	case TaskTypeSmokeB:
		return "smoke_b"
	case TaskTypeDescription:
		return "description"
	default:
		return "unknown"
	}
}

// TaskStatus is the queue lifecycle state of a task. Transitions only move
// forward: pending -> assigned -> completed or failed.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Severity is the three-level classification attached to a completed result.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// ParseSeverity validates a severity string coming from an external payload.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityNormal, SeverityWarning, SeverityDanger:
		return Severity(s), true
	}
	return SeverityNormal, false
}

// AlertLevel is the severity of a raised alert. Alerts are only created for
// non-normal results, so normal is not a valid level.
type AlertLevel string

const (
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// Task is a live queue entry.
type Task struct {
	TaskID      string         `json:"task_id"`
	StationID   int            `json:"station_id"`
	TaskType    TaskType       `json:"task_type"`
	Status      TaskStatus     `json:"status"`
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	AssignedAt  *time.Time     `json:"assigned_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TaskRecord is an immutable history entry written once per ingested result.
// It may outlive the queue entry it originated from.
type TaskRecord struct {
	ID             int64       `json:"id"`
	TaskID         string      `json:"task_id"`
	TaskType       TaskType    `json:"task_type"`
	StationID      int         `json:"station_id"`
	ImageRef       string      `json:"image_ref,omitempty"`
	Result         *TaskResult `json:"result"`
	Status         Severity    `json:"status"`
	Confidence     *float64    `json:"confidence,omitempty"`
	ProcessingTime *float64    `json:"processing_time,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// Alert is a raised alert, weakly linked to the record that produced it.
type Alert struct {
	ID        int64      `json:"id"`
	RecordID  *int64     `json:"record_id,omitempty"`
	Level     AlertLevel `json:"level"`
	AlertType string     `json:"alert_type"`
	Message   string     `json:"message"`
	Handled   bool       `json:"handled"`
	Timestamp time.Time  `json:"timestamp"`
}

// CartMode is the cart's reported operating mode.
type CartMode string

const (
	ModeIdle      CartMode = "idle"
	ModeSingle    CartMode = "single"
	ModeLoop      CartMode = "loop"
	ModeTraveling CartMode = "traveling"
	ModeWorking   CartMode = "working"
)

// ValidCartMode reports whether m is a known operating mode.
func ValidCartMode(m CartMode) bool {
	switch m {
	case ModeIdle, ModeSingle, ModeLoop, ModeTraveling, ModeWorking:
		return true
	}
	return false
}

// CartStatus is the singleton live snapshot of the cart, replaced in full on
// every telemetry update.
type CartStatus struct {
	Online         bool      `json:"online"`
	CurrentStation *int      `json:"current_station,omitempty"`
	Mode           CartMode  `json:"mode"`
	BatteryLevel   *int      `json:"battery_level,omitempty"`
	LastActivity   string    `json:"last_activity,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DefaultCartStatus is the snapshot reported before any telemetry arrives.
func DefaultCartStatus() *CartStatus {
	return &CartStatus{
		Online: false,
		Mode:   ModeIdle,
	}
}

// Statistics aggregates record history over a trailing window.
type Statistics struct {
	TotalCount        int      `json:"total_count"`
	NormalCount       int      `json:"normal_count"`
	WarningCount      int      `json:"warning_count"`
	DangerCount       int      `json:"danger_count"`
	AvgConfidence     *float64 `json:"avg_confidence,omitempty"`
	AvgProcessingTime *float64 `json:"avg_processing_time,omitempty"`
}
