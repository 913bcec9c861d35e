package types

import "time"

// QueueUpdateReason tags what happened to a queue entry.
type QueueUpdateReason string

const (
	QueueReasonAdded    QueueUpdateReason = "added"
	QueueReasonAssigned QueueUpdateReason = "assigned"
	QueueReasonRemoved  QueueUpdateReason = "removed"
)

// TaskResultEvent is the push payload emitted after a result is ingested.
type TaskResultEvent struct {
	TaskID         string      `json:"task_id"`
	TaskType       TaskType    `json:"task_type"`
	StationID      int         `json:"station_id"`
	Result         *TaskResult `json:"result"`
	ImageRef       string      `json:"image_ref,omitempty"`
	ProcessingTime *float64    `json:"processing_time,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// QueueUpdateEvent is the push payload emitted when the live queue changes.
type QueueUpdateEvent struct {
	Reason QueueUpdateReason `json:"reason"`
	TaskID string            `json:"task_id"`
}

// AlertEvent is the push payload emitted when an alert fires.
type AlertEvent struct {
	Level     AlertLevel `json:"level"`
	AlertType string     `json:"alert_type"`
	Message   string     `json:"message"`
	RecordID  *int64     `json:"record_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
