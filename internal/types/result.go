package types

import (
	"encoding/json"
	"fmt"
)

// GaugeReading is the result variant for gauge reading tasks.
type GaugeReading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// TemperatureReading is the result variant for temperature check tasks.
type TemperatureReading struct {
	Max     float64  `json:"max_temperature"`
	Avg     *float64 `json:"avg_temperature,omitempty"`
	Ambient *float64 `json:"ambient_temperature,omitempty"`
}

// SmokeCheck is the result variant for both smoke check task types.
type SmokeCheck struct {
	HasSmoke bool `json:"has_smoke"`
}

// SceneDescription is the result variant for object description tasks.
type SceneDescription struct {
	Description string   `json:"description"`
	Items       []string `json:"items,omitempty"`
}

// TaskResult is the result payload reported by the processing service for a
// completed task. Exactly one variant is populated, selected by the task
// type the payload arrived under. Status and Confidence are shared fields
// the processing service attaches to every variant; Err is set when the
// service reports a processing failure instead of a classified result.
type TaskResult struct {
	TaskType    TaskType            `json:"task_type"`
	Status      Severity            `json:"status,omitempty"`
	Confidence  *float64            `json:"confidence,omitempty"`
	Err         string              `json:"error,omitempty"`
	Gauge       *GaugeReading       `json:"gauge,omitempty"`
	Temperature *TemperatureReading `json:"temperature,omitempty"`
	Smoke       *SmokeCheck         `json:"smoke,omitempty"`
	Scene       *SceneDescription   `json:"scene,omitempty"`

	raw json.RawMessage
}

// Failed reports whether the payload signaled a processing failure.
func (r *TaskResult) Failed() bool {
	return r != nil && r.Err != ""
}

// Raw returns the wire payload the result was parsed from, when available.
func (r *TaskResult) Raw() json.RawMessage {
	if r == nil {
		return nil
	}
	return r.raw
}

// resultEnvelope is the flat wire shape produced by the processing service.
// Variant fields share one flat object; ParseResult picks the fields that
// belong to the task type.
type resultEnvelope struct {
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error"`

	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`

	MaxTemperature     *float64 `json:"max_temperature"`
	AvgTemperature     *float64 `json:"avg_temperature"`
	AmbientTemperature *float64 `json:"ambient_temperature"`

	HasSmoke *bool `json:"has_smoke"`

	Description string   `json:"description"`
	Items       []string `json:"items"`
}

// ParseResult decodes the flat payload reported for a task of the given type
// into its tagged variant. Unknown or missing fields never fail the parse;
// severity validation is the alert evaluator's concern. A payload that is
// not a JSON object is rejected.
func ParseResult(taskType TaskType, raw json.RawMessage) (*TaskResult, error) {
	if !taskType.Valid() {
		return nil, fmt.Errorf("parse result: unknown task type %d", taskType)
	}

	res := &TaskResult{TaskType: taskType, raw: raw}
	if len(raw) == 0 {
		return res, nil
	}

	var env resultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse result payload: %w", err)
	}

	res.Status = Severity(env.Status)
	res.Confidence = env.Confidence
	res.Err = env.Error

	switch taskType {
	case TaskTypeGauge:
		if env.Value != nil {
			res.Gauge = &GaugeReading{Value: *env.Value, Unit: env.Unit}
		}
	case TaskTypeTemperature:
		if env.MaxTemperature != nil {
			res.Temperature = &TemperatureReading{
				Max:     *env.MaxTemperature,
				Avg:     env.AvgTemperature,
				Ambient: env.AmbientTemperature,
			}
		}
	case TaskTypeSmokeA, TaskTypeSmokeB:
		if env.HasSmoke != nil {
			res.Smoke = &SmokeCheck{HasSmoke: *env.HasSmoke}
		}
	case TaskTypeDescription:
		if env.Description != "" || len(env.Items) > 0 {
			res.Scene = &SceneDescription{Description: env.Description, Items: env.Items}
		}
	}

	return res, nil
}

// MarshalJSON emits the flat wire shape, preferring the original payload
// when the result was parsed from one.
func (r *TaskResult) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}

	flat := map[string]any{}
	if r.Status != "" {
		flat["status"] = r.Status
	}
	if r.Confidence != nil {
		flat["confidence"] = *r.Confidence
	}
	if r.Err != "" {
		flat["error"] = r.Err
	}
	switch {
	case r.Gauge != nil:
		flat["value"] = r.Gauge.Value
		if r.Gauge.Unit != "" {
			flat["unit"] = r.Gauge.Unit
		}
	case r.Temperature != nil:
		flat["max_temperature"] = r.Temperature.Max
		if r.Temperature.Avg != nil {
			flat["avg_temperature"] = *r.Temperature.Avg
		}
		if r.Temperature.Ambient != nil {
			flat["ambient_temperature"] = *r.Temperature.Ambient
		}
	case r.Smoke != nil:
		flat["has_smoke"] = r.Smoke.HasSmoke
	case r.Scene != nil:
		flat["description"] = r.Scene.Description
		if len(r.Scene.Items) > 0 {
			flat["items"] = r.Scene.Items
		}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON restores a result stored as its flat wire shape. The task
// type is not part of the flat object, so variants are re-derived lazily by
// callers that know the type; the common fields are always available.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	r.raw = append(r.raw[:0], data...)
	r.Status = Severity(env.Status)
	r.Confidence = env.Confidence
	r.Err = env.Error
	return nil
}
