// Package alerts classifies ingested results into severity levels and
// drafts alert records for non-normal ones. Evaluation is a pure function:
// it never fails and never touches a store, so it cannot block ingestion.
package alerts

import (
	"fmt"

	"github.com/patrolworks/inspection-service/internal/types"
)

// Temperature thresholds in degrees Celsius.
const (
	ThresholdWarning = 60.0
	ThresholdDanger  = 80.0
)

// Draft is an alert to be created alongside a record.
type Draft struct {
	Level     types.AlertLevel
	AlertType string
	Message   string
}

// Evaluate maps a result to its severity. Temperature checks are classified
// locally against the fixed thresholds; every other task type carries a
// severity assigned by the processing service, which is passed through after
// validation and defaults to normal when absent or invalid. The returned
// draft is nil for normal results.
func Evaluate(taskType types.TaskType, stationID int, res *types.TaskResult) (types.Severity, *Draft) {
	if res == nil {
		return types.SeverityNormal, nil
	}

	if taskType == types.TaskTypeTemperature && res.Temperature != nil {
		return evaluateTemperature(stationID, res.Temperature)
	}

	sev, ok := types.ParseSeverity(string(res.Status))
	if !ok || sev == types.SeverityNormal {
		return types.SeverityNormal, nil
	}

	return sev, &Draft{
		Level:     types.AlertLevel(sev),
		AlertType: alertType(taskType),
		Message:   message(taskType, stationID, sev, res),
	}
}

func evaluateTemperature(stationID int, t *types.TemperatureReading) (types.Severity, *Draft) {
	switch {
	case t.Max >= ThresholdDanger:
		return types.SeverityDanger, &Draft{
			Level:     types.AlertDanger,
			AlertType: "high_temperature",
			Message:   fmt.Sprintf("station %d: max temperature %.1f°C exceeds danger threshold %.0f°C", stationID, t.Max, ThresholdDanger),
		}
	case t.Max >= ThresholdWarning:
		return types.SeverityWarning, &Draft{
			Level:     types.AlertWarning,
			AlertType: "high_temperature",
			Message:   fmt.Sprintf("station %d: max temperature %.1f°C exceeds warning threshold %.0f°C", stationID, t.Max, ThresholdWarning),
		}
	default:
		return types.SeverityNormal, nil
	}
}

func alertType(taskType types.TaskType) string {
	switch taskType {
	case types.TaskTypeGauge:
		return "abnormal_gauge"
	case types.TaskTypeTemperature:
		return "high_temperature"
	case types.TaskTypeSmokeA, types.TaskTypeSmokeB:
		return "smoke_detected"
	case types.TaskTypeDescription:
		return "scene_anomaly"
	default:
		return "unknown"
	}
}

func message(taskType types.TaskType, stationID int, sev types.Severity, res *types.TaskResult) string {
	switch {
	case res.Gauge != nil:
		return fmt.Sprintf("station %d: gauge reading %.2f %s flagged %s", stationID, res.Gauge.Value, res.Gauge.Unit, sev)
	case res.Smoke != nil && res.Smoke.HasSmoke:
		return fmt.Sprintf("station %d: smoke detected (%s)", stationID, sev)
	case res.Scene != nil:
		return fmt.Sprintf("station %d: scene flagged %s: %s", stationID, sev, res.Scene.Description)
	default:
		return fmt.Sprintf("station %d: %s result flagged %s", stationID, taskType, sev)
	}
}
