package alerts

import (
	"encoding/json"
	"testing"

	"github.com/patrolworks/inspection-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseResult(t *testing.T, taskType types.TaskType, payload string) *types.TaskResult {
	t.Helper()
	res, err := types.ParseResult(taskType, json.RawMessage(payload))
	require.NoError(t, err)
	return res
}

func TestEvaluateTemperatureThresholds(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expected    types.Severity
		expectAlert bool
	}{
		{
			name:        "above danger threshold",
			payload:     `{"max_temperature": 85}`,
			expected:    types.SeverityDanger,
			expectAlert: true,
		},
		{
			name:        "exactly at danger threshold",
			payload:     `{"max_temperature": 80}`,
			expected:    types.SeverityDanger,
			expectAlert: true,
		},
		{
			name:        "warning band",
			payload:     `{"max_temperature": 70}`,
			expected:    types.SeverityWarning,
			expectAlert: true,
		},
		{
			name:        "exactly at warning threshold",
			payload:     `{"max_temperature": 60}`,
			expected:    types.SeverityWarning,
			expectAlert: true,
		},
		{
			name:        "normal temperature",
			payload:     `{"max_temperature": 40}`,
			expected:    types.SeverityNormal,
			expectAlert: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseResult(t, types.TaskTypeTemperature, tt.payload)
			sev, draft := Evaluate(types.TaskTypeTemperature, 2, res)
			assert.Equal(t, tt.expected, sev)
			if tt.expectAlert {
				require.NotNil(t, draft)
				assert.Equal(t, "high_temperature", draft.AlertType)
				assert.Equal(t, types.AlertLevel(tt.expected), draft.Level)
				assert.Contains(t, draft.Message, "station 2")
			} else {
				assert.Nil(t, draft)
			}
		})
	}
}

func TestEvaluatePassThroughSeverity(t *testing.T) {
	res := parseResult(t, types.TaskTypeSmokeA, `{"has_smoke": true, "status": "danger", "confidence": 0.93}`)
	sev, draft := Evaluate(types.TaskTypeSmokeA, 3, res)
	assert.Equal(t, types.SeverityDanger, sev)
	require.NotNil(t, draft)
	assert.Equal(t, "smoke_detected", draft.AlertType)
	assert.Equal(t, types.AlertDanger, draft.Level)
}

func TestEvaluateInvalidSeverityDefaultsToNormal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "unknown status value", payload: `{"value": 1.2, "status": "critical"}`},
		{name: "missing status", payload: `{"value": 1.2}`},
		{name: "empty payload", payload: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseResult(t, types.TaskTypeGauge, tt.payload)
			sev, draft := Evaluate(types.TaskTypeGauge, 1, res)
			assert.Equal(t, types.SeverityNormal, sev)
			assert.Nil(t, draft)
		})
	}
}

func TestEvaluateNilResult(t *testing.T) {
	sev, draft := Evaluate(types.TaskTypeGauge, 1, nil)
	assert.Equal(t, types.SeverityNormal, sev)
	assert.Nil(t, draft)
}

func TestEvaluateGaugeWarningMessage(t *testing.T) {
	res := parseResult(t, types.TaskTypeGauge, `{"value": 9.8, "unit": "MPa", "status": "warning"}`)
	sev, draft := Evaluate(types.TaskTypeGauge, 4, res)
	assert.Equal(t, types.SeverityWarning, sev)
	require.NotNil(t, draft)
	assert.Equal(t, "abnormal_gauge", draft.AlertType)
	assert.Contains(t, draft.Message, "9.80 MPa")
}
