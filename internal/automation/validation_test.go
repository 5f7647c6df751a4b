package automation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() ConditionRule {
	return ConditionRule{
		Name:      "Light on when dark",
		Condition: Condition{DeviceID: "SENSOR-0001", Parameter: "lux", Operator: OpLess, Threshold: 50},
		Action:    Action{DeviceID: "ACTUATOR-0002", Channel: 1, On: true},
	}
}

func TestValidateConditionRule(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConditionRule)
		errMsg string
	}{
		{"valid", func(*ConditionRule) {}, ""},
		{"empty name", func(r *ConditionRule) { r.Name = "  " }, "name is required"},
		{"long name", func(r *ConditionRule) { r.Name = strings.Repeat("x", 101) }, "name exceeds"},
		{"no source", func(r *ConditionRule) { r.Condition.DeviceID = "" }, "condition device"},
		{"no parameter", func(r *ConditionRule) { r.Condition.Parameter = "" }, "parameter"},
		{"bad operator", func(r *ConditionRule) { r.Condition.Operator = "~" }, "operator"},
		{"no target", func(r *ConditionRule) { r.Action.DeviceID = "" }, "action device"},
		{"gpio zero", func(r *ConditionRule) { r.Action.Channel = 0 }, "channel must be between 1 and 8"},
		{"gpio too high", func(r *ConditionRule) { r.Action.Channel = 9 }, "channel must be between 1 and 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			err := ValidateConditionRule(&r, 8)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRule)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateConditionRule_Nil(t *testing.T) {
	assert.ErrorIs(t, ValidateConditionRule(nil, 8), ErrInvalidRule)
}

func TestValidateGestureRule(t *testing.T) {
	base := GestureRule{Gesture: "palm", DeviceID: "ACTUATOR-0002", Channel: 8, Action: GestureOff}
	require.NoError(t, ValidateGestureRule(&base, 8))

	bad := base
	bad.Gesture = ""
	assert.ErrorIs(t, ValidateGestureRule(&bad, 8), ErrInvalidRule)

	bad = base
	bad.Action = "ON"
	assert.ErrorIs(t, ValidateGestureRule(&bad, 8), ErrInvalidRule)

	bad = base
	bad.Channel = 8
	assert.ErrorIs(t, ValidateGestureRule(&bad, 4), ErrInvalidRule)

	assert.ErrorIs(t, ValidateGestureRule(nil, 8), ErrInvalidRule)
}

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := GenerateID()
		assert.Len(t, id, 36)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
