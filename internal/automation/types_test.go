package automation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fleet-core/internal/device"
)

func TestAction_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"channel and value", `{"deviceId":"ACTUATOR-1A2B","channel":2,"value":true}`, Action{DeviceID: "ACTUATOR-1A2B", Channel: 2, On: true}},
		{"gpio and numeric state", `{"deviceId":"ACTUATOR-1A2B","gpio":2,"state":1}`, Action{DeviceID: "ACTUATOR-1A2B", Channel: 2, On: true}},
		{"gpio and string state", `{"deviceId":"ACTUATOR-1A2B","gpio":5,"state":"off"}`, Action{DeviceID: "ACTUATOR-1A2B", Channel: 5}},
		{"channel wins over gpio", `{"deviceId":"A","channel":3,"gpio":7,"value":0}`, Action{DeviceID: "A", Channel: 3}},
		{"missing value is off", `{"deviceId":"A","channel":3}`, Action{DeviceID: "A", Channel: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Action
			require.NoError(t, json.Unmarshal([]byte(tt.in), &a))
			assert.Equal(t, tt.want, a)
		})
	}
}

func TestAction_UnmarshalJSON_InvalidValue(t *testing.T) {
	var a Action
	err := json.Unmarshal([]byte(`{"deviceId":"A","channel":1,"value":"maybe"}`), &a)
	assert.ErrorIs(t, err, device.ErrInvalidState)
}

func TestConditionRule_JSONRoundTrip(t *testing.T) {
	in := `{"name":"Fan","condition":{"deviceId":"SENSOR-AB12","parameter":"tC","operator":">","threshold":30},` +
		`"action":{"deviceId":"ACTUATOR-1A2B","channel":2,"value":true},"autoToggle":true}`

	var r ConditionRule
	require.NoError(t, json.Unmarshal([]byte(in), &r))
	assert.Equal(t, Action{DeviceID: "ACTUATOR-1A2B", Channel: 2, On: true}, r.Action)
	assert.True(t, r.AutoToggle)

	out, err := json.Marshal(r.Action)
	require.NoError(t, err)
	assert.JSONEq(t, `{"deviceId":"ACTUATOR-1A2B","channel":2,"value":true}`, string(out))
}

func TestGestureRule_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantChannel int
		wantAction  string
	}{
		{"channel and bool action", `{"gesture":"palm","deviceId":"A","channel":3,"action":true}`, 3, GestureOn},
		{"gpio and string action", `{"gesture":"palm","deviceId":"A","gpio":4,"action":"OFF"}`, 4, GestureOff},
		{"numeric action", `{"gesture":"fist","deviceId":"A","channel":1,"action":1}`, 1, GestureOn},
		{"unknown action kept", `{"gesture":"fist","deviceId":"A","channel":1,"action":"blink"}`, 1, "blink"},
		{"no action", `{"gesture":"fist","deviceId":"A","channel":1}`, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g GestureRule
			require.NoError(t, json.Unmarshal([]byte(tt.in), &g))
			assert.Equal(t, tt.wantChannel, g.Channel)
			assert.Equal(t, tt.wantAction, g.Action)
			assert.Equal(t, "A", g.DeviceID)
		})
	}
}
