package device

import (
	"strings"
	"time"
)

// Class is the broad role of a device.
type Class string

const (
	// ClassSensor devices only report telemetry.
	ClassSensor Class = "sensor"

	// ClassActuator devices expose switchable output channels.
	ClassActuator Class = "actuator"
)

// ParseClass converts a filter string to a Class. The empty string and
// unknown values report false.
func ParseClass(s string) (Class, bool) {
	switch Class(strings.ToLower(s)) {
	case ClassSensor:
		return ClassSensor, true
	case ClassActuator:
		return ClassActuator, true
	}
	return "", false
}

// Device is the registry's view of one physical board.
type Device struct {
	// Key is the normalised identifier, e.g. "SENSOR-AB12".
	Key string `json:"id"`

	// OriginalID is the identifier exactly as first seen on the wire. It
	// is used to address commands back to the device.
	OriginalID string `json:"originalId"`

	Name  string `json:"name"`
	Class Class  `json:"type"`

	// Telemetry is the most recent snapshot. Each update replaces it.
	Telemetry map[string]any `json:"telemetry"`

	// Channels holds the last successfully commanded state per output.
	Channels map[int]bool `json:"channels,omitempty"`

	// Status is the last opaque status text the device sent, if any.
	Status string `json:"status,omitempty"`

	FirstSeenAt time.Time `json:"firstSeen"`
	LastSeenAt  time.Time `json:"lastSeen"`

	// Online is derived at read time and never stored.
	Online bool `json:"online"`
}

// DeepCopy returns an independent copy of d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Telemetry = copyMap(d.Telemetry)
	if d.Channels != nil {
		cp.Channels = make(map[int]bool, len(d.Channels))
		for k, v := range d.Channels {
			cp.Channels[k] = v
		}
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = copyValue(val[i])
		}
		return out
	default:
		return v
	}
}

// Stats summarises the registry.
type Stats struct {
	Total     int `json:"total"`
	Online    int `json:"online"`
	Sensors   int `json:"sensors"`
	Actuators int `json:"actuators"`
}
