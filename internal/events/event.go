package events

import "time"

// Severity classifies an event for display and filtering.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Event is a single entry in the activity log.
type Event struct {
	ID        string         `json:"id"`
	Severity  Severity       `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Recorder is the write side of the activity log. Components depend on this
// rather than on *Log so tests can capture what they emit.
type Recorder interface {
	Record(severity Severity, message string, data map[string]any) Event
}

// RulesChanged is published on TopicRules after any rule mutation.
type RulesChanged struct {
	Kind   string `json:"kind"`
	RuleID string `json:"rule_id"`
	Op     string `json:"op"`
}

// DeviceChanged is published on TopicDevices when a device first appears or
// changes presence.
type DeviceChanged struct {
	Key    string `json:"id"`
	Online bool   `json:"online"`
	Op     string `json:"op"`
}

type noopRecorder struct{}

func (noopRecorder) Record(severity Severity, message string, data map[string]any) Event {
	return Event{Severity: severity, Message: message, Data: data, Timestamp: time.Now()}
}

// Discard is a Recorder that keeps nothing.
var Discard Recorder = noopRecorder{}
