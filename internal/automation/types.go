package automation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fleet-core/internal/device"
)

// Operator is a threshold comparison.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
)

// AllOperators returns every supported operator.
func AllOperators() []Operator {
	return []Operator{OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual}
}

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// Condition compares one telemetry field of one device with a threshold.
type Condition struct {
	DeviceID  string   `json:"deviceId"`
	Parameter string   `json:"parameter"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
}

// Action is the channel command a rule issues.
type Action struct {
	DeviceID string `json:"deviceId"`
	Channel  int    `json:"channel"`
	On       bool   `json:"value"`
}

// UnmarshalJSON accepts channel/value and the dashboard's gpio/state. The
// value may be a boolean, 0/1 or on/off.
func (a *Action) UnmarshalJSON(b []byte) error {
	var raw struct {
		DeviceID string              `json:"deviceId"`
		Channel  *int                `json:"channel"`
		GPIO     *int                `json:"gpio"`
		Value    *device.SwitchState `json:"value"`
		State    *device.SwitchState `json:"state"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*a = Action{DeviceID: raw.DeviceID}
	switch {
	case raw.Channel != nil:
		a.Channel = *raw.Channel
	case raw.GPIO != nil:
		a.Channel = *raw.GPIO
	}
	switch {
	case raw.Value != nil:
		a.On = bool(*raw.Value)
	case raw.State != nil:
		a.On = bool(*raw.State)
	}
	return nil
}

// ConditionRule fires its Action on a false→true transition of its
// Condition.
type ConditionRule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`

	// AutoToggle additionally sends the channel OFF on a true→false
	// transition.
	AutoToggle bool `json:"autoToggle"`

	// LastState is the condition's value at the last evaluation that had
	// an online source device.
	LastState bool `json:"lastState"`

	CreatedAt   time.Time  `json:"createdAt"`
	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
}

// DeepCopy returns an independent copy of r.
func (r *ConditionRule) DeepCopy() *ConditionRule {
	if r == nil {
		return nil
	}
	cp := *r
	if r.LastFiredAt != nil {
		t := *r.LastFiredAt
		cp.LastFiredAt = &t
	}
	return &cp
}

// Gesture actions.
const (
	GestureOn  = "on"
	GestureOff = "off"
)

// GestureRule switches a channel whenever a gesture is recognised.
type GestureRule struct {
	ID        string    `json:"id"`
	Enabled   bool      `json:"enabled"`
	Gesture   string    `json:"gesture"`
	DeviceID  string    `json:"deviceId"`
	Channel   int       `json:"channel"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts channel or the dashboard's gpio. The action may be
// "on"/"off", a boolean or 0/1. Other strings are kept for validation to
// reject.
func (g *GestureRule) UnmarshalJSON(b []byte) error {
	type plain GestureRule
	var raw struct {
		plain
		Channel *int            `json:"channel"`
		GPIO    *int            `json:"gpio"`
		Action  json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*g = GestureRule(raw.plain)
	switch {
	case raw.Channel != nil:
		g.Channel = *raw.Channel
	case raw.GPIO != nil:
		g.Channel = *raw.GPIO
	}

	if len(raw.Action) == 0 || string(raw.Action) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw.Action, &v); err != nil {
		return err
	}
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case GestureOn, GestureOff:
			g.Action = strings.ToLower(strings.TrimSpace(s))
			return nil
		}
	}
	on, err := device.ParseSwitch(v)
	if err != nil {
		if s, ok := v.(string); ok {
			g.Action = s
			return nil
		}
		return fmt.Errorf("gesture action: %w", err)
	}
	g.Action = GestureOff
	if on {
		g.Action = GestureOn
	}
	return nil
}

// On reports whether the rule switches its channel on.
func (g *GestureRule) On() bool {
	return g.Action == GestureOn
}

// DeepCopy returns an independent copy of g.
func (g *GestureRule) DeepCopy() *GestureRule {
	if g == nil {
		return nil
	}
	cp := *g
	return &cp
}

// Rule kinds used in change notifications.
const (
	KindCondition = "condition"
	KindGesture   = "gesture"
)
