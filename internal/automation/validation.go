package automation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/fleet-core/internal/device"
)

const (
	maxNameLength    = 100
	maxGestureLength = 50
)

// ValidateConditionRule checks a rule before it is stored.
func ValidateConditionRule(r *ConditionRule, maxChannels int) error {
	if r == nil {
		return ErrInvalidRule
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRule, maxNameLength)
	}

	if device.Normalize(r.Condition.DeviceID) == "" {
		return fmt.Errorf("%w: condition device is required", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Condition.Parameter) == "" {
		return fmt.Errorf("%w: condition parameter is required", ErrInvalidRule)
	}
	if !r.Condition.Operator.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRule, ErrInvalidOperator, r.Condition.Operator)
	}

	return validateTarget(r.Action.DeviceID, r.Action.Channel, maxChannels)
}

// ValidateGestureRule checks a gesture rule before it is stored.
func ValidateGestureRule(g *GestureRule, maxChannels int) error {
	if g == nil {
		return ErrInvalidRule
	}

	gesture := strings.TrimSpace(g.Gesture)
	if gesture == "" {
		return fmt.Errorf("%w: gesture is required", ErrInvalidRule)
	}
	if len(gesture) > maxGestureLength {
		return fmt.Errorf("%w: gesture exceeds %d characters", ErrInvalidRule, maxGestureLength)
	}
	if g.Action != GestureOn && g.Action != GestureOff {
		return fmt.Errorf("%w: action must be %q or %q", ErrInvalidRule, GestureOn, GestureOff)
	}

	return validateTarget(g.DeviceID, g.Channel, maxChannels)
}

func validateTarget(deviceID string, channel, maxChannels int) error {
	if device.Normalize(deviceID) == "" {
		return fmt.Errorf("%w: action device is required", ErrInvalidRule)
	}
	if channel < 1 || channel > maxChannels {
		return fmt.Errorf("%w: channel must be between 1 and %d", ErrInvalidRule, maxChannels)
	}
	return nil
}

// GenerateID returns a new rule identifier.
func GenerateID() string {
	return uuid.New().String()
}
