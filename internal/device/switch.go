package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SwitchState is a channel state that decodes from a JSON boolean, a
// number (non-zero is on), or one of "on", "off", "1", "0", "true",
// "false". Dashboards post all of these.
type SwitchState bool

// UnmarshalJSON implements json.Unmarshaler.
func (s *SwitchState) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	on, err := ParseSwitch(v)
	if err != nil {
		return err
	}
	*s = SwitchState(on)
	return nil
}

// ParseSwitch interprets a decoded JSON value as a channel state.
func ParseSwitch(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "on", "true":
			return true, nil
		case "0", "off", "false":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q", ErrInvalidState, t)
	}
	return false, ErrInvalidState
}
