package automation

import "errors"

// Domain errors for the automation package.
//
//	if errors.Is(err, automation.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("automation: invalid rule")

	// ErrInvalidOperator is returned for an unsupported comparison operator.
	ErrInvalidOperator = errors.New("automation: invalid operator")
)
