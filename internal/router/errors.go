package router

import "errors"

var (
	// ErrParse is returned when a payload that must be JSON is not.
	ErrParse = errors.New("router: parse error")

	// ErrRouting is returned when a topic does not match any known shape.
	ErrRouting = errors.New("router: unroutable topic")
)
