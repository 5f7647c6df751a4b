package actuation

import "errors"

var (
	// ErrTargetUnavailable is returned when the device is unknown or offline.
	ErrTargetUnavailable = errors.New("actuation: target unavailable")

	// ErrPublishFailed is returned when the command could not be delivered
	// to the broker in time.
	ErrPublishFailed = errors.New("actuation: publish failed")

	// ErrInvalidChannel is returned for a channel outside the device range.
	ErrInvalidChannel = errors.New("actuation: invalid channel")
)
