package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device has the requested key.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidID is returned when a raw device identifier is empty.
	ErrInvalidID = errors.New("device: invalid identifier")

	// ErrInvalidChannel is returned for a channel number outside 1..max.
	ErrInvalidChannel = errors.New("device: invalid channel")

	// ErrInvalidState is returned when a channel state cannot be read as
	// on or off.
	ErrInvalidState = errors.New("device: invalid channel state")
)
