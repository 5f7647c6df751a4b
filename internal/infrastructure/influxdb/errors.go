package influxdb

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned after Close or before a successful Connect.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch write failures delivered to the error
	// callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrQueryFailed wraps Flux query and decode failures.
	ErrQueryFailed = errors.New("influxdb: query failed")
)
