// Package router dispatches inbound MQTT messages to the device registry
// and the automation engine.
//
// Topics are classified by shape:
//
//	devices/{id}/telemetry     JSON object, replaces the device's telemetry
//	devices/{id}/status        JSON object as telemetry, or opaque text
//	device/{id}/status         same as above, older firmware
//	devices/{id}/diagnostics   registers the device if unknown
//	devices/{id}/pair          registers the device if unknown
//	gestures/detected          {"gesture": "...", "confidence": 0.93}
//
// Malformed input never reaches the registry. Handle reports it as ErrParse
// or ErrRouting, records an event and the message is dropped.
package router
