// Package device provides the Device Registry for Fleet Core.
//
// The registry is the in-memory catalogue of every device that has ever
// spoken on the broker. Devices are keyed by a normalised identifier so the
// different spellings firmware uses for the same board collapse onto a
// single entry:
//
//	"esp32-iot-sensor-ab12"  ─┐
//	"ESP32-IOT-SENSOR-AB12"  ─┼─►  SENSOR-AB12
//	"SENSOR-AB12"            ─┘
//
// # Presence
//
// Only the time a device was last heard from is stored. Whether it is online
// is derived on every read as now-lastSeen < timeout, so a reader can never
// observe a stale flag. A background sweep compares the derived value with
// what it saw on the previous pass and records an event on each
// transition. Devices are never evicted.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Returned devices are
// deep copies.
package device
