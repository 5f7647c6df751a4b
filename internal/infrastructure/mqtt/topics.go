package mqtt

import "fmt"

// Topic roots used by the device firmware and by the core itself.
//
// Firmware publishes under "devices/{id}/..." but a legacy status path and
// the command path use the singular "device/{id}/...".
const (
	TopicRootDevices = "devices"
	TopicRootDevice  = "device"
	TopicRootGesture = "gestures"
	TopicRootSystem  = "fleetcore/system"
)

// Leaf segments of per-device topics.
const (
	LeafTelemetry   = "telemetry"
	LeafStatus      = "status"
	LeafDiagnostics = "diagnostics"
	LeafPair        = "pair"
	LeafGPIO        = "gpio"
	LeafSet         = "set"
	LeafDetected    = "detected"
)

// Topics provides builders for Fleet Core MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Telemetry("ESP32-IOT-SENSOR-AB12")
//	// Returns: "devices/ESP32-IOT-SENSOR-AB12/telemetry"
type Topics struct{}

// Telemetry returns the topic a device publishes sensor readings on.
func (Topics) Telemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRootDevices, deviceID, LeafTelemetry)
}

// Status returns the topic a device publishes status on.
func (Topics) Status(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRootDevices, deviceID, LeafStatus)
}

// LegacyStatus returns the singular-root status topic used by older firmware.
func (Topics) LegacyStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRootDevice, deviceID, LeafStatus)
}

// Diagnostics returns the topic a device publishes diagnostics on.
func (Topics) Diagnostics(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRootDevices, deviceID, LeafDiagnostics)
}

// Pair returns the topic a device announces itself on after pairing.
func (Topics) Pair(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicRootDevices, deviceID, LeafPair)
}

// GPIOSet returns the command topic for switching an output channel.
// deviceID must be the identifier exactly as the device spelled it.
//
// Example: device/ESP32-IOT-ACTUATOR-01/gpio/set
func (Topics) GPIOSet(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicRootDevice, deviceID, LeafGPIO, LeafSet)
}

// GestureDetected returns the topic the gesture recogniser publishes on.
func (Topics) GestureDetected() string {
	return TopicRootGesture + "/" + LeafDetected
}

// SystemStatus returns the retained core presence topic.
func (Topics) SystemStatus() string {
	return TopicRootSystem + "/status"
}

// =============================================================================
// Wildcard subscriptions
// =============================================================================

// AllTelemetry matches telemetry from every device.
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/+/%s", TopicRootDevices, LeafTelemetry)
}

// AllStatus matches status from every device.
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+/%s", TopicRootDevices, LeafStatus)
}

// AllLegacyStatus matches singular-root status from every device.
func (Topics) AllLegacyStatus() string {
	return fmt.Sprintf("%s/+/%s", TopicRootDevice, LeafStatus)
}

// AllDiagnostics matches diagnostics from every device.
func (Topics) AllDiagnostics() string {
	return fmt.Sprintf("%s/+/%s", TopicRootDevices, LeafDiagnostics)
}

// AllPair matches pairing announcements from every device.
func (Topics) AllPair() string {
	return fmt.Sprintf("%s/+/%s", TopicRootDevices, LeafPair)
}

// Inbound lists every pattern the core subscribes to.
func (t Topics) Inbound() []string {
	return []string{
		t.AllStatus(),
		t.AllTelemetry(),
		t.AllDiagnostics(),
		t.AllPair(),
		t.AllLegacyStatus(),
		t.GestureDetected(),
	}
}
