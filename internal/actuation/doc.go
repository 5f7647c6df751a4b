// Package actuation turns a channel command into an MQTT publish.
//
// The Sink is the single place that switches outputs: the automation engine,
// gesture rules and the HTTP API all go through Sink.Apply. A command is
// only sent to a device the registry currently considers online, it is
// addressed with the identifier the device itself used, and the registry's
// channel state is only updated once the broker accepts the publish.
//
//	Apply(ctx, "ACTUATOR-BEEF", 3, true)
//	  → device/ESP32-IOT-ACTUATOR-BEEF/gpio/set  {"type":"gpio","pin":3,"state":true}
//
// There is no retry. A publish that errors or outlives the timeout is
// reported as ErrPublishFailed and leaves the cached state unchanged.
package actuation
