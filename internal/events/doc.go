// Package events provides the activity log and in-process event bus.
//
// The Log is a bounded ring of the most recent events, newest first. Every
// recorded event is also published on the Bus so the journal, the WebSocket
// hub and any other listener can react without polling.
//
//	log := events.NewLog(100)
//	log.SetBus(bus)
//	log.Record(events.SeverityWarning, "Device offline: SENSOR-AB12", nil)
//
// Bus topics carry typed payloads: TopicEvent carries Event, TopicRules
// carries RulesChanged and TopicDevices carries DeviceChanged.
package events
