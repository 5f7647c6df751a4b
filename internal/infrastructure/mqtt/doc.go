// Package mqtt provides MQTT client connectivity for Fleet Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS and per-call deadlines
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for core presence
//
// # Architecture
//
// Devices and the core never talk directly; the broker decouples them.
//
//	devices ──telemetry/status──► broker ──► Fleet Core
//	devices ◄──gpio/set────────── broker ◄── Fleet Core
//
// Topic builders live in topics.go so every component agrees on naming.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        return router.Handle(topic, payload)
//	    })
//
//	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
//	defer cancel()
//	err = client.PublishContext(ctx, mqtt.Topics{}.GPIOSet("ESP32-IOT-ACTUATOR-01"), payload, 1, false)
package mqtt
