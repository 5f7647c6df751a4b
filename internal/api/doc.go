// Package api implements the HTTP REST API and WebSocket server for the fleet
// core.
//
// This package provides:
//   - REST endpoints for the device registry and channel commands
//   - Condition and gesture rule management
//   - The activity log and its persistent journal
//   - WebSocket hub relaying bus traffic to live dashboards
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API sits beside the MQTT router: both feed the same registry and
// automation engine. Commands flow from the API through the action sink to
// devices, and everything recorded on the event bus is pushed to WebSocket
// clients that subscribed to its channel.
//
// # Usage
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Thread Safety
//
// All Server and Hub methods are safe for concurrent use.
package api
