// Package automation provides the rule engine for Fleet Core.
//
// Two kinds of rule drive the Action Sink:
//
//   - Condition rules compare one telemetry field of one device with a
//     threshold. They are edge-triggered: the action fires when the
//     comparison turns true, and (with AutoToggle) an OFF command fires
//     when it turns false again. A rule whose source device is missing or
//     offline is skipped for that tick and keeps its previous state.
//   - Gesture rules map a recognised hand gesture to a channel command.
//     They are stateless; every matching enabled rule fires per gesture.
//
// Architecture:
//
//	┌──────────────────────────── Engine ────────────────────────────┐
//	│  ticker (2s) ──► Tick ──► evaluate under lock ──► firings      │
//	│  HandleGesture ─────────► match under lock  ──► firings        │
//	│                                                    │           │
//	│                               dispatch (no lock) ◄─┘           │
//	└──────────────────────────────────────────────┬─────────────────┘
//	                                               ▼
//	                                        actuation.Sink
//
// # Thread Safety
//
// All Engine methods are safe for concurrent use. Rule state is guarded by
// one mutex which is never held while publishing.
package automation
