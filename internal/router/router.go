package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/infrastructure/mqtt"
)

// topicSegments is the segment count of every per-device topic.
const topicSegments = 3

// Registry is the device registry surface the router writes to.
type Registry interface {
	Upsert(rawID string, telemetry map[string]any) (*device.Device, error)
	Touch(rawID, status string) (*device.Device, error)
	Discover(rawID string) (*device.Device, error)
}

// GestureHandler receives recognised gestures. It is implemented by
// automation.Engine.
type GestureHandler interface {
	HandleGesture(ctx context.Context, label string) int
}

// TelemetryRecorder receives every accepted telemetry snapshot.
type TelemetryRecorder interface {
	WriteTelemetry(key, class string, fields map[string]any, at time.Time)
}

// Subscriber subscribes a handler to topic patterns. It is implemented by
// *mqtt.Client.
type Subscriber interface {
	SubscribeAll(topics []string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// GestureMessage is the payload of gestures/detected.
type GestureMessage struct {
	Gesture    string   `json:"gesture"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Metrics are counters of messages seen by the router.
type Metrics struct {
	Received      uint64 `json:"received"`
	Accepted      uint64 `json:"accepted"`
	ParseErrors   uint64 `json:"parse_errors"`
	RoutingErrors uint64 `json:"routing_errors"`
}

// Router classifies inbound messages and applies them.
type Router struct {
	registry Registry
	gestures GestureHandler
	history  TelemetryRecorder
	recorder events.Recorder
	logger   Logger

	ctxMu sync.RWMutex
	ctx   context.Context

	received      atomic.Uint64
	accepted      atomic.Uint64
	parseErrors   atomic.Uint64
	routingErrors atomic.Uint64
}

// New creates a Router writing to registry.
func New(registry Registry) *Router {
	return &Router{
		registry: registry,
		recorder: events.Discard,
		logger:   noopLogger{},
		ctx:      context.Background(),
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets where routing events are recorded.
func (r *Router) SetRecorder(rec events.Recorder) {
	r.recorder = rec
}

// SetGestureHandler sets the consumer of gestures/detected messages.
func (r *Router) SetGestureHandler(h GestureHandler) {
	r.gestures = h
}

// SetTelemetryRecorder sets the optional telemetry history sink.
func (r *Router) SetTelemetryRecorder(h TelemetryRecorder) {
	r.history = h
}

// Subscribe subscribes the router to every inbound topic. ctx bounds the
// work handlers start, such as actions fired by a gesture.
func (r *Router) Subscribe(ctx context.Context, client Subscriber, qos byte) error {
	r.ctxMu.Lock()
	r.ctx = ctx
	r.ctxMu.Unlock()

	if err := client.SubscribeAll(mqtt.Topics{}.Inbound(), qos, r.Handle); err != nil {
		return fmt.Errorf("router subscribe: %w", err)
	}
	r.logger.Info("router subscribed", "topics", len(mqtt.Topics{}.Inbound()))
	return nil
}

// Metrics returns a snapshot of the message counters.
func (r *Router) Metrics() Metrics {
	return Metrics{
		Received:      r.received.Load(),
		Accepted:      r.accepted.Load(),
		ParseErrors:   r.parseErrors.Load(),
		RoutingErrors: r.routingErrors.Load(),
	}
}

// Handle is an mqtt.MessageHandler.
func (r *Router) Handle(topic string, payload []byte) error {
	r.ctxMu.RLock()
	ctx := r.ctx
	r.ctxMu.RUnlock()
	return r.HandleContext(ctx, topic, payload)
}

// HandleContext routes one message.
func (r *Router) HandleContext(ctx context.Context, topic string, payload []byte) error {
	r.received.Add(1)

	err := r.route(ctx, topic, payload)
	if err == nil {
		r.accepted.Add(1)
		return nil
	}
	r.reject(topic, err)
	return err
}

func (r *Router) route(ctx context.Context, topic string, payload []byte) error {
	if topic == (mqtt.Topics{}).GestureDetected() {
		return r.handleGesture(ctx, payload)
	}

	parts := strings.Split(topic, "/")
	if len(parts) != topicSegments {
		return fmt.Errorf("%w: %q has %d segments", ErrRouting, topic, len(parts))
	}
	root, id, leaf := parts[0], parts[1], parts[2]
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %q has an empty device id", ErrRouting, topic)
	}

	switch {
	case root == mqtt.TopicRootDevices && leaf == mqtt.LeafTelemetry:
		return r.handleTelemetry(id, payload)
	case (root == mqtt.TopicRootDevices || root == mqtt.TopicRootDevice) && leaf == mqtt.LeafStatus:
		return r.handleStatus(id, payload)
	case root == mqtt.TopicRootDevices && leaf == mqtt.LeafDiagnostics:
		return r.handleDiscovery(id, "Diagnostics", payload)
	case root == mqtt.TopicRootDevices && leaf == mqtt.LeafPair:
		return r.handleDiscovery(id, "Pairing request", payload)
	default:
		return fmt.Errorf("%w: %q", ErrRouting, topic)
	}
}

func (r *Router) reject(topic string, err error) {
	switch {
	case errors.Is(err, ErrParse):
		r.parseErrors.Add(1)
		r.logger.Warn("dropping unparseable message", "topic", topic, "error", err)
		r.recorder.Record(events.SeverityError, "Failed to parse message on "+topic,
			map[string]any{"topic": topic, "error": err.Error()})
	default:
		r.routingErrors.Add(1)
		r.logger.Warn("dropping unroutable message", "topic", topic, "error", err)
		r.recorder.Record(events.SeverityWarning, "Unroutable topic: "+topic,
			map[string]any{"topic": topic})
	}
}

// =============================================================================
// Per-topic handlers
// =============================================================================

func (r *Router) handleTelemetry(id string, payload []byte) error {
	fields, err := decodeObject(payload)
	if err != nil {
		return err
	}
	return r.handleTelemetryFields(id, fields)
}

func (r *Router) handleStatus(id string, payload []byte) error {
	if looksLikeObject(payload) {
		if fields, err := decodeObject(payload); err == nil {
			return r.handleTelemetryFields(id, fields)
		}
	}

	status := strings.TrimSpace(string(payload))
	d, err := r.registry.Touch(id, status)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRouting, err)
	}

	r.logger.Debug("status", "key", d.Key, "status", status)
	r.recorder.Record(events.SeverityInfo, fmt.Sprintf("Status from %s: %s", d.Name, status),
		map[string]any{"id": d.Key, "status": status})
	return nil
}

func (r *Router) handleTelemetryFields(id string, fields map[string]any) error {
	d, err := r.registry.Upsert(id, fields)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRouting, err)
	}

	r.logger.Debug("telemetry", "key", d.Key, "fields", len(fields))
	if r.history != nil {
		r.history.WriteTelemetry(d.Key, string(d.Class), fields, d.LastSeenAt)
	}
	return nil
}

func (r *Router) handleDiscovery(id, kind string, payload []byte) error {
	d, err := r.registry.Discover(id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRouting, err)
	}

	data := map[string]any{"id": d.Key}
	if fields, err := decodeObject(payload); err == nil {
		data["payload"] = fields
	} else if text := strings.TrimSpace(string(payload)); text != "" {
		data["payload"] = text
	}

	r.logger.Info(strings.ToLower(kind), "key", d.Key)
	r.recorder.Record(events.SeverityInfo, fmt.Sprintf("%s from %s", kind, d.Name), data)
	return nil
}

func (r *Router) handleGesture(ctx context.Context, payload []byte) error {
	var msg GestureMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: gesture: %w", ErrParse, err)
	}
	label := strings.TrimSpace(msg.Gesture)
	if label == "" {
		return fmt.Errorf("%w: gesture label missing", ErrParse)
	}

	data := map[string]any{"gesture": label}
	text := "Gesture detected: " + label
	if msg.Confidence != nil {
		data["confidence"] = *msg.Confidence
		text = fmt.Sprintf("Gesture detected: %s (%.0f%%)", label, *msg.Confidence*100)
	}
	r.recorder.Record(events.SeveritySuccess, text, data)

	if r.gestures != nil {
		fired := r.gestures.HandleGesture(ctx, label)
		r.logger.Debug("gesture handled", "gesture", label, "fired", fired)
	}
	return nil
}

// =============================================================================
// Payload helpers
// =============================================================================

// decodeObject parses a JSON object. Numbers are decoded as float64.
func decodeObject(payload []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrParse)
	}
	return fields, nil
}

func looksLikeObject(payload []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{"))
}
