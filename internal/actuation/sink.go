package actuation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/infrastructure/mqtt"
)

// DefaultPublishTimeout bounds a single command publish.
const DefaultPublishTimeout = 3 * time.Second

// Publisher sends a message to the broker, giving up when ctx is done.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Devices is the registry surface the sink needs.
type Devices interface {
	Get(id string) (*device.Device, error)
	SetChannelState(id string, channel int, on bool) error
	MaxChannels() int
}

// History receives every successful actuation. It is optional.
type History interface {
	WriteActuation(key string, channel int, on bool, at time.Time)
}

// Logger defines the logging interface used by the Sink.
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

// Command is the JSON body of a gpio/set message.
type Command struct {
	Type  string `json:"type"`
	Pin   int    `json:"pin"`
	State bool   `json:"state"`
}

// Sink publishes channel commands to devices.
//
// Sink is safe for concurrent use.
type Sink struct {
	devices   Devices
	publisher Publisher
	timeout   time.Duration
	qos       byte

	history  History
	recorder events.Recorder
	logger   Logger
}

// Options configures a Sink. Zero values select defaults.
type Options struct {
	PublishTimeout time.Duration
	QoS            byte
}

// NewSink creates a Sink.
func NewSink(devices Devices, publisher Publisher, opts Options) *Sink {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	return &Sink{
		devices:   devices,
		publisher: publisher,
		timeout:   opts.PublishTimeout,
		qos:       opts.QoS,
		recorder:  events.Discard,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the sink.
func (s *Sink) SetLogger(logger Logger) {
	s.logger = logger
}

// SetRecorder sets where actuation events are recorded.
func (s *Sink) SetRecorder(rec events.Recorder) {
	s.recorder = rec
}

// SetHistory sets the optional actuation history writer.
func (s *Sink) SetHistory(h History) {
	s.history = h
}

// Apply switches channel on deviceID to on.
//
// It fails fast with ErrTargetUnavailable when the device is unknown or
// offline, and with ErrPublishFailed when the broker does not accept the
// command within the publish timeout.
func (s *Sink) Apply(ctx context.Context, deviceID string, channel int, on bool) error {
	limit := s.devices.MaxChannels()
	if channel < 1 || channel > limit {
		return fmt.Errorf("%w: %d (valid 1-%d)", ErrInvalidChannel, channel, limit)
	}

	d, err := s.devices.Get(deviceID)
	if err != nil {
		s.logger.Warn("actuation target not found", "device", deviceID, "channel", channel)
		s.recorder.Record(events.SeverityWarning, "Device not found: "+deviceID, nil)
		return fmt.Errorf("%w: %w", ErrTargetUnavailable, err)
	}
	if !d.Online {
		s.logger.Warn("actuation target offline", "device", d.Key, "channel", channel)
		s.recorder.Record(events.SeverityWarning, "Device offline: "+d.Name, map[string]any{"id": d.Key})
		return fmt.Errorf("%w: %s is offline", ErrTargetUnavailable, d.Key)
	}

	payload, err := json.Marshal(Command{Type: "gpio", Pin: channel, State: on})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := mqtt.Topics{}.GPIOSet(d.OriginalID)

	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.PublishContext(pubCtx, topic, payload, s.qos, false); err != nil {
		s.logger.Error("actuation publish failed",
			"device", d.Key,
			"topic", topic,
			"channel", channel,
			"error", err,
		)
		s.recorder.Record(events.SeverityError, "Failed to switch GPIO on "+d.Name,
			map[string]any{"id": d.Key, "gpio": channel, "error": err.Error()})
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if err := s.devices.SetChannelState(d.Key, channel, on); err != nil {
		s.logger.Warn("channel state not cached", "device", d.Key, "channel", channel, "error", err)
	}

	s.logger.Info("channel switched", "device", d.Key, "channel", channel, "on", on)
	s.recorder.Record(events.SeveritySuccess,
		fmt.Sprintf("GPIO %d → %s on %s", channel, onOff(on), d.Name),
		map[string]any{"id": d.Key, "gpio": channel, "state": on})

	if s.history != nil {
		s.history.WriteActuation(d.Key, channel, on, time.Now())
	}

	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
