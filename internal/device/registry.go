package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/fleet-core/internal/events"
)

// Logger defines the logging interface used by the Registry.
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

// Defaults applied by NewRegistry for zero Config fields.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultSweepInterval = time.Second
	DefaultMaxChannels   = 8
)

// Config configures a Registry.
type Config struct {
	// Timeout is how long a device may be silent and still count as online.
	Timeout time.Duration

	// SweepInterval is the period of the background presence sweep.
	SweepInterval time.Duration

	// MaxChannels is the highest valid output channel number.
	MaxChannels int
}

// Registry tracks every device seen on the broker.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device

	// swept holds the presence each device had at the last sweep, so the
	// sweep only reports transitions.
	swept map[string]bool

	timeout     time.Duration
	interval    time.Duration
	maxChannels int
	now         func() time.Time

	logger   Logger
	recorder events.Recorder
	bus      *events.Bus

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = DefaultMaxChannels
	}
	return &Registry{
		devices:     make(map[string]*Device),
		swept:       make(map[string]bool),
		timeout:     cfg.Timeout,
		interval:    cfg.SweepInterval,
		maxChannels: cfg.MaxChannels,
		now:         time.Now,
		logger:      noopLogger{},
		recorder:    events.Discard,
		done:        make(chan struct{}),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder sets where discovery and presence events are recorded.
func (r *Registry) SetRecorder(rec events.Recorder) {
	r.recorder = rec
}

// SetBus sets the bus that receives DeviceChanged notifications.
func (r *Registry) SetBus(bus *events.Bus) {
	r.bus = bus
}

// SetClock replaces the time source. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Timeout returns the presence timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// MaxChannels returns the highest valid output channel number.
func (r *Registry) MaxChannels() int {
	return r.maxChannels
}

// Upsert records a telemetry snapshot from the device identified by rawID.
//
// The device is created on first sight. Its telemetry is replaced, not
// merged, and its last-seen time is refreshed.
func (r *Registry) Upsert(rawID string, telemetry map[string]any) (*Device, error) {
	if telemetry == nil {
		telemetry = map[string]any{}
	}
	return r.observe(rawID, true, func(d *Device) {
		d.Telemetry = copyMap(telemetry)
	})
}

// Touch records that the device is alive without changing its telemetry.
// status is the opaque text the device sent and may be empty.
func (r *Registry) Touch(rawID, status string) (*Device, error) {
	return r.observe(rawID, true, func(d *Device) {
		if status != "" {
			d.Status = status
		}
	})
}

// Discover registers a device if it is unknown. Known devices are left
// untouched, including their last-seen time.
func (r *Registry) Discover(rawID string) (*Device, error) {
	return r.observe(rawID, false, nil)
}

// observe is the common path for every inbound message. refresh controls
// whether an existing device's last-seen time moves.
func (r *Registry) observe(rawID string, refresh bool, mutate func(*Device)) (*Device, error) {
	key := Normalize(rawID)
	if key == "" {
		return nil, ErrInvalidID
	}

	r.mu.Lock()
	now := r.now()
	d, exists := r.devices[key]
	if !exists {
		d = &Device{
			Key:         key,
			OriginalID:  rawID,
			Name:        DisplayName(rawID),
			Class:       ClassOf(rawID),
			Telemetry:   map[string]any{},
			Channels:    make(map[int]bool),
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		r.devices[key] = d
		r.swept[key] = true
	}
	if exists && refresh {
		d.LastSeenAt = now
	}
	if mutate != nil {
		mutate(d)
	}
	out := r.snapshot(d, now)
	r.mu.Unlock()

	if !exists {
		r.logger.Info("device discovered", "key", key, "original_id", rawID, "class", out.Class)
		r.recorder.Record(events.SeveritySuccess,
			fmt.Sprintf("New %s connected: %s", out.Class, rawID),
			map[string]any{"id": key, "type": string(out.Class)})
		r.notify(key, true, "discovered")
	}

	return out, nil
}

// Get returns the device with the given key. Raw identifiers are accepted
// and normalised.
func (r *Registry) Get(id string) (*Device, error) {
	key := Normalize(id)

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return r.snapshot(d, r.now()), nil
}

// List returns every device sorted by key.
func (r *Registry) List() []*Device {
	return r.filter(func(*Device) bool { return true })
}

// ListByClass returns every device of the given class sorted by key.
func (r *Registry) ListByClass(class Class) []*Device {
	return r.filter(func(d *Device) bool { return d.Class == class })
}

func (r *Registry) filter(keep func(*Device) bool) []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		if keep(d) {
			out = append(out, r.snapshot(d, now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetChannelState records the state of an output channel after a
// successful command.
func (r *Registry) SetChannelState(id string, channel int, on bool) error {
	if channel < 1 || channel > r.maxChannels {
		return fmt.Errorf("%w: %d (valid 1-%d)", ErrInvalidChannel, channel, r.maxChannels)
	}

	key := Normalize(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if d.Channels == nil {
		d.Channels = make(map[int]bool)
	}
	d.Channels[channel] = on
	return nil
}

// Stats returns device counts with presence evaluated now.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var s Stats
	for _, d := range r.devices {
		s.Total++
		if r.isOnline(d, now) {
			s.Online++
		}
		switch d.Class {
		case ClassSensor:
			s.Sensors++
		case ClassActuator:
			s.Actuators++
		}
	}
	return s
}

// snapshot returns a deep copy with Online derived at now. Caller holds mu.
func (r *Registry) snapshot(d *Device, now time.Time) *Device {
	cp := d.DeepCopy()
	cp.Online = r.isOnline(d, now)
	return cp
}

func (r *Registry) isOnline(d *Device, now time.Time) bool {
	return now.Sub(d.LastSeenAt) < r.timeout
}

func (r *Registry) notify(key string, online bool, op string) {
	if r.bus != nil {
		r.bus.Publish(events.TopicDevices, events.DeviceChanged{Key: key, Online: online, Op: op})
	}
}

// =============================================================================
// Presence sweep
// =============================================================================

// Transition is a presence change observed by Sweep.
type Transition struct {
	Key    string
	Name   string
	Online bool
}

// Sweep evaluates every device's presence once and reports the devices
// whose presence changed since the previous sweep. Nothing is evicted.
func (r *Registry) Sweep() []Transition {
	r.mu.Lock()
	now := r.now()
	var changed []Transition
	for key, d := range r.devices {
		online := r.isOnline(d, now)
		if r.swept[key] != online {
			r.swept[key] = online
			changed = append(changed, Transition{Key: key, Name: d.Name, Online: online})
		}
	}
	r.mu.Unlock()

	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	for _, t := range changed {
		if t.Online {
			r.logger.Info("device back online", "key", t.Key)
			r.recorder.Record(events.SeverityInfo, "Device back online: "+t.Name, map[string]any{"id": t.Key})
			r.notify(t.Key, true, "online")
			continue
		}
		r.logger.Warn("device offline", "key", t.Key, "timeout", r.timeout)
		r.recorder.Record(events.SeverityWarning, "Device offline: "+t.Name, map[string]any{"id": t.Key})
		r.notify(t.Key, false, "offline")
	}

	return changed
}

// Start runs Sweep on the configured interval until ctx is cancelled or
// Stop is called.
func (r *Registry) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.sweepLoop(ctx)
}

// Stop halts the sweep and waits for it to exit. Safe to call more than
// once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Registry) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
