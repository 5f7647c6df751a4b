package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
)

// Devices is the registry surface the engine reads telemetry from.
type Devices interface {
	Get(id string) (*device.Device, error)
}

// Actuator switches output channels. It is implemented by actuation.Sink.
type Actuator interface {
	Apply(ctx context.Context, deviceID string, channel int, on bool) error
}

// Logger defines the logging interface used by the Engine.
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

// DefaultInterval is the evaluation period used when none is configured.
const DefaultInterval = 2 * time.Second

// Config configures an Engine. Zero values select defaults.
type Config struct {
	Interval    time.Duration
	Epsilon     float64
	MaxChannels int
}

// Engine evaluates condition and gesture rules and dispatches their actions.
type Engine struct {
	devices  Devices
	actuator Actuator

	mu         sync.RWMutex
	conditions []*ConditionRule
	gestures   []*GestureRule

	interval    time.Duration
	epsilon     float64
	maxChannels int
	now         func() time.Time

	logger   Logger
	recorder events.Recorder
	bus      *events.Bus

	running  bool
	runMu    sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewEngine creates an engine with no rules.
func NewEngine(devices Devices, actuator Actuator, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = device.DefaultMaxChannels
	}
	return &Engine{
		devices:     devices,
		actuator:    actuator,
		interval:    cfg.Interval,
		epsilon:     cfg.Epsilon,
		maxChannels: cfg.MaxChannels,
		now:         time.Now,
		logger:      noopLogger{},
		recorder:    events.Discard,
		done:        make(chan struct{}),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetRecorder sets where rule and firing events are recorded.
func (e *Engine) SetRecorder(rec events.Recorder) {
	e.recorder = rec
}

// SetBus sets the bus that receives RulesChanged notifications.
func (e *Engine) SetBus(bus *events.Bus) {
	e.bus = bus
}

// SetClock replaces the time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start runs Tick on the configured interval until ctx is cancelled or Stop
// is called.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	e.running = true
	e.runMu.Unlock()

	e.wg.Add(1)
	go e.loop(ctx)

	e.logger.Info("automation engine started", "interval", e.interval)
	e.recorder.Record(events.SeverityInfo, "Automation engine started", nil)
}

// Stop halts evaluation and waits for an in-progress tick to finish. Safe
// to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		e.markStopped()
	})
}

// markStopped clears the running flag and records the stop event. Only the
// first call after Start records anything, whichever of ctx cancellation or
// Stop ends the loop.
func (e *Engine) markStopped() {
	e.runMu.Lock()
	wasRunning := e.running
	e.running = false
	e.runMu.Unlock()

	if wasRunning {
		e.logger.Info("automation engine stopped")
		e.recorder.Record(events.SeverityInfo, "Automation engine stopped", nil)
	}
}

// Running reports whether the evaluation loop is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.markStopped()
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// =============================================================================
// Evaluation
// =============================================================================

// firing is an action selected for dispatch.
type firing struct {
	ruleID string
	name   string
	action Action
	off    bool
}

// Tick evaluates every enabled condition rule once and dispatches the
// resulting actions. It returns the number of actions dispatched.
func (e *Engine) Tick(ctx context.Context) int {
	firings := e.evaluate()
	for _, f := range firings {
		e.dispatchCondition(ctx, f)
	}
	return len(firings)
}

func (e *Engine) evaluate() []firing {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []firing
	for _, r := range e.conditions {
		if !r.Enabled {
			continue
		}

		d, err := e.devices.Get(r.Condition.DeviceID)
		if err != nil || !d.Online {
			// Skipped without touching LastState: a device that drops off
			// and returns does not produce a spurious transition.
			continue
		}

		met := r.Condition.Evaluate(d.Telemetry, e.epsilon)
		prev := r.LastState
		r.LastState = met

		switch {
		case met && !prev:
			out = append(out, firing{ruleID: r.ID, name: r.Name, action: r.Action})
		case !met && prev && r.AutoToggle:
			off := r.Action
			off.On = false
			out = append(out, firing{ruleID: r.ID, name: r.Name, action: off, off: true})
		}
	}
	return out
}

func (e *Engine) dispatchCondition(ctx context.Context, f firing) {
	err := e.actuator.Apply(ctx, f.action.DeviceID, f.action.Channel, f.action.On)
	if err != nil {
		e.logger.Warn("automation action failed",
			"rule_id", f.ruleID,
			"rule", f.name,
			"device", f.action.DeviceID,
			"gpio", f.action.Channel,
			"error", err,
		)
		return
	}

	e.markFired(f.ruleID)

	if f.off {
		e.logger.Info("auto-toggle off", "rule_id", f.ruleID, "rule", f.name)
		e.recorder.Record(events.SeverityInfo, "Auto-toggle OFF: "+f.name,
			map[string]any{"rule_id": f.ruleID, "device": f.action.DeviceID, "gpio": f.action.Channel})
		return
	}

	e.logger.Info("automation fired", "rule_id", f.ruleID, "rule", f.name)
	e.recorder.Record(events.SeveritySuccess, "Automation: "+f.name,
		map[string]any{"rule_id": f.ruleID, "device": f.action.DeviceID, "gpio": f.action.Channel, "state": f.action.On})
}

func (e *Engine) markFired(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r := e.findCondition(id); r != nil {
		t := e.now().UTC()
		r.LastFiredAt = &t
	}
}

// HandleGesture fires every enabled gesture rule matching label. It returns
// the number of rules whose action succeeded.
func (e *Engine) HandleGesture(ctx context.Context, label string) int {
	label = strings.TrimSpace(label)

	e.mu.RLock()
	var matched []GestureRule
	for _, g := range e.gestures {
		if g.Enabled && g.Gesture == label {
			matched = append(matched, *g)
		}
	}
	e.mu.RUnlock()

	fired := 0
	for _, g := range matched {
		if err := e.actuator.Apply(ctx, g.DeviceID, g.Channel, g.On()); err != nil {
			e.logger.Warn("gesture action failed",
				"rule_id", g.ID,
				"gesture", label,
				"device", g.DeviceID,
				"error", err,
			)
			continue
		}
		fired++
		e.recorder.Record(events.SeveritySuccess,
			fmt.Sprintf("Gesture: %s → GPIO%d %s", label, g.Channel, strings.ToUpper(g.Action)),
			map[string]any{"rule_id": g.ID, "device": g.DeviceID})
	}
	return fired
}

// =============================================================================
// Condition rule CRUD
// =============================================================================

// AddConditionRule validates and stores a new rule. The rule is assigned an
// ID, enabled, and starts with LastState false.
func (e *Engine) AddConditionRule(r ConditionRule) (*ConditionRule, error) {
	if err := ValidateConditionRule(&r, e.maxChannels); err != nil {
		return nil, err
	}

	r.ID = GenerateID()
	r.Name = strings.TrimSpace(r.Name)
	r.Condition.DeviceID = device.Normalize(r.Condition.DeviceID)
	r.Condition.Parameter = strings.TrimSpace(r.Condition.Parameter)
	r.Action.DeviceID = device.Normalize(r.Action.DeviceID)
	r.Enabled = true
	r.LastState = false
	r.LastFiredAt = nil

	e.mu.Lock()
	r.CreatedAt = e.now().UTC()
	stored := r.DeepCopy()
	e.conditions = append(e.conditions, stored)
	out := stored.DeepCopy()
	e.mu.Unlock()

	e.logger.Info("automation rule added", "rule_id", out.ID, "rule", out.Name)
	e.recorder.Record(events.SeveritySuccess, "Automation rule added: "+out.Name, map[string]any{"rule_id": out.ID})
	e.notify(KindCondition, out.ID, "created")
	return out, nil
}

// RemoveConditionRule deletes a rule.
func (e *Engine) RemoveConditionRule(id string) error {
	e.mu.Lock()
	idx := -1
	for i, r := range e.conditions {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	name := e.conditions[idx].Name
	e.conditions = append(e.conditions[:idx], e.conditions[idx+1:]...)
	e.mu.Unlock()

	e.logger.Info("automation rule removed", "rule_id", id)
	e.recorder.Record(events.SeverityInfo, "Automation rule removed: "+name, map[string]any{"rule_id": id})
	e.notify(KindCondition, id, "deleted")
	return nil
}

// ToggleConditionRule flips a rule's enabled flag.
func (e *Engine) ToggleConditionRule(id string) (*ConditionRule, error) {
	return e.setConditionEnabled(id, func(cur bool) bool { return !cur })
}

// SetConditionRuleEnabled sets a rule's enabled flag.
func (e *Engine) SetConditionRuleEnabled(id string, enabled bool) (*ConditionRule, error) {
	return e.setConditionEnabled(id, func(bool) bool { return enabled })
}

func (e *Engine) setConditionEnabled(id string, next func(bool) bool) (*ConditionRule, error) {
	e.mu.Lock()
	r := e.findCondition(id)
	if r == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	r.Enabled = next(r.Enabled)
	out := r.DeepCopy()
	e.mu.Unlock()

	e.recorder.Record(events.SeverityInfo,
		fmt.Sprintf("Automation %s: %s", enabledWord(out.Enabled), out.Name),
		map[string]any{"rule_id": out.ID})
	e.notify(KindCondition, out.ID, "updated")
	return out, nil
}

// GetConditionRule returns a copy of one rule.
func (e *Engine) GetConditionRule(id string) (*ConditionRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.findCondition(id)
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return r.DeepCopy(), nil
}

// ListConditionRules returns copies of every rule in creation order.
func (e *Engine) ListConditionRules() []*ConditionRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*ConditionRule, 0, len(e.conditions))
	for _, r := range e.conditions {
		out = append(out, r.DeepCopy())
	}
	return out
}

// findCondition returns the stored rule. Caller holds mu.
func (e *Engine) findCondition(id string) *ConditionRule {
	for _, r := range e.conditions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// =============================================================================
// Gesture rule CRUD
// =============================================================================

// AddGestureRule validates and stores a new gesture rule, enabled.
func (e *Engine) AddGestureRule(g GestureRule) (*GestureRule, error) {
	g.Action = strings.ToLower(strings.TrimSpace(g.Action))
	if err := ValidateGestureRule(&g, e.maxChannels); err != nil {
		return nil, err
	}

	g.ID = GenerateID()
	g.Gesture = strings.TrimSpace(g.Gesture)
	g.DeviceID = device.Normalize(g.DeviceID)
	g.Enabled = true

	e.mu.Lock()
	g.CreatedAt = e.now().UTC()
	stored := g.DeepCopy()
	e.gestures = append(e.gestures, stored)
	out := stored.DeepCopy()
	e.mu.Unlock()

	e.logger.Info("gesture rule added", "rule_id", out.ID, "gesture", out.Gesture)
	e.recorder.Record(events.SeveritySuccess, "Gesture rule added: "+out.Gesture, map[string]any{"rule_id": out.ID})
	e.notify(KindGesture, out.ID, "created")
	return out, nil
}

// RemoveGestureRule deletes a gesture rule.
func (e *Engine) RemoveGestureRule(id string) error {
	e.mu.Lock()
	idx := -1
	for i, g := range e.gestures {
		if g.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	gesture := e.gestures[idx].Gesture
	e.gestures = append(e.gestures[:idx], e.gestures[idx+1:]...)
	e.mu.Unlock()

	e.recorder.Record(events.SeverityInfo, "Gesture rule removed: "+gesture, map[string]any{"rule_id": id})
	e.notify(KindGesture, id, "deleted")
	return nil
}

// ToggleGestureRule flips a gesture rule's enabled flag.
func (e *Engine) ToggleGestureRule(id string) (*GestureRule, error) {
	return e.setGestureEnabled(id, func(cur bool) bool { return !cur })
}

// SetGestureRuleEnabled sets a gesture rule's enabled flag.
func (e *Engine) SetGestureRuleEnabled(id string, enabled bool) (*GestureRule, error) {
	return e.setGestureEnabled(id, func(bool) bool { return enabled })
}

func (e *Engine) setGestureEnabled(id string, next func(bool) bool) (*GestureRule, error) {
	e.mu.Lock()
	g := e.findGesture(id)
	if g == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	g.Enabled = next(g.Enabled)
	out := g.DeepCopy()
	e.mu.Unlock()

	e.recorder.Record(events.SeverityInfo,
		fmt.Sprintf("Gesture rule %s: %s", enabledWord(out.Enabled), out.Gesture),
		map[string]any{"rule_id": out.ID})
	e.notify(KindGesture, out.ID, "updated")
	return out, nil
}

// GetGestureRule returns a copy of one gesture rule.
func (e *Engine) GetGestureRule(id string) (*GestureRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g := e.findGesture(id)
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return g.DeepCopy(), nil
}

// ListGestureRules returns copies of every gesture rule in creation order.
func (e *Engine) ListGestureRules() []*GestureRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*GestureRule, 0, len(e.gestures))
	for _, g := range e.gestures {
		out = append(out, g.DeepCopy())
	}
	return out
}

func (e *Engine) findGesture(id string) *GestureRule {
	for _, g := range e.gestures {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (e *Engine) notify(kind, id, op string) {
	if e.bus != nil {
		e.bus.Publish(events.TopicRules, events.RulesChanged{Kind: kind, RuleID: id, Op: op})
	}
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
