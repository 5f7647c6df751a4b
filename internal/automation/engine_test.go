package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
)

// ─── Test doubles ───────────────────────────────────────────────────

type applyCall struct {
	deviceID string
	channel  int
	on       bool
}

type fakeActuator struct {
	mu    sync.Mutex
	calls []applyCall
	err   error
}

func (a *fakeActuator) Apply(_ context.Context, deviceID string, channel int, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, applyCall{deviceID, channel, on})
	return a.err
}

func (a *fakeActuator) Calls() []applyCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]applyCall(nil), a.calls...)
}

type captureRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *captureRecorder) Record(sev events.Severity, msg string, data map[string]any) events.Event {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return events.Event{Severity: sev, Message: msg, Data: data}
}

func (r *captureRecorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type fixture struct {
	engine   *Engine
	registry *device.Registry
	actuator *fakeActuator
	recorder *captureRecorder
	now      time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		actuator: &fakeActuator{},
		recorder: &captureRecorder{},
		now:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.registry = device.NewRegistry(device.Config{Timeout: 60 * time.Second})
	f.registry.SetClock(f.clock)
	f.engine = NewEngine(f.registry, f.actuator, Config{})
	f.engine.SetClock(f.clock)
	f.engine.SetRecorder(f.recorder)
	return f
}

func (f *fixture) telemetry(t *testing.T, id string, fields map[string]any) {
	t.Helper()
	_, err := f.registry.Upsert(id, fields)
	require.NoError(t, err)
}

func tempRule(autoToggle bool) ConditionRule {
	return ConditionRule{
		Name: "Fan on when hot",
		Condition: Condition{
			DeviceID:  "ESP32-IOT-SENSOR-AB12",
			Parameter: "tC",
			Operator:  OpGreater,
			Threshold: 30,
		},
		Action:     Action{DeviceID: "ESP32-IOT-ACTUATOR-CD34", Channel: 2, On: true},
		AutoToggle: autoToggle,
	}
}

// ─── Tick ───────────────────────────────────────────────────────────

func TestTick_FiresOnRisingEdge(t *testing.T) {
	f := newFixture(t)
	f.telemetry(t, "ESP32-IOT-SENSOR-AB12", map[string]any{"tC": 31.5})

	rule, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)
	assert.Equal(t, "SENSOR-AB12", rule.Condition.DeviceID)
	assert.Equal(t, "ACTUATOR-CD34", rule.Action.DeviceID)

	assert.Equal(t, 1, f.engine.Tick(context.Background()))
	assert.Equal(t, []applyCall{{"ACTUATOR-CD34", 2, true}}, f.actuator.Calls())
	assert.Contains(t, f.recorder.Messages(), "Automation: Fan on when hot")

	got, err := f.engine.GetConditionRule(rule.ID)
	require.NoError(t, err)
	assert.True(t, got.LastState)
	require.NotNil(t, got.LastFiredAt)
	assert.Equal(t, f.now, *got.LastFiredAt)

	// Condition still true: no second firing.
	assert.Equal(t, 0, f.engine.Tick(context.Background()))
	assert.Len(t, f.actuator.Calls(), 1)
}

func TestTick_EdgeSequence(t *testing.T) {
	sequence := []float64{25, 35, 36, 20, 40} // F T T F T

	tests := []struct {
		name       string
		autoToggle bool
		want       []applyCall
	}{
		{
			name: "without auto-toggle",
			want: []applyCall{
				{"ACTUATOR-CD34", 2, true},
				{"ACTUATOR-CD34", 2, true},
			},
		},
		{
			name:       "with auto-toggle",
			autoToggle: true,
			want: []applyCall{
				{"ACTUATOR-CD34", 2, true},
				{"ACTUATOR-CD34", 2, false},
				{"ACTUATOR-CD34", 2, true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.engine.AddConditionRule(tempRule(tt.autoToggle))
			require.NoError(t, err)

			var firedAt []int
			for i, v := range sequence {
				f.telemetry(t, "ESP32-IOT-SENSOR-AB12", map[string]any{"tC": v})
				if f.engine.Tick(context.Background()) > 0 {
					firedAt = append(firedAt, i+1)
				}
			}

			assert.Equal(t, tt.want, f.actuator.Calls())
			if tt.autoToggle {
				assert.Equal(t, []int{2, 4, 5}, firedAt)
				assert.Contains(t, f.recorder.Messages(), "Auto-toggle OFF: Fan on when hot")
			} else {
				assert.Equal(t, []int{2, 5}, firedAt)
			}
		})
	}
}

func TestTick_AutoToggleSendsOffEvenForOffAction(t *testing.T) {
	f := newFixture(t)
	r := tempRule(true)
	r.Action.On = false
	_, err := f.engine.AddConditionRule(r)
	require.NoError(t, err)

	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 35})
	f.engine.Tick(context.Background())
	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 10})
	f.engine.Tick(context.Background())

	assert.Equal(t, []applyCall{
		{"ACTUATOR-CD34", 2, false},
		{"ACTUATOR-CD34", 2, false},
	}, f.actuator.Calls())
}

func TestTick_MissingDeviceSkipped(t *testing.T) {
	f := newFixture(t)
	rule, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)

	assert.Equal(t, 0, f.engine.Tick(context.Background()))
	assert.Empty(t, f.actuator.Calls())

	got, _ := f.engine.GetConditionRule(rule.ID)
	assert.False(t, got.LastState)
}

func TestTick_OfflineDeviceKeepsLastState(t *testing.T) {
	f := newFixture(t)
	rule, err := f.engine.AddConditionRule(tempRule(true))
	require.NoError(t, err)

	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 35})
	require.Equal(t, 1, f.engine.Tick(context.Background()))

	// Device goes silent past the timeout with a cold reading stored.
	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 10})
	f.now = f.now.Add(2 * time.Minute)

	assert.Equal(t, 0, f.engine.Tick(context.Background()))
	got, _ := f.engine.GetConditionRule(rule.ID)
	assert.True(t, got.LastState, "offline evaluation must not touch LastState")

	// Back online still hot: no new rising edge.
	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 36})
	assert.Equal(t, 0, f.engine.Tick(context.Background()))
	assert.Len(t, f.actuator.Calls(), 1)
}

func TestTick_DisabledRuleIgnored(t *testing.T) {
	f := newFixture(t)
	rule, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)
	_, err = f.engine.SetConditionRuleEnabled(rule.ID, false)
	require.NoError(t, err)

	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 35})
	assert.Equal(t, 0, f.engine.Tick(context.Background()))
	assert.Empty(t, f.actuator.Calls())
}

func TestTick_MissingFieldIsFalse(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)

	f.telemetry(t, "SENSOR-AB12", map[string]any{"hum": 80})
	assert.Equal(t, 0, f.engine.Tick(context.Background()))
}

func TestTick_ActuationFailureStillAdvancesState(t *testing.T) {
	f := newFixture(t)
	f.actuator.err = errors.New("device offline")
	rule, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)

	f.telemetry(t, "SENSOR-AB12", map[string]any{"tC": 35})
	f.engine.Tick(context.Background())
	f.engine.Tick(context.Background())

	assert.Len(t, f.actuator.Calls(), 1)
	got, _ := f.engine.GetConditionRule(rule.ID)
	assert.True(t, got.LastState)
	assert.Nil(t, got.LastFiredAt)
	assert.NotContains(t, f.recorder.Messages(), "Automation: Fan on when hot")
}

// ─── Gestures ───────────────────────────────────────────────────────

func TestHandleGesture(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddGestureRule(GestureRule{Gesture: "palm", DeviceID: "ACTUATOR-CD34", Channel: 1, Action: "ON"})
	require.NoError(t, err)
	_, err = f.engine.AddGestureRule(GestureRule{Gesture: "fist", DeviceID: "ACTUATOR-CD34", Channel: 1, Action: "off"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.engine.HandleGesture(context.Background(), "palm"))
	assert.Equal(t, 1, f.engine.HandleGesture(context.Background(), "palm"))
	assert.Equal(t, 0, f.engine.HandleGesture(context.Background(), "victory"))

	assert.Equal(t, []applyCall{
		{"ACTUATOR-CD34", 1, true},
		{"ACTUATOR-CD34", 1, true},
	}, f.actuator.Calls())
	assert.Contains(t, f.recorder.Messages(), "Gesture: palm → GPIO1 ON")
}

func TestHandleGesture_DisabledAndFailed(t *testing.T) {
	f := newFixture(t)
	g, err := f.engine.AddGestureRule(GestureRule{Gesture: "fist", DeviceID: "ACTUATOR-CD34", Channel: 3, Action: "off"})
	require.NoError(t, err)

	_, err = f.engine.ToggleGestureRule(g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.engine.HandleGesture(context.Background(), "fist"))
	assert.Empty(t, f.actuator.Calls())

	_, err = f.engine.ToggleGestureRule(g.ID)
	require.NoError(t, err)
	f.actuator.err = errors.New("unavailable")
	assert.Equal(t, 0, f.engine.HandleGesture(context.Background(), "fist"))
	assert.Len(t, f.actuator.Calls(), 1)
}

// ─── CRUD ───────────────────────────────────────────────────────────

func TestAddConditionRule_Defaults(t *testing.T) {
	f := newFixture(t)
	in := tempRule(true)
	in.ID = "caller-supplied"
	in.Enabled = false
	in.LastState = true

	rule, err := f.engine.AddConditionRule(in)
	require.NoError(t, err)
	assert.NotEqual(t, "caller-supplied", rule.ID)
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled)
	assert.False(t, rule.LastState)
	assert.Equal(t, f.now, rule.CreatedAt)
	assert.Contains(t, f.recorder.Messages(), "Automation rule added: Fan on when hot")
}

func TestAddConditionRule_Invalid(t *testing.T) {
	f := newFixture(t)
	r := tempRule(false)
	r.Condition.Operator = "!="

	_, err := f.engine.AddConditionRule(r)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.ErrorIs(t, err, ErrInvalidOperator)
	assert.Empty(t, f.engine.ListConditionRules())
}

func TestConditionRuleLifecycle(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus(8)
	defer bus.Close()
	f.engine.SetBus(bus)
	ch := bus.Subscribe(events.TopicRules)

	rule, err := f.engine.AddConditionRule(tempRule(false))
	require.NoError(t, err)
	assert.Equal(t, events.RulesChanged{Kind: KindCondition, RuleID: rule.ID, Op: "created"}, <-ch)

	toggled, err := f.engine.ToggleConditionRule(rule.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)
	assert.Equal(t, events.RulesChanged{Kind: KindCondition, RuleID: rule.ID, Op: "updated"}, <-ch)
	assert.Contains(t, f.recorder.Messages(), "Automation disabled: Fan on when hot")

	require.NoError(t, f.engine.RemoveConditionRule(rule.ID))
	assert.Equal(t, events.RulesChanged{Kind: KindCondition, RuleID: rule.ID, Op: "deleted"}, <-ch)

	_, err = f.engine.GetConditionRule(rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, f.engine.RemoveConditionRule(rule.ID), ErrRuleNotFound)
	_, err = f.engine.ToggleConditionRule(rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestListConditionRules_CreationOrderAndCopies(t *testing.T) {
	f := newFixture(t)
	a := tempRule(false)
	a.Name = "first"
	b := tempRule(false)
	b.Name = "second"

	_, err := f.engine.AddConditionRule(a)
	require.NoError(t, err)
	_, err = f.engine.AddConditionRule(b)
	require.NoError(t, err)

	list := f.engine.ListConditionRules()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "second", list[1].Name)

	list[0].Name = "mutated"
	assert.Equal(t, "first", f.engine.ListConditionRules()[0].Name)
}

func TestGestureRuleLifecycle(t *testing.T) {
	f := newFixture(t)

	g, err := f.engine.AddGestureRule(GestureRule{Gesture: " thumbs_up ", DeviceID: "esp32-iot-actuator-cd34", Channel: 4, Action: "on"})
	require.NoError(t, err)
	assert.Equal(t, "thumbs_up", g.Gesture)
	assert.Equal(t, "ACTUATOR-CD34", g.DeviceID)
	assert.True(t, g.Enabled)

	got, err := f.engine.GetGestureRule(g.ID)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	updated, err := f.engine.SetGestureRuleEnabled(g.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	require.NoError(t, f.engine.RemoveGestureRule(g.ID))
	assert.Empty(t, f.engine.ListGestureRules())
	assert.ErrorIs(t, f.engine.RemoveGestureRule(g.ID), ErrRuleNotFound)
}

func TestAddGestureRule_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddGestureRule(GestureRule{Gesture: "palm", DeviceID: "ACTUATOR-CD34", Channel: 9, Action: "on"})
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = f.engine.AddGestureRule(GestureRule{Gesture: "palm", DeviceID: "ACTUATOR-CD34", Channel: 1, Action: "toggle"})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

// ─── Lifecycle ──────────────────────────────────────────────────────

func TestStartStop(t *testing.T) {
	rec := &captureRecorder{}
	act := &fakeActuator{}
	reg := device.NewRegistry(device.Config{})
	e := NewEngine(reg, act, Config{Interval: 10 * time.Millisecond})
	e.SetRecorder(rec)

	_, err := reg.Upsert("SENSOR-0001", map[string]any{"tC": 50})
	require.NoError(t, err)
	_, err = e.AddConditionRule(ConditionRule{
		Name:      "hot",
		Condition: Condition{DeviceID: "SENSOR-0001", Parameter: "tC", Operator: OpGreaterEqual, Threshold: 50},
		Action:    Action{DeviceID: "ACTUATOR-0002", Channel: 1, On: true},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.Start(ctx)
	assert.True(t, e.Running())

	assert.Eventually(t, func() bool { return len(act.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	e.Stop()
	e.Stop()
	assert.False(t, e.Running())

	msgs := rec.Messages()
	assert.Contains(t, msgs, "Automation engine started")
	assert.Contains(t, msgs, "Automation engine stopped")
}

func TestStop_AfterContextCancel(t *testing.T) {
	rec := &captureRecorder{}
	e := NewEngine(device.NewRegistry(device.Config{}), &fakeActuator{}, Config{Interval: 10 * time.Millisecond})
	e.SetRecorder(rec)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()

	stopped := func() int {
		n := 0
		for _, m := range rec.Messages() {
			if m == "Automation engine stopped" {
				n++
			}
		}
		return n
	}

	assert.Eventually(t, func() bool { return stopped() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, e.Running())

	e.Stop()
	assert.Equal(t, 1, stopped())
}
