package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan interface{}) interface{} {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
		return nil
	}
}

func TestBus_TopicRouting(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	rules := bus.Subscribe(TopicRules)
	devices := bus.Subscribe(TopicDevices)

	bus.Publish(TopicRules, RulesChanged{Kind: "condition", RuleID: "r1", Op: "created"})
	bus.Publish(TopicDevices, DeviceChanged{Key: "SENSOR-AB12", Online: true, Op: "discovered"})

	rc, ok := receive(t, rules).(RulesChanged)
	require.True(t, ok)
	assert.Equal(t, "r1", rc.RuleID)

	dc, ok := receive(t, devices).(DeviceChanged)
	require.True(t, ok)
	assert.Equal(t, "SENSOR-AB12", dc.Key)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	ch := bus.Subscribe(TopicEvent)
	bus.Unsubscribe(ch, TopicEvent)

	_, open := <-ch
	assert.False(t, open)
}

func TestBus_ClosedBusIsInert(t *testing.T) {
	bus := NewBus(1)
	ch := bus.Subscribe(TopicEvent)
	bus.Close()

	_, open := <-ch
	assert.False(t, open, "Close should close subscriber channels")

	bus.Publish(TopicEvent, Event{})
	assert.Nil(t, bus.Subscribe(TopicEvent))
	bus.Unsubscribe(ch, TopicEvent)
	bus.Close()
}
