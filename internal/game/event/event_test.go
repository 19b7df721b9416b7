package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/towerdefense/internal/game/event"
)

type ping struct{ N int }

func (ping) EventType() event.Type { return "ping" }

type pong struct{}

func (pong) EventType() event.Type { return "ping" }

func TestBus_PublishDeliversInOrder(t *testing.T) {
	bus := event.NewBus(nil)
	var got []int
	bus.Subscribe("ping", func(e event.Event) { got = append(got, e.(ping).N) })
	bus.Subscribe("ping", func(e event.Event) { got = append(got, e.(ping).N*10) })

	bus.Publish(ping{N: 2})
	assert.Equal(t, []int{2, 20}, got)
	assert.Equal(t, uint64(1), bus.PublishedCount("ping"))
}

func TestBus_PanickingListenerDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := event.NewBus(zap.New(core))
	calls := 0
	bus.Subscribe("ping", func(event.Event) { panic("boom") })
	bus.Subscribe("ping", func(event.Event) { calls++ })

	require.NotPanics(t, func() { bus.Publish(ping{}) })
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, logs.FilterMessage("event listener panicked").Len())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := event.NewBus(nil)
	calls := 0
	unsub := bus.Subscribe("ping", func(event.Event) { calls++ })
	bus.Publish(ping{})
	unsub()
	unsub()
	bus.Publish(ping{})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.ListenerCount("ping"))
}

func TestOn_FiltersPayloadType(t *testing.T) {
	bus := event.NewBus(nil)
	var got []int
	event.On(bus, "ping", func(p ping) { got = append(got, p.N) })
	bus.Publish(pong{})
	bus.Publish(ping{N: 7})
	assert.Equal(t, []int{7}, got)
}

func TestBus_NilSafe(t *testing.T) {
	var bus *event.Bus
	assert.NotPanics(t, func() { bus.Publish(ping{}) })
	assert.NotPanics(t, func() { event.NewBus(nil).Publish(nil) })
}
