// Package event provides the typed publish/subscribe bus shared by the
// simulation engines. Each engine defines concrete payload structs for the
// event types it publishes; subscribers type-assert or use On.
package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Type names an event.
type Type string

// Event is a published payload.
type Event interface {
	// EventType returns the name the event is published under.
	EventType() Type
}

// Listener receives published events.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// Bus delivers events to listeners registered per Type.
//
// Subscribe and Unsubscribe are safe for concurrent use. Publish invokes
// listeners synchronously on the calling goroutine, in subscription order.
//
// Invariant: a panicking listener never prevents delivery to the remaining listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Type][]subscription
	nextID    uint64
	logger    *zap.Logger
	published map[Type]uint64
}

// NewBus creates an empty Bus.
//
// Precondition: logger may be nil (a no-op logger is used).
// Postcondition: Returns a Bus with no listeners.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[Type][]subscription),
		logger:    logger,
		published: make(map[Type]uint64),
	}
}

// Subscribe registers fn for events of type t and returns a function that
// removes the subscription. Calling the returned function more than once is a no-op.
//
// Precondition: fn must not be nil.
func (b *Bus) Subscribe(t Type, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(t, id) })
	}
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.listeners[t]
	for i, s := range subs {
		if s.id == id {
			b.listeners[t] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// On subscribes a listener that only receives payloads of concrete type T.
// Events of type t carrying another payload type are ignored.
func On[T Event](b *Bus, t Type, fn func(T)) (unsubscribe func()) {
	return b.Subscribe(t, func(e Event) {
		if payload, ok := e.(T); ok {
			fn(payload)
		}
	})
}

// Publish delivers e to every listener subscribed to e.EventType().
// A nil Bus or nil event is a no-op.
//
// Postcondition: every listener registered before the call has been invoked once.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	t := e.EventType()
	b.mu.Lock()
	b.published[t]++
	subs := append([]subscription(nil), b.listeners[t]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(t, s, e)
	}
}

func (b *Bus) deliver(t Type, s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				zap.String("event", string(t)),
				zap.Uint64("subscription", s.id),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.fn(e)
}

// ListenerCount returns the number of listeners registered for t.
func (b *Bus) ListenerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}

// PublishedCount returns how many events of type t have been published.
func (b *Bus) PublishedCount(t Type) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published[t]
}

// Clear removes every listener.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[Type][]subscription)
}
