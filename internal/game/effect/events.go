package effect

import "github.com/cory-johannsen/towerdefense/internal/game/event"

// Applied is published when an effect instance starts.
type Applied struct {
	EntityID   string
	InstanceID string
	Kind       Kind
	DurationMs float64
	Source     string
}

func (Applied) EventType() event.Type { return event.EffectApplied }

// Removed is published when an effect instance ends. Expired is true when
// the duration ran out or the effect ended itself.
type Removed struct {
	EntityID   string
	InstanceID string
	Kind       Kind
	Expired    bool
}

func (Removed) EventType() event.Type { return event.EffectRemoved }

// Tick is published for each periodic damage or heal.
type Tick struct {
	EntityID   string
	InstanceID string
	Kind       Kind
	Amount     float64
}

func (Tick) EventType() event.Type { return event.EffectTick }

// AllCleared is published by Clear.
type AllCleared struct{}

func (AllCleared) EventType() event.Type { return event.AllEffectsCleared }
