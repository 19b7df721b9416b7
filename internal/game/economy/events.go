package economy

import "github.com/cory-johannsen/towerdefense/internal/game/event"

// ResourceChanged is published whenever a balance changes.
type ResourceChanged struct {
	Resource Resource
	Old      int
	New      int
}

func (ResourceChanged) EventType() event.Type { return event.ResourceChanged }

// InsufficientResources is published when a spend is refused.
type InsufficientResources struct {
	Resource  Resource
	Required  int
	Available int
}

func (InsufficientResources) EventType() event.Type { return event.InsufficientResources }

// GameOverEvent is published when the last life is lost.
type GameOverEvent struct {
	Score int
}

func (GameOverEvent) EventType() event.Type { return event.GameOver }
