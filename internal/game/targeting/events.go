package targeting

import "github.com/cory-johannsen/towerdefense/internal/game/event"

// ModeChanged is published when a tower's mode is set. Previous is empty
// for a tower that had no binding.
type ModeChanged struct {
	TowerID  string
	Mode     Mode
	Previous Mode
}

func (ModeChanged) EventType() event.Type { return event.TargetingModeChanged }

// TowerRemoved is published when a tower's binding is dropped.
type TowerRemoved struct {
	TowerID string
}

func (TowerRemoved) EventType() event.Type { return event.TargetingTowerRemoved }

// AllModesReset is published by ResetAll.
type AllModesReset struct{}

func (AllModesReset) EventType() event.Type { return event.AllTargetingModesReset }
