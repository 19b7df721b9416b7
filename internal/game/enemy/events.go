package enemy

import "github.com/cory-johannsen/towerdefense/internal/game/event"

// ReachedEnd is published when an enemy finishes its path.
type ReachedEnd struct {
	EnemyID string
	Type    string
	Damage  int
}

func (ReachedEnd) EventType() event.Type { return event.EnemyReachedEnd }

// AbilityUsed is published whenever an ability triggers.
type AbilityUsed struct {
	EnemyID string
	Ability Ability
}

func (AbilityUsed) EventType() event.Type { return event.AbilityUsed }
