package health

import "github.com/cory-johannsen/towerdefense/internal/game/event"

// DamageTaken is published for every resolved hit.
type DamageTaken struct {
	EntityID string
	Damage   float64
	Absorbed float64
	Blocked  float64
	Type     DamageType
	Critical bool
	Source   string
	OldHP    float64
	NewHP    float64
	Killed   bool
}

func (DamageTaken) EventType() event.Type { return event.DamageTaken }

// Healed is published for every resolved heal.
type Healed struct {
	EntityID string
	Healed   float64
	Overflow float64
	Source   string
	OldHP    float64
	NewHP    float64
}

func (Healed) EventType() event.Type { return event.Healed }

// HealthChanged is published when health is set directly.
type HealthChanged struct {
	EntityID string
	OldHP    float64
	NewHP    float64
}

func (HealthChanged) EventType() event.Type { return event.HealthChanged }

// StatsModified is published when mitigation or max health changes.
type StatsModified struct {
	EntityID string
	Before   Entity
	After    Entity
}

func (StatsModified) EventType() event.Type { return event.StatsModified }

// Died is published once when an entity reaches zero health.
type Died Death

func (Died) EventType() event.Type { return event.EntityDied }

// Registered is published when an entity joins the engine.
type Registered struct {
	EntityID   string
	EntityType string
	MaxHealth  float64
}

func (Registered) EventType() event.Type { return event.EntityRegistered }

// Unregistered is published when an entity leaves the engine.
type Unregistered struct {
	EntityID string
}

func (Unregistered) EventType() event.Type { return event.EntityUnregistered }
