package projectile

import (
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

// Created is published for every new projectile.
type Created struct {
	ProjectileID string
	TowerID      string
	Type         Type
	Position     geom.Vec3
}

func (Created) EventType() event.Type { return event.ProjectileCreated }

// Hit is published after a projectile resolves a hit. Damage is the amount
// that reached health.
type Hit struct {
	ProjectileID string
	TowerID      string
	EnemyID      string
	Damage       float64
	Killed       bool
}

func (Hit) EventType() event.Type { return event.ProjectileHit }

// EnemyKilled is published when a projectile hit kills its enemy.
type EnemyKilled struct {
	EnemyID      string
	TowerID      string
	ProjectileID string
}

func (EnemyKilled) EventType() event.Type { return event.EnemyKilled }

// Splash asks the simulation to damage every enemy within Radius of
// Position other than EpicenterID.
type Splash struct {
	ProjectileID string
	TowerID      string
	EpicenterID  string
	Position     geom.Vec3
	Radius       float64
	Damage       float64
}

func (Splash) EventType() event.Type { return event.SplashDamage }

// Chain asks the simulation to arc from InitialID to up to MaxTargets
// enemies, each link dealing Reduction less than the one before.
type Chain struct {
	ProjectileID string
	TowerID      string
	InitialID    string
	MaxTargets   int
	Reduction    float64
	Range        float64
	Damage       float64
}

func (Chain) EventType() event.Type { return event.ChainLightning }

// Bounce is published when a projectile ricochets off an enemy.
type Bounce struct {
	ProjectileID     string
	EnemyID          string
	BouncesRemaining int
}

func (Bounce) EventType() event.Type { return event.ProjectileBounce }

// Removed is published once per projectile when it leaves the engine.
type Removed struct {
	ProjectileID string
	TowerID      string
	Type         Type
	Hit          bool
}

func (Removed) EventType() event.Type { return event.ProjectileRemoved }
