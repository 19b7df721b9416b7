package tower

import (
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

// UpgradeKind distinguishes level and type upgrades.
type UpgradeKind string

const (
	LevelUpgrade UpgradeKind = "level"
	TypeUpgrade  UpgradeKind = "type"
)

// Placed is published when a tower is bought and starts building.
type Placed struct {
	TowerID  string
	Type     string
	Position geom.Vec3
	Cost     int
}

func (Placed) EventType() event.Type { return event.TowerPlaced }

// Built is published when a tower finishes building.
type Built struct {
	TowerID string
	Type    string
}

func (Built) EventType() event.Type { return event.TowerBuilt }

// Upgraded is published after a level or type upgrade.
type Upgraded struct {
	TowerID string
	Kind    UpgradeKind
	OldType string
	NewType string
	Level   int
	Cost    int
}

func (Upgraded) EventType() event.Type { return event.TowerUpgraded }

// Sold is published when a tower is sold.
type Sold struct {
	TowerID string
	Type    string
	Refund  int
}

func (Sold) EventType() event.Type { return event.TowerSold }

// Attack is published for every shot.
type Attack struct {
	TowerID      string
	EnemyID      string
	ProjectileID string
	Damage       float64
}

func (Attack) EventType() event.Type { return event.TowerAttack }

// AllCleared is published by Clear.
type AllCleared struct{}

func (AllCleared) EventType() event.Type { return event.AllTowersCleared }
