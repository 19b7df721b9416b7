package tower

import (
	"math"
	"slices"

	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
)

// GridSize is the side of a placement cell in world units.
const GridSize = 2.0

// Cell is a placement grid coordinate.
type Cell struct {
	X int `msgpack:"x"`
	Z int `msgpack:"z"`
}

// CellAt returns the placement cell containing (x, z).
func CellAt(x, z float64) Cell {
	return Cell{X: int(math.Floor(x / GridSize)), Z: int(math.Floor(z / GridSize))}
}

// Center returns the world position of the cell's centre.
func (c Cell) Center() geom.Vec3 {
	return geom.Ground(float64(c.X)*GridSize+GridSize/2, float64(c.Z)*GridSize+GridSize/2)
}

// Tower is one placed tower. TargetID is resolved through the enemy arena
// and re-validated before every shot.
type Tower struct {
	ID              string                    `msgpack:"id"`
	Type            string                    `msgpack:"type"`
	Position        geom.Vec3                 `msgpack:"position"`
	Cell            Cell                      `msgpack:"cell"`
	Level           int                       `msgpack:"level"`
	MaxLevel        int                       `msgpack:"max_level"`
	Damage          float64                   `msgpack:"damage"`
	Range           float64                   `msgpack:"range"`
	AttackSpeed     float64                   `msgpack:"attack_speed"`
	ProjectileSpeed float64                   `msgpack:"projectile_speed"`
	ProjectileType  projectile.Type           `msgpack:"projectile_type"`
	SplashRadius    float64                   `msgpack:"splash_radius,omitempty"`
	SplashDamage    float64                   `msgpack:"splash_damage,omitempty"`
	ArmorPiercing   bool                      `msgpack:"armor_piercing"`
	Slow            *projectile.SlowPayload   `msgpack:"slow,omitempty"`
	Poison          *projectile.PoisonPayload `msgpack:"poison,omitempty"`
	Chain           *projectile.ChainPayload  `msgpack:"chain,omitempty"`
	TargetID        string                    `msgpack:"target_id,omitempty"`
	LastFired       float64                   `msgpack:"last_fired"`
	Building        bool                      `msgpack:"building"`
	BuildRemaining  float64                   `msgpack:"build_remaining"`
	Kills           int                       `msgpack:"kills"`
	TotalDamage     float64                   `msgpack:"total_damage"`
	TotalCost       int                       `msgpack:"total_cost"`
	SellValue       int                       `msgpack:"sell_value"`
	Upgrades        []string                  `msgpack:"upgrades"`
	PlacedAt        float64                   `msgpack:"placed_at"`

	Mods *effect.Modifiers `msgpack:"-"`
}

// apply copies d's stat block onto t.
func (t *Tower) apply(d *Definition) {
	t.Type = d.ID
	t.MaxLevel = d.MaxLevel
	t.Damage = d.Damage
	t.Range = d.Range
	t.AttackSpeed = d.AttackSpeed
	t.ProjectileSpeed = d.ProjectileSpeed
	t.ProjectileType = d.ProjectileType
	t.SplashRadius = d.SplashRadius
	t.SplashDamage = d.SplashDamage
	t.ArmorPiercing = d.ArmorPiercing
	t.Slow = d.Slow
	t.Poison = d.Poison
	t.Chain = d.Chain
	t.Upgrades = slices.Clone(d.Upgrades)
}

// Cooldown returns the ms between shots.
func (t *Tower) Cooldown() float64 { return 1000 / t.AttackSpeed }

// EffectiveDamage returns Damage scaled by the tower's damage multiplier.
func (t *Tower) EffectiveDamage() float64 {
	if t.Mods == nil {
		return t.Damage
	}
	return t.Mods.Damage(t.Damage)
}

// Shooter returns the targeting view of t.
func (t *Tower) Shooter() targeting.Shooter {
	return targeting.Shooter{ID: t.ID, Type: t.Type, Position: t.Position, Range: t.Range, Damage: t.EffectiveDamage()}
}

func (t *Tower) disarmed() bool { return t.Mods != nil && t.Mods.Disarmed() }

// Refund returns floor(cost * ratio). The epsilon keeps products such as
// 350 * 0.7 from landing one unit low.
func Refund(cost int, ratio float64) int {
	return int(math.Floor(float64(cost)*ratio + 1e-9))
}

// floorTenth rounds v down to one decimal place.
func floorTenth(v float64) float64 { return math.Floor(v*10+1e-9) / 10 }
