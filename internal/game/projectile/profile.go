// Package projectile integrates projectile motion, detects collisions with
// enemies and hands damage and status payloads to the health and effect
// engines.
package projectile

import "sort"

// Type names a projectile profile.
type Type string

const (
	Bullet     Type = "bullet"
	Cannonball Type = "cannonball"
	Laser      Type = "laser"
	Ice        Type = "ice"
	Poison     Type = "poison"
	Lightning  Type = "lightning"
	Missile    Type = "missile"
)

// Profile is the fixed physical behaviour of a projectile type. Size and
// Gravity are in world units; Lifetime is in simulation ms.
type Profile struct {
	Size     float64
	Gravity  float64
	Bounces  int
	Piercing bool
	// Homing is the fraction of the turn toward a live target taken per
	// fifth of a second.
	Homing   float64
	Lifetime float64
	// Instant projectiles resolve their hit at creation.
	Instant bool
	Trail   bool
}

var profiles = map[Type]Profile{
	Bullet:     {Size: 0.4, Lifetime: 5000},
	Cannonball: {Size: 0.8, Gravity: 20, Bounces: 1, Lifetime: 10000, Trail: true},
	Laser:      {Size: 0.2, Piercing: true, Lifetime: 3000, Instant: true, Trail: true},
	Ice:        {Size: 0.6, Homing: 0.1, Lifetime: 4000, Trail: true},
	Poison:     {Size: 0.5, Homing: 0.2, Lifetime: 6000, Trail: true},
	Lightning:  {Size: 0.3, Piercing: true, Homing: 0.5, Lifetime: 2000, Instant: true},
	Missile:    {Size: 1.0, Homing: 0.8, Lifetime: 8000, Trail: true},
}

// ProfileOf returns the profile of t.
func ProfileOf(t Type) (Profile, bool) {
	p, ok := profiles[t]
	return p, ok
}

// Valid reports whether t has a profile.
func (t Type) Valid() bool {
	_, ok := profiles[t]
	return ok
}

// Types returns every projectile type, sorted.
func Types() []Type {
	out := make([]Type, 0, len(profiles))
	for t := range profiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
