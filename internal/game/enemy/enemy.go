package enemy

import (
	"maps"
	"slices"

	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// waypointRadius is the ground distance at which a waypoint counts as reached.
const waypointRadius = 0.5

// Enemy is one live enemy in the arena. Health and MaxHealth mirror the
// health engine and are refreshed every Update.
type Enemy struct {
	ID         string      `msgpack:"id"`
	Type       string      `msgpack:"type"`
	Boss       bool        `msgpack:"boss"`
	Health     float64     `msgpack:"health"`
	MaxHealth  float64     `msgpack:"max_health"`
	Damage     int         `msgpack:"damage"`
	Bounty     int         `msgpack:"bounty"`
	ScoreValue int         `msgpack:"score_value"`
	Size       float64     `msgpack:"size"`
	Position   geom.Vec3   `msgpack:"position"`
	Velocity   geom.Vec3   `msgpack:"velocity"`
	BaseSpeed  float64     `msgpack:"base_speed"`
	Path       []geom.Vec3 `msgpack:"path"`
	PathIndex  int         `msgpack:"path_index"`
	Progress   float64     `msgpack:"progress"`
	Flying     bool        `msgpack:"flying"`
	Abilities  []Ability   `msgpack:"abilities"`
	Alive      bool        `msgpack:"alive"`
	ReachedEnd bool        `msgpack:"reached_end"`
	SpawnedAt  float64     `msgpack:"spawned_at"`

	Resistances map[string]float64 `msgpack:"-"`
	Weaknesses  map[string]float64 `msgpack:"-"`
	Mods        *effect.Modifiers  `msgpack:"-"`

	cooldowns        map[Ability]float64
	invulnerableLeft float64
}

// Speed returns the current ground speed in units per second.
func (e *Enemy) Speed() float64 {
	if e.Mods == nil {
		return e.BaseSpeed
	}
	return e.Mods.Speed(e.BaseSpeed)
}

// Clone returns a copy of e that shares no slices or maps with it. The
// modifier stack is not copied.
func (e *Enemy) Clone() Enemy {
	c := *e
	c.Path = slices.Clone(e.Path)
	c.Abilities = slices.Clone(e.Abilities)
	c.Resistances = maps.Clone(e.Resistances)
	c.Weaknesses = maps.Clone(e.Weaknesses)
	c.cooldowns = maps.Clone(e.cooldowns)
	c.Mods = nil
	return c
}

// Active reports whether the enemy is alive and still on the map.
func (e *Enemy) Active() bool { return e.Alive && !e.ReachedEnd }

// DamageMultiplier returns resistance(t) × weakness(t). Missing entries
// count as 1; a 0 entry makes the enemy immune to t.
func (e *Enemy) DamageMultiplier(t health.DamageType) float64 {
	m := 1.0
	if r, ok := e.Resistances[string(t)]; ok {
		m *= r
	}
	if w, ok := e.Weaknesses[string(t)]; ok {
		m *= w
	}
	return m
}

// DistanceToEnd returns the remaining ground distance along the path.
func (e *Enemy) DistanceToEnd() float64 {
	if e.PathIndex >= len(e.Path) {
		return 0
	}
	d := e.Position.GroundDist(e.Path[e.PathIndex])
	for i := e.PathIndex; i < len(e.Path)-1; i++ {
		d += e.Path[i].GroundDist(e.Path[i+1])
	}
	return d
}

// move advances the enemy along its path by dtMs of travel.
func (e *Enemy) move(dtMs float64) {
	e.Velocity = geom.Vec3{}
	if len(e.Path) == 0 {
		return
	}
	e.advanceWaypoints()
	if e.ReachedEnd {
		return
	}
	speed := e.Speed()
	if speed <= 0 {
		e.updateProgress()
		return
	}
	target := e.Path[e.PathIndex]
	dist := e.Position.GroundDist(target)
	dir := geom.Ground(target.X-e.Position.X, target.Z-e.Position.Z).Normalize()
	step := min(speed*dtMs/1000, dist)
	e.Position = e.Position.Add(dir.Scale(step))
	e.Velocity = dir.Scale(speed)
	e.advanceWaypoints()
}

func (e *Enemy) advanceWaypoints() {
	for e.PathIndex < len(e.Path) && e.Position.GroundDist(e.Path[e.PathIndex]) < waypointRadius {
		e.PathIndex++
	}
	if e.PathIndex >= len(e.Path) {
		e.ReachedEnd = true
		e.Velocity = geom.Vec3{}
	}
	e.updateProgress()
}

func (e *Enemy) updateProgress() {
	if len(e.Path) == 0 {
		e.Progress = 0
		return
	}
	e.Progress = min(100, float64(e.PathIndex)/float64(len(e.Path))*100)
}
