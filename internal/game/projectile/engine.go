package projectile

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

const (
	trailWindow       = 500.0
	instantLinger     = 100.0
	defaultChainRange = 10.0
	defaultMargin     = 20.0
)

// Arena resolves enemy ids and routes damage through resistances.
type Arena interface {
	Get(id string) (*enemy.Enemy, bool)
	Alive() []*enemy.Enemy
	Damage(id string, amount float64, opts health.DamageOptions) health.DamageResult
}

// Effects applies status payloads.
type Effects interface {
	Apply(entityID string, kind effect.Kind, p effect.Params) (string, bool)
}

// SlowPayload slows the enemy hit by Amount for Duration ms.
type SlowPayload struct {
	Duration float64 `yaml:"duration" msgpack:"duration"`
	Amount   float64 `yaml:"amount" msgpack:"amount"`
}

// PoisonPayload poisons the enemy hit for Duration ms.
type PoisonPayload struct {
	Duration        float64 `yaml:"duration" msgpack:"duration"`
	DamagePerSecond float64 `yaml:"damage_per_second" msgpack:"dps"`
}

// ChainPayload arcs a hit to further enemies.
type ChainPayload struct {
	MaxTargets int     `yaml:"max_targets" msgpack:"max_targets"`
	Reduction  float64 `yaml:"damage_reduction" msgpack:"reduction"`
}

// Launch describes a projectile to create.
type Launch struct {
	TowerID       string
	Type          Type
	Start         geom.Vec3
	Target        geom.Vec3
	TargetID      string
	Damage        float64
	Speed         float64
	ArmorPiercing bool
	SplashRadius  float64
	// SplashDamage is the fraction of Damage dealt to splashed enemies.
	SplashDamage float64
	Slow         *SlowPayload
	Poison       *PoisonPayload
	Chain        *ChainPayload
}

// TrailPoint is one sample of a projectile's recent path.
type TrailPoint struct {
	Position geom.Vec3 `msgpack:"position"`
	At       float64   `msgpack:"at"`
}

// Projectile is one projectile in flight. TargetID is resolved through the
// arena on every use.
type Projectile struct {
	ID             string          `msgpack:"id"`
	TowerID        string          `msgpack:"tower_id"`
	Type           Type            `msgpack:"type"`
	Position       geom.Vec3       `msgpack:"position"`
	Start          geom.Vec3       `msgpack:"start"`
	Velocity       geom.Vec3       `msgpack:"velocity"`
	Speed          float64         `msgpack:"speed"`
	TargetID       string          `msgpack:"target_id,omitempty"`
	TargetPosition geom.Vec3       `msgpack:"target_position"`
	Damage         float64         `msgpack:"damage"`
	ArmorPiercing  bool            `msgpack:"armor_piercing"`
	SplashRadius   float64         `msgpack:"splash_radius,omitempty"`
	SplashDamage   float64         `msgpack:"splash_damage,omitempty"`
	Slow           *SlowPayload    `msgpack:"slow,omitempty"`
	Poison         *PoisonPayload  `msgpack:"poison,omitempty"`
	Chain          *ChainPayload   `msgpack:"chain,omitempty"`
	Size           float64         `msgpack:"size"`
	Piercing       bool            `msgpack:"piercing"`
	Homing         float64         `msgpack:"homing"`
	Gravity        float64         `msgpack:"gravity"`
	GravityVel     float64         `msgpack:"gravity_velocity"`
	Bounces        int             `msgpack:"bounces"`
	CreatedAt      float64         `msgpack:"created_at"`
	Lifetime       float64         `msgpack:"lifetime"`
	Instant        bool            `msgpack:"instant"`
	HitTargets     map[string]bool `msgpack:"hit_targets"`
	Trail          []TrailPoint    `msgpack:"trail,omitempty"`
	Active         bool            `msgpack:"active"`
	HasHit         bool            `msgpack:"has_hit"`

	trail     bool
	lingerFor float64
}

// Config bounds the playfield. A zero Width or Height disables the bounds
// check; projectiles then expire only by lifetime.
type Config struct {
	Width  float64
	Height float64
	Margin float64
}

// Engine owns every projectile in flight.
// It is not safe for concurrent use; the caller must serialise access.
type Engine struct {
	cfg     Config
	arena   Arena
	effects Effects
	src     dice.Source
	bus     *event.Bus
	logger  *zap.Logger

	projectiles map[string]*Projectile
	order       []string
	nextID      uint64
	now         float64

	created uint64
	hits    uint64
	kills   uint64
}

// NewEngine creates an Engine.
//
// Precondition: arena and src must not be nil; effects, bus and logger may be nil.
func NewEngine(cfg Config, arena Arena, effects Effects, src dice.Source, bus *event.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Margin <= 0 {
		cfg.Margin = defaultMargin
	}
	return &Engine{
		cfg:         cfg,
		arena:       arena,
		effects:     effects,
		src:         src,
		bus:         bus,
		logger:      logger,
		projectiles: make(map[string]*Projectile),
	}
}

// Now returns the engine's accumulated simulation time in ms.
func (e *Engine) Now() float64 { return e.now }

// Create launches a projectile and returns its id. Unknown types fly as
// bullets. An instant projectile resolves its hit immediately and lingers
// for 100 ms before removal.
//
// Postcondition: the returned id has the form projectile_N.
func (e *Engine) Create(l Launch) string {
	prof, ok := profiles[l.Type]
	if !ok {
		l.Type = Bullet
		prof = profiles[Bullet]
	}
	e.nextID++
	p := &Projectile{
		ID:             fmt.Sprintf("projectile_%d", e.nextID),
		TowerID:        l.TowerID,
		Type:           l.Type,
		Position:       l.Start,
		Start:          l.Start,
		Velocity:       l.Target.Sub(l.Start).Normalize().Scale(l.Speed),
		Speed:          l.Speed,
		TargetID:       l.TargetID,
		TargetPosition: l.Target,
		Damage:         l.Damage,
		ArmorPiercing:  l.ArmorPiercing,
		SplashRadius:   l.SplashRadius,
		SplashDamage:   l.SplashDamage,
		Slow:           l.Slow,
		Poison:         l.Poison,
		Chain:          l.Chain,
		Size:           prof.Size,
		Piercing:       prof.Piercing,
		Homing:         prof.Homing,
		Gravity:        prof.Gravity,
		Bounces:        prof.Bounces,
		CreatedAt:      e.now,
		Lifetime:       prof.Lifetime,
		Instant:        prof.Instant,
		HitTargets:     make(map[string]bool),
		Active:         true,
		trail:          prof.Trail,
	}
	e.projectiles[p.ID] = p
	e.order = append(e.order, p.ID)
	e.created++
	e.bus.Publish(Created{ProjectileID: p.ID, TowerID: p.TowerID, Type: p.Type, Position: p.Position})

	if p.Instant {
		p.Position = p.TargetPosition
		p.lingerFor = instantLinger
		if target, ok := e.arena.Get(p.TargetID); ok && target.Active() {
			e.hit(p, target)
		}
	}
	return p.ID
}

// Update advances every projectile by dtMs of simulation time: homing,
// gravity, integration, trail, collision and expiry, in that order.
func (e *Engine) Update(dtMs float64) {
	if dtMs <= 0 {
		return
	}
	e.now += dtMs
	dt := dtMs / 1000
	for _, id := range slices.Clone(e.order) {
		p, ok := e.projectiles[id]
		if !ok {
			continue
		}
		if p.Instant {
			p.lingerFor -= dtMs
			if p.lingerFor <= 0 {
				e.Remove(id)
			}
			continue
		}
		if e.now-p.CreatedAt > p.Lifetime {
			e.Remove(id)
			continue
		}
		e.home(p, dt)
		if p.Gravity > 0 {
			p.GravityVel += p.Gravity * dt
			p.Velocity.Y -= p.GravityVel * dt
		}
		p.Position = p.Position.Add(p.Velocity.Scale(dt))
		if p.trail {
			e.recordTrail(p)
		}
		e.collide(p)
		if _, ok := e.projectiles[id]; ok && e.outOfBounds(p) {
			e.Remove(id)
		}
	}
}

// home turns p toward its target by Homing·dt·5 of the difference between
// its heading and the target bearing, keeping its speed.
func (e *Engine) home(p *Projectile, dt float64) {
	if p.Homing <= 0 || p.TargetID == "" {
		return
	}
	target, ok := e.arena.Get(p.TargetID)
	if !ok || !target.Active() {
		return
	}
	toTarget := target.Position.Sub(p.Position)
	if toTarget.Len() == 0 || p.Velocity.IsZero() {
		return
	}
	want := toTarget.Normalize()
	have := p.Velocity.Normalize()
	turned := have.Lerp(want, math.Min(1, p.Homing*dt*5))
	if turned.IsZero() {
		return
	}
	p.Velocity = turned.Normalize().Scale(p.Speed)
}

func (e *Engine) recordTrail(p *Projectile) {
	p.Trail = append(p.Trail, TrailPoint{Position: p.Position, At: e.now})
	p.Trail = slices.DeleteFunc(p.Trail, func(tp TrailPoint) bool { return e.now-tp.At >= trailWindow })
}

func (e *Engine) collide(p *Projectile) {
	for _, en := range e.arena.Alive() {
		if p.HitTargets[en.ID] {
			continue
		}
		if p.Position.GroundDist(en.Position) > (p.Size+en.Size)/2 {
			continue
		}
		e.hit(p, en)
		if _, ok := e.projectiles[p.ID]; !ok {
			return
		}
	}
}

func (e *Engine) outOfBounds(p *Projectile) bool {
	if e.cfg.Width <= 0 || e.cfg.Height <= 0 {
		return false
	}
	hx := e.cfg.Width/2 + e.cfg.Margin
	hz := e.cfg.Height/2 + e.cfg.Margin
	return math.Abs(p.Position.X) > hx || math.Abs(p.Position.Z) > hz
}

// hit resolves p striking target: damage, status payloads, secondary-target
// requests, then bounce or removal.
func (e *Engine) hit(p *Projectile, target *enemy.Enemy) {
	p.HitTargets[target.ID] = true
	e.hits++

	opts := health.DamageOptions{Type: health.Physical, Piercing: p.ArmorPiercing, Source: p.TowerID}
	if p.ArmorPiercing {
		opts.Type = health.True
	}
	res := e.arena.Damage(target.ID, p.Damage, opts)
	e.logger.Debug("projectile hit",
		zap.String("projectile", p.ID),
		zap.String("enemy", target.ID),
		zap.Float64("dealt", res.Dealt),
		zap.Bool("killed", res.Killed),
	)
	e.applyPayloads(p, target.ID)

	if p.SplashRadius > 0 {
		e.bus.Publish(Splash{
			ProjectileID: p.ID,
			TowerID:      p.TowerID,
			EpicenterID:  target.ID,
			Position:     p.Position,
			Radius:       p.SplashRadius,
			Damage:       p.Damage * p.SplashDamage,
		})
	}
	if p.Chain != nil {
		chainRange := p.SplashRadius
		if chainRange <= 0 {
			chainRange = defaultChainRange
		}
		e.bus.Publish(Chain{
			ProjectileID: p.ID,
			TowerID:      p.TowerID,
			InitialID:    target.ID,
			MaxTargets:   p.Chain.MaxTargets,
			Reduction:    p.Chain.Reduction,
			Range:        chainRange,
			Damage:       p.Damage,
		})
	}

	e.bus.Publish(Hit{ProjectileID: p.ID, TowerID: p.TowerID, EnemyID: target.ID, Damage: res.Dealt, Killed: res.Killed})
	if res.Killed {
		e.kills++
		e.bus.Publish(EnemyKilled{EnemyID: target.ID, TowerID: p.TowerID, ProjectileID: p.ID})
	}

	if p.Piercing {
		return
	}
	p.HasHit = true
	if p.Bounces > 0 && !p.Instant {
		e.bounce(p, target.ID)
		return
	}
	if !p.Instant {
		e.Remove(p.ID)
	}
}

func (e *Engine) applyPayloads(p *Projectile, enemyID string) {
	if e.effects == nil {
		return
	}
	if p.Slow != nil {
		e.effects.Apply(enemyID, effect.Slow, effect.Params{Amount: p.Slow.Amount, DurationMs: p.Slow.Duration, Source: p.TowerID})
	}
	if p.Poison != nil {
		e.effects.Apply(enemyID, effect.Poison, effect.Params{DamagePerSecond: p.Poison.DamagePerSecond, DurationMs: p.Poison.Duration, Source: p.TowerID})
	}
}

// bounce scatters p back off the enemy: each ground axis is scaled by a
// factor in [-0.8, -0.4) and the result is turned up to π/4 either way.
func (e *Engine) bounce(p *Projectile, enemyID string) {
	p.Bounces--
	p.Velocity.X *= -0.8 + e.src.Float64()*0.4
	p.Velocity.Z *= -0.8 + e.src.Float64()*0.4
	p.Velocity = p.Velocity.RotateY((e.src.Float64() - 0.5) * math.Pi / 2)
	e.bus.Publish(Bounce{ProjectileID: p.ID, EnemyID: enemyID, BouncesRemaining: p.Bounces})
}

// Remove deletes id. It reports false if id was not present.
func (e *Engine) Remove(id string) bool {
	p, ok := e.projectiles[id]
	if !ok {
		return false
	}
	p.Active = false
	delete(e.projectiles, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	e.bus.Publish(Removed{ProjectileID: id, TowerID: p.TowerID, Type: p.Type, Hit: p.HasHit || len(p.HitTargets) > 0})
	return true
}

// Get returns the projectile with id.
func (e *Engine) Get(id string) (*Projectile, bool) {
	p, ok := e.projectiles[id]
	return p, ok
}

// Active returns every projectile in creation order.
func (e *Engine) Active() []*Projectile {
	out := make([]*Projectile, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.projectiles[id])
	}
	return out
}

// ByTower returns the projectiles fired by towerID in creation order.
func (e *Engine) ByTower(towerID string) []*Projectile {
	var out []*Projectile
	for _, id := range e.order {
		if p := e.projectiles[id]; p.TowerID == towerID {
			out = append(out, p)
		}
	}
	return out
}

// Clear removes every projectile, publishing Removed for each.
func (e *Engine) Clear() {
	for _, id := range slices.Clone(e.order) {
		e.Remove(id)
	}
}

// Stats summarises the engine.
type Stats struct {
	Active       int
	ByType       map[Type]int
	AverageSpeed float64
	Created      uint64
	Hits         uint64
	Kills        uint64
}

// Stats returns projectile telemetry.
func (e *Engine) Stats() Stats {
	s := Stats{Active: len(e.projectiles), ByType: make(map[Type]int), Created: e.created, Hits: e.hits, Kills: e.kills}
	total := 0.0
	for _, p := range e.projectiles {
		s.ByType[p.Type]++
		total += p.Speed
	}
	if s.Active > 0 {
		s.AverageSpeed = total / float64(s.Active)
	}
	return s
}
