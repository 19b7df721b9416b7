// Package health owns hit points for every simulated entity: mitigation,
// shields, regeneration, queued damage and healing, and death notification.
package health

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/event"
)

// DamageType selects which mitigation stat applies to a hit.
type DamageType string

const (
	Physical  DamageType = "physical"
	Magical   DamageType = "magical"
	True      DamageType = "true"
	Fire      DamageType = "fire"
	Poison    DamageType = "poison"
	Energy    DamageType = "energy"
	Ice       DamageType = "ice"
	Lightning DamageType = "lightning"
)

// Valid reports whether d is one of the declared damage types.
func (d DamageType) Valid() bool {
	switch d {
	case Physical, Magical, True, Fire, Poison, Energy, Ice, Lightning:
		return true
	}
	return false
}

// mitigated reports whether armor, magic resistance and damage reduction apply.
func (d DamageType) mitigated() bool { return d != True }

// Stats is the registration block for an entity. Zero values take defaults:
// MaxHealth 100, Health = MaxHealth, RegenerationRate 1000 ms, EntityType "enemy".
type Stats struct {
	MaxHealth        float64
	Health           float64
	Armor            float64
	MagicResistance  float64
	Regeneration     float64
	RegenerationRate float64
	DamageReduction  float64
	Shield           float64
	EntityType       string
}

// StatsPatch holds additive stat deltas for ModifyStats. Every resulting stat
// is clamped at 0.
type StatsPatch struct {
	MaxHealth       float64
	Armor           float64
	MagicResistance float64
	Regeneration    float64
	DamageReduction float64
}

// Entity is a read-only view of one registered entity.
type Entity struct {
	ID               string
	EntityType       string
	Health           float64
	MaxHealth        float64
	Armor            float64
	MagicResistance  float64
	Regeneration     float64
	RegenerationRate float64
	DamageReduction  float64
	Shield           float64
	Invulnerable     bool
}

// Alive reports whether the entity has health left.
func (e Entity) Alive() bool { return e.Health > 0 }

// Ratio returns Health/MaxHealth.
func (e Entity) Ratio() float64 {
	if e.MaxHealth <= 0 {
		return 0
	}
	return e.Health / e.MaxHealth
}

type entity struct {
	Entity
	dead      bool
	regenLeft float64
	onDeath   []func(Death)
}

// DamageOptions qualifies a hit.
type DamageOptions struct {
	Type     DamageType
	Critical bool
	Piercing bool
	Source   string
}

// DamageResult reports how a hit resolved. The final damage lands on shield
// first (Absorbed) and then on health (Dealt, capped at the health remaining).
type DamageResult struct {
	Dealt float64
	// Blocked is the damage removed by mitigation: the post-critical amount
	// minus the final damage. A critical hit never makes it negative.
	Blocked   float64
	Absorbed  float64
	Killed    bool
	Remaining float64
}

// HealOptions qualifies a heal.
type HealOptions struct {
	// CanOverheal converts healing beyond max health into shield.
	CanOverheal bool
	Source      string
}

// HealResult reports how a heal resolved. Healed + Overflow always equals
// the requested amount.
type HealResult struct {
	Healed   float64
	Overflow float64
}

// Death describes an entity reaching zero health.
type Death struct {
	EntityID   string
	EntityType string
	Source     string
}

// Config tunes the engine.
type Config struct {
	CriticalMultiplier float64
	LowHealthThreshold float64
}

// DefaultConfig returns a critical multiplier of 2 and a low-health threshold of 25%.
func DefaultConfig() Config {
	return Config{CriticalMultiplier: 2, LowHealthThreshold: 0.25}
}

type queuedDamage struct {
	id     string
	amount float64
	opts   DamageOptions
}

type queuedHeal struct {
	id     string
	amount float64
	opts   HealOptions
}

// Engine tracks health for registered entities.
// It is not safe for concurrent use; the caller must serialise access.
//
// Invariant: every entity's Health is in [0, MaxHealth]; reaching 0 fires death exactly once.
type Engine struct {
	cfg      Config
	bus      *event.Bus
	logger   *zap.Logger
	entities map[string]*entity
	onDeath  []func(Death)
	damageQ  []queuedDamage
	healQ    []queuedHeal
}

// NewEngine creates an empty Engine.
//
// Precondition: bus and logger may be nil.
func NewEngine(cfg Config, bus *event.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CriticalMultiplier <= 0 {
		cfg.CriticalMultiplier = 2
	}
	if cfg.LowHealthThreshold <= 0 {
		cfg.LowHealthThreshold = 0.25
	}
	return &Engine{
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		entities: make(map[string]*entity),
	}
}

// Register adds or replaces the entity id. Regeneration starts immediately
// when Regeneration > 0.
//
// Postcondition: Get(id) reports a live entity with Health <= MaxHealth.
func (e *Engine) Register(id string, s Stats) Entity {
	if s.MaxHealth <= 0 {
		s.MaxHealth = 100
	}
	if s.Health <= 0 || s.Health > s.MaxHealth {
		s.Health = s.MaxHealth
	}
	if s.RegenerationRate <= 0 {
		s.RegenerationRate = 1000
	}
	if s.EntityType == "" {
		s.EntityType = "enemy"
	}
	ent := &entity{
		Entity: Entity{
			ID:               id,
			EntityType:       s.EntityType,
			Health:           s.Health,
			MaxHealth:        s.MaxHealth,
			Armor:            math.Max(0, s.Armor),
			MagicResistance:  math.Max(0, s.MagicResistance),
			Regeneration:     math.Max(0, s.Regeneration),
			RegenerationRate: s.RegenerationRate,
			DamageReduction:  clamp01(s.DamageReduction),
			Shield:           math.Max(0, s.Shield),
		},
		regenLeft: s.RegenerationRate,
	}
	e.entities[id] = ent
	e.bus.Publish(Registered{EntityID: id, EntityType: s.EntityType, MaxHealth: s.MaxHealth})
	return ent.Entity
}

// Unregister removes id. Unknown ids are ignored.
func (e *Engine) Unregister(id string) {
	if _, ok := e.entities[id]; !ok {
		return
	}
	delete(e.entities, id)
	e.bus.Publish(Unregistered{EntityID: id})
}

// Get returns a copy of the entity's state.
func (e *Engine) Get(id string) (Entity, bool) {
	ent, ok := e.entities[id]
	if !ok {
		return Entity{}, false
	}
	return ent.Entity, true
}

// IsAlive reports whether id is registered with health left.
func (e *Engine) IsAlive(id string) bool {
	ent, ok := e.entities[id]
	return ok && !ent.dead
}

// DealDamage resolves one hit against id.
//
// Postcondition: Dealt + Absorbed <= pre-mitigation amount - Blocked.
func (e *Engine) DealDamage(id string, amount float64, opts DamageOptions) DamageResult {
	ent, ok := e.entities[id]
	if !ok || ent.dead || ent.Invulnerable || amount <= 0 {
		return DamageResult{Blocked: math.Max(0, amount)}
	}
	if opts.Type == "" {
		opts.Type = Physical
	}
	raw := amount
	if opts.Critical {
		raw *= e.cfg.CriticalMultiplier
	}
	final := raw
	if !opts.Piercing && opts.Type.mitigated() {
		switch opts.Type {
		case Physical:
			final *= 1 - ent.Armor/(ent.Armor+100)
		case Magical:
			final *= 1 - ent.MagicResistance/(ent.MagicResistance+100)
		}
		final *= 1 - ent.DamageReduction
	}
	final = math.Max(0, math.Round(final))

	absorbed := math.Min(ent.Shield, final)
	ent.Shield -= absorbed
	dealt := math.Min(ent.Health, final-absorbed)
	old := ent.Health
	ent.Health -= dealt
	if ent.Health < 0 {
		ent.Health = 0
	}
	killed := ent.Health == 0

	e.bus.Publish(DamageTaken{
		EntityID: id,
		Damage:   dealt,
		Absorbed: absorbed,
		Blocked:  raw - final,
		Type:     opts.Type,
		Critical: opts.Critical,
		Source:   opts.Source,
		OldHP:    old,
		NewHP:    ent.Health,
		Killed:   killed,
	})
	if killed {
		e.die(ent, opts.Source)
	}
	return DamageResult{
		Dealt:     dealt,
		Blocked:   raw - final,
		Absorbed:  absorbed,
		Killed:    killed,
		Remaining: ent.Health,
	}
}

// Heal restores up to amount health to id. Dead or unknown entities take
// nothing and the whole amount overflows.
func (e *Engine) Heal(id string, amount float64, opts HealOptions) HealResult {
	ent, ok := e.entities[id]
	if !ok || ent.dead || amount <= 0 {
		return HealResult{Overflow: math.Max(0, amount)}
	}
	old := ent.Health
	healed := math.Min(amount, ent.MaxHealth-ent.Health)
	ent.Health += healed
	overflow := amount - healed
	if opts.CanOverheal && overflow > 0 {
		ent.Shield += overflow
	}
	e.bus.Publish(Healed{
		EntityID: id,
		Healed:   healed,
		Overflow: overflow,
		Source:   opts.Source,
		OldHP:    old,
		NewHP:    ent.Health,
	})
	return HealResult{Healed: healed, Overflow: overflow}
}

// SetHealth sets id's health directly, clamped to [0, MaxHealth]. Dropping to
// 0 fires death; dead entities are left untouched.
func (e *Engine) SetHealth(id string, hp float64) {
	ent, ok := e.entities[id]
	if !ok || ent.dead {
		return
	}
	old := ent.Health
	ent.Health = math.Max(0, math.Min(hp, ent.MaxHealth))
	e.bus.Publish(HealthChanged{EntityID: id, OldHP: old, NewHP: ent.Health})
	if ent.Health == 0 && old > 0 {
		e.die(ent, "")
	}
}

// ModifyStats applies additive deltas. When max health changes the
// current health ratio is preserved.
func (e *Engine) ModifyStats(id string, p StatsPatch) {
	ent, ok := e.entities[id]
	if !ok {
		return
	}
	before := ent.Entity
	if p.MaxHealth != 0 {
		ratio := ent.Ratio()
		ent.MaxHealth = math.Max(1, ent.MaxHealth+p.MaxHealth)
		if !ent.dead {
			ent.Health = math.Max(1, math.Min(ent.MaxHealth, ratio*ent.MaxHealth))
		}
	}
	ent.Armor = math.Max(0, ent.Armor+p.Armor)
	ent.MagicResistance = math.Max(0, ent.MagicResistance+p.MagicResistance)
	ent.Regeneration = math.Max(0, ent.Regeneration+p.Regeneration)
	ent.DamageReduction = clamp01(ent.DamageReduction + p.DamageReduction)
	e.bus.Publish(StatsModified{EntityID: id, Before: before, After: ent.Entity})
}

// AdjustArmor adds delta to id's armor, clamped at 0, and returns the delta
// actually applied.
func (e *Engine) AdjustArmor(id string, delta float64) float64 {
	ent, ok := e.entities[id]
	if !ok {
		return 0
	}
	before := ent.Entity
	next := math.Max(0, ent.Armor+delta)
	applied := next - ent.Armor
	ent.Armor = next
	if applied != 0 {
		e.bus.Publish(StatsModified{EntityID: id, Before: before, After: ent.Entity})
	}
	return applied
}

// AddShield grants amount shield to id.
func (e *Engine) AddShield(id string, amount float64) {
	if ent, ok := e.entities[id]; ok && amount > 0 {
		ent.Shield += amount
	}
}

// DrainShield removes up to amount shield from id and returns what was removed.
func (e *Engine) DrainShield(id string, amount float64) float64 {
	ent, ok := e.entities[id]
	if !ok || amount <= 0 {
		return 0
	}
	drained := math.Min(ent.Shield, amount)
	ent.Shield -= drained
	return drained
}

// Shield returns id's remaining shield.
func (e *Engine) Shield(id string) float64 {
	if ent, ok := e.entities[id]; ok {
		return ent.Shield
	}
	return 0
}

// SetInvulnerable toggles whether id ignores damage.
func (e *Engine) SetInvulnerable(id string, on bool) {
	if ent, ok := e.entities[id]; ok {
		ent.Invulnerable = on
	}
}

// OnDeath registers fn for every entity's death.
func (e *Engine) OnDeath(fn func(Death)) {
	e.onDeath = append(e.onDeath, fn)
}

// AddDeathCallback registers fn for id's death only.
func (e *Engine) AddDeathCallback(id string, fn func(Death)) {
	if ent, ok := e.entities[id]; ok {
		ent.onDeath = append(ent.onDeath, fn)
	}
}

func (e *Engine) die(ent *entity, source string) {
	if ent.dead {
		return
	}
	ent.dead = true
	d := Death{EntityID: ent.ID, EntityType: ent.EntityType, Source: source}
	callbacks := append(slices.Clone(ent.onDeath), e.onDeath...)
	for _, fn := range callbacks {
		e.runDeathCallback(fn, d)
	}
	e.bus.Publish(Died(d))
}

func (e *Engine) runDeathCallback(fn func(Death), d Death) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("death callback panicked",
				zap.String("entity", d.EntityID),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(d)
}

// QueueDamage defers a hit to the next Update.
func (e *Engine) QueueDamage(id string, amount float64, opts DamageOptions) {
	e.damageQ = append(e.damageQ, queuedDamage{id: id, amount: amount, opts: opts})
}

// QueueHeal defers a heal to the next Update.
func (e *Engine) QueueHeal(id string, amount float64, opts HealOptions) {
	e.healQ = append(e.healQ, queuedHeal{id: id, amount: amount, opts: opts})
}

// Update drains the damage queue, then the heal queue, then advances
// regeneration countdowns by dtMs of simulation time.
func (e *Engine) Update(dtMs float64) {
	damage := e.damageQ
	e.damageQ = nil
	for _, q := range damage {
		e.DealDamage(q.id, q.amount, q.opts)
	}
	heals := e.healQ
	e.healQ = nil
	for _, q := range heals {
		e.Heal(q.id, q.amount, q.opts)
	}

	for _, id := range e.ids() {
		ent := e.entities[id]
		if ent == nil || ent.dead || ent.Regeneration <= 0 {
			continue
		}
		ent.regenLeft -= dtMs
		for ent.regenLeft <= 0 {
			ent.regenLeft += ent.RegenerationRate
			if ent.Health < ent.MaxHealth {
				e.Heal(id, ent.Regeneration, HealOptions{Source: "regeneration"})
			}
		}
	}
}

func (e *Engine) ids() []string {
	return slices.Sorted(maps.Keys(e.entities))
}

func (e *Engine) filter(keep func(*entity) bool) []Entity {
	var out []Entity
	for _, id := range e.ids() {
		if ent := e.entities[id]; keep(ent) {
			out = append(out, ent.Entity)
		}
	}
	return out
}

// Alive returns every living entity, ordered by id.
func (e *Engine) Alive() []Entity {
	return e.filter(func(ent *entity) bool { return !ent.dead })
}

// Dead returns every dead entity, ordered by id.
func (e *Engine) Dead() []Entity {
	return e.filter(func(ent *entity) bool { return ent.dead })
}

// ByType returns every entity of the given type, ordered by id.
func (e *Engine) ByType(entityType string) []Entity {
	return e.filter(func(ent *entity) bool { return ent.EntityType == entityType })
}

// LowHealth returns living entities at or below threshold of max health.
// A threshold <= 0 uses the configured default.
func (e *Engine) LowHealth(threshold float64) []Entity {
	if threshold <= 0 {
		threshold = e.cfg.LowHealthThreshold
	}
	return e.filter(func(ent *entity) bool { return !ent.dead && ent.Ratio() <= threshold })
}

// ResetAll restores every entity to full health and revives the dead.
func (e *Engine) ResetAll() {
	for _, id := range e.ids() {
		ent := e.entities[id]
		old := ent.Health
		ent.Health = ent.MaxHealth
		ent.dead = false
		ent.regenLeft = ent.RegenerationRate
		e.bus.Publish(HealthChanged{EntityID: id, OldHP: old, NewHP: ent.Health})
	}
}

// EngineStats summarises the engine for telemetry.
type EngineStats struct {
	Total       int
	Alive       int
	Dead        int
	ByType      map[string]int
	Regenerator int
	QueuedDmg   int
	QueuedHeal  int
}

// Stats returns engine telemetry.
func (e *Engine) Stats() EngineStats {
	s := EngineStats{Total: len(e.entities), ByType: make(map[string]int), QueuedDmg: len(e.damageQ), QueuedHeal: len(e.healQ)}
	for _, ent := range e.entities {
		if ent.dead {
			s.Dead++
		} else {
			s.Alive++
			if ent.Regeneration > 0 {
				s.Regenerator++
			}
		}
		s.ByType[ent.EntityType]++
	}
	return s
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
