package enemy

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// Health is the subset of the health engine the arena drives.
type Health interface {
	Register(id string, s health.Stats) health.Entity
	Unregister(id string)
	Get(id string) (health.Entity, bool)
	DealDamage(id string, amount float64, opts health.DamageOptions) health.DamageResult
	Heal(id string, amount float64, opts health.HealOptions) health.HealResult
	AddShield(id string, amount float64)
	SetInvulnerable(id string, on bool)
}

// Effects is the subset of the status effect engine the arena drives.
type Effects interface {
	Register(entityID string, mods *effect.Modifiers)
	Unregister(entityID string)
	Apply(entityID string, kind effect.Kind, params effect.Params) (string, bool)
}

// FeedbackSink receives floating-number feedback for presentation layers.
type FeedbackSink interface {
	ShowDamageNumber(enemyID string, amount float64, kind string)
}

type nopFeedback struct{}

func (nopFeedback) ShowDamageNumber(string, float64, string) {}

// Scale multiplies a template's health and speed at spawn time.
type Scale struct {
	Health float64
	Speed  float64
}

// Unscaled leaves a template unchanged.
var Unscaled = Scale{Health: 1, Speed: 1}

// Manager is the arena of live enemies keyed by id.
// It is not safe for concurrent use; the caller must serialise access.
type Manager struct {
	health   Health
	effects  Effects
	bus      *event.Bus
	logger   *zap.Logger
	feedback FeedbackSink
	enemies  map[string]*Enemy
	order    []string
	nextID   uint64
	now      float64
}

// NewManager creates an empty arena.
//
// Precondition: h must not be nil; fx, bus and logger may be nil.
func NewManager(h Health, fx Effects, bus *event.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		health:   h,
		effects:  fx,
		bus:      bus,
		logger:   logger,
		feedback: nopFeedback{},
		enemies:  make(map[string]*Enemy),
	}
}

// SetFeedback installs a feedback sink. nil restores the no-op sink.
func (m *Manager) SetFeedback(f FeedbackSink) {
	if f == nil {
		f = nopFeedback{}
	}
	m.feedback = f
}

// Spawn creates an enemy from t at pos following path, with health and
// speed multiplied by scale.
//
// Postcondition: the enemy is registered with the health and effect engines
// and its id has the form enemy_N.
func (m *Manager) Spawn(t Template, pos geom.Vec3, path []geom.Vec3, scale Scale) *Enemy {
	if scale.Health <= 0 {
		scale.Health = 1
	}
	if scale.Speed <= 0 {
		scale.Speed = 1
	}
	m.nextID++
	maxHP := float64(int(t.Health * scale.Health))
	e := &Enemy{
		ID:          fmt.Sprintf("enemy_%d", m.nextID),
		Type:        t.ID,
		Boss:        t.Boss,
		Health:      maxHP,
		MaxHealth:   maxHP,
		Damage:      t.Damage,
		Bounty:      t.Bounty,
		ScoreValue:  t.ScoreValue,
		Size:        t.Size,
		Position:    pos,
		BaseSpeed:   t.Speed * scale.Speed,
		Path:        slices.Clone(path),
		Abilities:   slices.Clone(t.Abilities),
		Alive:       true,
		SpawnedAt:   m.now,
		Resistances: t.Resistances,
		Weaknesses:  t.Weaknesses,
		Mods:        effect.NewModifiers(),
		cooldowns:   make(map[Ability]float64),
	}
	if e.Size <= 0 {
		e.Size = 1
	}

	entityType := "enemy"
	if t.Boss {
		entityType = "boss"
	}
	stats := health.Stats{
		MaxHealth:       maxHP,
		Armor:           t.Armor,
		MagicResistance: t.MagicResistance,
		Regeneration:    t.Regeneration,
		EntityType:      entityType,
	}
	for _, a := range e.Abilities {
		if b := abilities[a]; b.prepare != nil {
			b.prepare(&stats)
		}
	}
	m.health.Register(e.ID, stats)
	if m.effects != nil {
		m.effects.Register(e.ID, e.Mods)
	}
	for _, a := range e.Abilities {
		if b := abilities[a]; b.spawn != nil {
			b.spawn(m, e)
		}
	}

	m.enemies[e.ID] = e
	m.order = append(m.order, e.ID)
	m.logger.Debug("enemy spawned",
		zap.String("enemy", e.ID),
		zap.String("type", e.Type),
		zap.Float64("health", maxHP),
	)
	return e
}

// Get returns the enemy with id, live or not, while it is in the arena.
func (m *Manager) Get(id string) (*Enemy, bool) {
	e, ok := m.enemies[id]
	return e, ok
}

// Remove takes id out of the arena and unregisters it from the health and
// effect engines. It reports false if id was not present.
func (m *Manager) Remove(id string) bool {
	if _, ok := m.enemies[id]; !ok {
		return false
	}
	delete(m.enemies, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	if m.effects != nil {
		m.effects.Unregister(id)
	}
	m.health.Unregister(id)
	return true
}

// Clear removes every enemy.
func (m *Manager) Clear() {
	for _, id := range slices.Clone(m.order) {
		m.Remove(id)
	}
}

// All returns every enemy in spawn order.
func (m *Manager) All() []*Enemy {
	out := make([]*Enemy, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.enemies[id])
	}
	return out
}

// Alive returns every alive enemy still on the map, in spawn order.
func (m *Manager) Alive() []*Enemy {
	var out []*Enemy
	for _, id := range m.order {
		if e := m.enemies[id]; e.Active() {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of alive enemies still on the map.
func (m *Manager) Count() int {
	n := 0
	for _, e := range m.enemies {
		if e.Active() {
			n++
		}
	}
	return n
}

// Owns reports whether id is an enemy in the arena.
func (m *Manager) Owns(id string) bool {
	_, ok := m.enemies[id]
	return ok
}

// Damage deals amount of type opts.Type to id after applying the enemy's
// resistances and weaknesses, then mirrors the resulting health.
func (m *Manager) Damage(id string, amount float64, opts health.DamageOptions) health.DamageResult {
	e, ok := m.enemies[id]
	if !ok || !e.Alive {
		return health.DamageResult{Blocked: amount}
	}
	if opts.Type == "" {
		opts.Type = health.Physical
	}
	res := m.health.DealDamage(id, amount*e.DamageMultiplier(opts.Type), opts)
	if res.Absorbed > 0 {
		m.feedback.ShowDamageNumber(id, res.Absorbed, "shield")
	}
	if res.Dealt > 0 {
		kind := "normal"
		if opts.Critical {
			kind = "critical"
		}
		m.feedback.ShowDamageNumber(id, res.Dealt, kind)
	}
	m.sync(e)
	return res
}

// sync mirrors health engine state onto e.
func (m *Manager) sync(e *Enemy) {
	ent, ok := m.health.Get(e.ID)
	if !ok {
		e.Alive = false
		return
	}
	e.Health = ent.Health
	e.MaxHealth = ent.MaxHealth
	if !ent.Alive() {
		e.Alive = false
	}
}

// Update advances abilities and movement for every active enemy by dtMs of
// simulation time, publishing EnemyReachedEnd for enemies that finish their
// path this tick.
func (m *Manager) Update(dtMs float64) {
	if dtMs <= 0 {
		return
	}
	m.now += dtMs
	for _, id := range slices.Clone(m.order) {
		e, ok := m.enemies[id]
		if !ok {
			continue
		}
		m.sync(e)
		if !e.Active() {
			continue
		}
		m.updateAbilities(e, dtMs)
		e.move(dtMs)
		if e.ReachedEnd {
			m.bus.Publish(ReachedEnd{EnemyID: e.ID, Type: e.Type, Damage: e.Damage})
		}
	}
}

func (m *Manager) updateAbilities(e *Enemy, dtMs float64) {
	if e.invulnerableLeft > 0 {
		e.invulnerableLeft -= dtMs
		if e.invulnerableLeft <= 0 {
			e.invulnerableLeft = 0
			m.health.SetInvulnerable(e.ID, false)
		}
	}
	for _, a := range e.Abilities {
		b := abilities[a]
		if b.trigger == nil {
			continue
		}
		e.cooldowns[a] -= dtMs
		if e.cooldowns[a] > 0 {
			continue
		}
		b.trigger(m, e)
		e.cooldowns[a] = b.cooldown
		m.sync(e)
		m.bus.Publish(AbilityUsed{EnemyID: e.ID, Ability: a})
	}
}

// Stats summarises the arena.
type Stats struct {
	Total      int
	Active     int
	ReachedEnd int
	ByType     map[string]int
}

// Stats returns arena telemetry.
func (m *Manager) Stats() Stats {
	s := Stats{Total: len(m.enemies), ByType: make(map[string]int)}
	for _, e := range m.enemies {
		if e.Active() {
			s.Active++
			s.ByType[e.Type]++
		}
		if e.ReachedEnd {
			s.ReachedEnd++
		}
	}
	return s
}
