package effect

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// Health is the subset of the health engine that effects act through.
type Health interface {
	DealDamage(id string, amount float64, opts health.DamageOptions) health.DamageResult
	Heal(id string, amount float64, opts health.HealOptions) health.HealResult
	AdjustArmor(id string, delta float64) float64
	AddShield(id string, amount float64)
	DrainShield(id string, amount float64) float64
	Shield(id string) float64
}

// DamageRouter resolves damage over time for the entities it owns, so that
// per-entity resistances apply before the hit reaches the health engine.
type DamageRouter interface {
	Owns(id string) bool
	Damage(id string, amount float64, opts health.DamageOptions) health.DamageResult
}

// HookCaller invokes a named script hook for an effect instance.
type HookCaller interface {
	CallEffectHook(hook, entityID, instanceID string) error
}

// Instance is one live effect on one entity.
type Instance struct {
	ID          string  `msgpack:"id"`
	EntityID    string  `msgpack:"entity_id"`
	Kind        Kind    `msgpack:"kind"`
	StartedAt   float64 `msgpack:"started_at"`
	Elapsed     float64 `msgpack:"elapsed"`
	Stackable   bool    `msgpack:"stackable"`
	Refreshable bool    `msgpack:"refreshable"`
	Params      Params  `msgpack:"params"`

	nextTick float64
	applied  float64
	// base is the shield beneath a Shield instance's layer. Layers above
	// it are consumed first.
	base float64
	seq  uint64
}

// shieldLeft returns how much of a Shield instance's layer survives when the
// entity holds total shield.
func (i *Instance) shieldLeft(total float64) float64 {
	return min(i.applied, max(0, total-i.base))
}

// Remaining returns the simulation milliseconds left before expiry.
func (i Instance) Remaining() float64 {
	return max(0, i.Params.DurationMs-i.Elapsed)
}

// Engine tracks every live effect instance.
// It is not safe for concurrent use; the caller must serialise access.
//
// Invariant: a non-stackable kind has at most one live instance per entity.
type Engine struct {
	defs      *Registry
	health    Health
	bus       *event.Bus
	logger    *zap.Logger
	hooks     HookCaller
	router    DamageRouter
	entities  map[string]*Modifiers
	instances map[string]*Instance
	nextID    uint64
	now       float64
}

// NewEngine creates an Engine over defs.
//
// Precondition: defs must not be nil; health, bus and logger may be nil.
func NewEngine(defs *Registry, h Health, bus *event.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		defs:      defs,
		health:    h,
		bus:       bus,
		logger:    logger,
		entities:  make(map[string]*Modifiers),
		instances: make(map[string]*Instance),
	}
}

// SetHooks installs the script hook caller. nil disables hooks.
func (e *Engine) SetHooks(h HookCaller) { e.hooks = h }

// SetDamageRouter routes damage over time through r for the entities it
// owns. nil sends every hit straight to the health engine.
func (e *Engine) SetDamageRouter(r DamageRouter) { e.router = r }

// Definitions returns the registry the engine was built with.
func (e *Engine) Definitions() *Registry { return e.defs }

// Register makes entityID a valid effect target acting on mods.
//
// Precondition: mods must not be nil.
func (e *Engine) Register(entityID string, mods *Modifiers) {
	e.entities[entityID] = mods
}

// Unregister removes every effect on entityID and forgets it.
func (e *Engine) Unregister(entityID string) {
	e.RemoveAll(entityID)
	delete(e.entities, entityID)
}

// Apply starts an effect of kind on entityID. A non-stackable kind with a
// live instance is refreshed (old instance removed first) when refreshable
// and rejected otherwise. Unknown kinds and unregistered entities are rejected.
//
// Postcondition: on success returns the new instance id and true; on rejection returns ("", false) with no state change.
func (e *Engine) Apply(entityID string, kind Kind, params Params) (string, bool) {
	def, ok := e.defs.Get(kind)
	if !ok {
		e.logger.Debug("unknown effect kind", zap.String("kind", string(kind)))
		return "", false
	}
	behavior, ok := behaviors[kind]
	if !ok {
		return "", false
	}
	if _, registered := e.entities[entityID]; !registered {
		return "", false
	}
	if !def.Stackable {
		if existing := e.first(entityID, kind); existing != nil {
			if !def.Refreshable {
				return "", false
			}
			e.remove(existing, false)
		}
	}

	e.nextID++
	inst := &Instance{
		ID:          fmt.Sprintf("%s_%d", kind, e.nextID),
		EntityID:    entityID,
		Kind:        kind,
		StartedAt:   e.now,
		Stackable:   def.Stackable,
		Refreshable: def.Refreshable,
		Params:      params.withDefaults(def.Defaults),
		seq:         e.nextID,
	}
	inst.nextTick = inst.Params.UpdateInterval
	e.instances[inst.ID] = inst
	if behavior.Apply != nil {
		behavior.Apply(e.target(inst), inst)
	}
	e.bus.Publish(Applied{EntityID: entityID, InstanceID: inst.ID, Kind: kind, DurationMs: inst.Params.DurationMs, Source: inst.Params.Source})
	e.callHook(def.LuaOnApply, inst)
	return inst.ID, true
}

func (e *Engine) target(inst *Instance) target {
	return target{id: inst.EntityID, mods: e.entities[inst.EntityID], health: e.health, router: e.router}
}

func (e *Engine) callHook(hook string, inst *Instance) {
	if hook == "" || e.hooks == nil {
		return
	}
	if err := e.hooks.CallEffectHook(hook, inst.EntityID, inst.ID); err != nil {
		e.logger.Warn("effect hook failed",
			zap.String("hook", hook),
			zap.String("instance", inst.ID),
			zap.Error(err),
		)
	}
}

// first returns the oldest live instance of kind on entityID.
func (e *Engine) first(entityID string, kind Kind) *Instance {
	var found *Instance
	for _, inst := range e.instances {
		if inst.EntityID == entityID && inst.Kind == kind && (found == nil || inst.seq < found.seq) {
			found = inst
		}
	}
	return found
}

func (e *Engine) remove(inst *Instance, expired bool) {
	if _, ok := e.instances[inst.ID]; !ok {
		return
	}
	delete(e.instances, inst.ID)
	if b := behaviors[inst.Kind]; b.Remove != nil && e.entities[inst.EntityID] != nil {
		b.Remove(e.target(inst), inst)
	}
	if inst.Kind == Shield {
		e.lowerShieldLayers(inst)
	}
	e.bus.Publish(Removed{EntityID: inst.EntityID, InstanceID: inst.ID, Kind: inst.Kind, Expired: expired})
	if def, ok := e.defs.Get(inst.Kind); ok {
		e.callHook(def.LuaOnRemove, inst)
	}
}

// lowerShieldLayers drops the base of every shield layered above gone.
func (e *Engine) lowerShieldLayers(gone *Instance) {
	for _, other := range e.instances {
		if other.EntityID == gone.EntityID && other.Kind == Shield && other.seq > gone.seq {
			other.base = max(0, other.base-gone.applied)
		}
	}
}

// Remove ends instanceID. It reports false if no such instance is live.
func (e *Engine) Remove(instanceID string) bool {
	inst, ok := e.instances[instanceID]
	if !ok {
		return false
	}
	e.remove(inst, false)
	return true
}

// RemoveAll ends every effect on entityID and returns how many were removed.
func (e *Engine) RemoveAll(entityID string) int {
	n := 0
	for _, inst := range e.ordered() {
		if inst.EntityID == entityID {
			e.remove(inst, false)
			n++
		}
	}
	return n
}

// RemoveAllOfKind ends every effect of kind on every entity.
func (e *Engine) RemoveAllOfKind(kind Kind) int {
	n := 0
	for _, inst := range e.ordered() {
		if inst.Kind == kind {
			e.remove(inst, false)
			n++
		}
	}
	return n
}

// Clear ends every effect and publishes AllCleared.
func (e *Engine) Clear() {
	for _, inst := range e.ordered() {
		e.remove(inst, false)
	}
	e.bus.Publish(AllCleared{})
}

// ordered returns live instances in application order.
func (e *Engine) ordered() []*Instance {
	out := slices.Collect(maps.Values(e.instances))
	slices.SortFunc(out, func(a, b *Instance) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Update advances every instance by dtMs of simulation time, firing periodic
// updates at each UpdateInterval boundary up to the duration, then expiring
// instances whose duration has elapsed.
func (e *Engine) Update(dtMs float64) {
	if dtMs <= 0 {
		return
	}
	e.now += dtMs
	for _, inst := range e.ordered() {
		if _, live := e.instances[inst.ID]; !live {
			continue
		}
		inst.Elapsed += dtMs
		if e.tick(inst) {
			continue
		}
		if inst.Elapsed >= inst.Params.DurationMs {
			e.remove(inst, true)
		}
	}
}

// tick runs due periodic updates and reports whether the instance ended.
func (e *Engine) tick(inst *Instance) bool {
	b := behaviors[inst.Kind]
	if b.Update == nil {
		return false
	}
	def, _ := e.defs.Get(inst.Kind)
	limit := min(inst.Elapsed, inst.Params.DurationMs)
	for inst.nextTick <= limit {
		inst.nextTick += inst.Params.UpdateInterval
		amount, done := b.Update(e.target(inst), inst)
		if _, live := e.instances[inst.ID]; !live {
			return true
		}
		if done {
			e.remove(inst, true)
			return true
		}
		if amount > 0 {
			e.bus.Publish(Tick{EntityID: inst.EntityID, InstanceID: inst.ID, Kind: inst.Kind, Amount: amount})
		}
		if def != nil {
			e.callHook(def.LuaOnTick, inst)
		}
	}
	return false
}

// Get returns a copy of instanceID.
func (e *Engine) Get(instanceID string) (Instance, bool) {
	inst, ok := e.instances[instanceID]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// Has reports whether entityID has a live effect of kind.
func (e *Engine) Has(entityID string, kind Kind) bool {
	return e.first(entityID, kind) != nil
}

// Count returns the number of live effects of kind on entityID.
func (e *Engine) Count(entityID string, kind Kind) int {
	n := 0
	for _, inst := range e.instances {
		if inst.EntityID == entityID && inst.Kind == kind {
			n++
		}
	}
	return n
}

// Effects returns copies of every live effect on entityID in application order.
func (e *Engine) Effects(entityID string) []Instance {
	var out []Instance
	for _, inst := range e.ordered() {
		if inst.EntityID == entityID {
			out = append(out, *inst)
		}
	}
	return out
}

// All returns copies of every live effect in application order.
func (e *Engine) All() []Instance {
	insts := e.ordered()
	out := make([]Instance, len(insts))
	for i, inst := range insts {
		out[i] = *inst
	}
	return out
}

// Stats summarises live effects.
type Stats struct {
	Total    int
	Entities int
	ByKind   map[Kind]int
	Kinds    int
}

// Stats returns effect telemetry.
func (e *Engine) Stats() Stats {
	s := Stats{Total: len(e.instances), ByKind: make(map[Kind]int), Kinds: len(e.defs.All())}
	seen := make(map[string]bool)
	for _, inst := range e.instances {
		s.ByKind[inst.Kind]++
		seen[inst.EntityID] = true
	}
	s.Entities = len(seen)
	return s
}
