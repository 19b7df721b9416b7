package tower

import (
	"math"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
)

// Rejection reasons.
const (
	ReasonOccupied       = "Position already occupied"
	ReasonOnPath         = "Cannot place on enemy path"
	ReasonObstructed     = "Position blocked by obstacle"
	ReasonOutOfBounds    = "Position outside map bounds"
	ReasonInvalidType    = "Invalid tower type"
	ReasonInsufficient   = "Insufficient resources"
	ReasonNotFound       = "Tower not found"
	ReasonBuilding       = "Tower is still building"
	ReasonMaxLevel       = "Tower already at maximum level"
	ReasonUpgradeCost    = "Insufficient resources for upgrade"
	ReasonNotAvailable   = "Upgrade not available for this tower"
	ReasonInvalidUpgrade = "Invalid upgrade type"
)

// levelUpgradeCostRatio prices a level upgrade at cost·0.5·level.
const levelUpgradeCostRatio = 0.5

// MapInfo answers placement queries about the playfield.
type MapInfo interface {
	WithinBounds(x, z float64) bool
	OnPath(x, z float64) bool
	Obstructed(x, z, clearance float64) bool
}

// Ledger pays for towers and receives refunds.
type Ledger interface {
	CanAfford(gold, energy int) bool
	Spend(gold, energy int) bool
	AddGold(amount int) int
}

// Selector picks targets and tracks per-tower modes.
type Selector interface {
	FindTarget(t targeting.Shooter, enemies []*enemy.Enemy) *enemy.Enemy
	IsValidTarget(t targeting.Shooter, e *enemy.Enemy) bool
	RemoveTower(towerID string) bool
}

// Launcher creates projectiles.
type Launcher interface {
	Create(l projectile.Launch) string
}

// Effects lets status effects act on towers.
type Effects interface {
	Register(entityID string, mods *effect.Modifiers)
	Unregister(entityID string)
}

// Validity is the outcome of a placement check.
type Validity struct {
	OK     bool
	Reason string
	Cell   Cell
}

// Result is the outcome of Place, Upgrade or Sell. Cost is what was
// charged; Refund is what Sell paid back.
type Result struct {
	Success bool
	Reason  string
	Tower   *Tower
	Cost    int
	Refund  int
}

func reject(reason string) Result { return Result{Reason: reason} }

// Deps bundles the engine's collaborators. Effects may be nil.
type Deps struct {
	Map      MapInfo
	Ledger   Ledger
	Selector Selector
	Launcher Launcher
	Effects  Effects
}

// Engine owns every placed tower.
// It is not safe for concurrent use; the caller must serialise access.
type Engine struct {
	defs   *Registry
	deps   Deps
	bus    *event.Bus
	logger *zap.Logger

	towers map[string]*Tower
	order  []string
	cells  map[Cell]string
}

// NewEngine creates an Engine.
//
// Precondition: defs and every dependency except Effects must not be nil.
func NewEngine(defs *Registry, deps Deps, bus *event.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		defs:   defs,
		deps:   deps,
		bus:    bus,
		logger: logger,
		towers: make(map[string]*Tower),
		cells:  make(map[Cell]string),
	}
}

// Definitions returns the registry the engine was built with.
func (e *Engine) Definitions() *Registry { return e.defs }

// CanPlace reports whether a tower may stand in the cell containing (x, z).
// The path, bounds and obstacle checks use the cell centre the tower would
// snap to.
func (e *Engine) CanPlace(x, z float64) Validity {
	cell := CellAt(x, z)
	center := cell.Center()
	switch {
	case e.cells[cell] != "":
		return Validity{Reason: ReasonOccupied, Cell: cell}
	case e.deps.Map.OnPath(center.X, center.Z):
		return Validity{Reason: ReasonOnPath, Cell: cell}
	case !e.deps.Map.WithinBounds(center.X, center.Z):
		return Validity{Reason: ReasonOutOfBounds, Cell: cell}
	case e.deps.Map.Obstructed(center.X, center.Z, GridSize/2):
		return Validity{Reason: ReasonObstructed, Cell: cell}
	}
	return Validity{OK: true, Cell: cell}
}

// Place builds a tower of type towerType at the cell containing (x, z),
// charging its cost.
//
// Postcondition: on success the tower is building, snapped to its cell
// centre, and its cell is occupied.
func (e *Engine) Place(towerType string, x, z, nowMs float64) Result {
	def, ok := e.defs.Get(towerType)
	if !ok {
		return reject(ReasonInvalidType)
	}
	if !e.deps.Ledger.CanAfford(def.Cost, 0) {
		return reject(ReasonInsufficient)
	}
	v := e.CanPlace(x, z)
	if !v.OK {
		return reject(v.Reason)
	}
	if !e.deps.Ledger.Spend(def.Cost, 0) {
		return reject(ReasonInsufficient)
	}

	t := &Tower{
		ID:             uuid.NewString(),
		Position:       v.Cell.Center(),
		Cell:           v.Cell,
		Level:          1,
		Building:       true,
		BuildRemaining: def.BuildTime,
		TotalCost:      def.Cost,
		SellValue:      Refund(def.Cost, def.SellRatio),
		PlacedAt:       nowMs,
		Mods:           effect.NewModifiers(),
	}
	t.apply(def)
	e.towers[t.ID] = t
	e.order = append(e.order, t.ID)
	e.cells[v.Cell] = t.ID
	if e.deps.Effects != nil {
		e.deps.Effects.Register(t.ID, t.Mods)
	}

	e.logger.Info("tower placed",
		zap.String("tower", t.ID),
		zap.String("type", t.Type),
		zap.Int("cell_x", v.Cell.X),
		zap.Int("cell_z", v.Cell.Z),
	)
	e.bus.Publish(Placed{TowerID: t.ID, Type: t.Type, Position: t.Position, Cost: def.Cost})
	if t.BuildRemaining <= 0 {
		e.finishBuild(t)
	}
	return Result{Success: true, Tower: t, Cost: def.Cost}
}

func (e *Engine) finishBuild(t *Tower) {
	t.Building = false
	t.BuildRemaining = 0
	e.bus.Publish(Built{TowerID: t.ID, Type: t.Type})
}

// Update advances build timers, then lets every finished tower re-validate
// or re-acquire its target and fire when its cooldown allows.
func (e *Engine) Update(dtMs, nowMs float64, enemies []*enemy.Enemy) {
	byID := make(map[string]*enemy.Enemy, len(enemies))
	for _, en := range enemies {
		byID[en.ID] = en
	}
	for _, id := range slices.Clone(e.order) {
		t, ok := e.towers[id]
		if !ok {
			continue
		}
		if t.Building {
			t.BuildRemaining -= dtMs
			if t.BuildRemaining > 0 {
				continue
			}
			e.finishBuild(t)
		}
		shooter := t.Shooter()
		target := byID[t.TargetID]
		if target == nil || !e.deps.Selector.IsValidTarget(shooter, target) {
			target = e.deps.Selector.FindTarget(shooter, enemies)
			t.TargetID = ""
			if target != nil {
				t.TargetID = target.ID
			}
		}
		if target == nil || t.disarmed() || nowMs-t.LastFired < t.Cooldown() {
			continue
		}
		e.fire(t, target, nowMs)
	}
}

func (e *Engine) fire(t *Tower, target *enemy.Enemy, nowMs float64) {
	aim := target.Position
	if prof, ok := projectile.ProfileOf(t.ProjectileType); ok && prof.Homing == 0 && !prof.Instant {
		aim = targeting.PredictPosition(target, t.ProjectileSpeed, t.Position)
	}
	damage := t.EffectiveDamage()
	pid := e.deps.Launcher.Create(projectile.Launch{
		TowerID:       t.ID,
		Type:          t.ProjectileType,
		Start:         t.Position,
		Target:        aim,
		TargetID:      target.ID,
		Damage:        damage,
		Speed:         t.ProjectileSpeed,
		ArmorPiercing: t.ArmorPiercing,
		SplashRadius:  t.SplashRadius,
		SplashDamage:  t.SplashDamage,
		Slow:          t.Slow,
		Poison:        t.Poison,
		Chain:         t.Chain,
	})
	t.LastFired = nowMs
	e.bus.Publish(Attack{TowerID: t.ID, EnemyID: target.ID, ProjectileID: pid, Damage: damage})
}

// Upgrade raises id one level when target is empty, or converts it to the
// tower type target when that is one of its available upgrades.
func (e *Engine) Upgrade(id, target string) Result {
	t, ok := e.towers[id]
	if !ok {
		return reject(ReasonNotFound)
	}
	if t.Building {
		return reject(ReasonBuilding)
	}
	if target == "" {
		return e.upgradeLevel(t)
	}
	return e.upgradeType(t, target)
}

func (e *Engine) upgradeLevel(t *Tower) Result {
	if t.Level >= t.MaxLevel {
		return reject(ReasonMaxLevel)
	}
	base, _ := e.defs.Get(t.Type)
	cost := int(math.Floor(float64(base.Cost) * levelUpgradeCostRatio * float64(t.Level)))
	if !e.deps.Ledger.CanAfford(cost, 0) || !e.deps.Ledger.Spend(cost, 0) {
		return reject(ReasonUpgradeCost)
	}
	t.Damage = math.Floor(t.Damage * 1.3)
	t.Range = floorTenth(t.Range * 1.1)
	t.AttackSpeed *= 1.1
	t.Level++
	e.charge(t, base, cost)
	e.bus.Publish(Upgraded{TowerID: t.ID, Kind: LevelUpgrade, OldType: t.Type, NewType: t.Type, Level: t.Level, Cost: cost})
	return Result{Success: true, Tower: t, Cost: cost}
}

func (e *Engine) upgradeType(t *Tower, target string) Result {
	if !slices.Contains(t.Upgrades, target) {
		return reject(ReasonNotAvailable)
	}
	next, ok := e.defs.Get(target)
	if !ok {
		return reject(ReasonInvalidUpgrade)
	}
	old, _ := e.defs.Get(t.Type)
	cost := max(0, next.Cost-old.Cost)
	if !e.deps.Ledger.CanAfford(cost, 0) || !e.deps.Ledger.Spend(cost, 0) {
		return reject(ReasonUpgradeCost)
	}
	oldType := t.Type
	t.apply(next)
	t.Level = 1
	e.charge(t, next, cost)
	e.bus.Publish(Upgraded{TowerID: t.ID, Kind: TypeUpgrade, OldType: oldType, NewType: t.Type, Level: t.Level, Cost: cost})
	return Result{Success: true, Tower: t, Cost: cost}
}

func (e *Engine) charge(t *Tower, d *Definition, cost int) {
	t.TotalCost += cost
	t.SellValue = Refund(t.TotalCost, d.SellRatio)
	e.logger.Info("tower upgraded",
		zap.String("tower", t.ID),
		zap.String("type", t.Type),
		zap.Int("level", t.Level),
		zap.Int("cost", cost),
	)
}

// Sell removes id, refunds its sell value, frees its cell and drops its
// targeting mode. Selling an unknown or already sold tower is rejected
// without side effects.
func (e *Engine) Sell(id string) Result {
	t, ok := e.towers[id]
	if !ok {
		return reject(ReasonNotFound)
	}
	e.deps.Ledger.AddGold(t.SellValue)
	e.remove(t)
	e.bus.Publish(Sold{TowerID: t.ID, Type: t.Type, Refund: t.SellValue})
	return Result{Success: true, Tower: t, Refund: t.SellValue}
}

func (e *Engine) remove(t *Tower) {
	delete(e.towers, t.ID)
	delete(e.cells, t.Cell)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == t.ID })
	e.deps.Selector.RemoveTower(t.ID)
	if e.deps.Effects != nil {
		e.deps.Effects.Unregister(t.ID)
	}
}

// Get returns the tower with id.
func (e *Engine) Get(id string) (*Tower, bool) {
	t, ok := e.towers[id]
	return t, ok
}

// All returns every tower in placement order.
func (e *Engine) All() []*Tower {
	out := make([]*Tower, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.towers[id])
	}
	return out
}

// AtPosition returns the tower occupying the cell containing (x, z).
func (e *Engine) AtPosition(x, z float64) (*Tower, bool) {
	id, ok := e.cells[CellAt(x, z)]
	if !ok {
		return nil, false
	}
	return e.towers[id], true
}

// RecordKill credits a kill to id.
func (e *Engine) RecordKill(id string) {
	if t, ok := e.towers[id]; ok {
		t.Kills++
	}
}

// RecordDamage credits amount of dealt damage to id.
func (e *Engine) RecordDamage(id string, amount float64) {
	if t, ok := e.towers[id]; ok && amount > 0 {
		t.TotalDamage += amount
	}
}

// Clear removes every tower without refunds.
func (e *Engine) Clear() {
	for _, id := range slices.Clone(e.order) {
		e.remove(e.towers[id])
	}
	e.bus.Publish(AllCleared{})
}

// Stats summarises the engine.
type Stats struct {
	Total         int
	Building      int
	Active        int
	TotalDamage   float64
	TotalKills    int
	TotalValue    int
	OccupiedCells int
}

// Stats returns tower telemetry.
func (e *Engine) Stats() Stats {
	s := Stats{Total: len(e.towers), OccupiedCells: len(e.cells)}
	for _, t := range e.towers {
		if t.Building {
			s.Building++
		}
		s.TotalDamage += t.TotalDamage
		s.TotalKills += t.Kills
		s.TotalValue += t.TotalCost
	}
	s.Active = s.Total - s.Building
	return s
}
