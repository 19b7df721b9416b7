// Package sim composes the game engines into one tick-driven simulation of
// a single level.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/economy"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/pathfind"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
	"github.com/cory-johannsen/towerdefense/internal/game/tower"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/observability"
)

// Hooks receives both effect and wave script hooks.
type Hooks interface {
	effect.HookCaller
	wave.HookCaller
}

// Simulation owns every engine of one level and advances them in a fixed
// order on each Tick.
//
// Every exported method is safe for concurrent use.
type Simulation struct {
	mu     sync.Mutex
	id     string
	cfg    Config
	lvl    *level.Level
	bus    *event.Bus
	logger *zap.Logger

	health      *health.Engine
	effects     *effect.Engine
	enemies     *enemy.Manager
	selector    *targeting.Selector
	projectiles *projectile.Engine
	towers      *tower.Engine
	ledger      *economy.Ledger
	waves       *wave.Scheduler
	paths       *pathfind.Pathfinder

	templates *enemy.Registry
	ground    []geom.Vec3
	air       []geom.Vec3

	tick   uint64
	now    float64
	over   bool
	deaths []string
	leaks  []enemy.ReachedEnd
	splash []projectile.Splash
	chains []projectile.Chain
}

// New builds a Simulation of lvl from the registries in cat.
//
// Precondition: cat and lvl must not be nil; lvl.Map must be set.
// Postcondition: Returns a Simulation at time zero with no wave started,
// or a non-nil error.
func New(cfg Config, cat *Catalog, lvl *level.Level, src dice.Source, bus *event.Bus, logger *zap.Logger) (*Simulation, error) {
	if cat == nil || lvl == nil || lvl.Map == nil {
		return nil, fmt.Errorf("sim.New: catalog, level and map are required")
	}
	if cfg.MaxDeltaMs <= 0 {
		cfg.MaxDeltaMs = defaultMaxDeltaMs
	}
	id := uuid.NewString()
	logger = observability.Session(logger, id, lvl.Number)
	if bus == nil {
		bus = event.NewBus(observability.Component(logger, "event"))
	}

	s := &Simulation{
		id:        id,
		cfg:       cfg,
		lvl:       lvl,
		bus:       bus,
		logger:    logger,
		templates: cat.Enemies,
	}

	m := lvl.Map
	pcfg := cfg.Pathfinding
	pcfg.MapWidth, pcfg.MapHeight = m.Width, m.Height
	paths, err := pathfind.New(pcfg, observability.Component(logger, "pathfind"))
	if err != nil {
		return nil, fmt.Errorf("creating pathfinder: %w", err)
	}
	paths.BuildGrid(m.Width, m.Height, pcfg.CellSize, m.Obstacles)
	s.paths = paths
	s.air = m.Corridor()
	s.ground = s.route(s.air)

	s.health = health.NewEngine(cfg.Health, bus, observability.Component(logger, "health"))
	s.effects = effect.NewEngine(cat.Effects, s.health, bus, observability.Component(logger, "effect"))
	s.enemies = enemy.NewManager(s.health, s.effects, bus, observability.Component(logger, "enemy"))
	s.effects.SetDamageRouter(s.enemies)
	s.selector = targeting.NewSelector(cfg.Targeting, src, bus, observability.Component(logger, "targeting"))
	s.projectiles = projectile.NewEngine(
		projectile.Config{Width: m.Width, Height: m.Height},
		s.enemies, s.effects, src, bus, observability.Component(logger, "projectile"),
	)
	s.ledger = economy.NewLedger(cfg.Economy, bus, observability.Component(logger, "economy"))
	s.towers = tower.NewEngine(cat.Towers, tower.Deps{
		Map:      m,
		Ledger:   s.ledger,
		Selector: s.selector,
		Launcher: s.projectiles,
		Effects:  s.effects,
	}, bus, observability.Component(logger, "tower"))
	s.waves = wave.NewScheduler(cfg.Waves, lvl, spawner{s}, s.ledger, bus, observability.Component(logger, "wave"))

	s.subscribe()
	logger.Info("simulation created",
		zap.String("map", m.ID),
		zap.Int("waves", len(lvl.Waves)),
		zap.Int("route_points", len(s.ground)),
	)
	return s, nil
}

// route stitches grid paths between consecutive corridor points.
func (s *Simulation) route(corridor []geom.Vec3) []geom.Vec3 {
	out := []geom.Vec3{corridor[0]}
	for i := 1; i < len(corridor); i++ {
		leg := s.paths.FindPath(corridor[i-1], corridor[i])
		out = append(out, leg[1:]...)
	}
	return out
}

func (s *Simulation) subscribe() {
	s.health.OnDeath(func(d health.Death) {
		s.deaths = append(s.deaths, d.EntityID)
	})
	event.On(s.bus, event.EnemyReachedEnd, func(e enemy.ReachedEnd) {
		s.leaks = append(s.leaks, e)
	})
	event.On(s.bus, event.SplashDamage, func(e projectile.Splash) {
		s.splash = append(s.splash, e)
	})
	event.On(s.bus, event.ChainLightning, func(e projectile.Chain) {
		s.chains = append(s.chains, e)
	})
	event.On(s.bus, event.ProjectileHit, func(e projectile.Hit) {
		s.towers.RecordDamage(e.TowerID, e.Damage)
	})
	event.On(s.bus, event.EnemyKilled, func(e projectile.EnemyKilled) {
		s.towers.RecordKill(e.TowerID)
	})
	event.On(s.bus, event.TowerBuilt, func(tower.Built) {
		s.ledger.RecordTowerBuilt()
	})
	event.On(s.bus, event.WaveComplete, func(wave.Completed) {
		s.ledger.RecordWaveSurvived()
	})
	event.On(s.bus, event.GameOver, func(e economy.GameOverEvent) {
		s.over = true
		s.logger.Info("game over", zap.Int("score", e.Score))
	})
}

// SetHooks routes effect and wave hooks to h.
func (s *Simulation) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects.SetHooks(h)
	s.waves.SetHooks(h)
}

// Tick advances the simulation by dtMs, clamped to the configured maximum.
// A finished game does not advance.
func (s *Simulation) Tick(dtMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over || dtMs <= 0 {
		return
	}
	dt := math.Min(dtMs, s.cfg.MaxDeltaMs)
	s.tick++
	s.now += dt

	s.waves.Update(s.now)
	s.effects.Update(dt)
	s.health.Update(dt)
	s.enemies.Update(dt)
	s.ledger.Update(dt)
	s.towers.Update(dt, s.now, s.enemies.Alive())
	s.projectiles.Update(dt)
	s.resolveSecondary()
	s.resolveDeaths()
	s.resolveLeaks()
}

// resolveSecondary applies splash and chain damage requested by this
// tick's hits. Secondary kills are resolved in the same tick.
func (s *Simulation) resolveSecondary() {
	for len(s.splash) > 0 || len(s.chains) > 0 {
		splash, chains := s.splash, s.chains
		s.splash, s.chains = nil, nil
		for _, e := range splash {
			for _, target := range s.selector.InSplashRadius(e.Position, e.Radius, s.enemies.Alive(), e.EpicenterID) {
				s.secondaryHit(e.TowerID, e.ProjectileID, target.ID, e.Damage, health.Physical)
			}
		}
		for _, e := range chains {
			s.chain(e)
		}
	}
}

// chain arcs e to its further targets. Jump i deals Damage·(1−Reduction)^i.
func (s *Simulation) chain(e projectile.Chain) {
	initial, ok := s.enemies.Get(e.InitialID)
	if !ok {
		return
	}
	targets := s.selector.ChainTargets(initial, s.enemies.Alive(), e.MaxTargets, e.Range)
	for i, target := range targets {
		if i == 0 {
			continue
		}
		dmg := e.Damage * math.Pow(1-e.Reduction, float64(i))
		s.secondaryHit(e.TowerID, e.ProjectileID, target.ID, dmg, health.Lightning)
	}
}

func (s *Simulation) secondaryHit(towerID, projectileID, enemyID string, amount float64, kind health.DamageType) {
	if amount <= 0 {
		return
	}
	res := s.enemies.Damage(enemyID, amount, health.DamageOptions{Type: kind, Source: projectileID})
	s.towers.RecordDamage(towerID, res.Dealt+res.Absorbed)
	if res.Killed {
		s.towers.RecordKill(towerID)
	}
}

// resolveDeaths pays bounties for enemies that died this tick and removes
// them from the arena.
func (s *Simulation) resolveDeaths() {
	deaths := s.deaths
	s.deaths = nil
	for _, id := range deaths {
		e, ok := s.enemies.Get(id)
		if !ok {
			continue
		}
		s.waves.OnEnemyKilled(id)
		s.ledger.AddGold(e.Bounty)
		s.ledger.AddScore(e.ScoreValue)
		s.ledger.RecordEnemyDefeated()
		s.enemies.Remove(id)
	}
}

func (s *Simulation) resolveLeaks() {
	leaks := s.leaks
	s.leaks = nil
	for _, e := range leaks {
		s.waves.OnEnemyReachedEnd(e.EnemyID, e.Damage)
		s.enemies.Remove(e.EnemyID)
	}
}

// spawner adapts the simulation to wave.Spawner. It runs inside Tick.
type spawner struct{ s *Simulation }

func (sp spawner) SpawnEnemy(enemyType string) (string, bool) {
	s := sp.s
	t, ok := s.templates.Get(enemyType)
	if !ok {
		return "", false
	}
	path := s.ground
	if t.Has(enemy.Flying) {
		path = s.air
	}
	scale := s.lvl.Scaling.EnemyScale(s.lvl.Number, t.Boss)
	e := s.enemies.Spawn(t, s.lvl.Map.Spawn, path, scale)
	return e.ID, true
}

func (sp spawner) ActiveEnemies() int { return sp.s.enemies.Count() }

// PlaceTower builds towerType at (x, z).
func (s *Simulation) PlaceTower(towerType string, x, z float64) tower.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.towers.Place(towerType, x, z, s.now)
}

// UpgradeTower upgrades tower id. An empty target raises its level;
// otherwise it converts to the target type.
func (s *Simulation) UpgradeTower(id, target string) tower.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.towers.Upgrade(id, target)
}

// SellTower sells tower id for its refund value.
func (s *Simulation) SellTower(id string) tower.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.towers.Sell(id)
}

// SetTargetingMode changes how tower id picks targets.
func (s *Simulation) SetTargetingMode(id string, m targeting.Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.towers.Get(id); !ok {
		return false
	}
	return s.selector.SetMode(id, m)
}

// ApplyEffect applies a status effect to an enemy or tower.
func (s *Simulation) ApplyEffect(entityID string, kind effect.Kind, p effect.Params) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effects.Apply(entityID, kind, p)
}

// StartNextWave queues the next wave of the level.
func (s *Simulation) StartNextWave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return false
	}
	return s.waves.StartNextWave()
}

func (s *Simulation) SkipWave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waves.SkipWave()
}

func (s *Simulation) PauseWave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waves.Pause()
}

func (s *Simulation) ResumeWave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waves.Resume()
}

// ID returns the session id.
func (s *Simulation) ID() string { return s.id }

// Bus returns the event bus the engines publish on.
func (s *Simulation) Bus() *event.Bus { return s.bus }

// Level returns the level being played.
func (s *Simulation) Level() *level.Level { return s.lvl }

// Now returns the simulated milliseconds elapsed.
func (s *Simulation) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// GameOver reports whether every life has been lost.
func (s *Simulation) GameOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

// LevelComplete reports whether every wave has been cleared.
func (s *Simulation) LevelComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waves.State() == wave.LevelComplete
}

// Results returns the results of every finished wave.
func (s *Simulation) Results() []wave.Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waves.Results()
}

// Route returns the ground path enemies follow.
func (s *Simulation) Route() []geom.Vec3 {
	return append([]geom.Vec3(nil), s.ground...)
}

// Stats aggregates every engine's telemetry.
type Stats struct {
	Tick        uint64
	TimeMs      float64
	Enemies     enemy.Stats
	Towers      tower.Stats
	Projectiles projectile.Stats
	Effects     effect.Stats
	Health      health.EngineStats
	Targeting   targeting.Stats
	Pathfinding pathfind.Stats
	Wave        wave.Stats
	Ledger      economy.Snapshot
}

// Stats returns telemetry from every engine.
func (s *Simulation) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Tick:        s.tick,
		TimeMs:      s.now,
		Enemies:     s.enemies.Stats(),
		Towers:      s.towers.Stats(),
		Projectiles: s.projectiles.Stats(),
		Effects:     s.effects.Stats(),
		Health:      s.health.Stats(),
		Targeting:   s.selector.Stats(),
		Pathfinding: s.paths.Stats(),
		Wave:        s.waves.Stats(),
		Ledger:      s.ledger.Snapshot(),
	}
}
