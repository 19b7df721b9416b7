package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/scripting"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

const step = 50.0

// testLevel plays a single wave of groups on the meadow map.
func testLevel(t *testing.T, cat *sim.Catalog, groups ...level.Group) *level.Level {
	t.Helper()
	m, ok := cat.Maps.Get("meadow")
	require.True(t, ok)
	return &level.Level{
		Number: 1,
		Name:   "Test",
		Map:    m,
		Waves: []level.WaveDefinition{{
			Number:       1,
			Name:         "Only",
			Groups:       groups,
			PreWaveDelay: 1000,
		}},
	}
}

func newSim(t *testing.T, mutate func(*sim.Config), groups ...level.Group) *sim.Simulation {
	t.Helper()
	cat := loadCatalog(t)
	cfg := sim.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := sim.New(cfg, cat, testLevel(t, cat, groups...), dice.NewSeededSource(3), event.NewBus(nil), nil)
	require.NoError(t, err)
	return s
}

// runUntil ticks s until done reports true or limitMs of simulated time pass.
func runUntil(t *testing.T, s *sim.Simulation, limitMs float64, done func() bool) {
	t.Helper()
	for elapsed := 0.0; elapsed < limitMs; elapsed += step {
		if done() {
			return
		}
		s.Tick(step)
	}
	require.True(t, done(), "condition not met within %v ms", limitMs)
}

func TestNew_RequiresLevelAndMap(t *testing.T) {
	cat := loadCatalog(t)
	_, err := sim.New(sim.DefaultConfig(), cat, &level.Level{Number: 1}, dice.NewSeededSource(1), nil, nil)
	require.Error(t, err)
}

func TestNew_RouteJoinsCorridorEnds(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	route := s.Route()
	require.GreaterOrEqual(t, len(route), 2)
	m := s.Level().Map
	assert.Equal(t, m.Spawn, route[0])
	assert.Equal(t, m.End, route[len(route)-1])
	assert.NotEmpty(t, s.ID())
}

func TestTick_ClampsDelta(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	s.Tick(1000)
	assert.Equal(t, 100.0, s.Now())
	s.Tick(-5)
	assert.Equal(t, 100.0, s.Now())
	assert.Equal(t, uint64(1), s.Stats().Tick)
}

func TestSpawn_FlyingEnemiesIgnoreTheGroundRoute(t *testing.T) {
	s := newSim(t, nil,
		level.Group{Type: "basic", Count: 1},
		level.Group{Type: "flying", Count: 1},
	)
	require.True(t, s.StartNextWave())
	runUntil(t, s, 3000, func() bool { return len(s.Snapshot().Enemies) == 2 })

	snap := s.Snapshot()
	for _, e := range snap.Enemies {
		if e.Type == "flying" {
			assert.Equal(t, s.Level().Map.Corridor(), e.Path)
		} else {
			assert.Equal(t, s.Route(), e.Path)
		}
	}
}

func TestLeak_CostsLivesAndCompletesWave(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	require.True(t, s.StartNextWave())
	runUntil(t, s, 60000, s.LevelComplete)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Ledger.Lives)
	assert.Empty(t, snap.Enemies)
	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ReachedEnd)
	assert.Equal(t, 0, results[0].Killed)
	assert.False(t, s.GameOver())
}

func TestGameOver_FreezesTheSimulation(t *testing.T) {
	s := newSim(t, func(c *sim.Config) { c.Economy.StartingLives = 1 }, level.Group{Type: "basic", Count: 1})
	require.True(t, s.StartNextWave())
	runUntil(t, s, 60000, s.GameOver)

	now := s.Now()
	s.Tick(step)
	assert.Equal(t, now, s.Now())
	assert.False(t, s.StartNextWave())
	assert.True(t, s.Snapshot().GameOver)
}

func TestTowers_KillPaysBountyAndCreditsTower(t *testing.T) {
	s := newSim(t, func(c *sim.Config) { c.Economy.StartingGold = 1000 }, level.Group{Type: "basic", Count: 1})
	north := s.PlaceTower("basic", 0, 4)
	require.True(t, north.Success, north.Reason)
	south := s.PlaceTower("basic", 0, -4)
	require.True(t, south.Success, south.Reason)

	require.True(t, s.StartNextWave())
	runUntil(t, s, 60000, s.LevelComplete)

	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Killed)
	assert.Equal(t, 0, results[0].ReachedEnd)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Ledger.Lives)
	assert.Equal(t, 1, snap.Ledger.Stats.EnemiesDefeated)
	assert.Equal(t, 2, snap.Ledger.Stats.TowersBuilt)
	assert.Equal(t, 1, snap.Ledger.Stats.WavesSurvived)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Towers.TotalKills)
	assert.GreaterOrEqual(t, stats.Towers.TotalDamage, 100.0)
}

func TestTowers_RejectedOnPath(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	res := s.PlaceTower("basic", 0, 0)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, 100, s.Snapshot().Ledger.Gold)
}

// spawnTrio starts a wave of three basic enemies and runs until all are out.
func spawnTrio(t *testing.T) (*sim.Simulation, []string) {
	t.Helper()
	s := newSim(t, nil, level.Group{Type: "basic", Count: 3, Interval: 100})
	require.True(t, s.StartNextWave())
	runUntil(t, s, 3000, func() bool { return len(s.Snapshot().Enemies) == 3 })
	var ids []string
	for _, e := range s.Snapshot().Enemies {
		ids = append(ids, e.ID)
	}
	return s, ids
}

func healths(s *sim.Simulation) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range s.Snapshot().Enemies {
		out[e.ID] = e.Health
	}
	return out
}

func TestSplash_DamagesNeighboursButNotTheEpicenter(t *testing.T) {
	s, ids := spawnTrio(t)
	s.Bus().Publish(projectile.Splash{
		EpicenterID: ids[0],
		Position:    s.Level().Map.Spawn,
		Radius:      6,
		Damage:      40,
	})
	s.Tick(1)

	hp := healths(s)
	assert.Equal(t, 100.0, hp[ids[0]])
	assert.Equal(t, 60.0, hp[ids[1]])
	assert.Equal(t, 60.0, hp[ids[2]])
}

func TestChain_FallsOffPerJump(t *testing.T) {
	s, ids := spawnTrio(t)
	s.Bus().Publish(projectile.Chain{
		InitialID:  ids[0],
		MaxTargets: 3,
		Reduction:  0.5,
		Range:      10,
		Damage:     40,
	})
	s.Tick(1)

	hp := healths(s)
	assert.Equal(t, 100.0, hp[ids[0]])
	assert.ElementsMatch(t, []float64{80, 90}, []float64{hp[ids[1]], hp[ids[2]]})
}

func TestEffect_DamageOverTimeKillsAndPays(t *testing.T) {
	s, ids := spawnTrio(t)
	scoreBefore := s.Snapshot().Ledger.Score
	_, ok := s.ApplyEffect(ids[0], effect.Poison, effect.Params{DamagePerSecond: 1000, DurationMs: 2000})
	require.True(t, ok)
	runUntil(t, s, 3000, func() bool { _, alive := healths(s)[ids[0]]; return !alive })

	assert.Equal(t, scoreBefore+10, s.Snapshot().Ledger.Score)
	assert.Equal(t, 1, s.Snapshot().Wave.Killed)
}

func TestWaveControls(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 3, Interval: 1000})
	assert.False(t, s.PauseWave())
	require.True(t, s.StartNextWave())
	assert.True(t, s.PauseWave())
	s.Tick(step)
	assert.Equal(t, wave.PreWave, s.Snapshot().Wave.State)
	assert.True(t, s.ResumeWave())
	assert.True(t, s.SkipWave())
	runUntil(t, s, 1000, s.LevelComplete)
	assert.Empty(t, s.Snapshot().Enemies)
}

func TestSetTargetingMode_UnknownTower(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	assert.False(t, s.SetTargetingMode("nope", targeting.Closest))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s, ids := spawnTrio(t)
	s.PlaceTower("basic", 0, 4)
	s.Tick(step)

	snap := s.Snapshot()
	b, err := snap.Marshal()
	require.NoError(t, err)
	got, err := sim.UnmarshalSnapshot(b)
	require.NoError(t, err)

	assert.Equal(t, snap.SessionID, got.SessionID)
	assert.Equal(t, snap.Tick, got.Tick)
	assert.Equal(t, snap.TimeMs, got.TimeMs)
	assert.Equal(t, snap.Ledger, got.Ledger)
	assert.Equal(t, snap.Wave, got.Wave)
	require.Len(t, got.Enemies, len(ids))
	assert.Equal(t, snap.Enemies[0].ID, got.Enemies[0].ID)
	assert.Equal(t, snap.Enemies[0].Position, got.Enemies[0].Position)
	require.Len(t, got.Towers, 1)
	assert.Equal(t, snap.Towers[0].ID, got.Towers[0].ID)

	_, err = sim.UnmarshalSnapshot([]byte{0xc1})
	assert.Error(t, err)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s, _ := spawnTrio(t)
	snap := s.Snapshot()
	snap.Enemies[0].Path[0].X = 999
	assert.NotEqual(t, 999.0, s.Snapshot().Enemies[0].Path[0].X)
}

func TestAttachScripts_WaveHookPaysPerfectBonus(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	mgr := scripting.NewManager(dice.NewSeededSource(1), zap.NewNop())
	require.NoError(t, s.AttachScripts(mgr, "../../content/scripts", 0))

	require.True(t, s.StartNextWave())
	runUntil(t, s, 3000, func() bool { return len(s.Snapshot().Enemies) == 1 })
	id := s.Snapshot().Enemies[0].ID
	_, ok := s.ApplyEffect(id, effect.Poison, effect.Params{DamagePerSecond: 1000})
	require.True(t, ok)
	runUntil(t, s, 5000, s.LevelComplete)

	results := s.Results()
	require.Len(t, results, 1)
	require.True(t, results[0].Perfect)
	assert.Equal(t, 10+50, s.Snapshot().Ledger.Score)
}

func TestBindings_ReachEnemiesAndTowers(t *testing.T) {
	s, ids := spawnTrio(t)
	b := s.Bindings()

	info, ok := b.Entity(ids[0])
	require.True(t, ok)
	assert.Equal(t, "enemy", info.Kind)
	assert.Equal(t, "basic", info.Type)
	assert.True(t, info.Alive)

	assert.Equal(t, 30.0, b.Damage(ids[1], 30, "true"))
	assert.Equal(t, 70.0, healths(s)[ids[1]])
	assert.Equal(t, 10.0, b.Heal(ids[1], 10))

	res := s.PlaceTower("basic", 0, 4)
	require.True(t, res.Success)
	info, ok = b.Entity(res.Tower.ID)
	require.True(t, ok)
	assert.Equal(t, "tower", info.Kind)

	_, ok = b.Entity("ghost")
	assert.False(t, ok)
}
