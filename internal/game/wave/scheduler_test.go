package wave_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/towerdefense/internal/game/economy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
)

type fakeSpawner struct {
	clock   float64
	n       int
	alive   map[string]bool
	ids     []string
	times   []float64
	refuses map[string]bool
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{alive: make(map[string]bool), refuses: make(map[string]bool)}
}

func (f *fakeSpawner) SpawnEnemy(enemyType string) (string, bool) {
	if f.refuses[enemyType] {
		return "", false
	}
	f.n++
	id := fmt.Sprintf("enemy_%d", f.n)
	f.alive[id] = true
	f.ids = append(f.ids, id)
	f.times = append(f.times, f.clock)
	return id, true
}

func (f *fakeSpawner) ActiveEnemies() int { return len(f.alive) }

type fakeHooks struct {
	calls []wave.Results
	err   error
}

func (h *fakeHooks) CallWaveHook(hook string, r wave.Results) error {
	if hook == wave.HookWaveComplete {
		h.calls = append(h.calls, r)
	}
	return h.err
}

type rig struct {
	s      *wave.Scheduler
	sp     *fakeSpawner
	ledger *economy.Ledger
	bus    *event.Bus
	clock  float64
}

func newRig(t *testing.T, cfg wave.Config, lvl *level.Level, logger *zap.Logger) *rig {
	t.Helper()
	bus := event.NewBus(nil)
	sp := newFakeSpawner()
	ledger := economy.NewLedger(economy.DefaultConfig(), bus, nil)
	return &rig{s: wave.NewScheduler(cfg, lvl, sp, ledger, bus, logger), sp: sp, ledger: ledger, bus: bus}
}

// run advances simulation time by ms in 50 ms ticks.
func (r *rig) run(ms float64) {
	for end := r.clock + ms; r.clock < end; {
		r.clock += 50
		r.sp.clock = r.clock
		r.s.Update(r.clock)
	}
}

func (r *rig) kill(id string) {
	delete(r.sp.alive, id)
	r.s.OnEnemyKilled(id)
}

func (r *rig) leak(id string, damage int) {
	delete(r.sp.alive, id)
	r.s.OnEnemyReachedEnd(id, damage)
}

func oneWave(groups ...level.Group) *level.Level {
	return &level.Level{
		Number: 1,
		Waves:  []level.WaveDefinition{{Number: 1, Name: "Opening", Groups: groups, PreWaveDelay: 1000}},
	}
}

func TestExpand_ThreeSpawnSchedule(t *testing.T) {
	q := wave.Expand([]level.Group{{Type: "basic", Count: 3, Interval: 1000}})
	require.Len(t, q, 3)
	for i, ev := range q {
		assert.Equal(t, "basic", ev.EnemyType)
		assert.Equal(t, float64(i)*1000, ev.ScheduledTime)
		assert.False(t, ev.Spawned)
	}
}

func TestExpand_MergesGroupsByTime(t *testing.T) {
	q := wave.Expand([]level.Group{
		{Type: "a", Count: 2},
		{Type: "b", Count: 2, Interval: 300, Delay: 500},
		{Type: "c", Count: 1, Delay: 1000},
	})
	var got []string
	for _, ev := range q {
		got = append(got, fmt.Sprintf("%s@%g", ev.EnemyType, ev.ScheduledTime))
	}
	assert.Equal(t, []string{"a@0", "b@500", "b@800", "a@1000", "c@1000"}, got)
	assert.Equal(t, 2, q[4].GroupIndex)
}

func TestRate_Grades(t *testing.T) {
	cases := []struct {
		kill, surv float64
		want       wave.Rating
	}{
		{1, 1, wave.RatingS},
		{0.95, 0.95, wave.RatingS},
		{0.9, 0.8, wave.RatingA},
		{0.75, 0.75, wave.RatingB},
		{0.6, 0.75, wave.RatingC},
		{0.5, 0.5, wave.RatingD},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, wave.Rate(c.kill, c.surv), "kill=%g surv=%g", c.kill, c.surv)
	}
}

func TestScaleRewards_FloorsEachPart(t *testing.T) {
	got := wave.ScaleRewards(level.Rewards{Gold: 50, Energy: 9, Score: 101}, 0.75)
	assert.Equal(t, level.Rewards{Gold: 37, Energy: 6, Score: 75}, got)
}

func TestScheduler_SpawnsOnScheduleAfterPreWaveDelay(t *testing.T) {
	r := newRig(t, wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: 3, Interval: 1000}), nil)
	var began []wave.SpawningBegan
	event.On(r.bus, event.WaveSpawningBegan, func(e wave.SpawningBegan) { began = append(began, e) })

	require.True(t, r.s.StartNextWave())
	assert.Equal(t, wave.PreWave, r.s.State())
	r.run(950)
	assert.Empty(t, r.sp.times)

	r.run(2500)
	require.Len(t, began, 1)
	assert.Equal(t, []float64{1000, 2000, 3000}, r.sp.times)
	assert.Equal(t, wave.AwaitingClear, r.s.State())
}

func TestScheduler_CompletesOnlyWhenAllSpawnedAndNoneAlive(t *testing.T) {
	lvl := &level.Level{Number: 2, Waves: []level.WaveDefinition{
		{Number: 1, Groups: []level.Group{{Type: "basic", Count: 5, Interval: 100}}, PreWaveDelay: 1000,
			Rewards: level.Rewards{Gold: 50, Energy: 10, Score: 100}},
		{Number: 2, Groups: []level.Group{{Type: "basic", Count: 1}}, PreWaveDelay: 1000},
	}}
	r := newRig(t, wave.DefaultConfig(), lvl, nil)
	var done []wave.Completed
	event.On(r.bus, event.WaveComplete, func(c wave.Completed) { done = append(done, c) })

	require.True(t, r.s.StartNextWave())
	r.run(1500)
	require.Len(t, r.sp.ids, 5)
	for _, id := range r.sp.ids[:4] {
		r.kill(id)
	}
	r.run(5000)
	assert.Empty(t, done, "one enemy is still alive")
	assert.Equal(t, wave.AwaitingClear, r.s.State())

	r.kill(r.sp.ids[4])
	r.run(500)
	require.Len(t, done, 1)
	res := done[0].Results
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, 1, res.WaveNumber)
	assert.Equal(t, 5, res.TotalEnemies)
	assert.Equal(t, 1.0, res.KillRate)
	assert.True(t, res.Perfect)
	assert.Equal(t, wave.RatingS, res.Rating)
	assert.Equal(t, 1000.0, res.StartedAt)
	assert.Equal(t, level.Rewards{Gold: 50, Energy: 10, Score: 100}, res.Rewards)
	assert.Equal(t, 150, r.ledger.Gold())
	assert.Equal(t, 60, r.ledger.Energy())
	assert.Equal(t, 100, r.ledger.Score())

	assert.Equal(t, wave.Complete, r.s.State())
	assert.True(t, r.s.CanStartNextWave())
	assert.Len(t, r.s.Results(), 1)
}

func TestScheduler_LeaksScaleRewardsAndCostLives(t *testing.T) {
	lvl := oneWave(level.Group{Type: "basic", Count: 4, Interval: 100})
	lvl.Waves[0].Rewards = level.Rewards{Gold: 50}
	r := newRig(t, wave.DefaultConfig(), lvl, nil)

	require.True(t, r.s.StartNextWave())
	r.run(1500)
	require.Len(t, r.sp.ids, 4)
	r.leak(r.sp.ids[0], 1)
	for _, id := range r.sp.ids[1:] {
		r.kill(id)
	}
	assert.Equal(t, 2, r.ledger.Lives())
	r.run(1000)

	res := r.s.Results()
	require.Len(t, res, 1)
	assert.Equal(t, 0.75, res[0].KillRate)
	assert.Equal(t, 0.75, res[0].SurvivalRate)
	assert.False(t, res[0].Perfect)
	assert.Equal(t, wave.RatingB, res[0].Rating)
	assert.Equal(t, 37, res[0].Rewards.Gold)
	assert.Equal(t, 137, r.ledger.Gold())
}

func TestScheduler_ReachedEndFromEarlierWaveStillCostsLives(t *testing.T) {
	r := newRig(t, wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: 1}), nil)
	r.s.OnEnemyReachedEnd("stray", 2)
	assert.Equal(t, 1, r.ledger.Lives())
	assert.Zero(t, r.s.Stats().ReachedEnd)
}

func TestScheduler_StartRejections(t *testing.T) {
	lvl := oneWave(level.Group{Type: "basic", Count: 1})
	lvl.Rewards = level.Rewards{Gold: 200}
	r := newRig(t, wave.DefaultConfig(), lvl, nil)
	var levels []wave.LevelCompleted
	event.On(r.bus, event.LevelComplete, func(e wave.LevelCompleted) { levels = append(levels, e) })

	require.True(t, r.s.StartNextWave())
	assert.False(t, r.s.StartNextWave(), "a wave is already active")
	r.run(1000)
	r.kill(r.sp.ids[0])
	r.run(1000)

	assert.Equal(t, wave.LevelComplete, r.s.State())
	require.Len(t, levels, 1)
	assert.Equal(t, 1, levels[0].Waves)
	assert.Equal(t, 300, r.ledger.Gold())
	assert.False(t, r.s.StartNextWave(), "every wave has been played")
	assert.False(t, r.s.CanStartNextWave())
}

func TestScheduler_AutoStartsNextWaveAfterClampedDelay(t *testing.T) {
	lvl := &level.Level{Number: 1, Waves: []level.WaveDefinition{
		{Number: 1, Groups: []level.Group{{Type: "basic", Count: 1}}, PreWaveDelay: 1000},
		{Number: 2, Groups: []level.Group{{Type: "basic", Count: 1}}, PreWaveDelay: 1000},
	}}
	r := newRig(t, wave.Config{AutoStart: true, AutoStartDelay: 500}, lvl, nil)

	require.True(t, r.s.StartNextWave())
	r.run(1000)
	r.kill(r.sp.ids[0])
	r.run(500)
	require.Equal(t, wave.Complete, r.s.State())

	r.run(950)
	assert.Equal(t, wave.Complete, r.s.State(), "auto-start delay is at least 1000 ms")
	r.run(50)
	assert.Equal(t, wave.PreWave, r.s.State())
	assert.Equal(t, 2, r.s.CurrentWave())
}

func TestScheduler_PauseFreezesTimers(t *testing.T) {
	r := newRig(t, wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: 2, Interval: 1000}), nil)
	paused, resumed := 0, 0
	event.On(r.bus, event.WavePaused, func(wave.Paused) { paused++ })
	event.On(r.bus, event.WaveResumed, func(wave.Resumed) { resumed++ })

	assert.False(t, r.s.Pause(), "nothing to pause before a wave starts")
	require.True(t, r.s.StartNextWave())
	r.run(1000)
	require.Len(t, r.sp.ids, 1)

	require.True(t, r.s.Pause())
	assert.False(t, r.s.Pause())
	r.run(5000)
	assert.Len(t, r.sp.ids, 1)

	require.True(t, r.s.Resume())
	assert.False(t, r.s.Resume())
	r.run(950)
	assert.Len(t, r.sp.ids, 1)
	r.run(50)
	assert.Len(t, r.sp.ids, 2)
	assert.Equal(t, 1, paused)
	assert.Equal(t, 1, resumed)
}

func TestScheduler_SkipWaveDropsUnspawnedEvents(t *testing.T) {
	r := newRig(t, wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: 5, Interval: 1000}), nil)
	var skipped []wave.Skipped
	event.On(r.bus, event.WaveSkipped, func(s wave.Skipped) { skipped = append(skipped, s) })

	assert.False(t, r.s.SkipWave())
	require.True(t, r.s.StartNextWave())
	r.run(2000)
	require.Len(t, r.sp.ids, 2)

	require.True(t, r.s.SkipWave())
	require.Len(t, skipped, 1)
	assert.Equal(t, 3, skipped[0].Unspawned)
	assert.Zero(t, r.s.Remaining())
	assert.Equal(t, wave.AwaitingClear, r.s.State())

	r.run(500)
	assert.Equal(t, wave.AwaitingClear, r.s.State(), "spawned enemies are not removed")
	r.kill(r.sp.ids[0])
	r.kill(r.sp.ids[1])
	r.run(500)

	res := r.s.Results()
	require.Len(t, res, 1)
	assert.True(t, res[0].Skipped)
	assert.Equal(t, 2, res[0].TotalEnemies)
	assert.Len(t, r.sp.ids, 2)
}

func TestScheduler_Queries(t *testing.T) {
	lvl := oneWave(
		level.Group{Type: "a", Count: 2, Interval: 1000},
		level.Group{Type: "b", Count: 1, Delay: 500},
	)
	lvl.Waves[0].PreWaveDelay = 2000
	r := newRig(t, wave.DefaultConfig(), lvl, nil)
	assert.Empty(t, r.s.Description())

	require.True(t, r.s.StartNextWave())
	assert.Equal(t, "3 enemies (a, b)", r.s.Description())
	assert.Equal(t, 2000.0, r.s.TimeUntilNextSpawn())
	assert.Zero(t, r.s.Progress())

	r.run(2000)
	assert.Equal(t, 2, r.s.Remaining())
	assert.InDelta(t, 1.0/3, r.s.Progress(), 1e-9)
	assert.Equal(t, 500.0, r.s.TimeUntilNextSpawn())
	r.run(100)
	assert.Equal(t, 400.0, r.s.TimeUntilNextSpawn())

	st := r.s.Stats()
	assert.Equal(t, wave.Spawning, st.State)
	assert.Equal(t, 3, st.QueueLength)
	assert.Equal(t, 1, st.Spawned)
	assert.Equal(t, 1, st.OnField)
	assert.Len(t, r.s.Queue(), 3)
}

func TestScheduler_FailedSpawnIsLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRig(t, wave.DefaultConfig(), oneWave(
		level.Group{Type: "ghost", Count: 1},
		level.Group{Type: "basic", Count: 1},
	), zap.New(core))
	r.sp.refuses["ghost"] = true

	require.True(t, r.s.StartNextWave())
	r.run(1000)
	assert.Zero(t, r.s.Remaining())
	assert.Equal(t, 1, r.s.Stats().Spawned)
	assert.Equal(t, 1, logs.FilterMessage("enemy spawn failed").Len())
}

func TestScheduler_WaveHook(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRig(t, wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: 1}), zap.New(core))
	hooks := &fakeHooks{err: errors.New("boom")}
	r.s.SetHooks(hooks)

	require.True(t, r.s.StartNextWave())
	r.run(1000)
	r.kill(r.sp.ids[0])
	r.run(500)

	require.Len(t, hooks.calls, 1)
	assert.Equal(t, 1, hooks.calls[0].WaveNumber)
	assert.Equal(t, 1, logs.FilterMessage("wave hook failed").Len())
	assert.Equal(t, wave.LevelComplete, r.s.State(), "a failing hook does not stop completion")
}

func TestScheduler_DelaySettersAndReset(t *testing.T) {
	lvl := oneWave(level.Group{Type: "basic", Count: 1})
	lvl.Waves[0].PreWaveDelay = 0
	r := newRig(t, wave.DefaultConfig(), lvl, nil)
	r.s.SetPreWaveDelay(200)

	require.True(t, r.s.StartNextWave())
	r.run(950)
	assert.Empty(t, r.sp.ids)
	r.run(50)
	assert.Len(t, r.sp.ids, 1, "pre-wave delay is floored at 1000 ms")

	r.s.Reset()
	assert.Equal(t, wave.Idle, r.s.State())
	assert.Zero(t, r.s.CurrentWave())
	assert.Empty(t, r.s.Results())
	assert.True(t, r.s.CanStartNextWave())
}

func TestProperty_ExpandIsSortedAndComplete(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(rt, "groups")
		groups := make([]level.Group, n)
		total := 0
		for i := range groups {
			groups[i] = level.Group{
				Type:     fmt.Sprintf("g%d", i),
				Count:    rapid.IntRange(1, 10).Draw(rt, "count"),
				Interval: float64(rapid.IntRange(0, 2000).Draw(rt, "interval")),
				Delay:    float64(rapid.IntRange(0, 5000).Draw(rt, "delay")),
			}
			total += groups[i].Count
		}
		q := wave.Expand(groups)
		if len(q) != total {
			rt.Fatalf("queue has %d events, want %d", len(q), total)
		}
		for i := 1; i < len(q); i++ {
			if q[i].ScheduledTime < q[i-1].ScheduledTime {
				rt.Fatalf("event %d at %g precedes %g", i, q[i].ScheduledTime, q[i-1].ScheduledTime)
			}
		}
	})
}

func TestProperty_NeverCompletesWithEnemiesAlive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 8).Draw(rt, "count")
		bus := event.NewBus(nil)
		sp := newFakeSpawner()
		s := wave.NewScheduler(wave.DefaultConfig(), oneWave(level.Group{Type: "basic", Count: count, Interval: 200}), sp, nil, bus, nil)
		completed := false
		event.On(bus, event.WaveComplete, func(wave.Completed) { completed = true })
		s.StartNextWave()

		clock := 0.0
		for step := 0; step < 200 && !completed; step++ {
			clock += 50
			if len(sp.ids) > 0 && rapid.Bool().Draw(rt, "kill") {
				id := sp.ids[rapid.IntRange(0, len(sp.ids)-1).Draw(rt, "victim")]
				if sp.alive[id] {
					delete(sp.alive, id)
					s.OnEnemyKilled(id)
				}
			}
			aliveBefore := len(sp.alive)
			remainingBefore := s.Remaining()
			s.Update(clock)
			if completed && (aliveBefore > 0 || remainingBefore > 0 || len(sp.alive) > 0) {
				rt.Fatalf("wave completed with %d alive and %d unspawned", len(sp.alive), remainingBefore)
			}
		}
	})
}
