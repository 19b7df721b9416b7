package wave

import (
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
)

const (
	DefaultPreWaveDelay   = 5000.0
	DefaultAutoStartDelay = 3000.0
	// MinDelay is the floor for configurable pre-wave and auto-start delays.
	MinDelay = 1000.0

	spawnCheckInterval      = 100.0
	completionCheckInterval = 500.0
)

// HookWaveComplete is the script hook called with each wave's results.
const HookWaveComplete = "on_wave_complete"

// State is the scheduler's lifecycle phase.
type State string

const (
	Idle          State = "idle"
	PreWave       State = "pre_wave"
	Spawning      State = "spawning"
	AwaitingClear State = "awaiting_clear"
	Complete      State = "complete"
	LevelComplete State = "level_complete"
)

// Spawner creates enemies and reports how many are still on the field.
type Spawner interface {
	SpawnEnemy(enemyType string) (id string, ok bool)
	ActiveEnemies() int
}

// Ledger receives rewards and life losses.
type Ledger interface {
	AddGold(amount int) int
	AddEnergy(amount int) int
	AddScore(amount int) int
	LoseLives(n int) int
}

// HookCaller invokes a named script hook with a wave's results.
type HookCaller interface {
	CallWaveHook(hook string, r Results) error
}

// Config tunes scheduler timing. Delays are simulation ms.
type Config struct {
	PreWaveDelay   float64
	AutoStart      bool
	AutoStartDelay float64
}

// DefaultConfig returns a 5 s pre-wave delay with auto-start off.
func DefaultConfig() Config {
	return Config{PreWaveDelay: DefaultPreWaveDelay, AutoStartDelay: DefaultAutoStartDelay}
}

func (c Config) withDefaults() Config {
	if c.PreWaveDelay == 0 {
		c.PreWaveDelay = DefaultPreWaveDelay
	}
	if c.AutoStartDelay == 0 {
		c.AutoStartDelay = DefaultAutoStartDelay
	}
	c.PreWaveDelay = max(MinDelay, c.PreWaveDelay)
	c.AutoStartDelay = max(MinDelay, c.AutoStartDelay)
	return c
}

type counters struct {
	spawned    int
	killed     int
	reachedEnd int
	startedAt  float64
	skipped    bool
}

// Scheduler drives the waves of one level against simulation time.
// It is not safe for concurrent use; the caller must serialise access.
type Scheduler struct {
	cfg     Config
	lvl     *level.Level
	spawner Spawner
	ledger  Ledger
	hooks   HookCaller
	bus     *event.Bus
	logger  *zap.Logger

	state   State
	current int
	queue   []SpawnEvent
	now     float64
	paused  bool

	preWaveRemaining float64
	elapsed          float64
	nextCheck        float64
	nextPoll         float64
	autoPending      bool
	autoRemaining    float64

	tracked map[string]bool
	stats   counters
	results []Results
}

// NewScheduler creates an idle Scheduler for lvl.
//
// Precondition: lvl and spawner must not be nil.
// Postcondition: State() == Idle and CurrentWave() == 0.
func NewScheduler(cfg Config, lvl *level.Level, spawner Spawner, ledger Ledger, bus *event.Bus, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		lvl:     lvl,
		spawner: spawner,
		ledger:  ledger,
		bus:     bus,
		logger:  logger,
		state:   Idle,
		tracked: make(map[string]bool),
	}
}

// SetHooks installs the script hook caller.
func (s *Scheduler) SetHooks(h HookCaller) { s.hooks = h }

// StartNextWave queues the next wave and begins its pre-wave delay. It
// reports false when a wave is already active or every wave has been played.
func (s *Scheduler) StartNextWave() bool {
	if s.IsActive() {
		s.logger.Debug("wave start rejected: wave already active", zap.Int("wave", s.current))
		return false
	}
	if s.current >= len(s.lvl.Waves) {
		s.logger.Debug("wave start rejected: all waves completed", zap.Int("level", s.lvl.Number))
		return false
	}
	s.current++
	w := s.lvl.Waves[s.current-1]
	s.queue = Expand(w.Groups)
	s.stats = counters{}
	clear(s.tracked)
	s.autoPending = false
	s.paused = false
	s.state = PreWave
	s.preWaveRemaining = w.PreWaveDelay
	if s.preWaveRemaining <= 0 {
		s.preWaveRemaining = s.cfg.PreWaveDelay
	}
	s.logger.Info("wave started",
		zap.Int("level", s.lvl.Number),
		zap.Int("wave", s.current),
		zap.Int("enemies", len(s.queue)),
		zap.Float64("pre_wave_delay_ms", s.preWaveRemaining),
	)
	s.bus.Publish(Started{
		Wave:         s.current,
		Name:         w.Name,
		TotalEnemies: len(s.queue),
		PreWaveDelay: s.preWaveRemaining,
		Boss:         w.Boss,
	})
	return true
}

// Update advances the scheduler to simulation time nowMs. Spawn checks run
// on a 100 ms grid from the moment spawning begins and completion polls on
// a 500 ms grid once every event has spawned, so a large time jump runs
// every check it covers.
func (s *Scheduler) Update(nowMs float64) {
	dt := max(0, nowMs-s.now)
	s.now = nowMs
	if s.paused {
		return
	}
	switch s.state {
	case PreWave:
		s.preWaveRemaining -= dt
		if s.preWaveRemaining > 0 {
			return
		}
		s.beginSpawning(-s.preWaveRemaining)
		s.advance()
	case Spawning, AwaitingClear:
		s.elapsed += dt
		s.advance()
	case Complete:
		if !s.autoPending {
			return
		}
		s.autoRemaining -= dt
		if s.autoRemaining <= 0 {
			s.autoPending = false
			s.StartNextWave()
		}
	}
}

func (s *Scheduler) beginSpawning(overflow float64) {
	s.state = Spawning
	s.preWaveRemaining = 0
	s.elapsed = overflow
	s.nextCheck = 0
	s.stats.startedAt = s.now - overflow
	s.logger.Debug("wave spawning began", zap.Int("wave", s.current))
	s.bus.Publish(SpawningBegan{Wave: s.current})
}

func (s *Scheduler) advance() {
	for s.state == Spawning && s.nextCheck <= s.elapsed {
		s.spawnDue(s.nextCheck)
		s.nextCheck += spawnCheckInterval
	}
	for s.state == AwaitingClear && s.nextPoll <= s.elapsed {
		if s.spawner.ActiveEnemies() == 0 {
			s.complete(s.nextPoll)
			return
		}
		s.nextPoll += completionCheckInterval
	}
}

// spawnDue spawns every unspawned event scheduled at or before at.
func (s *Scheduler) spawnDue(at float64) {
	pending := 0
	for i := range s.queue {
		ev := &s.queue[i]
		if ev.Spawned {
			continue
		}
		if ev.ScheduledTime > at {
			pending++
			continue
		}
		ev.Spawned = true
		id, ok := s.spawner.SpawnEnemy(ev.EnemyType)
		if !ok {
			s.logger.Warn("enemy spawn failed",
				zap.Int("wave", s.current),
				zap.String("enemy_type", ev.EnemyType),
			)
			continue
		}
		s.tracked[id] = true
		s.stats.spawned++
		s.bus.Publish(Spawned{Wave: s.current, EnemyID: id, EnemyType: ev.EnemyType, GroupIndex: ev.GroupIndex})
	}
	if pending == 0 {
		s.state = AwaitingClear
		s.nextPoll = at + completionCheckInterval
	}
}

func (s *Scheduler) complete(at float64) {
	s.state = Complete
	w := s.lvl.Waves[s.current-1]
	r := newResults(s.stats.spawned, s.stats.killed, s.stats.reachedEnd)
	r.Level = s.lvl.Number
	r.WaveNumber = s.current
	r.StartedAt = s.stats.startedAt
	r.DurationMs = at
	r.Skipped = s.stats.skipped
	r.Rewards = ScaleRewards(w.Rewards, r.SurvivalRate)
	s.grant(r.Rewards)
	s.results = append(s.results, r)

	if s.hooks != nil {
		if err := s.hooks.CallWaveHook(HookWaveComplete, r); err != nil {
			s.logger.Warn("wave hook failed", zap.String("hook", HookWaveComplete), zap.Error(err))
		}
	}
	s.logger.Info("wave complete",
		zap.Int("level", r.Level),
		zap.Int("wave", r.WaveNumber),
		zap.Int("killed", r.Killed),
		zap.Int("reached_end", r.ReachedEnd),
		zap.String("rating", string(r.Rating)),
		zap.Float64("duration_ms", r.DurationMs),
	)
	s.bus.Publish(Completed{Results: r})

	switch {
	case s.current >= len(s.lvl.Waves):
		s.completeLevel()
	case s.cfg.AutoStart:
		s.autoPending = true
		s.autoRemaining = s.cfg.AutoStartDelay
	}
}

func (s *Scheduler) completeLevel() {
	s.state = LevelComplete
	s.grant(s.lvl.Rewards)
	s.logger.Info("level complete", zap.Int("level", s.lvl.Number), zap.Int("waves", len(s.lvl.Waves)))
	s.bus.Publish(LevelCompleted{Level: s.lvl.Number, Waves: len(s.lvl.Waves), Rewards: s.lvl.Rewards})
}

func (s *Scheduler) grant(r level.Rewards) {
	if s.ledger == nil || r.IsZero() {
		return
	}
	if r.Gold > 0 {
		s.ledger.AddGold(r.Gold)
	}
	if r.Energy > 0 {
		s.ledger.AddEnergy(r.Energy)
	}
	if r.Score > 0 {
		s.ledger.AddScore(r.Score)
	}
}

// OnEnemyKilled counts a kill against the current wave when id was spawned by it.
func (s *Scheduler) OnEnemyKilled(id string) {
	if !s.tracked[id] {
		return
	}
	delete(s.tracked, id)
	s.stats.killed++
}

// OnEnemyReachedEnd costs the player damage lives and, when id belongs to the
// current wave, counts it against the wave's survival rate.
func (s *Scheduler) OnEnemyReachedEnd(id string, damage int) {
	if s.tracked[id] {
		delete(s.tracked, id)
		s.stats.reachedEnd++
	}
	if damage > 0 && s.ledger != nil {
		s.ledger.LoseLives(damage)
	}
}

// SkipWave drops every unspawned event of the active wave. Enemies already
// on the field stay, and the wave completes once they are cleared.
func (s *Scheduler) SkipWave() bool {
	if !s.IsActive() {
		return false
	}
	unspawned := 0
	for i := range s.queue {
		if !s.queue[i].Spawned {
			s.queue[i].Spawned = true
			unspawned++
		}
	}
	if s.state == PreWave {
		s.preWaveRemaining = 0
		s.elapsed = 0
		s.stats.startedAt = s.now
	}
	s.state = AwaitingClear
	s.nextPoll = s.elapsed
	s.stats.skipped = true
	s.logger.Info("wave skipped", zap.Int("wave", s.current), zap.Int("unspawned", unspawned))
	s.bus.Publish(Skipped{Wave: s.current, Unspawned: unspawned})
	return true
}

// Pause freezes the active wave's timers.
func (s *Scheduler) Pause() bool {
	if !s.IsActive() || s.paused {
		return false
	}
	s.paused = true
	s.bus.Publish(Paused{Wave: s.current})
	return true
}

// Resume continues a paused wave. Time that passed while paused is not counted.
func (s *Scheduler) Resume() bool {
	if !s.paused {
		return false
	}
	s.paused = false
	s.bus.Publish(Resumed{Wave: s.current})
	return true
}

// IsActive reports whether a wave is between its start and its completion.
func (s *Scheduler) IsActive() bool {
	return s.state == PreWave || s.state == Spawning || s.state == AwaitingClear
}

func (s *Scheduler) IsPaused() bool { return s.paused }

// CanStartNextWave reports whether StartNextWave would succeed.
func (s *Scheduler) CanStartNextWave() bool {
	return !s.IsActive() && s.current < len(s.lvl.Waves)
}

func (s *Scheduler) State() State     { return s.state }
func (s *Scheduler) CurrentWave() int { return s.current }
func (s *Scheduler) TotalWaves() int  { return len(s.lvl.Waves) }

// Wave returns the definition of the current wave.
func (s *Scheduler) Wave() (level.WaveDefinition, bool) {
	if s.current == 0 {
		return level.WaveDefinition{}, false
	}
	return s.lvl.Waves[s.current-1], true
}

// Queue returns a copy of the current spawn queue.
func (s *Scheduler) Queue() []SpawnEvent { return slices.Clone(s.queue) }

// Progress returns the fraction of the active wave's queue already spawned.
func (s *Scheduler) Progress() float64 {
	if !s.IsActive() || len(s.queue) == 0 {
		return 0
	}
	return float64(len(s.queue)-s.Remaining()) / float64(len(s.queue))
}

// Remaining returns the number of unspawned events.
func (s *Scheduler) Remaining() int {
	n := 0
	for _, ev := range s.queue {
		if !ev.Spawned {
			n++
		}
	}
	return n
}

// TimeUntilNextSpawn returns the ms until the next unspawned event is due,
// including any pre-wave delay still to run.
func (s *Scheduler) TimeUntilNextSpawn() float64 {
	if !s.IsActive() {
		return 0
	}
	for _, ev := range s.queue {
		if ev.Spawned {
			continue
		}
		if s.state == PreWave {
			return s.preWaveRemaining + ev.ScheduledTime
		}
		return max(0, ev.ScheduledTime-s.elapsed)
	}
	return 0
}

// Description summarises the current wave, or returns "" before the first.
func (s *Scheduler) Description() string {
	w, ok := s.Wave()
	if !ok {
		return ""
	}
	return Describe(w)
}

// SetPreWaveDelay sets the fallback pre-wave delay, floored at MinDelay.
func (s *Scheduler) SetPreWaveDelay(ms float64) { s.cfg.PreWaveDelay = max(MinDelay, ms) }

// SetAutoStartDelay sets the delay before an automatic next wave, floored at MinDelay.
func (s *Scheduler) SetAutoStartDelay(ms float64) { s.cfg.AutoStartDelay = max(MinDelay, ms) }

func (s *Scheduler) SetAutoStart(on bool) {
	s.cfg.AutoStart = on
	if !on {
		s.autoPending = false
	}
}

// Reset returns the scheduler to wave 0 and forgets every result.
func (s *Scheduler) Reset() {
	s.state = Idle
	s.current = 0
	s.queue = nil
	s.paused = false
	s.autoPending = false
	s.preWaveRemaining = 0
	s.elapsed = 0
	s.stats = counters{}
	clear(s.tracked)
	s.results = nil
}

// Results returns the results of every completed wave, oldest first.
func (s *Scheduler) Results() []Results { return slices.Clone(s.results) }

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Level       int     `msgpack:"level"`
	State       State   `msgpack:"state"`
	CurrentWave int     `msgpack:"current_wave"`
	TotalWaves  int     `msgpack:"total_waves"`
	QueueLength int     `msgpack:"queue_length"`
	Remaining   int     `msgpack:"remaining"`
	Spawned     int     `msgpack:"spawned"`
	Killed      int     `msgpack:"killed"`
	ReachedEnd  int     `msgpack:"reached_end"`
	OnField     int     `msgpack:"on_field"`
	Progress    float64 `msgpack:"progress"`
	Paused      bool    `msgpack:"paused"`
	AutoStart   bool    `msgpack:"auto_start"`
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Level:       s.lvl.Number,
		State:       s.state,
		CurrentWave: s.current,
		TotalWaves:  len(s.lvl.Waves),
		QueueLength: len(s.queue),
		Remaining:   s.Remaining(),
		Spawned:     s.stats.spawned,
		Killed:      s.stats.killed,
		ReachedEnd:  s.stats.reachedEnd,
		OnField:     len(s.tracked),
		Progress:    s.Progress(),
		Paused:      s.paused,
		AutoStart:   s.cfg.AutoStart,
	}
}
