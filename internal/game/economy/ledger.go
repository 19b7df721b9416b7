// Package economy holds the player's resource ledger.
package economy

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/event"
)

// Resource names a ledger balance.
type Resource string

const (
	Gold   Resource = "gold"
	Energy Resource = "energy"
	Score  Resource = "score"
	Lives  Resource = "lives"
)

// incomeIntervalMs is the passive income period.
const incomeIntervalMs = 1000

// Config seeds a Ledger.
type Config struct {
	StartingGold    int
	StartingEnergy  int
	StartingLives   int
	GoldPerSecond   int
	EnergyPerSecond int
	MaxGold         int
	MaxEnergy       int
	MaxScore        int
}

// DefaultConfig returns the standard starting ledger.
func DefaultConfig() Config {
	return Config{
		StartingGold:    100,
		StartingEnergy:  50,
		StartingLives:   3,
		GoldPerSecond:   2,
		EnergyPerSecond: 1,
		MaxGold:         9999,
		MaxEnergy:       999,
		MaxScore:        999999,
	}
}

// Statistics accumulates lifetime totals.
type Statistics struct {
	TotalGoldEarned   int `msgpack:"total_gold_earned"`
	TotalEnergyEarned int `msgpack:"total_energy_earned"`
	TotalGoldSpent    int `msgpack:"total_gold_spent"`
	TotalEnergySpent  int `msgpack:"total_energy_spent"`
	EnemiesDefeated   int `msgpack:"enemies_defeated"`
	TowersBuilt       int `msgpack:"towers_built"`
	WavesSurvived     int `msgpack:"waves_survived"`
}

// Snapshot is the ledger's persistent state.
type Snapshot struct {
	Gold            int        `msgpack:"gold"`
	Energy          int        `msgpack:"energy"`
	Score           int        `msgpack:"score"`
	Lives           int        `msgpack:"lives"`
	GoldPerSecond   int        `msgpack:"gold_per_second"`
	EnergyPerSecond int        `msgpack:"energy_per_second"`
	Stats           Statistics `msgpack:"stats"`
}

// Ledger tracks gold, energy, score and lives.
// It is not safe for concurrent use; the caller must serialise access.
//
// Invariant: every balance stays within [0, limit].
type Ledger struct {
	cfg        Config
	bus        *event.Bus
	logger     *zap.Logger
	gold       int
	energy     int
	score      int
	lives      int
	goldRate   int
	energyRate int
	incomeLeft float64
	stats      Statistics
}

// NewLedger creates a Ledger seeded from cfg.
func NewLedger(cfg Config, bus *event.Bus, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxGold <= 0 {
		cfg.MaxGold = def.MaxGold
	}
	if cfg.MaxEnergy <= 0 {
		cfg.MaxEnergy = def.MaxEnergy
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = def.MaxScore
	}
	l := &Ledger{cfg: cfg, bus: bus, logger: logger}
	l.reset()
	return l
}

func (l *Ledger) reset() {
	l.gold = min(l.cfg.StartingGold, l.cfg.MaxGold)
	l.energy = min(l.cfg.StartingEnergy, l.cfg.MaxEnergy)
	l.score = 0
	l.lives = l.cfg.StartingLives
	l.goldRate = max(0, l.cfg.GoldPerSecond)
	l.energyRate = max(0, l.cfg.EnergyPerSecond)
	l.incomeLeft = incomeIntervalMs
	l.stats = Statistics{TotalGoldEarned: l.gold, TotalEnergyEarned: l.energy}
}

// Reset restores the starting balances and publishes every balance.
func (l *Ledger) Reset() {
	l.reset()
	l.publishAll()
}

func (l *Ledger) publishAll() {
	l.changed(Gold, 0, l.gold)
	l.changed(Energy, 0, l.energy)
	l.changed(Score, 0, l.score)
	l.changed(Lives, 0, l.lives)
}

func (l *Ledger) changed(r Resource, old, cur int) {
	l.bus.Publish(ResourceChanged{Resource: r, Old: old, New: cur})
}

func (l *Ledger) insufficient(r Resource, required, available int) {
	l.logger.Debug("insufficient resources",
		zap.String("resource", string(r)),
		zap.Int("required", required),
		zap.Int("available", available),
	)
	l.bus.Publish(InsufficientResources{Resource: r, Required: required, Available: available})
}

// Gold returns the gold balance.
func (l *Ledger) Gold() int { return l.gold }

// Energy returns the energy balance.
func (l *Ledger) Energy() int { return l.energy }

// Score returns the score.
func (l *Ledger) Score() int { return l.score }

// Lives returns the remaining lives.
func (l *Ledger) Lives() int { return l.lives }

// GameOver reports whether the player has no lives left.
func (l *Ledger) GameOver() bool { return l.lives <= 0 }

// AddGold credits amount, capped at the gold limit, and returns the balance.
func (l *Ledger) AddGold(amount int) int {
	if amount <= 0 {
		return l.gold
	}
	old := l.gold
	l.gold = min(l.gold+amount, l.cfg.MaxGold)
	l.stats.TotalGoldEarned += amount
	if l.gold != old {
		l.changed(Gold, old, l.gold)
	}
	return l.gold
}

// AddEnergy credits amount, capped at the energy limit, and returns the balance.
func (l *Ledger) AddEnergy(amount int) int {
	if amount <= 0 {
		return l.energy
	}
	old := l.energy
	l.energy = min(l.energy+amount, l.cfg.MaxEnergy)
	l.stats.TotalEnergyEarned += amount
	if l.energy != old {
		l.changed(Energy, old, l.energy)
	}
	return l.energy
}

// AddScore credits amount, capped at the score limit, and returns the score.
func (l *Ledger) AddScore(amount int) int {
	if amount <= 0 {
		return l.score
	}
	old := l.score
	l.score = min(l.score+amount, l.cfg.MaxScore)
	if l.score != old {
		l.changed(Score, old, l.score)
	}
	return l.score
}

// CanAfford reports whether both costs are covered.
func (l *Ledger) CanAfford(gold, energy int) bool {
	return l.gold >= gold && l.energy >= energy
}

// Spend debits both costs atomically. On shortfall nothing is debited and
// InsufficientResources is published for the first missing resource.
func (l *Ledger) Spend(gold, energy int) bool {
	gold, energy = max(0, gold), max(0, energy)
	switch {
	case l.gold < gold:
		l.insufficient(Gold, gold, l.gold)
		return false
	case l.energy < energy:
		l.insufficient(Energy, energy, l.energy)
		return false
	}
	if gold > 0 {
		old := l.gold
		l.gold -= gold
		l.stats.TotalGoldSpent += gold
		l.changed(Gold, old, l.gold)
	}
	if energy > 0 {
		old := l.energy
		l.energy -= energy
		l.stats.TotalEnergySpent += energy
		l.changed(Energy, old, l.energy)
	}
	return true
}

// LoseLives removes n lives, flooring at zero, and publishes GameOver when
// the last life is lost. It returns the lives remaining.
func (l *Ledger) LoseLives(n int) int {
	if n <= 0 || l.lives <= 0 {
		return l.lives
	}
	old := l.lives
	l.lives = max(0, l.lives-n)
	l.changed(Lives, old, l.lives)
	if l.lives == 0 {
		l.logger.Info("game over", zap.Int("score", l.score))
		l.bus.Publish(GameOverEvent{Score: l.score})
	}
	return l.lives
}

// Update advances passive income by dtMs of simulation time.
func (l *Ledger) Update(dtMs float64) {
	if dtMs <= 0 {
		return
	}
	l.incomeLeft -= dtMs
	for l.incomeLeft <= 0 {
		l.incomeLeft += incomeIntervalMs
		l.AddGold(l.goldRate)
		l.AddEnergy(l.energyRate)
	}
}

// SetIncome sets the passive income rates, flooring each at zero.
func (l *Ledger) SetIncome(goldPerSecond, energyPerSecond int) {
	l.goldRate = max(0, goldPerSecond)
	l.energyRate = max(0, energyPerSecond)
}

// Income returns the passive income rates.
func (l *Ledger) Income() (goldPerSecond, energyPerSecond int) {
	return l.goldRate, l.energyRate
}

// UpgradeGoldIncome spends cost gold to raise gold income by one.
func (l *Ledger) UpgradeGoldIncome(cost int) bool {
	if !l.Spend(cost, 0) {
		return false
	}
	l.goldRate++
	return true
}

// UpgradeEnergyIncome spends cost gold to raise energy income by one.
func (l *Ledger) UpgradeEnergyIncome(cost int) bool {
	if !l.Spend(cost, 0) {
		return false
	}
	l.energyRate++
	return true
}

// RecordEnemyDefeated increments the defeated counter.
func (l *Ledger) RecordEnemyDefeated() { l.stats.EnemiesDefeated++ }

// RecordTowerBuilt increments the towers built counter.
func (l *Ledger) RecordTowerBuilt() { l.stats.TowersBuilt++ }

// RecordWaveSurvived increments the waves survived counter.
func (l *Ledger) RecordWaveSurvived() { l.stats.WavesSurvived++ }

// Statistics returns lifetime totals.
func (l *Ledger) Statistics() Statistics { return l.stats }

// Snapshot returns the ledger's persistent state.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Gold:            l.gold,
		Energy:          l.energy,
		Score:           l.score,
		Lives:           l.lives,
		GoldPerSecond:   l.goldRate,
		EnergyPerSecond: l.energyRate,
		Stats:           l.stats,
	}
}

// Restore replaces the ledger state with s and publishes every balance.
func (l *Ledger) Restore(s Snapshot) {
	l.gold = min(max(0, s.Gold), l.cfg.MaxGold)
	l.energy = min(max(0, s.Energy), l.cfg.MaxEnergy)
	l.score = min(max(0, s.Score), l.cfg.MaxScore)
	l.lives = max(0, s.Lives)
	l.goldRate = max(0, s.GoldPerSecond)
	l.energyRate = max(0, s.EnergyPerSecond)
	l.stats = s.Stats
	l.incomeLeft = incomeIntervalMs
	l.publishAll()
}
