package sim

import (
	"time"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/game/economy"
	"github.com/cory-johannsen/towerdefense/internal/game/health"
	"github.com/cory-johannsen/towerdefense/internal/game/pathfind"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
)

const defaultMaxDeltaMs = 100.0

// Config carries the tuning of every engine a Simulation owns.
type Config struct {
	// MaxDeltaMs clamps the simulated time a single Tick may advance.
	MaxDeltaMs  float64
	Health      health.Config
	Targeting   targeting.Config
	Waves       wave.Config
	Economy     economy.Config
	Pathfinding pathfind.Config
}

// DefaultConfig returns every engine's defaults and a 100 ms delta clamp.
func DefaultConfig() Config {
	return Config{
		MaxDeltaMs:  defaultMaxDeltaMs,
		Health:      health.DefaultConfig(),
		Targeting:   targeting.DefaultConfig(),
		Waves:       wave.DefaultConfig(),
		Economy:     economy.DefaultConfig(),
		Pathfinding: pathfind.DefaultConfig(),
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// ConfigFrom maps the application configuration onto engine tuning.
//
// Precondition: c has passed config.Config.Validate.
func ConfigFrom(c config.Config) Config {
	cfg := DefaultConfig()
	cfg.MaxDeltaMs = ms(c.Simulation.MaxDelta)

	cfg.Health.CriticalMultiplier = c.Combat.CriticalMultiplier
	cfg.Health.LowHealthThreshold = c.Combat.LowHealthThreshold

	cfg.Targeting.DefaultMode = targeting.Mode(c.Targeting.DefaultMode)
	w := c.Targeting.SmartWeights
	cfg.Targeting.Weights = targeting.Weights{
		Range:    w.Range,
		Kill:     w.Kill,
		Health:   w.Health,
		Progress: w.Progress,
		Value:    w.Value,
	}

	cfg.Waves = wave.Config{
		PreWaveDelay:   ms(c.Waves.PreWaveDelay),
		AutoStart:      c.Waves.AutoStart,
		AutoStartDelay: ms(c.Waves.AutoStartDelay),
	}

	cfg.Economy.StartingGold = c.Economy.StartingGold
	cfg.Economy.StartingEnergy = c.Economy.StartingEnergy
	cfg.Economy.StartingLives = c.Economy.StartingLives
	cfg.Economy.GoldPerSecond = c.Economy.GoldPerSecond
	cfg.Economy.EnergyPerSecond = c.Economy.EnergyPerSecond

	p := c.Pathfinding
	cfg.Pathfinding.CellSize = p.CellSize
	cfg.Pathfinding.AllowDiagonal = p.AllowDiagonal
	cfg.Pathfinding.HeuristicWeight = p.HeuristicWeight
	cfg.Pathfinding.MaxSearchNodes = p.MaxSearchNodes
	cfg.Pathfinding.MaxSearchTime = p.MaxSearchTime
	cfg.Pathfinding.CacheSize = p.CacheSize
	cfg.Pathfinding.Clearance = p.Clearance
	return cfg
}
