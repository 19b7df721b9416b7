package level

import (
	"math"

	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
)

const (
	baseWaveCount      = 10
	maxWaveCount       = 15
	minSpawnInterval   = 500.0
	basePreWaveDelay   = 5000.0
	minPreWaveDelay    = 2000.0
	difficultyPerLevel = 0.3
)

// Scaling holds the per-level growth factors. Each factor is raised to the
// power level-1.
type Scaling struct {
	EnemyHealth  float64 `yaml:"enemy_health"`
	EnemySpeed   float64 `yaml:"enemy_speed"`
	EnemyCount   float64 `yaml:"enemy_count"`
	BossHealth   float64 `yaml:"boss_health"`
	WaveInterval float64 `yaml:"wave_interval"`
}

// DefaultScaling returns the standard growth factors.
func DefaultScaling() Scaling {
	return Scaling{
		EnemyHealth:  1.2,
		EnemySpeed:   1.05,
		EnemyCount:   1.15,
		BossHealth:   1.5,
		WaveInterval: 0.95,
	}
}

// withDefaults fills zero factors from DefaultScaling.
func (s Scaling) withDefaults() Scaling {
	d := DefaultScaling()
	if s.EnemyHealth <= 0 {
		s.EnemyHealth = d.EnemyHealth
	}
	if s.EnemySpeed <= 0 {
		s.EnemySpeed = d.EnemySpeed
	}
	if s.EnemyCount <= 0 {
		s.EnemyCount = d.EnemyCount
	}
	if s.BossHealth <= 0 {
		s.BossHealth = d.BossHealth
	}
	if s.WaveInterval <= 0 {
		s.WaveInterval = d.WaveInterval
	}
	return s
}

func pow(f float64, level int) float64 { return math.Pow(f, float64(max(0, level-1))) }

// EnemyScale returns the spawn-time multipliers for an enemy at level.
func (s Scaling) EnemyScale(level int, boss bool) enemy.Scale {
	s = s.withDefaults()
	h := s.EnemyHealth
	if boss {
		h = s.BossHealth
	}
	return enemy.Scale{Health: pow(h, level), Speed: pow(s.EnemySpeed, level)}
}

// ScaleGroups applies difficulty and level scaling to groups:
// count = ceil(count·difficulty·EnemyCount^(level-1)) and
// interval = max(500, interval·WaveInterval^(level-1)).
func (s Scaling) ScaleGroups(groups []Group, difficulty float64, level int) []Group {
	s = s.withDefaults()
	out := make([]Group, len(groups))
	for i, g := range groups {
		interval := g.Interval
		if interval <= 0 {
			interval = DefaultSpawnInterval
		}
		out[i] = Group{
			Type:     g.Type,
			Count:    max(1, int(math.Ceil(float64(g.Count)*difficulty*pow(s.EnemyCount, level)))),
			Interval: math.Max(minSpawnInterval, interval*pow(s.WaveInterval, level)),
			Delay:    g.Delay,
		}
	}
	return out
}

// Difficulty returns the base difficulty of level: 1 + (level-1)·0.3.
func Difficulty(level int) float64 {
	return 1 + float64(max(0, level-1))*difficultyPerLevel
}

// WaveDifficulty returns the difficulty of wave number of total in level.
func WaveDifficulty(level, number, total int) float64 {
	progress := float64(number) / float64(max(1, total))
	return Difficulty(level) * (0.5 + progress*0.5)
}

// WaveCount returns the number of generated waves for level.
func WaveCount(level int) int {
	return min(baseWaveCount+level/3, maxWaveCount)
}

// WaveRewards returns the completion rewards of a wave of difficulty d.
func WaveRewards(d float64) Rewards {
	return Rewards{
		Gold:   int(math.Floor(10 * d)),
		Energy: int(math.Floor(5 * d)),
		Score:  int(math.Floor(50 * d)),
	}
}

// LevelRewards returns the completion rewards of level.
func LevelRewards(level int) Rewards {
	return Rewards{
		Gold:   int(math.Floor(100 * pow(1.2, level))),
		Energy: int(math.Floor(50 * pow(1.1, level))),
		Score:  int(math.Floor(1000 * pow(1.5, level))),
	}
}

// PreWaveDelay returns the countdown before wave number of level spawns,
// shrinking with both and never below 2000 ms.
func PreWaveDelay(number, level int) float64 {
	levelFactor := math.Max(0.5, 1-float64(level-1)*0.05)
	waveFactor := math.Max(0.7, 1-float64(number)*0.03)
	return math.Max(minPreWaveDelay, basePreWaveDelay*levelFactor*waveFactor)
}

// Theme returns the cosmetic theme name of level.
func Theme(level int) string {
	switch {
	case level <= 3:
		return "grassland"
	case level <= 6:
		return "desert"
	case level <= 9:
		return "winter"
	case level <= 12:
		return "volcanic"
	case level <= 15:
		return "crystal"
	case level <= 18:
		return "shadow"
	default:
		return "cosmic"
	}
}
