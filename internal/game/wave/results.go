package wave

import (
	"math"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
)

// Rating grades a finished wave.
type Rating string

const (
	RatingS Rating = "S"
	RatingA Rating = "A"
	RatingB Rating = "B"
	RatingC Rating = "C"
	RatingD Rating = "D"
)

// Rate grades a wave from its kill and survival rates.
func Rate(killRate, survivalRate float64) Rating {
	score := (killRate*0.6 + survivalRate*0.4) * 100
	switch {
	case score >= 95:
		return RatingS
	case score >= 85:
		return RatingA
	case score >= 75:
		return RatingB
	case score >= 65:
		return RatingC
	default:
		return RatingD
	}
}

// Results summarises one completed wave. Times are simulation ms.
type Results struct {
	Level        int           `msgpack:"level"`
	WaveNumber   int           `msgpack:"wave_number"`
	TotalEnemies int           `msgpack:"total_enemies"`
	Killed       int           `msgpack:"killed"`
	ReachedEnd   int           `msgpack:"reached_end"`
	KillRate     float64       `msgpack:"kill_rate"`
	SurvivalRate float64       `msgpack:"survival_rate"`
	StartedAt    float64       `msgpack:"started_at"`
	DurationMs   float64       `msgpack:"duration_ms"`
	Perfect      bool          `msgpack:"perfect"`
	Skipped      bool          `msgpack:"skipped"`
	Rating       Rating        `msgpack:"rating"`
	Rewards      level.Rewards `msgpack:"rewards"`
}

// newResults computes rates and the rating. An empty wave counts as fully
// survived with no kills.
func newResults(total, killed, reachedEnd int) Results {
	r := Results{TotalEnemies: total, Killed: killed, ReachedEnd: reachedEnd, SurvivalRate: 1}
	if total > 0 {
		r.KillRate = float64(killed) / float64(total)
		r.SurvivalRate = float64(total-reachedEnd) / float64(total)
	}
	r.Perfect = reachedEnd == 0
	r.Rating = Rate(r.KillRate, r.SurvivalRate)
	return r
}

// ScaleRewards scales base by the survival rate, rounding each part down.
func ScaleRewards(base level.Rewards, survivalRate float64) level.Rewards {
	scale := func(v int) int { return int(math.Floor(float64(v) * survivalRate)) }
	return level.Rewards{Gold: scale(base.Gold), Energy: scale(base.Energy), Score: scale(base.Score)}
}
