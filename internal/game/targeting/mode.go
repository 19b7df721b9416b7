// Package targeting picks which enemy a tower shoots and finds the secondary
// targets of splash and chain attacks.
package targeting

import (
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
)

// Mode names a targeting strategy. The set of modes is closed.
type Mode string

const (
	Closest      Mode = "closest"
	Strongest    Mode = "strongest"
	Weakest      Mode = "weakest"
	First        Mode = "first"
	Last         Mode = "last"
	Fastest      Mode = "fastest"
	Slowest      Mode = "slowest"
	HighestValue Mode = "highest_value"
	Random       Mode = "random"
	Smart        Mode = "smart"
)

// ModeInfo describes a mode for presentation layers.
type ModeInfo struct {
	Mode        Mode
	Name        string
	Description string
}

// strategy picks one enemy from candidates that are alive and in range.
// candidates is never empty.
type strategy func(s *Selector, t Shooter, candidates []*enemy.Enemy) *enemy.Enemy

type modeEntry struct {
	info ModeInfo
	pick strategy
}

var modes = map[Mode]modeEntry{
	Closest: {
		info: ModeInfo{Closest, "Closest", "Target the closest enemy"},
		pick: func(_ *Selector, t Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return -t.distance(e) })
		},
	},
	Strongest: {
		info: ModeInfo{Strongest, "Strongest", "Target the enemy with the most health"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return e.Health })
		},
	},
	Weakest: {
		info: ModeInfo{Weakest, "Weakest", "Target the enemy with the least health"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return -e.Health })
		},
	},
	First: {
		info: ModeInfo{First, "First", "Target the enemy closest to the exit"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return e.Progress })
		},
	},
	Last: {
		info: ModeInfo{Last, "Last", "Target the enemy furthest from the exit"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return -e.Progress })
		},
	},
	Fastest: {
		info: ModeInfo{Fastest, "Fastest", "Target the fastest moving enemy"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return e.Speed() })
		},
	},
	Slowest: {
		info: ModeInfo{Slowest, "Slowest", "Target the slowest moving enemy"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return -e.Speed() })
		},
	},
	HighestValue: {
		info: ModeInfo{HighestValue, "Highest Value", "Target the enemy worth the most gold"},
		pick: func(_ *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return float64(e.Bounty) })
		},
	},
	Random: {
		info: ModeInfo{Random, "Random", "Target a random enemy in range"},
		pick: func(s *Selector, _ Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return c[s.src.Intn(len(c))]
		},
	},
	Smart: {
		info: ModeInfo{Smart, "Smart", "Weigh distance, kill chance, progress and value"},
		pick: func(s *Selector, t Shooter, c []*enemy.Enemy) *enemy.Enemy {
			return best(c, func(e *enemy.Enemy) float64 { return s.Score(t, e) })
		},
	},
}

// order lists modes in presentation order.
var order = []Mode{Closest, Strongest, Weakest, First, Last, Fastest, Slowest, HighestValue, Random, Smart}

// best returns the candidate with the highest key. Ties keep the earliest.
func best(c []*enemy.Enemy, key func(*enemy.Enemy) float64) *enemy.Enemy {
	chosen, top := c[0], key(c[0])
	for _, e := range c[1:] {
		if k := key(e); k > top {
			chosen, top = e, k
		}
	}
	return chosen
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// Modes returns every mode in presentation order.
func Modes() []ModeInfo {
	out := make([]ModeInfo, len(order))
	for i, m := range order {
		out[i] = modes[m].info
	}
	return out
}

// OptimalMode returns the recommended mode for a tower type.
func OptimalMode(towerType string) Mode {
	switch towerType {
	case "cannon", "poison":
		return Strongest
	case "laser":
		return First
	case "ice":
		return Fastest
	case "lightning":
		return Smart
	default:
		return Closest
	}
}
