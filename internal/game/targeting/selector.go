package targeting

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/geom"
)

// Shooter is the view of a tower the selector needs.
type Shooter struct {
	ID       string
	Type     string
	Position geom.Vec3
	Range    float64
	Damage   float64
}

func (t Shooter) distance(e *enemy.Enemy) float64 {
	return t.Position.GroundDist(e.Position)
}

// Weights are the terms of the smart score.
type Weights struct {
	Range    float64
	Kill     float64
	Health   float64
	Progress float64
	Value    float64
}

// DefaultWeights returns the standard smart weights.
func DefaultWeights() Weights {
	return Weights{Range: 0.3, Kill: 0.4, Health: 0.2, Progress: 0.2, Value: 0.1}
}

// Config tunes a Selector.
type Config struct {
	DefaultMode Mode
	Weights     Weights
}

// DefaultConfig returns closest targeting with the standard weights.
func DefaultConfig() Config {
	return Config{DefaultMode: Closest, Weights: DefaultWeights()}
}

// Selector binds towers to targeting modes and picks targets.
// It is not safe for concurrent use; the caller must serialise access.
type Selector struct {
	cfg    Config
	src    dice.Source
	bus    *event.Bus
	logger *zap.Logger
	towers map[string]Mode
}

// NewSelector creates a Selector. An invalid default mode falls back to closest.
//
// Precondition: src must not be nil; bus and logger may be nil.
func NewSelector(cfg Config, src dice.Source, bus *event.Bus, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.DefaultMode.Valid() {
		cfg.DefaultMode = Closest
	}
	return &Selector{
		cfg:    cfg,
		src:    src,
		bus:    bus,
		logger: logger,
		towers: make(map[string]Mode),
	}
}

// SetMode binds towerID to m. It reports false for an unknown mode.
func (s *Selector) SetMode(towerID string, m Mode) bool {
	if !m.Valid() {
		s.logger.Debug("unknown targeting mode", zap.String("tower", towerID), zap.String("mode", string(m)))
		return false
	}
	prev, had := s.towers[towerID]
	s.towers[towerID] = m
	if !had {
		prev = ""
	}
	s.bus.Publish(ModeChanged{TowerID: towerID, Mode: m, Previous: prev})
	return true
}

// Mode returns the mode bound to towerID, or the default mode.
func (s *Selector) Mode(towerID string) Mode {
	if m, ok := s.towers[towerID]; ok {
		return m
	}
	return s.cfg.DefaultMode
}

// RemoveTower forgets towerID's binding. It reports whether one existed.
func (s *Selector) RemoveTower(towerID string) bool {
	if _, ok := s.towers[towerID]; !ok {
		return false
	}
	delete(s.towers, towerID)
	s.bus.Publish(TowerRemoved{TowerID: towerID})
	return true
}

// ResetAll forgets every binding.
func (s *Selector) ResetAll() {
	clear(s.towers)
	s.bus.Publish(AllModesReset{})
}

// ModeUpdate is one entry of a batch mode change.
type ModeUpdate struct {
	TowerID string
	Mode    Mode
}

// BatchSetModes applies every update and returns those that succeeded and
// those rejected for an unknown mode.
func (s *Selector) BatchSetModes(updates []ModeUpdate) (applied, rejected []ModeUpdate) {
	for _, u := range updates {
		if s.SetMode(u.TowerID, u.Mode) {
			applied = append(applied, u)
		} else {
			rejected = append(rejected, u)
		}
	}
	return applied, rejected
}

// InRange returns the alive enemies within t's range, in input order.
func (s *Selector) InRange(t Shooter, enemies []*enemy.Enemy) []*enemy.Enemy {
	var out []*enemy.Enemy
	for _, e := range enemies {
		if e.Active() && t.distance(e) <= t.Range {
			out = append(out, e)
		}
	}
	return out
}

// FindTarget picks t's target among enemies using t's bound mode. It
// returns nil when no alive enemy is in range.
func (s *Selector) FindTarget(t Shooter, enemies []*enemy.Enemy) *enemy.Enemy {
	candidates := s.InRange(t, enemies)
	if len(candidates) == 0 {
		return nil
	}
	entry, ok := modes[s.Mode(t.ID)]
	if !ok {
		entry = modes[Closest]
	}
	return entry.pick(s, t, candidates)
}

// BatchFindTargets runs FindTarget for every shooter. Shooters without a
// target are absent from the result.
func (s *Selector) BatchFindTargets(shooters []Shooter, enemies []*enemy.Enemy) map[string]*enemy.Enemy {
	out := make(map[string]*enemy.Enemy, len(shooters))
	for _, t := range shooters {
		if e := s.FindTarget(t, enemies); e != nil {
			out[t.ID] = e
		}
	}
	return out
}

// Score returns the smart score of e for t:
// Range·(range-d)/range, plus Kill when t's damage finishes e or
// Health·(1-health/200) otherwise, plus Progress·min(progress/100, 1)
// and Value·min(bounty/50, 1).
func (s *Selector) Score(t Shooter, e *enemy.Enemy) float64 {
	w := s.cfg.Weights
	score := 0.0
	if t.Range > 0 {
		score += w.Range * (t.Range - t.distance(e)) / t.Range
	}
	if e.Health <= t.Damage {
		score += w.Kill
	} else {
		score += w.Health * (1 - e.Health/200)
	}
	score += w.Progress * min(e.Progress/100, 1)
	score += w.Value * min(float64(e.Bounty)/50, 1)
	return score
}

// IsValidTarget reports whether e is alive and inside t's range.
func (s *Selector) IsValidTarget(t Shooter, e *enemy.Enemy) bool {
	return e != nil && e.Active() && t.distance(e) <= t.Range
}

// ChainTargets walks from initial to the nearest unused alive enemy within
// chainRange of the current link, up to maxTargets links including initial.
func (s *Selector) ChainTargets(initial *enemy.Enemy, enemies []*enemy.Enemy, maxTargets int, chainRange float64) []*enemy.Enemy {
	if initial == nil || maxTargets < 1 {
		return nil
	}
	chain := []*enemy.Enemy{initial}
	used := map[string]bool{initial.ID: true}
	current := initial
	for len(chain) < maxTargets {
		var next *enemy.Enemy
		closest := chainRange
		for _, e := range enemies {
			if !e.Active() || used[e.ID] {
				continue
			}
			if d := current.Position.GroundDist(e.Position); d <= closest && (next == nil || d < closest) {
				next, closest = e, d
			}
		}
		if next == nil {
			break
		}
		chain = append(chain, next)
		used[next.ID] = true
		current = next
	}
	return chain
}

// InSplashRadius returns the alive enemies within radius of center, other
// than exclude.
func (s *Selector) InSplashRadius(center geom.Vec3, radius float64, enemies []*enemy.Enemy, exclude string) []*enemy.Enemy {
	var out []*enemy.Enemy
	for _, e := range enemies {
		if e.Active() && e.ID != exclude && center.GroundDist(e.Position) <= radius {
			out = append(out, e)
		}
	}
	return out
}

// PredictPosition estimates where e will be when a projectile fired from
// from at projectileSpeed reaches it, assuming constant velocity.
func PredictPosition(e *enemy.Enemy, projectileSpeed float64, from geom.Vec3) geom.Vec3 {
	if projectileSpeed <= 0 || e.Velocity.IsZero() {
		return e.Position
	}
	t := from.Dist(e.Position) / projectileSpeed
	return e.Position.Add(e.Velocity.Scale(t))
}

// Efficiency reports how well a tower is placed against the current enemies.
type Efficiency struct {
	InRange    int
	Total      int
	Coverage   float64
	HasTarget  bool
	Efficiency float64
}

// Efficiency returns coverage (in range / alive) and, when t would hold
// fire, halves it.
func (s *Selector) Efficiency(t Shooter, enemies []*enemy.Enemy) Efficiency {
	eff := Efficiency{InRange: len(s.InRange(t, enemies))}
	for _, e := range enemies {
		if e.Active() {
			eff.Total++
		}
	}
	if eff.Total > 0 {
		eff.Coverage = float64(eff.InRange) / float64(eff.Total)
	}
	eff.HasTarget = eff.InRange > 0
	eff.Efficiency = eff.Coverage
	if !eff.HasTarget {
		eff.Efficiency *= 0.5
	}
	return eff
}

// Recommendation suggests a mode. Lower Priority is more urgent.
type Recommendation struct {
	Mode     Mode
	Reason   string
	Priority int
}

const (
	strongHealthThreshold = 100
	fastSpeedThreshold    = 3.5
	nearExitProgress      = 80
)

// Recommendations suggests modes for t given the enemies in its range,
// most urgent first.
func (s *Selector) Recommendations(t Shooter, enemies []*enemy.Enemy) []Recommendation {
	inRange := s.InRange(t, enemies)
	if len(inRange) == 0 {
		return []Recommendation{{Mode: Closest, Reason: "No enemies in range", Priority: 1}}
	}
	var strong, fast, nearExit int
	for _, e := range inRange {
		if e.Health > strongHealthThreshold {
			strong++
		}
		if e.Speed() > fastSpeedThreshold {
			fast++
		}
		if e.Progress > nearExitProgress {
			nearExit++
		}
	}
	var out []Recommendation
	if nearExit > 0 {
		out = append(out, Recommendation{Mode: First, Reason: "Enemies near exit", Priority: 1})
	}
	if float64(strong) > float64(len(inRange))*0.5 {
		out = append(out, Recommendation{Mode: Weakest, Reason: "Many strong enemies", Priority: 2})
	}
	if fast > 0 {
		out = append(out, Recommendation{Mode: Fastest, Reason: "Fast enemies detected", Priority: 3})
	}
	if len(out) == 0 {
		out = append(out, Recommendation{Mode: Smart, Reason: "Balanced approach", Priority: 4})
	}
	return out
}

// Stats summarises mode bindings.
type Stats struct {
	Towers         int
	ModeUsage      map[Mode]int
	AvailableModes int
	MostUsed       Mode
}

// Stats returns selector telemetry. MostUsed is empty when no tower is
// bound; ties resolve to the mode that sorts first.
func (s *Selector) Stats() Stats {
	st := Stats{Towers: len(s.towers), ModeUsage: make(map[Mode]int), AvailableModes: len(modes)}
	for _, m := range s.towers {
		st.ModeUsage[m]++
	}
	used := slices.Sorted(maps.Keys(st.ModeUsage))
	top := 0
	for _, m := range used {
		if st.ModeUsage[m] > top {
			st.MostUsed, top = m, st.ModeUsage[m]
		}
	}
	return st
}
