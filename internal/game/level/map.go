// Package level defines maps, wave templates, level definitions and the
// difficulty scaling that turns them into playable waves.
package level

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cory-johannsen/towerdefense/internal/game/geom"
	"github.com/cory-johannsen/towerdefense/internal/game/pathfind"
)

// DefaultPathWidth is the corridor width used when a map does not set one.
const DefaultPathWidth = 3.0

// Map is the static layout of one battlefield. The origin is the map centre.
type Map struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Width     float64             `yaml:"width"`
	Height    float64             `yaml:"height"`
	Spawn     geom.Vec3           `yaml:"spawn"`
	End       geom.Vec3           `yaml:"end"`
	Waypoints []geom.Vec3         `yaml:"waypoints"`
	PathWidth float64             `yaml:"path_width"`
	Obstacles []pathfind.Obstacle `yaml:"obstacles"`
}

// Validate reports every problem with m.
func (m *Map) Validate() error {
	var errs []error
	if m.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if m.Width <= 0 || m.Height <= 0 {
		errs = append(errs, fmt.Errorf("%s: width and height must be > 0", m.ID))
	}
	if m.PathWidth < 0 {
		errs = append(errs, fmt.Errorf("%s: path_width must be >= 0", m.ID))
	}
	if !m.WithinBounds(m.Spawn.X, m.Spawn.Z) {
		errs = append(errs, fmt.Errorf("%s: spawn is out of bounds", m.ID))
	}
	if !m.WithinBounds(m.End.X, m.End.Z) {
		errs = append(errs, fmt.Errorf("%s: end is out of bounds", m.ID))
	}
	for i, w := range m.Waypoints {
		if !m.WithinBounds(w.X, w.Z) {
			errs = append(errs, fmt.Errorf("%s: waypoint %d is out of bounds", m.ID, i))
		}
	}
	return errors.Join(errs...)
}

// WithinBounds reports whether (x, z) lies on the map.
func (m *Map) WithinBounds(x, z float64) bool {
	return math.Abs(x) <= m.Width/2 && math.Abs(z) <= m.Height/2
}

// Corridor returns the enemy path polyline: spawn, waypoints, end.
func (m *Map) Corridor() []geom.Vec3 {
	out := make([]geom.Vec3, 0, len(m.Waypoints)+2)
	out = append(out, m.Spawn)
	out = append(out, m.Waypoints...)
	return append(out, m.End)
}

// Obstructed reports whether a blocking obstacle covers (x, z), widened by
// clearance on every side.
func (m *Map) Obstructed(x, z, clearance float64) bool {
	p := geom.Ground(x, z)
	for _, o := range m.Obstacles {
		if o.Blocking && p.GroundDist(o.Position) < o.Radius()+clearance {
			return true
		}
	}
	return false
}

// OnPath reports whether (x, z) lies inside the path corridor.
func (m *Map) OnPath(x, z float64) bool {
	width := m.PathWidth
	if width <= 0 {
		width = DefaultPathWidth
	}
	p := geom.Ground(x, z)
	c := m.Corridor()
	for i := 0; i < len(c)-1; i++ {
		if segmentDistance(p, c[i], c[i+1]) < width/2 {
			return true
		}
	}
	return false
}

// segmentDistance returns the ground distance from p to segment ab.
func segmentDistance(p, a, b geom.Vec3) float64 {
	ab := geom.Ground(b.X-a.X, b.Z-a.Z)
	ap := geom.Ground(p.X-a.X, p.Z-a.Z)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return p.GroundDist(a)
	}
	t := max(0, min(1, ap.Dot(ab)/lenSq))
	return p.GroundDist(a.Add(ab.Scale(t)))
}

// Maps holds map definitions keyed by ID.
type Maps struct {
	maps map[string]*Map
}

// NewMaps creates a registry holding ms.
func NewMaps(ms ...*Map) *Maps {
	r := &Maps{maps: make(map[string]*Map)}
	for _, m := range ms {
		r.maps[m.ID] = m
	}
	return r
}

// Get returns the map for id.
func (r *Maps) Get(id string) (*Map, bool) {
	m, ok := r.maps[id]
	return m, ok
}

// IDs returns every map ID, sorted.
func (r *Maps) IDs() []string {
	out := make([]string, 0, len(r.maps))
	for id := range r.maps {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadMaps reads every *.yaml file in dir as one Map.
func LoadMaps(dir string) (*Maps, error) {
	ms, err := loadDir(dir, (*Map).Validate)
	if err != nil {
		return nil, fmt.Errorf("loading maps: %w", err)
	}
	return NewMaps(ms...), nil
}
