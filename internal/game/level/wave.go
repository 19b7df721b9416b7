package level

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultSpawnInterval is the gap between spawns of one group when unset.
const DefaultSpawnInterval = 1000.0

// Group is a run of identical enemies within a wave. Times are milliseconds.
type Group struct {
	Type     string  `yaml:"type" msgpack:"type"`
	Count    int     `yaml:"count" msgpack:"count"`
	Interval float64 `yaml:"interval" msgpack:"interval"`
	Delay    float64 `yaml:"delay" msgpack:"delay"`
}

// Rewards is a gold/energy/score grant.
type Rewards struct {
	Gold   int `yaml:"gold" msgpack:"gold"`
	Energy int `yaml:"energy" msgpack:"energy"`
	Score  int `yaml:"score" msgpack:"score"`
}

// IsZero reports whether r grants nothing.
func (r Rewards) IsZero() bool { return r == Rewards{} }

// WaveTemplate is a reusable wave composition loaded from YAML.
type WaveTemplate struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Groups        []Group `yaml:"groups"`
	TotalDuration float64 `yaml:"total_duration"`
	Difficulty    float64 `yaml:"difficulty"`
	Boss          bool    `yaml:"boss"`
}

// Validate reports every problem with t.
func (t *WaveTemplate) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	errs = append(errs, validateGroups(t.ID, t.Groups)...)
	return errors.Join(errs...)
}

func validateGroups(owner string, groups []Group) []error {
	var errs []error
	if len(groups) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one group is required", owner))
	}
	for i, g := range groups {
		if g.Type == "" {
			errs = append(errs, fmt.Errorf("%s: group %d: type must not be empty", owner, i))
		}
		if g.Count < 1 {
			errs = append(errs, fmt.Errorf("%s: group %d: count must be >= 1", owner, i))
		}
		if g.Interval < 0 || g.Delay < 0 {
			errs = append(errs, fmt.Errorf("%s: group %d: interval and delay must be >= 0", owner, i))
		}
	}
	return errs
}

// WaveDefinition is one fully resolved wave of a level.
type WaveDefinition struct {
	Number        int     `msgpack:"number"`
	Name          string  `msgpack:"name"`
	Template      string  `msgpack:"template"`
	Groups        []Group `msgpack:"groups"`
	TotalDuration float64 `msgpack:"total_duration"`
	Difficulty    float64 `msgpack:"difficulty"`
	Boss          bool    `msgpack:"boss"`
	Rewards       Rewards `msgpack:"rewards"`
	PreWaveDelay  float64 `msgpack:"pre_wave_delay"`
}

// EnemyCount returns the total number of enemies the wave spawns.
func (w WaveDefinition) EnemyCount() int {
	n := 0
	for _, g := range w.Groups {
		n += g.Count
	}
	return n
}

// EnemyTypes returns the distinct enemy types in group order.
func (w WaveDefinition) EnemyTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range w.Groups {
		if !seen[g.Type] {
			seen[g.Type] = true
			out = append(out, g.Type)
		}
	}
	return out
}

// WaveTemplates holds wave templates keyed by ID.
type WaveTemplates struct {
	templates map[string]*WaveTemplate
}

// NewWaveTemplates creates a registry holding ts.
func NewWaveTemplates(ts ...*WaveTemplate) *WaveTemplates {
	r := &WaveTemplates{templates: make(map[string]*WaveTemplate)}
	for _, t := range ts {
		r.templates[t.ID] = t
	}
	return r
}

// Get returns the template for id.
func (r *WaveTemplates) Get(id string) (*WaveTemplate, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// IDs returns every template ID, sorted.
func (r *WaveTemplates) IDs() []string {
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// All returns every template in ID order.
func (r *WaveTemplates) All() []*WaveTemplate {
	ids := r.IDs()
	out := make([]*WaveTemplate, len(ids))
	for i, id := range ids {
		out[i] = r.templates[id]
	}
	return out
}

// LoadWaveTemplates reads every *.yaml file in dir as one WaveTemplate.
func LoadWaveTemplates(dir string) (*WaveTemplates, error) {
	ts, err := loadDir(dir, (*WaveTemplate).Validate)
	if err != nil {
		return nil, fmt.Errorf("loading wave templates: %w", err)
	}
	return NewWaveTemplates(ts...), nil
}
