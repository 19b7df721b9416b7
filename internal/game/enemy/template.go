// Package enemy owns enemy templates and the arena of live enemies: spawning,
// path following, abilities, and resistance-adjusted damage.
package enemy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/towerdefense/internal/game/health"
)

// Ability is a named enemy trait. The set of abilities is closed.
type Ability string

const (
	SpeedBurst   Ability = "speed_burst"
	SelfHeal     Ability = "self_heal"
	Dodge        Ability = "dodge"
	Regenerate   Ability = "regeneration"
	EnergyShield Ability = "energy_shield"
	Flying       Ability = "flying"
)

// Template is the static description of an enemy type, loaded from YAML.
type Template struct {
	ID              string             `yaml:"id"`
	Name            string             `yaml:"name"`
	Boss            bool               `yaml:"boss"`
	Health          float64            `yaml:"health"`
	Speed           float64            `yaml:"speed"`
	Damage          int                `yaml:"damage"`
	Bounty          int                `yaml:"bounty"`
	ScoreValue      int                `yaml:"score_value"`
	Size            float64            `yaml:"size"`
	Armor           float64            `yaml:"armor"`
	MagicResistance float64            `yaml:"magic_resistance"`
	Regeneration    float64            `yaml:"regeneration"`
	Abilities       []Ability          `yaml:"abilities"`
	Resistances     map[string]float64 `yaml:"resistances"`
	Weaknesses      map[string]float64 `yaml:"weaknesses"`
}

// Has reports whether the template carries ability a.
func (t Template) Has(a Ability) bool { return slices.Contains(t.Abilities, a) }

// Validate reports every problem with t.
func (t *Template) Validate() error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if t.Health <= 0 {
		errs = append(errs, fmt.Errorf("%s: health must be > 0", t.ID))
	}
	if t.Speed <= 0 {
		errs = append(errs, fmt.Errorf("%s: speed must be > 0", t.ID))
	}
	if t.Damage < 0 || t.Bounty < 0 || t.ScoreValue < 0 {
		errs = append(errs, fmt.Errorf("%s: damage, bounty and score_value must be >= 0", t.ID))
	}
	for _, a := range t.Abilities {
		if _, ok := abilities[a]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown ability %q", t.ID, a))
		}
	}
	for k, v := range t.Resistances {
		if !health.DamageType(k).Valid() {
			errs = append(errs, fmt.Errorf("%s: resistance %q is not a damage type", t.ID, k))
		}
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: resistance %q must be >= 0", t.ID, k))
		}
	}
	for k, v := range t.Weaknesses {
		if !health.DamageType(k).Valid() {
			errs = append(errs, fmt.Errorf("%s: weakness %q is not a damage type", t.ID, k))
		}
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: weakness %q must be >= 0", t.ID, k))
		}
	}
	return errors.Join(errs...)
}

// Registry holds enemy templates keyed by ID.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds t, replacing any template with the same ID. Missing size
// and score value default to 1 and the bounty.
func (r *Registry) Register(t *Template) {
	if t.Size <= 0 {
		t.Size = 1
	}
	if t.ScoreValue == 0 {
		t.ScoreValue = t.Bounty
	}
	r.templates[t.ID] = t
}

// Get returns a copy of the template for id.
func (r *Registry) Get(id string) (Template, bool) {
	t, ok := r.templates[id]
	if !ok {
		return Template{}, false
	}
	return *t, true
}

// IDs returns every template ID, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadDirectory reads every *.yaml file in dir as one Template.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a populated Registry, or an error naming every bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enemy dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var t Template
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			errs = append(errs, fmt.Errorf("parsing %q: %w", path, err))
			continue
		}
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validating %q: %w", path, err))
			continue
		}
		reg.Register(&t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}
