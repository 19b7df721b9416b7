// Package tower places, builds, fires, upgrades and sells towers.
package tower

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/towerdefense/internal/game/projectile"
)

const (
	defaultMaxLevel  = 3
	defaultSellRatio = 0.7
)

// Definition is the static stat block of a tower type. Range, projectile
// speed and splash radius are in world units.
type Definition struct {
	ID              string                    `yaml:"id"`
	Name            string                    `yaml:"name"`
	Description     string                    `yaml:"description"`
	Cost            int                       `yaml:"cost"`
	Damage          float64                   `yaml:"damage"`
	Range           float64                   `yaml:"range"`
	AttackSpeed     float64                   `yaml:"attack_speed"`
	ProjectileSpeed float64                   `yaml:"projectile_speed"`
	ProjectileType  projectile.Type           `yaml:"projectile_type"`
	BuildTime       float64                   `yaml:"build_time"`
	MaxLevel        int                       `yaml:"max_level"`
	SellRatio       float64                   `yaml:"sell_ratio"`
	Upgrades        []string                  `yaml:"upgrades"`
	SplashRadius    float64                   `yaml:"splash_radius"`
	SplashDamage    float64                   `yaml:"splash_damage"`
	ArmorPiercing   bool                      `yaml:"armor_piercing"`
	Slow            *projectile.SlowPayload   `yaml:"slow"`
	Poison          *projectile.PoisonPayload `yaml:"poison"`
	Chain           *projectile.ChainPayload  `yaml:"chain"`
}

// Validate reports every problem with d.
func (d *Definition) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Cost < 0 {
		errs = append(errs, fmt.Errorf("%s: cost must be >= 0", d.ID))
	}
	if d.Damage < 0 {
		errs = append(errs, fmt.Errorf("%s: damage must be >= 0", d.ID))
	}
	if d.Range <= 0 || d.AttackSpeed <= 0 || d.ProjectileSpeed <= 0 {
		errs = append(errs, fmt.Errorf("%s: range, attack_speed and projectile_speed must be > 0", d.ID))
	}
	if !d.ProjectileType.Valid() {
		errs = append(errs, fmt.Errorf("%s: unknown projectile_type %q", d.ID, d.ProjectileType))
	}
	if d.SellRatio < 0 || d.SellRatio > 1 {
		errs = append(errs, fmt.Errorf("%s: sell_ratio must be in [0, 1]", d.ID))
	}
	if d.SplashRadius < 0 || d.SplashDamage < 0 {
		errs = append(errs, fmt.Errorf("%s: splash must be >= 0", d.ID))
	}
	if d.Chain != nil && d.Chain.MaxTargets < 1 {
		errs = append(errs, fmt.Errorf("%s: chain.max_targets must be >= 1", d.ID))
	}
	return errors.Join(errs...)
}

// Registry holds tower definitions keyed by ID.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates a Registry holding ds.
func NewRegistry(ds ...*Definition) *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, d := range ds {
		r.Register(d)
	}
	return r
}

// Register adds d, filling a missing max level and sell ratio.
func (r *Registry) Register(d *Definition) {
	if d.MaxLevel <= 0 {
		d.MaxLevel = defaultMaxLevel
	}
	if d.SellRatio == 0 {
		d.SellRatio = defaultSellRatio
	}
	r.defs[d.ID] = d
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every tower type, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CheckUpgrades reports every upgrade that names an unknown tower type.
func (r *Registry) CheckUpgrades() error {
	var errs []error
	for _, id := range r.IDs() {
		for _, u := range r.defs[id].Upgrades {
			if _, ok := r.defs[u]; !ok {
				errs = append(errs, fmt.Errorf("%s: unknown upgrade %q", id, u))
			}
		}
	}
	return errors.Join(errs...)
}

// LoadDirectory reads every *.yaml file in dir as one Definition and checks
// upgrade references.
//
// Postcondition: Returns a populated Registry, or an error naming every bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tower dir %q: %w", dir, err)
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
		var d Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			errs = append(errs, fmt.Errorf("parsing %q: %w", path, err))
			continue
		}
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validating %q: %w", path, err))
			continue
		}
		reg.Register(&d)
	}
	if len(errs) == 0 {
		errs = append(errs, reg.CheckUpgrades())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}
