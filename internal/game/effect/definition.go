// Package effect applies timed buffs and debuffs to simulated entities. Each
// effect Kind has a static Definition (loaded from YAML) and a Behavior that
// applies, periodically updates, and exactly reverses its modification.
package effect

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies an effect behavior. The set of kinds is closed.
type Kind string

const (
	Slow           Kind = "slow"
	Poison         Kind = "poison"
	Freeze         Kind = "freeze"
	Burn           Kind = "burn"
	Stun           Kind = "stun"
	ArmorReduction Kind = "armor_reduction"
	DamageBoost    Kind = "damage_boost"
	SpeedBoost     Kind = "speed_boost"
	Regeneration   Kind = "regeneration"
	Shield         Kind = "shield"
)

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{Slow, Poison, Freeze, Burn, Stun, ArmorReduction, DamageBoost, SpeedBoost, Regeneration, Shield}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return slices.Contains(Kinds(), k) }

// Params is the payload of one effect instance. Zero fields take the
// definition's defaults.
type Params struct {
	// Amount is the slow fraction, the armor removed, or the shield granted.
	Amount          float64 `yaml:"amount" msgpack:"amount,omitempty"`
	DamagePerSecond float64 `yaml:"damage_per_second" msgpack:"dps,omitempty"`
	HealPerSecond   float64 `yaml:"heal_per_second" msgpack:"hps,omitempty"`
	// Multiplier scales damage or speed for boost kinds.
	Multiplier     float64 `yaml:"multiplier" msgpack:"multiplier,omitempty"`
	DurationMs     float64 `yaml:"duration_ms" msgpack:"duration_ms,omitempty"`
	UpdateInterval float64 `yaml:"update_interval_ms" msgpack:"update_interval_ms,omitempty"`
	Source         string  `yaml:"source" msgpack:"source,omitempty"`
}

// withDefaults fills zero fields of p from d.
func (p Params) withDefaults(d Params) Params {
	if p.Amount == 0 {
		p.Amount = d.Amount
	}
	if p.DamagePerSecond == 0 {
		p.DamagePerSecond = d.DamagePerSecond
	}
	if p.HealPerSecond == 0 {
		p.HealPerSecond = d.HealPerSecond
	}
	if p.Multiplier == 0 {
		p.Multiplier = d.Multiplier
	}
	if p.DurationMs <= 0 {
		p.DurationMs = d.DurationMs
	}
	if p.UpdateInterval <= 0 {
		p.UpdateInterval = d.UpdateInterval
	}
	return p
}

// Definition is the static description of one effect kind, loaded from YAML.
type Definition struct {
	ID          Kind   `yaml:"id"`
	Name        string `yaml:"name"`
	Category    string `yaml:"category"` // "buff" | "debuff"
	Description string `yaml:"description"`
	Stackable   bool   `yaml:"stackable"`
	Refreshable bool   `yaml:"refreshable"`
	Defaults    Params `yaml:"defaults"`
	LuaOnApply  string `yaml:"lua_on_apply"`
	LuaOnTick   string `yaml:"lua_on_tick"`
	LuaOnRemove string `yaml:"lua_on_remove"`
}

// Validate reports every problem with d.
func (d *Definition) Validate() error {
	var errs []error
	if !d.ID.Valid() {
		errs = append(errs, fmt.Errorf("unknown effect kind %q", d.ID))
	}
	if d.Category != "buff" && d.Category != "debuff" {
		errs = append(errs, fmt.Errorf("%s: category must be buff or debuff, got %q", d.ID, d.Category))
	}
	if d.Defaults.DurationMs <= 0 {
		errs = append(errs, fmt.Errorf("%s: defaults.duration_ms must be > 0", d.ID))
	}
	if d.Defaults.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s: defaults.update_interval_ms must be > 0", d.ID))
	}
	switch d.ID {
	case Slow:
		if d.Defaults.Amount <= 0 || d.Defaults.Amount >= 1 {
			errs = append(errs, fmt.Errorf("%s: defaults.amount must be in (0, 1)", d.ID))
		}
	case DamageBoost, SpeedBoost:
		if d.Defaults.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("%s: defaults.multiplier must be > 0", d.ID))
		}
	}
	return errors.Join(errs...)
}

// builtin returns the stock definition for every kind.
func builtin() []*Definition {
	base := Params{DurationMs: 5000, UpdateInterval: 1000}
	with := func(p Params) Params { return p.withDefaults(base) }
	return []*Definition{
		{ID: Slow, Name: "Slow", Category: "debuff", Refreshable: true, Defaults: with(Params{Amount: 0.5})},
		{ID: Poison, Name: "Poison", Category: "debuff", Stackable: true, Defaults: with(Params{DamagePerSecond: 10})},
		{ID: Freeze, Name: "Freeze", Category: "debuff", Refreshable: true, Defaults: base},
		{ID: Burn, Name: "Burn", Category: "debuff", Stackable: true, Refreshable: true, Defaults: with(Params{DamagePerSecond: 15})},
		{ID: Stun, Name: "Stun", Category: "debuff", Refreshable: true, Defaults: base},
		{ID: ArmorReduction, Name: "Armor Break", Category: "debuff", Stackable: true, Refreshable: true, Defaults: with(Params{Amount: 10})},
		{ID: DamageBoost, Name: "Damage Boost", Category: "buff", Stackable: true, Refreshable: true, Defaults: with(Params{Multiplier: 1.5})},
		{ID: SpeedBoost, Name: "Speed Boost", Category: "buff", Refreshable: true, Defaults: with(Params{Multiplier: 1.5})},
		{ID: Regeneration, Name: "Regeneration", Category: "buff", Stackable: true, Refreshable: true, Defaults: with(Params{HealPerSecond: 5})},
		{ID: Shield, Name: "Shield", Category: "buff", Stackable: true, Defaults: with(Params{Amount: 50})},
	}
}

// Registry holds one Definition per Kind.
type Registry struct {
	defs map[Kind]*Definition
}

// NewRegistry returns a Registry holding the stock definition for every kind.
//
// Postcondition: Get(k) succeeds for every k in Kinds().
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[Kind]*Definition)}
	for _, d := range builtin() {
		r.Register(d)
	}
	return r
}

// Register adds def, replacing any existing definition for def.ID.
// Precondition: def must not be nil.
func (r *Registry) Register(def *Definition) {
	r.defs[def.ID] = def
}

// Get returns the definition for k.
func (r *Registry) Get(k Kind) (*Definition, bool) {
	d, ok := r.defs[k]
	return d, ok
}

// All returns every definition ordered by kind declaration.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, k := range Kinds() {
		if d, ok := r.defs[k]; ok {
			out = append(out, d)
		}
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir over the stock definitions.
// Unknown YAML fields are rejected and every definition is validated.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Registry covering every kind, or an error naming each bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading effect dir %q: %w", dir, err)
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
		var def Definition
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			errs = append(errs, fmt.Errorf("parsing %q: %w", path, err))
			continue
		}
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validating %q: %w", path, err))
			continue
		}
		reg.Register(&def)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}
