package level

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
)

// Wave template IDs the generator relies on.
const (
	BasicWave    = "basic_wave"
	BossWave     = "boss_wave"
	FinalAssault = "final_assault"
)

// WaveSpec is one wave entry of a level file: either a template reference,
// scaled by level and wave difficulty, or explicit groups used as written.
type WaveSpec struct {
	Template     string  `yaml:"template"`
	Name         string  `yaml:"name"`
	Groups       []Group `yaml:"groups"`
	Boss         bool    `yaml:"boss"`
	Rewards      Rewards `yaml:"rewards"`
	PreWaveDelay float64 `yaml:"pre_wave_delay"`
}

// Definition is a level file. A definition without waves is generated.
type Definition struct {
	Number      int        `yaml:"number"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Theme       string     `yaml:"theme"`
	Map         string     `yaml:"map"`
	Waves       []WaveSpec `yaml:"waves"`
	Rewards     Rewards    `yaml:"rewards"`
	Scaling     Scaling    `yaml:"scaling"`
}

// Validate reports every problem with d.
func (d *Definition) Validate() error {
	var errs []error
	owner := fmt.Sprintf("level %d", d.Number)
	if d.Number < 1 {
		errs = append(errs, errors.New("number must be >= 1"))
	}
	if d.Map == "" {
		errs = append(errs, fmt.Errorf("%s: map must not be empty", owner))
	}
	for i, w := range d.Waves {
		switch {
		case w.Template != "" && len(w.Groups) > 0:
			errs = append(errs, fmt.Errorf("%s: wave %d: template and groups are mutually exclusive", owner, i+1))
		case w.Template == "":
			errs = append(errs, validateGroups(fmt.Sprintf("%s wave %d", owner, i+1), w.Groups)...)
		}
	}
	return errors.Join(errs...)
}

// Level is a fully resolved, playable level.
type Level struct {
	Number      int
	Name        string
	Description string
	Theme       string
	Map         *Map
	Waves       []WaveDefinition
	Difficulty  float64
	Rewards     Rewards
	Scaling     Scaling
}

// EstimatedDuration returns the sum of every wave's duration and pre-wave delay.
func (l *Level) EstimatedDuration() float64 {
	total := 0.0
	for _, w := range l.Waves {
		total += w.TotalDuration + w.PreWaveDelay
	}
	return total
}

// Levels holds level definitions keyed by number.
type Levels struct {
	defs map[int]*Definition
}

// NewLevels creates a registry holding ds.
func NewLevels(ds ...*Definition) *Levels {
	r := &Levels{defs: make(map[int]*Definition)}
	for _, d := range ds {
		r.defs[d.Number] = d
	}
	return r
}

// Get returns the definition of level n.
func (r *Levels) Get(n int) (*Definition, bool) {
	d, ok := r.defs[n]
	return d, ok
}

// Numbers returns every level number, ascending.
func (r *Levels) Numbers() []int {
	out := make([]int, 0, len(r.defs))
	for n := range r.defs {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// LoadLevels reads every *.yaml file in dir as one Definition.
func LoadLevels(dir string) (*Levels, error) {
	ds, err := loadDir(dir, (*Definition).Validate)
	if err != nil {
		return nil, fmt.Errorf("loading levels: %w", err)
	}
	return NewLevels(ds...), nil
}

// Builder resolves level definitions against maps and wave templates.
type Builder struct {
	maps  *Maps
	waves *WaveTemplates
	src   dice.Source
}

// NewBuilder creates a Builder.
//
// Precondition: maps, waves and src must not be nil.
func NewBuilder(maps *Maps, waves *WaveTemplates, src dice.Source) *Builder {
	return &Builder{maps: maps, waves: waves, src: src}
}

// Build resolves def into a playable Level. Waves referencing templates are
// scaled by level and wave difficulty; a definition without waves is
// generated with WaveCount(def.Number) waves.
//
// Postcondition: every returned wave has at least one group and a positive pre-wave delay.
func (b *Builder) Build(def *Definition) (*Level, error) {
	m, ok := b.maps.Get(def.Map)
	if !ok {
		return nil, fmt.Errorf("level %d: unknown map %q", def.Number, def.Map)
	}
	lvl := &Level{
		Number:      def.Number,
		Name:        def.Name,
		Description: def.Description,
		Theme:       def.Theme,
		Map:         m,
		Difficulty:  Difficulty(def.Number),
		Rewards:     def.Rewards,
		Scaling:     def.Scaling.withDefaults(),
	}
	if lvl.Name == "" {
		lvl.Name = fmt.Sprintf("Level %d", def.Number)
	}
	if lvl.Theme == "" {
		lvl.Theme = Theme(def.Number)
	}
	if lvl.Rewards.IsZero() {
		lvl.Rewards = LevelRewards(def.Number)
	}

	specs := def.Waves
	if len(specs) == 0 {
		specs = b.generateSpecs(def.Number)
	}
	for i, spec := range specs {
		w, err := b.resolve(lvl, spec, i+1, len(specs))
		if err != nil {
			return nil, err
		}
		lvl.Waves = append(lvl.Waves, w)
	}
	return lvl, nil
}

// Generate builds level n on mapID with generated waves.
func (b *Builder) Generate(n int, mapID string) (*Level, error) {
	return b.Build(&Definition{Number: n, Map: mapID})
}

func (b *Builder) resolve(lvl *Level, spec WaveSpec, number, total int) (WaveDefinition, error) {
	difficulty := WaveDifficulty(lvl.Number, number, total)
	w := WaveDefinition{
		Number:       number,
		Name:         spec.Name,
		Difficulty:   difficulty,
		Boss:         spec.Boss,
		Rewards:      spec.Rewards,
		PreWaveDelay: spec.PreWaveDelay,
	}
	if w.Name == "" {
		w.Name = fmt.Sprintf("Wave %d", number)
	}
	if spec.Template != "" {
		t, ok := b.waves.Get(spec.Template)
		if !ok {
			return WaveDefinition{}, fmt.Errorf("level %d wave %d: unknown wave template %q", lvl.Number, number, spec.Template)
		}
		w.Template = t.ID
		w.Groups = lvl.Scaling.ScaleGroups(t.Groups, difficulty, lvl.Number)
		w.TotalDuration = t.TotalDuration
		w.Boss = w.Boss || t.Boss
	} else {
		w.Groups = append([]Group(nil), spec.Groups...)
		w.TotalDuration = groupsDuration(w.Groups)
	}
	if w.Rewards.IsZero() {
		w.Rewards = WaveRewards(difficulty)
	}
	if w.PreWaveDelay <= 0 {
		w.PreWaveDelay = PreWaveDelay(number, lvl.Number)
	}
	return w, nil
}

// groupsDuration returns the time of the last scheduled spawn.
func groupsDuration(groups []Group) float64 {
	end := 0.0
	for _, g := range groups {
		interval := g.Interval
		if interval <= 0 {
			interval = DefaultSpawnInterval
		}
		end = max(end, g.Delay+float64(g.Count-1)*interval)
	}
	return end
}

// generateSpecs picks a template for every wave of level n: the last wave
// is final_assault on every fifth level and boss_wave otherwise, every fifth
// wave is boss_wave, and the rest draw from SelectTemplates.
func (b *Builder) generateSpecs(n int) []WaveSpec {
	total := WaveCount(n)
	specs := make([]WaveSpec, total)
	for i := 1; i <= total; i++ {
		var id string
		switch {
		case i == total && n%5 == 0:
			id = FinalAssault
		case i == total || i%5 == 0:
			id = BossWave
		default:
			candidates := SelectTemplates(n, float64(i)/float64(total))
			id = candidates[b.src.Intn(len(candidates))]
		}
		if _, ok := b.waves.Get(id); !ok {
			id = BasicWave
		}
		specs[i-1] = WaveSpec{Template: id}
	}
	return specs
}

// SelectTemplates returns the wave templates eligible at level n for a wave
// at progress (0, 1] through the level.
func SelectTemplates(n int, progress float64) []string {
	available := []string{BasicWave, "mixed_wave"}
	unlocks := []struct {
		level int
		id    string
	}{
		{2, "heavy_wave"},
		{3, "air_assault"},
		{4, "shield_formation"},
		{5, "regeneration_swarm"},
	}
	for _, u := range unlocks {
		if n >= u.level {
			available = append(available, u.id)
		}
	}
	switch {
	case progress > 0.6:
		return available[max(0, len(available)-3):]
	case progress > 0.3:
		return available[1:]
	default:
		return available[:min(3, len(available))]
	}
}
