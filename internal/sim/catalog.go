package sim

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/effect"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/tower"
)

// Catalog is every content registry a simulation draws from.
type Catalog struct {
	Effects *effect.Registry
	Enemies *enemy.Registry
	Towers  *tower.Registry
	Waves   *level.WaveTemplates
	Maps    *level.Maps
	Levels  *level.Levels
}

// LoadCatalog reads every content directory named in cfg and cross-checks
// the references between them.
//
// Postcondition: Returns a Catalog that passes Check, or a non-nil error.
func LoadCatalog(cfg config.ContentConfig) (*Catalog, error) {
	var (
		c   Catalog
		err error
	)
	if c.Effects, err = effect.LoadDirectory(cfg.EffectsDir); err != nil {
		return nil, fmt.Errorf("loading effects: %w", err)
	}
	if c.Enemies, err = enemy.LoadDirectory(cfg.EnemiesDir); err != nil {
		return nil, fmt.Errorf("loading enemies: %w", err)
	}
	if c.Towers, err = tower.LoadDirectory(cfg.TowersDir); err != nil {
		return nil, fmt.Errorf("loading towers: %w", err)
	}
	if c.Waves, err = level.LoadWaveTemplates(cfg.WavesDir); err != nil {
		return nil, fmt.Errorf("loading wave templates: %w", err)
	}
	if c.Maps, err = level.LoadMaps(cfg.MapsDir); err != nil {
		return nil, fmt.Errorf("loading maps: %w", err)
	}
	if c.Levels, err = level.LoadLevels(cfg.LevelsDir); err != nil {
		return nil, fmt.Errorf("loading levels: %w", err)
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Check reports every dangling reference: tower upgrades, wave template
// enemy types, level maps, level wave templates and inline level groups.
func (c *Catalog) Check() error {
	var errs []error
	if err := c.Towers.CheckUpgrades(); err != nil {
		errs = append(errs, err)
	}
	for _, t := range c.Waves.All() {
		errs = append(errs, c.checkGroups("wave template "+t.ID, t.Groups)...)
	}
	for _, n := range c.Levels.Numbers() {
		def, _ := c.Levels.Get(n)
		owner := fmt.Sprintf("level %d", n)
		if _, ok := c.Maps.Get(def.Map); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown map %q", owner, def.Map))
		}
		for i, w := range def.Waves {
			if w.Template != "" {
				if _, ok := c.Waves.Get(w.Template); !ok {
					errs = append(errs, fmt.Errorf("%s wave %d: unknown wave template %q", owner, i+1, w.Template))
				}
				continue
			}
			errs = append(errs, c.checkGroups(fmt.Sprintf("%s wave %d", owner, i+1), w.Groups)...)
		}
	}
	for _, id := range []string{level.BasicWave, level.BossWave} {
		if _, ok := c.Waves.Get(id); !ok {
			errs = append(errs, fmt.Errorf("wave template %q is required for generated levels", id))
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) checkGroups(owner string, groups []level.Group) []error {
	var errs []error
	for i, g := range groups {
		if _, ok := c.Enemies.Get(g.Type); !ok {
			errs = append(errs, fmt.Errorf("%s group %d: unknown enemy type %q", owner, i, g.Type))
		}
	}
	return errs
}

// BuildLevel resolves level n. A level without a definition file is
// generated on mapID.
func (c *Catalog) BuildLevel(n int, mapID string, src dice.Source) (*level.Level, error) {
	b := level.NewBuilder(c.Maps, c.Waves, src)
	if def, ok := c.Levels.Get(n); ok {
		return b.Build(def)
	}
	return b.Generate(n, mapID)
}
