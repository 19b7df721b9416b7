package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

func contentConfig() config.ContentConfig {
	return config.ContentConfig{
		EffectsDir: "../../content/effects",
		EnemiesDir: "../../content/enemies",
		TowersDir:  "../../content/towers",
		WavesDir:   "../../content/waves",
		MapsDir:    "../../content/maps",
		LevelsDir:  "../../content/levels",
	}
}

func loadCatalog(t *testing.T) *sim.Catalog {
	t.Helper()
	cat, err := sim.LoadCatalog(contentConfig())
	require.NoError(t, err)
	return cat
}

func TestLoadCatalog_Content(t *testing.T) {
	cat := loadCatalog(t)
	assert.NoError(t, cat.Check())

	lvl, err := cat.BuildLevel(1, "", dice.NewSeededSource(1))
	require.NoError(t, err)
	assert.Equal(t, "meadow", lvl.Map.ID)
	assert.Len(t, lvl.Waves, 5)
	assert.Equal(t, "Scouts", lvl.Waves[1].Name)
}

func TestBuildLevel_GeneratesMissingLevels(t *testing.T) {
	cat := loadCatalog(t)
	lvl, err := cat.BuildLevel(7, "canyon", dice.NewSeededSource(1))
	require.NoError(t, err)
	assert.Equal(t, 7, lvl.Number)
	assert.Equal(t, "canyon", lvl.Map.ID)
	assert.NotEmpty(t, lvl.Waves)
}

func TestLoadCatalog_MissingDirectory(t *testing.T) {
	cfg := contentConfig()
	cfg.EnemiesDir = t.TempDir() + "/absent"
	_, err := sim.LoadCatalog(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading enemies")
}

func TestCheck_ReportsEveryDanglingReference(t *testing.T) {
	cat := loadCatalog(t)
	cat.Levels = level.NewLevels(&level.Definition{
		Number: 9,
		Map:    "nowhere",
		Waves: []level.WaveSpec{
			{Template: "ghost_wave"},
			{Groups: []level.Group{{Type: "dragon", Count: 1}}},
		},
	})
	cat.Waves = level.NewWaveTemplates(&level.WaveTemplate{
		ID:     "lonely",
		Groups: []level.Group{{Type: "wraith", Count: 2}},
	})

	err := cat.Check()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `level 9: unknown map "nowhere"`)
	assert.Contains(t, msg, `unknown wave template "ghost_wave"`)
	assert.Contains(t, msg, `level 9 wave 2 group 0: unknown enemy type "dragon"`)
	assert.Contains(t, msg, `wave template lonely group 0: unknown enemy type "wraith"`)
	assert.Contains(t, msg, `"basic_wave" is required`)
	assert.Contains(t, msg, `"boss_wave" is required`)
}
