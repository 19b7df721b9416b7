package sim_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/targeting"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

func writeBuild(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBuildOrder(t *testing.T) {
	b, err := sim.LoadBuildOrder(writeBuild(t, `
placements:
  - {type: basic, x: 0, z: 4, targeting: strongest}
  - {type: basic, x: 0, z: -4}
`))
	require.NoError(t, err)
	require.Len(t, b.Placements, 2)
	assert.Equal(t, targeting.Strongest, b.Placements[0].Targeting)
	assert.Equal(t, -4.0, b.Placements[1].Z)
}

func TestLoadBuildOrder_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "placements:\n  - {type: basic, x: 0, z: 4, level: 3}\n",
		"empty type":    "placements:\n  - {x: 0, z: 4}\n",
		"bad mode":      "placements:\n  - {type: basic, x: 0, z: 4, targeting: nearest}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := sim.LoadBuildOrder(writeBuild(t, body))
			assert.Error(t, err)
		})
	}
	_, err := sim.LoadBuildOrder(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyBuildOrder_SkipsRejectedPlacements(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	built := s.ApplyBuildOrder(&sim.BuildOrder{Placements: []sim.Placement{
		{Type: "basic", X: 0, Z: 0},
		{Type: "basic", X: 0, Z: 4, Targeting: targeting.Weakest},
		{Type: "basic", X: 0, Z: -4},
	}})
	// The first sits on the path and the third is unaffordable on 100 gold.
	require.Len(t, built, 1)
	assert.Equal(t, 1, s.Stats().Towers.Total)
}
