// Package main loads every content registry, cross-checks the references
// between them and exits non-zero on any violation.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/scripting"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	generate := flag.Int("generate", 10, "also generate levels 1..N on every map")
	flag.Parse()

	start := time.Now()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("loading config: %v", err)
	}

	cat, err := sim.LoadCatalog(cfg.Content)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("effects=%d enemies=%d towers=%d wave_templates=%d maps=%d levels=%d\n",
		len(cat.Effects.All()), len(cat.Enemies.IDs()), len(cat.Towers.IDs()),
		len(cat.Waves.All()), len(cat.Maps.IDs()), len(cat.Levels.Numbers()))

	src := dice.NewSeededSource(1)
	var failures int
	for _, n := range cat.Levels.Numbers() {
		if _, err := cat.BuildLevel(n, "", src); err != nil {
			fmt.Fprintf(os.Stderr, "level %d: %v\n", n, err)
			failures++
		}
	}
	for _, mapID := range cat.Maps.IDs() {
		for n := 1; n <= *generate; n++ {
			if _, ok := cat.Levels.Get(n); ok {
				continue
			}
			if _, err := cat.BuildLevel(n, mapID, src); err != nil {
				fmt.Fprintf(os.Stderr, "generated level %d on %s: %v\n", n, mapID, err)
				failures++
			}
		}
	}

	if cfg.Scripting.ScriptDir != "" {
		scripts := scripting.NewManager(src, zap.NewNop())
		if err := scripts.LoadGlobal(cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit); err != nil {
			fmt.Fprintf(os.Stderr, "scripts: %v\n", err)
			failures++
		}
		scripts.Close()
	}

	if failures > 0 {
		fail("%d content violation(s)", failures)
	}
	fmt.Printf("content valid [%s]\n", time.Since(start).Round(time.Millisecond))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
