package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cory-johannsen/towerdefense/internal/sim"
)

func printSnapshot(w io.Writer, snap sim.Snapshot) {
	fmt.Fprintf(w, "session\t%s\n", snap.SessionID)
	fmt.Fprintf(w, "level\t%d (%s)\n", snap.Level, snap.Map)
	fmt.Fprintf(w, "tick\t%d at %s\n", snap.Tick, msDuration(snap.TimeMs))
	fmt.Fprintf(w, "wave\t%d/%d %s\n", snap.Wave.CurrentWave, snap.Wave.TotalWaves, snap.Wave.State)
	fmt.Fprintf(w, "ledger\tgold=%d energy=%d lives=%d score=%d\n",
		snap.Ledger.Gold, snap.Ledger.Energy, snap.Ledger.Lives, snap.Ledger.Score)
	fmt.Fprintf(w, "game over\t%v\n\n", snap.GameOver)

	fmt.Fprintln(w, "ENEMY\tTYPE\tHEALTH\tX\tZ")
	for _, e := range snap.Enemies {
		fmt.Fprintf(w, "%s\t%s\t%.0f/%.0f\t%.1f\t%.1f\n", e.ID, e.Type, e.Health, e.MaxHealth, e.Position.X, e.Position.Z)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TOWER\tTYPE\tLEVEL\tX\tZ\tKILLS")
	for _, t := range snap.Towers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.1f\t%d\n", t.ID, t.Type, t.Level, t.Position.X, t.Position.Z, t.Kills)
	}
	fmt.Fprintf(w, "\nprojectiles\t%d\neffects\t%d\nqueued spawns\t%d\n",
		len(snap.Projectiles), len(snap.Effects), len(snap.Queue))
}

func msDuration(ms float64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
