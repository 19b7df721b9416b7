// Package main lists recorded simulation sessions and prints their stored
// snapshots and wave results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sessionID := flag.String("session", "", "session id; empty lists recent sessions")
	snapshotID := flag.Int64("id", 0, "print the snapshot stored under this row id")
	latest := flag.Bool("latest", false, "print the newest snapshot of -session")
	limit := flag.Int("limit", 20, "number of sessions to list")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	snaps := postgres.NewSnapshotRepository(pool.DB())
	out := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer out.Flush()

	switch {
	case *snapshotID != 0:
		snap, err := snaps.Get(ctx, *snapshotID)
		if err != nil {
			log.Fatalf("loading snapshot %d: %v", *snapshotID, err)
		}
		printSnapshot(out, snap)
	case *sessionID == "":
		sessions, err := postgres.NewSessionRepository(pool.DB()).Recent(ctx, *limit)
		if err != nil {
			log.Fatalf("listing sessions: %v", err)
		}
		fmt.Fprintln(out, "SESSION\tLEVEL\tMAP\tOUTCOME\tCREATED")
		for _, s := range sessions {
			fmt.Fprintf(out, "%s\t%d\t%s\t%s\t%s\n", s.ID, s.Level, s.MapID, orDash(s.Outcome), s.CreatedAt.Format(time.RFC3339))
		}
	case *latest:
		snap, err := snaps.Latest(ctx, *sessionID)
		if errors.Is(err, postgres.ErrSnapshotNotFound) {
			log.Fatalf("session %s has no snapshots", *sessionID)
		}
		if err != nil {
			log.Fatalf("loading latest snapshot: %v", err)
		}
		printSnapshot(out, snap)
	default:
		list, err := snaps.List(ctx, *sessionID)
		if err != nil {
			log.Fatalf("listing snapshots: %v", err)
		}
		fmt.Fprintln(out, "ID\tTICK\tTIME\tWAVE\tGOLD\tLIVES\tSCORE\tENEMIES\tTOWERS\tOVER")
		for _, s := range list {
			fmt.Fprintf(out, "%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%v\n",
				s.ID, s.Tick, msDuration(s.TimeMs), s.Wave, s.Gold, s.Lives, s.Score, s.Enemies, s.Towers, s.GameOver)
		}
		results, err := postgres.NewWaveResultRepository(pool.DB()).List(ctx, *sessionID)
		if err != nil {
			log.Fatalf("listing wave results: %v", err)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "WAVE\tKILLED\tLEAKED\tRATING\tPERFECT\tSKIPPED\tGOLD\tSCORE")
		for _, r := range results {
			fmt.Fprintf(out, "%d\t%d/%d\t%d\t%s\t%v\t%v\t%d\t%d\n",
				r.WaveNumber, r.Killed, r.TotalEnemies, r.ReachedEnd, r.Rating, r.Perfect, r.Skipped, r.Rewards.Gold, r.Rewards.Score)
		}
	}
}
