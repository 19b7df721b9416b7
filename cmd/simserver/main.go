// Package main provides the headless simulation server: it plays one level
// against wall-clock ticks and optionally checkpoints it to PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/config"
	"github.com/cory-johannsen/towerdefense/internal/game/dice"
	"github.com/cory-johannsen/towerdefense/internal/game/event"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/observability"
	"github.com/cory-johannsen/towerdefense/internal/scripting"
	"github.com/cory-johannsen/towerdefense/internal/server"
	"github.com/cory-johannsen/towerdefense/internal/sim"
	"github.com/cory-johannsen/towerdefense/internal/storage/postgres"
)

const (
	watchInterval = 250 * time.Millisecond
	gracePeriod   = 10 * time.Second
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	levelNum := flag.Int("level", 1, "level number to play")
	mapID := flag.String("map", "meadow", "map for generated levels that have no definition file")
	buildPath := flag.String("build", "", "optional YAML build order placed before the first wave")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var src dice.Source = dice.NewCryptoSource()
	if cfg.Simulation.Seed != 0 {
		src = dice.NewSeededSource(cfg.Simulation.Seed)
	}
	src = dice.NewLoggedSource(src, logger)

	contentStart := time.Now()
	cat, err := sim.LoadCatalog(cfg.Content)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("levels", len(cat.Levels.Numbers())),
		zap.Strings("maps", cat.Maps.IDs()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)
	if cfg.Server.Mode == "validate" {
		logger.Info("content valid, exiting", zap.Duration("elapsed", time.Since(start)))
		return
	}

	lvl, err := cat.BuildLevel(*levelNum, *mapID, src)
	if err != nil {
		logger.Fatal("building level", zap.Int("level", *levelNum), zap.Error(err))
	}

	s, err := sim.New(sim.ConfigFrom(cfg), cat, lvl, src, event.NewBus(logger), logger)
	if err != nil {
		logger.Fatal("creating simulation", zap.Error(err))
	}
	logger = logger.With(zap.String("session", s.ID()))
	logger.Info("simulation created",
		zap.Int("level", lvl.Number),
		zap.String("map", lvl.Map.ID),
		zap.Int("waves", len(lvl.Waves)),
	)

	if cfg.Scripting.ScriptDir != "" {
		scripts := scripting.NewManager(src, logger)
		defer scripts.Close()
		if err := s.AttachScripts(scripts, cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
	}

	if *buildPath != "" {
		order, err := sim.LoadBuildOrder(*buildPath)
		if err != nil {
			logger.Fatal("loading build order", zap.Error(err))
		}
		built := s.ApplyBuildOrder(order)
		logger.Info("build order placed",
			zap.Int("requested", len(order.Placements)),
			zap.Int("built", len(built)),
		)
	}

	var store *checkpointer
	if cfg.Persistence.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		store = &checkpointer{
			db:       pool,
			sessions: postgres.NewSessionRepository(pool.DB()),
			sim:      s,
			logger:   logger,
		}
		if _, err := store.sessions.Create(ctx, postgres.Session{
			ID:    s.ID(),
			Level: lvl.Number,
			MapID: lvl.Map.ID,
			Seed:  cfg.Simulation.Seed,
		}); err != nil {
			logger.Fatal("recording session", zap.Error(err))
		}
	}

	runner := sim.NewRunner(cfg.Simulation.TickInterval, logger)
	runner.Register(s)

	lc := server.NewLifecycle(logger, gracePeriod)
	lc.Add("runner", server.ServiceFunc(func(ctx context.Context) error {
		runner.Run(ctx)
		return nil
	}))
	lc.Add("watcher", server.ServiceFunc(func(ctx context.Context) error {
		watch(ctx, s, cfg.Waves.AutoStart, cancel, logger)
		return nil
	}))
	if store != nil {
		lc.Add("checkpointer", server.ServiceFunc(func(ctx context.Context) error {
			return store.run(ctx, cfg.Persistence.SnapshotInterval)
		}))
	}

	if !s.StartNextWave() {
		logger.Fatal("starting first wave")
	}
	logger.Info("simulation server ready", zap.Duration("startup", time.Since(start)))

	if err := lc.Run(ctx); err != nil {
		logger.Error("lifecycle error", zap.Error(err))
	}

	outcome := outcomeOf(s)
	if store != nil {
		store.finish(outcome)
	}
	final := s.Snapshot()
	logger.Info("simulation finished",
		zap.String("outcome", outcome),
		zap.Int("score", final.Ledger.Score),
		zap.Int("lives", final.Ledger.Lives),
		zap.Int("waves_played", len(final.Results)),
	)
}

// watch starts waves by hand when auto-start is off and cancels the server
// once the level is won or lost.
func watch(ctx context.Context, s *sim.Simulation, autoStart bool, done context.CancelFunc, logger *zap.Logger) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.GameOver() || s.LevelComplete() {
			logger.Info("level over", zap.String("outcome", outcomeOf(s)))
			done()
			return
		}
		if !autoStart && s.Stats().Wave.State == wave.Complete {
			s.StartNextWave()
		}
	}
}

func outcomeOf(s *sim.Simulation) string {
	switch {
	case s.GameOver():
		return postgres.OutcomeDefeat
	case s.LevelComplete():
		return postgres.OutcomeVictory
	default:
		return postgres.OutcomeAbandoned
	}
}
