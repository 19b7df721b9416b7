package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/sim"
	"github.com/cory-johannsen/towerdefense/internal/storage/postgres"
)

// checkpointer periodically writes the simulation's snapshot and wave
// results to PostgreSQL.
type checkpointer struct {
	db       *postgres.Pool
	sessions *postgres.SessionRepository
	sim      *sim.Simulation
	logger   *zap.Logger
}

// run checkpoints every interval until ctx is cancelled. A failed write is
// logged and retried on the next interval.
func (c *checkpointer) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.save(ctx)
		}
	}
}

func (c *checkpointer) save(ctx context.Context) {
	start := time.Now()
	snap := c.sim.Snapshot()
	id, err := postgres.Checkpoint(ctx, c.db.DB(), snap)
	if err != nil {
		c.logger.Warn("checkpoint failed", zap.Uint64("tick", snap.Tick), zap.Error(err))
		return
	}
	c.logger.Debug("checkpoint saved",
		zap.Int64("snapshot", id),
		zap.Uint64("tick", snap.Tick),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// finish writes a last checkpoint and stamps the session outcome. It runs
// after the lifecycle has stopped, so it uses its own deadline.
func (c *checkpointer) finish(outcome string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.save(ctx)
	if err := c.sessions.Finish(ctx, c.sim.ID(), outcome); err != nil {
		c.logger.Error("recording outcome", zap.Error(err))
	}
}
