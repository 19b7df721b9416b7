package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker is anything a Runner can advance.
type Ticker interface {
	ID() string
	Tick(dtMs float64)
}

// Runner ticks every registered simulation at a fixed wall-clock interval.
// Each tick passes the wall-clock milliseconds since the previous one.
//
// Invariant: each simulation is ticked at most once per interval.
type Runner struct {
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	sims map[string]Ticker
}

// NewRunner returns a Runner that fires every interval.
//
// Precondition: interval must be > 0.
func NewRunner(interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		panic("sim.NewRunner: interval must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		interval: interval,
		logger:   logger,
		now:      time.Now,
		sims:     make(map[string]Ticker),
	}
}

// Register adds t, replacing any simulation with the same id.
func (r *Runner) Register(t Ticker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sims[t.ID()] = t
}

// Unregister removes the simulation with id.
func (r *Runner) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sims, id)
}

// Len returns the number of registered simulations.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sims)
}

// Run ticks until ctx is cancelled. It blocks.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	last := r.now()
	r.logger.Info("simulation runner started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("simulation runner stopped")
			return
		case <-ticker.C:
			now := r.now()
			dt := float64(now.Sub(last)) / float64(time.Millisecond)
			last = now
			r.mu.Lock()
			sims := make([]Ticker, 0, len(r.sims))
			for _, t := range r.sims {
				sims = append(sims, t)
			}
			r.mu.Unlock()
			for _, t := range sims {
				t.Tick(dt)
			}
		}
	}
}

// Start runs the loop in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	go r.Run(ctx)
}
