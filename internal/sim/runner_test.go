package sim_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

type countingTicker struct {
	id string

	mu    sync.Mutex
	ticks int
	total float64
}

func (c *countingTicker) ID() string { return c.id }

func (c *countingTicker) Tick(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	c.total += dt
}

func (c *countingTicker) counts() (int, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks, c.total
}

func TestNewRunner_PanicsOnZeroInterval(t *testing.T) {
	assert.Panics(t, func() { sim.NewRunner(0, nil) })
}

func TestRunner_TicksWithWallClockDelta(t *testing.T) {
	r := sim.NewRunner(10*time.Millisecond, nil)
	c := &countingTicker{id: "a"}
	r.Register(c)
	assert.Equal(t, 1, r.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	ticks, total := c.counts()
	assert.Positive(t, ticks)
	assert.Positive(t, total)
}

func TestRunner_UnregisterStopsTicks(t *testing.T) {
	r := sim.NewRunner(10*time.Millisecond, nil)
	c := &countingTicker{id: "a"}
	r.Register(c)
	r.Unregister("a")
	assert.Zero(t, r.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	ticks, _ := c.counts()
	assert.Zero(t, ticks)
}

func TestRunner_DrivesASimulation(t *testing.T) {
	s := newSim(t, nil, level.Group{Type: "basic", Count: 1})
	r := sim.NewRunner(5*time.Millisecond, nil)
	r.Register(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.Eventually(t, func() bool { return s.Now() > 0 }, time.Second, 5*time.Millisecond)
	snap := s.Snapshot()
	assert.Positive(t, snap.Tick)
}
