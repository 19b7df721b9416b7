package server_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/towerdefense/internal/server"
)

type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (b *blockingService) Run(ctx context.Context) error {
	b.started.Store(true)
	<-ctx.Done()
	b.stopped.Store(true)
	return ctx.Err()
}

func runAsync(ctx context.Context, lc *server.Lifecycle) <-chan error {
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	return done
}

func TestNewLifecycle_PanicsOnZeroGrace(t *testing.T) {
	assert.Panics(t, func() { server.NewLifecycle(zaptest.NewLogger(t), 0) })
}

func TestLifecycle_CancelStopsEveryService(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t), time.Second)
	a, b := &blockingService{}, &blockingService{}
	lc.Add("a", a)
	lc.Add("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, lc)
	require.Eventually(t, func() bool { return a.started.Load() && b.started.Load() }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}
	assert.True(t, a.stopped.Load())
	assert.True(t, b.stopped.Load())
}

func TestLifecycle_FailureStopsTheOthers(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t), time.Second)
	peer := &blockingService{}
	boom := errors.New("boom")
	lc.Add("peer", peer)
	lc.Add("failing", server.ServiceFunc(func(context.Context) error { return boom }))

	select {
	case err := <-runAsync(context.Background(), lc):
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "service failing")
	case <-time.After(3 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}
	assert.True(t, peer.stopped.Load())
}

func TestLifecycle_ReturnsWhenServicesFinish(t *testing.T) {
	lc := server.NewLifecycle(zaptest.NewLogger(t), time.Second)
	var ran atomic.Int32
	for _, name := range []string{"one", "two"} {
		lc.Add(name, server.ServiceFunc(func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.NoError(t, lc.Run(context.Background()))
	assert.Equal(t, int32(2), ran.Load())
}

func TestLifecycle_GracePeriodExpires(t *testing.T) {
	// The stubborn service outlives the test, so it must not log through t.
	lc := server.NewLifecycle(zap.NewNop(), 50*time.Millisecond)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	lc.Add("stubborn", server.ServiceFunc(func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lc.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stubborn")
}
