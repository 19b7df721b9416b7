package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/storage/postgres"
	"github.com/cory-johannsen/towerdefense/internal/testutil"
)

func TestWaveResultRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	s := createSession(t, postgres.NewSessionRepository(pool))
	repo := postgres.NewWaveResultRepository(pool)
	ctx := context.Background()

	second := wave.Results{
		Level: 3, WaveNumber: 2, TotalEnemies: 10, Killed: 7, ReachedEnd: 3,
		KillRate: 0.7, SurvivalRate: 0.7, StartedAt: 12000, DurationMs: 30000,
		Rating: wave.RatingC, Rewards: level.Rewards{Gold: 15, Energy: 5, Score: 70},
	}
	first := wave.Results{Level: 3, WaveNumber: 1, Skipped: true, SurvivalRate: 1, Rating: wave.RatingD}

	require.NoError(t, repo.Record(ctx, s.ID, second))
	require.NoError(t, repo.Record(ctx, s.ID, first))

	got, err := repo.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])

	second.Killed = 10
	require.NoError(t, repo.Record(ctx, s.ID, second))
	got, err = repo.List(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[1].Killed)

	assert.ErrorIs(t, repo.Record(ctx, uuid.NewString(), first), postgres.ErrSessionNotFound)
}
