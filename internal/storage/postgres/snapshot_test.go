package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/towerdefense/internal/game/economy"
	"github.com/cory-johannsen/towerdefense/internal/game/enemy"
	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/sim"
	"github.com/cory-johannsen/towerdefense/internal/storage/postgres"
	"github.com/cory-johannsen/towerdefense/internal/testutil"
)

func snapshotAt(sessionID string, tick uint64, gold int) sim.Snapshot {
	return sim.Snapshot{
		SessionID: sessionID,
		Level:     3,
		Map:       "meadow",
		Tick:      tick,
		TimeMs:    float64(tick) * 50,
		Enemies:   []enemy.Enemy{{ID: "enemy_1", Type: "basic"}},
		Ledger:    economy.Snapshot{Gold: gold, Lives: 3, Score: 40},
		Wave:      wave.Stats{Level: 3, CurrentWave: 2, TotalWaves: 5},
		Results: []wave.Results{{
			Level: 3, WaveNumber: 1, TotalEnemies: 4, Killed: 4,
			KillRate: 1, SurvivalRate: 1, Perfect: true, Rating: wave.RatingS,
			Rewards: level.Rewards{Gold: 20, Score: 100},
		}},
	}
}

func TestSnapshotRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	sessions := postgres.NewSessionRepository(pool)
	repo := postgres.NewSnapshotRepository(pool)
	ctx := context.Background()

	t.Run("save and load latest", func(t *testing.T) {
		s := createSession(t, sessions)
		_, err := repo.Save(ctx, snapshotAt(s.ID, 10, 100))
		require.NoError(t, err)
		id, err := repo.Save(ctx, snapshotAt(s.ID, 20, 150))
		require.NoError(t, err)

		latest, err := repo.Latest(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(20), latest.Tick)
		assert.Equal(t, 150, latest.Ledger.Gold)
		require.Len(t, latest.Enemies, 1)
		assert.Equal(t, "enemy_1", latest.Enemies[0].ID)

		byID, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, latest.Tick, byID.Tick)
	})

	t.Run("same tick replaces", func(t *testing.T) {
		s := createSession(t, sessions)
		first, err := repo.Save(ctx, snapshotAt(s.ID, 5, 10))
		require.NoError(t, err)
		second, err := repo.Save(ctx, snapshotAt(s.ID, 5, 99))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		list, err := repo.List(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 99, list[0].Gold)
		assert.Equal(t, 1, list[0].Enemies)
		assert.Equal(t, 2, list[0].Wave)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := repo.Save(ctx, snapshotAt(uuid.NewString(), 1, 0))
		assert.ErrorIs(t, err, postgres.ErrSessionNotFound)
		_, err = repo.Latest(ctx, uuid.NewString())
		assert.ErrorIs(t, err, postgres.ErrSnapshotNotFound)
	})

	t.Run("prune keeps newest", func(t *testing.T) {
		s := createSession(t, sessions)
		for tick := uint64(1); tick <= 4; tick++ {
			_, err := repo.Save(ctx, snapshotAt(s.ID, tick, 0))
			require.NoError(t, err)
		}
		removed, err := repo.Prune(ctx, s.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		list, err := repo.List(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, uint64(3), list[0].Tick)
		assert.Equal(t, uint64(4), list[1].Tick)
	})

	t.Run("checkpoint records results", func(t *testing.T) {
		s := createSession(t, sessions)
		_, err := postgres.Checkpoint(ctx, pool, snapshotAt(s.ID, 7, 0))
		require.NoError(t, err)

		results, err := postgres.NewWaveResultRepository(pool).List(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, wave.RatingS, results[0].Rating)
		assert.Equal(t, 20, results[0].Rewards.Gold)
	})

	t.Run("checkpoint rolls back", func(t *testing.T) {
		_, err := postgres.Checkpoint(ctx, pool, snapshotAt(uuid.NewString(), 7, 0))
		assert.ErrorIs(t, err, postgres.ErrSessionNotFound)
	})
}
