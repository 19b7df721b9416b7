package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/towerdefense/internal/game/level"
	"github.com/cory-johannsen/towerdefense/internal/game/wave"
	"github.com/cory-johannsen/towerdefense/internal/sim"
)

// WaveResultRepository stores the results of finished waves.
type WaveResultRepository struct {
	db *pgxpool.Pool
}

// NewWaveResultRepository creates a WaveResultRepository backed by db.
//
// Precondition: db must be a valid, open connection pool.
func NewWaveResultRepository(db *pgxpool.Pool) *WaveResultRepository {
	return &WaveResultRepository{db: db}
}

// Record stores r for sessionID, replacing any earlier row for the same wave.
func (r *WaveResultRepository) Record(ctx context.Context, sessionID string, res wave.Results) error {
	return recordWave(ctx, r.db, sessionID, res)
}

func recordWave(ctx context.Context, q querier, sessionID string, res wave.Results) error {
	_, err := q.Exec(ctx,
		`INSERT INTO wave_results
		   (session_id, wave_number, level, total_enemies, killed, reached_end,
		    kill_rate, survival_rate, started_at_ms, duration_ms, perfect, skipped,
		    rating, reward_gold, reward_energy, reward_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (session_id, wave_number) DO UPDATE SET
		   total_enemies = EXCLUDED.total_enemies, killed = EXCLUDED.killed,
		   reached_end = EXCLUDED.reached_end, kill_rate = EXCLUDED.kill_rate,
		   survival_rate = EXCLUDED.survival_rate, duration_ms = EXCLUDED.duration_ms,
		   perfect = EXCLUDED.perfect, skipped = EXCLUDED.skipped, rating = EXCLUDED.rating,
		   reward_gold = EXCLUDED.reward_gold, reward_energy = EXCLUDED.reward_energy,
		   reward_score = EXCLUDED.reward_score`,
		sessionID, res.WaveNumber, res.Level, res.TotalEnemies, res.Killed, res.ReachedEnd,
		res.KillRate, res.SurvivalRate, res.StartedAt, res.DurationMs, res.Perfect, res.Skipped,
		string(res.Rating), res.Rewards.Gold, res.Rewards.Energy, res.Rewards.Score,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("inserting wave result: %w", err)
	}
	return nil
}

// List returns every recorded wave of sessionID in wave order.
func (r *WaveResultRepository) List(ctx context.Context, sessionID string) ([]wave.Results, error) {
	rows, err := r.db.Query(ctx,
		`SELECT wave_number, level, total_enemies, killed, reached_end, kill_rate,
		        survival_rate, started_at_ms, duration_ms, perfect, skipped, rating,
		        reward_gold, reward_energy, reward_score
		 FROM wave_results WHERE session_id = $1 ORDER BY wave_number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing wave results: %w", err)
	}
	defer rows.Close()

	var out []wave.Results
	for rows.Next() {
		var (
			res     wave.Results
			rating  string
			rewards level.Rewards
		)
		if err := rows.Scan(&res.WaveNumber, &res.Level, &res.TotalEnemies, &res.Killed,
			&res.ReachedEnd, &res.KillRate, &res.SurvivalRate, &res.StartedAt, &res.DurationMs,
			&res.Perfect, &res.Skipped, &rating, &rewards.Gold, &rewards.Energy, &rewards.Score); err != nil {
			return nil, fmt.Errorf("scanning wave result: %w", err)
		}
		res.Rating = wave.Rating(rating)
		res.Rewards = rewards
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wave results: %w", err)
	}
	return out, nil
}

// Checkpoint stores snap and every result in it in one transaction.
func Checkpoint(ctx context.Context, db *pgxpool.Pool, snap sim.Snapshot) (int64, error) {
	var id int64
	err := InTx(ctx, db, func(tx pgx.Tx) error {
		var err error
		if id, err = saveSnapshot(ctx, tx, snap); err != nil {
			return err
		}
		for _, res := range snap.Results {
			if err := recordWave(ctx, tx, snap.SessionID, res); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}
