package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/towerdefense/internal/sim"
)

// ErrSnapshotNotFound is returned when no stored snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotSummary is the indexed columns of a stored snapshot, without the
// encoded state.
type SnapshotSummary struct {
	ID        int64
	SessionID string
	Tick      uint64
	TimeMs    float64
	Wave      int
	Gold      int
	Lives     int
	Score     int
	Enemies   int
	Towers    int
	GameOver  bool
	CreatedAt time.Time
}

// SnapshotRepository stores msgpack-encoded simulation snapshots.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by db.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save stores snap. Saving the same session and tick twice replaces the
// earlier row.
//
// Precondition: the session must already be recorded.
// Postcondition: Returns the row id, or ErrSessionNotFound if the session
// is unknown.
func (r *SnapshotRepository) Save(ctx context.Context, snap sim.Snapshot) (int64, error) {
	return saveSnapshot(ctx, r.db, snap)
}

func saveSnapshot(ctx context.Context, q querier, snap sim.Snapshot) (int64, error) {
	state, err := snap.Marshal()
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRow(ctx,
		`INSERT INTO simulation_snapshots
		   (session_id, tick, time_ms, wave, gold, lives, score, enemies, towers, game_over, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id, tick) DO UPDATE SET
		   time_ms = EXCLUDED.time_ms, wave = EXCLUDED.wave, gold = EXCLUDED.gold,
		   lives = EXCLUDED.lives, score = EXCLUDED.score, enemies = EXCLUDED.enemies,
		   towers = EXCLUDED.towers, game_over = EXCLUDED.game_over, state = EXCLUDED.state
		 RETURNING id`,
		snap.SessionID, int64(snap.Tick), snap.TimeMs, snap.Wave.CurrentWave,
		snap.Ledger.Gold, snap.Ledger.Lives, snap.Ledger.Score,
		len(snap.Enemies), len(snap.Towers), snap.GameOver, state,
	).Scan(&id)
	if err != nil {
		if isForeignKeyError(err) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}
	return id, nil
}

// Latest returns the snapshot with the highest tick for sessionID.
func (r *SnapshotRepository) Latest(ctx context.Context, sessionID string) (sim.Snapshot, error) {
	return r.load(ctx,
		`SELECT state FROM simulation_snapshots
		 WHERE session_id = $1 ORDER BY tick DESC LIMIT 1`,
		sessionID,
	)
}

// Get returns the snapshot stored under row id.
func (r *SnapshotRepository) Get(ctx context.Context, id int64) (sim.Snapshot, error) {
	return r.load(ctx, `SELECT state FROM simulation_snapshots WHERE id = $1`, id)
}

func (r *SnapshotRepository) load(ctx context.Context, query string, arg any) (sim.Snapshot, error) {
	var state []byte
	if err := r.db.QueryRow(ctx, query, arg).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sim.Snapshot{}, ErrSnapshotNotFound
		}
		return sim.Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}
	return sim.UnmarshalSnapshot(state)
}

// List returns the summaries of every snapshot of sessionID in tick order.
func (r *SnapshotRepository) List(ctx context.Context, sessionID string) ([]SnapshotSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, tick, time_ms, wave, gold, lives, score, enemies, towers, game_over, created_at
		 FROM simulation_snapshots WHERE session_id = $1 ORDER BY tick`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var (
			s    SnapshotSummary
			tick int64
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &tick, &s.TimeMs, &s.Wave, &s.Gold,
			&s.Lives, &s.Score, &s.Enemies, &s.Towers, &s.GameOver, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots of sessionID and returns
// the number removed.
//
// Precondition: keep >= 0.
func (r *SnapshotRepository) Prune(ctx context.Context, sessionID string, keep int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM simulation_snapshots
		 WHERE session_id = $1 AND id NOT IN (
		   SELECT id FROM simulation_snapshots
		   WHERE session_id = $1 ORDER BY tick DESC LIMIT $2
		 )`,
		sessionID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
