package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcomes recorded when a session finishes.
const (
	OutcomeVictory   = "victory"
	OutcomeDefeat    = "defeat"
	OutcomeAbandoned = "abandoned"
)

// ValidOutcome reports whether outcome is a recognised session outcome.
func ValidOutcome(outcome string) bool {
	switch outcome {
	case OutcomeVictory, OutcomeDefeat, OutcomeAbandoned:
		return true
	}
	return false
}

var (
	// ErrSessionNotFound is returned when a session lookup yields no results.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when a session id is already recorded.
	ErrSessionExists = errors.New("session already exists")
	// ErrInvalidOutcome is returned for an unrecognised outcome string.
	ErrInvalidOutcome = errors.New("invalid outcome")
)

// Session is one recorded simulation run.
type Session struct {
	ID         string
	Level      int
	MapID      string
	Seed       uint64
	Outcome    string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// SessionRepository records simulation sessions.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by db.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create records a new session.
//
// Precondition: s.ID must be a UUID.
// Postcondition: Returns the stored session with CreatedAt set, or
// ErrSessionExists if the id is taken.
func (r *SessionRepository) Create(ctx context.Context, s Session) (Session, error) {
	var seed int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO sessions (id, level, map_id, seed)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, level, map_id, seed, created_at`,
		s.ID, s.Level, s.MapID, int64(s.Seed),
	).Scan(&s.ID, &s.Level, &s.MapID, &seed, &s.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Session{}, ErrSessionExists
		}
		return Session{}, fmt.Errorf("inserting session: %w", err)
	}
	s.Seed = uint64(seed)
	return s, nil
}

// Finish stamps the session's outcome and finish time.
//
// Postcondition: Returns ErrInvalidOutcome or ErrSessionNotFound without
// changing anything.
func (r *SessionRepository) Finish(ctx context.Context, id, outcome string) error {
	if !ValidOutcome(outcome) {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET outcome = $2, finished_at = NOW() WHERE id = $1`,
		id, outcome,
	)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (Session, error) {
	var (
		s       Session
		seed    int64
		outcome *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, level, map_id, seed, outcome, created_at, finished_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Level, &s.MapID, &seed, &outcome, &s.CreatedAt, &s.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("querying session: %w", err)
	}
	s.Seed = uint64(seed)
	if outcome != nil {
		s.Outcome = *outcome
	}
	return s, nil
}

// Recent lists the newest sessions first.
//
// Precondition: limit > 0.
func (r *SessionRepository) Recent(ctx context.Context, limit int) ([]Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, level, map_id, seed, COALESCE(outcome, ''), created_at, finished_at
		 FROM sessions ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s    Session
			seed int64
		)
		if err := rows.Scan(&s.ID, &s.Level, &s.MapID, &seed, &s.Outcome, &s.CreatedAt, &s.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.Seed = uint64(seed)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}
