package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// DefaultRetention is how many snapshots PostgresRepository keeps
const DefaultRetention = 30

// PostgresRepository stores snapshots as JSONB documents in ranking.snapshots
// ⭐ SSOT: snapshot persistence in Postgres lives here only
type PostgresRepository struct {
	pool      *pgxpool.Pool
	retention int
}

// NewPostgresRepository creates a new snapshot repository
func NewPostgresRepository(pool *pgxpool.Pool, retention int) *PostgresRepository {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresRepository{pool: pool, retention: retention}
}

// Save inserts the snapshot and prunes old ones in one transaction
func (r *PostgresRepository) Save(ctx context.Context, s *contracts.Snapshot) error {
	runID, err := uuid.Parse(s.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", s.RunID, err)
	}

	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	state := "complete"
	if s.Partial {
		state = "partial"
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ranking.snapshots (run_id, generated_at, mode, state, document)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			mode = EXCLUDED.mode,
			state = EXCLUDED.state,
			document = EXCLUDED.document,
			created_at = NOW()
	`, runID, s.Timestamp, string(s.Mode), state, doc)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM ranking.snapshots
		WHERE run_id NOT IN (
			SELECT run_id FROM ranking.snapshots
			ORDER BY generated_at DESC
			LIMIT $1
		)
	`, r.retention)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot
func (r *PostgresRepository) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	return r.scanOne(ctx, `
		SELECT document FROM ranking.snapshots
		ORDER BY generated_at DESC
		LIMIT 1
	`)
}

// Get returns the snapshot of a specific run
func (r *PostgresRepository) Get(ctx context.Context, runID string) (*contracts.Snapshot, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return r.scanOne(ctx, `SELECT document FROM ranking.snapshots WHERE run_id = $1`, id)
}

// Entry is a row of the snapshot history
type Entry struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Mode        string    `json:"mode"`
	State       string    `json:"state"`
}

// History lists stored snapshots, newest first
func (r *PostgresRepository) History(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id::text, generated_at, mode, state
		FROM ranking.snapshots
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.GeneratedAt, &e.Mode, &e.State); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*contracts.Snapshot, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, query, args...).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var s contracts.Snapshot
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}
