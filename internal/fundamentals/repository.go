package fundamentals

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// Repository reads and writes fundamentals in Postgres
// ⭐ SSOT: ranking.fundamentals access lives here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new fundamentals repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load implements contracts.FundamentalsSource
func (r *Repository) Load(ctx context.Context) ([]contracts.FundamentalRecord, error) {
	query := `
		SELECT ticker, sector, price::float8, roe::float8, cagr::float8,
		       valuation::float8, leverage::float8, dy::float8
		FROM ranking.fundamentals
		ORDER BY ticker
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fundamentals: %w", err)
	}
	defer rows.Close()

	var records []contracts.FundamentalRecord
	for rows.Next() {
		var rec contracts.FundamentalRecord
		if err := rows.Scan(
			&rec.Ticker, &rec.Sector, &rec.Price, &rec.ROE, &rec.Growth,
			&rec.Valuation, &rec.Leverage, &rec.DividendYield,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fundamentals: %w", err)
	}

	return records, nil
}

// SaveBatch upserts records in a single transaction
func (r *Repository) SaveBatch(ctx context.Context, records []contracts.FundamentalRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ranking.fundamentals (
			ticker, sector, price, roe, cagr, valuation, leverage, dy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker) DO UPDATE SET
			sector = EXCLUDED.sector,
			price = EXCLUDED.price,
			roe = EXCLUDED.roe,
			cagr = EXCLUDED.cagr,
			valuation = EXCLUDED.valuation,
			leverage = EXCLUDED.leverage,
			dy = EXCLUDED.dy,
			updated_at = NOW()
	`

	for _, rec := range records {
		_, err := tx.Exec(ctx, query,
			rec.Ticker, rec.Sector, rec.Price, rec.ROE, rec.Growth,
			rec.Valuation, rec.Leverage, rec.DividendYield,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", rec.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
