package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence contract for quota records. Get returns
// (nil, nil) when no record exists. Insert reports false when a concurrent
// request won the creation race; callers then re-read and update.
type Store interface {
	Get(ctx context.Context, accountID, modelID string) (*Record, error)
	Insert(ctx context.Context, rec *Record) (bool, error)
	Update(ctx context.Context, rec *Record) error
}

// Repository implements Store on the rate_limit_records PostgreSQL table.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new rate limit Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches the record for one (account, model) pair.
func (r *Repository) Get(ctx context.Context, accountID, modelID string) (*Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx,
		`SELECT id, account_id, model_id, daily_request_count, minute_request_count,
		        last_daily_reset, last_minute_reset, created_at, updated_at
		 FROM rate_limit_records
		 WHERE account_id = $1 AND model_id = $2
		 LIMIT 1`, accountID, modelID,
	).Scan(&rec.ID, &rec.AccountID, &rec.ModelID, &rec.DailyCount, &rec.MinuteCount,
		&rec.LastDailyReset, &rec.LastMinuteReset, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching rate limit record: %w", err)
	}
	return &rec, nil
}

// Insert creates a fresh record. Concurrent creators are tolerated via the
// unique (account_id, model_id) constraint; the loser sees inserted=false.
func (r *Repository) Insert(ctx context.Context, rec *Record) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO rate_limit_records
		   (id, account_id, model_id, daily_request_count, minute_request_count,
		    last_daily_reset, last_minute_reset, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT ON CONSTRAINT unique_account_model DO NOTHING`,
		rec.ID, rec.AccountID, rec.ModelID, rec.DailyCount, rec.MinuteCount,
		rec.LastDailyReset, rec.LastMinuteReset, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting rate limit record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Update rewrites the counters and reset markers of an existing record.
func (r *Repository) Update(ctx context.Context, rec *Record) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE rate_limit_records
		 SET daily_request_count = $2,
		     minute_request_count = $3,
		     last_daily_reset = $4,
		     last_minute_reset = $5,
		     updated_at = $6
		 WHERE id = $1`,
		rec.ID, rec.DailyCount, rec.MinuteCount,
		rec.LastDailyReset, rec.LastMinuteReset, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating rate limit record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rate limit record %s not found", rec.ID)
	}
	return nil
}
