package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"taxatlas/internal/domain"
	"taxatlas/internal/port"
)

type queryCacheRepo struct {
	db *sqlx.DB
}

// NewQueryCacheRepo creates a new PostgreSQL-backed QueryCacheRepository.
func NewQueryCacheRepo(db *sqlx.DB) port.QueryCacheRepository {
	return &queryCacheRepo{db: db}
}

func (r *queryCacheRepo) Get(ctx context.Context, provider, queryType, queryHash string) (*domain.ExternalQueryCacheEntry, error) {
	var entry domain.ExternalQueryCacheEntry
	err := r.db.GetContext(ctx, &entry,
		`SELECT * FROM external_query_cache
		 WHERE provider = $1 AND query_type = $2 AND query_hash = $3`,
		provider, queryType, queryHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("queryCacheRepo.Get: %w", err)
	}
	return &entry, nil
}

// Upsert is last-writer-wins on the cache key; concurrent refreshes of the
// same query are harmless.
func (r *queryCacheRepo) Upsert(ctx context.Context, entry *domain.ExternalQueryCacheEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO external_query_cache (
			id, provider, query_type, query_hash, response, status,
			latency_ms, called_at, expires_at
		) VALUES (
			:id, :provider, :query_type, :query_hash, :response, :status,
			:latency_ms, :called_at, :expires_at
		)
		ON CONFLICT (provider, query_type, query_hash) DO UPDATE SET
			response = EXCLUDED.response,
			status = EXCLUDED.status,
			latency_ms = EXCLUDED.latency_ms,
			called_at = EXCLUDED.called_at,
			expires_at = EXCLUDED.expires_at`, entry)
	if err != nil {
		return fmt.Errorf("queryCacheRepo.Upsert: %w", err)
	}
	return nil
}

func (r *queryCacheRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM external_query_cache WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("queryCacheRepo.DeleteExpired: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
