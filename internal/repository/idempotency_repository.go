package repository

import (
	"context"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type idempotencyRepository struct {
	db DBTX
}

// NewIdempotencyRepository returns repository.
func NewIdempotencyRepository(db DBTX) IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

// Lock takes a transaction-scoped advisory lock on the key.
func (r *idempotencyRepository) Lock(ctx context.Context, actorID, endpoint, requestID string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"idempotency|"+actorID+"|"+endpoint+"|"+requestID)
	return err
}

func (r *idempotencyRepository) Get(ctx context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error) {
	const query = `
        SELECT actor_id, endpoint, request_id, request_hash, response_status, response_body, created_at
        FROM idempotency_keys WHERE actor_id=$1 AND endpoint=$2 AND request_id=$3`
	var rec domain.IdempotencyRecord
	if err := r.db.QueryRow(ctx, query, actorID, endpoint, requestID).Scan(
		&rec.ActorID,
		&rec.Endpoint,
		&rec.RequestID,
		&rec.RequestHash,
		&rec.ResponseStatus,
		&rec.ResponseBody,
		&rec.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *idempotencyRepository) Insert(ctx context.Context, record *domain.IdempotencyRecord) error {
	const query = `
        INSERT INTO idempotency_keys (actor_id, endpoint, request_id, request_hash, response_status, response_body, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		record.ActorID,
		record.Endpoint,
		record.RequestID,
		record.RequestHash,
		record.ResponseStatus,
		record.ResponseBody,
		record.CreatedAt,
	)
	return mapError(err)
}
