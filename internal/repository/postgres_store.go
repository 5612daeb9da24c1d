package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresStore runs repositories against a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Repositories returns repositories bound to the pool, outside any transaction.
func (s *PostgresStore) Repositories() Repositories {
	return bind(s.pool)
}

// WithTx runs fn in a read-committed transaction. Row and advisory locks taken by fn
// are released on commit or rollback.
func (s *PostgresStore) WithTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}
	return mapError(tx.Commit(ctx))
}

// Seed upserts reference data in one transaction.
func (s *PostgresStore) Seed(ctx context.Context, seed *Seed) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return ApplySeed(ctx, tx, seed)
	})
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func bind(db DBTX) Repositories {
	return Repositories{
		Tickets:         NewTicketRepository(db),
		Audit:           NewAuditRepository(db),
		Evidence:        NewEvidenceRepository(db),
		Idempotency:     NewIdempotencyRepository(db),
		Holds:           NewScheduleHoldRepository(db),
		Recommendations: NewRecommendationRepository(db),
		Reference:       NewReferenceRepository(db),
		Autonomy:        NewAutonomyRepository(db),
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}
