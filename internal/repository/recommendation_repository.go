package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type recommendationRepository struct {
	db DBTX
}

// NewRecommendationRepository returns repository.
func NewRecommendationRepository(db DBTX) RecommendationRepository {
	return &recommendationRepository{db: db}
}

func (r *recommendationRepository) Create(ctx context.Context, snapshot *domain.RecommendationSnapshot) error {
	candidates, err := json.Marshal(snapshot.Candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	var prefStart, prefEnd *time.Time
	if snapshot.PreferredWindow != nil {
		prefStart, prefEnd = &snapshot.PreferredWindow.Start, &snapshot.PreferredWindow.End
	}
	const query = `
        INSERT INTO assignment_recommendations (snapshot_id, ticket_id, service_type, preferred_start, preferred_end, candidates, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = r.db.Exec(ctx, query,
		snapshot.SnapshotID,
		snapshot.TicketID,
		snapshot.ServiceType,
		prefStart,
		prefEnd,
		candidates,
		snapshot.CreatedAt,
	)
	return mapError(err)
}

func (r *recommendationRepository) GetBySnapshotID(ctx context.Context, snapshotID string) (*domain.RecommendationSnapshot, error) {
	const query = `
        SELECT snapshot_id, ticket_id, service_type, preferred_start, preferred_end, candidates, created_at
        FROM assignment_recommendations WHERE snapshot_id=$1`
	return scanSnapshot(r.db.QueryRow(ctx, query, snapshotID))
}

func (r *recommendationRepository) LatestForTicket(ctx context.Context, ticketID string) (*domain.RecommendationSnapshot, error) {
	const query = `
        SELECT snapshot_id, ticket_id, service_type, preferred_start, preferred_end, candidates, created_at
        FROM assignment_recommendations WHERE ticket_id=$1 ORDER BY seq DESC LIMIT 1`
	return scanSnapshot(r.db.QueryRow(ctx, query, ticketID))
}

func scanSnapshot(row pgx.Row) (*domain.RecommendationSnapshot, error) {
	var snapshot domain.RecommendationSnapshot
	var prefStart, prefEnd *time.Time
	var candidates []byte
	if err := row.Scan(
		&snapshot.SnapshotID,
		&snapshot.TicketID,
		&snapshot.ServiceType,
		&prefStart,
		&prefEnd,
		&candidates,
		&snapshot.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	if prefStart != nil && prefEnd != nil {
		snapshot.PreferredWindow = &domain.ScheduleWindow{Start: *prefStart, End: *prefEnd}
	}
	if err := json.Unmarshal(candidates, &snapshot.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates %s: %w", snapshot.SnapshotID, err)
	}
	return &snapshot, nil
}
