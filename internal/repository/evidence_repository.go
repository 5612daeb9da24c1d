package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type evidenceRepository struct {
	db DBTX
}

// NewEvidenceRepository returns repository.
func NewEvidenceRepository(db DBTX) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) Create(ctx context.Context, item *domain.EvidenceItem) error {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode evidence metadata: %w", err)
	}
	const query = `
        INSERT INTO evidence_items (id, ticket_id, kind, uri, checksum, metadata, created_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.db.Exec(ctx, query,
		item.ID,
		item.TicketID,
		item.Kind,
		item.URI,
		item.Checksum,
		encoded,
		item.CreatedBy,
		item.CreatedAt,
	)
	return mapError(err)
}

func (r *evidenceRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EvidenceItem, error) {
	const query = `
        SELECT id, ticket_id, kind, uri, checksum, metadata, created_by, created_at
        FROM evidence_items WHERE ticket_id=$1 ORDER BY seq`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EvidenceItem
	for rows.Next() {
		var item domain.EvidenceItem
		var metadata []byte
		if err := rows.Scan(
			&item.ID,
			&item.TicketID,
			&item.Kind,
			&item.URI,
			&item.Checksum,
			&metadata,
			&item.CreatedBy,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode evidence metadata %s: %w", item.ID, err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
