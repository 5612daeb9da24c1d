package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const ticketColumns = `t.id, t.account_id, t.site_id, t.asset_id, t.state, t.priority, t.incident_type, t.summary,
        t.description, t.nte_cents, t.scheduled_start, t.scheduled_end, t.assigned_provider_id, t.assigned_tech_id,
        t.version, t.created_at, t.updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, account_id, site_id, asset_id, state, priority, incident_type, summary, description,
            nte_cents, scheduled_start, scheduled_end, assigned_provider_id, assigned_tech_id, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.AccountID,
		ticket.SiteID,
		ticket.AssetID,
		ticket.State,
		ticket.Priority,
		ticket.IncidentType,
		ticket.Summary,
		ticket.Description,
		ticket.NTECents,
		ticket.ScheduledStart,
		ticket.ScheduledEnd,
		ticket.AssignedProviderID,
		ticket.AssignedTechID,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET state=$1, priority=$2, incident_type=$3, summary=$4, description=$5, nte_cents=$6,
            scheduled_start=$7, scheduled_end=$8, assigned_provider_id=$9, assigned_tech_id=$10, version=$11, updated_at=$12
        WHERE id=$13`
	cmd, err := r.db.Exec(ctx, query,
		ticket.State,
		ticket.Priority,
		ticket.IncidentType,
		ticket.Summary,
		ticket.Description,
		ticket.NTECents,
		ticket.ScheduledStart,
		ticket.ScheduledEnd,
		ticket.AssignedProviderID,
		ticket.AssignedTechID,
		ticket.Version,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1 FOR UPDATE`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListWithRegion(ctx context.Context, filter TicketFilter) ([]TicketWithRegion, error) {
	query := `SELECT ` + ticketColumns + `, COALESCE(s.region, '')
        FROM tickets t LEFT JOIN sites s ON s.id = t.site_id`
	args := []any{}
	clauses := []string{}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}
		args = append(args, states)
		clauses = append(clauses, fmt.Sprintf("t.state = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.created_at, t.id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TicketWithRegion
	for rows.Next() {
		var item TicketWithRegion
		dest := append(ticketDest(&item.Ticket), &item.Region)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountActiveByTech(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT assigned_tech_id, COUNT(*) FROM tickets
        WHERE assigned_tech_id IS NOT NULL AND state IN ('DISPATCHED','IN_PROGRESS')
        GROUP BY assigned_tech_id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var techID string
		var count int
		if err := rows.Scan(&techID, &count); err != nil {
			return nil, err
		}
		counts[techID] = count
	}
	return counts, rows.Err()
}

func ticketDest(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.AccountID,
		&t.SiteID,
		&t.AssetID,
		&t.State,
		&t.Priority,
		&t.IncidentType,
		&t.Summary,
		&t.Description,
		&t.NTECents,
		&t.ScheduledStart,
		&t.ScheduledEnd,
		&t.AssignedProviderID,
		&t.AssignedTechID,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(ticketDest(&ticket)...); err != nil {
		return nil, mapError(err)
	}
	return &ticket, nil
}
