package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type auditRepository struct {
	db DBTX
}

// NewAuditRepository creates the ledger repository. It only ever inserts.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	const query = `
        INSERT INTO audit_events (id, ticket_id, actor_type, actor_id, actor_role, tool_name, request_id,
            correlation_id, trace_id, before_state, after_state, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.db.Exec(ctx, query,
		event.ID,
		event.TicketID,
		event.ActorType,
		event.ActorID,
		event.ActorRole,
		event.ToolName,
		event.RequestID,
		event.CorrelationID,
		event.TraceID,
		event.BeforeState,
		event.AfterState,
		payload,
		event.CreatedAt,
	)
	return mapError(err)
}

func (r *auditRepository) AppendTransition(ctx context.Context, transition *domain.StateTransition) error {
	const query = `
        INSERT INTO ticket_state_transitions (id, ticket_id, from_state, to_state, audit_event_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		transition.ID,
		transition.TicketID,
		transition.FromState,
		transition.ToState,
		transition.AuditEventID,
		transition.CreatedAt,
	)
	return mapError(err)
}

func (r *auditRepository) ListEventsByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	const query = `
        SELECT id, ticket_id, actor_type, actor_id, actor_role, tool_name, request_id, correlation_id, trace_id,
            before_state, after_state, payload, created_at
        FROM audit_events WHERE ticket_id=$1 ORDER BY seq`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var payload []byte
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.ActorType,
			&event.ActorID,
			&event.ActorRole,
			&event.ToolName,
			&event.RequestID,
			&event.CorrelationID,
			&event.TraceID,
			&event.BeforeState,
			&event.AfterState,
			&payload,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("decode audit payload %s: %w", event.ID, err)
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func (r *auditRepository) ListTransitionsByTicket(ctx context.Context, ticketID string) ([]domain.StateTransition, error) {
	const query = `
        SELECT id, ticket_id, from_state, to_state, audit_event_id, created_at
        FROM ticket_state_transitions WHERE ticket_id=$1 ORDER BY seq`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StateTransition
	for rows.Next() {
		var tr domain.StateTransition
		if err := rows.Scan(&tr.ID, &tr.TicketID, &tr.FromState, &tr.ToState, &tr.AuditEventID, &tr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tr)
	}
	return result, rows.Err()
}
