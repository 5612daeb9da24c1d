package repository

import (
	"context"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

type scheduleHoldRepository struct {
	db DBTX
}

// NewScheduleHoldRepository returns repository.
func NewScheduleHoldRepository(db DBTX) ScheduleHoldRepository {
	return &scheduleHoldRepository{db: db}
}

func (r *scheduleHoldRepository) Create(ctx context.Context, hold *domain.ScheduleHold) error {
	var prevStart, prevEnd *time.Time
	if hold.PreviousWindow != nil {
		prevStart, prevEnd = &hold.PreviousWindow.Start, &hold.PreviousWindow.End
	}
	const query = `
        INSERT INTO schedule_holds (hold_id, snapshot_id, ticket_id, previous_state, previous_start, previous_end,
            hold_reason, confirmation_window_start, confirmation_window_end, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.Exec(ctx, query,
		hold.HoldID,
		hold.SnapshotID,
		hold.TicketID,
		hold.PreviousState,
		prevStart,
		prevEnd,
		hold.HoldReason,
		hold.ConfirmationWindow.Start,
		hold.ConfirmationWindow.End,
		hold.Status,
		hold.CreatedAt,
	)
	return mapError(err)
}

func (r *scheduleHoldRepository) GetByHoldID(ctx context.Context, holdID string) (*domain.ScheduleHold, error) {
	const query = `
        SELECT hold_id, snapshot_id, ticket_id, previous_state, previous_start, previous_end, hold_reason,
            confirmation_window_start, confirmation_window_end, status, resolution_reason, resolved_at, created_at
        FROM schedule_holds WHERE hold_id=$1`
	var hold domain.ScheduleHold
	var prevStart, prevEnd *time.Time
	if err := r.db.QueryRow(ctx, query, holdID).Scan(
		&hold.HoldID,
		&hold.SnapshotID,
		&hold.TicketID,
		&hold.PreviousState,
		&prevStart,
		&prevEnd,
		&hold.HoldReason,
		&hold.ConfirmationWindow.Start,
		&hold.ConfirmationWindow.End,
		&hold.Status,
		&hold.ResolutionReason,
		&hold.ResolvedAt,
		&hold.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	if prevStart != nil && prevEnd != nil {
		hold.PreviousWindow = &domain.ScheduleWindow{Start: *prevStart, End: *prevEnd}
	}
	return &hold, nil
}

// Resolve closes an active hold. Holds that are already closed are left untouched.
func (r *scheduleHoldRepository) Resolve(ctx context.Context, hold *domain.ScheduleHold) error {
	const query = `
        UPDATE schedule_holds SET status=$1, resolution_reason=$2, resolved_at=$3
        WHERE hold_id=$4 AND status='ACTIVE'`
	cmd, err := r.db.Exec(ctx, query, hold.Status, hold.ResolutionReason, hold.ResolvedAt, hold.HoldID)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
