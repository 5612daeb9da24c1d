package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const autonomyColumns = `id, scope_type, scope_id, action, previous_is_paused, next_is_paused, reason, actor_id,
        actor_role, request_id, correlation_id, created_at`

type autonomyRepository struct {
	db DBTX
}

// NewAutonomyRepository returns repository.
func NewAutonomyRepository(db DBTX) AutonomyRepository {
	return &autonomyRepository{db: db}
}

func (r *autonomyRepository) LockScope(ctx context.Context, scope domain.AutonomyScopeRef) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "autonomy|"+scope.String())
	return err
}

func (r *autonomyRepository) Append(ctx context.Context, entry *domain.AutonomyHistory) error {
	const query = `
        INSERT INTO autonomy_control_history (id, scope_type, scope_id, action, previous_is_paused, next_is_paused,
            reason, actor_id, actor_role, request_id, correlation_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ScopeType,
		entry.ScopeID,
		entry.Action,
		entry.PreviousIsPaused,
		entry.NextIsPaused,
		entry.Reason,
		entry.ActorID,
		entry.ActorRole,
		entry.RequestID,
		entry.CorrelationID,
		entry.CreatedAt,
	)
	return mapError(err)
}

func (r *autonomyRepository) Latest(ctx context.Context, scope domain.AutonomyScopeRef) (*domain.AutonomyHistory, error) {
	query := `SELECT ` + autonomyColumns + `
        FROM autonomy_control_history WHERE scope_type=$1 AND scope_id=$2 ORDER BY seq DESC LIMIT 1`
	entry, err := scanAutonomy(r.db.QueryRow(ctx, query, scope.Type, scope.ID))
	if err != nil {
		return nil, mapError(err)
	}
	return entry, nil
}

func (r *autonomyRepository) ListByScopes(ctx context.Context, scopes []domain.AutonomyScopeRef) ([]domain.AutonomyHistory, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(scopes)*2)
	clauses := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		args = append(args, scope.Type, scope.ID)
		clauses = append(clauses, fmt.Sprintf("(scope_type=$%d AND scope_id=$%d)", len(args)-1, len(args)))
	}
	query := `SELECT ` + autonomyColumns + `
        FROM autonomy_control_history WHERE ` + strings.Join(clauses, " OR ") + ` ORDER BY seq DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutonomyHistory
	for rows.Next() {
		entry, err := scanAutonomy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func scanAutonomy(row pgx.Row) (*domain.AutonomyHistory, error) {
	var entry domain.AutonomyHistory
	if err := row.Scan(
		&entry.ID,
		&entry.ScopeType,
		&entry.ScopeID,
		&entry.Action,
		&entry.PreviousIsPaused,
		&entry.NextIsPaused,
		&entry.Reason,
		&entry.ActorID,
		&entry.ActorRole,
		&entry.RequestID,
		&entry.CorrelationID,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
