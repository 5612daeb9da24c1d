package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// DBTX is satisfied by both the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketRepository persists tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and holds its exclusive lock until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithRegion(ctx context.Context, filter TicketFilter) ([]TicketWithRegion, error)
	CountActiveByTech(ctx context.Context) (map[string]int, error)
}

// TicketFilter narrows queue listings.
type TicketFilter struct {
	States []domain.TicketState
	Limit  int
}

// TicketWithRegion pairs a ticket with its site's region.
type TicketWithRegion struct {
	Ticket domain.Ticket
	Region string
}

// AuditRepository appends to and reads from the ledger.
type AuditRepository interface {
	AppendEvent(ctx context.Context, event *domain.AuditEvent) error
	AppendTransition(ctx context.Context, transition *domain.StateTransition) error
	ListEventsByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error)
	ListTransitionsByTicket(ctx context.Context, ticketID string) ([]domain.StateTransition, error)
}

// EvidenceRepository persists evidence items.
type EvidenceRepository interface {
	Create(ctx context.Context, item *domain.EvidenceItem) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EvidenceItem, error)
}

// IdempotencyRepository persists command outcomes keyed by actor, endpoint and request id.
type IdempotencyRepository interface {
	// Lock serializes callers sharing a key until the transaction ends.
	Lock(ctx context.Context, actorID, endpoint, requestID string) error
	Get(ctx context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error)
	Insert(ctx context.Context, record *domain.IdempotencyRecord) error
}

// ScheduleHoldRepository persists hold snapshots.
type ScheduleHoldRepository interface {
	Create(ctx context.Context, hold *domain.ScheduleHold) error
	GetByHoldID(ctx context.Context, holdID string) (*domain.ScheduleHold, error)
	Resolve(ctx context.Context, hold *domain.ScheduleHold) error
}

// RecommendationRepository persists assignment recommendation snapshots.
type RecommendationRepository interface {
	Create(ctx context.Context, snapshot *domain.RecommendationSnapshot) error
	GetBySnapshotID(ctx context.Context, snapshotID string) (*domain.RecommendationSnapshot, error)
	LatestForTicket(ctx context.Context, ticketID string) (*domain.RecommendationSnapshot, error)
}

// ReferenceRepository reads accounts, sites and technicians.
type ReferenceRepository interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetSite(ctx context.Context, id string) (*domain.Site, error)
	GetTechnician(ctx context.Context, id string) (*domain.Technician, error)
	ListActiveTechnicians(ctx context.Context) ([]domain.Technician, error)
}

// AutonomyRepository persists the autonomy control history.
type AutonomyRepository interface {
	// LockScope serializes writers of one scope until the transaction ends.
	LockScope(ctx context.Context, scope domain.AutonomyScopeRef) error
	Append(ctx context.Context, entry *domain.AutonomyHistory) error
	Latest(ctx context.Context, scope domain.AutonomyScopeRef) (*domain.AutonomyHistory, error)
	// ListByScopes returns history for the given scopes, newest first.
	ListByScopes(ctx context.Context, scopes []domain.AutonomyScopeRef) ([]domain.AutonomyHistory, error)
}

// Repositories bundles every repository bound to one connection or transaction.
type Repositories struct {
	Tickets         TicketRepository
	Audit           AuditRepository
	Evidence        EvidenceRepository
	Idempotency     IdempotencyRepository
	Holds           ScheduleHoldRepository
	Recommendations RecommendationRepository
	Reference       ReferenceRepository
	Autonomy        AutonomyRepository
}

// TxFunc runs inside a transaction. Returning an error rolls everything back.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store opens transactions over the repositories.
type Store interface {
	Repositories() Repositories
	WithTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}
