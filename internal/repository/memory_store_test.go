package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

func newTicket(id string) *domain.Ticket {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Ticket{
		ID:        id,
		AccountID: "acct-northwind",
		SiteID:    "site-nw-hq",
		State:     domain.TicketStateNew,
		Summary:   "door sticks",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreRollbackLeavesNoTrace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		require.NoError(t, repos.Tickets.Create(ctx, newTicket("t-1")))
		require.NoError(t, repos.Audit.AppendEvent(ctx, &domain.AuditEvent{ID: "e-1", TicketID: "t-1"}))
		require.NoError(t, repos.Idempotency.Insert(ctx, &domain.IdempotencyRecord{ActorID: "a", Endpoint: "/tickets", RequestID: "r"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	repos := store.Repositories()
	_, err = repos.Tickets.GetByID(ctx, "t-1")
	assert.ErrorIs(t, err, ErrNotFound)
	events, err := repos.Audit.ListEventsByTicket(ctx, "t-1")
	require.NoError(t, err)
	assert.Empty(t, events)
	_, err = repos.Idempotency.Get(ctx, "a", "/tickets", "r")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCommitIsVisible(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := repos.Tickets.Create(ctx, newTicket("t-1")); err != nil {
			return err
		}
		// reads inside the transaction see staged writes
		got, err := repos.Tickets.GetForUpdate(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStateNew, got.State)
		return repos.Audit.AppendEvent(ctx, &domain.AuditEvent{ID: "e-1", TicketID: "t-1"})
	})
	require.NoError(t, err)

	events, err := store.Repositories().Audit.ListEventsByTicket(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStoreListOrdersBeforeLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	repos := store.Repositories()

	for i, id := range []string{"t-c", "t-a", "t-d", "t-b"} {
		ticket := newTicket(id)
		if i < 2 {
			ticket.CreatedAt = ticket.CreatedAt.Add(time.Hour)
		}
		require.NoError(t, repos.Tickets.Create(ctx, ticket))
	}

	listed, err := repos.Tickets.ListWithRegion(ctx, TicketFilter{Limit: 3})
	require.NoError(t, err)
	ids := make([]string, 0, len(listed))
	for _, l := range listed {
		ids = append(ids, l.Ticket.ID)
	}
	assert.Equal(t, []string{"t-b", "t-d", "t-a"}, ids)
}

func TestMemoryStoreIdempotencyKeyIsUnique(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := &domain.IdempotencyRecord{ActorID: "a", Endpoint: "/tickets", RequestID: "r", ResponseBody: []byte(`{}`)}

	require.NoError(t, store.Repositories().Idempotency.Insert(ctx, rec))
	err := store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		return repos.Idempotency.Insert(ctx, rec)
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryStoreConcurrentCommitDetectsDuplicateKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := &domain.IdempotencyRecord{ActorID: "a", Endpoint: "/tickets", RequestID: "r"}

	inside := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
			if err := repos.Idempotency.Insert(ctx, rec); err != nil {
				return err
			}
			close(inside)
			<-proceed
			return nil
		})
	}()

	<-inside
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		return repos.Idempotency.Insert(ctx, rec)
	}))
	close(proceed)
	assert.ErrorIs(t, <-done, ErrDuplicateKey)
}

func TestMemoryStoreTicketLockRespectsContext(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Repositories().Tickets.Create(ctx, newTicket("t-1")))

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
			if _, err := repos.Tickets.GetForUpdate(ctx, "t-1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := store.WithTx(timeoutCtx, func(ctx context.Context, repos Repositories) error {
		ticket, err := repos.Tickets.GetForUpdate(ctx, "t-1")
		if err != nil {
			return err
		}
		ticket.State = domain.TicketStateTriaged
		return repos.Tickets.Update(ctx, ticket)
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)

	got, err := store.Repositories().Tickets.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateNew, got.State)

	// the lock is free again once the holder commits
	require.Eventually(t, func() bool {
		return store.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
			_, err := repos.Tickets.GetForUpdate(ctx, "t-1")
			return err
		}) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryStoreHoldResolvesOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	repos := store.Repositories()
	hold := &domain.ScheduleHold{HoldID: "h-1", SnapshotID: "s-1", TicketID: "t-1", Status: domain.HoldStatusActive}
	require.NoError(t, repos.Holds.Create(ctx, hold))

	resolved := *hold
	resolved.Status = domain.HoldStatusReleased
	require.NoError(t, repos.Holds.Resolve(ctx, &resolved))
	assert.ErrorIs(t, repos.Holds.Resolve(ctx, &resolved), ErrNotFound)

	got, err := repos.Holds.GetByHoldID(ctx, "h-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusReleased, got.Status)
}

func TestMemoryStoreAutonomyHistoryNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	repos := store.Repositories()
	global := domain.AutonomyScopeRef{Type: domain.AutonomyScopeGlobal, ID: domain.GlobalScopeID}
	ticket := domain.AutonomyScopeRef{Type: domain.AutonomyScopeTicket, ID: "t-1"}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repos.Autonomy.Append(ctx, &domain.AutonomyHistory{ID: "1", ScopeType: global.Type, ScopeID: global.ID, NextIsPaused: true, CreatedAt: at}))
	require.NoError(t, repos.Autonomy.Append(ctx, &domain.AutonomyHistory{ID: "2", ScopeType: ticket.Type, ScopeID: ticket.ID, NextIsPaused: true, CreatedAt: at}))
	require.NoError(t, repos.Autonomy.Append(ctx, &domain.AutonomyHistory{ID: "3", ScopeType: global.Type, ScopeID: global.ID, NextIsPaused: false, CreatedAt: at}))

	latest, err := repos.Autonomy.Latest(ctx, global)
	require.NoError(t, err)
	assert.Equal(t, "3", latest.ID)

	history, err := repos.Autonomy.ListByScopes(ctx, []domain.AutonomyScopeRef{global, ticket})
	require.NoError(t, err)
	ids := make([]string, 0, len(history))
	for _, h := range history {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"3", "2", "1"}, ids)

	_, err = repos.Autonomy.Latest(ctx, domain.AutonomyScopeRef{Type: domain.AutonomyScopeIncident, ID: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultSeedLoads(t *testing.T) {
	store := NewMemoryStore()
	store.ApplySeed(DefaultSeed())
	ctx := context.Background()

	site, err := store.Repositories().Reference.GetSite(ctx, "site-nw-hq")
	require.NoError(t, err)
	assert.Equal(t, "CA", site.Region)

	techs, err := store.Repositories().Reference.ListActiveTechnicians(ctx)
	require.NoError(t, err)
	assert.Len(t, techs, 3)
}

func TestParseSeedRejectsDanglingSite(t *testing.T) {
	_, err := ParseSeed([]byte(`
accounts: [{id: a1, name: A}]
sites: [{id: s1, account_id: missing, name: S, region: CA}]
`))
	assert.Error(t, err)
}
