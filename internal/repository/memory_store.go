package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// MemoryStore is a process-local Store. It honours the same contract as PostgresStore:
// ticket, idempotency and autonomy locks are held until the transaction ends, writes become
// visible atomically on commit and idempotency keys are unique.
type MemoryStore struct {
	mu    sync.RWMutex
	locks *keyedLocks

	accounts        map[string]domain.Account
	sites           map[string]domain.Site
	technicians     map[string]domain.Technician
	tickets         map[string]*domain.Ticket
	events          []domain.AuditEvent
	transitions     []domain.StateTransition
	evidence        []domain.EvidenceItem
	idempotency     map[string]domain.IdempotencyRecord
	holds           map[string]domain.ScheduleHold
	recommendations []domain.RecommendationSnapshot
	autonomy        []domain.AutonomyHistory
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:       newKeyedLocks(),
		accounts:    map[string]domain.Account{},
		sites:       map[string]domain.Site{},
		technicians: map[string]domain.Technician{},
		tickets:     map[string]*domain.Ticket{},
		idempotency: map[string]domain.IdempotencyRecord{},
		holds:       map[string]domain.ScheduleHold{},
	}
}

// ApplySeed loads reference data, replacing rows with the same id.
func (s *MemoryStore) ApplySeed(seed *Seed) {
	if seed == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range seed.Accounts {
		s.accounts[a.ID] = a
	}
	for _, site := range seed.Sites {
		s.sites[site.ID] = site
	}
	for _, t := range seed.Technicians {
		s.technicians[t.ID] = t
	}
}

// Repositories returns repositories whose writes commit one at a time.
func (s *MemoryStore) Repositories() Repositories {
	tx := newMemTx(s)
	tx.autocommit = true
	return bindMemory(tx)
}

// WithTx runs fn against a buffered transaction and commits when fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	tx := newMemTx(s)
	defer tx.releaseLocks()

	if err := fn(ctx, bindMemory(tx)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func bindMemory(tx *memTx) Repositories {
	return Repositories{
		Tickets:         memTickets{tx},
		Audit:           memAudit{tx},
		Evidence:        memEvidence{tx},
		Idempotency:     memIdempotency{tx},
		Holds:           memHolds{tx},
		Recommendations: memRecommendations{tx},
		Reference:       memReference{tx},
		Autonomy:        memAutonomy{tx},
	}
}

// keyedLocks hands out one single-slot channel per key so acquisition can observe ctx.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: map[string]chan struct{}{}}
}

func (l *keyedLocks) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyedLocks) release(key string) {
	l.mu.Lock()
	slot := l.slots[key]
	l.mu.Unlock()
	<-slot
}

func idempotencyKey(actorID, endpoint, requestID string) string {
	return actorID + "|" + endpoint + "|" + requestID
}

// memTx buffers writes and overlays them on reads until commit.
type memTx struct {
	store      *MemoryStore
	autocommit bool
	held       []string

	tickets         map[string]*domain.Ticket
	createdTickets  map[string]bool
	events          []domain.AuditEvent
	transitions     []domain.StateTransition
	evidence        []domain.EvidenceItem
	idempotency     map[string]domain.IdempotencyRecord
	holds           map[string]domain.ScheduleHold
	recommendations []domain.RecommendationSnapshot
	autonomy        []domain.AutonomyHistory
}

func newMemTx(s *MemoryStore) *memTx {
	return &memTx{
		store:          s,
		tickets:        map[string]*domain.Ticket{},
		createdTickets: map[string]bool{},
		idempotency:    map[string]domain.IdempotencyRecord{},
		holds:          map[string]domain.ScheduleHold{},
	}
}

func (tx *memTx) lock(ctx context.Context, key string) error {
	if tx.autocommit {
		return nil
	}
	for _, held := range tx.held {
		if held == key {
			return nil
		}
	}
	if err := tx.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	tx.held = append(tx.held, key)
	return nil
}

func (tx *memTx) releaseLocks() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.store.locks.release(tx.held[i])
	}
	tx.held = nil
}

// write stages a mutation, flushing it at once when autocommitting.
func (tx *memTx) write(stage func(*memTx) error) error {
	if !tx.autocommit {
		return stage(tx)
	}
	staged := newMemTx(tx.store)
	if err := stage(staged); err != nil {
		return err
	}
	return staged.commit()
}

func (tx *memTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range tx.idempotency {
		if _, exists := s.idempotency[key]; exists {
			return ErrDuplicateKey
		}
	}
	for id := range tx.createdTickets {
		if _, exists := s.tickets[id]; exists {
			return ErrDuplicateKey
		}
	}

	for id, ticket := range tx.tickets {
		s.tickets[id] = ticket.Clone()
	}
	s.events = append(s.events, tx.events...)
	s.transitions = append(s.transitions, tx.transitions...)
	s.evidence = append(s.evidence, tx.evidence...)
	for key, rec := range tx.idempotency {
		s.idempotency[key] = rec
	}
	for id, hold := range tx.holds {
		s.holds[id] = hold
	}
	s.recommendations = append(s.recommendations, tx.recommendations...)
	s.autonomy = append(s.autonomy, tx.autonomy...)
	return nil
}

func (tx *memTx) ticket(id string) (*domain.Ticket, bool) {
	if t, ok := tx.tickets[id]; ok {
		return t, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	t, ok := tx.store.tickets[id]
	return t, ok
}

type memTickets struct{ tx *memTx }

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := r.tx.ticket(ticket.ID); exists {
		return ErrDuplicateKey
	}
	return r.tx.write(func(tx *memTx) error {
		tx.tickets[ticket.ID] = ticket.Clone()
		tx.createdTickets[ticket.ID] = true
		return nil
	})
}

func (r memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := r.tx.ticket(ticket.ID); !exists {
		return ErrNotFound
	}
	return r.tx.write(func(tx *memTx) error {
		tx.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := r.tx.ticket(id)
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (r memTickets) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := r.tx.lock(ctx, "ticket|"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r memTickets) ListWithRegion(_ context.Context, filter TicketFilter) ([]TicketWithRegion, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []TicketWithRegion
	for _, t := range s.tickets {
		if len(filter.States) > 0 && !containsState(filter.States, t.State) {
			continue
		}
		result = append(result, TicketWithRegion{Ticket: *t.Clone(), Region: s.sites[t.SiteID].Region})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Ticket, result[j].Ticket
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r memTickets) CountActiveByTech(context.Context) (map[string]int, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, t := range s.tickets {
		if t.AssignedTechID == nil {
			continue
		}
		if t.State == domain.TicketStateDispatched || t.State == domain.TicketStateInProgress {
			counts[*t.AssignedTechID]++
		}
	}
	return counts, nil
}

func containsState(states []domain.TicketState, s domain.TicketState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

type memAudit struct{ tx *memTx }

func (r memAudit) AppendEvent(_ context.Context, event *domain.AuditEvent) error {
	return r.tx.write(func(tx *memTx) error {
		tx.events = append(tx.events, *event)
		return nil
	})
}

func (r memAudit) AppendTransition(_ context.Context, transition *domain.StateTransition) error {
	return r.tx.write(func(tx *memTx) error {
		tx.transitions = append(tx.transitions, *transition)
		return nil
	})
}

func (r memAudit) ListEventsByTicket(_ context.Context, ticketID string) ([]domain.AuditEvent, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.AuditEvent
	for _, e := range append(append([]domain.AuditEvent{}, s.events...), r.tx.events...) {
		if e.TicketID == ticketID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r memAudit) ListTransitionsByTicket(_ context.Context, ticketID string) ([]domain.StateTransition, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.StateTransition
	for _, tr := range append(append([]domain.StateTransition{}, s.transitions...), r.tx.transitions...) {
		if tr.TicketID == ticketID {
			result = append(result, tr)
		}
	}
	return result, nil
}

type memEvidence struct{ tx *memTx }

func (r memEvidence) Create(_ context.Context, item *domain.EvidenceItem) error {
	stored := *item
	stored.Metadata = copyMetadata(item.Metadata)
	return r.tx.write(func(tx *memTx) error {
		tx.evidence = append(tx.evidence, stored)
		return nil
	})
}

func (r memEvidence) ListByTicket(_ context.Context, ticketID string) ([]domain.EvidenceItem, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.EvidenceItem
	for _, item := range append(append([]domain.EvidenceItem{}, s.evidence...), r.tx.evidence...) {
		if item.TicketID == ticketID {
			item.Metadata = copyMetadata(item.Metadata)
			result = append(result, item)
		}
	}
	return result, nil
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memIdempotency struct{ tx *memTx }

func (r memIdempotency) Lock(ctx context.Context, actorID, endpoint, requestID string) error {
	return r.tx.lock(ctx, "idempotency|"+idempotencyKey(actorID, endpoint, requestID))
}

func (r memIdempotency) Get(_ context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error) {
	key := idempotencyKey(actorID, endpoint, requestID)
	if rec, ok := r.tx.idempotency[key]; ok {
		return &rec, nil
	}
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idempotency[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r memIdempotency) Insert(ctx context.Context, record *domain.IdempotencyRecord) error {
	if _, err := r.Get(ctx, record.ActorID, record.Endpoint, record.RequestID); err == nil {
		return ErrDuplicateKey
	}
	rec := *record
	rec.ResponseBody = append([]byte(nil), record.ResponseBody...)
	return r.tx.write(func(tx *memTx) error {
		tx.idempotency[idempotencyKey(rec.ActorID, rec.Endpoint, rec.RequestID)] = rec
		return nil
	})
}

type memHolds struct{ tx *memTx }

func (r memHolds) Create(_ context.Context, hold *domain.ScheduleHold) error {
	if _, err := r.GetByHoldID(context.Background(), hold.HoldID); err == nil {
		return ErrDuplicateKey
	}
	return r.tx.write(func(tx *memTx) error {
		tx.holds[hold.HoldID] = *hold
		return nil
	})
}

func (r memHolds) GetByHoldID(_ context.Context, holdID string) (*domain.ScheduleHold, error) {
	if hold, ok := r.tx.holds[holdID]; ok {
		return &hold, nil
	}
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	hold, ok := s.holds[holdID]
	if !ok {
		return nil, ErrNotFound
	}
	return &hold, nil
}

func (r memHolds) Resolve(ctx context.Context, hold *domain.ScheduleHold) error {
	current, err := r.GetByHoldID(ctx, hold.HoldID)
	if err != nil {
		return err
	}
	if current.Status != domain.HoldStatusActive {
		return ErrNotFound
	}
	resolved := *current
	resolved.Status = hold.Status
	resolved.ResolutionReason = hold.ResolutionReason
	resolved.ResolvedAt = hold.ResolvedAt
	return r.tx.write(func(tx *memTx) error {
		tx.holds[hold.HoldID] = resolved
		return nil
	})
}

type memRecommendations struct{ tx *memTx }

func (r memRecommendations) Create(_ context.Context, snapshot *domain.RecommendationSnapshot) error {
	stored := *snapshot
	stored.Candidates = append([]domain.RecommendationCandidate(nil), snapshot.Candidates...)
	return r.tx.write(func(tx *memTx) error {
		tx.recommendations = append(tx.recommendations, stored)
		return nil
	})
}

func (r memRecommendations) all() []domain.RecommendationSnapshot {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(append([]domain.RecommendationSnapshot{}, s.recommendations...), r.tx.recommendations...)
}

func (r memRecommendations) GetBySnapshotID(_ context.Context, snapshotID string) (*domain.RecommendationSnapshot, error) {
	for _, snap := range r.all() {
		if snap.SnapshotID == snapshotID {
			return &snap, nil
		}
	}
	return nil, ErrNotFound
}

func (r memRecommendations) LatestForTicket(_ context.Context, ticketID string) (*domain.RecommendationSnapshot, error) {
	all := r.all()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].TicketID == ticketID {
			snap := all[i]
			return &snap, nil
		}
	}
	return nil, ErrNotFound
}

type memReference struct{ tx *memTx }

func (r memReference) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memReference) GetSite(_ context.Context, id string) (*domain.Site, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &site, nil
}

func (r memReference) GetTechnician(_ context.Context, id string) (*domain.Technician, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.technicians[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r memReference) ListActiveTechnicians(context.Context) ([]domain.Technician, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Technician
	for _, t := range s.technicians {
		if t.Active {
			result = append(result, t)
		}
	}
	return result, nil
}

type memAutonomy struct{ tx *memTx }

func (r memAutonomy) LockScope(ctx context.Context, scope domain.AutonomyScopeRef) error {
	return r.tx.lock(ctx, "autonomy|"+scope.String())
}

func (r memAutonomy) Append(_ context.Context, entry *domain.AutonomyHistory) error {
	return r.tx.write(func(tx *memTx) error {
		tx.autonomy = append(tx.autonomy, *entry)
		return nil
	})
}

// newestFirst returns committed and staged history in reverse append order.
func (r memAutonomy) newestFirst() []domain.AutonomyHistory {
	s := r.tx.store
	s.mu.RLock()
	all := append(append([]domain.AutonomyHistory{}, s.autonomy...), r.tx.autonomy...)
	s.mu.RUnlock()

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

func (r memAutonomy) Latest(_ context.Context, scope domain.AutonomyScopeRef) (*domain.AutonomyHistory, error) {
	for _, entry := range r.newestFirst() {
		if entry.ScopeType == scope.Type && entry.ScopeID == scope.ID {
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

func (r memAutonomy) ListByScopes(_ context.Context, scopes []domain.AutonomyScopeRef) ([]domain.AutonomyHistory, error) {
	var result []domain.AutonomyHistory
	for _, entry := range r.newestFirst() {
		for _, scope := range scopes {
			if entry.ScopeType == scope.Type && entry.ScopeID == scope.ID {
				result = append(result, entry)
				break
			}
		}
	}
	return result, nil
}
