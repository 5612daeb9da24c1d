package observability

import (
	"sort"
	"strings"
	"sync"
)

type requestKey struct {
	Method   string
	Endpoint string
	Status   int
}

type transitionKey struct {
	From string
	To   string
}

// Metrics provides in-memory counters for the command surface.
type Metrics struct {
	mu                      sync.Mutex
	requestCount            map[requestKey]int64
	errorCount              map[string]int64
	transitionCount         map[transitionKey]int64
	idempotencyReplays      int64
	idempotencyConflicts    int64
	dispatchWithSnapshot    int64
	dispatchWithoutSnapshot int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[requestKey]int64),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[transitionKey]int64),
	}
}

// RecordRequest counts a finished request by route template.
func (m *Metrics) RecordRequest(method, endpoint string, status int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[requestKey{Method: method, Endpoint: endpoint, Status: status}]++
}

// RecordError counts an error response by code.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = "UNKNOWN_ERROR"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[code]++
}

// RecordTransition counts a committed state change. from is empty for creation.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[transitionKey{From: from, To: to}]++
}

func (m *Metrics) RecordIdempotencyReplay() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotencyReplays++
}

func (m *Metrics) RecordIdempotencyConflict() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotencyConflicts++
}

// RecordDispatch counts dispatches by whether they cited a recommendation snapshot.
func (m *Metrics) RecordDispatch(withSnapshot bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if withSnapshot {
		m.dispatchWithSnapshot++
	} else {
		m.dispatchWithoutSnapshot++
	}
}

// RequestCount is one row of the request counter.
type RequestCount struct {
	Method   string `json:"method"`
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status"`
	Count    int64  `json:"count"`
}

// ErrorCount is one row of the error counter.
type ErrorCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// TransitionCount is one row of the transition counter.
type TransitionCount struct {
	FromState *string `json:"from_state"`
	ToState   string  `json:"to_state"`
	Count     int64   `json:"count"`
}

// DispatchCounts splits dispatches by recommendation lineage.
type DispatchCounts struct {
	WithSnapshot    int64 `json:"with_snapshot"`
	WithoutSnapshot int64 `json:"without_snapshot"`
}

// Snapshot is the deterministic view served by GET /metrics.
type Snapshot struct {
	Requests                 []RequestCount    `json:"requests_total"`
	Errors                   []ErrorCount      `json:"errors_total"`
	Transitions              []TransitionCount `json:"transitions_total"`
	IdempotencyReplayTotal   int64             `json:"idempotency_replay_total"`
	IdempotencyConflictTotal int64             `json:"idempotency_conflict_total"`
	Dispatch                 DispatchCounts    `json:"dispatch_total"`
}

// Snapshot copies the counters, sorted so equal counters always render identically.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:    []RequestCount{},
		Errors:      []ErrorCount{},
		Transitions: []TransitionCount{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range m.requestCount {
		snap.Requests = append(snap.Requests, RequestCount{Method: k.Method, Endpoint: k.Endpoint, Status: k.Status, Count: v})
	}
	sort.Slice(snap.Requests, func(i, j int) bool {
		a, b := snap.Requests[i], snap.Requests[j]
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		return a.Status < b.Status
	})

	for code, v := range m.errorCount {
		snap.Errors = append(snap.Errors, ErrorCount{Code: code, Count: v})
	}
	sort.Slice(snap.Errors, func(i, j int) bool { return snap.Errors[i].Code < snap.Errors[j].Code })

	for k, v := range m.transitionCount {
		row := TransitionCount{ToState: k.To, Count: v}
		if k.From != "" {
			from := k.From
			row.FromState = &from
		}
		snap.Transitions = append(snap.Transitions, row)
	}
	sort.Slice(snap.Transitions, func(i, j int) bool {
		a, b := snap.Transitions[i], snap.Transitions[j]
		af, bf := deref(a.FromState), deref(b.FromState)
		if af != bf {
			return af < bf
		}
		return a.ToState < b.ToState
	})

	snap.IdempotencyReplayTotal = m.idempotencyReplays
	snap.IdempotencyConflictTotal = m.idempotencyConflicts
	snap.Dispatch = DispatchCounts{WithSnapshot: m.dispatchWithSnapshot, WithoutSnapshot: m.dispatchWithoutSnapshot}
	return snap
}

// TotalRequests sums every request row.
func (s Snapshot) TotalRequests() int64 {
	var total int64
	for _, r := range s.Requests {
		total += r.Count
	}
	return total
}

// TotalErrors sums every error row.
func (s Snapshot) TotalErrors() int64 {
	var total int64
	for _, e := range s.Errors {
		total += e.Count
	}
	return total
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
