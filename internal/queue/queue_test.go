package queue

import (
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

var queueNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func entry(id string, p domain.TicketPriority, start time.Time, region string, updated time.Time) Entry {
	priority := p
	s := start
	return Entry{
		Ticket: domain.Ticket{
			ID:             id,
			State:          domain.TicketStateScheduled,
			Priority:       &priority,
			ScheduledStart: &s,
			CreatedAt:      start.Add(-time.Hour),
			UpdatedAt:      updated,
		},
		Region: region,
	}
}

// sixTickets covers each classification plus ties on priority and region.
func sixTickets() []Entry {
	return []Entry{
		entry("t-healthy-emergency", domain.TicketPriorityEmergency, queueNow.Add(200*time.Minute), "CA", queueNow.Add(-5*time.Minute)),
		entry("t-warning-routine", domain.TicketPriorityRoutine, queueNow.Add(-1395*time.Minute), "CA", queueNow.Add(-4*time.Minute)),
		entry("t-warning-urgent", domain.TicketPriorityUrgent, queueNow.Add(-195*time.Minute), "CA", queueNow.Add(-3*time.Minute)),
		entry("t-breach-routine", domain.TicketPriorityRoutine, queueNow.Add(-1500*time.Minute), "CA", queueNow.Add(-6*time.Minute)),
		entry("t-tie-old", domain.TicketPriorityUrgent, queueNow.Add(-100*time.Minute), "NV", queueNow.Add(-10*time.Minute)),
		entry("t-tie-new", domain.TicketPriorityUrgent, queueNow.Add(-100*time.Minute), "NV", queueNow.Add(-1*time.Minute)),
	}
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TicketID
	}
	return out
}

func TestBuildOrdersBySeverityThenTieBreakers(t *testing.T) {
	rows := Build(queueNow, sixTickets(), DefaultConfig())
	require.Len(t, rows, 6)

	assert.Equal(t, []string{
		"t-breach-routine",
		"t-warning-urgent",
		"t-warning-routine",
		"t-tie-new",
		"t-tie-old",
		"t-healthy-emergency",
	}, ids(rows))

	byID := map[string]Row{}
	for _, r := range rows {
		byID[r.TicketID] = r
	}
	assert.Equal(t, SLABreach, byID["t-breach-routine"].SLAStatus)
	assert.Equal(t, -60, byID["t-breach-routine"].SLATimerRemainingMinutes)
	assert.Equal(t, SLAWarning, byID["t-warning-urgent"].SLAStatus)
	assert.Equal(t, 45, byID["t-warning-urgent"].SLATimerRemainingMinutes)
	assert.Equal(t, 45, byID["t-warning-routine"].SLATimerRemainingMinutes)
	assert.Equal(t, SLAHealthy, byID["t-healthy-emergency"].SLAStatus)
	assert.Equal(t, 260, byID["t-healthy-emergency"].SLATimerRemainingMinutes)
}

func TestBuildFallsBackToCreatedAt(t *testing.T) {
	p := domain.TicketPriorityEmergency
	e := Entry{Ticket: domain.Ticket{ID: "t-1", Priority: &p, CreatedAt: queueNow.Add(-30 * time.Minute), UpdatedAt: queueNow}}
	rows := Build(queueNow, []Entry{e}, DefaultConfig())
	require.Len(t, rows, 1)
	assert.Equal(t, 30, rows[0].SLATimerRemainingMinutes)
	assert.Equal(t, SLAWarning, rows[0].SLAStatus)
}

func TestRegionWeight(t *testing.T) {
	assert.Equal(t, 500, RegionWeight(""))
	assert.Equal(t, RegionWeight("ca"), RegionWeight("CA"))
	// C=67, A=65: (67*31+65) % 100000 = 2142; 10 + 2142 % 981 = 190
	assert.Equal(t, 190, RegionWeight("CA"))
	for _, region := range []string{"CA", "NV", "TX-NORTH", "ZZZZZZZZZZZZ", "a"} {
		w := RegionWeight(region)
		assert.GreaterOrEqual(t, w, 10)
		assert.LessOrEqual(t, w, 990)
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityRank(domain.TicketPriorityEmergency), PriorityRank(domain.TicketPriorityUrgent))
	assert.Less(t, PriorityRank(domain.TicketPriorityUrgent), PriorityRank(domain.TicketPriorityRoutine))
	assert.Less(t, PriorityRank(domain.TicketPriorityRoutine), PriorityRank(""))
}

func TestBuildIsOrderIndependent(t *testing.T) {
	baseline := ids(Build(queueNow, sixTickets(), DefaultConfig()))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("shuffled input yields the same queue", prop.ForAll(
		func(seed int64) bool {
			entries := sixTickets()
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
			got := ids(Build(queueNow, entries, DefaultConfig()))
			for i := range got {
				if got[i] != baseline[i] {
					return false
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
