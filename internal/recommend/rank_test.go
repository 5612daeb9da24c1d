package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

func technicians() []domain.Technician {
	return []domain.Technician{
		{ID: "tech-c", Name: "Casey", Capabilities: []string{"DOOR_WONT_LATCH"}, HomeRegion: "CA", Active: true},
		{ID: "tech-a", Name: "Alex", Capabilities: []string{"door_wont_latch"}, HomeRegion: "CA", Active: true},
		{ID: "tech-b", Name: "Blair", Capabilities: []string{"DOOR_WONT_LATCH"}, HomeRegion: "NV", ServiceRegions: []string{"CA"}, Active: true},
		{ID: "tech-d", Name: "Drew", Capabilities: []string{"LOCK_HARDWARE_FAILURE"}, HomeRegion: "CA", Active: true},
		{ID: "tech-e", Name: "Eden", Capabilities: []string{"DOOR_WONT_LATCH"}, HomeRegion: "TX", Active: true},
		{ID: "tech-z", Name: "Inactive", Capabilities: []string{"DOOR_WONT_LATCH"}, HomeRegion: "CA", Active: false},
	}
}

func TestRankDeterministicOrdering(t *testing.T) {
	in := Input{
		ServiceType: "DOOR_WONT_LATCH",
		SiteRegion:  "CA",
		Technicians: technicians(),
		ActiveLoad:  map[string]int{"tech-c": 1},
		Limit:       10,
	}

	got := Rank(in)
	require.Len(t, got, 5)

	order := make([]string, len(got))
	for i, c := range got {
		order[i] = c.TechID
	}
	// tech-a 100, tech-c 98, tech-b 95, tech-e 60, tech-d 50
	assert.Equal(t, []string{"tech-a", "tech-c", "tech-b", "tech-e", "tech-d"}, order)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}

	assert.Equal(t, domain.CandidateMatches{Capability: true, Zone: true, ActiveLoad: 0, DistanceBucket: 0}, got[0].Matches)
	assert.Equal(t, BucketServiceRegion, got[2].Matches.DistanceBucket)
	assert.False(t, got[3].Matches.Zone)
	assert.False(t, got[4].Matches.Capability)

	assert.Equal(t, got, Rank(in))
}

func TestRankTieBreaksOnTechID(t *testing.T) {
	techs := []domain.Technician{
		{ID: "tech-2", Capabilities: []string{"X"}, HomeRegion: "CA", Active: true},
		{ID: "tech-1", Capabilities: []string{"X"}, HomeRegion: "CA", Active: true},
	}
	got := Rank(Input{ServiceType: "X", SiteRegion: "CA", Technicians: techs})
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Score, got[1].Score)
	assert.Equal(t, "tech-1", got[0].TechID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 2, ClampLimit(2))
	assert.Equal(t, MaxLimit, ClampLimit(1000))

	got := Rank(Input{ServiceType: "DOOR_WONT_LATCH", SiteRegion: "CA", Technicians: technicians(), Limit: 2})
	assert.Len(t, got, 2)
}
