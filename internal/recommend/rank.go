// Package recommend scores technicians for a ticket.
package recommend

import (
	"sort"
	"strings"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const (
	DefaultLimit = 5
	MaxLimit     = 25

	capabilityPoints = 50
	zonePoints       = 30
	loadCeiling      = 10
	distanceCeiling  = 10
)

// Distance buckets, coarse by region.
const (
	BucketHomeRegion    = 0
	BucketServiceRegion = 1
	BucketOutOfRegion   = 2
)

// Input describes one recommendation request.
type Input struct {
	ServiceType string
	SiteRegion  string
	Technicians []domain.Technician
	ActiveLoad  map[string]int
	Limit       int
}

// Rank returns candidates ordered by score desc then tech id asc.
func Rank(in Input) []domain.RecommendationCandidate {
	limit := ClampLimit(in.Limit)
	candidates := make([]domain.RecommendationCandidate, 0, len(in.Technicians))
	for _, tech := range in.Technicians {
		if !tech.Active {
			continue
		}
		matches := domain.CandidateMatches{
			Capability:     tech.HasCapability(in.ServiceType),
			ActiveLoad:     in.ActiveLoad[tech.ID],
			DistanceBucket: DistanceBucket(tech, in.SiteRegion),
		}
		matches.Zone = matches.DistanceBucket != BucketOutOfRegion
		candidates = append(candidates, domain.RecommendationCandidate{
			TechID:   tech.ID,
			TechName: tech.Name,
			Score:    Score(matches),
			Matches:  matches,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TechID < candidates[j].TechID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Score combines the sub-scores into one integer.
func Score(m domain.CandidateMatches) int {
	score := 0
	if m.Capability {
		score += capabilityPoints
	}
	if m.Zone {
		score += zonePoints
	}
	score += max(0, loadCeiling-2*m.ActiveLoad)
	score += max(0, distanceCeiling-5*m.DistanceBucket)
	return score
}

// DistanceBucket buckets a technician relative to the site region.
func DistanceBucket(tech domain.Technician, region string) int {
	region = strings.TrimSpace(region)
	switch {
	case region != "" && strings.EqualFold(tech.HomeRegion, region):
		return BucketHomeRegion
	case region != "" && tech.ServesRegion(region):
		return BucketServiceRegion
	default:
		return BucketOutOfRegion
	}
}

// ClampLimit applies the default and upper bound to a requested limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
