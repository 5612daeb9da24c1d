package domain

import "time"

// CandidateMatches holds the independent sub-scores for a technician.
type CandidateMatches struct {
	Capability     bool `json:"capability"`
	Zone           bool `json:"zone"`
	ActiveLoad     int  `json:"active_load"`
	DistanceBucket int  `json:"distance_bucket"`
}

// RecommendationCandidate is one scored technician.
type RecommendationCandidate struct {
	TechID   string           `json:"tech_id"`
	TechName string           `json:"tech_name"`
	Score    int              `json:"score"`
	Matches  CandidateMatches `json:"matches"`
}

// RecommendationSnapshot is the immutable result of a recommend command.
type RecommendationSnapshot struct {
	SnapshotID      string
	TicketID        string
	ServiceType     string
	PreferredWindow *ScheduleWindow
	Candidates      []RecommendationCandidate
	CreatedAt       time.Time
}

// Contains reports whether techID was one of the candidates.
func (s RecommendationSnapshot) Contains(techID string) bool {
	for _, c := range s.Candidates {
		if c.TechID == techID {
			return true
		}
	}
	return false
}
