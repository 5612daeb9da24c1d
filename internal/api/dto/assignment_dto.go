package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// DispatchModeEmergencyBypass lets a triaged ticket skip scheduling.
const DispatchModeEmergencyBypass = "EMERGENCY_BYPASS"

// RecommendRequest payload.
type RecommendRequest struct {
	ServiceType         string         `json:"service_type"`
	RecommendationLimit int            `json:"recommendation_limit"`
	PreferredWindow     *WindowRequest `json:"preferred_window"`
}

// Validate checks the limit and optional window.
func (r RecommendRequest) Validate() error {
	if r.RecommendationLimit < 0 {
		return invalidField("recommendation_limit", "must be a positive number")
	}
	if r.PreferredWindow != nil {
		return r.PreferredWindow.Validate("preferred_window")
	}
	return nil
}

// DispatchRequest payload.
type DispatchRequest struct {
	TechID                   string  `json:"tech_id"`
	ProviderID               *string `json:"provider_id"`
	RecommendationSnapshotID *string `json:"recommendation_snapshot_id"`
	DispatchMode             string  `json:"dispatch_mode"`
}

// Validate checks the technician and dispatch mode.
func (r DispatchRequest) Validate() error {
	if err := requireString(r.TechID, "tech_id"); err != nil {
		return err
	}
	if mode := r.Mode(); mode != "" && mode != DispatchModeEmergencyBypass {
		return invalidField("dispatch_mode", "must be EMERGENCY_BYPASS when set")
	}
	return nil
}

// Mode returns the normalized dispatch mode.
func (r DispatchRequest) Mode() string {
	return strings.ToUpper(strings.TrimSpace(r.DispatchMode))
}

// SnapshotID returns the referenced snapshot id or an empty string.
func (r DispatchRequest) SnapshotID() string {
	if r.RecommendationSnapshotID == nil {
		return ""
	}
	return strings.TrimSpace(*r.RecommendationSnapshotID)
}

// RecommendResponse is returned by the recommend command.
type RecommendResponse struct {
	SnapshotID      string                           `json:"snapshot_id"`
	TicketID        string                           `json:"ticket_id"`
	ServiceType     string                           `json:"service_type"`
	PreferredWindow *domain.ScheduleWindow           `json:"preferred_window"`
	Recommendations []domain.RecommendationCandidate `json:"recommendations"`
	CreatedAt       time.Time                        `json:"created_at"`
}

// NewRecommendResponse maps a persisted snapshot.
func NewRecommendResponse(s *domain.RecommendationSnapshot) RecommendResponse {
	candidates := s.Candidates
	if candidates == nil {
		candidates = []domain.RecommendationCandidate{}
	}
	return RecommendResponse{
		SnapshotID:      s.SnapshotID,
		TicketID:        s.TicketID,
		ServiceType:     s.ServiceType,
		PreferredWindow: s.PreferredWindow,
		Recommendations: candidates,
		CreatedAt:       s.CreatedAt.UTC(),
	}
}
