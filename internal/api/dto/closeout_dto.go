package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// AddEvidenceRequest payload. EvidenceKey is copied into metadata.
type AddEvidenceRequest struct {
	Kind        string         `json:"kind"`
	URI         string         `json:"uri"`
	Checksum    *string        `json:"checksum"`
	EvidenceKey string         `json:"evidence_key"`
	Metadata    map[string]any `json:"metadata"`
}

// Validate checks required fields.
func (r AddEvidenceRequest) Validate() error {
	if err := requireString(r.Kind, "kind"); err != nil {
		return err
	}
	return requireString(r.URI, "uri")
}

// MetadataWithKey returns metadata carrying the evidence key.
func (r AddEvidenceRequest) MetadataWithKey() map[string]any {
	out := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		out[k] = v
	}
	if key := strings.TrimSpace(r.EvidenceKey); key != "" {
		out[domain.EvidenceKeyField] = key
	}
	return out
}

// CompleteRequest is shared by technician completion and the closeout candidate.
type CompleteRequest struct {
	ChecklistStatus   map[string]any `json:"checklist_status"`
	NoSignatureReason string         `json:"no_signature_reason"`
}

// Validate requires a checklist object.
func (r CompleteRequest) Validate() error {
	if r.ChecklistStatus == nil {
		return invalidField("checklist_status", "must be an object")
	}
	return nil
}

// Checklist keeps only items explicitly marked true.
func (r CompleteRequest) Checklist() map[string]bool {
	out := make(map[string]bool, len(r.ChecklistStatus))
	for k, v := range r.ChecklistStatus {
		done, _ := v.(bool)
		out[k] = done
	}
	return out
}

// EvidenceResponse is one evidence item.
type EvidenceResponse struct {
	ID        string         `json:"id"`
	TicketID  string         `json:"ticket_id"`
	Kind      string         `json:"kind"`
	URI       string         `json:"uri"`
	Checksum  *string        `json:"checksum"`
	Metadata  map[string]any `json:"metadata"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvidenceResponse maps an evidence item.
func NewEvidenceResponse(e domain.EvidenceItem) EvidenceResponse {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return EvidenceResponse{
		ID:        e.ID,
		TicketID:  e.TicketID,
		Kind:      e.Kind,
		URI:       e.URI,
		Checksum:  e.Checksum,
		Metadata:  metadata,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

// EvidenceListResponse lists a ticket's evidence oldest first.
type EvidenceListResponse struct {
	TicketID string             `json:"ticket_id"`
	Evidence []EvidenceResponse `json:"evidence"`
}

// NewEvidenceListResponse maps evidence items.
func NewEvidenceListResponse(ticketID string, items []domain.EvidenceItem) EvidenceListResponse {
	out := EvidenceListResponse{TicketID: ticketID, Evidence: make([]EvidenceResponse, 0, len(items))}
	for _, item := range items {
		out.Evidence = append(out.Evidence, NewEvidenceResponse(item))
	}
	return out
}

// SiteResponse is the site block of a job packet.
type SiteResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
}

// JobPacketResponse is what a technician needs on site.
type JobPacketResponse struct {
	Ticket        TicketResponse       `json:"ticket"`
	Site          *SiteResponse        `json:"site"`
	Evidence      []EvidenceResponse   `json:"evidence"`
	CloseoutCheck domain.CloseoutCheck `json:"closeout_check"`
	GeneratedAt   time.Time            `json:"generated_at"`
}
