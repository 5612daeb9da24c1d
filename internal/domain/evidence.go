package domain

import (
	"strings"
	"time"
)

// EvidenceKeyField is the metadata field the closeout gate reads.
const EvidenceKeyField = "evidence_key"

// EvidenceItem is an append-only attachment captured on site.
type EvidenceItem struct {
	ID        string
	TicketID  string
	Kind      string
	URI       string
	Checksum  *string
	Metadata  map[string]any
	CreatedBy string
	CreatedAt time.Time
}

// EvidenceKey returns the closeout key stored in metadata, if any.
func (e EvidenceItem) EvidenceKey() string {
	if e.Metadata == nil {
		return ""
	}
	key, _ := e.Metadata[EvidenceKeyField].(string)
	return strings.TrimSpace(key)
}
