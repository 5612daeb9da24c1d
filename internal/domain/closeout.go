package domain

// Closeout requirement codes.
const (
	CloseoutReady            = "READY"
	CloseoutTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CloseoutMissingEvidence  = "MISSING_REQUIRED_EVIDENCE"
	CloseoutMissingSignature = "MISSING_SIGNATURE_CONFIRMATION"
	CloseoutMissingChecklist = "MISSING_REQUIRED_CHECKLIST"
	SignatureEvidenceKey     = "signature_or_no_signature_reason"
)

// CloseoutCheck is the result of evaluating completion requirements.
type CloseoutCheck struct {
	Ready                 bool     `json:"ready"`
	Code                  string   `json:"code"`
	IncidentType          string   `json:"incident_type"`
	TemplateVersion       string   `json:"template_version,omitempty"`
	RequiredEvidenceKeys  []string `json:"required_evidence_keys"`
	RequiredChecklistKeys []string `json:"required_checklist_keys"`
	MissingEvidenceKeys   []string `json:"missing_evidence_keys"`
	MissingChecklistKeys  []string `json:"missing_checklist_keys"`
}
