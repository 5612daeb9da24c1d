package closeout

import (
	"strings"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// Input is everything the gate needs to decide on completion.
type Input struct {
	IncidentType      string
	EvidenceKeys      []string
	ChecklistStatus   map[string]bool
	NoSignatureReason string
}

// Evaluator applies a template registry. It is safe for concurrent use.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator builds an evaluator.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Registry returns the underlying template registry.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate is all-or-nothing: any missing key blocks completion.
func (e *Evaluator) Evaluate(in Input) domain.CloseoutCheck {
	incidentType := domain.NormalizeIncidentType(in.IncidentType)
	check := domain.CloseoutCheck{
		IncidentType:          incidentType,
		RequiredEvidenceKeys:  []string{},
		RequiredChecklistKeys: []string{},
		MissingEvidenceKeys:   []string{},
		MissingChecklistKeys:  []string{},
	}

	tpl, ok := e.registry.Lookup(incidentType)
	if incidentType == "" || !ok {
		check.Code = domain.CloseoutTemplateNotFound
		return check
	}
	check.TemplateVersion = tpl.TemplateVersion
	check.RequiredEvidenceKeys = append(check.RequiredEvidenceKeys, tpl.RequiredEvidenceKeys...)
	check.RequiredChecklistKeys = append(check.RequiredChecklistKeys, tpl.RequiredChecklistKeys...)

	present := make(map[string]struct{}, len(in.EvidenceKeys))
	for _, key := range in.EvidenceKeys {
		if key = strings.TrimSpace(key); key != "" {
			present[key] = struct{}{}
		}
	}
	if strings.TrimSpace(in.NoSignatureReason) != "" {
		present[domain.SignatureEvidenceKey] = struct{}{}
	}

	signatureMissing := false
	for _, key := range tpl.RequiredEvidenceKeys {
		if _, ok := present[key]; ok {
			continue
		}
		check.MissingEvidenceKeys = append(check.MissingEvidenceKeys, key)
		if key == domain.SignatureEvidenceKey {
			signatureMissing = true
		}
	}
	for _, key := range tpl.RequiredChecklistKeys {
		if !in.ChecklistStatus[key] {
			check.MissingChecklistKeys = append(check.MissingChecklistKeys, key)
		}
	}

	switch {
	case len(check.MissingEvidenceKeys) > 1 || (len(check.MissingEvidenceKeys) == 1 && !signatureMissing):
		check.Code = domain.CloseoutMissingEvidence
	case signatureMissing:
		check.Code = domain.CloseoutMissingSignature
	case len(check.MissingChecklistKeys) > 0:
		check.Code = domain.CloseoutMissingChecklist
	default:
		check.Code = domain.CloseoutReady
		check.Ready = true
	}
	return check
}
