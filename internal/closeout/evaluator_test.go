package closeout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

const testTemplates = `
version: test.v1
templates:
  - incident_type: x
    template_version: "7"
    required_evidence_keys: [a, b]
    required_checklist_keys: [c]
  - incident_type: SIGNED
    template_version: "1"
    required_evidence_keys: [a, signature_or_no_signature_reason]
    required_checklist_keys: [c]
`

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	reg, err := ParseRegistry([]byte(testTemplates))
	require.NoError(t, err)
	return NewEvaluator(reg)
}

func TestEvaluateAllOrNothing(t *testing.T) {
	eval := testEvaluator(t)

	tests := []struct {
		name             string
		in               Input
		wantReady        bool
		wantCode         string
		wantMissingEv    []string
		wantMissingCheck []string
	}{
		{
			name:             "only a present",
			in:               Input{IncidentType: "X", EvidenceKeys: []string{"a"}},
			wantCode:         domain.CloseoutMissingEvidence,
			wantMissingEv:    []string{"b"},
			wantMissingCheck: []string{"c"},
		},
		{
			name:             "evidence complete checklist false",
			in:               Input{IncidentType: "X", EvidenceKeys: []string{"a", "b"}, ChecklistStatus: map[string]bool{"c": false}},
			wantCode:         domain.CloseoutMissingChecklist,
			wantMissingEv:    []string{},
			wantMissingCheck: []string{"c"},
		},
		{
			name:             "ready",
			in:               Input{IncidentType: " x ", EvidenceKeys: []string{"b", "a", "a"}, ChecklistStatus: map[string]bool{"c": true}},
			wantReady:        true,
			wantCode:         domain.CloseoutReady,
			wantMissingEv:    []string{},
			wantMissingCheck: []string{},
		},
		{
			name:             "missing template",
			in:               Input{IncidentType: "UNKNOWN", EvidenceKeys: []string{"a"}},
			wantCode:         domain.CloseoutTemplateNotFound,
			wantMissingEv:    []string{},
			wantMissingCheck: []string{},
		},
		{
			name:             "empty incident type",
			in:               Input{},
			wantCode:         domain.CloseoutTemplateNotFound,
			wantMissingEv:    []string{},
			wantMissingCheck: []string{},
		},
		{
			name:             "signature only missing",
			in:               Input{IncidentType: "SIGNED", EvidenceKeys: []string{"a"}, ChecklistStatus: map[string]bool{"c": true}},
			wantCode:         domain.CloseoutMissingSignature,
			wantMissingEv:    []string{domain.SignatureEvidenceKey},
			wantMissingCheck: []string{},
		},
		{
			name:             "no signature reason satisfies signature",
			in:               Input{IncidentType: "SIGNED", EvidenceKeys: []string{"a"}, ChecklistStatus: map[string]bool{"c": true}, NoSignatureReason: "customer unavailable"},
			wantReady:        true,
			wantCode:         domain.CloseoutReady,
			wantMissingEv:    []string{},
			wantMissingCheck: []string{},
		},
		{
			name:             "other evidence outranks signature",
			in:               Input{IncidentType: "SIGNED", ChecklistStatus: map[string]bool{"c": true}},
			wantCode:         domain.CloseoutMissingEvidence,
			wantMissingEv:    []string{"a", domain.SignatureEvidenceKey},
			wantMissingCheck: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := eval.Evaluate(tt.in)
			assert.Equal(t, tt.wantReady, check.Ready)
			assert.Equal(t, tt.wantCode, check.Code)
			assert.Equal(t, tt.wantMissingEv, check.MissingEvidenceKeys)
			assert.Equal(t, tt.wantMissingCheck, check.MissingChecklistKeys)
		})
	}
}

func TestDefaultRegistryDoorWontLatch(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, "incident_type_templates.v1", reg.Version)

	tpl, ok := reg.Lookup("door_wont_latch")
	require.True(t, ok)
	assert.Contains(t, tpl.RequiredEvidenceKeys, domain.SignatureEvidenceKey)
	assert.Contains(t, tpl.RequiredChecklistKeys, "billing_authorization")

	check := NewEvaluator(reg).Evaluate(Input{IncidentType: "DOOR_WONT_LATCH"})
	assert.False(t, check.Ready)
	assert.Equal(t, "1", check.TemplateVersion)
	assert.Equal(t, tpl.RequiredEvidenceKeys, check.MissingEvidenceKeys)
}

func TestParseRegistryRejectsDuplicates(t *testing.T) {
	_, err := ParseRegistry([]byte(`templates:
  - incident_type: A
  - incident_type: a
`))
	require.Error(t, err)
}
