package closeout

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Template lists what an incident type needs before completion.
type Template struct {
	IncidentType          string   `yaml:"incident_type"`
	TemplateVersion       string   `yaml:"template_version"`
	RequiredEvidenceKeys  []string `yaml:"required_evidence_keys"`
	RequiredChecklistKeys []string `yaml:"required_checklist_keys"`
}

// Registry is an immutable set of incident templates.
type Registry struct {
	Version   string     `yaml:"version"`
	Templates []Template `yaml:"templates"`

	byType map[string]Template
}

// ParseRegistry decodes a template document.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	reg.byType = make(map[string]Template, len(reg.Templates))
	for _, tpl := range reg.Templates {
		key := domain.NormalizeIncidentType(tpl.IncidentType)
		if key == "" {
			return nil, fmt.Errorf("templates: incident_type is required")
		}
		if _, dup := reg.byType[key]; dup {
			return nil, fmt.Errorf("templates: duplicate incident_type %q", key)
		}
		tpl.IncidentType = key
		reg.byType[key] = tpl
	}
	return &reg, nil
}

// DefaultRegistry returns the embedded templates.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultTemplatesYAML)
}

// LoadRegistry reads templates from path, or the embedded set when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	return ParseRegistry(data)
}

// Lookup finds the template for an incident type.
func (r *Registry) Lookup(incidentType string) (Template, bool) {
	tpl, ok := r.byType[domain.NormalizeIncidentType(incidentType)]
	return tpl, ok
}
