package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Bypass lets a command leave from extra states when it carries a dispatch mode.
type Bypass struct {
	FromStates   []domain.TicketState `yaml:"from_states"`
	DispatchMode string               `yaml:"dispatch_mode"`
}

// EndpointPolicy declares who may call an endpoint and which transition it performs.
type EndpointPolicy struct {
	Endpoint          string               `yaml:"endpoint"`
	AllowedRoles      []string             `yaml:"allowed_roles"`
	AllowedTools      []string             `yaml:"allowed_tools"`
	DefaultTool       string               `yaml:"default_tool"`
	AllowedFromStates []domain.TicketState `yaml:"allowed_from_states"`
	ExpectedToState   domain.TicketState   `yaml:"expected_to_state"`
	Bypass            *Bypass              `yaml:"bypass"`
	RequireScope      bool                 `yaml:"require_scope"`
}

// ChangesState reports whether a successful command moves the ticket.
func (p EndpointPolicy) ChangesState() bool {
	return p.ExpectedToState != ""
}

// Table is the immutable policy set loaded once at startup.
type Table struct {
	Version  string           `yaml:"version"`
	Commands []EndpointPolicy `yaml:"commands"`
	Reads    []EndpointPolicy `yaml:"reads"`

	byEndpoint map[string]EndpointPolicy
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	table.byEndpoint = make(map[string]EndpointPolicy, len(table.Commands)+len(table.Reads))
	all := append(append([]EndpointPolicy{}, table.Commands...), table.Reads...)
	for i := range all {
		p := normalize(all[i])
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := table.byEndpoint[p.Endpoint]; dup {
			return nil, fmt.Errorf("policy: duplicate endpoint %q", p.Endpoint)
		}
		table.byEndpoint[p.Endpoint] = p
	}
	return &table, nil
}

// Default returns the embedded policy table.
func Default() (*Table, error) {
	return Parse(defaultPolicyYAML)
}

// LoadFile reads a policy document, falling back to the embedded default when path is empty.
func LoadFile(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Lookup returns the policy for an endpoint.
func (t *Table) Lookup(endpoint string) (EndpointPolicy, bool) {
	p, ok := t.byEndpoint[endpoint]
	return p, ok
}

// Endpoints lists every configured endpoint.
func (t *Table) Endpoints() []string {
	out := make([]string, 0, len(t.byEndpoint))
	for _, p := range t.Commands {
		out = append(out, p.Endpoint)
	}
	for _, p := range t.Reads {
		out = append(out, p.Endpoint)
	}
	return out
}

func normalize(p EndpointPolicy) EndpointPolicy {
	p.Endpoint = strings.TrimSpace(p.Endpoint)
	for i, role := range p.AllowedRoles {
		p.AllowedRoles[i] = strings.ToLower(strings.TrimSpace(role))
	}
	return p
}

func validate(p EndpointPolicy) error {
	if p.Endpoint == "" {
		return errors.New("policy: endpoint is required")
	}
	if len(p.AllowedRoles) == 0 || len(p.AllowedTools) == 0 {
		return fmt.Errorf("policy %s: allowed_roles and allowed_tools are required", p.Endpoint)
	}
	if p.DefaultTool != "" && !contains(p.AllowedTools, p.DefaultTool) {
		return fmt.Errorf("policy %s: default_tool %q is not allow-listed", p.Endpoint, p.DefaultTool)
	}
	states := append([]domain.TicketState{}, p.AllowedFromStates...)
	if p.ExpectedToState != "" {
		states = append(states, p.ExpectedToState)
	}
	if p.Bypass != nil {
		if strings.TrimSpace(p.Bypass.DispatchMode) == "" {
			return fmt.Errorf("policy %s: bypass requires dispatch_mode", p.Endpoint)
		}
		states = append(states, p.Bypass.FromStates...)
	}
	for _, s := range states {
		if !s.Valid() {
			return fmt.Errorf("policy %s: unknown state %q", p.Endpoint, s)
		}
	}
	return nil
}

func contains[T comparable](values []T, want T) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Missing lists known endpoints the table has no policy for.
func (t *Table) Missing() []string {
	var out []string
	for _, endpoint := range KnownEndpoints {
		if _, ok := t.byEndpoint[endpoint]; !ok {
			out = append(out, endpoint)
		}
	}
	return out
}

// Roles lists every role named by the table, in first-seen order.
func (t *Table) Roles() []string {
	seen := map[string]bool{}
	var out []string
	for _, endpoint := range t.Endpoints() {
		for _, role := range t.byEndpoint[endpoint].AllowedRoles {
			if !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	return out
}
