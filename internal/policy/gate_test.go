package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

func defaultGate(t *testing.T) *Gate {
	t.Helper()
	table, err := Default()
	require.NoError(t, err)
	return NewGate(table)
}

func TestAuthorizeRoleThenTool(t *testing.T) {
	gate := defaultGate(t)

	tests := []struct {
		name     string
		endpoint string
		actor    domain.ActorContext
		wantTool string
		wantCode string
	}{
		{
			name:     "dispatcher with default tool",
			endpoint: EndpointTriage,
			actor:    domain.ActorContext{ActorID: "d-1", Role: "dispatcher"},
			wantTool: "ticket.triage",
		},
		{
			name:     "role is case insensitive",
			endpoint: EndpointTriage,
			actor:    domain.ActorContext{ActorID: "d-1", Role: "Dispatcher", ToolName: "ticket.triage"},
			wantTool: "ticket.triage",
		},
		{
			name:     "tech cannot triage",
			endpoint: EndpointTriage,
			actor:    domain.ActorContext{ActorID: "t-1", Role: "tech"},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "role checked before tool",
			endpoint: EndpointTriage,
			actor:    domain.ActorContext{ActorID: "t-1", Role: "tech", ToolName: "not.a.tool"},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "wrong tool",
			endpoint: EndpointTriage,
			actor:    domain.ActorContext{ActorID: "d-1", Role: "dispatcher", ToolName: "ticket.create"},
			wantCode: apperrors.CodeToolNotAllowed,
		},
		{
			name:     "unknown endpoint fails closed",
			endpoint: "/tickets/{ticketId}/delete",
			actor:    domain.ActorContext{ActorID: "d-1", Role: "dispatcher"},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:     "tech cannot pause autonomy",
			endpoint: EndpointAutonomyPause,
			actor:    domain.ActorContext{ActorID: "t-1", Role: "tech"},
			wantCode: apperrors.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, err := gate.Authorize(tt.endpoint, tt.actor)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTool, tool)
		})
	}
}

func TestAuthorizeErrorsCarryDimension(t *testing.T) {
	gate := defaultGate(t)

	_, err := gate.Authorize(EndpointTriage, domain.ActorContext{Role: "dispatcher", ToolName: "bad"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.DimensionTool, de.Details["dimension"])
	assert.Equal(t, "bad", de.Details["tool_name"])

	_, err = gate.Authorize(EndpointTriage, domain.ActorContext{Role: "finance"})
	de = apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.DimensionRole, de.Details["dimension"])
}

func TestAssertTransitionTotality(t *testing.T) {
	gate := defaultGate(t)

	for _, p := range gate.Table().Commands {
		if len(p.AllowedFromStates) == 0 {
			continue
		}
		for _, from := range domain.TicketStates {
			to, err := gate.AssertTransition(p.Endpoint, from, TransitionOptions{})
			if contains(p.AllowedFromStates, from) {
				require.NoError(t, err, "%s from %s", p.Endpoint, from)
				if p.ChangesState() {
					assert.Equal(t, p.ExpectedToState, to)
				} else {
					assert.Equal(t, from, to)
				}
				continue
			}
			require.Error(t, err, "%s from %s", p.Endpoint, from)
			de := apperrors.ToDomainError(err)
			assert.Equal(t, apperrors.CodeInvalidStateTransition, de.Code)
			assert.Equal(t, string(from), de.Details["from_state"])
			assert.Equal(t, apperrors.DimensionState, de.Details["dimension"])
		}
	}
}

func TestDispatchEmergencyBypass(t *testing.T) {
	gate := defaultGate(t)

	_, err := gate.AssertTransition(EndpointDispatch, domain.TicketStateTriaged, TransitionOptions{})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "TRIAGED", de.Details["from_state"])
	assert.Equal(t, "DISPATCHED", de.Details["to_state"])

	_, err = gate.AssertTransition(EndpointDispatch, domain.TicketStateTriaged, TransitionOptions{DispatchMode: "STANDARD"})
	require.Error(t, err)

	to, err := gate.AssertTransition(EndpointDispatch, domain.TicketStateTriaged, TransitionOptions{DispatchMode: "EMERGENCY_BYPASS"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateDispatched, to)

	_, err = gate.AssertTransition(EndpointDispatch, domain.TicketStateNew, TransitionOptions{DispatchMode: "EMERGENCY_BYPASS"})
	require.Error(t, err)
}

func TestAuthorizeScope(t *testing.T) {
	gate := defaultGate(t)
	ticket := &domain.Ticket{ID: "t-1", AccountID: "acct-1", SiteID: "site-1"}

	tests := []struct {
		name    string
		account []string
		site    []string
		wantErr bool
	}{
		{name: "exact match", account: []string{"acct-1"}, site: []string{"site-1"}},
		{name: "wildcard", account: []string{"*"}, site: []string{"*"}},
		{name: "other account", account: []string{"acct-2"}, site: []string{"site-1"}, wantErr: true},
		{name: "missing site scope", account: []string{"acct-1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := domain.ActorContext{Role: "dispatcher", AccountScope: tt.account, SiteScope: tt.site}
			err := gate.AuthorizeScope(EndpointTimeline, actor, ticket)
			if tt.wantErr {
				require.Error(t, err)
				de := apperrors.ToDomainError(err)
				assert.Equal(t, apperrors.CodeForbiddenScope, de.Code)
				assert.Equal(t, apperrors.DimensionScope, de.Details["dimension"])
				return
			}
			require.NoError(t, err)
		})
	}

	require.NoError(t, gate.AuthorizeScope(EndpointDispatcherQueue, domain.ActorContext{}, ticket))
}

func TestParseRejectsInvalidTables(t *testing.T) {
	_, err := Parse([]byte(`commands:
  - endpoint: /x
    allowed_roles: [dispatcher]
    allowed_tools: [x.run]
    default_tool: y.run
`))
	require.Error(t, err)

	_, err = Parse([]byte(`commands:
  - endpoint: /x
    allowed_roles: [dispatcher]
    allowed_tools: [x.run]
    allowed_from_states: [NOT_A_STATE]
`))
	require.Error(t, err)

	_, err = Parse([]byte(`commands:
  - endpoint: /x
    allowed_roles: [dispatcher]
    allowed_tools: [x.run]
  - endpoint: /x
    allowed_roles: [dispatcher]
    allowed_tools: [x.run]
`))
	require.Error(t, err)
}

func TestDefaultTableCoversEveryEndpoint(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	assert.Empty(t, table.Missing())
	assert.ElementsMatch(t, []string{"dispatcher", "agent", "tech", "qa", "finance", "customer", "ops"}, table.Roles())

	partial, err := Parse([]byte(`
commands:
  - endpoint: /tickets
    allowed_roles: [Dispatcher]
    allowed_tools: [ticket.create]
`))
	require.NoError(t, err)
	assert.Contains(t, partial.Missing(), EndpointTriage)
	assert.Equal(t, []string{"dispatcher"}, partial.Roles())
}
