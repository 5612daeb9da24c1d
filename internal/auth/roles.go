package auth

import (
	"slices"
	"strings"
)

// Roles known to the command policy.
const (
	RoleDispatcher = "dispatcher"
	RoleAgent      = "agent"
	RoleTech       = "tech"
	RoleQA         = "qa"
	RoleFinance    = "finance"
	RoleCustomer   = "customer"
	RoleOps        = "ops"
)

var knownRoles = map[string]struct{}{
	RoleDispatcher: {},
	RoleAgent:      {},
	RoleTech:       {},
	RoleQA:         {},
	RoleFinance:    {},
	RoleCustomer:   {},
	RoleOps:        {},
}

// IsKnownRole reports whether role is one of the policy roles, ignoring case.
func IsKnownRole(role string) bool {
	_, ok := knownRoles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// KnownRoles lists the policy roles in sorted order.
func KnownRoles() []string {
	out := make([]string, 0, len(knownRoles))
	for role := range knownRoles {
		out = append(out, role)
	}
	slices.Sort(out)
	return out
}
