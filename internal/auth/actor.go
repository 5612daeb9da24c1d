package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/policy"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// Actor context headers.
const (
	HeaderActorID       = "X-Actor-Id"
	HeaderActorRole     = "X-Actor-Role"
	HeaderActorType     = "X-Actor-Type"
	HeaderToolName      = "X-Tool-Name"
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderTraceID       = "X-Trace-Id"
	HeaderAccountScope  = "X-Account-Scope"
	HeaderSiteScope     = "X-Site-Scope"
)

// CorrelationID returns the caller's correlation id or a fresh one.
func CorrelationID(header string) string {
	if id := strings.TrimSpace(header); id != "" {
		return id
	}
	return uuid.NewString()
}

// ParseActorHeaders builds an actor context from request headers.
// Absent scope headers leave the actor unrestricted. Values are copied, so
// the result stays valid after the request buffers are reused.
func ParseActorHeaders(lookup func(string) string) (domain.ActorContext, error) {
	get := func(key string) string { return utils.CopyString(lookup(key)) }
	actorID := strings.TrimSpace(get(HeaderActorID))
	if actorID == "" {
		return domain.ActorContext{}, apperrors.NewMissingActorContext("Header 'X-Actor-Id' is required")
	}
	role := strings.ToLower(strings.TrimSpace(get(HeaderActorRole)))
	if role == "" {
		return domain.ActorContext{}, apperrors.NewMissingActorContext("Header 'X-Actor-Role' is required")
	}
	actorType, ok := domain.ParseActorType(get(HeaderActorType))
	if !ok {
		return domain.ActorContext{}, apperrors.NewInvalidActorContext("Header 'X-Actor-Type' must be valid", map[string]any{
			"actor_type": get(HeaderActorType),
		})
	}

	return domain.ActorContext{
		ActorID:       actorID,
		Role:          role,
		Type:          actorType,
		ToolName:      strings.TrimSpace(get(HeaderToolName)),
		CorrelationID: CorrelationID(get(HeaderCorrelationID)),
		TraceID:       strings.TrimSpace(get(HeaderTraceID)),
		AccountScope:  scopeList(get(HeaderAccountScope)),
		SiteScope:     scopeList(get(HeaderSiteScope)),
	}, nil
}

// scopeList reads a comma separated scope header. An absent or empty header is
// unrestricted. A header naming no ids, such as " , ", covers nothing.
func scopeList(header string) []string {
	if strings.TrimSpace(header) == "" {
		return []string{policy.ScopeWildcard}
	}
	out := []string{}
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
