package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/policy"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// ActorMiddleware resolves the actor context for every request. With a token
// manager configured, a bearer token supplies the identity and the headers only
// contribute tool, correlation and trace ids.
type ActorMiddleware struct {
	tokens       *TokenManager
	requireToken bool
}

// NewActorMiddleware constructs middleware. tokens may be nil when bearer tokens are disabled.
func NewActorMiddleware(tokens *TokenManager, requireToken bool) *ActorMiddleware {
	return &ActorMiddleware{tokens: tokens, requireToken: requireToken && tokens != nil}
}

// Handle attaches the actor context or fails the request.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	correlationID := CorrelationID(header(c, HeaderCorrelationID))
	c.Locals(observability.LocalCorrelationID, correlationID)
	c.Set(HeaderCorrelationID, correlationID)

	actor, err := m.resolve(c)
	if err != nil {
		return err
	}
	actor.CorrelationID = correlationID

	c.Locals(actorKey, actor)
	c.Locals(observability.LocalActorID, actor.ActorID)
	c.Locals(observability.LocalActorRole, actor.Role)
	return c.Next()
}

func (m *ActorMiddleware) resolve(c *fiber.Ctx) (domain.ActorContext, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if m.tokens == nil || (authHeader == "" && !m.requireToken) {
		return ParseActorHeaders(func(key string) string { return c.Get(key) })
	}
	if authHeader == "" {
		return domain.ActorContext{}, apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.ActorContext{}, apperrors.NewUnauthorized("invalid authorization header")
	}
	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.ActorContext{}, apperrors.NewUnauthorized("invalid token")
	}
	if headerID := strings.TrimSpace(c.Get(HeaderActorID)); headerID != "" && headerID != claims.Subject {
		return domain.ActorContext{}, apperrors.NewInvalidActorContext("Header 'X-Actor-Id' does not match the token subject", nil)
	}

	actorType := claims.ActorType
	if actorType == "" {
		actorType = domain.ActorTypeHuman
	}
	return domain.ActorContext{
		ActorID:      claims.Subject,
		Role:         strings.ToLower(claims.Role),
		Type:         actorType,
		ToolName:     strings.TrimSpace(header(c, HeaderToolName)),
		TraceID:      strings.TrimSpace(header(c, HeaderTraceID)),
		AccountScope: claimScope(claims.AccountScope),
		SiteScope:    claimScope(claims.SiteScope),
	}, nil
}

// header copies a request header out of the fasthttp buffer it aliases.
func header(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Get(key))
}

func claimScope(scope []string) []string {
	if len(scope) == 0 {
		return []string{policy.ScopeWildcard}
	}
	return scope
}

// ActorFromContext retrieves the resolved actor.
func ActorFromContext(c *fiber.Ctx) (domain.ActorContext, bool) {
	actor, ok := c.Locals(actorKey).(domain.ActorContext)
	return actor, ok
}
