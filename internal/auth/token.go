package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// TokenManager handles issuing and validating actor tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// ActorClaims carries the identity half of an actor context.
type ActorClaims struct {
	Role         string           `json:"role"`
	ActorType    domain.ActorType `json:"actor_type"`
	AccountScope []string         `json:"account_scope,omitempty"`
	SiteScope    []string         `json:"site_scope,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a token for the actor.
func (tm *TokenManager) GenerateToken(actor domain.ActorContext) (string, time.Time, error) {
	if strings.TrimSpace(actor.ActorID) == "" {
		return "", time.Time{}, errors.New("actor id is required")
	}
	if !IsKnownRole(actor.Role) {
		return "", time.Time{}, fmt.Errorf("unknown role %q", actor.Role)
	}
	actorType, ok := domain.ParseActorType(string(actor.Type))
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown actor type %q", actor.Type)
	}

	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &ActorClaims{
		Role:         strings.ToLower(actor.Role),
		ActorType:    actorType,
		AccountScope: actor.AccountScope,
		SiteScope:    actor.SiteScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ActorID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*ActorClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(tm.now)}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*ActorClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
