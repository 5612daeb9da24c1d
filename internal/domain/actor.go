package domain

import "strings"

// ActorType classifies who is issuing a command.
type ActorType string

const (
	ActorTypeHuman   ActorType = "HUMAN"
	ActorTypeAgent   ActorType = "AGENT"
	ActorTypeService ActorType = "SERVICE"
	ActorTypeSystem  ActorType = "SYSTEM"
)

// ParseActorType validates an actor type, defaulting empty values to HUMAN.
func ParseActorType(value string) (ActorType, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return ActorTypeHuman, true
	}
	switch t := ActorType(trimmed); t {
	case ActorTypeHuman, ActorTypeAgent, ActorTypeService, ActorTypeSystem:
		return t, true
	}
	return "", false
}

// ActorContext is the caller identity attached to every request.
type ActorContext struct {
	ActorID       string
	Role          string
	Type          ActorType
	ToolName      string
	CorrelationID string
	TraceID       string
	AccountScope  []string
	SiteScope     []string
}
