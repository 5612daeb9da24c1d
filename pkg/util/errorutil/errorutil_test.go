package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	original := NewForbidden("/tickets", "tech")
	wrapped := fmt.Errorf("dispatch: %w", original)

	got := ToDomainError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeForbidden, got.Code)
	assert.Equal(t, http.StatusForbidden, got.HTTPStatus)
	assert.Equal(t, DimensionRole, got.Details["dimension"])
	assert.Nil(t, ToDomainError(nil))
}

func TestToDomainErrorHidesUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	got := ToDomainError(cause)

	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	assert.NotEmpty(t, got.Details["reference"])
	assert.NotContains(t, got.Message, "connection reset")
	assert.ErrorIs(t, got, cause)
}

func TestErrorsIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewTicketNotFound("abc"))

	assert.ErrorIs(t, err, NewTicketNotFound("other"))
	assert.NotErrorIs(t, err, NewNotFound("ticket", nil))
	assert.True(t, HasCode(err, CodeTicketNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeTicketNotFound))
}

func TestDetailHelpersTagDimension(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		dimension any
	}{
		{name: "hold conflict", err: NewScheduleHoldStateConflict("hold expired", nil), code: CodeScheduleHoldStateConflict, dimension: DimensionState},
		{name: "closeout", err: NewCloseoutIncomplete(map[string]any{"missing_evidence_keys": []string{"photo_after"}}), code: CodeCloseoutRequirementsIncomplete, dimension: DimensionEvidence},
		{name: "transition", err: NewInvalidStateTransition("NEW", "VERIFIED"), code: CodeInvalidStateTransition, dimension: DimensionState},
		{name: "tool", err: NewToolNotAllowed("/tickets", "ticket.delete"), code: CodeToolNotAllowed, dimension: DimensionTool},
		{name: "scope", err: NewForbiddenScope("/tickets/:id", "t-1"), code: CodeForbiddenScope, dimension: DimensionScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.dimension, got.Details["dimension"])
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := &DomainError{Code: CodeInternal, Message: "store failed", Err: errors.New("timeout")}
	assert.Equal(t, "store failed: timeout", err.Error())
	assert.Equal(t, "ticket not found", NewTicketNotFound("x").Error())
}
