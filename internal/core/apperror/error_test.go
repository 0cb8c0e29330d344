package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusByCode(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewValidation("bad amount"), http.StatusBadRequest},
		{NewNotFound("account", "a1"), http.StatusNotFound},
		{NewLocked("purchase", "p1"), http.StatusUnprocessableEntity},
		{NewBusinessRule(CodeWorkerRequired, "worker"), http.StatusUnprocessableEntity},
		{NewConcurrentModification("invoice", "i1"), http.StatusConflict},
		{NewIdempotencyConflict("k"), http.StatusConflict},
		{NewInternal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("add payment: %w", NewExceeds(CodePaymentExceedsBalance, "amount", "too much", "200", "150"))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.True(t, HasCode(err, CodePaymentExceedsBalance))
	assert.Equal(t, "amount", appErr.Details["field"])
	assert.Equal(t, "200", appErr.Details["requested"])
	assert.Equal(t, "150", appErr.Details["available"])
	assert.True(t, IsClientError(err))
}

func TestNewInternal_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsClientError(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNewDayClosed(t *testing.T) {
	err := NewDayClosed(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, CodeDayAlreadyClosed, err.Code)
	assert.Equal(t, "2026-03-10", err.Details["date"])
	assert.True(t, IsNotFound(NewNotFound("invoice", 1)))
	assert.False(t, IsNotFound(err))
}
