// Package apperror defines the errors returned by ledger operations.
// A rejected operation always surfaces as an *AppError whose Code names the
// rule that failed; infrastructure failures are wrapped into CodeInternal.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes.
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	CodeBusinessRule          = "BUSINESS_RULE_VIOLATION"
	CodeDocumentLocked        = "DOCUMENT_LOCKED"
	CodeDocumentFinalized     = "DOCUMENT_FINALIZED"
	CodeInvalidTransition     = "INVALID_STATUS_TRANSITION"
	CodeWorkerRequired        = "WORKER_REQUIRED"
	CodeReturnExceedsOriginal = "RETURN_EXCEEDS_ORIGINAL"
	CodePaymentExceedsBalance = "PAYMENT_EXCEEDS_BALANCE"
	CodeDayAlreadyClosed      = "DAY_ALREADY_CLOSED"

	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

// statusByCode maps codes to the status an outer transport should answer
// with. Codes missing here are business rules (422).
var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeNotFound:               http.StatusNotFound,
	CodeConflict:               http.StatusConflict,
	CodeConcurrentModification: http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
}

// AppError is the error type of the ledger core.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"` // field, line_no, amounts

	HTTPStatus int   `json:"-"`
	Err        error `json:"-"`
}

func newError(code, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to the error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewValidation is returned for malformed input, before any write.
func NewValidation(message string) *AppError {
	return newError(CodeValidation, message)
}

// NewNotFound is returned for a reference to a missing account or document.
func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewBusinessRule is returned when a state rule rejects the operation.
func NewBusinessRule(code, message string) *AppError {
	return newError(code, message)
}

// NewLocked is returned when a locked document is edited, deleted or paid.
func NewLocked(entity string, id any) *AppError {
	return newError(CodeDocumentLocked, entity+" is locked").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInvalidTransition is returned by the document state machines.
func NewInvalidTransition(entity, from, to string) *AppError {
	return newError(CodeInvalidTransition, fmt.Sprintf("%s cannot move from %q to %q", entity, from, to)).
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewExceeds is returned when a payment or return asks for more than is
// left on the document. requested and available are decimal strings.
func NewExceeds(code, field, message, requested, available string) *AppError {
	return newError(code, message).
		WithDetail("field", field).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// NewDayClosed is returned for a second closing of the same date.
func NewDayClosed(day time.Time) *AppError {
	date := day.Format(time.DateOnly)
	return newError(CodeDayAlreadyClosed, "day "+date+" is already closed").
		WithDetail("date", date)
}

// NewConcurrentModification is returned when an optimistic version check fails.
func NewConcurrentModification(entity string, id any) *AppError {
	return newError(CodeConcurrentModification, entity+" was modified concurrently, reload and retry").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInternal wraps an infrastructure failure. The cause is kept for logs
// and never rendered to callers.
func NewInternal(err error) *AppError {
	e := newError(CodeInternal, "internal error")
	e.Err = err
	return e
}

// NewIdempotencyConflict is returned when an event key is claimed by
// another transaction that has not finished.
func NewIdempotencyConflict(key string) *AppError {
	return newError(CodeIdempotency, "event is already being posted").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch is returned when an event key is reused for a
// different document.
func NewIdempotencyMismatch(key string) *AppError {
	return newError(CodeIdempotency, "event key was used for another document").
		WithDetail("idempotency_key", key)
}

// NewConflict is returned for unique constraint violations.
func NewConflict(message string) *AppError {
	return newError(CodeConflict, message)
}

// AsAppError extracts the AppError from the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is CodeNotFound.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// GetHTTPStatus returns the status for any error; plain errors are 500.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err was caused by the caller. Client
// errors are not logged at error level.
func IsClientError(err error) bool {
	status := GetHTTPStatus(err)
	return status >= 400 && status < 500
}
