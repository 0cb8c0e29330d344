package context

import (
	"context"

	"github.com/google/uuid"
)

// Operation names the unit of work a context belongs to: one worker tick,
// one seed run, one request handled by an outer transport.
type Operation struct {
	ID     string
	Name   string
	Source string // worker, seed, migrate
}

type operationKey struct{}

// NewOperation starts an operation with a fresh id.
func NewOperation(source, name string) *Operation {
	return &Operation{ID: uuid.NewString(), Name: name, Source: source}
}

// WithOperation attaches op to ctx.
func WithOperation(ctx context.Context, op *Operation) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// GetOperation returns the operation attached to ctx, or nil.
func GetOperation(ctx context.Context) *Operation {
	if v, ok := ctx.Value(operationKey{}).(*Operation); ok {
		return v
	}
	return nil
}

// OperationID returns the id of the current operation or "".
func OperationID(ctx context.Context) string {
	if op := GetOperation(ctx); op != nil {
		return op.ID
	}
	return ""
}
