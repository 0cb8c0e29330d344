// Package audit provides created-by enrichment for documents and ledger rows.
package audit

import (
	"context"

	appctx "goldshop/internal/core/context"
)

// CreatedBySetter is implemented by entity.BaseEntity.
type CreatedBySetter interface {
	SetCreatedBy(string)
}

// EnrichCreatedBy stamps the acting user on entity. Use in BeforeCreate hooks.
// Entities that already carry a creator keep it.
func EnrichCreatedBy(ctx context.Context, entity any) error {
	if e, ok := entity.(CreatedBySetter); ok {
		e.SetCreatedBy(appctx.Actor(ctx))
	}
	return nil
}

// CreatedByHook adapts EnrichCreatedBy to a typed domain.Hook.
func CreatedByHook[T CreatedBySetter](ctx context.Context, entity T) error {
	return EnrichCreatedBy(ctx, entity)
}
