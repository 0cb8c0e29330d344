package returns

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/ledger"
)

// Reference is the returnable view of an invoice or purchase.
type Reference struct {
	Type         string
	ID           id.ID
	Number       string
	Counterparty entity.Counterparty

	// Amount and Weight are the original totals returns are bounded by.
	Amount decimal.Decimal
	Weight decimal.Decimal
}

// ReferenceLookup loads a reference document with a row lock, so that
// concurrent finalizations against it serialize.
type ReferenceLookup interface {
	LockReference(ctx context.Context, refType string, refID id.ID) (*Reference, error)
}

// InvoiceReader is the part of invoice.Repository returns need.
type InvoiceReader interface {
	GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error)
}

// PurchaseReader is the part of purchase.Repository returns need.
type PurchaseReader interface {
	GetForUpdate(ctx context.Context, docID id.ID) (*purchase.Purchase, error)
}

// DocumentReferences resolves invoices and purchases.
type DocumentReferences struct {
	Invoices  InvoiceReader
	Purchases PurchaseReader
}

var _ ReferenceLookup = DocumentReferences{}

// LockReference implements ReferenceLookup. Only finalized invoices can be
// returned against; purchases are returnable once created.
func (d DocumentReferences) LockReference(ctx context.Context, refType string, refID id.ID) (*Reference, error) {
	switch refType {
	case ledger.RefInvoice:
		inv, err := d.Invoices.GetForUpdate(ctx, refID)
		if err != nil {
			return nil, err
		}
		if inv.IsDeleted {
			return nil, apperror.NewNotFound(invoice.EntityType, refID)
		}
		if !inv.IsFinalized() {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "only finalized invoices can be returned against").
				WithDetail("reference_id", refID)
		}
		weight := decimal.Zero
		for _, it := range inv.Items {
			weight = weight.Add(it.NetWeight)
		}
		return &Reference{
			Type:         refType,
			ID:           inv.ID,
			Number:       inv.Number,
			Counterparty: inv.Counterparty,
			Amount:       inv.GrandTotal,
			Weight:       types.RoundWeight(weight),
		}, nil

	case ledger.RefPurchase:
		p, err := d.Purchases.GetForUpdate(ctx, refID)
		if err != nil {
			return nil, err
		}
		if p.IsDeleted {
			return nil, apperror.NewNotFound(purchase.EntityType, refID)
		}
		return &Reference{
			Type:         refType,
			ID:           p.ID,
			Number:       p.Number,
			Counterparty: p.Counterparty,
			Amount:       p.AmountTotal,
			Weight:       p.WeightGrams,
		}, nil
	}
	return nil, apperror.NewValidation(fmt.Sprintf("unknown reference type %q", refType)).
		WithDetail("field", "reference_type")
}
