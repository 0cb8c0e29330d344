// Package returns provides sale and purchase returns. A return is a draft
// until finalized; finalization is terminal and posts the refund and the
// reversing stock movements.
package returns

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
)

// Type is what is returned.
type Type string

const (
	// SaleReturn: a customer brings back goods sold on an invoice.
	SaleReturn Type = "sale_return"
	// PurchaseReturn: the shop gives back gold bought on a purchase.
	PurchaseReturn Type = "purchase_return"
)

// ReferenceType is the document type a return of t refers to.
func (t Type) ReferenceType() string {
	switch t {
	case SaleReturn:
		return ledger.RefInvoice
	case PurchaseReturn:
		return ledger.RefPurchase
	}
	return ""
}

// RefundMode is how the counterparty is settled.
type RefundMode string

const (
	RefundMoney RefundMode = "money"
	RefundGold  RefundMode = "gold"
)

// Status is the lifecycle status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

// Item is one returned line.
type Item struct {
	LineNo      int             `json:"line_no"`
	Description string          `json:"description,omitempty"`
	HeaderID    *id.ID          `json:"header_id,omitempty"`
	Qty         int             `json:"qty"`
	WeightGrams decimal.Decimal `json:"weight_grams" precision:"weight"`
	Purity      types.Purity    `json:"purity"`
	Amount      decimal.Decimal `json:"amount" precision:"money"`
}

// Return is a sale or purchase return against one reference document.
type Return struct {
	entity.Document
	entity.Counterparty

	ReturnType    Type   `db:"return_type" json:"return_type"`
	ReferenceType string `db:"reference_type" json:"reference_type"`
	ReferenceID   id.ID  `db:"reference_id" json:"reference_id"`
	// ReferenceNumber is copied from the referenced document for display.
	ReferenceNumber string `db:"reference_number" json:"reference_number,omitempty"`

	Items            []Item          `db:"items" json:"items"`
	TotalWeightGrams decimal.Decimal `db:"total_weight_grams" json:"total_weight_grams" precision:"weight"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount" precision:"money"`

	RefundMode RefundMode `db:"refund_mode" json:"refund_mode"`
	// AccountID and PaymentMode settle a money refund.
	AccountID   *id.ID      `db:"account_id" json:"account_id,omitempty"`
	PaymentMode ledger.Mode `db:"payment_mode" json:"payment_mode,omitempty"`
	// RefundGoldGrams and RefundGoldPurity settle a gold refund; the
	// weight defaults to the returned weight.
	RefundGoldGrams  decimal.Decimal `db:"refund_gold_grams" json:"refund_gold_grams" precision:"weight"`
	RefundGoldPurity types.Purity    `db:"refund_gold_purity" json:"refund_gold_purity,omitempty"`

	Status Status `db:"status" json:"status"`
}

// NewReturn creates a draft return.
func NewReturn(t Type) *Return {
	return &Return{
		Document:      entity.NewDocument(),
		ReturnType:    t,
		ReferenceType: t.ReferenceType(),
		Status:        StatusDraft,
	}
}

// Recalculate sums the lines into the totals.
func (r *Return) Recalculate() {
	weight, amount := decimal.Zero, decimal.Zero
	for i := range r.Items {
		it := &r.Items[i]
		it.LineNo = i + 1
		if it.Qty <= 0 {
			it.Qty = 1
		}
		weight = weight.Add(it.WeightGrams)
		amount = amount.Add(it.Amount)
	}
	r.TotalWeightGrams = types.RoundWeight(weight)
	r.TotalAmount = types.RoundMoney(amount)
	if r.RefundMode == RefundGold && r.RefundGoldGrams.IsZero() {
		r.RefundGoldGrams = r.TotalWeightGrams
	}
}

// IsFinalized reports whether the return was finalized.
func (r *Return) IsFinalized() bool {
	return r.Status == StatusFinalized
}

// CanEdit rejects edits of deleted or finalized returns.
func (r *Return) CanEdit() error {
	if r.IsDeleted {
		return apperror.NewNotFound(EntityType, r.ID)
	}
	if r.IsFinalized() {
		return apperror.NewBusinessRule(apperror.CodeDocumentFinalized, "return is finalized").
			WithDetail("id", r.ID)
	}
	return nil
}

// Movements builds the refund and the reversing stock movements.
//
//	sale_return      money: credit   gold: OUT   stock: IN
//	purchase_return  money: debit    gold: IN    stock: OUT
func (r *Return) Movements() (txns []*ledger.Transaction, gold []*goldledger.Entry, moves []*stock.Movement) {
	sale := r.ReturnType == SaleReturn

	switch r.RefundMode {
	case RefundMoney:
		if r.TotalAmount.IsPositive() && !id.IsNilPtr(r.AccountID) {
			side, category := ledger.Credit, "sale_return"
			if !sale {
				side, category = ledger.Debit, "purchase_return"
			}
			t := ledger.NewTransaction(side, *r.AccountID, r.TotalAmount, r.PaymentMode, category).
				WithParty(r.PartyID, r.DisplayName())
			t.Date = r.Date
			t.Notes = fmt.Sprintf("Refund for return %s against %s %s", r.Number, r.ReferenceType, r.ReferenceNumber)
			txns = append(txns, t)
		}
	case RefundGold:
		if r.RefundGoldGrams.IsPositive() && !id.IsNilPtr(r.PartyID) {
			dir, purpose := entity.DirectionOut, goldledger.PurposeSaleReturn
			if !sale {
				dir, purpose = entity.DirectionIn, goldledger.PurposePurchaseReturn
			}
			purity := r.RefundGoldPurity
			if purity == 0 {
				purity = types.ValuationPurity
			}
			e := goldledger.NewEntry(*r.PartyID, dir, r.RefundGoldGrams, purity, purpose)
			e.PartyName = r.PartyName
			e.Period = r.Date
			e.Notes = fmt.Sprintf("Gold refund for return %s against %s %s", r.Number, r.ReferenceType, r.ReferenceNumber)
			gold = append(gold, e)
		}
	}

	movement := stock.MovementStockIn
	if !sale {
		movement = stock.MovementStockOut
	}
	for _, it := range r.Items {
		if id.IsNilPtr(it.HeaderID) || !it.WeightGrams.IsPositive() {
			continue
		}
		notes := fmt.Sprintf("Return %s of %s %s: %sg purity %d, amount %s; stock at %d",
			r.Number, r.ReferenceType, r.ReferenceNumber,
			it.WeightGrams.StringFixed(types.WeightPlaces), it.Purity,
			it.Amount.StringFixed(types.MoneyPlaces), types.ValuationPurity)
		m := stock.NewMovement(movement, *it.HeaderID, it.Qty, it.WeightGrams, notes)
		m.Description = it.Description
		m.Period = r.Date
		moves = append(moves, m)
	}
	return txns, gold, moves
}

// Validate implements entity.Validatable.
func (r *Return) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if r.ReturnType.ReferenceType() == "" {
		return apperror.NewValidation("return type must be sale_return or purchase_return").
			WithDetail("field", "return_type")
	}
	if id.IsNil(r.ReferenceID) {
		return apperror.NewValidation("reference document is required").
			WithDetail("field", "reference_id")
	}
	if len(r.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	for i, it := range r.Items {
		if err := types.NonNegative("weight_grams", it.WeightGrams); err != nil {
			return withLine(err, i)
		}
		if err := types.NonNegative("amount", it.Amount); err != nil {
			return withLine(err, i)
		}
		if it.Purity != 0 {
			if err := it.Purity.Validate("purity"); err != nil {
				return withLine(err, i)
			}
		}
	}
	if !r.TotalAmount.IsPositive() && !r.TotalWeightGrams.IsPositive() {
		return apperror.NewValidation("a return must carry an amount or a weight").
			WithDetail("field", "items")
	}

	switch r.RefundMode {
	case RefundMoney:
		if r.TotalAmount.IsPositive() && id.IsNilPtr(r.AccountID) {
			return apperror.NewValidation("a money refund needs an account").
				WithDetail("field", "account_id")
		}
		if r.TotalAmount.IsPositive() && !r.PaymentMode.Valid() {
			return apperror.NewValidation("unknown payment mode").
				WithDetail("field", "payment_mode")
		}
	case RefundGold:
		if id.IsNilPtr(r.PartyID) {
			return apperror.NewValidation("a gold refund needs a stored party").
				WithDetail("field", "party_id")
		}
		if r.RefundGoldPurity != 0 {
			if err := r.RefundGoldPurity.Validate("refund_gold_purity"); err != nil {
				return err
			}
		}
	default:
		return apperror.NewValidation("refund mode must be money or gold").
			WithDetail("field", "refund_mode")
	}
	return nil
}

func withLine(err error, i int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("lineNo", i+1)
	}
	return err
}
