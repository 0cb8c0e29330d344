// Package purchase provides the gold purchase document and its payment
// state machine: Draft -> Partially Paid -> Paid (locked).
package purchase

import (
	"context"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/domain/valuation"
)

// Status is the payment status of a purchase.
type Status string

const (
	StatusDraft         Status = "Draft"
	StatusPartiallyPaid Status = "Partially Paid"
	StatusPaid          Status = "Paid"
)

// Item is one independently valued lot of a multi-item purchase.
type Item struct {
	LineNo        int             `json:"line_no"`
	Description   string          `json:"description,omitempty"`
	HeaderID      *id.ID          `json:"header_id,omitempty"`
	WeightGrams   decimal.Decimal `json:"weight_grams" precision:"weight"`
	EnteredPurity types.Purity    `json:"entered_purity"`
	RatePerGram   decimal.Decimal `json:"rate_per_gram" precision:"rate"`
	Amount        decimal.Decimal `json:"amount" precision:"money"`
}

// Purchase is gold bought from a vendor or a walk-in seller.
//
// Stock is valued at the fixed valuation purity whatever the vendor states;
// the conversion factor is the shop setting in force at creation.
type Purchase struct {
	entity.Document
	entity.Counterparty

	Description string `db:"description" json:"description,omitempty"`

	// HeaderID is the inventory category receiving the gold of a
	// single-lot purchase, and the default for items without one.
	HeaderID *id.ID `db:"header_id" json:"header_id,omitempty"`

	WeightGrams          decimal.Decimal `db:"weight_grams" json:"weight_grams" precision:"weight"`
	EnteredPurity        types.Purity    `db:"entered_purity" json:"entered_purity"`
	ValuationPurityFixed types.Purity    `db:"valuation_purity_fixed" json:"valuation_purity_fixed"`
	ConversionFactor     decimal.Decimal `db:"conversion_factor" json:"conversion_factor" precision:"factor"`
	RatePerGram          decimal.Decimal `db:"rate_per_gram" json:"rate_per_gram" precision:"rate"`

	AmountTotal     decimal.Decimal `db:"amount_total" json:"amount_total" precision:"money"`
	PaidAmountMoney decimal.Decimal `db:"paid_amount_money" json:"paid_amount_money" precision:"money"`
	BalanceDueMoney decimal.Decimal `db:"balance_due_money" json:"balance_due_money" precision:"money"`
	Status          Status          `db:"status" json:"status"`

	Items []Item `db:"items" json:"items,omitempty"`
}

// NewPurchase creates an empty draft purchase.
func NewPurchase() *Purchase {
	return &Purchase{
		Document:             entity.NewDocument(),
		ValuationPurityFixed: types.ValuationPurity,
		Status:               StatusDraft,
	}
}

// Revalue recomputes line amounts and the total with factor and returns the
// per-lot valuations. Payments already made are kept.
func (p *Purchase) Revalue(factor decimal.Decimal) ([]valuation.Purchase, error) {
	p.ConversionFactor = types.RoundFactor(factor)
	p.ValuationPurityFixed = types.ValuationPurity

	if len(p.Items) == 0 {
		v, err := valuation.PurchaseAmount(p.WeightGrams, p.EnteredPurity, p.ConversionFactor, p.RatePerGram)
		if err != nil {
			return nil, err
		}
		p.AmountTotal = v.Amount
		p.recompute()
		return []valuation.Purchase{v}, nil
	}

	lots := make([]valuation.Lot, len(p.Items))
	for i, it := range p.Items {
		lots[i] = valuation.Lot{Weight: it.WeightGrams, Purity: it.EnteredPurity, Rate: it.RatePerGram}
	}
	total, vals, err := valuation.PurchaseTotal(lots, p.ConversionFactor)
	if err != nil {
		return nil, err
	}

	weight := decimal.Zero
	for i := range p.Items {
		p.Items[i].LineNo = i + 1
		p.Items[i].Amount = vals[i].Amount
		weight = weight.Add(p.Items[i].WeightGrams)
	}
	p.WeightGrams = types.RoundWeight(weight)
	p.AmountTotal = total
	p.recompute()
	return vals, nil
}

// ApplyPayment adds amount to the paid total and moves the status.
func (p *Purchase) ApplyPayment(amount decimal.Decimal) {
	p.PaidAmountMoney = types.RoundMoney(p.PaidAmountMoney.Add(amount))
	p.recompute()
}

// recompute derives balance, status and lock from total and paid amount.
// The balance is floored at zero; overpayment is not carried as credit.
func (p *Purchase) recompute() {
	balance := types.RoundMoney(p.AmountTotal.Sub(p.PaidAmountMoney))
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	p.BalanceDueMoney = balance

	switch {
	case types.IsSettled(balance):
		p.Status = StatusPaid
	case p.PaidAmountMoney.IsPositive():
		p.Status = StatusPartiallyPaid
	default:
		p.Status = StatusDraft
	}
	p.Locked = p.Status == StatusPaid
}

// StockMovements builds one Stock IN per lot with an inventory header.
// vals must come from the latest Revalue.
func (p *Purchase) StockMovements(vals []valuation.Purchase) []*stock.Movement {
	var out []*stock.Movement
	add := func(header *id.ID, desc string, v valuation.Purchase) {
		if id.IsNilPtr(header) {
			return
		}
		m := stock.NewMovement(stock.MovementStockIn, *header, 1, v.Weight, v.Breakdown())
		m.Description = desc
		m.Period = p.Date
		out = append(out, m)
	}

	if len(p.Items) == 0 {
		if len(vals) == 1 {
			add(p.HeaderID, p.Description, vals[0])
		}
		return out
	}
	for i, it := range p.Items {
		if i >= len(vals) {
			break
		}
		header := it.HeaderID
		if id.IsNilPtr(header) {
			header = p.HeaderID
		}
		add(header, it.Description, vals[i])
	}
	return out
}

// Validate implements entity.Validatable.
func (p *Purchase) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}
	if err := p.ValidateCounterparty(ctx, "vendor_party_id"); err != nil {
		return err
	}
	if p.ValuationPurityFixed != types.ValuationPurity {
		return apperror.NewValidation("valuation purity is fixed").
			WithDetail("field", "valuation_purity_fixed")
	}
	if err := types.NonNegative("paid_amount_money", p.PaidAmountMoney); err != nil {
		return err
	}
	if len(p.Description) > 500 {
		return apperror.NewValidation("description must be at most 500 characters").
			WithDetail("field", "description")
	}
	return nil
}
