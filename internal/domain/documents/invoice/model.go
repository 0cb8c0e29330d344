// Package invoice provides the sales invoice document.
//
// An invoice is edited as a draft and finalized once; finalization moves
// stock out and posts the payments taken at creation. The payment status
// (unpaid, partial, paid) follows paid_amount against grand_total and is
// independent of the draft/finalized axis. A negative balance due is
// customer credit and is never clamped.
package invoice

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
	"goldshop/internal/domain/valuation"
)

// Status is the lifecycle status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

// PaymentStatus is derived from paid amount and grand total.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

var hundred = decimal.NewFromInt(100)

// Item is one invoice line.
type Item struct {
	LineNo      int    `json:"line_no"`
	Description string `json:"description,omitempty"`
	// HeaderID is the inventory category the piece leaves on finalize.
	HeaderID *id.ID `json:"header_id,omitempty"`
	Qty      int    `json:"qty"`

	GrossWeight decimal.Decimal `json:"gross_weight" precision:"weight"`
	StoneWeight decimal.Decimal `json:"stone_weight" precision:"weight"`
	NetWeight   decimal.Decimal `json:"net_weight" precision:"weight"`
	Purity      types.Purity    `json:"purity"`
	MetalRate   decimal.Decimal `json:"metal_rate" precision:"rate"`

	MakingChargeType  valuation.MakingChargeType `json:"making_charge_type"`
	MakingChargeValue decimal.Decimal            `json:"making_charge_value" precision:"money"`
	Inches            *decimal.Decimal           `json:"inches,omitempty" precision:"weight"`
	StoneCharges      decimal.Decimal            `json:"stone_charges" precision:"money"`
	VATPercent        decimal.Decimal            `json:"vat_percent" precision:"rate"`

	MetalValue   decimal.Decimal `json:"gold_value" precision:"money"`
	MakingCharge decimal.Decimal `json:"making_charge" precision:"money"`
	Subtotal     decimal.Decimal `json:"subtotal" precision:"money"`
	VATAmount    decimal.Decimal `json:"vat_amount" precision:"money"`
	LineTotal    decimal.Decimal `json:"line_total" precision:"money"`
}

// Compute derives net weight (gross minus stones when not given) and the
// line money fields.
func (it *Item) Compute() error {
	if it.Qty <= 0 {
		it.Qty = 1
	}
	if err := types.NonNegative("gross_weight", it.GrossWeight); err != nil {
		return err
	}
	if err := types.NonNegative("stone_weight", it.StoneWeight); err != nil {
		return err
	}
	if it.NetWeight.IsZero() {
		it.NetWeight = it.GrossWeight.Sub(it.StoneWeight)
	}
	if it.NetWeight.IsNegative() {
		return apperror.NewValidation("stone weight exceeds gross weight").
			WithDetail("field", "stone_weight")
	}
	it.NetWeight = types.RoundWeight(it.NetWeight)
	if err := types.NonNegative("metal_rate", it.MetalRate); err != nil {
		return err
	}
	if err := types.NonNegative("stone_charges", it.StoneCharges); err != nil {
		return err
	}
	if it.VATPercent.IsNegative() || it.VATPercent.GreaterThan(hundred) {
		return apperror.NewValidation("vat percent must be between 0 and 100").
			WithDetail("field", "vat_percent")
	}
	if it.Purity != 0 {
		if err := it.Purity.Validate("purity"); err != nil {
			return err
		}
	}

	making, err := valuation.MakingCharge(it.MakingChargeType, it.MakingChargeValue, it.NetWeight, it.Inches)
	if err != nil {
		return err
	}
	if it.MakingChargeType == "" {
		it.MakingChargeType = valuation.MakingChargeFlat
	}

	it.MetalValue = types.RoundMoney(it.NetWeight.Mul(it.MetalRate))
	it.MakingCharge = making
	it.Subtotal = types.RoundMoney(it.MetalValue.Add(it.MakingCharge).Add(it.StoneCharges))
	it.VATAmount = types.RoundMoney(it.Subtotal.Mul(it.VATPercent).Div(hundred))
	it.LineTotal = it.Subtotal.Add(it.VATAmount)
	return nil
}

// Breakdown is the calculation written to the stock movement notes.
func (it *Item) Breakdown() string {
	return fmt.Sprintf("sold net %sg (gross %sg, stones %sg) purity %d x rate %s = %s; making %s %s = %s; stock at %d",
		it.NetWeight.StringFixed(types.WeightPlaces),
		it.GrossWeight.StringFixed(types.WeightPlaces),
		it.StoneWeight.StringFixed(types.WeightPlaces),
		it.Purity,
		it.MetalRate.StringFixed(types.RatePlaces),
		it.MetalValue.StringFixed(types.MoneyPlaces),
		it.MakingChargeType,
		it.MakingChargeValue.StringFixed(types.MoneyPlaces),
		it.MakingCharge.StringFixed(types.MoneyPlaces),
		types.ValuationPurity,
	)
}

// GoldReceived is gold handed over by the customer at creation. Its value
// counts as a payment immediately.
type GoldReceived struct {
	Weight  decimal.Decimal    `db:"gold_received_weight" json:"gold_received_weight" precision:"weight"`
	Rate    decimal.Decimal    `db:"gold_received_rate" json:"gold_received_rate" precision:"rate"`
	Purity  types.Purity       `db:"gold_received_purity" json:"gold_received_purity"`
	Purpose goldledger.Purpose `db:"gold_received_purpose" json:"gold_received_purpose,omitempty"`
	Value   decimal.Decimal    `db:"gold_received_value" json:"gold_received_value" precision:"value"`

	// AccountID is the asset account the gold value is booked to on
	// finalize. Without it only the gold ledger records the gold.
	AccountID *id.ID `db:"gold_account_id" json:"gold_account_id,omitempty"`
}

// Present reports whether gold was received.
func (g GoldReceived) Present() bool {
	return g.Weight.IsPositive()
}

// Invoice is a sale to a customer or a walk-in buyer.
type Invoice struct {
	entity.Document
	entity.Counterparty

	Status        Status        `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`

	Items []Item `db:"items" json:"items"`

	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal" precision:"money"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount" precision:"money"`
	TaxableAmount  decimal.Decimal `db:"taxable_amount" json:"taxable_amount" precision:"money"`
	VATTotal       decimal.Decimal `db:"vat_total" json:"vat_total" precision:"money"`
	GrandTotal     decimal.Decimal `db:"grand_total" json:"grand_total" precision:"money"`

	GoldReceived

	// CreditApplied is value settled before the invoice existed, such as
	// the advance and exchange gold of a converted job card.
	CreditApplied decimal.Decimal `db:"credit_applied" json:"credit_applied" precision:"money"`

	// InitialPayments are money payments taken at creation; they are
	// posted to the ledger on finalize.
	InitialPayments []ledger.Payment `db:"initial_payments" json:"initial_payments,omitempty"`

	PaidAmount decimal.Decimal `db:"paid_amount" json:"paid_amount" precision:"money"`
	BalanceDue decimal.Decimal `db:"balance_due" json:"balance_due" precision:"money"`

	JobCardID *id.ID `db:"job_card_id" json:"job_card_id,omitempty"`
}

// NewInvoice creates an empty draft invoice.
func NewInvoice() *Invoice {
	return &Invoice{
		Document:      entity.NewDocument(),
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
	}
}

// Recalculate recomputes lines, totals, the gold-received value and the
// payment state. Payments added after finalize are preserved.
func (inv *Invoice) Recalculate() error {
	if err := types.NonNegative("discount_amount", inv.DiscountAmount); err != nil {
		return err
	}

	subtotal, vat := decimal.Zero, decimal.Zero
	for i := range inv.Items {
		inv.Items[i].LineNo = i + 1
		if err := inv.Items[i].Compute(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("lineNo", i+1)
			}
			return err
		}
		subtotal = subtotal.Add(inv.Items[i].Subtotal)
		vat = vat.Add(inv.Items[i].VATAmount)
	}
	if inv.DiscountAmount.GreaterThan(subtotal) {
		return apperror.NewValidation("discount exceeds subtotal").
			WithDetail("field", "discount_amount")
	}

	inv.Subtotal = types.RoundMoney(subtotal)
	inv.TaxableAmount = inv.Subtotal.Sub(inv.DiscountAmount)
	inv.VATTotal = types.RoundMoney(vat)
	inv.GrandTotal = inv.TaxableAmount.Add(inv.VATTotal)

	inv.GoldReceived.Value = valuation.GoldReceivedValue(inv.GoldReceived.Weight, inv.GoldReceived.Rate)
	return nil
}

// creationPaid is everything counted as paid when the invoice is created.
func (inv *Invoice) creationPaid() decimal.Decimal {
	paid := inv.GoldReceived.Value.Add(inv.CreditApplied)
	for _, p := range inv.InitialPayments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// SettleCreation sets the paid amount to what was paid at creation. Only
// valid on drafts, which cannot carry later payments.
func (inv *Invoice) SettleCreation() {
	inv.PaidAmount = types.RoundMoney(inv.creationPaid())
	inv.recompute()
}

// ApplyPayment adds amount to the paid total.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) {
	inv.PaidAmount = types.RoundMoney(inv.PaidAmount.Add(amount))
	inv.recompute()
}

func (inv *Invoice) recompute() {
	inv.BalanceDue = types.RoundMoney(inv.GrandTotal.Sub(inv.PaidAmount))
	switch {
	case types.IsSettled(inv.BalanceDue):
		inv.PaymentStatus = PaymentPaid
	case inv.PaidAmount.IsPositive():
		inv.PaymentStatus = PaymentPartial
	default:
		inv.PaymentStatus = PaymentUnpaid
	}
}

// IsFinalized reports whether the invoice was finalized.
func (inv *Invoice) IsFinalized() bool {
	return inv.Status == StatusFinalized
}

// CanEdit rejects edits of deleted or finalized invoices.
func (inv *Invoice) CanEdit() error {
	if inv.IsDeleted {
		return apperror.NewNotFound(EntityType, inv.ID)
	}
	if inv.IsFinalized() {
		return apperror.NewBusinessRule(apperror.CodeDocumentFinalized, "invoice is finalized").
			WithDetail("id", inv.ID)
	}
	return nil
}

// StockMovements builds one Stock OUT per line with an inventory header.
func (inv *Invoice) StockMovements() []*stock.Movement {
	var out []*stock.Movement
	for i := range inv.Items {
		it := &inv.Items[i]
		if id.IsNilPtr(it.HeaderID) || (!it.NetWeight.IsPositive() && it.Qty == 0) {
			continue
		}
		m := stock.NewMovement(stock.MovementStockOut, *it.HeaderID, it.Qty, it.NetWeight, it.Breakdown())
		m.Description = it.Description
		out = append(out, m)
	}
	return out
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}
	if err := inv.ValidateCounterparty(ctx, "customer_id"); err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	if err := types.NonNegative("credit_applied", inv.CreditApplied); err != nil {
		return err
	}

	g := inv.GoldReceived
	if g.Present() {
		if !g.Rate.IsPositive() {
			return apperror.NewValidation("gold received rate must be positive").
				WithDetail("field", "gold_received_rate")
		}
		if err := g.Purity.Validate("gold_received_purity"); err != nil {
			return err
		}
		if g.Purpose != goldledger.PurposeAdvanceGold && g.Purpose != goldledger.PurposeExchange {
			return apperror.NewValidation("gold received purpose must be advance_gold or exchange").
				WithDetail("field", "gold_received_purpose")
		}
	} else if g.Weight.IsNegative() {
		return apperror.NewValidation("gold received weight must not be negative").
			WithDetail("field", "gold_received_weight")
	}
	return nil
}
