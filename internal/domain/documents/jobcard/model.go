// Package jobcard provides repair and custom work orders and their
// conversion into invoices.
package jobcard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/valuation"
)

// Status is the work status: pending -> in_progress -> completed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// next is the only status each status may move to.
var next = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CardType classifies the work.
type CardType string

const (
	CardRepair CardType = "repair"
	CardCustom CardType = "custom"
	CardPolish CardType = "polish"
	CardResize CardType = "resize"
)

// Item is one piece under work.
type Item struct {
	LineNo      int    `json:"line_no"`
	Category    string `json:"category,omitempty"`
	HeaderID    *id.ID `json:"header_id,omitempty"`
	Description string `json:"description,omitempty"`
	Qty         int    `json:"qty"`

	WeightIn  decimal.Decimal `json:"weight_in" precision:"weight"`
	WeightOut decimal.Decimal `json:"weight_out" precision:"weight"`
	Purity    types.Purity    `json:"purity"`
	WorkType  string          `json:"work_type,omitempty"`

	MakingChargeType  valuation.MakingChargeType `json:"making_charge_type"`
	MakingChargeValue decimal.Decimal            `json:"making_charge_value" precision:"money"`
	Inches            *decimal.Decimal           `json:"inches,omitempty" precision:"weight"`
	MakingCharge      decimal.Decimal            `json:"making_charge" precision:"money"`

	Remarks string `json:"remarks,omitempty"`
}

// FinishedWeight is weight_out, or weight_in while the piece is not weighed out.
func (it *Item) FinishedWeight() decimal.Decimal {
	if it.WeightOut.IsPositive() {
		return it.WeightOut
	}
	return it.WeightIn
}

// GoldIn is gold the customer handed over against the job.
type GoldIn struct {
	Grams decimal.Decimal `json:"grams" precision:"weight"`
	Rate  decimal.Decimal `json:"rate" precision:"rate"`
}

// Value is grams x rate in money.
func (g GoldIn) Value() decimal.Decimal {
	return types.RoundMoney(g.Grams.Mul(g.Rate))
}

// JobCard is a work order for a customer's piece or a custom order.
type JobCard struct {
	entity.Document
	entity.Counterparty

	CardType CardType `db:"card_type" json:"card_type"`
	Status   Status   `db:"status" json:"status"`

	WorkerID     *id.ID     `db:"worker_id" json:"worker_id,omitempty"`
	WorkerName   string     `db:"worker_name" json:"worker_name,omitempty"`
	DeliveryDate *time.Time `db:"delivery_date" json:"delivery_date,omitempty"`

	Items []Item `db:"items" json:"items"`

	AdvanceInGoldGrams  decimal.Decimal `db:"advance_in_gold_grams" json:"advance_in_gold_grams" precision:"weight"`
	AdvanceGoldRate     decimal.Decimal `db:"advance_gold_rate" json:"advance_gold_rate" precision:"rate"`
	ExchangeInGoldGrams decimal.Decimal `db:"exchange_in_gold_grams" json:"exchange_in_gold_grams" precision:"weight"`
	ExchangeGoldRate    decimal.Decimal `db:"exchange_gold_rate" json:"exchange_gold_rate" precision:"rate"`
	// GoldPurity is the purity of the advance and exchange gold.
	GoldPurity types.Purity `db:"gold_purity" json:"gold_purity,omitempty"`

	TotalMakingCharge decimal.Decimal `db:"total_making_charge" json:"total_making_charge" precision:"money"`

	ConvertedToInvoice bool   `db:"converted_to_invoice" json:"converted_to_invoice"`
	InvoiceID          *id.ID `db:"invoice_id" json:"invoice_id,omitempty"`
}

// NewJobCard creates a pending job card.
func NewJobCard(cardType CardType) *JobCard {
	return &JobCard{
		Document: entity.NewDocument(),
		CardType: cardType,
		Status:   StatusPending,
	}
}

// Advance is the advance gold handed over.
func (j *JobCard) Advance() GoldIn {
	return GoldIn{Grams: j.AdvanceInGoldGrams, Rate: j.AdvanceGoldRate}
}

// Exchange is the old gold handed over in exchange.
func (j *JobCard) Exchange() GoldIn {
	return GoldIn{Grams: j.ExchangeInGoldGrams, Rate: j.ExchangeGoldRate}
}

// Recalculate recomputes per-line and total making charges.
func (j *JobCard) Recalculate() error {
	total := decimal.Zero
	for i := range j.Items {
		it := &j.Items[i]
		it.LineNo = i + 1
		if it.Qty <= 0 {
			it.Qty = 1
		}
		if it.MakingChargeType == "" {
			it.MakingChargeType = valuation.MakingChargeFlat
		}
		charge, err := valuation.MakingCharge(it.MakingChargeType, it.MakingChargeValue, it.FinishedWeight(), it.Inches)
		if err != nil {
			return withLine(err, i)
		}
		it.MakingCharge = charge
		total = total.Add(charge)
	}
	j.TotalMakingCharge = types.RoundMoney(total)
	return nil
}

// Transition moves the status one step forward. Completing requires an
// assigned worker.
func (j *JobCard) Transition(to Status) error {
	if j.Status == to {
		return nil
	}
	if next[j.Status] != to {
		return apperror.NewInvalidTransition(EntityType, string(j.Status), string(to))
	}
	if to == StatusCompleted && id.IsNilPtr(j.WorkerID) {
		return apperror.NewBusinessRule(apperror.CodeWorkerRequired, "a worker must be assigned before the job card is completed").
			WithDetail("field", "worker_id")
	}
	j.Status = to
	return nil
}

// CanConvert rejects conversion of unfinished or already converted cards.
func (j *JobCard) CanConvert() error {
	if j.IsDeleted {
		return apperror.NewNotFound(EntityType, j.ID)
	}
	if j.ConvertedToInvoice {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "job card was already converted to an invoice").
			WithDetail("invoice_id", j.InvoiceID)
	}
	if j.Status != StatusCompleted {
		return apperror.NewInvalidTransition(EntityType, string(j.Status), "converted")
	}
	return nil
}

// Deduction is the advance and exchange gold value settled against the
// invoice: advance value plus exchange value, never below zero.
func (j *JobCard) Deduction() decimal.Decimal {
	return types.MaxDecimal(j.Advance().Value().Add(j.Exchange().Value()), decimal.Zero)
}

// ConversionNotes is the breakdown recorded on the converted invoice.
func (j *JobCard) ConversionNotes(grandTotal, applied decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Converted from job card %s.", j.Number)
	fmt.Fprintf(&b, " Grand total %s.", grandTotal.StringFixed(types.MoneyPlaces))
	if adv := j.Advance(); adv.Grams.IsPositive() {
		fmt.Fprintf(&b, " Advance gold %sg x %s = %s.",
			adv.Grams.StringFixed(types.WeightPlaces), adv.Rate.StringFixed(types.RatePlaces),
			adv.Value().StringFixed(types.MoneyPlaces))
	}
	if ex := j.Exchange(); ex.Grams.IsPositive() {
		fmt.Fprintf(&b, " Exchange gold %sg x %s = %s.",
			ex.Grams.StringFixed(types.WeightPlaces), ex.Rate.StringFixed(types.RatePlaces),
			ex.Value().StringFixed(types.MoneyPlaces))
	}
	fmt.Fprintf(&b, " Deducted %s. Balance due %s.",
		applied.StringFixed(types.MoneyPlaces),
		types.RoundMoney(grandTotal.Sub(applied)).StringFixed(types.MoneyPlaces))
	return b.String()
}

// Validate implements entity.Validatable.
func (j *JobCard) Validate(ctx context.Context) error {
	if err := j.Document.Validate(ctx); err != nil {
		return err
	}
	if err := j.ValidateCounterparty(ctx, "customer_id"); err != nil {
		return err
	}
	switch j.CardType {
	case CardRepair, CardCustom, CardPolish, CardResize:
	default:
		return apperror.NewValidation("card type must be repair, custom, polish or resize").
			WithDetail("field", "card_type")
	}
	if len(j.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	for i, it := range j.Items {
		if _, err := types.PositiveWeight("weight_in", it.WeightIn); err != nil {
			return withLine(err, i)
		}
		if err := types.NonNegative("weight_out", it.WeightOut); err != nil {
			return withLine(err, i)
		}
		if it.Purity != 0 {
			if err := it.Purity.Validate("purity"); err != nil {
				return withLine(err, i)
			}
		}
	}
	for field, v := range map[string]decimal.Decimal{
		"advance_in_gold_grams":  j.AdvanceInGoldGrams,
		"advance_gold_rate":      j.AdvanceGoldRate,
		"exchange_in_gold_grams": j.ExchangeInGoldGrams,
		"exchange_gold_rate":     j.ExchangeGoldRate,
	} {
		if err := types.NonNegative(field, v); err != nil {
			return err
		}
	}
	if (j.AdvanceInGoldGrams.IsPositive() || j.ExchangeInGoldGrams.IsPositive()) && j.GoldPurity != 0 {
		if err := j.GoldPurity.Validate("gold_purity"); err != nil {
			return err
		}
	}
	return nil
}

func withLine(err error, i int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("lineNo", i+1)
	}
	return err
}
