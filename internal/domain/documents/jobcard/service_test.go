package jobcard_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/numerator"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/jobcard"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/valuation"
	"goldshop/internal/infrastructure/storage/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store    *memstore.Store
	svc      *jobcard.Service
	invoices *invoice.Service
	gold     *goldledger.Service
	customer id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	engine := store.Engine()
	numbers := &numerator.MockGenerator{}
	invoices := invoice.NewService(store.Invoices(), engine, numbers, store)

	return &fixture{
		store:    store,
		svc:      jobcard.NewService(store.JobCards(), invoices, engine, numbers, store),
		invoices: invoices,
		gold:     goldledger.NewService(store.Gold(), store),
		customer: id.New(),
	}
}

func (f *fixture) input() jobcard.CreateInput {
	return jobcard.CreateInput{
		CustomerID:   id.Ptr(f.customer),
		CustomerName: "Aisha",
		CardType:     jobcard.CardRepair,
		Items: []jobcard.ItemInput{{
			Description:       "bracelet",
			Qty:               1,
			WeightIn:          d("10"),
			WeightOut:         d("9.5"),
			Purity:            916,
			WorkType:          "solder",
			MakingChargeType:  valuation.MakingChargeFlat,
			MakingChargeValue: d("20"),
		}},
		AdvanceInGoldGrams:  d("2"),
		AdvanceGoldRate:     d("25"),
		ExchangeInGoldGrams: d("1"),
		ExchangeGoldRate:    d("20"),
		GoldPurity:          916,
	}
}

func (f *fixture) complete(t *testing.T, doc *jobcard.JobCard) *jobcard.JobCard {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.AssignWorker(ctx, doc.ID, id.New(), "Ravi")
	require.NoError(t, err)
	doc, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusInProgress)
	require.NoError(t, err)
	doc, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusCompleted)
	require.NoError(t, err)
	return doc
}

func TestCreate_RecordsCustomerGold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, f.input())
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusPending, doc.Status)
	assert.Equal(t, "20.000", doc.TotalMakingCharge.StringFixed(3))
	assert.NotEmpty(t, doc.Number)

	totals, err := f.gold.TotalsByParty(ctx, f.customer)
	require.NoError(t, err)
	assert.Equal(t, "3.000", totals.In.StringFixed(3))
	assert.True(t, totals.Out.IsZero())
	assert.Equal(t, 2, totals.Count)
}

func TestChangeStatus_RequiresWorkerToComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, f.input())
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusCompleted)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	_, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusInProgress)
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusCompleted)
	assert.True(t, apperror.HasCode(err, apperror.CodeWorkerRequired))

	reloaded, err := f.svc.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusInProgress, reloaded.Status)

	_, err = f.svc.AssignWorker(ctx, doc.ID, id.New(), "Ravi")
	require.NoError(t, err)
	done, err := f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, jobcard.StatusCompleted, done.Status)

	_, err = f.svc.ChangeStatus(ctx, doc.ID, jobcard.StatusPending)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestConvertToInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, f.input())
	require.NoError(t, err)

	_, _, err = f.svc.ConvertToInvoice(ctx, doc.ID, jobcard.ConvertInput{MetalRate: d("10")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	f.complete(t, doc)
	card, inv, err := f.svc.ConvertToInvoice(ctx, doc.ID, jobcard.ConvertInput{EventID: "conv-1", MetalRate: d("10")})
	require.NoError(t, err)

	// 9.5g x 10 + making 20 = 115; advance 50 and exchange 20 are deducted.
	assert.Equal(t, "115.000", inv.GrandTotal.StringFixed(3))
	assert.Equal(t, "70.000", inv.CreditApplied.StringFixed(3))
	assert.Equal(t, "45.000", inv.BalanceDue.StringFixed(3))
	assert.Equal(t, invoice.PaymentPartial, inv.PaymentStatus)
	assert.Equal(t, invoice.StatusDraft, inv.Status)
	require.NotNil(t, inv.JobCardID)
	assert.Equal(t, doc.ID, *inv.JobCardID)
	assert.Contains(t, inv.Notes, doc.Number)
	assert.Contains(t, inv.Notes, "Deducted 70.000")
	assert.Equal(t, "bracelet (solder)", inv.Items[0].Description)

	assert.True(t, card.ConvertedToInvoice)
	assert.True(t, card.Locked)
	require.NotNil(t, card.InvoiceID)
	assert.Equal(t, inv.ID, *card.InvoiceID)

	// Replay returns the same invoice.
	_, again, err := f.svc.ConvertToInvoice(ctx, doc.ID, jobcard.ConvertInput{EventID: "conv-1", MetalRate: d("10")})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)

	_, _, err = f.svc.ConvertToInvoice(ctx, doc.ID, jobcard.ConvertInput{EventID: "conv-2", MetalRate: d("10")})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.AssignWorker(ctx, doc.ID, id.New(), "Other")
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentLocked))
}

func TestConvertToInvoice_DeductionCappedAtGrandTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.input()
	in.AdvanceInGoldGrams = d("10")
	in.AdvanceGoldRate = d("25")
	doc, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	f.complete(t, doc)

	_, inv, err := f.svc.ConvertToInvoice(ctx, doc.ID, jobcard.ConvertInput{})
	require.NoError(t, err)
	// No metal rate: only the making charge is billed.
	assert.Equal(t, "20.000", inv.GrandTotal.StringFixed(3))
	assert.Equal(t, "20.000", inv.CreditApplied.StringFixed(3))
	assert.True(t, inv.BalanceDue.IsZero())
	assert.Equal(t, invoice.PaymentPaid, inv.PaymentStatus)
}

func TestCreate_WalkInRecordsNoGold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.input()
	in.CustomerID = nil
	in.IsWalkIn = true
	in.WalkInName = "Visitor"
	doc, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	entries, err := f.store.Gold().ListByRecorder(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, f.input())
	require.NoError(t, err)

	inches := d("6")
	updated, err := f.svc.Update(ctx, doc.ID, jobcard.UpdateInput{
		CardType: jobcard.CardResize,
		Items: []jobcard.ItemInput{{
			Description: "ring", Qty: 1, WeightIn: d("4"),
			MakingChargeType: valuation.MakingChargePerInch, MakingChargeValue: d("2.5"), Inches: &inches,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, jobcard.CardResize, updated.CardType)
	assert.Equal(t, "15.000", updated.TotalMakingCharge.StringFixed(3))
	// Customer gold is fixed at creation.
	assert.Equal(t, "2.000", updated.AdvanceInGoldGrams.StringFixed(3))

	_, err = f.svc.Update(ctx, doc.ID, jobcard.UpdateInput{CardType: jobcard.CardRepair})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
