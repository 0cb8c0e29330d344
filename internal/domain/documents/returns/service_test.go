package returns_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/numerator"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/documents/returns"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/domain/settings"
	"goldshop/internal/infrastructure/storage/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc       *returns.Service
	invoices  *invoice.Service
	purchases *purchase.Service
	ledger    *ledger.Service
	gold      *goldledger.Service
	stock     *stock.Service
	cash      *ledger.Account
	party     id.ID
	header    id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	engine := store.Engine()
	numbers := &numerator.MockGenerator{}
	stockSvc := stock.NewService(store.Stock())
	settingsSvc := settings.NewService(store.Settings(), nil, store, types.DefaultConversionFactor)
	ledgerSvc := ledger.NewService(store.Accounts(), store.Transactions(), store)

	cash, err := ledgerSvc.CreateAccount(ctx, ledger.CreateAccountInput{
		Name:           "Cash",
		AccountType:    ledger.AccountCash,
		OpeningBalance: d("1000"),
	})
	require.NoError(t, err)

	refs := returns.DocumentReferences{Invoices: store.Invoices(), Purchases: store.Purchases()}
	return &fixture{
		svc:       returns.NewService(store.Returns(), refs, engine, numbers, store),
		invoices:  invoice.NewService(store.Invoices(), engine, numbers, store),
		purchases: purchase.NewService(store.Purchases(), engine, stockSvc, settingsSvc, numbers, store),
		ledger:    ledgerSvc,
		gold:      goldledger.NewService(store.Gold(), store),
		stock:     stockSvc,
		cash:      cash,
		party:     id.New(),
		header:    id.New(),
	}
}

// finalizedInvoice sells 10g at 30 per gram.
func (f *fixture) finalizedInvoice(t *testing.T) *invoice.Invoice {
	t.Helper()
	ctx := context.Background()
	doc, err := f.invoices.Create(ctx, invoice.CreateInput{
		CustomerID:   id.Ptr(f.party),
		CustomerName: "Fatima",
		Items: []invoice.ItemInput{{
			Description: "ring",
			HeaderID:    id.Ptr(f.header),
			Qty:         1,
			GrossWeight: d("10"),
			Purity:      916,
			MetalRate:   d("30"),
		}},
	})
	require.NoError(t, err)
	doc, err = f.invoices.Finalize(ctx, doc.ID, "")
	require.NoError(t, err)
	require.Equal(t, "300.000", doc.GrandTotal.StringFixed(3))
	return doc
}

func (f *fixture) saleReturn(ref id.ID, weight, amount string) returns.CreateInput {
	return returns.CreateInput{
		ReturnType:  returns.SaleReturn,
		ReferenceID: ref,
		Items: []returns.ItemInput{{
			Description: "ring",
			HeaderID:    id.Ptr(f.header),
			Qty:         1,
			WeightGrams: d(weight),
			Purity:      916,
			Amount:      d(amount),
		}},
		RefundInput: returns.RefundInput{
			RefundMode: returns.RefundMoney,
			AccountID:  id.Ptr(f.cash.ID),
		},
	}
}

func (f *fixture) cashBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), f.cash.ID)
	require.NoError(t, err)
	return acc.CurrentBalance
}

func TestSaleReturn_FinalizeRefundsAndRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.finalizedInvoice(t)

	doc, err := f.svc.Create(ctx, f.saleReturn(inv.ID, "4", "120"))
	require.NoError(t, err)
	assert.Equal(t, returns.StatusDraft, doc.Status)
	assert.Equal(t, inv.Number, doc.ReferenceNumber)
	assert.Equal(t, "Fatima", doc.PartyName)
	assert.Equal(t, ledger.ModeCash, doc.PaymentMode)
	assert.Equal(t, "1000.000", f.cashBalance(t).StringFixed(3), "drafts post nothing")

	doc, err = f.svc.Finalize(ctx, doc.ID, "ret-1")
	require.NoError(t, err)
	assert.True(t, doc.IsFinalized())
	assert.True(t, doc.Locked)
	assert.Equal(t, "880.000", f.cashBalance(t).StringFixed(3))

	totals, err := f.stock.GetHeaderTotals(ctx, f.header)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Qty)
	assert.Equal(t, "-6.000", totals.Weight.StringFixed(3))

	remaining, err := f.svc.Remaining(ctx, returns.SaleReturn, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "180.000", remaining.Amount.StringFixed(3))
	assert.Equal(t, "6.000", remaining.Weight.StringFixed(3))
	assert.Equal(t, 1, remaining.Count)

	// Replaying the finalize event posts nothing twice.
	_, err = f.svc.Finalize(ctx, doc.ID, "ret-1")
	require.NoError(t, err)
	assert.Equal(t, "880.000", f.cashBalance(t).StringFixed(3))

	_, err = f.svc.Finalize(ctx, doc.ID, "ret-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))
	_, err = f.svc.Update(ctx, doc.ID, returns.UpdateInput{
		Items:       f.saleReturn(inv.ID, "1", "1").Items,
		RefundInput: returns.RefundInput{RefundMode: returns.RefundMoney, AccountID: id.Ptr(f.cash.ID)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))
	err = f.svc.Delete(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))
}

func TestSaleReturn_DraftsDoNotConsumeRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.finalizedInvoice(t)

	first, err := f.svc.Create(ctx, f.saleReturn(inv.ID, "4", "120"))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.saleReturn(inv.ID, "7", "100"))
	require.NoError(t, err, "only finalized returns count against the invoice")

	_, err = f.svc.Finalize(ctx, first.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, second.ID, "")
	require.True(t, apperror.HasCode(err, apperror.CodeReturnExceedsOriginal))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "total_weight_grams", appErr.Details["field"])
	assert.Equal(t, "6", appErr.Details["available"])

	doc, err := f.svc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, returns.StatusDraft, doc.Status)
	assert.Equal(t, "880.000", f.cashBalance(t).StringFixed(3))
}

func TestSaleReturn_AmountExceedsInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.finalizedInvoice(t)

	_, err := f.svc.Create(context.Background(), f.saleReturn(inv.ID, "1", "300.01"))
	require.True(t, apperror.HasCode(err, apperror.CodeReturnExceedsOriginal))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "total_amount", appErr.Details["field"])
}

func TestSaleReturn_RequiresFinalizedInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.invoices.Create(ctx, invoice.CreateInput{
		WalkInName: "Walk-in",
		IsWalkIn:   true,
		Items: []invoice.ItemInput{{
			Description: "chain", Qty: 1, GrossWeight: d("2"), Purity: 916, MetalRate: d("30"),
		}},
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.saleReturn(draft.ID, "1", "10"))
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.Create(ctx, f.saleReturn(id.New(), "1", "10"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestPurchaseReturn_GoldRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.purchases.Create(ctx, purchase.CreateInput{
		VendorPartyID: id.Ptr(f.party),
		VendorName:    "Muscat Bullion",
		HeaderID:      id.Ptr(f.header),
		WeightGrams:   d("10.5"),
		EnteredPurity: 999,
		RatePerGram:   d("50.0"),
	})
	require.NoError(t, err)

	doc, err := f.svc.Create(ctx, returns.CreateInput{
		ReturnType:  returns.PurchaseReturn,
		ReferenceID: p.ID,
		Items: []returns.ItemInput{{
			HeaderID: id.Ptr(f.header), WeightGrams: d("5"), Purity: 916, Amount: d("100"),
		}},
		RefundInput: returns.RefundInput{RefundMode: returns.RefundGold},
	})
	require.NoError(t, err)
	assert.Equal(t, "5.000", doc.RefundGoldGrams.StringFixed(3), "gold refund defaults to the returned weight")

	_, err = f.svc.Finalize(ctx, doc.ID, "")
	require.NoError(t, err)

	gold, err := f.gold.TotalsByParty(ctx, f.party)
	require.NoError(t, err)
	assert.Equal(t, "5.000", gold.In.StringFixed(3))
	assert.True(t, gold.Out.IsZero())

	totals, err := f.stock.GetHeaderTotals(ctx, f.header)
	require.NoError(t, err)
	assert.Equal(t, "5.500", totals.Weight.StringFixed(3))
	assert.Equal(t, "1000.000", f.cashBalance(t).StringFixed(3))
}

func TestGoldRefund_RequiresStoredParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.purchases.Create(ctx, purchase.CreateInput{
		IsWalkIn:         true,
		WalkInVendorName: "Street seller",
		HeaderID:         id.Ptr(f.header),
		WeightGrams:      d("3"),
		EnteredPurity:    916,
		RatePerGram:      d("20"),
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, returns.CreateInput{
		ReturnType:  returns.PurchaseReturn,
		ReferenceID: p.ID,
		Items:       []returns.ItemInput{{WeightGrams: d("1"), Amount: d("10")}},
		RefundInput: returns.RefundInput{RefundMode: returns.RefundGold},
	})
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "party_id", appErr.Details["field"])
}

func TestUpdateAndDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.finalizedInvoice(t)

	doc, err := f.svc.Create(ctx, f.saleReturn(inv.ID, "4", "120"))
	require.NoError(t, err)

	upd := f.saleReturn(inv.ID, "2", "60")
	doc, err = f.svc.Update(ctx, doc.ID, returns.UpdateInput{Items: upd.Items, RefundInput: upd.RefundInput})
	require.NoError(t, err)
	assert.Equal(t, "2.000", doc.TotalWeightGrams.StringFixed(3))
	assert.Equal(t, "60.000", doc.TotalAmount.StringFixed(3))
	assert.Equal(t, 2, doc.Version)

	_, err = f.svc.Update(ctx, doc.ID, returns.UpdateInput{Items: f.saleReturn(inv.ID, "11", "60").Items, RefundInput: upd.RefundInput})
	assert.True(t, apperror.HasCode(err, apperror.CodeReturnExceedsOriginal))

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	_, err = f.svc.GetByID(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
}
