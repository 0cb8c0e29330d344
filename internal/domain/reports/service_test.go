package reports_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/numerator"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/domain/reports"
	"goldshop/internal/domain/settings"
	"goldshop/internal/infrastructure/storage/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc       *reports.Service
	ledger    *ledger.Service
	invoices  *invoice.Service
	purchases *purchase.Service
}

func newFixture() *fixture {
	store := memstore.New()
	engine := store.Engine()
	numbers := &numerator.MockGenerator{}
	settingsSvc := settings.NewService(store.Settings(), nil, store, types.DefaultConversionFactor)

	return &fixture{
		svc:       reports.NewService(store.Reports(), store.Accounts(), store.Transactions(), store.Gold(), store),
		ledger:    ledger.NewService(store.Accounts(), store.Transactions(), store),
		invoices:  invoice.NewService(store.Invoices(), engine, numbers, store),
		purchases: purchase.NewService(store.Purchases(), engine, stock.NewService(store.Stock()), settingsSvc, numbers, store),
	}
}

func (f *fixture) account(t *testing.T, name string, typ ledger.AccountType) *ledger.Account {
	t.Helper()
	acc, err := f.ledger.CreateAccount(context.Background(), ledger.CreateAccountInput{Name: name, AccountType: typ})
	require.NoError(t, err)
	return acc
}

func (f *fixture) txn(t *testing.T, acc *ledger.Account, side ledger.TransactionType, amount string, at time.Time) {
	t.Helper()
	_, err := f.ledger.CreateTransaction(context.Background(), ledger.CreateTransactionInput{
		TransactionType: side,
		Mode:            ledger.ModeCash,
		AccountID:       acc.ID,
		Amount:          d(amount),
		Date:            &at,
	})
	require.NoError(t, err)
}

// sell creates a draft invoice of 1g at rate, so the balance due is rate.
func (f *fixture) sell(t *testing.T, in invoice.CreateInput, rate string) *invoice.Invoice {
	t.Helper()
	in.Items = []invoice.ItemInput{{Description: "ring", Qty: 1, GrossWeight: d("1"), Purity: 916, MetalRate: d(rate)}}
	doc, err := f.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	return doc
}

func TestOutstandingSummary_RanksTopCustomers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		f.sell(t, invoice.CreateInput{
			CustomerID:   id.Ptr(id.New()),
			CustomerName: fmt.Sprintf("customer %02d", i),
		}, fmt.Sprint(i*10))
	}
	for range 2 {
		f.sell(t, invoice.CreateInput{IsWalkIn: true, WalkInName: "Ali"}, "5")
	}
	credit := invoice.CreateInput{CustomerID: id.Ptr(id.New()), CustomerName: "in credit"}
	credit.GoldReceived = &invoice.GoldReceivedInput{
		Weight: d("6"), Rate: d("25"), Purity: 916, Purpose: goldledger.PurposeAdvanceGold,
	}
	f.sell(t, credit, "99.75")

	summary, err := f.svc.OutstandingSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, "790.000", summary.TotalOutstanding.StringFixed(3))
	assert.Equal(t, 13, summary.CustomerCount)
	require.Len(t, summary.TopCustomers, reports.TopCustomersLimit)
	assert.Equal(t, "customer 12", summary.TopCustomers[0].Name)
	assert.Equal(t, "120.000", summary.TopCustomers[0].Outstanding.StringFixed(3))
	assert.Equal(t, "customer 03", summary.TopCustomers[9].Name)
	for _, c := range summary.TopCustomers {
		assert.NotEqual(t, "in credit", c.Name)
	}
}

func TestOutstandingSummary_GroupsWalkInsByName(t *testing.T) {
	f := newFixture()

	f.sell(t, invoice.CreateInput{IsWalkIn: true, WalkInName: "Ali"}, "5")
	f.sell(t, invoice.CreateInput{IsWalkIn: true, WalkInName: "Ali"}, "7")
	f.sell(t, invoice.CreateInput{IsWalkIn: true, WalkInName: "Omar"}, "3")

	summary, err := f.svc.OutstandingSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.TopCustomers, 2)
	assert.Equal(t, "Ali", summary.TopCustomers[0].Name)
	assert.Equal(t, 2, summary.TopCustomers[0].InvoiceCount)
	assert.Equal(t, "12.000", summary.TopCustomers[0].Outstanding.StringFixed(3))
	assert.Nil(t, summary.TopCustomers[0].PartyID)
}

func TestNetFlowSummary_OnlyCashAccounts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	cash := f.account(t, "Cash", ledger.AccountCash)
	bank := f.account(t, "Bank", ledger.AccountBank)
	petty := f.account(t, "Petty", ledger.AccountPetty)
	income := f.account(t, "Sales", ledger.AccountIncome)

	f.txn(t, cash, ledger.Debit, "100", day)
	f.txn(t, cash, ledger.Credit, "30", day)
	f.txn(t, bank, ledger.Debit, "200", day)
	f.txn(t, petty, ledger.Credit, "5", day)
	f.txn(t, income, ledger.Credit, "500", day)
	f.txn(t, cash, ledger.Debit, "1000", day.AddDate(0, 0, 2))

	from := reports.Day(day)
	to := from.AddDate(0, 0, 1)
	summary, err := f.svc.NetFlowSummary(ctx, reports.FlowFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)

	assert.Equal(t, "300.000", summary.TotalIn.StringFixed(3))
	assert.Equal(t, "35.000", summary.TotalOut.StringFixed(3))
	assert.Equal(t, "265.000", summary.NetFlow.StringFixed(3))
	assert.Equal(t, "65.000", summary.CashSummary.Net.StringFixed(3))
	assert.Equal(t, "35.000", summary.CashSummary.Credit.StringFixed(3))
	assert.Equal(t, "200.000", summary.BankSummary.Net.StringFixed(3))
	assert.Equal(t, 4, summary.TransactionCount)

	all, err := f.svc.NetFlowSummary(ctx, reports.FlowFilter{})
	require.NoError(t, err)
	assert.Equal(t, "1300.000", all.TotalIn.StringFixed(3))
	assert.Equal(t, 5, all.TransactionCount)

	_, err = f.svc.NetFlowSummary(ctx, reports.FlowFilter{DateFrom: &to, DateTo: &from})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	// An empty window is not an error.
	empty, err := f.svc.NetFlowSummary(ctx, reports.FlowFilter{DateFrom: &from, DateTo: &from})
	require.NoError(t, err)
	assert.True(t, empty.TotalIn.IsZero())
	assert.True(t, empty.NetFlow.IsZero())
	assert.Zero(t, empty.TransactionCount)
}

func TestPartySummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	party := id.New()
	cash := f.account(t, "Cash", ledger.AccountCash)

	// Gold handed over beyond the price leaves the shop owing 50.25.
	credit := invoice.CreateInput{CustomerID: id.Ptr(party), CustomerName: "Karim"}
	credit.GoldReceived = &invoice.GoldReceivedInput{
		Weight: d("6"), Rate: d("25"), Purity: 916, Purpose: goldledger.PurposeAdvanceGold,
	}
	inv := f.sell(t, credit, "99.75")
	_, err := f.invoices.Finalize(ctx, inv.ID, "")
	require.NoError(t, err)

	f.sell(t, invoice.CreateInput{CustomerID: id.Ptr(party), CustomerName: "Karim"}, "100")

	p, err := f.purchases.Create(ctx, purchase.CreateInput{
		VendorPartyID: id.Ptr(party),
		VendorName:    "Karim",
		WeightGrams:   d("10.5"),
		EnteredPurity: 999,
		RatePerGram:   d("50.0"),
	})
	require.NoError(t, err)

	_, err = f.ledger.CreateTransaction(ctx, ledger.CreateTransactionInput{
		TransactionType: ledger.Debit,
		Mode:            ledger.ModeCash,
		AccountID:       cash.ID,
		PartyID:         id.Ptr(party),
		PartyName:       "Karim",
		Amount:          d("10"),
	})
	require.NoError(t, err)

	summary, err := f.svc.PartySummary(ctx, party)
	require.NoError(t, err)

	assert.Equal(t, "6.000", summary.Gold.GoldDueToParty.StringFixed(3))
	assert.True(t, summary.Gold.GoldDueFromParty.IsZero())
	assert.Equal(t, "-6.000", summary.Gold.NetGoldBalance.StringFixed(3))
	assert.Equal(t, 1, summary.Gold.TotalEntries)

	owed := d("50.25").Add(p.BalanceDueMoney)
	assert.Equal(t, "100.000", summary.Money.MoneyDueFromParty.StringFixed(3))
	assert.True(t, summary.Money.MoneyDueToParty.Equal(owed), summary.Money.MoneyDueToParty.String())
	assert.True(t, summary.Money.NetMoneyBalance.Equal(d("100").Sub(owed)))
	assert.Equal(t, 2, summary.Money.TotalInvoices)
	assert.Equal(t, 1, summary.Money.TotalPurchases)
	assert.Equal(t, 1, summary.Money.TotalTransactions)

	_, err = f.svc.PartySummary(ctx, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCloseDay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cash := f.account(t, "Cash", ledger.AccountCash)
	petty := f.account(t, "Petty", ledger.AccountPetty)
	bank := f.account(t, "Bank", ledger.AccountBank)

	f.txn(t, cash, ledger.Debit, "100", day)
	f.txn(t, cash, ledger.Credit, "30", day)
	f.txn(t, petty, ledger.Debit, "10", day)
	f.txn(t, bank, ledger.Debit, "500", day)
	f.txn(t, cash, ledger.Credit, "20", day.AddDate(0, 0, 1))

	closing, err := f.svc.CloseDay(ctx, reports.CloseDayInput{Date: day, ActualClosing: d("75")})
	require.NoError(t, err)
	assert.True(t, closing.OpeningCash.IsZero())
	assert.Equal(t, "110.000", closing.CashIn.StringFixed(3))
	assert.Equal(t, "30.000", closing.CashOut.StringFixed(3))
	assert.Equal(t, "80.000", closing.ExpectedClosing.StringFixed(3))
	assert.Equal(t, "-5.000", closing.Difference.StringFixed(3))
	assert.Equal(t, reports.Day(day), closing.Date)

	_, err = f.svc.CloseDay(ctx, reports.CloseDayInput{Date: day.Add(3 * time.Hour), ActualClosing: d("80")})
	require.True(t, apperror.HasCode(err, apperror.CodeDayAlreadyClosed))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "2026-03-10", appErr.Details["date"])

	// The next day opens with the counted cash of the previous one.
	next, err := f.svc.CloseDay(ctx, reports.CloseDayInput{Date: day.AddDate(0, 0, 1), ActualClosing: d("55")})
	require.NoError(t, err)
	assert.Equal(t, "75.000", next.OpeningCash.StringFixed(3))
	assert.Equal(t, "55.000", next.ExpectedClosing.StringFixed(3))
	assert.True(t, next.Difference.IsZero())

	got, err := f.svc.GetClosing(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, closing.ID, got.ID)

	_, err = f.svc.GetClosing(ctx, day.AddDate(0, 0, 5))
	assert.True(t, apperror.IsNotFound(err))
}

func TestCloseDay_ExplicitOpening(t *testing.T) {
	f := newFixture()
	opening := d("40")

	closing, err := f.svc.CloseDay(context.Background(), reports.CloseDayInput{
		Date:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		OpeningCash:   &opening,
		ActualClosing: d("40"),
	})
	require.NoError(t, err)
	assert.Equal(t, "40.000", closing.ExpectedClosing.StringFixed(3))
	assert.True(t, closing.Difference.IsZero())

	_, err = f.svc.CloseDay(context.Background(), reports.CloseDayInput{ActualClosing: d("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
