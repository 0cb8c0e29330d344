//go:build integration

package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/reports"
	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/pkg/logger"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) Handle(_ context.Context, msg *postgres.OutboxMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, msg.EventType)
	return nil
}

func newPostgresServices(t *testing.T) (*Services, *postgres.TxManager) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("goldshop_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := postgres.NewMigrator(dsn, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool)
	st, err := PostgresStorage(txm, time.Hour, nil)
	require.NoError(t, err)
	return NewServices(st, types.DefaultConversionFactor), txm
}

func TestPostgres_EndToEnd(t *testing.T) {
	svc, txm := newPostgresServices(t)
	op := appctx.NewOperation("test", "end-to-end")
	ctx := appctx.WithOperation(context.Background(), op)

	cash, err := svc.Ledger.CreateAccount(ctx, ledger.CreateAccountInput{
		Name: "Cash drawer", AccountType: ledger.AccountCash, OpeningBalance: d("1000"),
	})
	require.NoError(t, err)

	vendor, header := id.New(), id.New()
	pur, err := svc.Purchases.Create(ctx, purchase.CreateInput{
		EventID:       "pur-1",
		VendorPartyID: &vendor,
		VendorName:    "Muscat Bullion",
		HeaderID:      &header,
		WeightGrams:   d("10"),
		EnteredPurity: 916,
		RatePerGram:   d("23"),
		InitialPayment: &ledger.Payment{
			AccountID: cash.ID, Amount: d("100"), Mode: ledger.ModeCash,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "250.000", pur.AmountTotal.StringFixed(3))
	assert.NotEmpty(t, pur.Number)

	reloaded, err := svc.Purchases.GetByID(ctx, pur.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.000", reloaded.BalanceDueMoney.StringFixed(3))

	totals, err := svc.Stock.GetHeaderTotals(ctx, header)
	require.NoError(t, err)
	assert.Equal(t, "10.000", totals.Weight.StringFixed(3))

	customer := id.New()
	inv, err := svc.Invoices.Create(ctx, invoice.CreateInput{
		CustomerID:   &customer,
		CustomerName: "Salim",
		Items: []invoice.ItemInput{{
			Description: "ring", HeaderID: &header, Qty: 1,
			GrossWeight: d("2"), Purity: 916, MetalRate: d("30"),
		}},
		Payments: []ledger.Payment{{AccountID: cash.ID, Amount: d("20"), Mode: ledger.ModeCash}},
	})
	require.NoError(t, err)

	inv, err = svc.Invoices.Finalize(ctx, inv.ID, "fin-1")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusFinalized, inv.Status)

	// Replay is a no-op.
	_, err = svc.Invoices.Finalize(ctx, inv.ID, "fin-1")
	require.NoError(t, err)

	audit, err := postgres.NewAuditStore(txm)
	require.NoError(t, err)
	history, err := audit.History(ctx, invoice.EntityType, inv.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "finalize", history[0].Action)
	assert.Equal(t, op.ID, history[0].OperationID)
	assert.NotEmpty(t, history[0].Snapshot)

	acc, err := svc.Ledger.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "920.000", acc.CurrentBalance.StringFixed(3))

	drift, err := svc.Ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	outstanding, err := svc.Reports.OutstandingSummary(ctx)
	require.NoError(t, err)
	assert.NotNil(t, outstanding)

	today := time.Now().UTC()
	_, err = svc.Reports.CloseDay(ctx, reports.CloseDayInput{Date: today, ActualClosing: d("920")})
	require.NoError(t, err)
	_, err = svc.Reports.CloseDay(ctx, reports.CloseDayInput{Date: today, ActualClosing: d("920")})
	assert.True(t, apperror.HasCode(err, apperror.CodeDayAlreadyClosed))

	handler := &recordingHandler{}
	relay := postgres.NewOutboxRelay(txm, 10, handler)
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(handler.events), n)
	assert.NotZero(t, n)

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgres_ConcurrentPaymentsKeepBalance(t *testing.T) {
	svc, _ := newPostgresServices(t)
	ctx := context.Background()

	cash, err := svc.Ledger.CreateAccount(ctx, ledger.CreateAccountInput{
		Name: "Cash drawer", AccountType: ledger.AccountCash,
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ledger.CreateTransaction(ctx, ledger.CreateTransactionInput{
				TransactionType: ledger.Debit,
				Mode:            ledger.ModeCash,
				AccountID:       cash.ID,
				Amount:          d("12.5"),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	acc, err := svc.Ledger.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.000", acc.CurrentBalance.StringFixed(3))
}
