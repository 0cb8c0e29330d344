package posting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/posting"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/infrastructure/storage/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type doc struct {
	Number string          `json:"number"`
	Amount decimal.Decimal `json:"amount" precision:"money"`
}

type fixture struct {
	store  *memstore.Store
	engine *posting.Engine
	ledger *ledger.Service
	gold   *goldledger.Service
	stock  *stock.Service
	cash   *ledger.Account
	party  id.ID
	header id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	ledgerSvc := ledger.NewService(store.Accounts(), store.Transactions(), store)
	cash, err := ledgerSvc.CreateAccount(context.Background(), ledger.CreateAccountInput{
		Name: "Cash", AccountType: ledger.AccountCash,
	})
	require.NoError(t, err)

	return &fixture{
		store:  store,
		engine: store.Engine(),
		ledger: ledgerSvc,
		gold:   goldledger.NewService(store.Gold(), store),
		stock:  stock.NewService(store.Stock()),
		cash:   cash,
		party:  id.New(),
		header: id.New(),
	}
}

func (f *fixture) set(amount string) *posting.MovementSet {
	set := posting.NewMovementSet()
	set.AddTransaction(ledger.NewTransaction(ledger.Debit, f.cash.ID, d(amount), ledger.ModeCash, "sale"))
	set.AddGold(goldledger.NewEntry(f.party, entity.DirectionIn, d("2"), 916, goldledger.PurposeExchange))
	set.AddStock(stock.NewMovement(stock.MovementStockOut, f.header, 1, d("3.5"), "sold"))
	return set
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), f.cash.ID)
	require.NoError(t, err)
	return acc.CurrentBalance.StringFixed(3)
}

func TestPost_AppliesEverythingOnce(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{Username: "counter-1"})
	entityID := id.New()

	ev := posting.Event{
		Key:        posting.EventKey("invoice", entityID, "finalize", "evt-1"),
		EntityType: "invoice",
		EntityID:   entityID,
		Action:     "finalize",
		Snapshot:   &doc{Number: "INV-1", Amount: d("12.5")},
	}
	saves := 0
	save := func(context.Context) error { saves++; return nil }

	set := f.set("12.5")
	applied, err := f.engine.Post(ctx, ev, set, save)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, saves)
	assert.Equal(t, "12.500", f.balance(t))

	txn := set.Transactions[0]
	assert.Equal(t, "invoice", txn.ReferenceType)
	assert.Equal(t, entityID, *txn.ReferenceID)
	require.NotNil(t, txn.IdempotencyKey)
	assert.Equal(t, ev.Key+"/txn/1", *txn.IdempotencyKey)
	assert.Equal(t, ev.Key+"/gold/1", set.GoldEntries[0].IdempotencyKey)

	gold, err := f.gold.TotalsByParty(ctx, f.party)
	require.NoError(t, err)
	assert.Equal(t, "2.000", gold.In.StringFixed(3))

	totals, err := f.stock.GetHeaderTotals(ctx, f.header)
	require.NoError(t, err)
	assert.Equal(t, "-3.500", totals.Weight.StringFixed(3))

	audit := f.store.AuditRecords()
	require.Len(t, audit, 1)
	assert.Equal(t, "finalize", audit[0].Action)
	assert.Equal(t, "counter-1", audit[0].Actor)
	assert.Equal(t, "INV-1", audit[0].Snapshot["number"])

	outbox := f.store.OutboxEvents()
	require.Len(t, outbox, 1)
	assert.Equal(t, "invoice.finalize", outbox[0].EventType)

	posted, err := f.engine.Posted(ctx, ev.Key)
	require.NoError(t, err)
	assert.True(t, posted)

	// The same key again writes nothing and does not call save.
	applied, err = f.engine.Post(ctx, ev, f.set("12.5"), save)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, saves)
	assert.Equal(t, "12.500", f.balance(t))
	assert.Len(t, f.store.AuditRecords(), 1)

	gold, err = f.gold.TotalsByParty(ctx, f.party)
	require.NoError(t, err)
	assert.Equal(t, 1, gold.Count)
}

func TestPost_SaveFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entityID := id.New()
	key := posting.EventKey("purchase", entityID, "payment", "evt-9")

	boom := errors.New("boom")
	_, err := f.engine.Post(ctx, posting.Event{Key: key, EntityType: "purchase", EntityID: entityID, Action: "payment"},
		f.set("40"), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "0.000", f.balance(t))
	gold, err := f.gold.TotalsByParty(ctx, f.party)
	require.NoError(t, err)
	assert.Zero(t, gold.Count)
	totals, err := f.stock.GetHeaderTotals(ctx, f.header)
	require.NoError(t, err)
	assert.True(t, totals.Weight.IsZero())
	assert.Empty(t, f.store.AuditRecords())

	posted, err := f.engine.Posted(ctx, key)
	require.NoError(t, err)
	assert.False(t, posted, "a rolled back event can be retried")
}

func TestPost_UnknownAccountRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	set := f.set("10")
	set.AddTransaction(ledger.NewTransaction(ledger.Credit, id.New(), d("1"), ledger.ModeCash, "sale"))

	_, err := f.engine.Post(ctx, posting.Event{Key: "k", EntityType: "invoice", EntityID: id.New(), Action: "create"}, set, nil)
	require.True(t, apperror.IsNotFound(err))
	assert.Equal(t, "0.000", f.balance(t))
}

func TestPost_ValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	set := f.set("10")
	set.AddTransaction(ledger.NewTransaction(ledger.Debit, f.cash.ID, d("0"), ledger.ModeCash, "sale"))

	saved := false
	_, err := f.engine.Post(ctx, posting.Event{EntityType: "invoice", EntityID: id.New(), Action: "create"}, set,
		func(context.Context) error { saved = true; return nil })
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 2, appErr.Details["lineNo"])
	assert.False(t, saved)
	assert.Equal(t, "0.000", f.balance(t))
}

func TestEventKey(t *testing.T) {
	entityID := id.New()
	assert.Equal(t,
		posting.EventKey("invoice", entityID, "payment", "abc"),
		posting.EventKey("invoice", entityID, "payment", "abc"))
	assert.NotEqual(t,
		posting.EventKey("invoice", entityID, "payment", ""),
		posting.EventKey("invoice", entityID, "payment", ""))
}

func TestCommit_LostClaimReportsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := posting.EventKey("purchase", id.Nil(), "create", "evt-race")

	winner := id.New()
	require.NoError(t, f.engine.Commit(ctx, posting.Event{
		Key: key, EntityType: "purchase", EntityID: winner, Action: "create",
	}, f.set("5"), nil))

	saves := 0
	err := f.store.RunInTransaction(ctx, func(ctx context.Context) error {
		return f.engine.Commit(ctx, posting.Event{
			Key: key, EntityType: "purchase", EntityID: id.New(), Action: "create",
		}, f.set("5"), func(context.Context) error { saves++; return nil })
	})
	replayed, ok := posting.AsAlreadyPosted(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, winner, replayed.EntityID)
	assert.Equal(t, key, replayed.Key)
	assert.Zero(t, saves)
	assert.Equal(t, "5.000", f.balance(t))
	assert.Len(t, f.store.AuditRecords(), 1)

	_, err = f.engine.Post(ctx, posting.Event{
		Key: key, EntityType: "invoice", EntityID: id.New(), Action: "create",
	}, nil, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
}
