package goldledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/infrastructure/storage/memstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService() *goldledger.Service {
	store := memstore.New()
	return goldledger.NewService(store.Gold(), store)
}

func TestCreateEntry_Totals(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	party := id.New()

	_, err := svc.CreateEntry(ctx, goldledger.CreateEntryInput{
		PartyID: party, PartyName: "Yusuf", Type: entity.DirectionIn,
		WeightGrams: d("12.3456"), PurityEntered: 916, Purpose: goldledger.PurposeAdvanceGold,
	})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, goldledger.CreateEntryInput{
		PartyID: party, Type: entity.DirectionOut,
		WeightGrams: d("2"), PurityEntered: 999, Purpose: goldledger.PurposePayment,
	})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, goldledger.CreateEntryInput{
		PartyID: id.New(), Type: entity.DirectionOut,
		WeightGrams: d("100"), PurityEntered: 916, Purpose: goldledger.PurposeJobWork,
	})
	require.NoError(t, err)

	totals, err := svc.TotalsByParty(ctx, party)
	require.NoError(t, err)
	assert.Equal(t, "12.346", totals.In.StringFixed(3))
	assert.Equal(t, "2.000", totals.Out.StringFixed(3))
	assert.Equal(t, 2, totals.Count)

	entries, err := svc.ListByParty(ctx, party)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Yusuf", entries[0].PartyName)
	assert.Equal(t, "system", entries[0].CreatedBy)
}

func TestCreateEntry_ReplayReturnsFirstEntry(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	in := goldledger.CreateEntryInput{
		EventID: "scale-7", PartyID: id.New(), Type: entity.DirectionIn,
		WeightGrams: d("5"), PurityEntered: 916, Purpose: goldledger.PurposeExchange,
	}

	first, err := svc.CreateEntry(ctx, in)
	require.NoError(t, err)
	second, err := svc.CreateEntry(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	totals, err := svc.TotalsByParty(ctx, in.PartyID)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
}

func TestCreateEntry_Validation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	tests := map[string]goldledger.CreateEntryInput{
		"missing party": {Type: entity.DirectionIn, WeightGrams: d("1"), PurityEntered: 916, Purpose: goldledger.PurposeExchange},
		"zero weight":   {PartyID: id.New(), Type: entity.DirectionIn, WeightGrams: d("0"), PurityEntered: 916, Purpose: goldledger.PurposeExchange},
		"bad direction": {PartyID: id.New(), Type: "SIDEWAYS", WeightGrams: d("1"), PurityEntered: 916, Purpose: goldledger.PurposeExchange},
		"bad purity":    {PartyID: id.New(), Type: entity.DirectionIn, WeightGrams: d("1"), PurityEntered: 1000, Purpose: goldledger.PurposeExchange},
		"bad purpose":   {PartyID: id.New(), Type: entity.DirectionIn, WeightGrams: d("1"), PurityEntered: 916, Purpose: "gift"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateEntry(ctx, in)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), err)
		})
	}
}

func TestCreateEntry_PostsAuditAndOutbox(t *testing.T) {
	store := memstore.New()
	svc := goldledger.NewService(store.Gold(), store)
	store.EngineWith(svc)
	ctx := context.Background()

	in := goldledger.CreateEntryInput{
		EventID: "scale-9", PartyID: id.New(), PartyName: "Yusuf", Type: entity.DirectionIn,
		WeightGrams: d("4.25"), PurityEntered: 916, Purpose: goldledger.PurposeAdvanceGold,
	}
	first, err := svc.CreateEntry(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, goldledger.RecorderManual, first.RecorderType)

	second, err := svc.CreateEntry(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	audit := store.AuditRecords()
	require.Len(t, audit, 1)
	assert.Equal(t, goldledger.EntityType, audit[0].EntityType)
	assert.Equal(t, first.ID, audit[0].EntityID)
	assert.Equal(t, "create", audit[0].Action)

	outbox := store.OutboxEvents()
	require.Len(t, outbox, 1)
	assert.Equal(t, "gold_entry.create", outbox[0].EventType)

	totals, err := svc.TotalsByParty(ctx, in.PartyID)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
	assert.Equal(t, "4.250", totals.In.StringFixed(3))
}
