package purchase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/id"
	"goldshop/internal/domain"
	"goldshop/internal/domain/documents/purchase"
)

func purchaseFilter(party id.ID) domain.DocumentFilter {
	return domain.DocumentFilter{PartyID: &party}
}

func TestRevalue_FloorsBalanceAndLocks(t *testing.T) {
	doc := purchase.NewPurchase()
	doc.WeightGrams = d("5.0")
	doc.EnteredPurity = 916
	doc.RatePerGram = d("1.0")

	_, err := doc.Revalue(d("0.920"))
	require.NoError(t, err)
	assert.Equal(t, "5.435", doc.AmountTotal.StringFixed(3))

	doc.ApplyPayment(d("10"))
	assert.True(t, doc.BalanceDueMoney.IsZero())
	assert.Equal(t, purchase.StatusPaid, doc.Status)
	assert.True(t, doc.Locked)
}

func TestStockMovements_SkipItemsWithoutHeader(t *testing.T) {
	doc := purchase.NewPurchase()
	header := id.New()
	doc.Items = []purchase.Item{
		{WeightGrams: d("2"), EnteredPurity: 916, RatePerGram: d("10"), HeaderID: &header},
		{WeightGrams: d("3"), EnteredPurity: 916, RatePerGram: d("10")},
	}

	vals, err := doc.Revalue(d("0.920"))
	require.NoError(t, err)
	movements := doc.StockMovements(vals)
	require.Len(t, movements, 1)
	assert.Equal(t, header, movements[0].HeaderID)
	assert.Equal(t, "2.000", movements[0].WeightDelta.StringFixed(3))
}
