package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/documents/purchase"
)

type mockDoc struct {
	entity.Document
	entity.Counterparty
	Amount decimal.Decimal `db:"amount"`
	Memo   string          `db:"-"`
	plain  int
}

func TestExtractDBColumns_WalksEmbedded(t *testing.T) {
	cols := ExtractDBColumns[mockDoc]()

	for _, expected := range []string{
		"id", "version", "is_deleted", "created_at", "created_by", "updated_at",
		"number", "date", "locked", "notes",
		"party_id", "party_name", "is_walk_in", "walk_in_name", "oman_id", "phone",
		"amount",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "memo")
}

func TestExtractDBColumns_Purchase(t *testing.T) {
	cols := ExtractDBColumns[purchase.Purchase]()
	assert.Contains(t, cols, "conversion_factor")
	assert.Contains(t, cols, "items")
	assert.Contains(t, cols, "balance_due_money")
}

func TestStructToMap(t *testing.T) {
	partyID := id.New()
	doc := mockDoc{
		Document:     entity.NewDocument(),
		Counterparty: entity.Counterparty{PartyID: &partyID, PartyName: "Salim"},
		Amount:       decimal.RequireFromString("12.345"),
		Memo:         "ignored",
		plain:        1,
	}
	doc.Number = "INV-2026-00001"
	doc.Version = 3

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "INV-2026-00001", m["number"])
	assert.Equal(t, &partyID, m["party_id"])
	assert.Equal(t, "Salim", m["party_name"])
	assert.True(t, doc.Amount.Equal(m["amount"].(decimal.Decimal)))
	assert.NotContains(t, m, "memo")

	assert.Nil(t, StructToMap((*mockDoc)(nil)))
	assert.Nil(t, StructToMap(42))
}

func TestFilterColumns(t *testing.T) {
	data := map[string]any{"id": 1, "name": "a", "version": 2, "extra": true}
	out := FilterColumns(data, []string{"id", "name", "version", "missing"}, "id", "version")
	assert.Equal(t, map[string]any{"name": "a"}, out)
}
