package precision

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBase struct {
	ID uuid.UUID `json:"id"`
}

type testLine struct {
	Description string          `json:"description"`
	Weight      decimal.Decimal `json:"weight_grams" precision:"weight"`
	Rate        decimal.Decimal `json:"rate_per_gram" precision:"rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Purity      int             `json:"purity"`
}

type testDoc struct {
	testBase
	GrandTotal decimal.Decimal    `json:"grand_total" precision:"money"`
	Paid       *decimal.Decimal   `json:"paid_amount"`
	Items      []testLine         `json:"items"`
	Extra      map[string]any     `json:"extra"`
	Secret     string             `json:"-"`
	ByKey      map[string]testLine `json:"by_key"`
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestDoc() *testDoc {
	paid := dec("10.00049")
	return &testDoc{
		testBase:   testBase{ID: uuid.MustParse("0190f1c2-0000-7000-8000-000000000001")},
		GrandTotal: dec("100.12345"),
		Paid:       &paid,
		Items: []testLine{
			{Description: "ring", Weight: dec("1.23456"), Rate: dec("12.345"), LineTotal: dec("15.2409"), Purity: 916},
			{Description: "chain", Weight: dec("-2.0005"), Rate: dec("7"), LineTotal: dec("0"), Purity: 875},
		},
		Extra: map[string]any{
			"amount":  pgtype.Numeric{Int: big.NewInt(123456), Exp: -4, Valid: true},
			"missing": pgtype.Numeric{},
			"nested":  map[string]any{"net_weight": dec("3.14159")},
			"label":   "x",
		},
		Secret: "hidden",
		ByKey: map[string]testLine{
			"a": {Weight: dec("0.0004"), Rate: dec("1.005")},
		},
	}
}

func TestNormalize_RoundsNestedValues(t *testing.T) {
	doc := newTestDoc()
	require.NoError(t, Normalize(doc))

	assert.Equal(t, "100.123", doc.GrandTotal.String())
	assert.Equal(t, "10", doc.Paid.String())
	assert.Equal(t, "1.235", doc.Items[0].Weight.String())
	assert.Equal(t, "12.35", doc.Items[0].Rate.String())
	assert.Equal(t, "15.241", doc.Items[0].LineTotal.String())
	assert.Equal(t, "-2.001", doc.Items[1].Weight.String(), "half rounds away from zero")
	assert.Equal(t, "0", doc.ByKey["a"].Weight.String())
	assert.Equal(t, "1.01", doc.ByKey["a"].Rate.String())

	amount, ok := doc.Extra["amount"].(decimal.Decimal)
	require.True(t, ok, "pgtype.Numeric in a map becomes decimal.Decimal")
	assert.Equal(t, "12.346", amount.String())
	assert.Nil(t, doc.Extra["missing"])

	nested := doc.Extra["nested"].(map[string]any)
	assert.Equal(t, "3.142", nested["net_weight"].(decimal.Decimal).String())
	assert.Equal(t, "x", doc.Extra["label"])
}

func TestNormalize_Idempotent(t *testing.T) {
	once := newTestDoc()
	require.NoError(t, Normalize(once))

	twice := newTestDoc()
	require.NoError(t, Normalize(twice))
	require.NoError(t, Normalize(twice))

	assert.Equal(t, ToWire(once), ToWire(twice))
}

func TestNormalize_RequiresPointer(t *testing.T) {
	assert.Error(t, Normalize(testDoc{}))
	var nilDoc *testDoc
	assert.Error(t, Normalize(nilDoc))
}

func TestNormalize_RejectsNaN(t *testing.T) {
	doc := map[string]any{"amount": pgtype.Numeric{NaN: true, Valid: true}}
	err := NormalizeMap(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestToWire_Shape(t *testing.T) {
	wire := ToWire(newTestDoc())
	m, ok := wire.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, "0190f1c2-0000-7000-8000-000000000001", m["id"], "embedded struct is flattened")
	assert.NotContains(t, m, "Secret")
	assert.Equal(t, 100.123, m["grand_total"])
	assert.Equal(t, 10.0, m["paid_amount"])

	items, ok := m["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, 1.235, first["weight_grams"])
	assert.Equal(t, 12.35, first["rate_per_gram"])
	assert.Equal(t, int64(916), first["purity"])
	assert.Equal(t, "ring", first["description"])

	extra := m["extra"].(map[string]any)
	assert.Equal(t, 12.346, extra["amount"])
	assert.Nil(t, extra["missing"])
}

func TestToWire_Idempotent(t *testing.T) {
	first := ToWire(newTestDoc())
	assert.Equal(t, first, ToWire(first))
}

func TestToWire_Scalars(t *testing.T) {
	assert.Nil(t, ToWire(nil))
	assert.Equal(t, 1.5, ToWire(dec("1.5")))
	assert.Equal(t, "abc", ToWire("abc"))
	assert.Equal(t, true, ToWire(true))
	assert.Equal(t, map[string]any{"value": 2.0}, ToWireMap(dec("2")))
}

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"ID":          "id",
		"PartyID":     "party_id",
		"GrandTotal":  "grand_total",
		"HTTPStatus":  "http_status",
		"name":        "name",
	}
	for in, want := range cases {
		assert.Equal(t, want, toSnake(in), in)
	}
}
