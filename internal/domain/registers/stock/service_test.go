package stock_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/infrastructure/storage/memstore"
)

func TestRecordMovements(t *testing.T) {
	ctx := context.Background()
	svc := stock.NewService(memstore.New().Stock())
	header, recorder := id.New(), id.New()

	in := stock.NewMovement(stock.MovementStockIn, header, 3, decimal.RequireFromString("12.5"), "received")
	in.RecorderType, in.RecorderID = "purchase", id.Ptr(recorder)
	in.IdempotencyKey = "purchase/1/stock/1"
	out := stock.NewMovement(stock.MovementStockOut, header, 1, decimal.RequireFromString("4.25"), "sold")

	n, err := svc.RecordMovements(ctx, []*stock.Movement{in, out})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "system", in.CreatedBy)

	// A replayed row with the same key is skipped.
	again := stock.NewMovement(stock.MovementStockIn, header, 3, decimal.RequireFromString("12.5"), "received")
	again.IdempotencyKey = in.IdempotencyKey
	n, err = svc.RecordMovements(ctx, []*stock.Movement{again})
	require.NoError(t, err)
	assert.Zero(t, n)

	totals, err := svc.GetHeaderTotals(ctx, header)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Qty)
	assert.Equal(t, "8.250", totals.Weight.StringFixed(3))

	byRecorder, err := svc.GetMovementsByRecorder(ctx, recorder)
	require.NoError(t, err)
	require.Len(t, byRecorder, 1)
	assert.Equal(t, "received", byRecorder[0].Notes)
}

func TestRecordMovements_RejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc := stock.NewService(memstore.New().Stock())
	header := id.New()

	good := stock.NewMovement(stock.MovementStockIn, header, 1, decimal.NewFromInt(1), "")
	bad := stock.NewMovement(stock.MovementStockIn, header, 1, decimal.NewFromInt(1), "")
	bad.Purity = 750

	_, err := svc.RecordMovements(ctx, []*stock.Movement{good, bad})
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 2, appErr.Details["lineNo"])

	totals, err := svc.GetHeaderTotals(ctx, header)
	require.NoError(t, err)
	assert.Zero(t, totals.Qty)
}
