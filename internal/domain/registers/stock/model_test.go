package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
)

func TestNewMovement_SignFollowsType(t *testing.T) {
	header := id.New()

	in := NewMovement(MovementStockIn, header, -2, decimal.RequireFromString("-4.1234"), "")
	assert.Equal(t, 2, in.QtyDelta)
	assert.Equal(t, "4.123", in.WeightDelta.String())
	assert.EqualValues(t, 916, in.Purity)
	require.NoError(t, in.Validate(context.Background()))

	out := NewMovement(MovementAdjustmentOut, header, 1, decimal.RequireFromString("2"), "")
	assert.Equal(t, -1, out.QtyDelta)
	assert.Equal(t, "-2", out.WeightDelta.String())
	require.NoError(t, out.Validate(context.Background()))

	rev := out.Reversal("undo")
	assert.Equal(t, MovementStockIn, rev.MovementType)
	assert.Equal(t, 1, rev.QtyDelta)
	assert.Equal(t, "2", rev.WeightDelta.String())
}

func TestMovementValidate(t *testing.T) {
	ctx := context.Background()
	header := id.New()

	m := NewMovement(MovementStockIn, header, 1, decimal.NewFromInt(1), "")
	m.WeightDelta = m.WeightDelta.Neg()
	assert.True(t, apperror.HasCode(m.Validate(ctx), apperror.CodeValidation))

	m = NewMovement(MovementStockIn, header, 1, decimal.NewFromInt(1), "")
	m.Purity = 999
	err := m.Validate(ctx)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "purity", appErr.Details["field"])

	m = NewMovement(MovementStockIn, id.Nil(), 1, decimal.NewFromInt(1), "")
	assert.True(t, apperror.HasCode(m.Validate(ctx), apperror.CodeValidation))

	m = NewMovement(MovementStockIn, header, 0, decimal.Zero, "")
	assert.True(t, apperror.HasCode(m.Validate(ctx), apperror.CodeValidation))

	m = NewMovement(MovementStockOut, header, 1, decimal.NewFromInt(10_001), "")
	assert.True(t, apperror.HasCode(m.Validate(ctx), apperror.CodeValidation))

	m = NewMovement("Lost", header, 1, decimal.NewFromInt(1), "")
	assert.True(t, apperror.HasCode(m.Validate(ctx), apperror.CodeValidation))
}
