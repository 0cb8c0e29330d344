// Package settings holds the shop-wide configuration used by valuation.
package settings

import (
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/types"
)

// ShopSettings is the singleton settings record.
type ShopSettings struct {
	// ConversionFactor is the divisor applied by the purchase valuation
	// formula. Purchases snapshot the value in force when they are created.
	ConversionFactor decimal.Decimal `db:"conversion_factor" json:"conversion_factor" precision:"factor"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy string    `db:"updated_by" json:"updated_by,omitempty"`
}

// Default returns settings with the given factor, falling back to
// types.DefaultConversionFactor when it is not usable.
func Default(factor decimal.Decimal) *ShopSettings {
	if types.ValidateConversionFactor(factor) != nil {
		factor = types.DefaultConversionFactor
	}
	return &ShopSettings{ConversionFactor: types.RoundFactor(factor)}
}
