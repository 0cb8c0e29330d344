package types

import (
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
)

// Purity is gold fineness in parts per thousand (916 = 22K).
type Purity int

const (
	MinPurity Purity = 1
	MaxPurity Purity = 999

	// ValuationPurity is the fixed purity stock is valued at, regardless of
	// the purity a vendor states.
	ValuationPurity Purity = 916
)

// NewPurity validates v against 1..999.
func NewPurity(v int) (Purity, error) {
	p := Purity(v)
	if err := p.Validate("purity"); err != nil {
		return 0, err
	}
	return p, nil
}

// Valid reports whether p is within 1..999.
func (p Purity) Valid() bool {
	return p >= MinPurity && p <= MaxPurity
}

// Validate returns a validation error naming field when p is out of range.
func (p Purity) Validate(field string) error {
	if !p.Valid() {
		return apperror.NewValidation(fmt.Sprintf("%s must be between %d and %d", field, MinPurity, MaxPurity)).
			WithDetail("field", field).
			WithDetail("value", int(p))
	}
	return nil
}

// Decimal returns p as a decimal for arithmetic.
func (p Purity) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p))
}

// RatioTo returns p / base without rounding.
func (p Purity) RatioTo(base Purity) decimal.Decimal {
	return p.Decimal().Div(base.Decimal())
}

func (p Purity) String() string {
	return fmt.Sprintf("%d", int(p))
}
