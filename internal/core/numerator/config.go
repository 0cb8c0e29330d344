// Package numerator defines document numbering: PUR-2026-00001 and friends.
package numerator

import (
	"fmt"
	"time"
)

// Strategy selects how numbers are drawn from the sequence table.
type Strategy int

const (
	// StrategyStrict draws every number inside the posting transaction, so
	// a rolled back posting gives its number back. No gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves a range outside the posting transaction and
	// serves it from memory. Restarts and rollbacks leave gaps.
	StrategyCached
)

// Reset selects when the counter starts again from 1.
type Reset string

const (
	ResetYearly  Reset = "year"
	ResetMonthly Reset = "month"
	ResetNever   Reset = "never"
)

const (
	defaultPadWidth  = 5
	defaultRangeSize = 50
)

// Document number prefixes.
const (
	PrefixPurchase = "PUR"
	PrefixInvoice  = "INV"
	PrefixJobCard  = "JC"
	PrefixReturn   = "RET"
)

// Config describes the numbering of one document type.
type Config struct {
	Prefix      string
	IncludeYear bool
	PadWidth    int
	Reset       Reset
	Strategy    Strategy
	RangeSize   int64 // StrategyCached only
}

// ForPrefix returns yearly strict numbering PREFIX-YYYY-NNNNN.
func ForPrefix(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    defaultPadWidth,
		Reset:       ResetYearly,
		Strategy:    StrategyStrict,
	}
}

// Cached switches c to range reservation.
func (c Config) Cached(rangeSize int64) Config {
	c.Strategy = StrategyCached
	c.RangeSize = rangeSize
	return c
}

// Key names the sys_sequences counter for period.
func (c Config) Key(period time.Time) string {
	switch c.Reset {
	case ResetMonthly:
		return c.Prefix + "_" + period.Format("2006_01")
	case ResetNever:
		return c.Prefix
	default:
		return c.Prefix + "_" + period.Format("2006")
	}
}

// Format renders counter value n.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width <= 0 {
		width = defaultPadWidth
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}

// ReservationSize is the range reserved per round trip.
func (c Config) ReservationSize() int64 {
	if c.RangeSize <= 0 {
		return defaultRangeSize
	}
	return c.RangeSize
}
