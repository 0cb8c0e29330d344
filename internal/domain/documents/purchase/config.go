package purchase

import "goldshop/internal/core/numerator"

// EntityType names purchases in references, event keys and audit records.
const EntityType = "purchase"

// NumberConfig is the gapless PUR-YYYY-NNNNN numbering. Purchases are
// primary accounting documents.
func NumberConfig() numerator.Config {
	return numerator.ForPrefix(numerator.PrefixPurchase)
}
