package invoice

import "goldshop/internal/core/numerator"

// EntityType names invoices in references, event keys and audit records.
const EntityType = "invoice"

// NumberConfig is the gapless INV-YYYY-NNNNN numbering.
func NumberConfig() numerator.Config {
	return numerator.ForPrefix(numerator.PrefixInvoice)
}
