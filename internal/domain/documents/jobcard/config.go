package jobcard

import "goldshop/internal/core/numerator"

// EntityType names job cards in references, event keys and audit records.
const EntityType = "jobcard"

// NumberConfig is the JC-YYYY-NNNNN numbering. Job cards are work orders,
// not accounting documents, so gaps after a restart are acceptable.
func NumberConfig() numerator.Config {
	return numerator.ForPrefix(numerator.PrefixJobCard).Cached(20)
}
