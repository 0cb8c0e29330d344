package returns

import "goldshop/internal/core/numerator"

// EntityType names returns in references, event keys and audit records.
const EntityType = "return"

// NumberConfig is the RET-YYYY-NNNNN numbering, served from reserved ranges.
func NumberConfig() numerator.Config {
	return numerator.ForPrefix(numerator.PrefixReturn).Cached(20)
}
