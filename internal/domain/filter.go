package domain

import (
	"time"

	"goldshop/internal/core/id"
)

// DocumentFilter selects documents for lists and aggregations.
// Deleted documents are excluded unless IncludeDeleted is set.
type DocumentFilter struct {
	PartyID  *id.ID
	Status   string
	DateFrom *time.Time
	// DateTo is exclusive.
	DateTo *time.Time

	IncludeDeleted bool

	// Limit bounds the result; 0 means no limit.
	Limit int
}
