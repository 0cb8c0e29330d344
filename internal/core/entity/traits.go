package entity

import (
	"context"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
)

// Counterparty is a trait for documents that reference either a stored
// party (customer, vendor) or a walk-in counterparty identified only by
// name and an optional national id number.
type Counterparty struct {
	PartyID    *id.ID `db:"party_id" json:"party_id,omitempty"`
	PartyName  string `db:"party_name" json:"party_name,omitempty"`
	IsWalkIn   bool   `db:"is_walk_in" json:"is_walk_in"`
	WalkInName string `db:"walk_in_name" json:"walk_in_name,omitempty"`
	OmanID     string `db:"oman_id" json:"oman_id,omitempty"`
	Phone      string `db:"phone" json:"phone,omitempty"`
}

// ValidateCounterparty enforces that exactly one of party reference and
// walk-in details is present.
func (c *Counterparty) ValidateCounterparty(ctx context.Context, field string) error {
	hasParty := !id.IsNilPtr(c.PartyID)
	if hasParty && c.IsWalkIn {
		return apperror.NewValidation("either a party or walk-in details must be given, not both").
			WithDetail("field", field)
	}
	if !hasParty && !c.IsWalkIn {
		return apperror.NewValidation("a party or walk-in details are required").
			WithDetail("field", field)
	}
	if c.IsWalkIn && c.WalkInName == "" {
		return apperror.NewValidation("walk-in name is required").
			WithDetail("field", "walk_in_name")
	}
	return nil
}

// DisplayName returns the party name or the walk-in name.
func (c *Counterparty) DisplayName() string {
	if c.IsWalkIn {
		return c.WalkInName
	}
	return c.PartyName
}
