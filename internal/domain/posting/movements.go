// Package posting applies the money, gold and stock effects of a business
// event atomically with the owning document update.
package posting

import (
	"fmt"

	"goldshop/internal/core/id"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
)

// Event identifies the business event being posted.
type Event struct {
	// Key is the idempotency key of the event. A Key that was already
	// posted turns Post into a no-op.
	Key string

	EntityType string
	EntityID   id.ID

	// Action is the lifecycle step: create, payment, finalize, convert, ...
	Action string

	// Snapshot is the owning document; it is read after save to build the
	// audit record and outbox payload.
	Snapshot any
}

// EventKey derives an event key from the entity, action and caller event id.
// An empty eventID yields a fresh, non-replayable key.
func EventKey(entityType string, entityID id.ID, action, eventID string) string {
	if eventID == "" {
		eventID = id.New().String()
	}
	return fmt.Sprintf("%s/%s/%s/%s", entityType, entityID, action, eventID)
}

// MovementSet is everything an event writes besides the document itself.
type MovementSet struct {
	Transactions []*ledger.Transaction
	GoldEntries  []*goldledger.Entry
	Stock        []*stock.Movement
}

// NewMovementSet creates an empty movement set.
func NewMovementSet() *MovementSet {
	return &MovementSet{}
}

// AddTransaction appends ledger rows.
func (m *MovementSet) AddTransaction(t ...*ledger.Transaction) {
	m.Transactions = append(m.Transactions, t...)
}

// AddGold appends gold ledger entries.
func (m *MovementSet) AddGold(e ...*goldledger.Entry) {
	m.GoldEntries = append(m.GoldEntries, e...)
}

// AddStock appends stock movements.
func (m *MovementSet) AddStock(s ...*stock.Movement) {
	m.Stock = append(m.Stock, s...)
}

// IsEmpty reports whether the set writes nothing.
func (m *MovementSet) IsEmpty() bool {
	return m == nil || (len(m.Transactions) == 0 && len(m.GoldEntries) == 0 && len(m.Stock) == 0)
}
