package posting

import (
	"context"
	"time"

	"goldshop/internal/core/id"
)

// KeyStore claims event keys.
type KeyStore interface {
	// Claim records key inside the ambient transaction. It returns false
	// when the key was already claimed (the event is a replay).
	Claim(ctx context.Context, key, entityType string, entityID id.ID) (bool, error)

	// Lookup returns the entity recorded with key, if key was claimed by a
	// committed (or the ambient) transaction.
	Lookup(ctx context.Context, key string) (id.ID, bool, error)
}

// AuditRecord is the normalized snapshot written for every posted event.
type AuditRecord struct {
	EntityType string
	EntityID   id.ID
	Action     string
	EventKey   string
	Actor      string
	Snapshot   map[string]any
	CreatedAt  time.Time
}

// AuditSink stores audit records.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// OutboxEvent is a domain event published after commit by the worker relay.
type OutboxEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	EventKey      string
	Payload       map[string]any
}

// Outbox stores domain events in the ambient transaction.
type Outbox interface {
	Publish(ctx context.Context, ev OutboxEvent) error
}
