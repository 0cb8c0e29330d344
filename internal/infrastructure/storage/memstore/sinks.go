package memstore

import (
	"context"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/posting"
)

type keyStore struct{ s *Store }

// Claim records key. An empty key is always claimable.
func (k *keyStore) Claim(ctx context.Context, key, entityType string, entityID id.ID) (bool, error) {
	if key == "" {
		return true, nil
	}
	var (
		claimed  bool
		existing claimedKey
	)
	k.s.write(func(st *state) {
		var ok bool
		if existing, ok = st.keys[key]; ok {
			return
		}
		st.keys[key] = claimedKey{entityType: entityType, entityID: entityID}
		claimed = true
	})
	if !claimed && existing.entityType != entityType {
		return false, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_entity_type", existing.entityType).
			WithDetail("request_entity_type", entityType)
	}
	return claimed, nil
}

func (k *keyStore) Lookup(ctx context.Context, key string) (id.ID, bool, error) {
	var (
		c  claimedKey
		ok bool
	)
	k.s.read(func(st *state) { c, ok = st.keys[key] })
	return c.entityID, ok, nil
}

type auditSink struct{ s *Store }

func (a *auditSink) Record(ctx context.Context, rec posting.AuditRecord) error {
	a.s.write(func(st *state) { st.audit = append(st.audit, rec) })
	return nil
}

type outboxSink struct{ s *Store }

func (o *outboxSink) Publish(ctx context.Context, ev posting.OutboxEvent) error {
	o.s.write(func(st *state) { st.outbox = append(st.outbox, ev) })
	return nil
}
