package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/domain/posting"
)

var _ posting.KeyStore = (*EventKeyStore)(nil)

// EventKeyRecord is a claimed posting event key.
type EventKeyRecord struct {
	Key        string    `db:"idempotency_key"`
	EntityType string    `db:"entity_type"`
	EntityID   id.ID     `db:"entity_id"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

// EventKeyStore claims posting event keys in sys_idempotency.
// A claim takes part in the ambient transaction, so a rolled back
// posting releases its key.
type EventKeyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewEventKeyStore creates a key store. Keys older than ttl are removed by
// CleanupExpired; ledger and register rows keep their own unique keys.
func NewEventKeyStore(txManager *TxManager, ttl time.Duration) *EventKeyStore {
	return &EventKeyStore{txManager: txManager, ttl: ttl}
}

// Claim implements posting.KeyStore. Reusing a key for another entity type
// is an idempotency mismatch. A key held by another entity of the same type
// is a lost creation race and reports false; Lookup returns the winner.
func (s *EventKeyStore) Claim(ctx context.Context, key, entityType string, entityID id.ID) (bool, error) {
	if key == "" {
		return true, nil
	}
	now := time.Now().UTC()

	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, entity_type, entity_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, entityType, entityID, now, now.Add(s.ttl))
	if err != nil {
		return false, fmt.Errorf("claim event key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		// Claimed and removed between the two statements; a retry claims it.
		return false, apperror.NewIdempotencyConflict(key)
	}
	if existing.EntityType != entityType {
		return false, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_entity_type", existing.EntityType).
			WithDetail("stored_entity_id", existing.EntityID).
			WithDetail("request_entity_type", entityType).
			WithDetail("request_entity_id", entityID)
	}
	return false, nil
}

// Lookup implements posting.KeyStore.
func (s *EventKeyStore) Lookup(ctx context.Context, key string) (id.ID, bool, error) {
	rec, err := s.get(ctx, key)
	if err != nil || rec == nil {
		return id.Nil(), false, err
	}
	return rec.EntityID, true, nil
}

func (s *EventKeyStore) get(ctx context.Context, key string) (*EventKeyRecord, error) {
	var rec EventKeyRecord
	err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &rec, `
		SELECT idempotency_key, entity_type, entity_id, created_at, expires_at
		FROM sys_idempotency WHERE idempotency_key = $1
	`, key)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event key: %w", err)
	}
	return &rec, nil
}

// CleanupExpired removes expired event keys.
func (s *EventKeyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup event keys: %w", err)
	}
	return result.RowsAffected(), nil
}
