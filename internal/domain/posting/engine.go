package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/tx"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/pkg/logger"
)

var tracer = otel.Tracer("goldshop/posting")

// Config wires the engine. Audit and Outbox are optional.
type Config struct {
	TxManager tx.Manager
	Poster    *ledger.Poster
	Gold      *goldledger.Service
	Stock     *stock.Service
	Keys      KeyStore
	Audit     AuditSink
	Outbox    Outbox
}

// Engine posts business events.
//
// Post runs, in one transaction: claim the event key, validate every row,
// lock the affected accounts, insert transactions and adjust balances,
// insert gold and stock rows, save the document, then write the audit
// record and outbox event. Any error rolls everything back.
type Engine struct {
	txManager tx.Manager
	poster    *ledger.Poster
	gold      *goldledger.Service
	stock     *stock.Service
	keys      KeyStore
	audit     AuditSink
	outbox    Outbox
}

// NewEngine creates a posting engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		txManager: cfg.TxManager,
		poster:    cfg.Poster,
		gold:      cfg.Gold,
		stock:     cfg.Stock,
		keys:      cfg.Keys,
		audit:     cfg.Audit,
		outbox:    cfg.Outbox,
	}
}

// Post applies set and save atomically. It returns false when ev.Key was
// already posted; nothing is written in that case and save is not called.
func (e *Engine) Post(ctx context.Context, ev Event, set *MovementSet, save func(ctx context.Context) error) (bool, error) {
	ctx, span := tracer.Start(ctx, "posting.post",
		trace.WithAttributes(
			attribute.String("entity.type", ev.EntityType),
			attribute.String("entity.id", ev.EntityID.String()),
			attribute.String("posting.action", ev.Action),
		))
	defer span.End()

	if set == nil {
		set = NewMovementSet()
	}
	e.stamp(ev, set)

	if err := e.validate(ctx, set); err != nil {
		return false, err
	}

	applied := false
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if ev.Key != "" && e.keys != nil {
			claimed, err := e.keys.Claim(ctx, ev.Key, ev.EntityType, ev.EntityID)
			if err != nil {
				return fmt.Errorf("claim event key: %w", err)
			}
			if !claimed {
				return nil
			}
		}

		if err := e.apply(ctx, set); err != nil {
			return err
		}

		if save != nil {
			if err := save(ctx); err != nil {
				return err
			}
		}

		if err := e.record(ctx, ev); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	span.SetAttributes(attribute.Bool("posting.applied", applied))
	if !applied {
		logger.Info(ctx, "event already posted",
			"event_key", ev.Key,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID)
	}
	return applied, nil
}

// AlreadyPostedError reports that an event key was claimed by an earlier
// posting of EntityID.
type AlreadyPostedError struct {
	Key      string
	EntityID id.ID
}

func (e *AlreadyPostedError) Error() string {
	return fmt.Sprintf("event %s already posted for %s", e.Key, e.EntityID)
}

// AsAlreadyPosted extracts an *AlreadyPostedError from err.
func AsAlreadyPosted(err error) (*AlreadyPostedError, bool) {
	var target *AlreadyPostedError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Commit is Post for callers that did work of their own in the enclosing
// transaction, such as drawing a document number. A lost key claim is
// returned as *AlreadyPostedError so that work rolls back; the caller then
// loads the entity the key was posted for.
func (e *Engine) Commit(ctx context.Context, ev Event, set *MovementSet, save func(ctx context.Context) error) error {
	applied, err := e.Post(ctx, ev, set, save)
	if err != nil || applied {
		return err
	}
	entityID, ok, err := e.PostedEntity(ctx, ev.Key)
	if err != nil {
		return err
	}
	if !ok {
		entityID = ev.EntityID
	}
	return &AlreadyPostedError{Key: ev.Key, EntityID: entityID}
}

var _ goldledger.EntryPoster = (*Engine)(nil)

// PostEntry implements goldledger.EntryPoster.
func (e *Engine) PostEntry(ctx context.Context, eventID string, entry *goldledger.Entry) (bool, error) {
	set := NewMovementSet()
	set.AddGold(entry)
	return e.Post(ctx, Event{
		Key:        EventKey(goldledger.EntityType, id.Nil(), "create", eventID),
		EntityType: goldledger.EntityType,
		EntityID:   entry.ID,
		Action:     "create",
		Snapshot:   entry,
	}, set, nil)
}

// Posted reports whether key was already posted. Document services call it
// after locking the document and before re-checking their state guards, so
// a replayed request returns the current document instead of failing on a
// guard the first attempt tripped.
func (e *Engine) Posted(ctx context.Context, key string) (bool, error) {
	_, ok, err := e.PostedEntity(ctx, key)
	return ok, err
}

// PostedEntity is Posted that also returns the entity the key was posted
// for. Creations use it to return the document a replay refers to.
func (e *Engine) PostedEntity(ctx context.Context, key string) (id.ID, bool, error) {
	if key == "" || e.keys == nil {
		return id.Nil(), false, nil
	}
	entityID, ok, err := e.keys.Lookup(ctx, key)
	if err != nil {
		return id.Nil(), false, fmt.Errorf("check event key: %w", err)
	}
	return entityID, ok, nil
}

// stamp back-links rows to the event entity and derives per-row keys.
func (e *Engine) stamp(ev Event, set *MovementSet) {
	ref := id.Ptr(ev.EntityID)

	for i, t := range set.Transactions {
		if t.ReferenceType == "" {
			t.ReferenceType = ev.EntityType
			t.ReferenceID = ref
		}
		if ev.Key != "" && t.IdempotencyKey == nil {
			key := fmt.Sprintf("%s/txn/%d", ev.Key, i+1)
			t.IdempotencyKey = &key
		}
	}
	for i, g := range set.GoldEntries {
		if g.RecorderType == "" {
			g.RecorderType = ev.EntityType
			g.RecorderID = ref
		}
		if ev.Key != "" && g.IdempotencyKey == "" {
			g.IdempotencyKey = fmt.Sprintf("%s/gold/%d", ev.Key, i+1)
		}
	}
	for i, m := range set.Stock {
		if m.RecorderType == "" {
			m.RecorderType = ev.EntityType
			m.RecorderID = ref
		}
		if ev.Key != "" && m.IdempotencyKey == "" {
			m.IdempotencyKey = fmt.Sprintf("%s/stock/%d", ev.Key, i+1)
		}
	}
}

// validate checks every row before the first write.
func (e *Engine) validate(ctx context.Context, set *MovementSet) error {
	for i, t := range set.Transactions {
		if err := precision.Normalize(t); err != nil {
			return apperror.NewInternal(err)
		}
		if err := t.Validate(ctx); err != nil {
			return withLine(err, i)
		}
	}
	for i, g := range set.GoldEntries {
		if err := precision.Normalize(g); err != nil {
			return apperror.NewInternal(err)
		}
		if err := g.Validate(ctx); err != nil {
			return withLine(err, i)
		}
	}
	for i, m := range set.Stock {
		if err := precision.Normalize(m); err != nil {
			return apperror.NewInternal(err)
		}
		if err := m.Validate(ctx); err != nil {
			return withLine(err, i)
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, set *MovementSet) error {
	if len(set.Transactions) > 0 {
		accounts, err := e.poster.Lock(ctx, set.Transactions)
		if err != nil {
			return err
		}
		for _, t := range set.Transactions {
			if _, err := e.poster.Record(ctx, t, accounts[t.AccountID]); err != nil {
				return err
			}
		}
	}

	if len(set.GoldEntries) > 0 {
		if _, err := e.gold.Record(ctx, set.GoldEntries); err != nil {
			return err
		}
	}

	if len(set.Stock) > 0 {
		if _, err := e.stock.RecordMovements(ctx, set.Stock); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, ev Event) error {
	if e.audit == nil && e.outbox == nil {
		return nil
	}
	snapshot := precision.ToWireMap(ev.Snapshot)

	if e.audit != nil {
		err := e.audit.Record(ctx, AuditRecord{
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Action:     ev.Action,
			EventKey:   ev.Key,
			Actor:      appctx.Actor(ctx),
			Snapshot:   snapshot,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("write audit: %w", err)
		}
	}

	if e.outbox != nil {
		err := e.outbox.Publish(ctx, OutboxEvent{
			AggregateType: ev.EntityType,
			AggregateID:   ev.EntityID,
			EventType:     ev.EntityType + "." + ev.Action,
			EventKey:      ev.Key,
			Payload:       snapshot,
		})
		if err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
	}
	return nil
}

func withLine(err error, i int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("lineNo", i+1)
	}
	return err
}
