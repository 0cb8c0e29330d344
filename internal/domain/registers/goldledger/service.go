package goldledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/tx"
	"goldshop/internal/core/types"
	"goldshop/internal/core/validation"
	"goldshop/pkg/logger"
)

// CreateEntryInput is the input of CreateEntry.
type CreateEntryInput struct {
	// EventID makes the call replay-safe; repeating it returns the first entry.
	EventID       string           `json:"event_id" validate:"max=100"`
	PartyID       id.ID            `json:"party_id" validate:"required"`
	PartyName     string           `json:"party_name" validate:"max=200"`
	Type          entity.Direction `json:"type" validate:"required,oneof=IN OUT"`
	WeightGrams   decimal.Decimal  `json:"weight_grams" validate:"gt=0"`
	PurityEntered types.Purity     `json:"purity_entered" validate:"min=1,max=999"`
	Purpose       Purpose          `json:"purpose" validate:"required"`
	ReferenceType string           `json:"reference_type" validate:"max=50"`
	ReferenceID   *id.ID           `json:"reference_id"`
	Notes         string           `json:"notes" validate:"max=500"`
}

const (
	// EntityType is the event entity type of standalone entries.
	EntityType = "gold_entry"

	// RecorderManual marks standalone entries without a reference.
	RecorderManual = "manual"
)

// EntryPoster posts a standalone entry as a business event, with its audit
// row and outbox event. It returns false when eventID was already posted.
// posting.Engine implements it.
type EntryPoster interface {
	PostEntry(ctx context.Context, eventID string, e *Entry) (bool, error)
}

// Service provides gold ledger operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
	poster    EntryPoster
}

// NewService creates a gold ledger service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// UsePoster routes CreateEntry through p. The engine itself records
// entries through this service, so it is attached after construction.
func (s *Service) UsePoster(p EntryPoster) {
	s.poster = p
}

// Record inserts entries produced by a document posting. It must run
// inside the caller's transaction. Replayed entries are skipped.
func (s *Service) Record(ctx context.Context, entries []*Entry) (int, error) {
	inserted := 0
	for i, e := range entries {
		if err := e.Validate(ctx); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return 0, appErr.WithDetail("lineNo", i+1)
			}
			return 0, err
		}
		if e.CreatedBy == "" {
			e.CreatedBy = appctx.Actor(ctx)
		}
		ok, err := s.repo.Insert(ctx, e)
		if err != nil {
			return 0, fmt.Errorf("insert gold entry: %w", err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// CreateEntry records a standalone gold movement for a party.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (*Entry, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	e := NewEntry(in.PartyID, in.Type, in.WeightGrams, in.PurityEntered, in.Purpose)
	e.PartyName = in.PartyName
	e.Notes = in.Notes
	e.RecorderType = in.ReferenceType
	e.RecorderID = in.ReferenceID
	if e.RecorderType == "" {
		e.RecorderType = RecorderManual
	}
	if in.EventID != "" {
		e.IdempotencyKey = "goldledger/" + in.EventID
	}
	if err := precision.Normalize(e); err != nil {
		return nil, apperror.NewInternal(err)
	}

	replayed := false
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		applied, err := s.insert(ctx, in.EventID, e)
		if err != nil {
			return err
		}
		if !applied {
			replayed = true
			existing, err := s.repo.GetByIdempotencyKey(ctx, e.IdempotencyKey)
			if err != nil {
				return err
			}
			e = existing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		logger.Info(ctx, "gold ledger entry created",
			"id", e.ID,
			"party_id", e.PartyID,
			"type", e.Type,
			"weight_grams", e.WeightGrams.String())
	}
	return e, nil
}

func (s *Service) insert(ctx context.Context, eventID string, e *Entry) (bool, error) {
	if s.poster != nil {
		return s.poster.PostEntry(ctx, eventID, e)
	}
	n, err := s.Record(ctx, []*Entry{e})
	return n > 0, err
}

// ListByParty returns the party's non-deleted entries, oldest first.
func (s *Service) ListByParty(ctx context.Context, partyID id.ID) ([]*Entry, error) {
	return s.repo.ListByParty(ctx, partyID)
}

// TotalsByParty sums the party's IN and OUT weights.
func (s *Service) TotalsByParty(ctx context.Context, partyID id.ID) (Totals, error) {
	return s.repo.TotalsByParty(ctx, partyID)
}
