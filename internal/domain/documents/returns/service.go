package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/id"
	"goldshop/internal/core/numerator"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/tx"
	"goldshop/internal/core/types"
	"goldshop/internal/core/validation"
	"goldshop/internal/domain"
	"goldshop/internal/domain/audit"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/posting"
	"goldshop/pkg/logger"
)

// ItemInput is one returned line.
type ItemInput struct {
	Description string          `json:"description" validate:"max=200"`
	HeaderID    *id.ID          `json:"header_id"`
	Qty         int             `json:"qty" validate:"gte=0,lte=10000"`
	WeightGrams decimal.Decimal `json:"weight_grams" validate:"gte=0"`
	Purity      types.Purity    `json:"purity" validate:"omitempty,min=1,max=999"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0,lte=1000000"`
}

// RefundInput describes how the return is settled.
type RefundInput struct {
	RefundMode       RefundMode      `json:"refund_mode" validate:"required,oneof=money gold"`
	AccountID        *id.ID          `json:"account_id"`
	PaymentMode      ledger.Mode     `json:"payment_mode" validate:"omitempty,oneof=cash bank_transfer card cheque online gold_exchange"`
	RefundGoldGrams  decimal.Decimal `json:"refund_gold_grams" validate:"gte=0"`
	RefundGoldPurity types.Purity    `json:"refund_gold_purity" validate:"omitempty,min=1,max=999"`
}

// CreateInput is the input of Create.
type CreateInput struct {
	EventID string `json:"event_id" validate:"max=100"`

	ReturnType  Type        `json:"return_type" validate:"required,oneof=sale_return purchase_return"`
	ReferenceID id.ID       `json:"reference_id" validate:"required"`
	Date        *time.Time  `json:"date"`
	Items       []ItemInput `json:"items" validate:"required,min=1,dive"`
	RefundInput
	Notes string `json:"notes" validate:"max=2000"`
}

// UpdateInput replaces the lines and refund of a draft return.
type UpdateInput struct {
	Items []ItemInput `json:"items" validate:"required,min=1,dive"`
	RefundInput
	Notes string `json:"notes" validate:"max=2000"`
}

// Service provides business operations for returns.
type Service struct {
	repo          Repository
	references    ReferenceLookup
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	hooks         *domain.HookRegistry[*Return]
}

// NewService creates a returns service.
func NewService(
	repo Repository,
	references ReferenceLookup,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
) *Service {
	s := &Service{
		repo:          repo,
		references:    references,
		postingEngine: postingEngine,
		numerator:     numerator,
		txManager:     txManager,
		hooks:         domain.NewHookRegistry[*Return](),
	}
	s.hooks.OnBeforeCreate(audit.CreatedByHook[*Return])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Return] {
	return s.hooks
}

// Create records a draft return against an invoice or purchase. The
// counterparty is taken from the reference.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Return, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var key string
	if in.EventID != "" {
		key = posting.EventKey(EntityType, id.Nil(), "create", in.EventID)
		if existingID, ok, err := s.postingEngine.PostedEntity(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return s.GetByID(ctx, existingID)
		}
	}

	doc := NewReturn(in.ReturnType)
	doc.ReferenceID = in.ReferenceID
	if in.Date != nil {
		doc.Date = in.Date.UTC()
	}
	applyEditable(doc, in.Items, in.RefundInput, in.Notes)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ref, err := s.references.LockReference(ctx, doc.ReferenceType, doc.ReferenceID)
		if err != nil {
			return err
		}
		doc.Counterparty = ref.Counterparty
		doc.ReferenceNumber = ref.Number

		if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkRemaining(ctx, doc, ref); err != nil {
			return err
		}
		if err := precision.Normalize(doc); err != nil {
			return apperror.NewInternal(err)
		}

		number, err := s.numerator.Next(ctx, NumberConfig(), doc.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number

		if key == "" {
			key = posting.EventKey(EntityType, doc.ID, "create", "")
		}
		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "create",
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return fmt.Errorf("create return: %w", err)
			}
			return nil
		})
	})
	if replayed, ok := posting.AsAlreadyPosted(err); ok {
		return s.GetByID(ctx, replayed.EntityID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}
	logger.Info(ctx, "return created",
		"id", doc.ID,
		"number", doc.Number,
		"reference", doc.ReferenceNumber,
		"total_amount", doc.TotalAmount.String(),
		"total_weight_grams", doc.TotalWeightGrams.String())
	return doc, nil
}

// GetByID retrieves a non-deleted return.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Return, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, apperror.NewNotFound(EntityType, docID)
	}
	return doc, nil
}

// List returns returns matching filter.
func (s *Service) List(ctx context.Context, filter domain.DocumentFilter) ([]*Return, error) {
	return s.repo.List(ctx, filter)
}

// Remaining is what can still be returned against a reference: its
// original totals minus every finalized return.
func (s *Service) Remaining(ctx context.Context, t Type, refID id.ID) (Totals, error) {
	var out Totals
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ref, err := s.references.LockReference(ctx, t.ReferenceType(), refID)
		if err != nil {
			return err
		}
		done, err := s.repo.SumFinalized(ctx, ref.Type, ref.ID)
		if err != nil {
			return fmt.Errorf("sum finalized returns: %w", err)
		}
		out = Totals{
			Amount: types.RoundMoney(ref.Amount.Sub(done.Amount)),
			Weight: types.RoundWeight(ref.Weight.Sub(done.Weight)),
			Count:  done.Count,
		}
		return nil
	})
	return out, err
}

// Update replaces the lines and refund of a draft return.
func (s *Service) Update(ctx context.Context, docID id.ID, in UpdateInput) (*Return, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var doc *Return
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanEdit(); err != nil {
			return err
		}
		ref, err := s.references.LockReference(ctx, doc.ReferenceType, doc.ReferenceID)
		if err != nil {
			return err
		}

		applyEditable(doc, in.Items, in.RefundInput, in.Notes)
		if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkRemaining(ctx, doc, ref); err != nil {
			return err
		}
		doc.Touch()
		if err := precision.Normalize(doc); err != nil {
			return apperror.NewInternal(err)
		}

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        posting.EventKey(EntityType, doc.ID, "update", ""),
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "update",
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
	})
	if replayed, ok := posting.AsAlreadyPosted(err); ok {
		return s.GetByID(ctx, replayed.EntityID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterUpdate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	logger.Info(ctx, "return updated",
		"id", doc.ID,
		"number", doc.Number,
		"total_amount", doc.TotalAmount.String())
	return doc, nil
}

// Delete soft-deletes a draft return. Finalized returns cannot be deleted.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var doc *Return
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanEdit(); err != nil {
			return err
		}
		if err := s.hooks.RunBeforeDelete(ctx, doc); err != nil {
			return err
		}
		doc.MarkDeleted()
		_, err = s.postingEngine.Post(ctx, posting.Event{
			Key:        posting.EventKey(EntityType, doc.ID, "delete", "once"),
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "delete",
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
		return err
	})
	if err != nil {
		return err
	}

	if err := s.hooks.RunAfterDelete(ctx, doc); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}
	logger.Info(ctx, "return deleted", "id", doc.ID, "number", doc.Number)
	return nil
}

// Finalize checks the return against what is still returnable on the
// locked reference, posts the refund and the reversing stock movements
// and makes the return terminal.
func (s *Service) Finalize(ctx context.Context, docID id.ID, eventID string) (*Return, error) {
	var doc *Return
	replay := false
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		key := posting.EventKey(EntityType, docID, "finalize", eventID)
		if replay, err = s.postingEngine.Posted(ctx, key); err != nil {
			return err
		} else if replay {
			doc, err = s.GetByID(ctx, docID)
			return err
		}
		if err := doc.CanEdit(); err != nil {
			return err
		}
		ref, err := s.references.LockReference(ctx, doc.ReferenceType, doc.ReferenceID)
		if err != nil {
			return err
		}

		doc.Recalculate()
		if err := doc.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkRemaining(ctx, doc, ref); err != nil {
			return err
		}
		if err := s.hooks.RunBeforePost(ctx, doc); err != nil {
			return err
		}

		txns, gold, moves := doc.Movements()
		set := posting.NewMovementSet()
		set.AddTransaction(txns...)
		set.AddGold(gold...)
		set.AddStock(moves...)

		doc.Status = StatusFinalized
		doc.Lock()
		doc.Touch()
		if err := precision.Normalize(doc); err != nil {
			return apperror.NewInternal(err)
		}

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "finalize",
			Snapshot:   doc,
		}, set, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
	})
	if replayed, ok := posting.AsAlreadyPosted(err); ok {
		return s.GetByID(ctx, replayed.EntityID)
	}
	if err != nil {
		return nil, err
	}
	if replay {
		return doc, nil
	}

	if err := s.hooks.RunAfterPost(ctx, doc); err != nil {
		logger.Warn(ctx, "after-post hook failed", "error", err)
	}
	logger.Info(ctx, "return finalized",
		"id", doc.ID,
		"number", doc.Number,
		"reference", doc.ReferenceNumber,
		"refund_mode", doc.RefundMode,
		"total_amount", doc.TotalAmount.String(),
		"total_weight_grams", doc.TotalWeightGrams.String())
	return doc, nil
}

// checkRemaining rejects a return larger than what is left on ref after
// the finalized returns. doc itself is never counted: it is a draft.
func (s *Service) checkRemaining(ctx context.Context, doc *Return, ref *Reference) error {
	done, err := s.repo.SumFinalized(ctx, ref.Type, ref.ID)
	if err != nil {
		return fmt.Errorf("sum finalized returns: %w", err)
	}

	remainingAmount := types.RoundMoney(ref.Amount.Sub(done.Amount))
	if types.ExceedsBy(doc.TotalAmount, remainingAmount) {
		return apperror.NewExceeds(apperror.CodeReturnExceedsOriginal, "total_amount",
			"return amount exceeds the remaining returnable amount", doc.TotalAmount.String(), remainingAmount.String())
	}
	remainingWeight := types.RoundWeight(ref.Weight.Sub(done.Weight))
	if types.ExceedsBy(doc.TotalWeightGrams, remainingWeight) {
		return apperror.NewExceeds(apperror.CodeReturnExceedsOriginal, "total_weight_grams",
			"return weight exceeds the remaining returnable weight", doc.TotalWeightGrams.String(), remainingWeight.String())
	}
	return nil
}

func applyEditable(doc *Return, items []ItemInput, refund RefundInput, notes string) {
	doc.Items = make([]Item, len(items))
	for i, it := range items {
		doc.Items[i] = Item{
			Description: it.Description,
			HeaderID:    it.HeaderID,
			Qty:         it.Qty,
			WeightGrams: it.WeightGrams,
			Purity:      it.Purity,
			Amount:      it.Amount,
		}
	}
	doc.RefundMode = refund.RefundMode
	doc.AccountID = refund.AccountID
	doc.PaymentMode = refund.PaymentMode
	if doc.RefundMode == RefundMoney && doc.PaymentMode == "" {
		doc.PaymentMode = ledger.ModeCash
	}
	doc.RefundGoldGrams = refund.RefundGoldGrams
	doc.RefundGoldPurity = refund.RefundGoldPurity
	doc.Notes = notes
	doc.Recalculate()
}
