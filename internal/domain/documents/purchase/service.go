package purchase

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
	"goldshop/internal/domain/registers/stock"
	"goldshop/pkg/logger"
)

// FactorSource returns the conversion factor currently in force.
// settings.Service implements it.
type FactorSource interface {
	ConversionFactor(ctx context.Context) (decimal.Decimal, error)
}

// StockReader lists the movements a document produced.
type StockReader interface {
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]*stock.Movement, error)
}

// ItemInput is one lot of a multi-item purchase.
type ItemInput struct {
	Description   string          `json:"description" validate:"max=200"`
	HeaderID      *id.ID          `json:"header_id"`
	WeightGrams   decimal.Decimal `json:"weight_grams" validate:"gt=0"`
	EnteredPurity types.Purity    `json:"entered_purity" validate:"min=1,max=999"`
	RatePerGram   decimal.Decimal `json:"rate_per_gram" validate:"gt=0"`
}

// CreateInput is the input of Create. Either Items or the header
// weight/purity/rate describe the gold bought.
type CreateInput struct {
	EventID string `json:"event_id" validate:"max=100"`

	VendorPartyID    *id.ID `json:"vendor_party_id"`
	VendorName       string `json:"vendor_name" validate:"max=200"`
	IsWalkIn         bool   `json:"is_walk_in"`
	WalkInVendorName string `json:"walk_in_vendor_name" validate:"max=200"`
	VendorOmanID     string `json:"vendor_oman_id" validate:"max=20"`
	Phone            string `json:"phone" validate:"max=30"`

	Date        *time.Time      `json:"date"`
	Description string          `json:"description" validate:"max=500"`
	HeaderID    *id.ID          `json:"header_id"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
	// EnteredPurity is mandatory for single-lot purchases; the valuation
	// rejects a zero purity.
	EnteredPurity types.Purity    `json:"entered_purity" validate:"omitempty,min=1,max=999"`
	RatePerGram   decimal.Decimal `json:"rate_per_gram"`
	Items         []ItemInput     `json:"items" validate:"dive"`
	Notes         string          `json:"notes" validate:"max=2000"`

	// InitialPayment is applied in the creation transaction.
	InitialPayment *ledger.Payment `json:"initial_payment" validate:"omitempty"`
}

// UpdateInput replaces the valued fields of an unlocked purchase.
type UpdateInput struct {
	EventID string `json:"event_id" validate:"max=100"`

	Description   string          `json:"description" validate:"max=500"`
	HeaderID      *id.ID          `json:"header_id"`
	WeightGrams   decimal.Decimal `json:"weight_grams"`
	EnteredPurity types.Purity    `json:"entered_purity" validate:"omitempty,min=1,max=999"`
	RatePerGram   decimal.Decimal `json:"rate_per_gram"`
	Items         []ItemInput     `json:"items" validate:"dive"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

// PaymentInput is the input of AddPayment.
type PaymentInput struct {
	// EventID makes the call replay-safe.
	EventID string `json:"event_id" validate:"max=100"`
	ledger.Payment
}

// Service provides business operations for purchases.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	stock         StockReader
	settings      FactorSource
	numerator     numerator.Generator
	txManager     tx.Manager
	hooks         *domain.HookRegistry[*Purchase]
}

// NewService creates a purchase service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	stock StockReader,
	settings FactorSource,
	numerator numerator.Generator,
	txManager tx.Manager,
) *Service {
	s := &Service{
		repo:          repo,
		postingEngine: postingEngine,
		stock:         stock,
		settings:      settings,
		numerator:     numerator,
		txManager:     txManager,
		hooks:         domain.NewHookRegistry[*Purchase](),
	}
	s.hooks.OnBeforeCreate(audit.CreatedByHook[*Purchase])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Purchase] {
	return s.hooks
}

// Create values and records a purchase, receives its gold into stock and
// applies the optional initial payment, all in one posting.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Purchase, error) {
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

	factor, err := s.settings.ConversionFactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("get conversion factor: %w", err)
	}

	doc := NewPurchase()
	doc.PartyID = in.VendorPartyID
	doc.PartyName = in.VendorName
	doc.IsWalkIn = in.IsWalkIn
	doc.WalkInName = in.WalkInVendorName
	doc.OmanID = in.VendorOmanID
	doc.Phone = in.Phone
	if in.Date != nil {
		doc.Date = in.Date.UTC()
	}
	doc.Notes = in.Notes
	applyValuedFields(doc, in.Description, in.HeaderID, in.WeightGrams, in.EnteredPurity, in.RatePerGram, in.Items)

	vals, err := doc.Revalue(factor)
	if err != nil {
		return nil, err
	}
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	set := posting.NewMovementSet()
	set.AddStock(doc.StockMovements(vals)...)
	if p := in.InitialPayment; p != nil {
		if err := checkPayment(doc, p.Amount); err != nil {
			return nil, err
		}
		doc.ApplyPayment(p.Amount)
		set.AddTransaction(s.paymentTransaction(doc, *p))
	}
	if err := precision.Normalize(doc); err != nil {
		return nil, apperror.NewInternal(err)
	}

	if key == "" {
		key = posting.EventKey(EntityType, doc.ID, "create", "")
	}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.Number == "" {
			number, err := s.numerator.Next(ctx, NumberConfig(), doc.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.Number = number
		}

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "create",
			Snapshot:   doc,
		}, set, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return fmt.Errorf("create purchase: %w", err)
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

	logger.Info(ctx, "purchase created",
		"id", doc.ID,
		"number", doc.Number,
		"amount_total", doc.AmountTotal.String(),
		"paid", doc.PaidAmountMoney.String(),
		"status", doc.Status)
	return doc, nil
}

// GetByID retrieves a non-deleted purchase.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Purchase, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, apperror.NewNotFound(EntityType, docID)
	}
	return doc, nil
}

// List returns purchases matching filter.
func (s *Service) List(ctx context.Context, filter domain.DocumentFilter) ([]*Purchase, error) {
	return s.repo.List(ctx, filter)
}

// Update revalues an unlocked purchase with its original conversion factor.
// Previously received stock is reversed and received again at the new
// weights.
func (s *Service) Update(ctx context.Context, docID id.ID, in UpdateInput) (*Purchase, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var doc *Purchase
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		key := posting.EventKey(EntityType, docID, "update", in.EventID)
		if replay, err := s.postingEngine.Posted(ctx, key); err != nil {
			return err
		} else if replay {
			doc, err = s.GetByID(ctx, docID)
			return err
		}
		if err := doc.CanModify(EntityType); err != nil {
			return err
		}

		applyValuedFields(doc, in.Description, in.HeaderID, in.WeightGrams, in.EnteredPurity, in.RatePerGram, in.Items)
		doc.Notes = in.Notes
		vals, err := doc.Revalue(doc.ConversionFactor)
		if err != nil {
			return err
		}
		if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		set := posting.NewMovementSet()
		reversals, err := s.stockReversals(ctx, doc, "purchase updated")
		if err != nil {
			return err
		}
		set.AddStock(reversals...)
		set.AddStock(doc.StockMovements(vals)...)

		doc.Touch()
		if err := precision.Normalize(doc); err != nil {
			return apperror.NewInternal(err)
		}
		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "update",
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

	if err := s.hooks.RunAfterUpdate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	logger.Info(ctx, "purchase updated",
		"id", doc.ID,
		"number", doc.Number,
		"amount_total", doc.AmountTotal.String(),
		"status", doc.Status)
	return doc, nil
}

// Delete soft-deletes an unlocked purchase without payments and reverses
// the stock it received.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var doc *Purchase
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(EntityType); err != nil {
			return err
		}
		if doc.PaidAmountMoney.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "purchase has payments and cannot be deleted").
				WithDetail("paid_amount_money", doc.PaidAmountMoney.String())
		}
		if err := s.hooks.RunBeforeDelete(ctx, doc); err != nil {
			return err
		}

		set := posting.NewMovementSet()
		reversals, err := s.stockReversals(ctx, doc, "purchase deleted")
		if err != nil {
			return err
		}
		set.AddStock(reversals...)

		doc.MarkDeleted()
		_, err = s.postingEngine.Post(ctx, posting.Event{
			Key:        posting.EventKey(EntityType, doc.ID, "delete", "once"),
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "delete",
			Snapshot:   doc,
		}, set, func(ctx context.Context) error {
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
	logger.Info(ctx, "purchase deleted", "id", doc.ID, "number", doc.Number)
	return nil
}

// AddPayment pays the vendor from an account: the paid amount grows, the
// status moves towards Paid and a credit transaction is posted. Payments on
// a locked purchase are rejected.
func (s *Service) AddPayment(ctx context.Context, docID id.ID, in PaymentInput) (*Purchase, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var doc *Purchase
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		key := posting.EventKey(EntityType, docID, "payment", in.EventID)
		if replay, err := s.postingEngine.Posted(ctx, key); err != nil {
			return err
		} else if replay {
			doc, err = s.GetByID(ctx, docID)
			return err
		}
		if err := doc.CanModify(EntityType); err != nil {
			return err
		}
		if err := checkPayment(doc, in.Amount); err != nil {
			return err
		}

		doc.ApplyPayment(in.Amount)
		doc.Touch()
		set := posting.NewMovementSet()
		set.AddTransaction(s.paymentTransaction(doc, in.Payment))

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "payment",
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

	logger.Info(ctx, "purchase payment added",
		"id", doc.ID,
		"number", doc.Number,
		"amount", in.Amount.String(),
		"balance_due", doc.BalanceDueMoney.String(),
		"status", doc.Status)
	return doc, nil
}

func (s *Service) paymentTransaction(doc *Purchase, p ledger.Payment) *ledger.Transaction {
	t := p.Transaction(ledger.Credit, "purchase_payment").
		WithReference(EntityType, doc.ID).
		WithParty(doc.PartyID, doc.DisplayName())
	t.Date = time.Now().UTC()
	if t.Notes == "" {
		t.Notes = fmt.Sprintf("Payment for purchase %s", doc.Number)
	}
	return t
}

func (s *Service) stockReversals(ctx context.Context, doc *Purchase, notes string) ([]*stock.Movement, error) {
	existing, err := s.stock.GetMovementsByRecorder(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get stock movements: %w", err)
	}
	// Net per header so repeated updates reverse only what is still held.
	type net struct {
		movement *stock.Movement
		qty      int
		weight   decimal.Decimal
	}
	order := make([]id.ID, 0)
	byHeader := make(map[id.ID]*net)
	for _, m := range existing {
		n, ok := byHeader[m.HeaderID]
		if !ok {
			n = &net{movement: m}
			byHeader[m.HeaderID] = n
			order = append(order, m.HeaderID)
		}
		n.qty += m.QtyDelta
		n.weight = n.weight.Add(m.WeightDelta)
	}

	var out []*stock.Movement
	for _, h := range order {
		n := byHeader[h]
		if !n.weight.IsPositive() {
			continue
		}
		r := stock.NewMovement(stock.MovementStockOut, h, n.qty, n.weight, notes)
		r.HeaderName = n.movement.HeaderName
		out = append(out, r)
	}
	return out, nil
}

func checkPayment(doc *Purchase, amount decimal.Decimal) error {
	if types.ExceedsBy(amount, doc.BalanceDueMoney) {
		return apperror.NewExceeds(apperror.CodePaymentExceedsBalance, "amount",
			"payment exceeds the balance due", amount.String(), doc.BalanceDueMoney.String())
	}
	return nil
}

func applyValuedFields(doc *Purchase, desc string, header *id.ID, weight decimal.Decimal, purity types.Purity, rate decimal.Decimal, items []ItemInput) {
	doc.Description = desc
	doc.HeaderID = header
	doc.Items = nil
	if len(items) == 0 {
		doc.WeightGrams = weight
		doc.EnteredPurity = purity
		doc.RatePerGram = rate
		return
	}
	doc.EnteredPurity = 0
	doc.RatePerGram = decimal.Zero
	doc.Items = make([]Item, len(items))
	for i, it := range items {
		doc.Items[i] = Item{
			Description:   it.Description,
			HeaderID:      it.HeaderID,
			WeightGrams:   it.WeightGrams,
			EnteredPurity: it.EnteredPurity,
			RatePerGram:   it.RatePerGram,
		}
	}
}
