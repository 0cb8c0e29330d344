package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
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
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/valuation"
	"goldshop/pkg/logger"
)

// ItemInput is one invoice line.
type ItemInput struct {
	Description       string                     `json:"description" validate:"max=200"`
	HeaderID          *id.ID                     `json:"header_id"`
	Qty               int                        `json:"qty" validate:"gte=0,lte=10000"`
	GrossWeight       decimal.Decimal            `json:"gross_weight" validate:"gte=0"`
	StoneWeight       decimal.Decimal            `json:"stone_weight" validate:"gte=0"`
	NetWeight         decimal.Decimal            `json:"net_weight" validate:"gte=0"`
	Purity            types.Purity               `json:"purity" validate:"omitempty,min=1,max=999"`
	MetalRate         decimal.Decimal            `json:"metal_rate" validate:"gte=0"`
	MakingChargeType  valuation.MakingChargeType `json:"making_charge_type" validate:"omitempty,oneof=flat per_gram per_inch"`
	MakingChargeValue decimal.Decimal            `json:"making_charge_value" validate:"gte=0"`
	Inches            *decimal.Decimal           `json:"inches"`
	StoneCharges      decimal.Decimal            `json:"stone_charges" validate:"gte=0"`
	VATPercent        decimal.Decimal            `json:"vat_percent" validate:"gte=0,lte=100"`
}

// GoldReceivedInput is gold handed over by the customer.
type GoldReceivedInput struct {
	Weight    decimal.Decimal    `json:"gold_received_weight" validate:"gt=0"`
	Rate      decimal.Decimal    `json:"gold_received_rate" validate:"gt=0"`
	Purity    types.Purity       `json:"gold_received_purity" validate:"min=1,max=999"`
	Purpose   goldledger.Purpose `json:"gold_received_purpose" validate:"required,oneof=advance_gold exchange"`
	AccountID *id.ID             `json:"gold_account_id"`
}

// CreateInput is the input of Create.
type CreateInput struct {
	EventID string `json:"event_id" validate:"max=100"`

	CustomerID     *id.ID `json:"customer_id"`
	CustomerName   string `json:"customer_name" validate:"max=200"`
	IsWalkIn       bool   `json:"is_walk_in"`
	WalkInName     string `json:"walk_in_customer_name" validate:"max=200"`
	CustomerOmanID string `json:"customer_oman_id" validate:"max=20"`
	CustomerPhone  string `json:"customer_phone" validate:"max=30"`

	Date           *time.Time         `json:"date"`
	Items          []ItemInput        `json:"items" validate:"required,min=1,dive"`
	DiscountAmount decimal.Decimal    `json:"discount_amount" validate:"gte=0"`
	GoldReceived   *GoldReceivedInput `json:"gold_received" validate:"omitempty"`
	Payments       []ledger.Payment   `json:"payments" validate:"dive"`
	CreditApplied  decimal.Decimal    `json:"credit_applied" validate:"gte=0"`
	JobCardID      *id.ID             `json:"job_card_id"`
	Notes          string             `json:"notes" validate:"max=2000"`
}

// UpdateInput replaces the editable fields of a draft invoice.
type UpdateInput struct {
	EventID string `json:"event_id" validate:"max=100"`

	Items          []ItemInput        `json:"items" validate:"required,min=1,dive"`
	DiscountAmount decimal.Decimal    `json:"discount_amount" validate:"gte=0"`
	GoldReceived   *GoldReceivedInput `json:"gold_received" validate:"omitempty"`
	Payments       []ledger.Payment   `json:"payments" validate:"dive"`
	Notes          string             `json:"notes" validate:"max=2000"`
}

// PaymentInput is the input of AddPayment.
type PaymentInput struct {
	EventID string `json:"event_id" validate:"max=100"`
	ledger.Payment
}

// Service provides business operations for invoices.
type Service struct {
	repo          Repository
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	hooks         *domain.HookRegistry[*Invoice]
}

// NewService creates an invoice service.
func NewService(
	repo Repository,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
) *Service {
	s := &Service{
		repo:          repo,
		postingEngine: postingEngine,
		numerator:     numerator,
		txManager:     txManager,
		hooks:         domain.NewHookRegistry[*Invoice](),
	}
	s.hooks.OnBeforeCreate(audit.CreatedByHook[*Invoice])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// Create records a draft invoice. Gold received, prior credit and
// payments taken now count as paid immediately; they reach the ledger on
// finalize.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
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

	doc := NewInvoice()
	doc.Counterparty = entity.Counterparty{
		PartyID:    in.CustomerID,
		PartyName:  in.CustomerName,
		IsWalkIn:   in.IsWalkIn,
		WalkInName: in.WalkInName,
		OmanID:     in.CustomerOmanID,
		Phone:      in.CustomerPhone,
	}
	if in.Date != nil {
		doc.Date = in.Date.UTC()
	}
	doc.JobCardID = in.JobCardID
	doc.CreditApplied = types.RoundMoney(in.CreditApplied)
	applyEditable(doc, in.Items, in.DiscountAmount, in.GoldReceived, in.Payments, in.Notes)

	if err := doc.Recalculate(); err != nil {
		return nil, err
	}
	doc.SettleCreation()
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	if err := precision.Normalize(doc); err != nil {
		return nil, apperror.NewInternal(err)
	}

	if key == "" {
		key = posting.EventKey(EntityType, doc.ID, "create", "")
	}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.Next(ctx, NumberConfig(), doc.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		doc.Number = number

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "create",
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return fmt.Errorf("create invoice: %w", err)
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
	logger.Info(ctx, "invoice created",
		"id", doc.ID,
		"number", doc.Number,
		"grand_total", doc.GrandTotal.String(),
		"paid_amount", doc.PaidAmount.String(),
		"balance_due", doc.BalanceDue.String(),
		"payment_status", doc.PaymentStatus)
	return doc, nil
}

// GetByID retrieves a non-deleted invoice.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Invoice, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, apperror.NewNotFound(EntityType, docID)
	}
	return doc, nil
}

// List returns invoices matching filter.
func (s *Service) List(ctx context.Context, filter domain.DocumentFilter) ([]*Invoice, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the lines and creation payments of a draft invoice.
func (s *Service) Update(ctx context.Context, docID id.ID, in UpdateInput) (*Invoice, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var doc *Invoice
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
		if err := doc.CanEdit(); err != nil {
			return err
		}

		applyEditable(doc, in.Items, in.DiscountAmount, in.GoldReceived, in.Payments, in.Notes)
		if err := doc.Recalculate(); err != nil {
			return err
		}
		doc.SettleCreation()
		if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}
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
	logger.Info(ctx, "invoice updated",
		"id", doc.ID,
		"number", doc.Number,
		"grand_total", doc.GrandTotal.String(),
		"balance_due", doc.BalanceDue.String())
	return doc, nil
}

// Delete soft-deletes a draft invoice. Drafts have posted nothing.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	var doc *Invoice
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
	logger.Info(ctx, "invoice deleted", "id", doc.ID, "number", doc.Number)
	return nil
}

// Finalize recomputes the totals, moves every categorized line out of
// stock, records received gold in the customer's gold ledger and posts the
// payments taken at creation. The invoice is locked for edits afterwards.
func (s *Service) Finalize(ctx context.Context, docID id.ID, eventID string) (*Invoice, error) {
	var doc *Invoice
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
		if err := doc.Recalculate(); err != nil {
			return err
		}
		doc.SettleCreation()
		if err := doc.Validate(ctx); err != nil {
			return err
		}
		if err := s.hooks.RunBeforePost(ctx, doc); err != nil {
			return err
		}

		set := posting.NewMovementSet()
		set.AddStock(doc.StockMovements()...)
		if g := doc.GoldReceived; g.Present() && !id.IsNilPtr(doc.PartyID) {
			entry := goldledger.NewEntry(*doc.PartyID, entity.DirectionIn, g.Weight, g.Purity, g.Purpose)
			entry.PartyName = doc.PartyName
			entry.Period = doc.Date
			entry.Notes = fmt.Sprintf("Gold received on invoice %s: %sg x %s = %s",
				doc.Number, g.Weight.StringFixed(types.WeightPlaces),
				g.Rate.StringFixed(types.RatePlaces), g.Value.StringFixed(types.ValuePlaces))
			set.AddGold(entry)
		}
		set.AddTransaction(s.creationTransactions(doc)...)

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
	logger.Info(ctx, "invoice finalized",
		"id", doc.ID,
		"number", doc.Number,
		"grand_total", doc.GrandTotal.String(),
		"paid_amount", doc.PaidAmount.String(),
		"balance_due", doc.BalanceDue.String())
	return doc, nil
}

// AddPayment receives money against a finalized invoice and posts a debit
// transaction. A payment larger than the balance due is rejected.
func (s *Service) AddPayment(ctx context.Context, docID id.ID, in PaymentInput) (*Invoice, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var doc *Invoice
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
		if doc.IsDeleted {
			return apperror.NewNotFound(EntityType, docID)
		}
		if !doc.IsFinalized() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "invoice must be finalized before payments are added").
				WithDetail("id", doc.ID).
				WithDetail("status", string(doc.Status))
		}
		if types.ExceedsBy(in.Amount, doc.BalanceDue) {
			return apperror.NewExceeds(apperror.CodePaymentExceedsBalance, "amount",
				"payment exceeds the balance due", in.Amount.String(), doc.BalanceDue.String())
		}

		doc.ApplyPayment(in.Amount)
		doc.Touch()
		t := in.Payment.Transaction(ledger.Debit, "sale_payment").
			WithReference(EntityType, doc.ID).
			WithParty(doc.PartyID, doc.DisplayName())
		if t.Notes == "" {
			t.Notes = fmt.Sprintf("Payment for invoice %s", doc.Number)
		}
		set := posting.NewMovementSet()
		set.AddTransaction(t)

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

	logger.Info(ctx, "invoice payment added",
		"id", doc.ID,
		"number", doc.Number,
		"amount", in.Amount.String(),
		"balance_due", doc.BalanceDue.String(),
		"payment_status", doc.PaymentStatus)
	return doc, nil
}

// creationTransactions books the payments taken at creation.
func (s *Service) creationTransactions(doc *Invoice) []*ledger.Transaction {
	var out []*ledger.Transaction
	for _, p := range doc.InitialPayments {
		t := p.Transaction(ledger.Debit, "sale_payment").
			WithReference(EntityType, doc.ID).
			WithParty(doc.PartyID, doc.DisplayName())
		t.Date = doc.Date
		if t.Notes == "" {
			t.Notes = fmt.Sprintf("Payment for invoice %s", doc.Number)
		}
		out = append(out, t)
	}

	g := doc.GoldReceived
	if g.Present() && !id.IsNilPtr(g.AccountID) && g.Value.IsPositive() {
		t := ledger.NewTransaction(ledger.Debit, *g.AccountID, g.Value, ledger.ModeGoldExchange, string(g.Purpose)).
			WithReference(EntityType, doc.ID).
			WithParty(doc.PartyID, doc.DisplayName())
		t.Date = doc.Date
		t.Notes = fmt.Sprintf("Gold received on invoice %s", doc.Number)
		out = append(out, t)
	}
	return out
}

func applyEditable(doc *Invoice, items []ItemInput, discount decimal.Decimal, gold *GoldReceivedInput, payments []ledger.Payment, notes string) {
	doc.Items = make([]Item, len(items))
	for i, it := range items {
		doc.Items[i] = Item{
			Description:       it.Description,
			HeaderID:          it.HeaderID,
			Qty:               it.Qty,
			GrossWeight:       it.GrossWeight,
			StoneWeight:       it.StoneWeight,
			NetWeight:         it.NetWeight,
			Purity:            it.Purity,
			MetalRate:         it.MetalRate,
			MakingChargeType:  it.MakingChargeType,
			MakingChargeValue: it.MakingChargeValue,
			Inches:            it.Inches,
			StoneCharges:      it.StoneCharges,
			VATPercent:        it.VATPercent,
		}
	}
	doc.DiscountAmount = types.RoundMoney(discount)

	doc.GoldReceived = GoldReceived{}
	if gold != nil {
		doc.GoldReceived = GoldReceived{
			Weight:    gold.Weight,
			Rate:      gold.Rate,
			Purity:    gold.Purity,
			Purpose:   gold.Purpose,
			AccountID: gold.AccountID,
		}
	}
	doc.InitialPayments = payments
	doc.Notes = notes
}

// Quote returns the grand total items would produce without creating an
// invoice.
func Quote(items []ItemInput, discount decimal.Decimal) (decimal.Decimal, error) {
	doc := NewInvoice()
	applyEditable(doc, items, discount, nil, nil, "")
	if err := doc.Recalculate(); err != nil {
		return decimal.Zero, err
	}
	return doc.GrandTotal, nil
}
