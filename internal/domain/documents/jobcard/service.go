package jobcard

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
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/posting"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/valuation"
	"goldshop/pkg/logger"
)

// InvoiceCreator creates and reads invoices. invoice.Service implements it.
type InvoiceCreator interface {
	Create(ctx context.Context, in invoice.CreateInput) (*invoice.Invoice, error)
	GetByID(ctx context.Context, docID id.ID) (*invoice.Invoice, error)
}

// ItemInput is one piece under work.
type ItemInput struct {
	Category          string                     `json:"category" validate:"max=100"`
	HeaderID          *id.ID                     `json:"header_id"`
	Description       string                     `json:"description" validate:"max=200"`
	Qty               int                        `json:"qty" validate:"gte=0,lte=10000"`
	WeightIn          decimal.Decimal            `json:"weight_in" validate:"gt=0"`
	WeightOut         decimal.Decimal            `json:"weight_out" validate:"gte=0"`
	Purity            types.Purity               `json:"purity" validate:"omitempty,min=1,max=999"`
	WorkType          string                     `json:"work_type" validate:"max=50"`
	MakingChargeType  valuation.MakingChargeType `json:"making_charge_type" validate:"omitempty,oneof=flat per_gram per_inch"`
	MakingChargeValue decimal.Decimal            `json:"making_charge_value" validate:"gte=0"`
	Inches            *decimal.Decimal           `json:"inches"`
	Remarks           string                     `json:"remarks" validate:"max=500"`
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

	CardType     CardType    `json:"card_type" validate:"required,oneof=repair custom polish resize"`
	Date         *time.Time  `json:"date"`
	DeliveryDate *time.Time  `json:"delivery_date"`
	WorkerID     *id.ID      `json:"worker_id"`
	WorkerName   string      `json:"worker_name" validate:"max=200"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`

	AdvanceInGoldGrams  decimal.Decimal `json:"advance_in_gold_grams" validate:"gte=0"`
	AdvanceGoldRate     decimal.Decimal `json:"advance_gold_rate" validate:"gte=0"`
	ExchangeInGoldGrams decimal.Decimal `json:"exchange_in_gold_grams" validate:"gte=0"`
	ExchangeGoldRate    decimal.Decimal `json:"exchange_gold_rate" validate:"gte=0"`
	GoldPurity          types.Purity    `json:"gold_purity" validate:"omitempty,min=1,max=999"`

	Notes string `json:"notes" validate:"max=2000"`
}

// UpdateInput replaces the work details of an unconverted job card.
// Advance and exchange gold are fixed at creation.
type UpdateInput struct {
	CardType     CardType    `json:"card_type" validate:"required,oneof=repair custom polish resize"`
	DeliveryDate *time.Time  `json:"delivery_date"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
	Notes        string      `json:"notes" validate:"max=2000"`
}

// ConvertInput prices the finished work.
type ConvertInput struct {
	EventID string `json:"event_id" validate:"max=100"`
	// MetalRate is charged per gram of finished weight; zero for work on
	// the customer's own gold.
	MetalRate  decimal.Decimal `json:"metal_rate" validate:"gte=0"`
	VATPercent decimal.Decimal `json:"vat_percent" validate:"gte=0,lte=100"`
}

// Service provides business operations for job cards.
type Service struct {
	repo          Repository
	invoices      InvoiceCreator
	postingEngine *posting.Engine
	numerator     numerator.Generator
	txManager     tx.Manager
	hooks         *domain.HookRegistry[*JobCard]
}

// NewService creates a job card service.
func NewService(
	repo Repository,
	invoices InvoiceCreator,
	postingEngine *posting.Engine,
	numerator numerator.Generator,
	txManager tx.Manager,
) *Service {
	s := &Service{
		repo:          repo,
		invoices:      invoices,
		postingEngine: postingEngine,
		numerator:     numerator,
		txManager:     txManager,
		hooks:         domain.NewHookRegistry[*JobCard](),
	}
	s.hooks.OnBeforeCreate(audit.CreatedByHook[*JobCard])
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*JobCard] {
	return s.hooks
}

// Create opens a pending job card. Advance and exchange gold of a stored
// customer are recorded in the gold ledger.
func (s *Service) Create(ctx context.Context, in CreateInput) (*JobCard, error) {
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

	doc := NewJobCard(in.CardType)
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
	doc.DeliveryDate = in.DeliveryDate
	if !id.IsNilPtr(in.WorkerID) {
		doc.WorkerID = in.WorkerID
		doc.WorkerName = in.WorkerName
	}
	doc.Items = toItems(in.Items)
	doc.AdvanceInGoldGrams = in.AdvanceInGoldGrams
	doc.AdvanceGoldRate = in.AdvanceGoldRate
	doc.ExchangeInGoldGrams = in.ExchangeInGoldGrams
	doc.ExchangeGoldRate = in.ExchangeGoldRate
	doc.GoldPurity = in.GoldPurity
	doc.Notes = in.Notes

	if err := doc.Recalculate(); err != nil {
		return nil, err
	}
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
		}, s.goldReceived(doc), func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return fmt.Errorf("create job card: %w", err)
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
	logger.Info(ctx, "job card created",
		"id", doc.ID,
		"number", doc.Number,
		"card_type", doc.CardType,
		"advance_grams", doc.AdvanceInGoldGrams.String(),
		"exchange_grams", doc.ExchangeInGoldGrams.String())
	return doc, nil
}

// GetByID retrieves a non-deleted job card.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*JobCard, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.IsDeleted {
		return nil, apperror.NewNotFound(EntityType, docID)
	}
	return doc, nil
}

// List returns job cards matching filter.
func (s *Service) List(ctx context.Context, filter domain.DocumentFilter) ([]*JobCard, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the work details of an unconverted job card.
func (s *Service) Update(ctx context.Context, docID id.ID, in UpdateInput) (*JobCard, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, docID, "update", func(doc *JobCard) error {
		doc.CardType = in.CardType
		doc.DeliveryDate = in.DeliveryDate
		doc.Items = toItems(in.Items)
		doc.Notes = in.Notes
		if err := doc.Recalculate(); err != nil {
			return err
		}
		return doc.Validate(ctx)
	})
}

// AssignWorker sets the worker responsible for the job.
func (s *Service) AssignWorker(ctx context.Context, docID id.ID, workerID id.ID, workerName string) (*JobCard, error) {
	if id.IsNil(workerID) {
		return nil, apperror.NewValidation("worker is required").
			WithDetail("field", "worker_id")
	}
	return s.mutate(ctx, docID, "assign_worker", func(doc *JobCard) error {
		doc.WorkerID = id.Ptr(workerID)
		doc.WorkerName = workerName
		return nil
	})
}

// ChangeStatus moves the job card one step along
// pending -> in_progress -> completed.
func (s *Service) ChangeStatus(ctx context.Context, docID id.ID, to Status) (*JobCard, error) {
	return s.mutate(ctx, docID, "status", func(doc *JobCard) error {
		return doc.Transition(to)
	})
}

// ConvertToInvoice turns a completed job card into a draft invoice. The
// advance and exchange gold value is deducted from the invoice, never
// beyond its grand total, and the breakdown is written to the invoice
// notes. A job card converts once.
func (s *Service) ConvertToInvoice(ctx context.Context, docID id.ID, in ConvertInput) (*JobCard, *invoice.Invoice, error) {
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	var (
		doc *JobCard
		inv *invoice.Invoice
	)
	key := posting.EventKey(EntityType, docID, "convert", in.EventID)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		replay, err := s.postingEngine.Posted(ctx, key)
		if err != nil {
			return err
		}
		if replay {
			doc, inv, err = s.converted(ctx, docID)
			return err
		}
		if err := doc.CanConvert(); err != nil {
			return err
		}

		items := invoiceItems(doc, in)
		grand, err := invoice.Quote(items, decimal.Zero)
		if err != nil {
			return err
		}
		applied := types.MinDecimal(doc.Deduction(), grand)

		invEvent := ""
		if in.EventID != "" {
			invEvent = "jobcard-" + in.EventID
		}
		inv, err = s.invoices.Create(ctx, invoice.CreateInput{
			EventID:        invEvent,
			CustomerID:     doc.PartyID,
			CustomerName:   doc.PartyName,
			IsWalkIn:       doc.IsWalkIn,
			WalkInName:     doc.WalkInName,
			CustomerOmanID: doc.OmanID,
			CustomerPhone:  doc.Phone,
			Items:          items,
			CreditApplied:  applied,
			JobCardID:      id.Ptr(doc.ID),
			Notes:          doc.ConversionNotes(grand, applied),
		})
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		doc.ConvertedToInvoice = true
		doc.InvoiceID = id.Ptr(inv.ID)
		doc.Lock()
		doc.Touch()

		return s.postingEngine.Commit(ctx, posting.Event{
			Key:        key,
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     "convert",
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
	})
	if replayed, ok := posting.AsAlreadyPosted(err); ok {
		return s.converted(ctx, replayed.EntityID)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "job card converted",
		"id", doc.ID,
		"number", doc.Number,
		"invoice_id", inv.ID,
		"invoice_number", inv.Number,
		"grand_total", inv.GrandTotal.String(),
		"deducted", inv.CreditApplied.String())
	return doc, inv, nil
}

// converted loads a converted job card with its invoice.
func (s *Service) converted(ctx context.Context, docID id.ID) (*JobCard, *invoice.Invoice, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if id.IsNilPtr(doc.InvoiceID) {
		return nil, nil, apperror.NewInternal(fmt.Errorf("converted job card %s has no invoice", docID))
	}
	inv, err := s.invoices.GetByID(ctx, *doc.InvoiceID)
	if err != nil {
		return nil, nil, err
	}
	return doc, inv, nil
}

// mutate runs fn on the locked job card and saves it.
func (s *Service) mutate(ctx context.Context, docID id.ID, action string, fn func(doc *JobCard) error) (*JobCard, error) {
	var doc *JobCard
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(EntityType); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
			return err
		}
		doc.Touch()
		if err := precision.Normalize(doc); err != nil {
			return apperror.NewInternal(err)
		}

		_, err = s.postingEngine.Post(ctx, posting.Event{
			Key:        posting.EventKey(EntityType, doc.ID, action, ""),
			EntityType: EntityType,
			EntityID:   doc.ID,
			Action:     action,
			Snapshot:   doc,
		}, nil, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterUpdate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	logger.Info(ctx, "job card updated",
		"id", doc.ID,
		"number", doc.Number,
		"action", action,
		"status", doc.Status)
	return doc, nil
}

// goldReceived records advance and exchange gold handed over by a stored
// customer.
func (s *Service) goldReceived(doc *JobCard) *posting.MovementSet {
	set := posting.NewMovementSet()
	if id.IsNilPtr(doc.PartyID) {
		return set
	}
	purity := doc.GoldPurity
	if purity == 0 {
		purity = types.ValuationPurity
	}
	add := func(g GoldIn, purpose goldledger.Purpose, label string) {
		if !g.Grams.IsPositive() {
			return
		}
		e := goldledger.NewEntry(*doc.PartyID, entity.DirectionIn, g.Grams, purity, purpose)
		e.PartyName = doc.PartyName
		e.Period = doc.Date
		e.Notes = fmt.Sprintf("%s gold on job card %s: %sg x %s = %s", label, doc.Number,
			g.Grams.StringFixed(types.WeightPlaces), g.Rate.StringFixed(types.RatePlaces),
			g.Value().StringFixed(types.MoneyPlaces))
		set.AddGold(e)
	}
	add(doc.Advance(), goldledger.PurposeAdvanceGold, "Advance")
	add(doc.Exchange(), goldledger.PurposeExchange, "Exchange")
	return set
}

func toItems(in []ItemInput) []Item {
	items := make([]Item, len(in))
	for i, it := range in {
		items[i] = Item{
			Category:          it.Category,
			HeaderID:          it.HeaderID,
			Description:       it.Description,
			Qty:               it.Qty,
			WeightIn:          it.WeightIn,
			WeightOut:         it.WeightOut,
			Purity:            it.Purity,
			WorkType:          it.WorkType,
			MakingChargeType:  it.MakingChargeType,
			MakingChargeValue: it.MakingChargeValue,
			Inches:            it.Inches,
			Remarks:           it.Remarks,
		}
	}
	return items
}

func invoiceItems(doc *JobCard, in ConvertInput) []invoice.ItemInput {
	items := make([]invoice.ItemInput, len(doc.Items))
	for i, it := range doc.Items {
		desc := it.Description
		if it.WorkType != "" {
			desc = fmt.Sprintf("%s (%s)", desc, it.WorkType)
		}
		items[i] = invoice.ItemInput{
			Description:       desc,
			HeaderID:          it.HeaderID,
			Qty:               it.Qty,
			GrossWeight:       it.FinishedWeight(),
			NetWeight:         it.FinishedWeight(),
			Purity:            it.Purity,
			MetalRate:         in.MetalRate,
			MakingChargeType:  it.MakingChargeType,
			MakingChargeValue: it.MakingChargeValue,
			Inches:            it.Inches,
			VATPercent:        in.VATPercent,
		}
	}
	return items
}
