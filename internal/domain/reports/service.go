package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/tx"
	"goldshop/internal/core/types"
	"goldshop/internal/core/validation"
	"goldshop/internal/domain/ledger"
	"goldshop/pkg/logger"
)

// CloseDayInput is the input of CloseDay.
type CloseDayInput struct {
	Date time.Time `json:"date" validate:"required"`
	// OpeningCash defaults to the actual closing of the previous closed day.
	OpeningCash   *decimal.Decimal `json:"opening_cash"`
	ActualClosing decimal.Decimal  `json:"actual_closing" validate:"gte=0,lte=100000000"`
	Notes         string           `json:"notes" validate:"max=500"`
}

// Service provides report generation operations.
type Service struct {
	repo      Repository
	accounts  AccountReader
	txns      TransactionTotals
	gold      GoldTotals
	txManager tx.Manager
}

// NewService creates a new reports service.
func NewService(repo Repository, accounts AccountReader, txns TransactionTotals, gold GoldTotals, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		accounts:  accounts,
		txns:      txns,
		gold:      gold,
		txManager: txManager,
	}
}

// read runs fn in a read-only transaction when the manager supports one.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

// OutstandingSummary sums max(balance_due, 0) over all non-deleted invoices and
// ranks customers by what they owe. Walk-in customers are grouped by name.
func (s *Service) OutstandingSummary(ctx context.Context) (*OutstandingSummary, error) {
	var rows []InvoiceBalance
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.InvoiceBalances(ctx, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get invoice balances: %w", err)
	}

	byCustomer := make(map[string]*CustomerOutstanding)
	var order []string
	total := decimal.Zero
	for _, r := range rows {
		due := types.MaxDecimal(r.BalanceDue, decimal.Zero)
		total = total.Add(due)

		key, name := customerKey(r)
		c, ok := byCustomer[key]
		if !ok {
			c = &CustomerOutstanding{PartyID: r.PartyID, Name: name, Outstanding: decimal.Zero}
			byCustomer[key] = c
			order = append(order, key)
		}
		c.Outstanding = c.Outstanding.Add(due)
		c.InvoiceCount++
	}

	customers := make([]CustomerOutstanding, 0, len(order))
	for _, key := range order {
		c := byCustomer[key]
		if c.Outstanding.IsPositive() {
			c.Outstanding = types.RoundMoney(c.Outstanding)
			customers = append(customers, *c)
		}
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].Outstanding.GreaterThan(customers[j].Outstanding)
	})

	summary := &OutstandingSummary{
		TotalOutstanding: types.RoundMoney(total),
		CustomerCount:    len(customers),
		TopCustomers:     customers,
	}
	if len(summary.TopCustomers) > TopCustomersLimit {
		summary.TopCustomers = summary.TopCustomers[:TopCustomersLimit]
	}
	return summary, nil
}

func customerKey(r InvoiceBalance) (string, string) {
	if r.PartyID != nil && !r.IsWalkIn {
		return r.PartyID.String(), r.PartyName
	}
	name := r.WalkInName
	if name == "" {
		name = r.PartyName
	}
	return "walk-in:" + name, name
}

// NetFlowSummary sums debits and credits on cash, bank and petty accounts.
func (s *Service) NetFlowSummary(ctx context.Context, filter FlowFilter) (*NetFlowSummary, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, apperror.NewValidation("date_from must not be after date_to").
			WithDetail("field", "date_from")
	}

	var (
		accounts []*ledger.Account
		totals   map[id.ID]ledger.Totals
	)
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		accounts, err = s.accounts.List(ctx, ledger.AccountFilter{Types: ledger.CashTypes, IncludeDeleted: true})
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		totals, err = s.txns.Totals(ctx, ledger.TransactionFilter{
			AccountTypes: ledger.CashTypes,
			DateFrom:     filter.DateFrom,
			DateTo:       filter.DateTo,
		})
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var cashDebit, cashCredit, bankDebit, bankCredit decimal.Decimal
	count := 0
	for _, acc := range accounts {
		t, ok := totals[acc.ID]
		if !ok || !acc.AccountType.MovesCash() {
			continue
		}
		count += t.Count
		if acc.AccountType == ledger.AccountBank {
			bankDebit = bankDebit.Add(t.Debit)
			bankCredit = bankCredit.Add(t.Credit)
		} else {
			cashDebit = cashDebit.Add(t.Debit)
			cashCredit = cashCredit.Add(t.Credit)
		}
	}

	summary := &NetFlowSummary{
		TotalIn:          cashDebit.Add(bankDebit),
		TotalOut:         cashCredit.Add(bankCredit),
		CashSummary:      newFlowTotals(cashDebit, cashCredit),
		BankSummary:      newFlowTotals(bankDebit, bankCredit),
		TransactionCount: count,
	}
	summary.NetFlow = summary.TotalIn.Sub(summary.TotalOut)
	if err := precision.Normalize(summary); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return summary, nil
}

// PartySummary returns the gold and money position of one party.
func (s *Service) PartySummary(ctx context.Context, partyID id.ID) (*PartySummary, error) {
	if id.IsNil(partyID) {
		return nil, apperror.NewValidation("party id is required").WithDetail("field", "party_id")
	}

	summary := &PartySummary{PartyID: partyID}
	err := s.read(ctx, func(ctx context.Context) error {
		gold, err := s.gold.TotalsByParty(ctx, partyID)
		if err != nil {
			return fmt.Errorf("sum gold entries: %w", err)
		}
		summary.Gold = GoldSummary{
			GoldDueFromParty: gold.Out,
			GoldDueToParty:   gold.In,
			NetGoldBalance:   gold.Out.Sub(gold.In),
			TotalEntries:     gold.Count,
		}

		invoices, err := s.repo.InvoiceBalances(ctx, &partyID)
		if err != nil {
			return fmt.Errorf("get invoice balances: %w", err)
		}
		purchases, err := s.repo.PurchaseBalances(ctx, partyID)
		if err != nil {
			return fmt.Errorf("get purchase balances: %w", err)
		}
		txns, err := s.txns.Totals(ctx, ledger.TransactionFilter{PartyID: &partyID})
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}

		from, to := decimal.Zero, decimal.Zero
		for _, inv := range invoices {
			if inv.BalanceDue.IsPositive() {
				from = from.Add(inv.BalanceDue)
			} else {
				to = to.Add(inv.BalanceDue.Neg())
			}
		}
		for _, p := range purchases {
			to = to.Add(types.MaxDecimal(p.BalanceDueMoney, decimal.Zero))
		}
		count := 0
		for _, t := range txns {
			count += t.Count
		}

		summary.Money = MoneySummary{
			MoneyDueFromParty: from,
			MoneyDueToParty:   to,
			NetMoneyBalance:   from.Sub(to),
			TotalInvoices:     len(invoices),
			TotalPurchases:    len(purchases),
			TotalTransactions: count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := precision.Normalize(summary); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return summary, nil
}

// CloseDay records the cash count of a day:
//
//	expected = opening + cash debits - cash credits
//	difference = actual - expected
//
// A day can be closed once.
func (s *Service) CloseDay(ctx context.Context, in CloseDayInput) (*DailyClosing, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	day := Day(in.Date)
	next := day.AddDate(0, 0, 1)

	closing := &DailyClosing{
		BaseEntity:    entity.NewBaseEntity(),
		Date:          day,
		ActualClosing: in.ActualClosing,
		Notes:         in.Notes,
	}
	closing.SetCreatedBy(appctx.Actor(ctx))

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetClosing(ctx, day)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("get closing: %w", err)
		}
		if existing != nil {
			return apperror.NewDayClosed(day).WithDetail("closing_id", existing.ID)
		}

		if in.OpeningCash != nil {
			closing.OpeningCash = *in.OpeningCash
		} else {
			prev, err := s.repo.LastClosingBefore(ctx, day)
			if err != nil {
				return fmt.Errorf("get previous closing: %w", err)
			}
			if prev != nil {
				closing.OpeningCash = prev.ActualClosing
			}
		}

		totals, err := s.txns.Totals(ctx, ledger.TransactionFilter{
			AccountTypes: []ledger.AccountType{ledger.AccountCash, ledger.AccountPetty},
			DateFrom:     &day,
			DateTo:       &next,
		})
		if err != nil {
			return fmt.Errorf("sum cash transactions: %w", err)
		}
		closing.CashIn, closing.CashOut = decimal.Zero, decimal.Zero
		for _, t := range totals {
			closing.CashIn = closing.CashIn.Add(t.Debit)
			closing.CashOut = closing.CashOut.Add(t.Credit)
		}

		closing.ExpectedClosing = closing.OpeningCash.Add(closing.CashIn).Sub(closing.CashOut)
		closing.Difference = closing.ActualClosing.Sub(closing.ExpectedClosing)
		if err := precision.Normalize(closing); err != nil {
			return apperror.NewInternal(err)
		}
		return s.repo.CreateClosing(ctx, closing)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "day closed",
		"date", day.Format(time.DateOnly),
		"expected", closing.ExpectedClosing.String(),
		"actual", closing.ActualClosing.String(),
		"difference", closing.Difference.String())
	return closing, nil
}

// GetClosing returns the closing of the day containing date.
func (s *Service) GetClosing(ctx context.Context, date time.Time) (*DailyClosing, error) {
	return s.repo.GetClosing(ctx, Day(date))
}
