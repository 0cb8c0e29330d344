package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/internal/core/precision"
	"goldshop/internal/core/tx"
	"goldshop/internal/core/types"
	"goldshop/internal/core/validation"
	"goldshop/pkg/logger"
)

// CreateAccountInput is the input of CreateAccount.
type CreateAccountInput struct {
	Name           string          `json:"name" validate:"required,max=100"`
	AccountType    AccountType     `json:"account_type" validate:"required,oneof=cash bank petty income expense asset liability credit_card mobile_wallet"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=-1000000,lte=1000000"`
}

// CreateTransactionInput is the input of CreateTransaction.
type CreateTransactionInput struct {
	TransactionType TransactionType `json:"transaction_type" validate:"required,oneof=debit credit"`
	Mode            Mode            `json:"mode" validate:"required,oneof=cash bank_transfer card cheque online gold_exchange"`
	AccountID       id.ID           `json:"account_id" validate:"required"`
	PartyID         *id.ID          `json:"party_id"`
	PartyName       string          `json:"party_name" validate:"max=200"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0,lte=1000000"`
	Category        string          `json:"category" validate:"max=50"`
	Notes           string          `json:"notes" validate:"max=500"`
	Date            *time.Time      `json:"date"`
}

// Service provides account and manual transaction operations.
type Service struct {
	accounts  AccountRepository
	txns      TransactionRepository
	poster    *Poster
	txManager tx.Manager
}

// NewService creates a ledger service.
func NewService(accounts AccountRepository, txns TransactionRepository, txManager tx.Manager) *Service {
	return &Service{
		accounts:  accounts,
		txns:      txns,
		poster:    NewPoster(accounts, txns),
		txManager: txManager,
	}
}

// Poster returns the poster sharing this service's repositories.
func (s *Service) Poster() *Poster {
	return s.poster
}

// CreateAccount creates an account; its current balance starts at the opening balance.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*Account, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	acc, err := NewAccount(in.Name, in.AccountType, in.OpeningBalance)
	if err != nil {
		return nil, err
	}
	acc.SetCreatedBy(appctx.Actor(ctx))
	if err := precision.Normalize(acc); err != nil {
		return nil, apperror.NewInternal(err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, acc); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "account created",
		"id", acc.ID,
		"type", acc.AccountType,
		"opening_balance", acc.OpeningBalance.String())
	return acc, nil
}

// GetAccount returns an account by id.
func (s *Service) GetAccount(ctx context.Context, accountID id.ID) (*Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.IsDeleted {
		return nil, apperror.NewNotFound("account", accountID)
	}
	return acc, nil
}

// ListAccounts returns accounts matching filter.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	return s.accounts.List(ctx, filter)
}

// CorrectOpeningBalance replaces the opening balance; the current balance
// moves by the same delta so the conservation invariant is kept.
func (s *Service) CorrectOpeningBalance(ctx context.Context, accountID id.ID, opening decimal.Decimal) (*Account, error) {
	opening = types.RoundMoney(opening)
	if opening.Abs().GreaterThan(types.MaxOpeningBalance) {
		return nil, apperror.NewValidation("opening balance is out of range").
			WithDetail("field", "opening_balance").
			WithDetail("max", types.MaxOpeningBalance.String())
	}

	var acc *Account
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.accounts.LockForUpdate(ctx, []id.ID{accountID})
		if err != nil {
			return err
		}
		acc = locked[accountID]
		if acc == nil || acc.IsDeleted {
			return apperror.NewNotFound("account", accountID)
		}

		delta := opening.Sub(acc.OpeningBalance)
		if delta.IsZero() {
			return nil
		}
		if err := s.accounts.SetOpeningBalance(ctx, accountID, opening, delta); err != nil {
			return fmt.Errorf("set opening balance: %w", err)
		}
		acc.OpeningBalance = opening
		acc.CurrentBalance = acc.CurrentBalance.Add(delta)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "opening balance corrected",
		"id", acc.ID,
		"opening_balance", acc.OpeningBalance.String(),
		"current_balance", acc.CurrentBalance.String())
	return acc, nil
}

// CreateTransaction records a manual ledger row and applies its balance effect.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	t := NewTransaction(in.TransactionType, in.AccountID, in.Amount, in.Mode, in.Category).
		WithParty(in.PartyID, in.PartyName)
	t.ReferenceType = RefManual
	t.Notes = in.Notes
	if in.Date != nil {
		t.Date = in.Date.UTC()
	}
	if err := precision.Normalize(t); err != nil {
		return nil, apperror.NewInternal(err)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.poster.Lock(ctx, []*Transaction{t})
		if err != nil {
			return err
		}
		_, err = s.poster.Record(ctx, t, locked[t.AccountID])
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transaction recorded",
		"id", t.ID,
		"account_id", t.AccountID,
		"type", t.TransactionType,
		"amount", t.Amount.String())
	return t, nil
}

// DeleteTransaction soft-deletes a transaction and reverses its effect on
// the account balance.
func (s *Service) DeleteTransaction(ctx context.Context, txnID id.ID) error {
	var t *Transaction
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.txns.GetForUpdate(ctx, txnID)
		if err != nil {
			return err
		}
		if t.IsDeleted {
			return apperror.NewNotFound("transaction", txnID)
		}
		locked, err := s.poster.Lock(ctx, []*Transaction{t})
		if err != nil {
			return err
		}
		return s.poster.Reverse(ctx, t, locked[t.AccountID])
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transaction deleted",
		"id", t.ID,
		"account_id", t.AccountID,
		"amount", t.Amount.String())
	return nil
}

// ListTransactions returns non-deleted transactions matching filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {
	return s.txns.List(ctx, filter)
}

// Drift describes an account whose balance disagrees with its ledger.
type Drift struct {
	AccountID  id.ID           `json:"account_id"`
	Name       string          `json:"name"`
	Current    decimal.Decimal `json:"current_balance" precision:"money"`
	Expected   decimal.Decimal `json:"expected_balance" precision:"money"`
	Difference decimal.Decimal `json:"difference" precision:"money"`
}

// Reconcile recomputes every account balance from its opening balance and
// ledger rows and reports the accounts that drifted.
func (s *Service) Reconcile(ctx context.Context) ([]Drift, error) {
	var drifts []Drift
	run := func(ctx context.Context) error {
		accounts, err := s.accounts.List(ctx, AccountFilter{})
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		totals, err := s.txns.Totals(ctx, TransactionFilter{})
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}

		for _, acc := range accounts {
			expected := acc.OpeningBalance.Add(totals[acc.ID].Signed(acc.AccountType))
			diff := acc.CurrentBalance.Sub(expected)
			if !diff.IsZero() {
				drifts = append(drifts, Drift{
					AccountID:  acc.ID,
					Name:       acc.Name,
					Current:    acc.CurrentBalance,
					Expected:   types.RoundMoney(expected),
					Difference: types.RoundMoney(diff),
				})
			}
		}
		return nil
	}

	var err error
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		err = ro.ReadOnly(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range drifts {
		logger.Warn(ctx, "account balance drift",
			"account_id", d.AccountID,
			"current", d.Current.String(),
			"expected", d.Expected.String())
	}
	return drifts, nil
}
