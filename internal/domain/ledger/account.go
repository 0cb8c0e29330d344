// Package ledger provides accounts, the append-only transaction ledger and
// the account-type sign convention that drives balance propagation.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/types"
)

// AccountType classifies an account and decides its sign convention.
type AccountType string

const (
	AccountCash         AccountType = "cash"
	AccountBank         AccountType = "bank"
	AccountPetty        AccountType = "petty"
	AccountIncome       AccountType = "income"
	AccountExpense      AccountType = "expense"
	AccountAsset        AccountType = "asset"
	AccountLiability    AccountType = "liability"
	AccountCreditCard   AccountType = "credit_card"
	AccountMobileWallet AccountType = "mobile_wallet"
)

// AccountTypes lists every valid account type.
var AccountTypes = []AccountType{
	AccountCash, AccountBank, AccountPetty, AccountIncome, AccountExpense,
	AccountAsset, AccountLiability, AccountCreditCard, AccountMobileWallet,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DebitNormal reports whether a debit increases the balance.
// Income, liability and credit card accounts increase on credit.
func (t AccountType) DebitNormal() bool {
	switch t {
	case AccountIncome, AccountLiability, AccountCreditCard:
		return false
	default:
		return true
	}
}

// MovesCash reports whether the account holds literal money (cash, bank,
// petty). Only these accounts count towards net flow and daily closing.
func (t AccountType) MovesCash() bool {
	switch t {
	case AccountCash, AccountBank, AccountPetty:
		return true
	}
	return false
}

// CashTypes are the account types that move literal money.
var CashTypes = []AccountType{AccountCash, AccountBank, AccountPetty}

// Account is a money account with a running balance.
//
// CurrentBalance always equals OpeningBalance plus the signed sum of every
// non-deleted transaction against the account. It is only changed by the
// ledger Poster and by opening balance corrections.
type Account struct {
	entity.BaseEntity

	Name           string          `db:"name" json:"name"`
	AccountType    AccountType     `db:"account_type" json:"account_type"`
	OpeningBalance decimal.Decimal `db:"opening_balance" json:"opening_balance" precision:"money"`
	CurrentBalance decimal.Decimal `db:"current_balance" json:"current_balance" precision:"money"`
}

// NewAccount creates an account whose current balance starts at the opening balance.
func NewAccount(name string, accountType AccountType, opening decimal.Decimal) (*Account, error) {
	a := &Account{
		BaseEntity:     entity.NewBaseEntity(),
		Name:           name,
		AccountType:    accountType,
		OpeningBalance: types.RoundMoney(opening),
		CurrentBalance: types.RoundMoney(opening),
	}
	if err := a.Validate(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate implements entity.Validatable.
func (a *Account) Validate(ctx context.Context) error {
	if a.Name == "" {
		return apperror.NewValidation("account name is required").
			WithDetail("field", "name")
	}
	if !a.AccountType.Valid() {
		return apperror.NewValidation("unknown account type").
			WithDetail("field", "account_type").
			WithDetail("value", string(a.AccountType))
	}
	if a.OpeningBalance.Abs().GreaterThan(types.MaxOpeningBalance) {
		return apperror.NewValidation("opening balance is out of range").
			WithDetail("field", "opening_balance").
			WithDetail("max", types.MaxOpeningBalance.String())
	}
	return nil
}
