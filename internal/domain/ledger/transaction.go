package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
	"goldshop/internal/core/types"
)

// TransactionType is the side of a ledger row.
type TransactionType string

const (
	// Debit records money coming into the shop's asset accounts.
	Debit TransactionType = "debit"
	// Credit records money leaving them.
	Credit TransactionType = "credit"
)

// Valid reports whether t is debit or credit.
func (t TransactionType) Valid() bool {
	return t == Debit || t == Credit
}

// Mode is how money changed hands.
type Mode string

const (
	ModeCash         Mode = "cash"
	ModeBankTransfer Mode = "bank_transfer"
	ModeCard         Mode = "card"
	ModeCheque       Mode = "cheque"
	ModeOnline       Mode = "online"
	ModeGoldExchange Mode = "gold_exchange"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeCash, ModeBankTransfer, ModeCard, ModeCheque, ModeOnline, ModeGoldExchange:
		return true
	}
	return false
}

// Reference types back-linking transactions and movements to documents.
const (
	RefPurchase = "purchase"
	RefInvoice  = "invoice"
	RefReturn   = "return"
	RefJobCard  = "jobcard"
	RefManual   = "manual"
)

// Transaction is an append-only ledger row. It is never updated; a soft
// delete reverses its balance effect.
type Transaction struct {
	entity.BaseEntity

	Date            time.Time       `db:"date" json:"date"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`
	Mode            Mode            `db:"mode" json:"mode"`
	AccountID       id.ID           `db:"account_id" json:"account_id"`
	AccountName     string          `db:"account_name" json:"account_name"`
	PartyID         *id.ID          `db:"party_id" json:"party_id,omitempty"`
	PartyName       string          `db:"party_name" json:"party_name,omitempty"`
	Amount          decimal.Decimal `db:"amount" json:"amount" precision:"money"`
	Category        string          `db:"category" json:"category"`
	ReferenceType   string          `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID     *id.ID          `db:"reference_id" json:"reference_id,omitempty"`
	Notes           string          `db:"notes" json:"notes,omitempty"`

	// IdempotencyKey makes inserts replay-safe (unique, optional).
	IdempotencyKey *string `db:"idempotency_key" json:"-"`
}

// NewTransaction creates a ledger row for accountID dated now.
func NewTransaction(txnType TransactionType, accountID id.ID, amount decimal.Decimal, mode Mode, category string) *Transaction {
	return &Transaction{
		BaseEntity:      entity.NewBaseEntity(),
		Date:            time.Now().UTC(),
		TransactionType: txnType,
		Mode:            mode,
		AccountID:       accountID,
		Amount:          amount,
		Category:        category,
	}
}

// WithReference back-links the row to a document.
func (t *Transaction) WithReference(refType string, refID id.ID) *Transaction {
	t.ReferenceType = refType
	t.ReferenceID = id.Ptr(refID)
	return t
}

// WithParty records the counterparty.
func (t *Transaction) WithParty(partyID *id.ID, name string) *Transaction {
	if !id.IsNilPtr(partyID) {
		t.PartyID = partyID
	}
	t.PartyName = name
	return t
}

// Validate implements entity.Validatable.
func (t *Transaction) Validate(ctx context.Context) error {
	if !t.TransactionType.Valid() {
		return apperror.NewValidation("transaction type must be debit or credit").
			WithDetail("field", "transaction_type")
	}
	if !t.Mode.Valid() {
		return apperror.NewValidation("unknown payment mode").
			WithDetail("field", "mode").
			WithDetail("value", string(t.Mode))
	}
	if id.IsNil(t.AccountID) {
		return apperror.NewValidation("account is required").
			WithDetail("field", "account_id")
	}
	amount, err := types.PositiveMoney("amount", t.Amount)
	if err != nil {
		return err
	}
	t.Amount = amount
	if len(t.Category) > 50 {
		return apperror.NewValidation("category must be at most 50 characters").
			WithDetail("field", "category")
	}
	if len(t.Notes) > 500 {
		return apperror.NewValidation("notes must be at most 500 characters").
			WithDetail("field", "notes")
	}
	return nil
}

// SignedAmount returns the balance effect of a transaction on an account of
// the given type.
func SignedAmount(accountType AccountType, txnType TransactionType, amount decimal.Decimal) decimal.Decimal {
	positive := (txnType == Debit) == accountType.DebitNormal()
	if positive {
		return amount
	}
	return amount.Neg()
}

// Payment is a money movement made against a document.
type Payment struct {
	AccountID id.ID           `json:"account_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0,lte=1000000"`
	Mode      Mode            `json:"mode" validate:"required,oneof=cash bank_transfer card cheque online gold_exchange"`
	Notes     string          `json:"notes" validate:"max=500"`
}

// Transaction builds the ledger row of p.
func (p Payment) Transaction(txnType TransactionType, category string) *Transaction {
	t := NewTransaction(txnType, p.AccountID, p.Amount, p.Mode, category)
	t.Notes = p.Notes
	return t
}
