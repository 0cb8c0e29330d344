// Package reports provides the read-side aggregations: outstanding
// receivables, net cash flow, per-party summaries and the daily cash
// closing.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/core/entity"
	"goldshop/internal/core/id"
)

// --- Outstanding ---

// InvoiceBalance is the balance row of one non-deleted invoice.
type InvoiceBalance struct {
	InvoiceID  id.ID           `db:"id" json:"invoice_id"`
	Number     string          `db:"number" json:"number"`
	PartyID    *id.ID          `db:"party_id" json:"party_id,omitempty"`
	PartyName  string          `db:"party_name" json:"party_name"`
	IsWalkIn   bool            `db:"is_walk_in" json:"is_walk_in"`
	WalkInName string          `db:"walk_in_name" json:"walk_in_name,omitempty"`
	BalanceDue decimal.Decimal `db:"balance_due" json:"balance_due" precision:"money"`
}

// CustomerOutstanding is what one customer still owes.
type CustomerOutstanding struct {
	PartyID      *id.ID          `json:"party_id,omitempty"`
	Name         string          `json:"name"`
	Outstanding  decimal.Decimal `json:"outstanding" precision:"money"`
	InvoiceCount int             `json:"invoice_count"`
}

// OutstandingSummary totals max(balance_due, 0) over customer invoices.
type OutstandingSummary struct {
	TotalOutstanding decimal.Decimal       `json:"total_outstanding" precision:"money"`
	CustomerCount    int                   `json:"customer_count"`
	TopCustomers     []CustomerOutstanding `json:"top_customers"`
}

// TopCustomersLimit is the length of OutstandingSummary.TopCustomers.
const TopCustomersLimit = 10

// --- Net flow ---

// FlowFilter bounds the net-flow period. DateTo is exclusive.
type FlowFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
}

// FlowTotals are debit and credit sums with their difference.
type FlowTotals struct {
	Debit  decimal.Decimal `json:"debit" precision:"money"`
	Credit decimal.Decimal `json:"credit" precision:"money"`
	Net    decimal.Decimal `json:"net" precision:"money"`
}

func newFlowTotals(debit, credit decimal.Decimal) FlowTotals {
	return FlowTotals{Debit: debit, Credit: credit, Net: debit.Sub(credit)}
}

// NetFlowSummary is money movement through cash, bank and petty accounts
// only. Income, expense and liability activity never moves it.
type NetFlowSummary struct {
	TotalIn  decimal.Decimal `json:"total_in" precision:"money"`
	TotalOut decimal.Decimal `json:"total_out" precision:"money"`
	NetFlow  decimal.Decimal `json:"net_flow" precision:"money"`

	// CashSummary covers cash and petty accounts.
	CashSummary FlowTotals `json:"cash_summary"`
	BankSummary FlowTotals `json:"bank_summary"`

	TransactionCount int `json:"transaction_count"`
}

// --- Party summary ---

// PurchaseBalance is the balance row of one non-deleted purchase.
type PurchaseBalance struct {
	PurchaseID      id.ID           `db:"id" json:"purchase_id"`
	Number          string          `db:"number" json:"number"`
	BalanceDueMoney decimal.Decimal `db:"balance_due_money" json:"balance_due_money" precision:"money"`
}

// GoldSummary is the party's gold position.
type GoldSummary struct {
	// GoldDueFromParty is gold the shop gave the party (OUT entries).
	GoldDueFromParty decimal.Decimal `json:"gold_due_from_party" precision:"weight"`
	// GoldDueToParty is gold the party gave the shop (IN entries).
	GoldDueToParty decimal.Decimal `json:"gold_due_to_party" precision:"weight"`
	NetGoldBalance decimal.Decimal `json:"net_gold_balance" precision:"weight"`
	TotalEntries   int             `json:"total_entries"`
}

// MoneySummary is the party's money position.
type MoneySummary struct {
	// MoneyDueFromParty sums positive invoice balances.
	MoneyDueFromParty decimal.Decimal `json:"money_due_from_party" precision:"money"`
	// MoneyDueToParty sums purchase balances and customer credit
	// (negative invoice balances).
	MoneyDueToParty   decimal.Decimal `json:"money_due_to_party" precision:"money"`
	NetMoneyBalance   decimal.Decimal `json:"net_money_balance" precision:"money"`
	TotalInvoices     int             `json:"total_invoices"`
	TotalPurchases    int             `json:"total_purchases"`
	TotalTransactions int             `json:"total_transactions"`
}

// PartySummary combines gold and money positions of a party.
type PartySummary struct {
	PartyID id.ID        `json:"party_id"`
	Gold    GoldSummary  `json:"gold"`
	Money   MoneySummary `json:"money"`
}

// --- Daily closing ---

// DailyClosing is the cash count of one business day.
type DailyClosing struct {
	entity.BaseEntity

	Date            time.Time       `db:"date" json:"date"`
	OpeningCash     decimal.Decimal `db:"opening_cash" json:"opening_cash" precision:"money"`
	CashIn          decimal.Decimal `db:"cash_in" json:"cash_in" precision:"money"`
	CashOut         decimal.Decimal `db:"cash_out" json:"cash_out" precision:"money"`
	ExpectedClosing decimal.Decimal `db:"expected_closing" json:"expected_closing" precision:"money"`
	ActualClosing   decimal.Decimal `db:"actual_closing" json:"actual_closing" precision:"money"`
	Difference      decimal.Decimal `db:"difference" json:"difference" precision:"money"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
