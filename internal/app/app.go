// Package app assembles the domain services over a storage backend.
package app

import (
	"github.com/shopspring/decimal"

	"goldshop/internal/core/numerator"
	"goldshop/internal/core/tx"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/jobcard"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/documents/returns"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/posting"
	"goldshop/internal/domain/registers/goldledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/domain/reports"
	"goldshop/internal/domain/settings"
)

// Storage is the set of repositories and sinks a backend provides.
// Audit, Outbox and SettingsCache are optional.
type Storage struct {
	TxManager tx.Manager
	Numerator numerator.Generator

	Accounts     ledger.AccountRepository
	Transactions ledger.TransactionRepository
	Gold         goldledger.Repository
	Stock        stock.Repository
	Settings     settings.Repository
	Purchases    purchase.Repository
	Invoices     invoice.Repository
	JobCards     jobcard.Repository
	Returns      returns.Repository
	Reports      reports.Repository

	Keys          posting.KeyStore
	Audit         posting.AuditSink
	Outbox        posting.Outbox
	SettingsCache settings.Cache
}

// Services holds every domain service.
type Services struct {
	TxManager tx.Manager
	Numerator numerator.Generator
	Engine    *posting.Engine
	Settings  *settings.Service
	Ledger    *ledger.Service
	Gold      *goldledger.Service
	Stock     *stock.Service
	Purchases *purchase.Service
	Invoices  *invoice.Service
	JobCards  *jobcard.Service
	Returns   *returns.Service
	Reports   *reports.Service
}

// NewServices wires the services over st. fallbackFactor is the
// conversion factor used until settings are first saved.
func NewServices(st Storage, fallbackFactor decimal.Decimal) *Services {
	ledgerSvc := ledger.NewService(st.Accounts, st.Transactions, st.TxManager)
	goldSvc := goldledger.NewService(st.Gold, st.TxManager)
	stockSvc := stock.NewService(st.Stock)

	engine := posting.NewEngine(posting.Config{
		TxManager: st.TxManager,
		Poster:    ledgerSvc.Poster(),
		Gold:      goldSvc,
		Stock:     stockSvc,
		Keys:      st.Keys,
		Audit:     st.Audit,
		Outbox:    st.Outbox,
	})
	goldSvc.UsePoster(engine)

	settingsSvc := settings.NewService(st.Settings, st.SettingsCache, st.TxManager, fallbackFactor)
	invoiceSvc := invoice.NewService(st.Invoices, engine, st.Numerator, st.TxManager)
	purchaseSvc := purchase.NewService(st.Purchases, engine, stockSvc, settingsSvc, st.Numerator, st.TxManager)

	return &Services{
		TxManager: st.TxManager,
		Numerator: st.Numerator,
		Engine:    engine,
		Settings:  settingsSvc,
		Ledger:    ledgerSvc,
		Gold:      goldSvc,
		Stock:     stockSvc,
		Purchases: purchaseSvc,
		Invoices:  invoiceSvc,
		JobCards:  jobcard.NewService(st.JobCards, invoiceSvc, engine, st.Numerator, st.TxManager),
		Returns: returns.NewService(st.Returns,
			returns.DocumentReferences{Invoices: st.Invoices, Purchases: st.Purchases},
			engine, st.Numerator, st.TxManager),
		Reports: reports.NewService(st.Reports, st.Accounts, st.Transactions, st.Gold, st.TxManager),
	}
}
