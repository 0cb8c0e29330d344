// Package memstore is an in-memory implementation of every repository,
// the transaction manager and the posting sinks. It backs the domain tests
// and the seed command's dry-run mode.
//
// Transactions are serialized. The outermost RunInTransaction snapshots the
// whole state and restores it when fn fails, so rollback behaves like the
// database.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"goldshop/internal/core/id"
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

type txKey struct{}

type claimedKey struct {
	entityType string
	entityID   id.ID
}

// state holds stored values. Values are private copies and are replaced,
// never mutated in place, so a snapshot only needs to copy the containers.
type state struct {
	settings *settings.ShopSettings

	accounts  map[id.ID]ledger.Account
	txns      map[id.ID]ledger.Transaction
	txnOrder  []id.ID
	txnKeys   map[string]id.ID
	gold      []goldledger.Entry
	goldKeys  map[string]int
	stock     []stock.Movement
	stockKeys map[string]struct{}

	purchases map[id.ID]purchase.Purchase
	invoices  map[id.ID]invoice.Invoice
	jobCards  map[id.ID]jobcard.JobCard
	returns   map[id.ID]returns.Return
	closings  map[time.Time]reports.DailyClosing

	keys   map[string]claimedKey
	audit  []posting.AuditRecord
	outbox []posting.OutboxEvent
}

func newState() *state {
	return &state{
		accounts:  make(map[id.ID]ledger.Account),
		txns:      make(map[id.ID]ledger.Transaction),
		txnKeys:   make(map[string]id.ID),
		goldKeys:  make(map[string]int),
		stockKeys: make(map[string]struct{}),
		purchases: make(map[id.ID]purchase.Purchase),
		invoices:  make(map[id.ID]invoice.Invoice),
		jobCards:  make(map[id.ID]jobcard.JobCard),
		returns:   make(map[id.ID]returns.Return),
		closings:  make(map[time.Time]reports.DailyClosing),
		keys:      make(map[string]claimedKey),
	}
}

func (st *state) snapshot() *state {
	return &state{
		settings:  st.settings,
		accounts:  maps.Clone(st.accounts),
		txns:      maps.Clone(st.txns),
		txnOrder:  st.txnOrder[:len(st.txnOrder):len(st.txnOrder)],
		txnKeys:   maps.Clone(st.txnKeys),
		gold:      st.gold[:len(st.gold):len(st.gold)],
		goldKeys:  maps.Clone(st.goldKeys),
		stock:     st.stock[:len(st.stock):len(st.stock)],
		stockKeys: maps.Clone(st.stockKeys),
		purchases: maps.Clone(st.purchases),
		invoices:  maps.Clone(st.invoices),
		jobCards:  maps.Clone(st.jobCards),
		returns:   maps.Clone(st.returns),
		closings:  maps.Clone(st.closings),
		keys:      maps.Clone(st.keys),
		audit:     st.audit[:len(st.audit):len(st.audit)],
		outbox:    st.outbox[:len(st.outbox):len(st.outbox)],
	}
}

// Store is the in-memory database.
type Store struct {
	txMu sync.Mutex

	mu sync.RWMutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

var _ tx.ReadOnlyManager = (*Store)(nil)

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.st.snapshot()
	s.mu.RUnlock()

	rollback := func() {
		s.mu.Lock()
		s.st = snap
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
	}
	return err
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Accounts returns the account repository.
func (s *Store) Accounts() ledger.AccountRepository { return &accountRepo{s} }

// Transactions returns the transaction repository.
func (s *Store) Transactions() ledger.TransactionRepository { return &transactionRepo{s} }

// Gold returns the gold ledger repository.
func (s *Store) Gold() goldledger.Repository { return &goldRepo{s} }

// Stock returns the stock movement repository.
func (s *Store) Stock() stock.Repository { return &stockRepo{s} }

// Settings returns the settings repository.
func (s *Store) Settings() settings.Repository { return &settingsRepo{s} }

// Purchases returns the purchase repository.
func (s *Store) Purchases() purchase.Repository { return &purchaseRepo{s} }

// Invoices returns the invoice repository.
func (s *Store) Invoices() invoice.Repository { return &invoiceRepo{s} }

// JobCards returns the job card repository.
func (s *Store) JobCards() jobcard.Repository { return &jobCardRepo{s} }

// Returns returns the return repository.
func (s *Store) Returns() returns.Repository { return &returnRepo{s} }

// Reports returns the report repository.
func (s *Store) Reports() reports.Repository { return &reportRepo{s} }

// Keys returns the event key store.
func (s *Store) Keys() posting.KeyStore { return &keyStore{s} }

// Audit returns the audit sink.
func (s *Store) Audit() posting.AuditSink { return &auditSink{s} }

// Outbox returns the outbox sink.
func (s *Store) Outbox() posting.Outbox { return &outboxSink{s} }

// AuditRecords returns a copy of the committed audit records.
func (s *Store) AuditRecords() []posting.AuditRecord {
	var out []posting.AuditRecord
	s.read(func(st *state) { out = append(out, st.audit...) })
	return out
}

// OutboxEvents returns a copy of the committed outbox events.
func (s *Store) OutboxEvents() []posting.OutboxEvent {
	var out []posting.OutboxEvent
	s.read(func(st *state) { out = append(out, st.outbox...) })
	return out
}

// Engine builds a posting engine over the store's repositories.
func (s *Store) Engine() *posting.Engine {
	return s.EngineWith(goldledger.NewService(s.Gold(), s))
}

// EngineWith is Engine recording gold through gold, which then posts its
// standalone entries through the returned engine.
func (s *Store) EngineWith(gold *goldledger.Service) *posting.Engine {
	engine := posting.NewEngine(posting.Config{
		TxManager: s,
		Poster:    ledger.NewPoster(s.Accounts(), s.Transactions()),
		Gold:      gold,
		Stock:     stock.NewService(s.Stock()),
		Keys:      s.Keys(),
		Audit:     s.Audit(),
		Outbox:    s.Outbox(),
	})
	gold.UsePoster(engine)
	return engine
}
