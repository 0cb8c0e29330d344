package app

import (
	"context"
	"fmt"
	"time"

	corenumerator "goldshop/internal/core/numerator"
	"goldshop/internal/domain/settings"
	"goldshop/internal/infrastructure/numerator"
	"goldshop/internal/infrastructure/storage/memstore"
	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/internal/infrastructure/storage/postgres/document_repo"
	"goldshop/internal/infrastructure/storage/postgres/ledger_repo"
	"goldshop/internal/infrastructure/storage/postgres/register_repo"
	"goldshop/internal/infrastructure/storage/postgres/report_repo"
	"goldshop/internal/infrastructure/storage/postgres/settings_repo"
)

// PostgresStorage builds the PostgreSQL backend. keyTTL bounds how long
// event keys are kept in sys_idempotency. cache may be nil.
func PostgresStorage(txm *postgres.TxManager, keyTTL time.Duration, cache settings.Cache) (Storage, error) {
	audit, err := postgres.NewAuditStore(txm)
	if err != nil {
		return Storage{}, fmt.Errorf("create audit store: %w", err)
	}

	st := Storage{
		TxManager: txm,
		Numerator: numerator.New(
			func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) },
			txm.GetQuerier(context.Background()),
		),

		Accounts:     ledger_repo.NewAccountRepo(txm),
		Transactions: ledger_repo.NewTransactionRepo(txm),
		Gold:         register_repo.NewGoldRepo(txm),
		Stock:        register_repo.NewStockRepo(txm),
		Settings:     settings_repo.NewSettingsRepo(txm),
		Purchases:    document_repo.NewPurchaseRepo(txm),
		Invoices:     document_repo.NewInvoiceRepo(txm),
		JobCards:     document_repo.NewJobCardRepo(txm),
		Returns:      document_repo.NewReturnRepo(txm),
		Reports:      report_repo.NewReportRepo(txm),

		Keys:   postgres.NewEventKeyStore(txm, keyTTL),
		Audit:  audit,
		Outbox: postgres.NewOutboxPublisher(txm),

		SettingsCache: cache,
	}
	return st, nil
}

// MemoryStorage builds the in-memory backend used by tests and dry runs.
func MemoryStorage(store *memstore.Store) Storage {
	return Storage{
		TxManager: store,
		Numerator: &corenumerator.MockGenerator{},

		Accounts:     store.Accounts(),
		Transactions: store.Transactions(),
		Gold:         store.Gold(),
		Stock:        store.Stock(),
		Settings:     store.Settings(),
		Purchases:    store.Purchases(),
		Invoices:     store.Invoices(),
		JobCards:     store.JobCards(),
		Returns:      store.Returns(),
		Reports:      store.Reports(),

		Keys:   store.Keys(),
		Audit:  store.Audit(),
		Outbox: store.Outbox(),
	}
}
