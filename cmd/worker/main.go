// Package main is the entry point for the goldshop background worker.
// It relays the outbox, expires event keys and checks account balances.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"goldshop/internal/app"
	"goldshop/internal/config"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/infrastructure/cache"
	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg.Log, "worker")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting goldshop worker")

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer rt.Close()

	var handler postgres.OutboxHandler = cache.NewLogHandler(log.WithComponent("outbox"))
	if rt.Redis != nil {
		handler = cache.NewStreamPublisher(rt.Redis, "", 100000)
		log.Info("outbox relay publishing to redis stream")
	}

	worker := &Worker{
		cfg:    cfg.Worker,
		relay:  postgres.NewOutboxRelay(rt.TxManager, cfg.Worker.OutboxBatchSize, handler),
		keys:   postgres.NewEventKeyStore(rt.TxManager, cfg.Worker.EventKeyTTL),
		ledger: rt.Ledger,
		pool:   rt.Pool,
		log:    log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic jobs against one shop database.
type Worker struct {
	cfg    config.WorkerConfig
	relay  *postgres.OutboxRelay
	keys   *postgres.EventKeyStore
	ledger *ledger.Service
	pool   *postgres.Pool
	log    *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	outboxTicker := time.NewTicker(w.cfg.OutboxInterval)
	defer outboxTicker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	reconcileTicker := time.NewTicker(w.cfg.ReconcileInterval)
	defer reconcileTicker.Stop()

	w.reconcile(w.job(ctx, "reconcile"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-outboxTicker.C:
			w.processOutbox(w.job(ctx, "outbox"))
		case <-cleanupTicker.C:
			jobCtx := w.job(ctx, "cleanup")
			w.cleanup(jobCtx)
			postgres.LogPoolStats(jobCtx, w.pool.Unwrap())
		case <-reconcileTicker.C:
			w.reconcile(w.job(ctx, "reconcile"))
		}
	}
}

// job starts one tick of a periodic job. Audit rows and log lines written
// during the tick share its operation id.
func (w *Worker) job(ctx context.Context, name string) context.Context {
	return appctx.WithOperation(ctx, appctx.NewOperation("worker", name))
}

func (w *Worker) processOutbox(ctx context.Context) {
	log := w.log.ForContext(ctx)
	n, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		log.Errorw("outbox batch failed", "error", err)
		return
	}
	if n > 0 {
		log.Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	log := w.log.ForContext(ctx)
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		log.Errorw("failed to move outbox messages to DLQ", "error", err)
	} else if n > 0 {
		log.Warnw("moved outbox messages to DLQ", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, w.cfg.OutboxRetention); err != nil {
		log.Errorw("failed to purge published outbox messages", "error", err)
	} else if n > 0 {
		log.Infow("purged published outbox messages", "count", n)
	}

	if n, err := w.keys.CleanupExpired(ctx); err != nil {
		log.Errorw("failed to clean up event keys", "error", err)
	} else if n > 0 {
		log.Infow("cleaned up expired event keys", "count", n)
	}
}

func (w *Worker) reconcile(ctx context.Context) {
	log := w.log.ForContext(ctx)
	drifts, err := w.ledger.Reconcile(ctx)
	if err != nil {
		log.Errorw("balance reconciliation failed", "error", err)
		return
	}
	if len(drifts) > 0 {
		log.Errorw("account balances drifted from ledger", "accounts", len(drifts))
		return
	}
	log.Debug("account balances reconciled")
}
