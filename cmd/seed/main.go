// Package main provides a CLI tool for seeding a shop database with its
// starting accounts, settings and opening stock.
//
// Usage:
//
//	seed [-stock opening.json] [-numbers INV=120,PUR=40] [-dry-run]
//
// The stock file is a JSON array of {"header_name", "qty", "weight_grams"}.
// -numbers sets the last issued number per prefix for the current period,
// for shops moving over from paper books. Accounts that already exist by
// name are left alone.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldshop/internal/app"
	"goldshop/internal/config"
	appctx "goldshop/internal/core/context"
	"goldshop/internal/core/id"
	"goldshop/internal/core/numerator"
	"goldshop/internal/domain/documents/invoice"
	"goldshop/internal/domain/documents/jobcard"
	"goldshop/internal/domain/documents/purchase"
	"goldshop/internal/domain/documents/returns"
	"goldshop/internal/domain/ledger"
	"goldshop/internal/domain/registers/stock"
	"goldshop/internal/infrastructure/storage/memstore"
	"goldshop/internal/infrastructure/storage/postgres/register_repo"
	"goldshop/pkg/logger"
)

const seedActor = "seed"

// OpeningStockLine is one entry of the opening stock file.
type OpeningStockLine struct {
	HeaderName  string          `json:"header_name"`
	HeaderID    *id.ID          `json:"header_id"`
	Qty         int             `json:"qty"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
}

var defaultAccounts = []ledger.CreateAccountInput{
	{Name: "Cash drawer", AccountType: ledger.AccountCash},
	{Name: "Bank", AccountType: ledger.AccountBank},
	{Name: "Petty cash", AccountType: ledger.AccountPetty},
	{Name: "Gold", AccountType: ledger.AccountAsset},
}

func main() {
	stockFile := flag.String("stock", "", "opening stock JSON file")
	numbers := flag.String("numbers", "", "last issued numbers, e.g. INV=120,PUR=40")
	dryRun := flag.Bool("dry-run", false, "run against an in-memory store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil && !*dryRun {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = &config.Config{Log: config.LogConfig{Level: "info", Development: true}}
	}

	log, err := app.NewLogger(cfg.Log, "seed")
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: seedActor})
	ctx = appctx.WithOperation(ctx, appctx.NewOperation("seed", "opening"))

	lines, err := readStockFile(*stockFile)
	if err != nil {
		log.Fatalw("failed to read opening stock", "file", *stockFile, "error", err)
	}
	opening, err := parseOpeningNumbers(*numbers)
	if err != nil {
		log.Fatalw("invalid -numbers", "error", err)
	}

	if *dryRun {
		svc := app.NewServices(app.MemoryStorage(memstore.New()), cfg.Shop.ConversionFactor)
		if err := seed(ctx, svc, log, func(ctx context.Context, m []*stock.Movement) (int64, error) {
			n, err := svc.Stock.RecordMovements(ctx, m)
			return int64(n), err
		}, lines); err != nil {
			log.Fatalw("dry run failed", "error", err)
		}
		if err := seedNumbers(ctx, svc.Numerator, log, opening, time.Now()); err != nil {
			log.Fatalw("dry run failed", "error", err)
		}
		log.Info("dry run completed")
		return
	}

	rt, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer rt.Close()
	log.Info("connected to database")

	stockRepo := register_repo.NewStockRepo(rt.TxManager)
	if err := seed(ctx, rt.Services, log, stockRepo.LoadOpening, lines); err != nil {
		log.Fatalw("seed failed", "error", err)
	}
	if err := seedNumbers(ctx, rt.Services.Numerator, log, opening, time.Now()); err != nil {
		log.Fatalw("seed failed", "error", err)
	}
	log.Info("seed completed")
}

func seed(ctx context.Context, svc *app.Services, log *logger.Logger,
	loadStock func(context.Context, []*stock.Movement) (int64, error), lines []OpeningStockLine) error {
	if err := seedAccounts(ctx, svc.Ledger, log); err != nil {
		return err
	}

	factor, err := svc.Settings.ConversionFactor(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if _, err := svc.Settings.UpdateConversionFactor(ctx, factor); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	log.Infow("shop settings saved", "conversion_factor", factor.String())

	if len(lines) == 0 {
		return nil
	}
	movements, err := openingMovements(lines)
	if err != nil {
		return err
	}
	for i, m := range movements {
		if err := m.Validate(ctx); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	var n int64
	err = svc.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = loadStock(ctx, movements)
		return err
	})
	if err != nil {
		return fmt.Errorf("load opening stock: %w", err)
	}
	log.Infow("opening stock loaded", "movements", n)
	return nil
}

func seedAccounts(ctx context.Context, ledgerSvc *ledger.Service, log *logger.Logger) error {
	existing, err := ledgerSvc.ListAccounts(ctx, ledger.AccountFilter{})
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		names[a.Name] = struct{}{}
	}

	for _, in := range defaultAccounts {
		if _, ok := names[in.Name]; ok {
			log.Infow("account already exists", "name", in.Name)
			continue
		}
		acc, err := ledgerSvc.CreateAccount(ctx, in)
		if err != nil {
			return fmt.Errorf("create account %s: %w", in.Name, err)
		}
		log.Infow("account created", "id", acc.ID, "name", acc.Name, "type", acc.AccountType)
	}
	return nil
}

func readStockFile(path string) ([]OpeningStockLine, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []OpeningStockLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return lines, nil
}

// openingMovements builds one Adjustment IN per line at the valuation
// purity. Lines without a header id get a fresh one.
func openingMovements(lines []OpeningStockLine) ([]*stock.Movement, error) {
	out := make([]*stock.Movement, 0, len(lines))
	for i, l := range lines {
		if l.HeaderName == "" {
			return nil, fmt.Errorf("line %d: header_name is required", i+1)
		}
		if l.Qty < 0 || l.WeightGrams.IsNegative() {
			return nil, fmt.Errorf("line %d: opening stock must not be negative", i+1)
		}
		headerID := id.New()
		if l.HeaderID != nil {
			headerID = *l.HeaderID
		}
		m := stock.NewMovement(stock.MovementAdjustmentIn, headerID, l.Qty, l.WeightGrams, "opening stock")
		m.HeaderName = l.HeaderName
		m.Description = "Opening stock"
		m.RecorderType = "opening"
		m.CreatedBy = seedActor
		out = append(out, m)
	}
	return out, nil
}

// numberConfigs maps a document prefix to its numbering.
var numberConfigs = map[string]numerator.Config{
	numerator.PrefixInvoice:  invoice.NumberConfig(),
	numerator.PrefixPurchase: purchase.NumberConfig(),
	numerator.PrefixJobCard:  jobcard.NumberConfig(),
	numerator.PrefixReturn:   returns.NumberConfig(),
}

// parseOpeningNumbers reads "INV=120,PUR=40".
func parseOpeningNumbers(s string) (map[string]int64, error) {
	out := make(map[string]int64)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		prefix, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%q: want PREFIX=N", part)
		}
		prefix = strings.ToUpper(strings.TrimSpace(prefix))
		if _, known := numberConfigs[prefix]; !known {
			return nil, fmt.Errorf("unknown prefix %q", prefix)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%q: last number must be a non-negative integer", part)
		}
		out[prefix] = n
	}
	return out, nil
}

func seedNumbers(ctx context.Context, gen numerator.Generator, log *logger.Logger,
	opening map[string]int64, now time.Time) error {
	for prefix, n := range opening {
		if err := gen.Reset(ctx, numberConfigs[prefix], now, n); err != nil {
			return fmt.Errorf("set %s numbering: %w", prefix, err)
		}
		log.Infow("numbering set", "prefix", prefix, "last", n)
	}
	return nil
}
