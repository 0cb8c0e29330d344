// Package main applies the embedded schema migrations.
//
// Usage:
//
//	migrate up | down | version | step <n> | force <version>
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"goldshop/internal/app"
	"goldshop/internal/config"
	"goldshop/internal/infrastructure/storage/postgres"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down | version | step <n> | force <version>")
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg.Log, "migrate")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	m, err := postgres.NewMigrator(cfg.Database.URL, log.WithComponent("migrate"))
	if err != nil {
		log.Fatalw("failed to create migrator", "error", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("failed to close migrator", "error", err)
		}
	}()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			log.Infow("current migration version", "version", version, "dirty", dirty)
		}
	case "step":
		err = withIntArg(args, func(n int) error { return m.Steps(n) })
	case "force":
		err = withIntArg(args, m.Force)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalw("migration failed", "command", args[0], "error", err)
	}
}

func withIntArg(args []string, fn func(int) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", args[1], err)
	}
	return fn(n)
}
