package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patchwatch/patchwatch/internal/ai"
	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/database"
	"github.com/patchwatch/patchwatch/internal/engine"
	"github.com/patchwatch/patchwatch/internal/gateway"
	"github.com/patchwatch/patchwatch/internal/registry"
	"github.com/patchwatch/patchwatch/internal/repository"
	"github.com/patchwatch/patchwatch/internal/vulnsource"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the patchwatch gateway daemon",
	Long: `Starts the patchwatch gateway: a long-running daemon exposing a local
HTTP API (default: http://127.0.0.1:6480) for triggering scans and browsing
scan history, plus a cron scheduler that rescans the configured watchlist.

Example schedules (config: gateway.schedule):
  "0 2 * * *"   every night at 02:00
  "@every 6h"   every 6 hours
  "@daily"      once per day at midnight

API reference:
  GET  /api/health       liveness check
  POST /api/scan         run a scan (body: {"owner":"...","repo":"...","provider":"github"})
  GET  /api/scans        list past scans (?limit=N)
  GET  /api/scans/{id}   full report for one scan`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP port to listen on (default 6480, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down gateway gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort != 0 {
		cfg.Gateway.Port = servePort
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	oracle := vulnsource.New(cfg.Oracle)
	resolver := registry.NewResolver(table, registry.NewVersionLister(cfg.Registry))
	store := database.NewScanStore(db)

	var reviewer ai.Reviewer
	if cfg.Scan.AIReview {
		reviewer, err = ai.New(cfg.AI)
		if err != nil {
			return fmt.Errorf("configuring AI reviewer: %w", err)
		}
	}

	factory := func(provider string) (gateway.Scanner, error) {
		fetcher, err := repository.New(provider, cfg)
		if err != nil {
			return nil, err
		}
		eng := engine.New(cfg.Scan, oracle, resolver, table, fetcher)
		eng.Store = store
		eng.Reviewer = reviewer
		return eng, nil
	}

	return gateway.New(cfg, db, factory).Start(ctx)
}
