// Package gateway is the long-running daemon: an HTTP control plane for
// triggering scans and browsing history, plus a cron scheduler that rescans
// the configured watchlist.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/database"
	"github.com/patchwatch/patchwatch/models"
)

// Scanner runs one repository scan. The CLI wires the engine in here; tests
// substitute fakes.
type Scanner interface {
	Scan(ctx context.Context, owner, repo string) (*models.ScanReport, error)
}

// ScannerFactory builds a Scanner for a provider name ("github", "gitlab").
type ScannerFactory func(provider string) (Scanner, error)

// Gateway serves the REST API and drives scheduled watchlist scans.
type Gateway struct {
	cfg        *config.Config
	store      *database.ScanStore
	newScanner ScannerFactory
	scheduler  *Scheduler

	mu        sync.RWMutex
	startedAt time.Time
	lastScan  string
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, db database.DB, factory ScannerFactory) *Gateway {
	gw := &Gateway{
		cfg:        cfg,
		store:      database.NewScanStore(db),
		newScanner: factory,
		startedAt:  time.Now(),
	}
	gw.scheduler = newScheduler(cfg.Gateway, gw.scanWatchlistEntry)
	return gw
}

// Start runs the gateway until ctx is cancelled: starts the watchlist
// scheduler, then binds the HTTP server (blocks until shutdown).
func (gw *Gateway) Start(ctx context.Context) error {
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6480
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	if err := gw.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(gw),
	}

	go func() {
		<-ctx.Done()
		gw.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// runScan builds a Scanner for the provider and executes one scan.
func (gw *Gateway) runScan(ctx context.Context, provider, owner, repo string) (*models.ScanReport, error) {
	if provider == "" {
		provider = "github"
	}
	scanner, err := gw.newScanner(provider)
	if err != nil {
		return nil, err
	}
	report, err := scanner.Scan(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	gw.mu.Lock()
	gw.lastScan = time.Now().UTC().Format(time.RFC3339)
	gw.mu.Unlock()
	return report, nil
}

// scanWatchlistEntry is the scheduler callback for one "owner/repo" entry.
func (gw *Gateway) scanWatchlistEntry(owner, repo string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := gw.runScan(ctx, "github", owner, repo)
	if err != nil {
		slog.Warn("scheduled scan failed", "owner", owner, "repo", repo, "error", err)
		return
	}
	slog.Info("scheduled scan complete",
		"owner", owner, "repo", repo,
		"status", report.Status, "vulnerabilities", report.TotalVulnerabilities)
}
