package gateway

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/patchwatch/patchwatch/internal/config"
)

// Scheduler registers the configured watchlist with robfig/cron. One cron
// expression drives the whole watchlist; each firing rescans every entry
// sequentially.
type Scheduler struct {
	cfg    config.GatewayConfig
	cron   *cron.Cron
	scanFn func(owner, repo string)
}

func newScheduler(cfg config.GatewayConfig, scanFn func(owner, repo string)) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		cron:   cron.New(),
		scanFn: scanFn,
	}
}

// Start registers the watchlist schedule and starts the cron runner.
// An empty schedule or watchlist disables scheduling without error.
func (s *Scheduler) Start() error {
	expr := strings.TrimSpace(s.cfg.Schedule)
	if expr == "" || len(s.cfg.Watchlist) == 0 {
		slog.Info("gateway scheduler disabled", "schedule", expr, "watchlist", len(s.cfg.Watchlist))
		return nil
	}

	if _, err := s.cron.AddFunc(expr, s.runWatchlist); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.cron.Start()
	slog.Info("gateway scheduler started", "expr", expr, "watchlist", len(s.cfg.Watchlist))
	return nil
}

// Stop halts the cron runner.
func (s *Scheduler) Stop() { s.cron.Stop() }

func (s *Scheduler) runWatchlist() {
	for _, entry := range s.cfg.Watchlist {
		owner, repo, err := splitWatchlistEntry(entry)
		if err != nil {
			slog.Warn("scheduler: skipping invalid watchlist entry", "entry", entry, "error", err)
			continue
		}
		s.scanFn(owner, repo)
	}
}

// splitWatchlistEntry parses an "owner/repo" entry.
func splitWatchlistEntry(entry string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(entry), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("watchlist entry must be owner/repo, got %q", entry)
	}
	return parts[0], parts[1], nil
}
