package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/database"
	"github.com/patchwatch/patchwatch/internal/render"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scan results",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of scans to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	recs, err := database.NewScanStore(db).RecentScans(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("loading scan history: %w", err)
	}

	fmt.Print(render.History(recs))
	return nil
}
