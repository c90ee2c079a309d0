package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchwatch/patchwatch/internal/ai"
	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/database"
	"github.com/patchwatch/patchwatch/internal/engine"
	"github.com/patchwatch/patchwatch/internal/registry"
	"github.com/patchwatch/patchwatch/internal/render"
	"github.com/patchwatch/patchwatch/internal/repository"
	"github.com/patchwatch/patchwatch/internal/vulnsource"
	"github.com/patchwatch/patchwatch/models"
)

var (
	scanRepoURL  string
	scanPath     string
	scanProvider string
	scanBranch   string
	scanFix      bool
	scanForce    bool
	scanAI       bool
	scanJSON     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a repository's dependency manifests for vulnerabilities",
	Long: `Fetches the recognized dependency manifests of a repository (or reads them
from a local directory), checks every pinned dependency against the
vulnerability database, and reports secure-version upgrades.

Examples:
  patchwatch scan --repo https://github.com/example/myapp
  patchwatch scan --repo https://gitlab.com/example/myapp --ai
  patchwatch scan --path . --fix
  patchwatch scan --repo git@github.com:example/myapp.git --branch develop`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRepoURL, "repo", "", "Repository URL to scan")
	scanCmd.Flags().StringVar(&scanPath, "path", "", "Local directory to scan instead of a remote repository")
	scanCmd.Flags().StringVar(&scanProvider, "provider", "", "Hosting provider: github|gitlab (default: detected from URL)")
	scanCmd.Flags().StringVar(&scanBranch, "branch", "", "Branch to scan when cloning (default: repo default branch)")
	scanCmd.Flags().BoolVar(&scanFix, "fix", false, "Write upgraded manifests back to disk (local/cloned scans only)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Rewrite pom.xml entries even when already at the table version")
	scanCmd.Flags().BoolVar(&scanAI, "ai", false, "Include an advisory AI review of each manifest")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the raw report as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if scanRepoURL == "" && scanPath == "" {
		return fmt.Errorf("either --repo or --path is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Scan.AutoFix = cfg.Scan.AutoFix || scanFix
	cfg.Scan.ForceUpdate = cfg.Scan.ForceUpdate || scanForce
	cfg.Scan.AIReview = cfg.Scan.AIReview || scanAI

	eng, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fetcher, cloneResult, owner, repo, err := resolveFetcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer repository.Cleanup(cloneResult)
	eng.Fetcher = fetcher

	report, err := eng.Scan(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	} else {
		fmt.Print(render.Report(report))
	}

	if cfg.Scan.AutoFix {
		return applyFixes(ctx, fetcher, report)
	}
	return nil
}

// buildEngine assembles the scan engine minus the fetcher, which depends on
// per-invocation flags. cleanup closes the history database.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, func(), error) {
	table, err := loadTable(cfg)
	if err != nil {
		return nil, nil, err
	}

	oracle := vulnsource.New(cfg.Oracle)
	resolver := registry.NewResolver(table, registry.NewVersionLister(cfg.Registry))

	eng := engine.New(cfg.Scan, oracle, resolver, table, nil)

	if cfg.Scan.AIReview {
		reviewer, err := ai.New(cfg.AI)
		if err != nil {
			return nil, nil, fmt.Errorf("configuring AI reviewer: %w", err)
		}
		eng.Reviewer = reviewer
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	eng.Store = database.NewScanStore(db)

	return eng, func() { db.Close() }, nil
}

// loadTable returns the secure-version table, merging the configured YAML
// override file when present.
func loadTable(cfg *config.Config) (*registry.Table, error) {
	if cfg.Registry.SecureVersionsPath == "" {
		return registry.NewTable(), nil
	}
	table, err := registry.LoadTable(cfg.Registry.SecureVersionsPath)
	if err != nil {
		return nil, fmt.Errorf("loading secure-version overrides: %w", err)
	}
	return table, nil
}

// resolveFetcher picks the manifest source: a local directory, a provider API
// when a token is configured, or a shallow git clone otherwise.
func resolveFetcher(ctx context.Context, cfg *config.Config) (repository.ManifestFetcher, *repository.CloneResult, string, string, error) {
	if scanPath != "" {
		info, err := os.Stat(scanPath)
		if err != nil || !info.IsDir() {
			return nil, nil, "", "", fmt.Errorf("--path %q is not a directory", scanPath)
		}
		return repository.NewLocal(scanPath), nil, "local", scanPath, nil
	}

	provider := scanProvider
	if provider == "" {
		provider, _ = repository.DetectProvider(scanRepoURL)
	}

	owner, repo := repository.ParseOwnerRepo(scanRepoURL)

	// Prefer the provider API when a token is configured; otherwise fall back
	// to a shallow clone, which also covers public repos and other hosts.
	if token := providerToken(cfg, provider); token != "" && scanBranch == "" {
		fetcher, err := repository.New(provider, cfg)
		if err != nil {
			return nil, nil, "", "", err
		}
		return fetcher, nil, owner, repo, nil
	}

	fetcher, result, err := repository.Clone(ctx, scanRepoURL, providerToken(cfg, provider), scanBranch)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("cloning repository: %w", err)
	}
	return fetcher, result, result.Owner, result.Repo, nil
}

func providerToken(cfg *config.Config, provider string) string {
	switch provider {
	case "github":
		return cfg.Git.GitHub.Token
	case "gitlab":
		return cfg.Git.GitLab.Token
	}
	return ""
}

// applyFixes writes regenerated manifests back to disk with .bak backups.
// Only local working trees support write-back.
func applyFixes(ctx context.Context, fetcher repository.ManifestFetcher, report *models.ScanReport) error {
	local, ok := fetcher.(*repository.LocalFetcher)
	if !ok {
		fmt.Println("\n--fix applies only to local or cloned working trees; skipping write-back")
		return nil
	}

	files, err := local.FetchManifests(ctx, report.Owner, report.Repo)
	if err != nil {
		return fmt.Errorf("re-reading manifests for fix: %w", err)
	}
	byName := make(map[string]models.ManifestFile, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}

	fixed := 0
	for _, result := range report.Files {
		if result.UpdatedContent == nil {
			continue
		}
		file, ok := byName[result.FileName]
		if !ok {
			continue
		}
		if err := local.WriteBack(file, *result.UpdatedContent); err != nil {
			return fmt.Errorf("writing fix for %s: %w", result.FileName, err)
		}
		fmt.Printf("fixed %s (backup at %s.bak)\n", file.Path, file.Path)
		fixed++
	}
	if fixed == 0 {
		fmt.Println("nothing to fix")
	}
	return nil
}
