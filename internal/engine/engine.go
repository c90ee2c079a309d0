// Package engine orchestrates a repository scan: parse manifests, look up
// vulnerabilities, resolve secure versions, decide upgrades, and regenerate
// manifest text. Failures are contained at the smallest scope that preserves
// partial results; the report always reflects best effort plus explicit
// error markers.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/patchwatch/patchwatch/internal/ai"
	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/database"
	"github.com/patchwatch/patchwatch/internal/manifest"
	"github.com/patchwatch/patchwatch/internal/registry"
	"github.com/patchwatch/patchwatch/internal/repository"
	"github.com/patchwatch/patchwatch/models"
)

// VulnOracle looks up known vulnerabilities for one pinned dependency.
// Implementations degrade to synthetic findings instead of returning errors.
type VulnOracle interface {
	Lookup(ctx context.Context, name, version string, eco models.Ecosystem) []models.VulnerabilityFinding
}

// SecureResolver determines the target secure version for one package.
type SecureResolver interface {
	Resolve(ctx context.Context, name, current string, eco models.Ecosystem) registry.Resolution
}

// Engine runs scans. Oracle, Resolver, Table and Fetcher are required;
// Reviewer and Store are optional collaborators.
type Engine struct {
	Oracle   VulnOracle
	Resolver SecureResolver
	Table    *registry.Table
	Fetcher  repository.ManifestFetcher
	Reviewer ai.Reviewer
	Store    *database.ScanStore
	Cfg      config.ScanConfig
}

// New wires an Engine with its required collaborators.
func New(cfg config.ScanConfig, oracle VulnOracle, resolver SecureResolver, table *registry.Table, fetcher repository.ManifestFetcher) *Engine {
	return &Engine{
		Oracle:   oracle,
		Resolver: resolver,
		Table:    table,
		Fetcher:  fetcher,
		Cfg:      cfg,
	}
}

// Scan fetches every recognized manifest of owner/repo and scans them
// sequentially. Files are independent: one file's parse failure never
// invalidates another file's results. A fetch failure fails the whole scan.
func (e *Engine) Scan(ctx context.Context, owner, repo string) (*models.ScanReport, error) {
	started := time.Now().UTC()
	slog.Info("Starting scan", "owner", owner, "repo", repo, "fetcher", e.Fetcher.Name())

	files, err := e.Fetcher.FetchManifests(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	report := &models.ScanReport{
		Owner:     owner,
		Repo:      repo,
		StartedAt: started,
	}

	if len(files) == 0 {
		// Nothing to scan is a distinct outcome, never coerced to secure.
		report.Status = models.StatusWarning
		report.CompletedAt = time.Now().UTC()
		slog.Warn("No recognized manifest files found", "owner", owner, "repo", repo)
		e.persist(ctx, report)
		return report, nil
	}

	// Sequential on purpose: the oracle client enforces a fixed inter-call
	// delay, and parallel files would defeat that throttle.
	results := make([]models.FileResult, 0, len(files))
	for _, f := range files {
		results = append(results, e.ScanFile(ctx, f))
	}

	aggregate(report, results)
	report.CompletedAt = time.Now().UTC()
	slog.Info("Scan complete",
		"owner", owner, "repo", repo,
		"status", report.Status,
		"files", report.TotalFiles,
		"vulnerabilities", report.TotalVulnerabilities)

	e.persist(ctx, report)
	return report, nil
}

// ScanFile scans one manifest: parse, look up findings, resolve secure
// versions, and regenerate content where upgrades apply.
func (e *Engine) ScanFile(ctx context.Context, file models.ManifestFile) models.FileResult {
	result := models.FileResult{
		FileName:  file.Name,
		Ecosystem: file.Ecosystem,
	}

	deps, err := manifest.Parse(file.Name, file.Content)
	if err != nil {
		result.Vulnerabilities = []models.VulnerabilityFinding{parseFailureFinding(file.Name, err)}
		slog.Warn("Manifest not scanned", "file", file.Name, "error", err)
		return result
	}

	result.Dependencies = len(deps)

	for _, dep := range deps {
		if !dep.HasPinnedVersion() {
			// Nothing concrete to look up.
			continue
		}
		findings := e.Oracle.Lookup(ctx, dep.Name, dep.Version, dep.Ecosystem)
		result.Vulnerabilities = append(result.Vulnerabilities, findings...)
	}

	result.SecureVersions = e.recommend(ctx, deps, len(result.Vulnerabilities) > 0)

	if updated := e.rewrite(file, result.SecureVersions); updated != "" && updated != file.Content {
		result.UpdatedContent = &updated
	}

	e.review(ctx, file, &result)
	return result
}

// recommend produces upgrade decisions for the file's dependencies.
// The resolver (with its registry fallback) runs only when the file produced
// at least one finding; the static table is swept across all dependencies
// regardless, as a lower-cost check.
func (e *Engine) recommend(ctx context.Context, deps []models.Dependency, hasFindings bool) []models.SecureVersionRecommendation {
	var recs []models.SecureVersionRecommendation
	for _, dep := range deps {
		var res registry.Resolution
		switch {
		case hasFindings:
			res = e.Resolver.Resolve(ctx, dep.Name, dep.Version, dep.Ecosystem)
		default:
			v, ok := e.Table.Lookup(dep.Ecosystem, dep.Name)
			if !ok {
				continue
			}
			res = registry.Resolution{SecureVersion: v, UpdateCommand: registry.UpdateCommand(dep.Ecosystem, dep.Name, v)}
		}
		recs = append(recs, decide(dep, res))
	}
	return recs
}

// decide derives the upgrade decision for one dependency. isSecure is exact
// string equality of normalized versions, not semantic comparison.
func decide(dep models.Dependency, res registry.Resolution) models.SecureVersionRecommendation {
	return models.SecureVersionRecommendation{
		PackageName:    dep.Name,
		CurrentVersion: dep.Version,
		SecureVersion:  res.SecureVersion,
		UpdateCommand:  res.UpdateCommand,
		IsSecure:       dep.Version == res.SecureVersion,
	}
}

// rewrite regenerates manifest text. Returns "" when no rewrite applies.
// A rewrite failure leaves UpdatedContent unset; findings and
// recommendations stay valid.
func (e *Engine) rewrite(file models.ManifestFile, recs []models.SecureVersionRecommendation) string {
	needsRewrite := false
	for _, r := range recs {
		if !r.IsSecure {
			needsRewrite = true
			break
		}
	}
	// pom.xml is table-driven across the whole secure-version table, so it
	// may have qualifying updates even with zero per-file recommendations.
	if file.Name == "pom.xml" {
		needsRewrite = true
	}
	if !needsRewrite {
		return ""
	}

	rw := &manifest.Rewriter{
		Table: e.Table.Ecosystem(models.EcosystemMaven),
		Force: e.Cfg.ForceUpdate,
	}
	updated, err := rw.Rewrite(file.Name, file.Content, recs)
	if err != nil {
		slog.Warn("Rewrite failed; keeping original content", "file", file.Name, "error", err)
		return ""
	}
	return updated
}

// review attaches the advisory AI opinion when enabled. Review output never
// affects the upgrade decision; failures are logged, not surfaced as findings.
func (e *Engine) review(ctx context.Context, file models.ManifestFile, result *models.FileResult) {
	if !e.Cfg.AIReview || e.Reviewer == nil {
		return
	}
	if !e.Reviewer.IsAvailable(ctx) {
		slog.Debug("AI reviewer not available; skipping review", "file", file.Name)
		return
	}
	review, err := e.Reviewer.ReviewManifest(ctx, file)
	if err != nil {
		slog.Warn("AI review failed", "file", file.Name, "error", err)
		return
	}
	result.AIReview = review
}

// persist stores the completed report when a history store is attached.
// Storage failure never fails the scan.
func (e *Engine) persist(ctx context.Context, report *models.ScanReport) {
	if e.Store == nil {
		return
	}
	if _, err := e.Store.SaveReport(ctx, report); err != nil {
		slog.Warn("Failed to persist scan report", "owner", report.Owner, "repo", report.Repo, "error", err)
	}
}

// parseFailureFinding maps parser errors to their synthetic findings.
func parseFailureFinding(fileName string, err error) models.VulnerabilityFinding {
	if errors.Is(err, manifest.ErrUnsupportedFormat) {
		return models.UnsupportedFormatFinding(fileName)
	}
	return models.ParseErrorFinding(fileName, err.Error())
}
