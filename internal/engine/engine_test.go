package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/internal/registry"
	"github.com/patchwatch/patchwatch/models"
)

type fakeOracle struct {
	findings map[string][]models.VulnerabilityFinding
	calls    int
}

func (f *fakeOracle) Lookup(ctx context.Context, name, version string, eco models.Ecosystem) []models.VulnerabilityFinding {
	f.calls++
	return f.findings[name+"@"+version]
}

type fakeResolver struct {
	versions map[string]string
	calls    int
}

func (f *fakeResolver) Resolve(ctx context.Context, name, current string, eco models.Ecosystem) registry.Resolution {
	f.calls++
	if v, ok := f.versions[name]; ok {
		return registry.Resolution{SecureVersion: v, UpdateCommand: registry.UpdateCommand(eco, name, v)}
	}
	return registry.Resolution{SecureVersion: "latest", UpdateCommand: "upgrade to latest"}
}

type fakeFetcher struct {
	files []models.ManifestFile
	err   error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchManifests(ctx context.Context, owner, repo string) ([]models.ManifestFile, error) {
	return f.files, f.err
}

func highFinding(pkg, version string) models.VulnerabilityFinding {
	return models.VulnerabilityFinding{
		Package:  pkg,
		Version:  version,
		Severity: models.SeverityHigh,
		Title:    "Known Vulnerability",
	}
}

func newTestEngine(oracle *fakeOracle, resolver *fakeResolver, fetcher *fakeFetcher) *Engine {
	return New(config.ScanConfig{}, oracle, resolver, registry.NewTable(), fetcher)
}

func TestScanAggregatesFindingsAcrossFiles(t *testing.T) {
	oracle := &fakeOracle{findings: map[string][]models.VulnerabilityFinding{
		"lodash@4.17.0": {highFinding("lodash", "4.17.0")},
		"Flask@2.0.0":   {highFinding("Flask", "2.0.0")},
	}}
	resolver := &fakeResolver{versions: map[string]string{"lodash": "4.17.21", "Flask": "2.2.3"}}
	fetcher := &fakeFetcher{files: []models.ManifestFile{
		{Name: "package.json", Ecosystem: models.EcosystemNPM,
			Content: `{"dependencies":{"lodash":"^4.17.0"}}`},
		{Name: "requirements.txt", Ecosystem: models.EcosystemPyPI,
			Content: "Flask==2.0.0\n"},
	}}

	report, err := newTestEngine(oracle, resolver, fetcher).Scan(context.Background(), "acme", "webapp")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Status != models.StatusVulnerable {
		t.Fatalf("expected vulnerable, got %s", report.Status)
	}
	if report.TotalVulnerabilities != 2 {
		t.Fatalf("expected 2 total findings, got %d", report.TotalVulnerabilities)
	}
	if report.TotalFiles != 2 {
		t.Fatalf("expected 2 files, got %d", report.TotalFiles)
	}
}

func TestScanSecureWhenNoFindings(t *testing.T) {
	oracle := &fakeOracle{}
	resolver := &fakeResolver{}
	fetcher := &fakeFetcher{files: []models.ManifestFile{
		{Name: "package.json", Ecosystem: models.EcosystemNPM,
			Content: `{"dependencies":{"left-pad":"1.3.0"}}`},
		{Name: "requirements.txt", Ecosystem: models.EcosystemPyPI,
			Content: "gunicorn\n"},
	}}

	report, err := newTestEngine(oracle, resolver, fetcher).Scan(context.Background(), "acme", "webapp")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Status != models.StatusSecure {
		t.Fatalf("expected secure, got %s", report.Status)
	}
	if report.TotalVulnerabilities != 0 {
		t.Fatalf("expected 0 findings, got %d", report.TotalVulnerabilities)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver should not run without findings, got %d calls", resolver.calls)
	}
}

func TestScanEmptyRepositoryIsWarning(t *testing.T) {
	report, err := newTestEngine(&fakeOracle{}, &fakeResolver{}, &fakeFetcher{}).
		Scan(context.Background(), "acme", "empty")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Status != models.StatusWarning {
		t.Fatalf("expected warning for empty repository, got %s", report.Status)
	}
	if report.TotalFiles != 0 || len(report.Files) != 0 {
		t.Fatalf("expected no file results, got %+v", report.Files)
	}
}

func TestScanFileUnsupportedFormat(t *testing.T) {
	e := newTestEngine(&fakeOracle{}, &fakeResolver{}, &fakeFetcher{})
	result := e.ScanFile(context.Background(), models.ManifestFile{
		Name:      "build.gradle",
		Ecosystem: models.EcosystemUnknown,
		Content:   "dependencies { implementation 'org.example:lib:1.0' }",
	})
	if len(result.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 synthetic finding, got %d", len(result.Vulnerabilities))
	}
	f := result.Vulnerabilities[0]
	if f.Title != models.TitleUnsupportedFormat || f.Severity != models.SeverityUnknown {
		t.Fatalf("unexpected finding: %+v", f)
	}
}

func TestScanFileParseErrorIsLocalized(t *testing.T) {
	e := newTestEngine(&fakeOracle{}, &fakeResolver{}, &fakeFetcher{})
	result := e.ScanFile(context.Background(), models.ManifestFile{
		Name:      "package.json",
		Ecosystem: models.EcosystemNPM,
		Content:   `{"dependencies": not json`,
	})
	if len(result.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 synthetic finding, got %d", len(result.Vulnerabilities))
	}
	f := result.Vulnerabilities[0]
	if f.Title != models.TitleParseError || f.Severity != models.SeverityUnknown {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if result.UpdatedContent != nil {
		t.Fatal("parse failure must not produce updated content")
	}
}

func TestScanFileRewritesVulnerableManifest(t *testing.T) {
	oracle := &fakeOracle{findings: map[string][]models.VulnerabilityFinding{
		"lodash@4.17.0": {highFinding("lodash", "4.17.0")},
	}}
	resolver := &fakeResolver{versions: map[string]string{"lodash": "4.17.21"}}
	e := newTestEngine(oracle, resolver, &fakeFetcher{})

	result := e.ScanFile(context.Background(), models.ManifestFile{
		Name:      "package.json",
		Ecosystem: models.EcosystemNPM,
		Content:   `{"dependencies":{"lodash":"^4.17.0"}}`,
	})

	if len(result.SecureVersions) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(result.SecureVersions))
	}
	rec := result.SecureVersions[0]
	if rec.IsSecure {
		t.Fatalf("expected is_secure=false pre-rewrite, got %+v", rec)
	}
	if rec.SecureVersion != "4.17.21" {
		t.Fatalf("unexpected secure version %q", rec.SecureVersion)
	}
	if result.UpdatedContent == nil {
		t.Fatal("expected rewritten content")
	}
	if !strings.Contains(*result.UpdatedContent, `"lodash": "^4.17.21"`) {
		t.Fatalf("rewritten content missing upgraded entry:\n%s", *result.UpdatedContent)
	}
}

func TestScanFileTableSweepWithoutFindings(t *testing.T) {
	// Flask has a built-in table entry; without findings the resolver stays
	// idle but the table still yields a recommendation.
	resolver := &fakeResolver{}
	e := newTestEngine(&fakeOracle{}, resolver, &fakeFetcher{})

	result := e.ScanFile(context.Background(), models.ManifestFile{
		Name:      "requirements.txt",
		Ecosystem: models.EcosystemPyPI,
		Content:   "Flask==2.2.3\n",
	})

	if resolver.calls != 0 {
		t.Fatalf("resolver should not run without findings, got %d calls", resolver.calls)
	}
	if len(result.SecureVersions) != 1 {
		t.Fatalf("expected table-swept recommendation, got %+v", result.SecureVersions)
	}
	rec := result.SecureVersions[0]
	if !rec.IsSecure {
		t.Fatalf("Flask==2.2.3 should already be secure: %+v", rec)
	}
	if result.UpdatedContent != nil {
		t.Fatal("already-secure file must not be rewritten")
	}
}

func TestScanFileSkipsUnpinnedDependencies(t *testing.T) {
	oracle := &fakeOracle{}
	e := newTestEngine(oracle, &fakeResolver{}, &fakeFetcher{})

	e.ScanFile(context.Background(), models.ManifestFile{
		Name:      "requirements.txt",
		Ecosystem: models.EcosystemPyPI,
		Content:   "gunicorn\nFlask==2.2.3\n",
	})

	if oracle.calls != 1 {
		t.Fatalf("expected 1 oracle call (bare gunicorn skipped), got %d", oracle.calls)
	}
}
