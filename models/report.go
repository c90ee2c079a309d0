package models

import "time"

// ScanStatus is the repository-level outcome of a scan.
type ScanStatus string

const (
	// StatusSecure means every scanned manifest produced zero findings.
	StatusSecure ScanStatus = "secure"
	// StatusVulnerable means at least one finding exists somewhere.
	StatusVulnerable ScanStatus = "vulnerable"
	// StatusWarning means there was nothing to scan (no recognized manifests).
	// This is deliberately distinct from secure.
	StatusWarning ScanStatus = "warning"
)

// ManifestFile is a retrieved dependency manifest. The engine derives
// UpdatedContent from it but never mutates Content in place; the caller
// decides whether and when to persist the rewrite.
type ManifestFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"-"`
	Ecosystem Ecosystem `json:"ecosystem"`
}

// FileResult holds the per-manifest outcome of a scan.
type FileResult struct {
	FileName        string                        `json:"file_name"`
	Ecosystem       Ecosystem                     `json:"ecosystem"`
	Dependencies    int                           `json:"dependencies"`
	Vulnerabilities []VulnerabilityFinding        `json:"vulnerabilities"`
	SecureVersions  []SecureVersionRecommendation `json:"secure_versions"`
	// UpdatedContent is the regenerated manifest text, or nil when no rewrite
	// was performed (nothing to upgrade, or the rewrite failed).
	UpdatedContent *string `json:"updated_content,omitempty"`
	// AIReview is the advisory reviewer output, when enabled.
	AIReview *ManifestReview `json:"ai_review,omitempty"`
}

// FindingCount returns the number of findings for this file.
func (r FileResult) FindingCount() int {
	return len(r.Vulnerabilities)
}

// ManifestReview is the structured opinion of the AI reviewer. It is advisory:
// the upgrade decision never depends on it.
type ManifestReview struct {
	Summary         string   `json:"summary"`
	HighRiskItems   []string `json:"high_risk_items"`
	MediumRiskItems []string `json:"medium_risk_items"`
	LowRiskItems    []string `json:"low_risk_items"`
}

// ScanReport is the aggregate result for one repository scan.
type ScanReport struct {
	Owner                string       `json:"owner"`
	Repo                 string       `json:"repo"`
	Status               ScanStatus   `json:"status"`
	TotalFiles           int          `json:"total_files"`
	TotalVulnerabilities int          `json:"total_vulnerabilities"`
	Files                []FileResult `json:"files"`
	StartedAt            time.Time    `json:"started_at"`
	CompletedAt          time.Time    `json:"completed_at"`
}

// ScanRecord is the persisted form of a completed scan.
type ScanRecord struct {
	ID          int64  `json:"id"           db:"id"`
	Owner       string `json:"owner"        db:"owner"`
	Repo        string `json:"repo"         db:"repo"`
	Status      string `json:"status"       db:"status"`
	TotalFiles  int    `json:"total_files"  db:"total_files"`
	TotalVulns  int    `json:"total_vulns"  db:"total_vulns"`
	ReportJSON  string `json:"-"            db:"report_json"`
	StartedAt   string `json:"started_at"   db:"started_at"`
	CompletedAt string `json:"completed_at" db:"completed_at"`
}
