package engine

import "github.com/patchwatch/patchwatch/models"

// aggregate folds per-file results into the repository-level report.
// Findings are concatenated without deduplication: the same package in two
// manifests counts twice. Status is vulnerable iff any finding exists.
func aggregate(report *models.ScanReport, results []models.FileResult) {
	report.Files = results
	report.TotalFiles = len(results)

	total := 0
	for _, r := range results {
		total += r.FindingCount()
	}
	report.TotalVulnerabilities = total

	if total > 0 {
		report.Status = models.StatusVulnerable
	} else {
		report.Status = models.StatusSecure
	}
}
