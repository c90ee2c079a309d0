// Package render turns scan reports into styled terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/patchwatch/patchwatch/models"
)

var (
	green  = lipgloss.Color("#22C55E")
	yellow = lipgloss.Color("#F59E0B")
	blue   = lipgloss.Color("#38BDF8")
	red    = lipgloss.Color("#EF4444")
	slate  = lipgloss.Color("#94A3B8")
	ink    = lipgloss.Color("#E5E7EB")
	line   = lipgloss.Color("#1F2937")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(blue).
			Padding(0, 1)

	fileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	fileHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ink)

	highStyle    = lipgloss.NewStyle().Bold(true).Foreground(red)
	mediumStyle  = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	lowStyle     = lipgloss.NewStyle().Foreground(blue)
	unknownStyle = lipgloss.NewStyle().Bold(true).Foreground(slate)
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(green)
	dimStyle     = lipgloss.NewStyle().Foreground(slate)
)

func severityStyle(sev models.SeverityLevel) lipgloss.Style {
	switch sev {
	case models.SeverityHigh:
		return highStyle
	case models.SeverityMedium:
		return mediumStyle
	case models.SeverityLow:
		return lowStyle
	default:
		return unknownStyle
	}
}

func statusStyle(status models.ScanStatus) lipgloss.Style {
	switch status {
	case models.StatusSecure:
		return okStyle
	case models.StatusVulnerable:
		return highStyle
	default:
		return mediumStyle
	}
}

// Report renders the full scan report for the terminal.
func Report(report *models.ScanReport) string {
	var b strings.Builder

	target := report.Repo
	if report.Owner != "" {
		target = report.Owner + "/" + report.Repo
	}
	b.WriteString(titleStyle.Render("patchwatch scan: "+target) + "\n\n")

	if report.Status == models.StatusWarning {
		b.WriteString(mediumStyle.Render("WARNING") + " no recognized manifest files found, nothing to scan\n")
		return b.String()
	}

	for _, file := range report.Files {
		b.WriteString(renderFile(file) + "\n")
	}

	b.WriteString(fmt.Sprintf("%s  files: %d  vulnerabilities: %d\n",
		statusStyle(report.Status).Render(strings.ToUpper(string(report.Status))),
		report.TotalFiles,
		report.TotalVulnerabilities))
	return b.String()
}

func renderFile(file models.FileResult) string {
	var b strings.Builder

	header := fileHeaderStyle.Render(file.FileName)
	if file.Ecosystem != models.EcosystemUnknown {
		header += dimStyle.Render(fmt.Sprintf("  (%s, %d dependencies)", file.Ecosystem, file.Dependencies))
	}
	b.WriteString(header + "\n")

	if len(file.Vulnerabilities) == 0 {
		b.WriteString(okStyle.Render("  no known vulnerabilities") + "\n")
	}
	for _, v := range file.Vulnerabilities {
		b.WriteString(fmt.Sprintf("  %s %s", severityStyle(v.Severity).Render(string(v.Severity)), v.Title))
		if v.Package != "" {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s@%s", v.Package, v.Version)))
		}
		if v.CVE != "" {
			b.WriteString(dimStyle.Render("  " + v.CVE))
		}
		b.WriteString("\n")
	}

	for _, rec := range file.SecureVersions {
		if rec.IsSecure {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s %s -> %s  %s\n",
			lowStyle.Render("upgrade"),
			rec.PackageName,
			rec.CurrentVersion,
			rec.SecureVersion,
			dimStyle.Render(rec.UpdateCommand)))
	}

	if file.UpdatedContent != nil {
		b.WriteString(dimStyle.Render("  updated manifest content available (use --fix to apply)") + "\n")
	}

	if file.AIReview != nil {
		b.WriteString(renderReview(file.AIReview))
	}

	return fileStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderReview(review *models.ManifestReview) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render("  AI review: ") + review.Summary + "\n")
	for _, item := range review.HighRiskItems {
		b.WriteString("    " + highStyle.Render("high") + " " + item + "\n")
	}
	for _, item := range review.MediumRiskItems {
		b.WriteString("    " + mediumStyle.Render("medium") + " " + item + "\n")
	}
	for _, item := range review.LowRiskItems {
		b.WriteString("    " + lowStyle.Render("low") + " " + item + "\n")
	}
	return b.String()
}

// History renders scan-history rows for the terminal.
func History(recs []models.ScanRecord) string {
	if len(recs) == 0 {
		return dimStyle.Render("no scans recorded yet") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("scan history") + "\n\n")
	for _, rec := range recs {
		b.WriteString(fmt.Sprintf("  #%-4d %-30s %s  files: %d  vulns: %d  %s\n",
			rec.ID,
			rec.Owner+"/"+rec.Repo,
			statusStyle(models.ScanStatus(rec.Status)).Render(strings.ToUpper(rec.Status)),
			rec.TotalFiles,
			rec.TotalVulns,
			dimStyle.Render(rec.CompletedAt)))
	}
	return b.String()
}
