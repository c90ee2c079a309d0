package models

// Synthetic finding titles. These mark scan-degradation placeholders that must
// surface to the caller rather than being silently dropped.
const (
	TitleScanError         = "Scan Error"
	TitleParseError        = "Parse Error"
	TitleUnsupportedFormat = "Unsupported Format"
)

// VulnerabilityFinding is one reported issue for one dependency.
// Findings are immutable once produced and are aggregated without
// deduplication: the same package in two manifests yields two findings.
type VulnerabilityFinding struct {
	Package     string        `json:"package"`
	Version     string        `json:"version"`
	Severity    SeverityLevel `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	CVE         string        `json:"cve,omitempty"`
	Reference   string        `json:"reference,omitempty"`
}

// IsSynthetic reports whether the finding is a scan-degradation placeholder
// rather than an oracle-reported vulnerability.
func (f VulnerabilityFinding) IsSynthetic() bool {
	switch f.Title {
	case TitleScanError, TitleParseError, TitleUnsupportedFormat:
		return true
	}
	return false
}

// ScanErrorFinding builds the placeholder emitted when the oracle could not be
// reached after retries. UNKNOWN severity means "assume vulnerable, flag for
// manual review".
func ScanErrorFinding(pkg, version, reason string) VulnerabilityFinding {
	return VulnerabilityFinding{
		Package:     pkg,
		Version:     version,
		Severity:    SeverityUnknown,
		Title:       TitleScanError,
		Description: reason,
	}
}

// ParseErrorFinding builds the placeholder for a manifest that could not be
// parsed. The failure is localized to that file; the scan continues.
func ParseErrorFinding(fileName, reason string) VulnerabilityFinding {
	return VulnerabilityFinding{
		Package:     fileName,
		Severity:    SeverityUnknown,
		Title:       TitleParseError,
		Description: reason,
	}
}

// UnsupportedFormatFinding builds the placeholder for a recognized manifest
// name that has no parser (e.g. build.gradle).
func UnsupportedFormatFinding(fileName string) VulnerabilityFinding {
	return VulnerabilityFinding{
		Package:     fileName,
		Severity:    SeverityUnknown,
		Title:       TitleUnsupportedFormat,
		Description: "no parser for manifest format: " + fileName,
	}
}
