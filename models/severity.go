package models

// SeverityLevel represents the severity of a vulnerability finding.
type SeverityLevel string

const (
	SeverityHigh    SeverityLevel = "HIGH"
	SeverityMedium  SeverityLevel = "MEDIUM"
	SeverityLow     SeverityLevel = "LOW"
	SeverityUnknown SeverityLevel = "UNKNOWN"
)

// Weight returns a numeric weight for sorting (higher = more severe).
// UNKNOWN sorts above LOW because it means "could not verify, assume vulnerable".
func (s SeverityLevel) Weight() int {
	switch s {
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityUnknown:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func (s SeverityLevel) String() string {
	return string(s)
}

// SeverityFromScore buckets a CVSS score into a SeverityLevel.
// A nil score (oracle returned no score, or the scan errored) maps to UNKNOWN,
// which callers must treat as "potentially vulnerable", never as "no issue".
func SeverityFromScore(score *float64) SeverityLevel {
	if score == nil {
		return SeverityUnknown
	}
	switch {
	case *score >= 7.0:
		return SeverityHigh
	case *score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
