package models

import "strings"

// Dependency is one declared package inside one manifest file.
// Instances are created fresh per parse and never mutated; upgrade decisions
// produce new SecureVersionRecommendation records instead.
type Dependency struct {
	// Name is the ecosystem-scoped identifier. Maven uses the compound
	// "group:artifact" form.
	Name string `json:"name"`
	// VersionExpr is the raw version expression as written in the manifest,
	// including any range prefix ("^4.17.0", ">=2.0", or "latest" when the
	// manifest declared no version).
	VersionExpr string `json:"version_expr"`
	// Version is VersionExpr with range operators stripped; used for
	// comparisons and oracle/registry lookups.
	Version string `json:"version"`
	// Ecosystem routes the dependency to the right registry and oracle.
	Ecosystem Ecosystem `json:"ecosystem"`
}

// HasPinnedVersion reports whether a concrete version was declared.
// Unpinned dependencies ("latest") are excluded from oracle lookups: there is
// no specific version to check.
func (d Dependency) HasPinnedVersion() bool {
	return d.Version != "" && d.Version != "latest"
}

// SecureVersionRecommendation is one upgrade decision for one dependency.
type SecureVersionRecommendation struct {
	PackageName    string `json:"package_name"`
	CurrentVersion string `json:"current_version"`
	SecureVersion  string `json:"secure_version"`
	// UpdateCommand is a human-readable instruction, e.g.
	// "npm install lodash@4.17.21".
	UpdateCommand string `json:"update_command"`
	// IsSecure is computed by exact string equality of normalized versions,
	// not semantic comparison. Two semantically equal but differently
	// formatted versions are treated as different.
	IsSecure bool `json:"is_secure"`
}

// NormalizeVersion strips leading range-operator characters from a version
// expression, keeping only the part starting at the first digit.
// "^4.17.0" → "4.17.0", ">=2.2.3" → "2.2.3". Expressions with no digits at
// all ("*", "latest", an empty value) normalize to "latest".
func NormalizeVersion(expr string) string {
	expr = strings.TrimSpace(expr)
	i := strings.IndexFunc(expr, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return "latest"
	}
	return expr[i:]
}
