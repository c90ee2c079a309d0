package manifest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/patchwatch/patchwatch/models"
)

// rangePrefixes are the version-range operators recognized when deciding
// whether an entry already carries its target secure version.
var rangePrefixes = []string{"^", "~", ">=", "<=", "==", "~=", ">", "<", "="}

// Rewriter regenerates manifest text with upgraded versions while preserving
// surrounding structure. The pom.xml rewrite is table-driven across the whole
// secure-version table; package.json and requirements.txt use only the
// per-file recommendations.
type Rewriter struct {
	// Table maps package name (maven: "group:artifact") to secure version.
	Table map[string]string
	// Force rewrites pom.xml entries even when the manifest already carries
	// the table version.
	Force bool
}

// Rewrite produces new manifest text for the given file. A pass with zero
// qualifying updates returns the input unchanged (byte-identical) for the
// line-oriented and tag-block formats; package.json is canonically
// re-serialized.
func (rw *Rewriter) Rewrite(name, content string, recs []models.SecureVersionRecommendation) (string, error) {
	switch name {
	case "package.json":
		return rw.rewritePackageJSON(content, recs)
	case "requirements.txt":
		return rw.rewriteRequirements(content, recs), nil
	case "pom.xml":
		return rw.rewritePOM(content), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// alreadyAtVersion reports whether expr declares target either bare or behind
// a recognized range prefix. Such entries are skipped: rewriting them again
// would churn the manifest without changing meaning.
func alreadyAtVersion(expr, target string) bool {
	if expr == target {
		return true
	}
	for _, p := range rangePrefixes {
		if expr == p+target {
			return true
		}
	}
	return false
}

// rewritePackageJSON replaces matching entries in both dependency sections and
// re-serializes the whole document with 2-space indentation and stable
// (sorted) key order. The caret prefix is always re-applied to upgraded
// entries regardless of the original prefix style; this normalization is
// deliberate.
func (rw *Rewriter) rewritePackageJSON(content string, recs []models.SecureVersionRecommendation) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", fmt.Errorf("reparsing package.json for rewrite: %w", err)
	}

	for _, section := range []string{"dependencies", "devDependencies"} {
		raw, ok := doc[section]
		if !ok {
			continue
		}
		var deps map[string]string
		if err := json.Unmarshal(raw, &deps); err != nil {
			return "", fmt.Errorf("reparsing %s section: %w", section, err)
		}
		for _, rec := range recs {
			expr, ok := deps[rec.PackageName]
			if !ok || rec.IsSecure || rec.SecureVersion == "latest" {
				continue
			}
			if alreadyAtVersion(expr, rec.SecureVersion) {
				continue
			}
			deps[rec.PackageName] = "^" + rec.SecureVersion
		}
		// Re-encode even without changes: the whole document is canonically
		// re-serialized below, so sections must round-trip through the map.
		enc, err := json.Marshal(deps)
		if err != nil {
			return "", fmt.Errorf("re-encoding %s section: %w", section, err)
		}
		doc[section] = enc
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("re-serializing package.json: %w", err)
	}
	return string(out) + "\n", nil
}

// reqLeadingNameRE extracts the leading package-name token of a requirement
// line for matching against recommendations.
var reqLeadingNameRE = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

// rewriteRequirements maps each non-skipped line to its recommendation by
// leading package-name token. Lines with no matching recommendation pass
// through unchanged, including comments and blanks, so output line order and
// count always equal the input's.
func (rw *Rewriter) rewriteRequirements(content string, recs []models.SecureVersionRecommendation) string {
	byName := make(map[string]models.SecureVersionRecommendation, len(recs))
	for _, r := range recs {
		byName[r.PackageName] = r
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		nm := reqLeadingNameRE.FindStringSubmatch(line)
		if nm == nil {
			continue
		}
		rec, ok := byName[nm[1]]
		if !ok || rec.IsSecure || rec.SecureVersion == "latest" {
			continue
		}
		idx := reqPinnedRE.FindStringSubmatchIndex(line)
		if idx == nil {
			// Bare package name: nothing pinned, nothing to rewrite.
			continue
		}
		current := line[idx[6]:idx[7]]
		if alreadyAtVersion(current, rec.SecureVersion) {
			continue
		}
		// Splice the new version over the old token, keeping the operator
		// and any trailing comment intact.
		lines[i] = line[:idx[6]] + rec.SecureVersion + line[idx[7]:]
	}
	return strings.Join(lines, "\n")
}

// rewritePOM scans across all secure-version table entries (not just ones
// with a finding), substituting the <version> of each <dependency> block
// whose <artifactId> matches a table entry. Matching is scoped to one block
// at a time so a block without its own <version> (parent- or BOM-managed)
// is left alone rather than spilling the substitution into a neighbor.
// Matching is case-sensitive; a replacement happens only when the manifest
// version differs from the table's, or unconditionally when Force is set.
func (rw *Rewriter) rewritePOM(content string) string {
	secureByArtifact := make(map[string]string, len(rw.Table))
	for pkg, secure := range rw.Table {
		artifact := pkg
		if i := strings.LastIndex(pkg, ":"); i >= 0 {
			artifact = pkg[i+1:]
		}
		secureByArtifact[artifact] = secure
	}

	return pomBlockRE.ReplaceAllStringFunc(content, func(block string) string {
		am := pomArtifactRE.FindStringSubmatch(block)
		if am == nil {
			return block
		}
		secure, ok := secureByArtifact[am[1]]
		if !ok {
			return block
		}
		idx := pomVersionRE.FindStringSubmatchIndex(block)
		if idx == nil {
			return block
		}
		if block[idx[2]:idx[3]] == secure && !rw.Force {
			return block
		}
		return block[:idx[2]] + secure + block[idx[3]:]
	})
}
