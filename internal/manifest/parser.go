// Package manifest parses and rewrites dependency manifests for the supported
// ecosystems: package.json (npm), requirements.txt (PyPI), pom.xml (Maven).
package manifest

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/patchwatch/patchwatch/models"
)

// ErrUnsupportedFormat marks a manifest name with no parser. Callers surface
// it as an explicit finding so "nothing found" and "format unknown" stay
// distinguishable.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// ParseError wraps a malformed-content failure. It is localized to one file;
// the scan continues for other files.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts raw manifest text into an ordered list of dependencies.
// Dispatch is by file name. Malformed content never panics past this
// boundary: it returns a *ParseError.
func Parse(name, content string) ([]models.Dependency, error) {
	switch name {
	case "package.json":
		return parsePackageJSON(name, content)
	case "requirements.txt":
		return parseRequirements(content), nil
	case "pom.xml":
		return parsePOM(name, content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// packageJSON models just the two dependency sections we traverse.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// parsePackageJSON merges the direct and development dependency sections into
// one mapping. Keys are emitted in sorted order so repeated parses of the
// same file are deterministic.
func parsePackageJSON(name, content string) ([]models.Dependency, error) {
	var pkg packageJSON
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return nil, &ParseError{File: name, Err: err}
	}

	merged := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for k, v := range pkg.Dependencies {
		merged[k] = v
	}
	for k, v := range pkg.DevDependencies {
		merged[k] = v
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	deps := make([]models.Dependency, 0, len(names))
	for _, n := range names {
		expr := merged[n]
		deps = append(deps, models.Dependency{
			Name:        n,
			VersionExpr: expr,
			Version:     models.NormalizeVersion(expr),
			Ecosystem:   models.EcosystemNPM,
		})
	}
	return deps, nil
}

var (
	// reqPinnedRE extracts "name<op>version" with the PEP 440 operator set.
	reqPinnedRE = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*(?:\[[A-Za-z0-9._,-]+\])?)\s*(==|>=|<=|~=|!=|>|<)\s*([^\s;#]+)`)
	// reqBareRE matches a requirement line with no version operator at all.
	reqBareRE = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*(?:\[[A-Za-z0-9._,-]+\])?)\s*(?:#.*)?$`)
)

// parseRequirements scans requirements.txt line by line. Blank lines and
// comment lines are skipped; a bare package name (no operator) yields version
// "latest" and is excluded from oracle lookups, but still appears in the
// dependency list.
func parseRequirements(content string) []models.Dependency {
	var deps []models.Dependency
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if m := reqPinnedRE.FindStringSubmatch(line); m != nil {
			deps = append(deps, models.Dependency{
				Name:        m[1],
				VersionExpr: m[2] + m[3],
				Version:     models.NormalizeVersion(m[3]),
				Ecosystem:   models.EcosystemPyPI,
			})
			continue
		}
		if m := reqBareRE.FindStringSubmatch(line); m != nil {
			deps = append(deps, models.Dependency{
				Name:        m[1],
				VersionExpr: "latest",
				Version:     "latest",
				Ecosystem:   models.EcosystemPyPI,
			})
		}
		// Lines matching neither pattern (editable installs, URLs, options)
		// carry no package coordinate we can check; leave them to the
		// rewriter, which passes them through verbatim.
	}
	return deps
}

// pomBlockRE isolates each <dependency> block. Non-greedy with (?s) so
// blocks may span lines; the coordinate tags are then matched inside one
// block at a time, never across a block boundary.
var (
	pomBlockRE    = regexp.MustCompile(`(?s)<dependency>.*?</dependency>`)
	pomGroupRE    = regexp.MustCompile(`(?s)<groupId>\s*(.*?)\s*</groupId>`)
	pomArtifactRE = regexp.MustCompile(`(?s)<artifactId>\s*(.*?)\s*</artifactId>`)
	pomVersionRE  = regexp.MustCompile(`(?s)<version>\s*(.*?)\s*</version>`)
)

// parsePOM extracts <dependency> blocks from pom.xml. Package names use the
// compound "group:artifact" form. Blocks without a <version> tag inherit
// their version from a parent or BOM; they carry no pinned version to check
// and are skipped.
func parsePOM(name, content string) ([]models.Dependency, error) {
	if err := checkWellFormedXML(content); err != nil {
		return nil, &ParseError{File: name, Err: err}
	}

	blocks := pomBlockRE.FindAllString(content, -1)
	deps := make([]models.Dependency, 0, len(blocks))
	for _, block := range blocks {
		group := pomGroupRE.FindStringSubmatch(block)
		artifact := pomArtifactRE.FindStringSubmatch(block)
		version := pomVersionRE.FindStringSubmatch(block)
		if group == nil || artifact == nil || version == nil {
			continue
		}
		deps = append(deps, models.Dependency{
			Name:        group[1] + ":" + artifact[1],
			VersionExpr: version[1],
			Version:     models.NormalizeVersion(version[1]),
			Ecosystem:   models.EcosystemMaven,
		})
	}
	return deps, nil
}

// checkWellFormedXML walks the token stream without building a tree.
func checkWellFormedXML(content string) error {
	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
