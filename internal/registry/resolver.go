package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/patchwatch/patchwatch/models"
)

// Resolution is the outcome of a secure-version lookup. It is always usable:
// resolution failures degrade to "latest" with a generic update command
// instead of propagating an error.
type Resolution struct {
	SecureVersion string `json:"secure_version"`
	UpdateCommand string `json:"update_command"`
}

// releaseVersionRE admits only strict numeric major.minor.patch versions for
// live resolution; pre-releases and date tags are excluded.
var releaseVersionRE = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Resolver determines the target secure version for a package: first the
// static table, then (when a VersionSource is configured) a live registry
// lookup for the next version above the current one.
type Resolver struct {
	Table  *Table
	Source VersionSource
	// Compare orders version strings. Nil defaults to Lexicographic.
	Compare VersionComparer
}

// NewResolver wires a Resolver with the default comparison strategy.
func NewResolver(table *Table, source VersionSource) *Resolver {
	return &Resolver{Table: table, Source: source, Compare: Lexicographic}
}

// Resolve returns the secure-version recommendation for one package.
func (r *Resolver) Resolve(ctx context.Context, name, current string, eco models.Ecosystem) Resolution {
	if r.Table != nil {
		if v, ok := r.Table.Lookup(eco, name); ok {
			return Resolution{SecureVersion: v, UpdateCommand: UpdateCommand(eco, name, v)}
		}
	}

	if r.Source == nil {
		return latestFallback(eco, name)
	}

	published, err := r.Source.Versions(ctx, eco, name)
	if err != nil {
		slog.Warn("registry lookup failed; recommending latest",
			"package", name, "ecosystem", eco.String(), "error", err)
		return latestFallback(eco, name)
	}

	next := r.nextVersion(published, current)
	if next == "" {
		return latestFallback(eco, name)
	}
	return Resolution{SecureVersion: next, UpdateCommand: UpdateCommand(eco, name, next)}
}

// nextVersion picks the smallest published version strictly greater than
// current under the configured comparer, falling back to the largest
// published version when none is greater. Empty when nothing qualifies.
func (r *Resolver) nextVersion(published []string, current string) string {
	cmp := r.Compare
	if cmp == nil {
		cmp = Lexicographic
	}

	candidates := published[:0:0]
	for _, v := range published {
		if releaseVersionRE.MatchString(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool { return cmp(candidates[i], candidates[j]) < 0 })

	for _, v := range candidates {
		if cmp(v, current) > 0 {
			return v
		}
	}
	return candidates[len(candidates)-1]
}

// UpdateCommand builds the ecosystem-appropriate instruction to move a
// package to the given version.
func UpdateCommand(eco models.Ecosystem, name, version string) string {
	switch eco {
	case models.EcosystemNPM:
		return fmt.Sprintf("npm install %s@%s", name, version)
	case models.EcosystemPyPI:
		return fmt.Sprintf("pip install %s==%s", name, version)
	case models.EcosystemMaven:
		return fmt.Sprintf("set <version>%s</version> for %s in pom.xml", version, name)
	default:
		return fmt.Sprintf("upgrade %s to %s", name, version)
	}
}

func latestFallback(eco models.Ecosystem, name string) Resolution {
	cmd := ""
	switch eco {
	case models.EcosystemNPM:
		cmd = fmt.Sprintf("npm install %s@latest", name)
	case models.EcosystemPyPI:
		cmd = fmt.Sprintf("pip install --upgrade %s", name)
	case models.EcosystemMaven:
		cmd = fmt.Sprintf("update %s to the latest release in pom.xml", name)
	default:
		cmd = fmt.Sprintf("upgrade %s to the latest version", name)
	}
	return Resolution{SecureVersion: "latest", UpdateCommand: cmd}
}
