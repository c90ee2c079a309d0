// Package repository fetches dependency manifests from source-control hosts
// and local working trees.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
)

// ManifestFetcher abstracts "give me the recognized manifest files of a
// repository". Implementations: GitHub (Contents API), GitLab (repository
// files API), Local (working tree, optionally populated by a git clone).
type ManifestFetcher interface {
	// Name identifies the fetcher (e.g. "github", "gitlab", "local").
	Name() string

	// FetchManifests returns every recognized manifest in the repository
	// root, with raw content for the parseable ones. Unsupported-but-known
	// names (build.gradle, Gemfile, ...) are returned too so the scan can
	// surface them instead of silently skipping.
	FetchManifests(ctx context.Context, owner, repo string) ([]models.ManifestFile, error)
}

// New returns the fetcher for the given provider name.
func New(provider string, cfg *config.Config) (ManifestFetcher, error) {
	switch provider {
	case "github":
		if cfg.Git.GitHub.Token == "" {
			return nil, fmt.Errorf("no GitHub token configured; run 'patchwatch setup'")
		}
		return NewGitHub(cfg.Git.GitHub)
	case "gitlab":
		if cfg.Git.GitLab.Token == "" {
			return nil, fmt.Errorf("no GitLab token configured; run 'patchwatch setup'")
		}
		return NewGitLab(cfg.Git.GitLab)
	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: github, gitlab)", provider)
	}
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com"), strings.Contains(lower, "github."):
		return "github", nil
	case strings.Contains(lower, "gitlab.com"), strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot detect provider from URL %q; use --provider flag", repoURL)
	}
}
