// Package ai provides the advisory manifest reviewer. The upgrade decision
// never depends on its output; a failed or malformed review degrades to a
// logged scan error.
package ai

import (
	"context"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
)

// Reviewer abstracts calls to a language model that reads manifest text and
// returns a structured risk opinion.
// To add a new provider:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Reviewer
//  3. Register in New()
type Reviewer interface {
	// Name returns the provider identifier (e.g. "openai", "noop").
	Name() string

	// IsAvailable verifies the provider is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// ReviewManifest returns a summary plus three severity buckets for the
	// given manifest text.
	ReviewManifest(ctx context.Context, file models.ManifestFile) (*models.ManifestReview, error)
}

// New returns the configured Reviewer. With no provider or API key set it
// returns a NoopReviewer; callers should check IsAvailable() before relying
// on review output.
func New(cfg config.AIConfig) (Reviewer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg)
	case "":
		return &NoopReviewer{}, nil
	default:
		return &NoopReviewer{}, nil
	}
}
