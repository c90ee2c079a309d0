package ai

import (
	"context"
	"fmt"

	"github.com/patchwatch/patchwatch/models"
)

// NoopReviewer is returned when no AI provider is configured. It is never
// available; callers that check IsAvailable() simply skip review.
type NoopReviewer struct{}

func (n *NoopReviewer) Name() string { return "noop" }

func (n *NoopReviewer) IsAvailable(ctx context.Context) bool { return false }

func (n *NoopReviewer) ReviewManifest(ctx context.Context, file models.ManifestFile) (*models.ManifestReview, error) {
	return nil, fmt.Errorf("no AI provider configured; run 'patchwatch setup'")
}
