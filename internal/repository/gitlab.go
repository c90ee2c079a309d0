package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabFetcher implements ManifestFetcher for GitLab (cloud and self-hosted)
// via the repository files API.
type GitLabFetcher struct {
	client *gitlab.Client
	host   string
}

// NewGitLab creates a GitLabFetcher from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabFetcher, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabFetcher{client: client, host: cfg.Host}, nil
}

func (g *GitLabFetcher) Name() string { return "gitlab" }

// FetchManifests walks the project's root tree and downloads every recognized
// manifest file on the default branch.
func (g *GitLabFetcher) FetchManifests(ctx context.Context, owner, repo string) ([]models.ManifestFile, error) {
	nameWithNS := owner + "/" + repo
	proj, _, err := g.client.Projects.GetProject(nameWithNS, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting GitLab project %s: %w", nameWithNS, err)
	}
	ref := proj.DefaultBranch

	tree, _, err := g.client.Repositories.ListTree(nameWithNS, &gitlab.ListTreeOptions{
		Ref: &ref,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing %s tree: %w", nameWithNS, err)
	}

	var files []models.ManifestFile
	for _, node := range tree {
		if node.Type != "blob" {
			continue
		}
		eco, ok := models.EcosystemForManifest(node.Name)
		if !ok {
			continue
		}

		mf := models.ManifestFile{Name: node.Name, Path: node.Path, Ecosystem: eco}
		if models.IsParseable(node.Name) {
			raw, resp, err := g.client.RepositoryFiles.GetRawFile(nameWithNS, node.Path,
				&gitlab.GetRawFileOptions{Ref: &ref}, gitlab.WithContext(ctx))
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusNotFound {
					// Listed in the tree but gone on download: the file
					// vanished mid-scan. Skip it, but say so.
					slog.Warn("manifest disappeared between tree listing and download",
						"project", nameWithNS, "path", node.Path)
					continue
				}
				return nil, fmt.Errorf("fetching %s from %s: %w", node.Path, nameWithNS, err)
			}
			mf.Content = string(raw)
		}
		files = append(files, mf)
	}
	return files, nil
}
