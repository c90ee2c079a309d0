package repository

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
	"golang.org/x/oauth2"
)

// GitHubFetcher implements ManifestFetcher for GitHub and GitHub Enterprise
// using the repository Contents API (no clone needed).
type GitHubFetcher struct {
	client *gogithub.Client
	host   string
}

// NewGitHub creates a GitHubFetcher from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubFetcher, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubFetcher{client: client, host: cfg.Host}, nil
}

func (g *GitHubFetcher) Name() string { return "github" }

// FetchManifests lists the repository root and downloads every recognized
// manifest file found there.
func (g *GitHubFetcher) FetchManifests(ctx context.Context, owner, repo string) ([]models.ManifestFile, error) {
	_, rootEntries, _, err := g.client.Repositories.GetContents(ctx, owner, repo, "", nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s contents: %w", owner, repo, err)
	}

	var files []models.ManifestFile
	for _, entry := range rootEntries {
		if entry.GetType() != "file" {
			continue
		}
		name := entry.GetName()
		eco, ok := models.EcosystemForManifest(name)
		if !ok {
			continue
		}

		mf := models.ManifestFile{Name: name, Path: entry.GetPath(), Ecosystem: eco}
		if models.IsParseable(name) {
			fileContent, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, entry.GetPath(), nil)
			if err != nil {
				return nil, fmt.Errorf("fetching %s from %s/%s: %w", name, owner, repo, err)
			}
			content, err := fileContent.GetContent()
			if err != nil {
				return nil, fmt.Errorf("decoding %s content: %w", name, err)
			}
			mf.Content = content
		}
		files = append(files, mf)
	}
	return files, nil
}
