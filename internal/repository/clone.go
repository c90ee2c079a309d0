package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// CloneResult holds information about a completed clone operation.
type CloneResult struct {
	LocalPath string
	Owner     string
	Repo      string
	Branch    string
	Commit    string
}

// Clone shallow-clones the repository at repoURL to a temporary directory and
// returns a LocalFetcher rooted in it. token is used for HTTPS auth; branch
// is optional (defaults to HEAD). Callers must invoke Cleanup when done.
func Clone(ctx context.Context, repoURL, token, branch string) (*LocalFetcher, *CloneResult, error) {
	tmpDir, err := os.MkdirTemp("", "patchwatch-clone-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating temp directory: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:   repoURL,
		Depth: 1, // shallow clone for speed
	}
	if token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "patchwatch",
			Password: token,
		}
	}
	if branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		cloneOpts.SingleBranch = true
	}

	slog.Debug("Cloning repository", "url", repoURL, "branch", branch, "dest", tmpDir)

	repo, err := gogit.PlainCloneContext(ctx, tmpDir, false, cloneOpts)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, nil, fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	owner, repoName := ParseOwnerRepo(repoURL)
	result := &CloneResult{
		LocalPath: tmpDir,
		Owner:     owner,
		Repo:      repoName,
		Branch:    head.Name().Short(),
		Commit:    head.Hash().String(),
	}
	return NewLocal(tmpDir), result, nil
}

// Cleanup removes the temporary directory created during Clone.
func Cleanup(result *CloneResult) {
	if result == nil {
		return
	}
	if err := os.RemoveAll(result.LocalPath); err != nil {
		slog.Warn("Failed to clean up clone directory",
			"path", result.LocalPath, "error", err)
	}
}

// ParseOwnerRepo extracts the owner and repository name from a git URL.
// Supports HTTPS (https://github.com/owner/repo.git) and SSH
// (git@github.com:owner/repo.git).
func ParseOwnerRepo(repoURL string) (owner, repo string) {
	u := strings.TrimSuffix(repoURL, ".git")

	if strings.Contains(u, "://") {
		parts := strings.Split(u, "/")
		if len(parts) >= 2 {
			repo = parts[len(parts)-1]
			owner = parts[len(parts)-2]
			return
		}
	}

	// SSH format: git@github.com:owner/repo
	if idx := strings.Index(u, ":"); idx != -1 {
		path := u[idx+1:]
		parts := strings.SplitN(path, "/", 2)
		if len(parts) == 2 {
			owner = parts[0]
			repo = parts[1]
			return
		}
	}

	return "", u
}
