package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patchwatch/patchwatch/models"
)

// LocalFetcher reads recognized manifests straight from a working tree on
// disk. It is the only fetcher that supports writing fixes back.
type LocalFetcher struct {
	dir string
}

// NewLocal creates a LocalFetcher rooted at dir.
func NewLocal(dir string) *LocalFetcher {
	return &LocalFetcher{dir: dir}
}

func (l *LocalFetcher) Name() string { return "local" }

// Dir returns the working tree root.
func (l *LocalFetcher) Dir() string { return l.dir }

// FetchManifests reads every recognized manifest in the tree root. The
// owner/repo arguments are ignored; the tree identifies itself.
func (l *LocalFetcher) FetchManifests(ctx context.Context, owner, repo string) ([]models.ManifestFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", l.dir, err)
	}

	var files []models.ManifestFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		eco, ok := models.EcosystemForManifest(name)
		if !ok {
			continue
		}

		mf := models.ManifestFile{Name: name, Path: filepath.Join(l.dir, name), Ecosystem: eco}
		if models.IsParseable(name) {
			data, err := os.ReadFile(mf.Path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", mf.Path, err)
			}
			mf.Content = string(data)
		}
		files = append(files, mf)
	}
	return files, nil
}

// WriteBack persists updated manifest content next to the original, leaving a
// .bak copy of the previous version.
func (l *LocalFetcher) WriteBack(file models.ManifestFile, updated string) error {
	if file.Path == "" {
		return fmt.Errorf("manifest %s has no local path", file.Name)
	}

	original, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("reading %s for backup: %w", file.Path, err)
	}
	if err := os.WriteFile(file.Path+".bak", original, 0o644); err != nil {
		return fmt.Errorf("writing backup for %s: %w", file.Path, err)
	}
	if err := os.WriteFile(file.Path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing updated %s: %w", file.Path, err)
	}
	return nil
}
