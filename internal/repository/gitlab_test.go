package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

func newTestGitLabFetcher(t *testing.T, handler http.Handler) *GitLabFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := gitlab.NewClient("", gitlab.WithBaseURL(srv.URL+"/api/v4"))
	if err != nil {
		t.Fatalf("creating GitLab client: %v", err)
	}
	return &GitLabFetcher{client: client}
}

func TestGitLabFetchManifestsSkipsVanishedFile(t *testing.T) {
	g := newTestGitLabFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/repository/tree"):
			fmt.Fprint(w, `[
				{"id":"a1","name":"package.json","type":"blob","path":"package.json"},
				{"id":"a2","name":"requirements.txt","type":"blob","path":"requirements.txt"},
				{"id":"a3","name":"src","type":"tree","path":"src"}
			]`)
		case strings.HasSuffix(r.URL.Path, "/raw"):
			// requirements.txt was deleted between the tree listing and
			// the download.
			if strings.Contains(r.URL.Path, "requirements.txt") {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"404 File Not Found"}`)
				return
			}
			fmt.Fprint(w, `{"dependencies":{"lodash":"^4.17.0"}}`)
		default:
			fmt.Fprint(w, `{"id":1,"default_branch":"main"}`)
		}
	}))

	files, err := g.FetchManifests(context.Background(), "acme", "shop")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 manifest, got %d: %+v", len(files), files)
	}
	if files[0].Name != "package.json" {
		t.Fatalf("unexpected manifest: %+v", files[0])
	}
	if !strings.Contains(files[0].Content, "lodash") {
		t.Fatalf("content not downloaded: %+v", files[0])
	}
}

func TestGitLabFetchManifestsPropagatesDownloadError(t *testing.T) {
	g := newTestGitLabFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/repository/tree"):
			fmt.Fprint(w, `[{"id":"a1","name":"package.json","type":"blob","path":"package.json"}]`)
		case strings.HasSuffix(r.URL.Path, "/raw"):
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message":"boom"}`)
		default:
			fmt.Fprint(w, `{"id":1,"default_branch":"main"}`)
		}
	}))

	if _, err := g.FetchManifests(context.Background(), "acme", "shop"); err == nil {
		t.Fatal("expected error for non-404 download failure")
	}
}
