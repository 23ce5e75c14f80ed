package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github/backup/internal/config"
	"github/backup/internal/domain"
)

func testClient(t *testing.T, baseURL string, maxRetries int) *githubClient {
	t.Helper()

	cfg := config.GitHubConfig{
		BaseURL:    baseURL,
		Timeout:    5,
		MaxRetries: maxRetries,
		PageSize:   2,
	}

	c := NewGitHubClient(cfg, nil).(*githubClient)
	c.pageRetryDelay = time.Millisecond
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestFetchViewer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, map[string]string{"login": "octocat"})
	}))
	defer server.Close()

	login, err := testClient(t, server.URL, 3).FetchViewer(context.Background())
	if err != nil {
		t.Fatalf("FetchViewer: %v", err)
	}
	if login != "octocat" {
		t.Fatalf("login = %q, want octocat", login)
	}
}

func TestFetchCatalogPagination(t *testing.T) {
	pages := map[string][]map[string]string{
		"1": {
			{"full_name": "octocat/alpha", "ssh_url": "git@x:alpha.git", "updated_at": "2025-01-01"},
			{"full_name": "octocat/beta", "ssh_url": "git@x:beta.git", "updated_at": "2025-01-02"},
		},
		"2": {
			{"full_name": "octocat/gamma", "ssh_url": "git@x:gamma.git", "updated_at": "2025-01-03"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/repos" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("per_page"); got != "2" {
			t.Errorf("per_page = %q, want 2", got)
		}
		page := pages[r.URL.Query().Get("page")]
		if page == nil {
			page = []map[string]string{}
		}
		writeJSON(t, w, page)
	}))
	defer server.Close()

	catalog, err := testClient(t, server.URL, 3).FetchCatalog(context.Background(), domain.ItemKindRepository)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	if catalog.Truncated {
		t.Fatal("complete catalog flagged as truncated")
	}
	if catalog.Len() != 3 {
		t.Fatalf("Len = %d, want 3", catalog.Len())
	}

	wantOrder := []string{"octocat/alpha", "octocat/beta", "octocat/gamma"}
	for i, id := range wantOrder {
		if catalog.Order[i] != id {
			t.Fatalf("Order[%d] = %q, want %q", i, catalog.Order[i], id)
		}
	}

	entry := catalog.Entries["octocat/alpha"]
	if entry.Metadata[domain.MetaSSHURL] != "git@x:alpha.git" {
		t.Fatalf("metadata not carried over: %+v", entry.Metadata)
	}
}

func TestFetchCatalogGists(t *testing.T) {
	var served atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gists" {
			http.NotFound(w, r)
			return
		}
		if served.Swap(true) {
			writeJSON(t, w, []map[string]string{})
			return
		}
		writeJSON(t, w, []map[string]string{
			{"id": "abc123", "git_pull_url": "https://gist.github.com/abc123.git", "updated_at": "2025-02-01"},
		})
	}))
	defer server.Close()

	catalog, err := testClient(t, server.URL, 3).FetchCatalog(context.Background(), domain.ItemKindGist)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if catalog.Len() != 1 {
		t.Fatalf("Len = %d, want 1", catalog.Len())
	}
	if got := catalog.Entries["abc123"].Metadata[domain.MetaGitPullURL]; got != "https://gist.github.com/abc123.git" {
		t.Fatalf("git_pull_url = %q", got)
	}
}

func TestFetchCatalogAuthFailureNotRetried(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL, 5).FetchCatalog(context.Background(), domain.ItemKindRepository)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("auth failure was retried %d times", got)
	}
}

func TestFetchCatalogTruncatedOnExhaustedRetries(t *testing.T) {
	var pageTwoHits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			writeJSON(t, w, []map[string]string{
				{"full_name": "octocat/alpha"},
				{"full_name": "octocat/beta"},
			})
		default:
			pageTwoHits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	catalog, err := testClient(t, server.URL, 3).FetchCatalog(context.Background(), domain.ItemKindRepository)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}

	if !catalog.Truncated {
		t.Fatal("truncated catalog not flagged")
	}
	if catalog.Len() != 2 {
		t.Fatalf("Len = %d, want exactly the page 1 entries", catalog.Len())
	}
	if got := pageTwoHits.Load(); got != 3 {
		t.Fatalf("failing page attempted %d times, want max_retries=3", got)
	}
}

func TestFetchCatalogRecoversWithinRetries(t *testing.T) {
	var pageOneHits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			writeJSON(t, w, []map[string]string{})
			return
		}
		if pageOneHits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, []map[string]string{{"full_name": "octocat/alpha"}})
	}))
	defer server.Close()

	catalog, err := testClient(t, server.URL, 3).FetchCatalog(context.Background(), domain.ItemKindRepository)
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if catalog.Truncated || catalog.Len() != 1 {
		t.Fatalf("truncated=%v len=%d, want recovered full catalog", catalog.Truncated, catalog.Len())
	}
}

func TestDownload(t *testing.T) {
	payload := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 500)...)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	c := testClient(t, server.URL, 3)
	dest := filepath.Join(t.TempDir(), "out.zip")

	if err := c.Download(context.Background(), server.URL+"/archive.zip", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("downloaded %d bytes, want %d", len(data), len(payload))
	}

	err = c.Download(context.Background(), server.URL+"/missing.zip", filepath.Join(t.TempDir(), "x.zip"))
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetchCatalogUnknownKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer server.Close()

	// An unknown kind fails page decoding and surfaces as truncation
	// after retries rather than a hard error.
	catalog, err := testClient(t, server.URL, 1).FetchCatalog(context.Background(), domain.ItemKind("stars"))
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if !catalog.Truncated || catalog.Len() != 0 {
		t.Fatalf("truncated=%v len=%d", catalog.Truncated, catalog.Len())
	}
}
