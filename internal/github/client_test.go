package github

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// TestNewClient verifies the constructor creates a properly configured client.
func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "owner", "repo", "")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.Branch != "main" {
		t.Errorf("Branch = %q, want default %q", client.Branch, "main")
	}
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.RawURL != DefaultRawEndpoint {
		t.Errorf("RawURL = %q, want %q", client.RawURL, DefaultRawEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
}

// buildZipball assembles an in-memory zip with the synthetic top-level
// directory GitHub zipballs carry. Entries ending in "/" become directories.
func buildZipball(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		full := "owner-repo-abc1234/" + name
		if name[len(name)-1] == '/' {
			if _, err := w.Create(full); err != nil {
				t.Fatal(err)
			}
			continue
		}
		f, err := w.Create(full)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipballServer(t *testing.T, zipball []byte, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantAuth != "" && r.Header.Get("Authorization") != wantAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/repos/owner/repo/zipball/main" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(zipball)
	}))
}

func TestDownloadAndExtract(t *testing.T) {
	zipball := buildZipball(t, map[string]string{
		"workspace/Ingest.Notebook/.platform":           `{"config":{"logicalId":"x"}}`,
		"workspace/Ingest.Notebook/notebook-content.py": "# code",
		"data/ref.csv": "a,b\n1,2\n",
		"README.md":    "# repo",
		"empty-dir/":   "",
	})
	srv := zipballServer(t, zipball, "")
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	dest := t.TempDir()

	if err := client.DownloadAndExtract(context.Background(), dest, ExtractOptions{}); err != nil {
		t.Fatalf("DownloadAndExtract() error = %v", err)
	}

	for _, rel := range []string{
		"workspace/Ingest.Notebook/.platform",
		"workspace/Ingest.Notebook/notebook-content.py",
		"data/ref.csv",
		"README.md",
	} {
		if _, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected extracted file %s: %v", rel, err)
		}
	}
	if info, err := os.Stat(filepath.Join(dest, "empty-dir")); err != nil || !info.IsDir() {
		t.Errorf("expected extracted directory empty-dir, got err=%v", err)
	}
}

func TestDownloadAndExtractFolderFilter(t *testing.T) {
	zipball := buildZipball(t, map[string]string{
		"workspace/Item.Notebook/.platform": `{}`,
		"data/ref.csv":                      "a,b\n",
	})
	srv := zipballServer(t, zipball, "")
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	dest := t.TempDir()

	opts := ExtractOptions{FolderToExtract: "workspace", StripPrefix: "workspace"}
	if err := client.DownloadAndExtract(context.Background(), dest, opts); err != nil {
		t.Fatalf("DownloadAndExtract() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "Item.Notebook", ".platform")); err != nil {
		t.Errorf("expected stripped workspace content: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "data", "ref.csv")); !os.IsNotExist(err) {
		t.Error("folder filter leaked files outside the requested folder")
	}
}

func TestDownloadAndExtractReplacesExisting(t *testing.T) {
	zipball := buildZipball(t, map[string]string{"fresh.txt": "new"})
	srv := zipballServer(t, zipball, "")
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	dest := t.TempDir()
	stale := filepath.Join(dest, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := client.DownloadAndExtract(context.Background(), dest, ExtractOptions{}); err != nil {
		t.Fatalf("DownloadAndExtract() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file from previous extraction survived")
	}
	if _, err := os.Stat(filepath.Join(dest, "fresh.txt")); err != nil {
		t.Errorf("fresh file missing: %v", err)
	}
}

func TestExtractZipballRejectsEscape(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("root/../../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("bad")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if err := extractZipball(buf.Bytes(), t.TempDir(), ExtractOptions{}); err == nil {
		t.Error("extractZipball() accepted a path escaping the extraction root")
	}
}

func TestDownloadZipballNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("", "owner", "repo", "gone").WithBaseURL(srv.URL, srv.URL)
	_, err := client.DownloadZipball(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDownloadZipballAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	_, err := client.DownloadZipball(context.Background())
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("error = %v, want ErrAccessDenied", err)
	}
}

func TestDownloadZipballSendsToken(t *testing.T) {
	zipball := buildZipball(t, map[string]string{"a.txt": "a"})
	srv := zipballServer(t, zipball, "Bearer secret-token")
	defer srv.Close()

	client := NewClient("secret-token", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	if _, err := client.DownloadZipball(context.Background()); err != nil {
		t.Errorf("authenticated download failed: %v", err)
	}
}

func TestGetRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	body, err := client.get(context.Background(), srv.URL+"/anything")
	if err != nil {
		t.Fatalf("get() error = %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q, want %q after retry", body, "payload")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one rate-limited, one retry)", calls.Load())
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/owner/repo/main/config/deployment.yaml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("github:\n  repo_owner: owner\n"))
	}))
	defer srv.Close()

	client := NewClient("", "owner", "repo", "main").WithBaseURL(srv.URL, srv.URL)
	dir := t.TempDir()

	saved, err := client.DownloadFile(context.Background(), "config/deployment.yaml", dir)
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if filepath.Base(saved) != "deployment.yaml" {
		t.Errorf("saved as %q, want basename deployment.yaml", saved)
	}
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "github:\n  repo_owner: owner\n" {
		t.Errorf("content mismatch: %q", data)
	}
}
