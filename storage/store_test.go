package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const sampleHTML = "<!DOCTYPE html><html><body><h1>game</h1></body></html>"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestBundlePathIsDeterministic(t *testing.T) {
	s := newTestStore(t)

	p1 := s.BundlePath("42")
	p2 := s.BundlePath("42")
	if p1 != p2 {
		t.Fatalf("paths differ: %q vs %q", p1, p2)
	}
	if filepath.Base(p1) != "42.html" {
		t.Fatalf("bundle file name = %q, want 42.html", filepath.Base(p1))
	}
}

func TestDownloadSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleHTML)
	}))
	defer server.Close()

	s := newTestStore(t)
	result, err := s.Download(context.Background(), server.URL, "1")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if result.LocalPath != s.BundlePath("1") {
		t.Fatalf("local path = %q, want %q", result.LocalPath, s.BundlePath("1"))
	}
	data, err := os.ReadFile(result.LocalPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != sampleHTML {
		t.Fatalf("content mismatch: %q", data)
	}
	if result.SizeBytes != int64(len(sampleHTML)) {
		t.Fatalf("size = %d, want %d", result.SizeBytes, len(sampleHTML))
	}
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, sampleHTML)
	}))
	defer server.Close()

	s := newTestStore(t)
	if _, err := s.Download(context.Background(), server.URL, "1"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestDownloadRejectionIsPermanent(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestStore(t)
	_, err := s.Download(context.Background(), server.URL, "1")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "fetch rejected") {
		t.Fatalf("err = %v, want a rejection error", err)
	}
	// 4xx must not be retried.
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if s.Exists(s.BundlePath("1")) {
		t.Fatal("bundle file created for failed download")
	}
}

func TestDownloadEnforcesSizeLimit(t *testing.T) {
	big := strings.Repeat("x", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, big)
	}))
	defer server.Close()

	s, err := New(Config{Dir: t.TempDir(), MaxBundleBytes: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Download(context.Background(), server.URL, "1"); err == nil {
		t.Fatal("expected size limit error")
	}
	if s.Exists(s.BundlePath("1")) {
		t.Fatal("oversized bundle left on disk")
	}
}

func TestDownloadRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestStore(t)
	if _, err := s.Download(context.Background(), server.URL, "1"); err == nil {
		t.Fatal("expected error for empty bundle")
	}
	if s.Exists(s.BundlePath("1")) {
		t.Fatal("empty bundle left on disk")
	}
}

func TestDownloadValidatesGameID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Download(context.Background(), "http://example.test/x", "../escape"); err == nil {
		t.Fatal("expected error for traversal game id")
	}
}

func TestDownloadReportsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleHTML)
	}))
	defer server.Close()

	s := newTestStore(t)
	var last int64
	s.SetProgressFunc(func(downloaded, total int64) {
		last = downloaded
	})

	if _, err := s.Download(context.Background(), server.URL, "1"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if last != int64(len(sampleHTML)) {
		t.Fatalf("final progress = %d, want %d", last, len(sampleHTML))
	}
}

func TestExists(t *testing.T) {
	s := newTestStore(t)

	if s.Exists(s.BundlePath("1")) {
		t.Fatal("Exists true for missing file")
	}
	if err := os.WriteFile(s.BundlePath("1"), []byte(sampleHTML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !s.Exists(s.BundlePath("1")) {
		t.Fatal("Exists false for present file")
	}
	if s.Exists(s.Dir()) {
		t.Fatal("Exists true for a directory")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	path := s.BundlePath("1")

	if err := os.WriteFile(path, []byte(sampleHTML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if err := s.Delete(""); err != nil {
		t.Fatalf("Delete with empty ref: %v", err)
	}
}

func TestReadAll(t *testing.T) {
	s := newTestStore(t)
	path := s.BundlePath("1")
	if err := os.WriteFile(path, []byte(sampleHTML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	content, err := s.ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if content != sampleHTML {
		t.Fatalf("content = %q", content)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("names = %v, want empty", names)
	}

	for _, id := range []string{"1", "2"} {
		if err := os.WriteFile(s.BundlePath(id), []byte(sampleHTML), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	names, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2 entries", names)
	}
}

func TestInstallBuiltin(t *testing.T) {
	s := newTestStore(t)

	result, err := s.InstallBuiltin("1")
	if err != nil {
		t.Fatalf("InstallBuiltin: %v", err)
	}
	if result.LocalPath != s.BundlePath("1") {
		t.Fatalf("local path = %q, want %q", result.LocalPath, s.BundlePath("1"))
	}
	content, err := s.ReadAll(result.LocalPath)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(strings.ToLower(content), "<html") {
		t.Fatal("built-in bundle is not an HTML document")
	}
	if result.SizeBytes != int64(len(content)) {
		t.Fatalf("size = %d, want %d", result.SizeBytes, len(content))
	}
}
