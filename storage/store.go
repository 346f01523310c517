// Package storage manages the device-local game bundle files.
//
// Bundles are HTML documents fetched over HTTP and stored in a flat
// directory addressed by game ID, so repeated downloads of the same game
// converge on one file.
//
// # Features
//
//   - Streaming downloads (no buffering entire file in memory)
//   - Size limit enforcement (bundles are small HTML documents)
//   - Atomic file writes (temp file + rename)
//   - Idempotent deletes (a missing file is not an error)
//   - Exponential backoff on transient network failures
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	brightpath "github.com/brightpath-app/brightpath"
)

// MaxBundleBytes is the default size limit for a single game bundle.
const MaxBundleBytes = 8 * 1024 * 1024 // 8MB

// ProgressFunc is called periodically during download with progress updates.
// total is -1 when the server did not declare a content length.
type ProgressFunc func(downloaded, total int64)

// Store reads and writes game bundles under a single directory.
type Store struct {
	dir          string
	client       *http.Client
	maxBytes     int64
	logger       *logrus.Logger
	progressFunc ProgressFunc
}

// Config holds bundle store configuration.
type Config struct {
	// Dir is the directory holding downloaded bundles.
	Dir string

	// Timeout bounds a single fetch attempt. Defaults to 30s.
	Timeout time.Duration

	// MaxBundleBytes caps the size of a fetched bundle. Defaults to
	// MaxBundleBytes.
	MaxBundleBytes int64
}

// DefaultConfig returns a default store configuration.
func DefaultConfig() Config {
	return Config{
		Dir:            "games",
		Timeout:        30 * time.Second,
		MaxBundleBytes: MaxBundleBytes,
	}
}

// New creates a bundle store, creating the directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("bundle directory is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBundleBytes == 0 {
		cfg.MaxBundleBytes = MaxBundleBytes
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	return &Store{
		dir:      cfg.Dir,
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBundleBytes,
		logger:   logrus.New(),
	}, nil
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *logrus.Logger) {
	s.logger = logger
}

// SetProgressFunc sets a callback for progress updates during downloads.
func (s *Store) SetProgressFunc(fn ProgressFunc) {
	s.progressFunc = fn
}

// SuppressLogs disables all log output from the store. Useful in TUI mode
// where log lines would interfere with the display.
func (s *Store) SuppressLogs() {
	s.logger.SetOutput(io.Discard)
}

// Dir returns the bundle directory.
func (s *Store) Dir() string {
	return s.dir
}

// BundlePath returns the deterministic on-disk location for a game's bundle.
func (s *Store) BundlePath(gameID string) string {
	return filepath.Join(s.dir, brightpath.BundleFileName(gameID))
}

// DownloadResult describes a completed bundle download.
type DownloadResult struct {
	LocalPath string
	SizeBytes int64
}

// Download fetches the bundle at url into the store, addressed by gameID.
//
// Transient network failures are retried with exponential backoff; HTTP 4xx
// responses are permanent and fail immediately. The write is atomic: the
// destination file appears only after a complete, size-checked body.
func (s *Store) Download(ctx context.Context, url, gameID string) (*DownloadResult, error) {
	if err := brightpath.ValidateGameID(gameID); err != nil {
		return nil, fmt.Errorf("invalid game id: %w", err)
	}
	if url == "" {
		return nil, fmt.Errorf("source url is empty")
	}

	dest := s.BundlePath(gameID)
	logger := s.logger.WithFields(logrus.Fields{
		"game_id": gameID,
		"url":     url,
		"dest":    dest,
	})
	logger.Info("downloading game bundle")

	var result *DownloadResult
	operation := func() error {
		r, err := s.fetchOnce(ctx, url, dest)
		if err != nil {
			logger.WithError(err).Warn("bundle fetch attempt failed")
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("bundle download failed: %w", err)
	}

	logger.WithField("size_bytes", result.SizeBytes).Info("bundle downloaded")
	return result, nil
}

// fetchOnce performs a single HTTP fetch attempt with an atomic write.
func (s *Store) fetchOnce(ctx context.Context, url, dest string) (*DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Proceed.
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, backoff.Permanent(fmt.Errorf("fetch rejected: %s", resp.Status))
	default:
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if resp.ContentLength > s.maxBytes {
		return nil, backoff.Permanent(fmt.Errorf("bundle too large: %d bytes (max %d)", resp.ContentLength, s.maxBytes))
	}

	tmp, err := os.CreateTemp(s.dir, ".bundle-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	written, err := s.copyWithLimit(tmp, resp.Body, resp.ContentLength)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write bundle: %w", err)
	}

	if written == 0 {
		return nil, backoff.Permanent(fmt.Errorf("bundle is empty"))
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("failed to move bundle into place: %w", err)
	}

	return &DownloadResult{LocalPath: dest, SizeBytes: written}, nil
}

// copyWithLimit streams body to w, enforcing the size cap and reporting
// progress.
func (s *Store) copyWithLimit(w io.Writer, body io.Reader, total int64) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.maxBytes {
				return written, backoff.Permanent(fmt.Errorf("bundle exceeds size limit of %d bytes", s.maxBytes))
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, werr
			}
			if s.progressFunc != nil {
				s.progressFunc(written, total)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// Exists reports whether a bundle file is present at localRef.
func (s *Store) Exists(localRef string) bool {
	info, err := os.Stat(localRef)
	return err == nil && !info.IsDir()
}

// Delete removes the bundle file at localRef. Absence is not an error.
func (s *Store) Delete(localRef string) error {
	if localRef == "" {
		return nil
	}
	if err := os.Remove(localRef); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete bundle: %w", err)
	}
	return nil
}

// ReadAll returns the contents of the bundle at localRef.
func (s *Store) ReadAll(localRef string) (string, error) {
	data, err := os.ReadFile(localRef)
	if err != nil {
		return "", fmt.Errorf("failed to read bundle: %w", err)
	}
	return string(data), nil
}

// List returns the file names currently present in the bundle directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
