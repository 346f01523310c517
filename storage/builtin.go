package storage

import (
	_ "embed"
	"fmt"
	"os"

	brightpath "github.com/brightpath-app/brightpath"
)

// builtinBundle is a self-contained offline game shipped with the binary.
// It lets the download flow work with no network at all (demo/offline mode).
//
//go:embed sample_game.html
var builtinBundle string

// BuiltinBundle returns the embedded offline game page.
func BuiltinBundle() string {
	return builtinBundle
}

// InstallBuiltin writes the embedded offline game as the bundle for gameID,
// bypassing the network entirely.
func (s *Store) InstallBuiltin(gameID string) (*DownloadResult, error) {
	if err := brightpath.ValidateGameID(gameID); err != nil {
		return nil, fmt.Errorf("invalid game id: %w", err)
	}

	dest := s.BundlePath(gameID)

	tmp, err := os.CreateTemp(s.dir, ".bundle-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(builtinBundle); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write builtin bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close builtin bundle: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("failed to move builtin bundle into place: %w", err)
	}

	s.logger.WithField("game_id", gameID).Info("installed builtin offline bundle")
	return &DownloadResult{LocalPath: dest, SizeBytes: int64(len(builtinBundle))}, nil
}
