// Package brightpath holds the shared request/response types and identity
// rules for the offline learning content manager.
package brightpath

import (
	"fmt"
	"strings"
)

// BundleFileName deterministically derives the on-disk bundle file name for a
// game. Local storage is addressed by game ID, so repeated downloads of the
// same game always land on the same file and never duplicate.
//
// The returned name is relative to the configured games directory.
func BundleFileName(gameID string) string {
	return gameID + ".html"
}

// ValidateGameID rejects identifiers that cannot safely address a file.
// Catalog IDs are caller-controlled input to filesystem paths, so the same
// traversal rules apply as for any externally supplied key.
func ValidateGameID(gameID string) error {
	if gameID == "" {
		return fmt.Errorf("game id is empty")
	}
	if len(gameID) > 128 {
		return fmt.Errorf("game id too long: %d chars (max 128)", len(gameID))
	}
	if strings.Contains(gameID, "..") {
		return fmt.Errorf("game id contains path traversal: %s", gameID)
	}
	if strings.ContainsAny(gameID, "/\\") {
		return fmt.Errorf("game id contains path separator: %s", gameID)
	}
	return nil
}
