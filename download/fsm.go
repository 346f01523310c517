// Package download implements the fetch FSM for retrieving game bundles over
// HTTP into local storage.
package download

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	fsm "github.com/superfly/fsm"

	brightpath "github.com/brightpath-app/brightpath"
	"github.com/brightpath-app/brightpath/storage"
)

const (
	// MaxRetriesCheckLocal is the maximum number of retries for local bundle checks
	MaxRetriesCheckLocal = 3
	// MaxRetriesFetch is the maximum number of retries for HTTP fetch operations
	MaxRetriesFetch = 5
	// MaxRetriesValidate is the maximum number of retries for bundle validation
	MaxRetriesValidate = 2
)

// Dependencies holds the external dependencies for the fetch FSM.
type Dependencies struct {
	Files *storage.Store
}

// GameFetchRequest is the input to the fetch FSM.
//
// GameID is the idempotency key: the local bundle location is derived from
// it, so repeated runs for the same game converge on the same file.
type GameFetchRequest = brightpath.GameFetchRequest

// GameFetchResponse is the output of the fetch FSM.
type GameFetchResponse = brightpath.GameFetchResponse

// checkLocal verifies whether a valid bundle already exists at the expected
// location. If so, it returns fsm.Handoff to skip the remaining transitions:
// a download tap on an already-present bundle must not touch the network.
func checkLocal(deps *Dependencies) fsm.Transition[GameFetchRequest, GameFetchResponse] {
	return func(ctx context.Context, req *fsm.Request[GameFetchRequest, GameFetchResponse]) (*fsm.Response[GameFetchResponse], error) {
		logger := req.Log().WithField("transition", "check-local")
		retryCount := fsm.RetryFromContext(ctx)

		if retryCount > MaxRetriesCheckLocal {
			return nil, fsm.Abort(fmt.Errorf("exceeded maximum retries (%d) for check-local transition", MaxRetriesCheckLocal))
		}

		if retryCount > 0 {
			logger.WithField("retry_count", retryCount).Info("retrying check-local transition")
		}

		gameID := req.Msg.GameID
		if err := brightpath.ValidateGameID(gameID); err != nil {
			return nil, fsm.Abort(fmt.Errorf("invalid game id: %w", err))
		}

		localPath := deps.Files.BundlePath(gameID)
		logger.WithFields(map[string]any{
			"game_id":    gameID,
			"local_path": localPath,
		}).Info("checking for existing bundle")

		info, err := os.Stat(localPath)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Info("no local bundle; proceeding to fetch")
				return nil, nil
			}
			logger.WithError(err).Error("failed to stat bundle")
			return nil, fmt.Errorf("failed to stat bundle: %w", err)
		}

		if info.Size() == 0 {
			logger.Warn("local bundle is empty, will re-fetch")
			return nil, nil
		}

		logger.Info("bundle already present and non-empty, skipping fetch")

		resp := &GameFetchResponse{
			GameID:       gameID,
			LocalPath:    localPath,
			SizeBytes:    info.Size(),
			Fetched:      false,
			AlreadyExist: true,
		}

		// Use the current run's version for Handoff to properly signal FSM completion
		// (fsm.Handoff with empty ULID returns nil, which doesn't stop execution)
		return fsm.NewResponse(resp), fsm.Handoff(req.Run().StartVersion)
	}
}

// fetch downloads the bundle from its source URL into local storage.
func fetch(deps *Dependencies) fsm.Transition[GameFetchRequest, GameFetchResponse] {
	return func(ctx context.Context, req *fsm.Request[GameFetchRequest, GameFetchResponse]) (*fsm.Response[GameFetchResponse], error) {
		logger := req.Log().WithField("transition", "fetch")
		retryCount := fsm.RetryFromContext(ctx)

		if retryCount > MaxRetriesFetch {
			return nil, fsm.Abort(fmt.Errorf("exceeded maximum retries (%d) for fetch transition", MaxRetriesFetch))
		}

		if retryCount > 0 {
			logger.WithField("retry_count", retryCount).Info("retrying fetch transition")
		}

		gameID := req.Msg.GameID
		sourceURL := req.Msg.SourceURL

		logger.WithFields(map[string]any{
			"game_id": gameID,
			"url":     sourceURL,
		}).Info("fetching game bundle")

		ctxWithTimeout, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		result, err := deps.Files.Download(ctxWithTimeout, sourceURL, gameID)
		if err != nil {
			logger.WithError(err).Error("bundle fetch failed")
			if isRejectedError(err) {
				return nil, fsm.Abort(fmt.Errorf("bundle source rejected request: %w", err))
			}
			if isSizeLimitError(err) {
				return nil, fsm.Abort(fmt.Errorf("bundle too large: %w", err))
			}
			return nil, fmt.Errorf("bundle fetch failed: %w", err)
		}

		logger.WithFields(map[string]any{
			"local_path": result.LocalPath,
			"size":       result.SizeBytes,
		}).Info("fetch completed")

		resp := &GameFetchResponse{
			GameID:    gameID,
			LocalPath: result.LocalPath,
			SizeBytes: result.SizeBytes,
			Fetched:   true,
			FetchedAt: time.Now(),
		}

		return fsm.NewResponse(resp), nil
	}
}

// validate checks the fetched bundle is a plausible HTML document. A corrupt
// or empty file is removed so the next attempt starts clean.
func validate(deps *Dependencies) fsm.Transition[GameFetchRequest, GameFetchResponse] {
	return func(ctx context.Context, req *fsm.Request[GameFetchRequest, GameFetchResponse]) (*fsm.Response[GameFetchResponse], error) {
		logger := req.Log().WithField("transition", "validate")
		retryCount := fsm.RetryFromContext(ctx)

		if retryCount > MaxRetriesValidate {
			return nil, fsm.Abort(fmt.Errorf("exceeded maximum retries (%d) for validate transition", MaxRetriesValidate))
		}

		if retryCount > 0 {
			logger.WithField("retry_count", retryCount).Info("retrying validate transition")
		}

		localPath := req.W.Msg.LocalPath
		logger.WithField("local_path", localPath).Info("validating fetched bundle")

		info, err := os.Stat(localPath)
		if err != nil {
			logger.WithError(err).Error("bundle not found")
			return nil, fsm.Abort(fmt.Errorf("fetched bundle not found: %w", err))
		}

		if info.Size() == 0 {
			logger.Error("bundle is empty")
			os.Remove(localPath)
			return nil, fsm.Abort(fmt.Errorf("fetched bundle is empty"))
		}

		if err := validateHTMLDocument(localPath); err != nil {
			logger.WithError(err).Error("bundle is not an HTML document")
			os.Remove(localPath)
			return nil, fsm.Abort(fmt.Errorf("invalid bundle: %w", err))
		}

		logger.Info("bundle validated")

		// Validation successful, pass through response
		return nil, nil
	}
}

// validateHTMLDocument checks the file starts like an HTML document.
func validateHTMLDocument(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if n == 0 && err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	prefix := strings.ToLower(strings.TrimSpace(string(head[:n])))
	if !strings.HasPrefix(prefix, "<!doctype") && !strings.HasPrefix(prefix, "<html") && !strings.HasPrefix(prefix, "<") {
		return fmt.Errorf("bundle does not look like an HTML document")
	}
	return nil
}

// Helper functions

func isRejectedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "fetch rejected")
}

func isSizeLimitError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "too large") || strings.Contains(err.Error(), "size limit")
}

// Register registers the fetch FSM with the manager.
// Returns start and resume functions for the FSM.
func Register(ctx context.Context, manager *fsm.Manager, deps *Dependencies) (fsm.Start[GameFetchRequest, GameFetchResponse], fsm.Resume, error) {
	return fsm.Register[GameFetchRequest, GameFetchResponse](manager, "fetch-game").
		Start("check-local", checkLocal(deps)).
		To("fetch", fetch(deps)).
		To("validate", validate(deps)).
		End("complete").
		Build(ctx)
}
