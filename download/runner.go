package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	fsm "github.com/superfly/fsm"

	brightpath "github.com/brightpath-app/brightpath"
	"github.com/brightpath-app/brightpath/storage"
)

// fetchQueue is the FSM queue name for bundle fetches.
const fetchQueue = "fetch"

// Runner owns an FSM manager with the fetch FSM registered and exposes a
// blocking one-shot Fetch for callers that just want a bundle on disk.
type Runner struct {
	manager *fsm.Manager
	start   fsm.Start[GameFetchRequest, GameFetchResponse]
	files   *storage.Store
	logger  *logrus.Logger
}

// RunnerConfig holds fetch runner configuration.
type RunnerConfig struct {
	// DBPath is the directory for durable FSM run state.
	DBPath string

	// Files is the bundle store downloads land in.
	Files *storage.Store

	// QueueSize bounds concurrent fetch runs. Defaults to 2.
	QueueSize int

	// Logger for manager and transition logging.
	Logger *logrus.Logger
}

// NewRunner creates the FSM manager, registers the fetch FSM, and resumes
// any runs left in flight by a previous process.
func NewRunner(ctx context.Context, cfg RunnerConfig) (*Runner, error) {
	if cfg.Files == nil {
		return nil, fmt.Errorf("bundle store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 2
	}
	if cfg.DBPath != "" {
		if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create FSM state directory: %w", err)
		}
	}

	manager, err := fsm.New(fsm.Config{
		Logger: cfg.Logger,
		DBPath: cfg.DBPath,
		Queues: map[string]int{
			fetchQueue: cfg.QueueSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create FSM manager: %w", err)
	}

	start, resume, err := Register(ctx, manager, &Dependencies{Files: cfg.Files})
	if err != nil {
		manager.Shutdown(5 * time.Second)
		return nil, fmt.Errorf("failed to register fetch FSM: %w", err)
	}

	// Resume in-flight runs (crash recovery)
	if err := resume(ctx); err != nil {
		cfg.Logger.WithError(err).Warn("failed to resume fetch FSM runs")
	}

	return &Runner{
		manager: manager,
		start:   start,
		files:   cfg.Files,
		logger:  cfg.Logger,
	}, nil
}

// Close shuts the FSM manager down.
func (r *Runner) Close() {
	r.manager.Shutdown(5 * time.Second)
}

// Fetch runs the fetch FSM for one game and blocks until the bundle is on
// disk or the run fails. A Handoff (bundle already present) is success.
func (r *Runner) Fetch(ctx context.Context, gameID, sourceURL string) (*brightpath.GameFetchResponse, error) {
	fetchReq := &GameFetchRequest{
		GameID:    gameID,
		SourceURL: sourceURL,
	}

	var fetchResp GameFetchResponse
	request := fsm.NewRequest(fetchReq, &fetchResp)

	version, err := r.start(ctx, gameID, request, fsm.WithQueue(fetchQueue))
	if err != nil {
		return nil, fmt.Errorf("fetch FSM failed to start: %w", err)
	}

	if err := r.manager.Wait(ctx, version); err != nil {
		// HandoffError is not a failure - it means the FSM detected work was already done
		// Check both by type and by error message (backoff wrapping may hide the type)
		var handoffErr *fsm.HandoffError
		isHandoff := errors.As(err, &handoffErr) || strings.Contains(err.Error(), "FSM handoff to")
		if !isHandoff {
			return nil, fmt.Errorf("failed waiting for fetch FSM: %w", err)
		}
		r.logger.WithField("game_id", gameID).Info("fetch FSM handed off (bundle already present)")
	}

	// Read the outcome from the filesystem, the source of truth, rather than
	// relying on the run populating the response variable.
	localPath := r.files.BundlePath(gameID)
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("bundle missing after fetch FSM completed: %w", err)
	}

	return &brightpath.GameFetchResponse{
		GameID:    gameID,
		LocalPath: localPath,
		SizeBytes: info.Size(),
		Fetched:   true,
		FetchedAt: time.Now(),
	}, nil
}
