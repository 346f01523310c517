// Package main implements the BrightPath children's learning app.
//
// The app plays educational video topics with per-minute activity
// checkpoints and manages a catalog of downloadable offline HTML games.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-app/brightpath/catalog"
	"github.com/brightpath-app/brightpath/database"
	"github.com/brightpath-app/brightpath/download"
	"github.com/brightpath-app/brightpath/events"
	"github.com/brightpath-app/brightpath/storage"
	"github.com/brightpath-app/brightpath/topics"
	"github.com/brightpath-app/brightpath/tui"
)

// Config holds application configuration.
type Config struct {
	// Database Configuration
	DBPath string

	// FSM Configuration
	FSMDBPath string

	// Storage Configuration
	GamesDir string

	// Queue Configuration
	FetchQueueSize int

	// Timeout Configuration
	FetchTimeout time.Duration

	// Logging
	LogLevel string

	// Command-specific flags
	GameID  string
	Offline bool // install the embedded bundle instead of fetching
	Yes     bool // destructive-action confirmation
	DryRun  bool
	Force   bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	dataDir := defaultDataDir()
	return Config{
		DBPath:         filepath.Join(dataDir, "brightpath.db"),
		FSMDBPath:      filepath.Join(dataDir, "fsm"),
		GamesDir:       filepath.Join(dataDir, "games"),
		FetchQueueSize: 2,
		FetchTimeout:   30 * time.Second,
		LogLevel:       "info",
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".brightpath")
	}
	return ".brightpath"
}

var (
	// Global logger
	log = logrus.New()

	// Command flags
	playCmd       = flag.NewFlagSet("play", flag.ExitOnError)
	listTopicsCmd = flag.NewFlagSet("list-topics", flag.ExitOnError)
	listGamesCmd  = flag.NewFlagSet("list-games", flag.ExitOnError)
	downloadCmd   = flag.NewFlagSet("download-game", flag.ExitOnError)
	deleteCmd     = flag.NewFlagSet("delete-game", flag.ExitOnError)
	showCmd       = flag.NewFlagSet("show-game", flag.ExitOnError)
	reconcileCmd  = flag.NewFlagSet("reconcile", flag.ExitOnError)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config := DefaultConfig()

	switch os.Args[1] {
	case "play":
		parseCommonFlags(&config, playCmd, os.Args[2:])
		if err := runPlay(config); err != nil {
			log.WithError(err).Fatal("app failed")
		}
	case "list-topics":
		parseCommonFlags(&config, listTopicsCmd, os.Args[2:])
		if err := runListTopics(config); err != nil {
			log.WithError(err).Fatal("failed to list topics")
		}
	case "list-games":
		parseCommonFlags(&config, listGamesCmd, os.Args[2:])
		if err := runListGames(config); err != nil {
			log.WithError(err).Fatal("failed to list games")
		}
	case "download-game":
		parseDownloadFlags(&config, downloadCmd, os.Args[2:])
		if err := runDownloadGame(config); err != nil {
			log.WithError(err).Fatal("failed to download game")
		}
	case "delete-game":
		parseDeleteFlags(&config, deleteCmd, os.Args[2:])
		if err := runDeleteGame(config); err != nil {
			log.WithError(err).Fatal("failed to delete game")
		}
	case "show-game":
		parseShowFlags(&config, showCmd, os.Args[2:])
		if err := runShowGame(config); err != nil {
			log.WithError(err).Fatal("failed to show game")
		}
	case "reconcile":
		parseReconcileFlags(&config, reconcileCmd, os.Args[2:])
		if err := runReconcile(config); err != nil {
			log.WithError(err).Fatal("reconcile failed")
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("BrightPath Learning App")
	fmt.Println()
	fmt.Println("Usage: brightpath <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  play              Launch the interactive app")
	fmt.Println("  list-topics       List video topics")
	fmt.Println("  list-games        List games and their download state")
	fmt.Println("  download-game     Download a game bundle for offline play")
	fmt.Println("  delete-game       Delete a downloaded game bundle")
	fmt.Println("  show-game         Show one game's details")
	fmt.Println("  reconcile         Reconcile catalog state against stored bundles")
	fmt.Println()
	fmt.Println("Run 'brightpath <command> --help' for more information on a command.")
}

// parseCommonFlags parses the flags shared by every command.
func parseCommonFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addCommonFlags(cfg, fs)
	fs.Parse(args)
}

func addCommonFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path")
	fs.StringVar(&cfg.FSMDBPath, "fsm-db", cfg.FSMDBPath, "FSM state directory")
	fs.StringVar(&cfg.GamesDir, "games-dir", cfg.GamesDir, "Game bundle directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// parseDownloadFlags parses flags for the download-game command.
func parseDownloadFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addCommonFlags(cfg, fs)
	fs.StringVar(&cfg.GameID, "id", "", "Game identifier (required)")
	fs.BoolVar(&cfg.Offline, "offline", false, "Install the built-in sample bundle instead of fetching")
	fs.IntVar(&cfg.FetchQueueSize, "fetch-queue", cfg.FetchQueueSize, "Fetch queue size")
	fs.Parse(args)

	if cfg.GameID == "" {
		fmt.Println("Error: --id is required")
		fs.Usage()
		os.Exit(1)
	}
}

// parseDeleteFlags parses flags for the delete-game command.
func parseDeleteFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addCommonFlags(cfg, fs)
	fs.StringVar(&cfg.GameID, "id", "", "Game identifier (required)")
	fs.BoolVar(&cfg.Yes, "yes", false, "Confirm deletion (required)")
	fs.Parse(args)

	if cfg.GameID == "" {
		fmt.Println("Error: --id is required")
		fs.Usage()
		os.Exit(1)
	}
}

// parseShowFlags parses flags for the show-game command.
func parseShowFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addCommonFlags(cfg, fs)
	fs.StringVar(&cfg.GameID, "id", "", "Game identifier (required)")
	fs.Parse(args)

	if cfg.GameID == "" {
		fmt.Println("Error: --id is required")
		fs.Usage()
		os.Exit(1)
	}
}

// parseReconcileFlags parses flags for the reconcile command.
func parseReconcileFlags(cfg *Config, fs *flag.FlagSet, args []string) {
	addCommonFlags(cfg, fs)
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Show what would change without changing it")
	fs.BoolVar(&cfg.Force, "force", false, "Actually apply changes (required for non-dry-run)")
	fs.Parse(args)
}

// setupLogger configures the global logger.
func setupLogger(level string) error {
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)

	return nil
}

// Dependencies holds all external dependencies.
type Dependencies struct {
	DB      *database.DB
	Files   *storage.Store
	Events  *events.Log
	Runner  *download.Runner
	Catalog *catalog.Controller
}

// Close closes all dependencies.
func (d *Dependencies) Close() {
	if d.Runner != nil {
		d.Runner.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// initializeDependencies wires up the record store, bundle store, event log,
// fetch FSM runner, and catalog controller.
func initializeDependencies(ctx context.Context, cfg Config) (*Dependencies, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.New(database.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	files, err := storage.New(storage.Config{
		Dir:     cfg.GamesDir,
		Timeout: cfg.FetchTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bundle store: %w", err)
	}
	files.SetLogger(log)

	eventLog := events.NewLog(events.Config{
		Logger:     log,
		Registerer: prometheus.DefaultRegisterer,
	})

	runner, err := download.NewRunner(ctx, download.RunnerConfig{
		DBPath:    cfg.FSMDBPath,
		Files:     files,
		QueueSize: cfg.FetchQueueSize,
		Logger:    log,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create fetch runner: %w", err)
	}

	ctrl, err := catalog.New(catalog.Config{
		KV:         db,
		Files:      files,
		Fetcher:    runner,
		Recorder:   eventLog,
		Logger:     log,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		runner.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create catalog controller: %w", err)
	}

	if err := ctrl.Initialize(ctx); err != nil {
		runner.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	return &Dependencies{
		DB:      db,
		Files:   files,
		Events:  eventLog,
		Runner:  runner,
		Catalog: ctrl,
	}, nil
}

// runPlay launches the interactive TUI app.
func runPlay(cfg Config) error {
	// Suppress log output to avoid mixing with the TUI
	log.SetOutput(io.Discard)
	stdlog.SetOutput(io.Discard)

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	app, err := tui.NewApp(tui.AppConfig{
		Catalog: deps.Catalog,
		Files:   deps.Files,
		Events:  deps.Events,
		Topics:  topics.Defaults(),
		Logger:  log,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run app: %w", err)
	}
	return nil
}

// runListTopics lists the video topics.
func runListTopics(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	list := topics.Defaults()
	fmt.Printf("Found %d topics:\n\n", len(list))
	for _, t := range list {
		fmt.Printf("Topic ID:     %s\n", t.ID)
		fmt.Printf("  Title:      %s\n", t.Title)
		fmt.Printf("  Duration:   %d min\n", t.DurationMinutes)
		fmt.Println()
	}
	return nil
}

// runListGames lists the game catalog with download state.
func runListGames(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	games := deps.Catalog.Games()
	fmt.Printf("Found %d games:\n\n", len(games))
	for _, g := range games {
		fmt.Printf("Game ID:      %s\n", g.ID)
		fmt.Printf("  Title:      %s\n", g.Title)
		fmt.Printf("  State:      %s\n", g.State())
		if g.LocalRef != "" {
			fmt.Printf("  Local:      %s\n", g.LocalRef)
		}
		fmt.Println()
	}
	return nil
}

// runDownloadGame downloads one game bundle, or installs the embedded sample
// bundle in offline mode.
func runDownloadGame(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.Offline {
		// Install the built-in bundle; the controller then sees an existing
		// file and settles the descriptor without any network access.
		result, err := deps.Files.InstallBuiltin(cfg.GameID)
		if err != nil {
			return fmt.Errorf("failed to install built-in bundle: %w", err)
		}
		log.WithFields(logrus.Fields{
			"game_id": cfg.GameID,
			"path":    result.LocalPath,
			"size":    result.SizeBytes,
		}).Info("built-in bundle installed")
	}

	if err := deps.Catalog.Download(ctx, cfg.GameID); err != nil {
		return err
	}

	g, _ := deps.Catalog.Get(cfg.GameID)
	fmt.Printf("Game %q downloaded to %s\n", g.Title, g.LocalRef)
	return nil
}

// runDeleteGame deletes one downloaded game bundle.
func runDeleteGame(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	if !cfg.Yes {
		return fmt.Errorf("deleting a game is destructive; pass --yes to confirm")
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Catalog.Delete(ctx, cfg.GameID, cfg.Yes); err != nil {
		return err
	}

	fmt.Printf("Game %s deleted.\n", cfg.GameID)
	return nil
}

// runShowGame prints one game's descriptor.
func runShowGame(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	g, ok := deps.Catalog.Get(cfg.GameID)
	if !ok {
		return fmt.Errorf("unknown game: %s", cfg.GameID)
	}

	fmt.Printf("Game ID:      %s\n", g.ID)
	fmt.Printf("  Title:      %s\n", g.Title)
	fmt.Printf("  Source:     %s\n", g.SourceURL)
	fmt.Printf("  State:      %s\n", g.State())
	if g.LocalRef != "" {
		if deps.Files.Exists(g.LocalRef) {
			fmt.Printf("  Local:      %s\n", g.LocalRef)
		} else {
			fmt.Printf("  Local:      %s (missing on disk, run reconcile)\n", g.LocalRef)
		}
	}
	return nil
}
