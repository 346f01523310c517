package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	brightpath "github.com/brightpath-app/brightpath"
	"github.com/brightpath-app/brightpath/events"
	"github.com/brightpath-app/brightpath/safeguards"
)

// CatalogKey is the fixed record-store key the whole catalog is serialized
// under. The value is one JSON array of descriptors, overwritten wholesale
// on every save.
const CatalogKey = "downloaded_games"

var (
	// ErrUnknownGame is returned for an id not present in the catalog.
	ErrUnknownGame = errors.New("unknown game")

	// ErrNotDownloaded is returned by Play when no local copy exists.
	ErrNotDownloaded = errors.New("game is not downloaded")

	// ErrDownloadInFlight is returned when a download for the same game is
	// already running.
	ErrDownloadInFlight = errors.New("download already in flight")

	// ErrConfirmationRequired is returned by Delete without the
	// destructive-action confirmation.
	ErrConfirmationRequired = errors.New("delete requires confirmation")

	// ErrCatalogDecode marks a persisted catalog that could not be decoded.
	// Callers treat it as absence of saved state.
	ErrCatalogDecode = errors.New("persisted catalog is malformed")
)

// KV is the persistence substrate: an opaque get/set-by-key string store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// BundleStore is the device-local file area for game bundles.
type BundleStore interface {
	BundlePath(gameID string) string
	Exists(localRef string) bool
	Delete(localRef string) error
}

// Fetcher retrieves a game bundle into local storage. The production
// implementation is the fetch FSM runner.
type Fetcher interface {
	Fetch(ctx context.Context, gameID, sourceURL string) (*brightpath.GameFetchResponse, error)
}

// PlayParams are the typed navigation parameters handed to the game player.
type PlayParams struct {
	URI   string
	Title string
}

// Controller owns the in-memory catalog and drives descriptor transitions:
// Available -> Downloading -> Downloaded -> Available.
//
// All mutations happen under the controller mutex; the logical races
// (double download taps) are handled by the per-id key guard.
type Controller struct {
	mu    sync.Mutex
	db    *memdb.MemDB
	order []string // catalog display order; memdb does not preserve it

	kv       KV
	files    BundleStore
	fetcher  Fetcher
	guard    *safeguards.KeyGuard
	recorder events.Recorder
	logger   logrus.FieldLogger

	downloadsTotal *prometheus.CounterVec
	deletesTotal   prometheus.Counter
}

// Config holds catalog controller dependencies.
type Config struct {
	KV       KV
	Files    BundleStore
	Fetcher  Fetcher
	Recorder events.Recorder
	Logger   logrus.FieldLogger

	// Registerer is where controller counters are registered.
	// Optional; nil disables metric registration.
	Registerer prometheus.Registerer
}

// New creates a catalog controller. Call Initialize before use.
func New(cfg Config) (*Controller, error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("bundle store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"games": {
				Name: "games",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}

	logger := cfg.Logger.WithField("component", "catalog")

	downloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brightpath_game_downloads_total",
		Help: "Game download attempts, by outcome.",
	}, []string{"outcome"})
	deletesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brightpath_game_deletes_total",
		Help: "Game deletions.",
	})
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(downloadsTotal, deletesTotal)
	}

	return &Controller{
		db:             db,
		kv:             cfg.KV,
		files:          cfg.Files,
		fetcher:        cfg.Fetcher,
		guard:          safeguards.NewKeyGuard(safeguards.GuardConfig{Logger: cfg.Logger}),
		recorder:       cfg.Recorder,
		logger:         logger,
		downloadsTotal: downloadsTotal,
		deletesTotal:   deletesTotal,
	}, nil
}

// Initialize seeds the catalog from the static default list, then replaces
// it with the persisted catalog if a non-empty one exists.
//
// Replace semantics are deliberate: a persisted list that omits a default
// game wins, matching observed behavior. Transient downloading flags are
// never trusted across a load.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	c.resetLocked(Defaults())
	c.mu.Unlock()

	saved, err := c.loadPersisted(ctx)
	if err != nil {
		// Persistence failures degrade to the default catalog, never fatal.
		c.logger.WithError(err).Warn("failed to load persisted catalog, using defaults")
		return nil
	}
	if len(saved) == 0 {
		return nil
	}

	for i := range saved {
		saved[i].Downloading = false // stale transient flag from an interrupted session
	}

	c.mu.Lock()
	c.resetLocked(saved)
	c.mu.Unlock()

	c.logger.WithField("games", len(saved)).Info("catalog restored from record store")
	return nil
}

// Games returns the catalog in display order. The slice and its elements
// are copies.
func (c *Controller) Games() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		if d, ok := c.getLocked(id); ok {
			out = append(out, d)
		}
	}
	return out
}

// Get returns one descriptor by id.
func (c *Controller) Get(id string) (Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

// Download moves a game from Available to Downloaded.
//
// If a bundle already exists at the expected local path, the network is
// never touched. At most one download per game may be in flight; a second
// request returns ErrDownloadInFlight. On failure the descriptor reverts to
// Available and the error is returned for the presentation layer to surface
// as a non-blocking notice.
func (c *Controller) Download(ctx context.Context, id string) error {
	d, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	if d.State() == StateDownloaded {
		return nil
	}

	if err := c.guard.Acquire(id, "download"); err != nil {
		c.downloadsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrDownloadInFlight, id)
	}
	defer c.guard.Release(id)

	c.setDownloading(id, true)
	logger := c.logger.WithFields(logrus.Fields{"game_id": id, "title": d.Title})

	// Short-circuit: a bundle already on disk means "downloaded", no fetch.
	expected := c.files.BundlePath(id)
	if c.files.Exists(expected) {
		logger.Info("bundle already present, skipping fetch")
		c.settleDownload(ctx, id, expected)
		c.downloadsTotal.WithLabelValues("cached").Inc()
		return nil
	}

	logger.WithField("url", d.SourceURL).Info("starting game download")
	resp, err := c.fetcher.Fetch(ctx, id, d.SourceURL)
	if err != nil {
		logger.WithError(err).Error("game download failed")
		c.setDownloading(id, false)
		c.recorder.Record("game_download_failed", map[string]any{"game": d.Title, "id": id})
		c.downloadsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("download %s: %w", id, err)
	}

	c.settleDownload(ctx, id, resp.LocalPath)
	c.downloadsTotal.WithLabelValues("ok").Inc()
	return nil
}

// settleDownload records a successful download: local ref set, transient
// flag cleared, catalog persisted, event emitted.
func (c *Controller) settleDownload(ctx context.Context, id, localRef string) {
	var title string
	c.mu.Lock()
	if d, ok := c.getLocked(id); ok {
		d.LocalRef = localRef
		d.Downloading = false
		c.putLocked(d)
		title = d.Title
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.recorder.Record("game_downloaded", map[string]any{"game": title, "id": id})
}

// Delete removes a game's local copy. confirmed is the destructive-action
// gate and must be true. File removal is idempotent; the transient
// downloading flag is left untouched.
func (c *Controller) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	d, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}

	if d.LocalRef != "" {
		if err := c.files.Delete(d.LocalRef); err != nil {
			// State left unchanged; nothing was mutated yet.
			c.logger.WithError(err).WithField("game_id", id).Error("failed to delete bundle")
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}

	c.mu.Lock()
	if cur, ok := c.getLocked(id); ok {
		cur.LocalRef = ""
		c.putLocked(cur)
	}
	c.mu.Unlock()

	c.persist(ctx)
	c.recorder.Record("game_deleted", map[string]any{"game": d.Title, "id": id})
	c.deletesTotal.Inc()
	c.logger.WithField("game_id", id).Info("game removed")
	return nil
}

// Play returns the navigation parameters for a downloaded game.
func (c *Controller) Play(id string) (PlayParams, error) {
	d, ok := c.Get(id)
	if !ok {
		return PlayParams{}, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	if d.LocalRef == "" {
		return PlayParams{}, fmt.Errorf("%w: %s", ErrNotDownloaded, id)
	}
	return PlayParams{URI: d.LocalRef, Title: d.Title}, nil
}

// persist saves the whole catalog under the fixed key, last-writer-wins.
// Persistence failures are logged and swallowed: the in-memory catalog is
// already correct and a failed save must not fail the user action.
func (c *Controller) persist(ctx context.Context) {
	games := c.Games()
	data, err := json.Marshal(games)
	if err != nil {
		c.logger.WithError(err).Error("failed to encode catalog")
		return
	}
	if err := c.kv.Set(ctx, CatalogKey, string(data)); err != nil {
		c.logger.WithError(err).Error("failed to persist catalog")
	}
}

// loadPersisted reads the saved catalog. Absence returns (nil, nil);
// malformed data returns ErrCatalogDecode.
func (c *Controller) loadPersisted(ctx context.Context) ([]Descriptor, error) {
	raw, ok, err := c.kv.Get(ctx, CatalogKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var saved []Descriptor
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogDecode, err)
	}
	return saved, nil
}

// getLocked returns a copy of the descriptor for id. Caller holds c.mu.
func (c *Controller) getLocked(id string) (Descriptor, bool) {
	txn := c.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First("games", "id", id)
	if err != nil || raw == nil {
		return Descriptor{}, false
	}
	return *raw.(*Descriptor), true
}

// putLocked inserts a fresh copy of d. Caller holds c.mu.
func (c *Controller) putLocked(d Descriptor) {
	txn := c.db.Txn(true)
	rec := d
	if err := txn.Insert("games", &rec); err != nil {
		txn.Abort()
		c.logger.WithError(err).WithField("game_id", d.ID).Error("failed to update catalog index")
		return
	}
	txn.Commit()
}

// resetLocked replaces the whole catalog. Caller holds c.mu.
func (c *Controller) resetLocked(list []Descriptor) {
	txn := c.db.Txn(true)
	if _, err := txn.DeleteAll("games", "id_prefix", ""); err != nil {
		txn.Abort()
		c.logger.WithError(err).Error("failed to clear catalog index")
		return
	}
	order := make([]string, 0, len(list))
	for i := range list {
		rec := list[i]
		if err := txn.Insert("games", &rec); err != nil {
			txn.Abort()
			c.logger.WithError(err).WithField("game_id", rec.ID).Error("failed to seed catalog index")
			return
		}
		order = append(order, rec.ID)
	}
	txn.Commit()
	c.order = order
}

func (c *Controller) setDownloading(id string, downloading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.getLocked(id); ok {
		d.Downloading = downloading
		c.putLocked(d)
	}
}
