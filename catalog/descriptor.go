// Package catalog tracks each game's availability state and mediates the
// offline download/playback/removal lifecycle.
package catalog

// State is the display state of one game descriptor, derived from its
// fields rather than stored.
type State string

const (
	// StateAvailable means the game can be downloaded.
	StateAvailable State = "available"
	// StateDownloading means a download is in flight.
	StateDownloading State = "downloading"
	// StateDownloaded means a local copy exists and the game is playable.
	StateDownloaded State = "downloaded"
)

// Descriptor describes one downloadable game and its local availability.
//
// Catalog membership is static: descriptors are created once from the
// default catalog (or a persisted copy of it) and mutated in place; they are
// never individually added or removed.
type Descriptor struct {
	// ID is the stable identifier, unique within the catalog.
	ID string `json:"id"`

	// Title is the display name.
	Title string `json:"title"`

	// SourceURL is the remote location of the game's HTML bundle.
	SourceURL string `json:"source_url"`

	// LocalRef points at the downloaded local copy; present iff downloaded.
	LocalRef string `json:"local_ref,omitempty"`

	// Downloading is a transient flag, true only while a download is in
	// flight. It is normalized to false on every load; a persisted true is
	// a leftover from an interrupted session, never trusted.
	Downloading bool `json:"downloading,omitempty"`
}

// State derives the display state. A settled local copy wins over a stale
// transient flag.
func (d Descriptor) State() State {
	if d.LocalRef != "" {
		return StateDownloaded
	}
	if d.Downloading {
		return StateDownloading
	}
	return StateAvailable
}

// Defaults returns the built-in game catalog, in display order.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			ID:        "1",
			Title:     "Offline Click Game",
			SourceURL: "https://raw.githubusercontent.com/rajatsharma/mini-html-games/main/click-game.html",
		},
		{
			ID:        "2",
			Title:     "Offline Counter Game",
			SourceURL: "https://raw.githubusercontent.com/rajatsharma/mini-html-games/main/counter.html",
		},
	}
}
