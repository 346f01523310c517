package brightpath

import (
	"encoding/json"
	"time"
)

// GameFetchRequest is the input to the game bundle fetch FSM.
//
// GameID must come from the catalog; the local bundle location is derived
// deterministically from it (see BundleFileName), so repeated fetches for the
// same game converge on the same file.
type GameFetchRequest struct {
	// GameID is the stable catalog identifier for the game.
	GameID string `json:"game_id"`

	// SourceURL is the remote location of the game's HTML bundle.
	SourceURL string `json:"source_url"`
}

// GameFetchResponse describes the outcome of the fetch FSM.
type GameFetchResponse struct {
	// GameID is the stable catalog identifier for the game.
	GameID string `json:"game_id"`

	// LocalPath is where the bundle lives on disk.
	LocalPath string `json:"local_path"`

	// SizeBytes is the size of the bundle on disk.
	SizeBytes int64 `json:"size_bytes"`

	// Fetched indicates the bundle was fetched from the network (true) or
	// already existed locally (false).
	Fetched bool `json:"fetched"`

	// AlreadyExist indicates the bundle was found in a valid, existing state
	// and the fetch was skipped via idempotency (fsm.Handoff).
	AlreadyExist bool `json:"already_exist"`

	// FetchedAt is the timestamp when the fetch completed.
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Codec implementation for JSON serialization
// The FSM library will automatically use JSON marshaling for these types

// Marshal implements the Codec interface for GameFetchRequest
func (r *GameFetchRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal implements the Codec interface for GameFetchRequest
func (r *GameFetchRequest) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}

// Marshal implements the Codec interface for GameFetchResponse
func (r *GameFetchResponse) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal implements the Codec interface for GameFetchResponse
func (r *GameFetchResponse) Unmarshal(data []byte) error {
	return json.Unmarshal(data, r)
}
