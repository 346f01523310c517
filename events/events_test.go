package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAppendsInOrder(t *testing.T) {
	log := NewLog(Config{})

	log.Record("video_started", map[string]any{"topic": "Alphabet Sounds"})
	log.Record("activity_shown", map[string]any{"minute": 1})
	log.Record("activity_completed", map[string]any{"minute": 1})

	evs := log.Events()
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3", len(evs))
	}
	want := []string{"video_started", "activity_shown", "activity_completed"}
	for i, name := range want {
		if evs[i].Name != name {
			t.Fatalf("event %d = %s, want %s", i, evs[i].Name, name)
		}
		if evs[i].ID == "" {
			t.Fatalf("event %d has no id", i)
		}
		if evs[i].Timestamp.IsZero() {
			t.Fatalf("event %d has no timestamp", i)
		}
	}
	if evs[0].Meta["topic"] != "Alphabet Sounds" {
		t.Fatalf("meta = %v", evs[0].Meta)
	}
}

func TestRecordCopiesMeta(t *testing.T) {
	log := NewLog(Config{})

	meta := map[string]any{"minute": 1}
	log.Record("activity_shown", meta)
	meta["minute"] = 99

	if got := log.Events()[0].Meta["minute"]; got != 1 {
		t.Fatalf("meta mutated after record: %v", got)
	}
}

func TestEventsReturnsSnapshot(t *testing.T) {
	log := NewLog(Config{})
	log.Record("a", nil)

	snap := log.Events()
	log.Record("b", nil)

	if len(snap) != 1 {
		t.Fatalf("snapshot grew: %d", len(snap))
	}
	if log.Len() != 2 {
		t.Fatalf("Len = %d, want 2", log.Len())
	}
}

func TestCounterTracksEventNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	log := NewLog(Config{Registerer: reg})

	log.Record("video_started", nil)
	log.Record("video_started", nil)
	log.Record("game_downloaded", nil)

	// Two event names means two series under the counter.
	if got := testutil.CollectAndCount(log.counter, "brightpath_events_total"); got != 2 {
		t.Fatalf("series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(log.counter.WithLabelValues("video_started")); got != 2 {
		t.Fatalf("video_started count = %v, want 2", got)
	}
}

func TestNopDiscards(t *testing.T) {
	var r Recorder = Nop{}
	r.Record("anything", map[string]any{"k": "v"})
}
