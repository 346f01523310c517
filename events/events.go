// Package events provides the in-process event log for lifecycle telemetry.
//
// The log is append-only for the lifetime of the process and is never
// persisted. Controllers receive a Recorder at construction instead of
// writing to hidden process-wide state, so tests can capture exactly the
// events a component emitted.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Recorder accepts named events with an opaque metadata payload.
// Record never fails and never blocks on I/O.
type Recorder interface {
	Record(name string, meta map[string]any)
}

// Event is one recorded entry.
type Event struct {
	// ID is a ULID assigned at record time, monotonic within the process.
	ID string

	// Name identifies the event (e.g. "video_started", "game_downloaded").
	Name string

	// Timestamp is the clock reading when the event was recorded.
	Timestamp time.Time

	// Meta is an opaque key-value payload. May be nil.
	Meta map[string]any
}

// Log is the standard Recorder: an in-memory append-only event list with
// structured log output and a per-event-name counter.
type Log struct {
	mu     sync.Mutex
	events []Event

	logger  logrus.FieldLogger
	counter *prometheus.CounterVec
}

// Config holds event log configuration.
type Config struct {
	// Logger receives one structured entry per recorded event.
	Logger logrus.FieldLogger

	// Registerer is where the events counter is registered.
	// Optional; nil disables metric registration.
	Registerer prometheus.Registerer
}

// NewLog creates an event log.
func NewLog(cfg Config) *Log {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brightpath_events_total",
		Help: "Total lifecycle events recorded, by event name.",
	}, []string{"event"})
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(counter)
	}

	return &Log{
		logger:  cfg.Logger.WithField("component", "events"),
		counter: counter,
	}
}

// Record appends an event with the current time. The meta map is copied, so
// callers may reuse theirs.
func (l *Log) Record(name string, meta map[string]any) {
	ev := Event{
		ID:        ulid.Make().String(),
		Name:      name,
		Timestamp: time.Now(),
		Meta:      copyMeta(meta),
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()

	l.counter.WithLabelValues(name).Inc()

	fields := logrus.Fields{"event": name, "event_id": ev.ID}
	for k, v := range ev.Meta {
		fields["meta_"+k] = v
	}
	l.logger.WithFields(fields).Info("event recorded")
}

// Events returns an ordered snapshot of everything recorded so far.
// The returned slice is the caller's to keep.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// Nop is a Recorder that discards everything.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(string, map[string]any) {}
