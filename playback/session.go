// Package playback drives a video playback session: position tracking,
// per-minute activity checkpoints, and the pause/acknowledge modal cycle.
package playback

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-app/brightpath/events"
	"github.com/brightpath-app/brightpath/topics"
)

// checkpointWindowSeconds is the tolerance window after a checkpoint's
// trigger time in which it still fires. Position updates are coarse; a
// window wider than the update interval guarantees a hit, while staying
// narrow enough that a seek far past the trigger skips it.
const checkpointWindowSeconds = 2

// State is the playback state machine position.
type State string

const (
	// StatePlaying means the video is advancing and checkpoints can fire.
	StatePlaying State = "playing"
	// StateAwaitingAck means a checkpoint modal is up and the video is paused.
	StateAwaitingAck State = "awaiting_ack"
)

// Engine is the underlying video player the session controls.
type Engine interface {
	Pause()
	Resume()
}

// Checkpoint is one scheduled activity interruption.
type Checkpoint struct {
	// ID is the 1-based minute ordinal of the checkpoint.
	ID int

	// TriggerSecond is the playback position the checkpoint fires at.
	TriggerSecond int

	// Completed is set once the activity has been acknowledged.
	Completed bool
}

// Session is one playback run of a topic. Not safe for concurrent use; the
// presentation loop owns it.
//
// Checkpoint bookkeeping uses persistent collections so accessors can hand
// out snapshots without copying under callers' feet.
type Session struct {
	mu sync.Mutex

	id     string
	topic  topics.Topic
	engine Engine

	state       State
	checkpoints *immutable.List[Checkpoint]
	shown       *immutable.Map[int, struct{}]
	active      *Checkpoint

	recorder events.Recorder
	logger   logrus.FieldLogger
}

// SessionConfig holds playback session dependencies.
type SessionConfig struct {
	Topic    topics.Topic
	Engine   Engine
	Recorder events.Recorder
	Logger   logrus.FieldLogger
}

// NewSession starts a playback session for a topic. One checkpoint is
// scheduled per declared minute, at 60s, 120s, and so on. Emits the
// video_started event.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Topic.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topic: %w", err)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("playback engine is required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	b := immutable.NewListBuilder[Checkpoint]()
	for minute := 1; minute <= cfg.Topic.DurationMinutes; minute++ {
		b.Append(Checkpoint{
			ID:            minute,
			TriggerSecond: minute * 60,
		})
	}

	s := &Session{
		id:          ulid.Make().String(),
		topic:       cfg.Topic,
		engine:      cfg.Engine,
		state:       StatePlaying,
		checkpoints: b.List(),
		shown:       immutable.NewMap[int, struct{}](nil),
		recorder:    cfg.Recorder,
		logger: cfg.Logger.WithFields(logrus.Fields{
			"component": "playback",
			"topic_id":  cfg.Topic.ID,
		}),
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":  s.id,
		"checkpoints": s.checkpoints.Len(),
	}).Info("playback session started")
	s.recorder.Record("video_started", map[string]any{"topic": cfg.Topic.Title})

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Topic returns the topic under playback.
func (s *Session) Topic() topics.Topic {
	return s.topic
}

// State returns the current playback state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the checkpoint currently awaiting acknowledgment, if any.
func (s *Session) Active() (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Checkpoint{}, false
	}
	return *s.active, true
}

// Checkpoints returns a snapshot of all checkpoints in trigger order.
func (s *Session) Checkpoints() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Checkpoint, 0, s.checkpoints.Len())
	itr := s.checkpoints.Iterator()
	for !itr.Done() {
		_, cp := itr.Next()
		out = append(out, cp)
	}
	return out
}

// CompletedCount returns how many checkpoints have been acknowledged.
func (s *Session) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	itr := s.checkpoints.Iterator()
	for !itr.Done() {
		_, cp := itr.Next()
		if cp.Completed {
			count++
		}
	}
	return count
}

// OnPosition feeds the current playback position in. If a checkpoint's
// trigger falls inside [trigger, trigger+window) and it has not been shown
// this session, playback pauses and the checkpoint becomes active. While a
// modal is already up, position updates are ignored entirely; the guard is
// what makes checkpoint showing exactly-once.
func (s *Session) OnPosition(positionSeconds int) {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}

	var hit *Checkpoint
	itr := s.checkpoints.Iterator()
	for !itr.Done() {
		_, cp := itr.Next()
		if _, seen := s.shown.Get(cp.ID); seen {
			continue
		}
		if positionSeconds >= cp.TriggerSecond && positionSeconds < cp.TriggerSecond+checkpointWindowSeconds {
			c := cp
			hit = &c
			break
		}
	}
	if hit == nil {
		s.mu.Unlock()
		return
	}

	s.shown = s.shown.Set(hit.ID, struct{}{})
	s.active = hit
	s.state = StateAwaitingAck
	s.mu.Unlock()

	s.engine.Pause()
	s.logger.WithFields(logrus.Fields{
		"minute":   hit.ID,
		"position": positionSeconds,
	}).Info("activity checkpoint reached")
	s.recorder.Record("activity_shown", map[string]any{
		"minute": hit.ID,
		"topic":  s.topic.Title,
	})
}

// Acknowledge completes the active checkpoint and resumes playback. A call
// with no modal up is a no-op.
func (s *Session) Acknowledge() {
	s.mu.Lock()
	if s.state != StateAwaitingAck || s.active == nil {
		s.mu.Unlock()
		return
	}

	done := *s.active
	done.Completed = true

	itr := s.checkpoints.Iterator()
	for !itr.Done() {
		i, cp := itr.Next()
		if cp.ID == done.ID {
			s.checkpoints = s.checkpoints.Set(i, done)
			break
		}
	}

	s.active = nil
	s.state = StatePlaying
	s.mu.Unlock()

	s.recorder.Record("activity_completed", map[string]any{
		"minute": done.ID,
		"topic":  s.topic.Title,
	})
	s.engine.Resume()
	s.logger.WithField("minute", done.ID).Info("activity completed, playback resumed")
}
