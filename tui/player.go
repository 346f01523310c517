package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-app/brightpath/events"
	"github.com/brightpath-app/brightpath/playback"
	"github.com/brightpath-app/brightpath/topics"
)

// playerTickMsg advances the simulated playback clock once a second.
type playerTickMsg time.Time

// tickEngine is the playback engine behind the simulated player. Pausing
// just stops the clock from advancing.
type tickEngine struct {
	paused bool
}

func (e *tickEngine) Pause()  { e.paused = true }
func (e *tickEngine) Resume() { e.paused = false }

// playerModel is the video player screen. Playback is simulated: a ticker
// advances the position one second at a time and feeds it to the session,
// which owns checkpoint scheduling and the pause/acknowledge cycle.
type playerModel struct {
	topic    topics.Topic
	session  *playback.Session
	engine   *tickEngine
	position int
	total    int
	finished bool
	styles   *Styles
}

func newPlayerModel(topic topics.Topic, recorder events.Recorder, logger logrus.FieldLogger, styles *Styles) (*playerModel, error) {
	engine := &tickEngine{}
	session, err := playback.NewSession(playback.SessionConfig{
		Topic:    topic,
		Engine:   engine,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &playerModel{
		topic:   topic,
		session: session,
		engine:  engine,
		total:   topic.DurationMinutes * 60,
		styles:  styles,
	}, nil
}

// Tick advances the clock and schedules the next tick. Stops at the end of
// the video.
func (p *playerModel) Tick() tea.Cmd {
	if p.finished {
		return nil
	}
	if !p.engine.paused {
		p.position++
		p.session.OnPosition(p.position)
		if p.position >= p.total && p.session.State() == playback.StatePlaying {
			p.finished = true
			return nil
		}
	}
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return playerTickMsg(t)
	})
}

// HandleKey processes a key press. Returns true when the player screen is
// done and the app should navigate back.
func (p *playerModel) HandleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "enter", " ":
		// Only meaningful while the activity modal is up.
		p.session.Acknowledge()
		return false
	case "esc", "q":
		return true
	}
	return false
}

func (p *playerModel) View() string {
	var b strings.Builder
	b.WriteString(p.styles.Title.Render("Now Playing: " + p.topic.Title))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s / %s\n", FormatPosition(p.position), FormatPosition(p.total)))
	b.WriteString(renderProgressBar(p.position, p.total, 40))
	b.WriteString("\n\n")

	done := p.session.CompletedCount()
	totalCheckpoints := len(p.session.Checkpoints())
	b.WriteString(p.styles.Muted.Render(fmt.Sprintf("Activities completed: %d/%d", done, totalCheckpoints)))
	b.WriteString("\n")

	if cp, ok := p.session.Active(); ok {
		b.WriteString("\n")
		b.WriteString(p.styles.Modal.Render(fmt.Sprintf(
			"Activity time!\n\nYou watched %d minute(s). Try this:\nSay the last three words you heard out loud.\n\npress enter when done", cp.ID)))
		b.WriteString("\n")
	} else if p.finished {
		b.WriteString("\n" + p.styles.Success.Render("Video finished! "+SymbolSuccess))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.styles.Help.Render("enter acknowledge activity " + SymbolBullet + " esc back"))
	return p.styles.Box.Render(b.String())
}

func renderProgressBar(pos, total, width int) string {
	if total <= 0 {
		total = 1
	}
	filled := pos * width / total
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
