package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/brightpath-app/brightpath/catalog"
	"github.com/brightpath-app/brightpath/events"
	"github.com/brightpath-app/brightpath/storage"
	"github.com/brightpath-app/brightpath/topics"
)

// Screen identifies which screen the app is showing.
type Screen int

const (
	ScreenMenu Screen = iota
	ScreenTopics
	ScreenPlayer
	ScreenGames
	ScreenGamePlayer
	ScreenEvents
)

var menuItems = []string{"Watch Videos", "Play Games", "Event Log", "Quit"}

// App is the root TUI model. It owns screen routing; the player and game
// viewer screens carry their own sub-models.
type App struct {
	screen Screen
	styles *Styles
	width  int
	height int

	catalog  *catalog.Controller
	files    *storage.Store
	eventLog *events.Log
	topics   []topics.Topic
	logger   logrus.FieldLogger

	menuCursor  int
	topicCursor int
	gameCursor  int

	player   *playerModel
	gameView *gamePlayerModel

	// confirmDelete holds the game id a delete confirmation is pending for.
	confirmDelete string
	downloading   map[string]bool
	notice        string

	quitting bool
}

// AppConfig holds TUI dependencies.
type AppConfig struct {
	Catalog *catalog.Controller
	Files   *storage.Store
	Events  *events.Log
	Topics  []topics.Topic
	Logger  logrus.FieldLogger
}

// NewApp creates the root model.
func NewApp(cfg AppConfig) (*App, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog controller is required")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("bundle store is required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = topics.Defaults()
	}

	return &App{
		screen:      ScreenMenu,
		styles:      DefaultStyles(),
		catalog:     cfg.Catalog,
		files:       cfg.Files,
		eventLog:    cfg.Events,
		topics:      cfg.Topics,
		logger:      cfg.Logger,
		downloading: make(map[string]bool),
	}, nil
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// downloadDoneMsg is sent when a background game download settles.
type downloadDoneMsg struct {
	GameID string
	Err    error
}

// downloadGame starts a catalog download off the UI loop.
func (a *App) downloadGame(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		return downloadDoneMsg{GameID: id, Err: a.catalog.Download(ctx, id)}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.gameView != nil {
			a.gameView.Resize(msg.Width, msg.Height)
		}
		return a, nil

	case downloadDoneMsg:
		delete(a.downloading, msg.GameID)
		if msg.Err != nil {
			a.notice = fmt.Sprintf("Download failed: %v", msg.Err)
		} else {
			a.notice = ""
		}
		return a, nil

	case playerTickMsg:
		if a.screen == ScreenPlayer && a.player != nil {
			return a, a.player.Tick()
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.quitting = true
		return a, tea.Quit
	}

	switch a.screen {
	case ScreenMenu:
		return a.updateMenu(msg)
	case ScreenTopics:
		return a.updateTopics(msg)
	case ScreenPlayer:
		return a.updatePlayer(msg)
	case ScreenGames:
		return a.updateGames(msg)
	case ScreenGamePlayer:
		return a.updateGamePlayer(msg)
	case ScreenEvents:
		return a.updateEvents(msg)
	}
	return a, nil
}

func (a *App) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.menuCursor > 0 {
			a.menuCursor--
		}
	case "down", "j":
		if a.menuCursor < len(menuItems)-1 {
			a.menuCursor++
		}
	case "enter":
		switch a.menuCursor {
		case 0:
			a.screen = ScreenTopics
		case 1:
			a.notice = ""
			a.screen = ScreenGames
		case 2:
			a.screen = ScreenEvents
		case 3:
			a.quitting = true
			return a, tea.Quit
		}
	case "q", "esc":
		a.quitting = true
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) updateTopics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.topicCursor > 0 {
			a.topicCursor--
		}
	case "down", "j":
		if a.topicCursor < len(a.topics)-1 {
			a.topicCursor++
		}
	case "enter":
		player, err := newPlayerModel(a.topics[a.topicCursor], a.eventLog, a.logger, a.styles)
		if err != nil {
			a.notice = fmt.Sprintf("Cannot start playback: %v", err)
			return a, nil
		}
		a.player = player
		a.screen = ScreenPlayer
		return a, a.player.Tick()
	case "esc", "q":
		a.screen = ScreenMenu
	}
	return a, nil
}

func (a *App) updatePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	done := a.player.HandleKey(msg)
	if done {
		a.player = nil
		a.screen = ScreenTopics
	}
	return a, nil
}

func (a *App) updateGames(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	games := a.catalog.Games()

	// A pending delete confirmation captures all keys until resolved.
	if a.confirmDelete != "" {
		switch msg.String() {
		case "y", "Y":
			id := a.confirmDelete
			a.confirmDelete = ""
			if err := a.catalog.Delete(context.Background(), id, true); err != nil {
				a.notice = fmt.Sprintf("Delete failed: %v", err)
			}
		default:
			a.confirmDelete = ""
		}
		return a, nil
	}

	switch msg.String() {
	case "up", "k":
		if a.gameCursor > 0 {
			a.gameCursor--
		}
	case "down", "j":
		if a.gameCursor < len(games)-1 {
			a.gameCursor++
		}
	case "d":
		if a.gameCursor < len(games) {
			g := games[a.gameCursor]
			if g.State() == catalog.StateAvailable && !a.downloading[g.ID] {
				a.downloading[g.ID] = true
				a.notice = ""
				return a, a.downloadGame(g.ID)
			}
		}
	case "x":
		if a.gameCursor < len(games) {
			g := games[a.gameCursor]
			if g.State() == catalog.StateDownloaded {
				a.confirmDelete = g.ID
			}
		}
	case "enter":
		if a.gameCursor < len(games) {
			params, err := a.catalog.Play(games[a.gameCursor].ID)
			if err != nil {
				a.notice = fmt.Sprintf("Cannot play: %v", err)
				return a, nil
			}
			view, err := newGamePlayerModel(params, a.files, a.styles, a.width, a.height)
			if err != nil {
				a.notice = fmt.Sprintf("Cannot open game: %v", err)
				return a, nil
			}
			a.gameView = view
			a.screen = ScreenGamePlayer
		}
	case "esc", "q":
		a.screen = ScreenMenu
	}
	return a, nil
}

func (a *App) updateGamePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.gameView = nil
		a.screen = ScreenGames
		return a, nil
	}
	a.gameView.HandleKey(msg)
	return a, nil
}

func (a *App) updateEvents(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.screen = ScreenMenu
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}
	switch a.screen {
	case ScreenMenu:
		return a.viewMenu()
	case ScreenTopics:
		return a.viewTopics()
	case ScreenPlayer:
		return a.player.View()
	case ScreenGames:
		return a.viewGames()
	case ScreenGamePlayer:
		return a.gameView.View()
	case ScreenEvents:
		return a.viewEvents()
	}
	return ""
}

func (a *App) viewMenu() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("BrightPath"))
	b.WriteString("\n\n")
	for i, item := range menuItems {
		if i == a.menuCursor {
			b.WriteString(a.styles.Selected.Render("> " + item))
		} else {
			b.WriteString("  " + item)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("↑/↓ move " + SymbolBullet + " enter select " + SymbolBullet + " q quit"))
	return a.styles.Box.Render(b.String())
}

func (a *App) viewTopics() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Video Topics"))
	b.WriteString("\n\n")
	for i, t := range a.topics {
		line := fmt.Sprintf("%s  (%d min)", t.Title, t.DurationMinutes)
		if i == a.topicCursor {
			b.WriteString(a.styles.Selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if a.notice != "" {
		b.WriteString("\n" + a.styles.Error.Render(a.notice))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("enter play " + SymbolBullet + " esc back"))
	return a.styles.Box.Render(b.String())
}

func (a *App) viewGames() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Games"))
	b.WriteString("\n\n")

	games := a.catalog.Games()
	for i, g := range games {
		state := string(g.State())
		if a.downloading[g.ID] {
			state = "downloading"
		}
		line := fmt.Sprintf("%s %s  %s", a.styles.StatusIcon(state), g.Title, a.styles.Muted.Render("["+state+"]"))
		if i == a.gameCursor {
			b.WriteString(a.styles.Selected.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if a.confirmDelete != "" {
		b.WriteString("\n")
		b.WriteString(a.styles.Modal.Render("Delete downloaded game? This removes the local copy.\n\ny confirm " + SymbolBullet + " any other key cancel"))
	}
	if a.notice != "" {
		b.WriteString("\n" + a.styles.Error.Render(a.notice))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("enter play " + SymbolBullet + " d download " + SymbolBullet + " x delete " + SymbolBullet + " esc back"))
	return a.styles.Box.Render(b.String())
}

func (a *App) viewEvents() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Event Log"))
	b.WriteString("\n\n")

	evs := a.eventLog.Events()
	if len(evs) == 0 {
		b.WriteString(a.styles.Muted.Render("No events yet."))
		b.WriteString("\n")
	}
	// Newest last, capped to what fits on a small screen.
	start := 0
	if len(evs) > 20 {
		start = len(evs) - 20
	}
	for _, ev := range evs[start:] {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			a.styles.Muted.Render(ev.Timestamp.Format("15:04:05")),
			ev.Name))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("esc back"))
	return a.styles.Box.Render(b.String())
}
