// Package tui provides the terminal user interface for the BrightPath
// learning app.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette for consistent theming
var (
	ColorPrimary    = lipgloss.Color("#7D56F4") // Purple
	ColorSecondary  = lipgloss.Color("#6C757D") // Gray
	ColorSuccess    = lipgloss.Color("#28A745") // Green
	ColorWarning    = lipgloss.Color("#FFC107") // Yellow
	ColorError      = lipgloss.Color("#DC3545") // Red
	ColorInfo       = lipgloss.Color("#17A2B8") // Blue
	ColorMuted      = lipgloss.Color("#6C757D") // Muted gray
	ColorForeground = lipgloss.Color("#CDD6F4") // Light foreground
)

// Status indicator symbols
const (
	SymbolSuccess    = "✓"
	SymbolError      = "✗"
	SymbolInProgress = "⟳"
	SymbolPending    = "○"
	SymbolBullet     = "•"
)

// Styles provides consistent styling across the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style

	Box   lipgloss.Style
	Modal lipgloss.Style

	Selected lipgloss.Style

	Help    lipgloss.Style
	HelpKey lipgloss.Style
}

// DefaultStyles returns the default style configuration
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorForeground),

		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Error: lipgloss.NewStyle().
			Foreground(ColorError),

		Info: lipgloss.NewStyle().
			Foreground(ColorInfo),

		Muted: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(1, 2),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorWarning).
			Padding(1, 3),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorInfo),
	}
}

// StatusIcon returns a styled status icon for a game or download state
func (s *Styles) StatusIcon(status string) string {
	switch status {
	case "downloaded", "completed", "done":
		return s.Success.Render(SymbolSuccess)
	case "failed", "error":
		return s.Error.Render(SymbolError)
	case "downloading", "running":
		return s.Info.Render(SymbolInProgress)
	case "available", "pending":
		return s.Muted.Render(SymbolPending)
	default:
		return s.Muted.Render(SymbolBullet)
	}
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatPosition formats a playback position as m:ss.
func FormatPosition(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatDuration formats duration into a human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
