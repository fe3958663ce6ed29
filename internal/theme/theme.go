package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the top bar and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// SidebarStyle frames the account/folder panel.
var SidebarStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, true, false, false).
	BorderForeground(ColorBorder).
	PaddingRight(1)

// AccountHeaderStyle renders an account's label row in the sidebar.
var AccountHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// FolderStyle is the base style for folder rows.
var FolderStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedFolderStyle highlights the focused folder row.
var SelectedFolderStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// ListItemStyle is the base style for message rows.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused message row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// UnreadStyle marks unread message rows.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// StarStyle renders the star marker.
var StarStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// ThreadMarkerStyle renders collapse markers and reply indentation.
var ThreadMarkerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// MessagePanelStyle wraps the message body content area.
var MessagePanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ConnStyle returns a color-coded style for a connection state pill.
func ConnStyle(state model.ConnState) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case model.ConnConnected:
		return base.Foreground(ColorGreen)
	case model.ConnConnecting, model.ConnSyncing:
		return base.Foreground(ColorYellow)
	case model.ConnError:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
