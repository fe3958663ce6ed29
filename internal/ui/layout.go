package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jstelzer/neverlight-mail/internal/theme"
)

// Layout manages the multi-panel terminal layout dimensions: a folder
// sidebar on the left and the message area filling the rest.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
	SidebarWidth    int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	sidebar := width / 4
	if sidebar < 20 {
		sidebar = 20
	}
	if sidebar > 36 {
		sidebar = 36
	}
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
		SidebarWidth:    sidebar,
	}
}

// ContentWidth returns the width available right of the sidebar.
func (l Layout) ContentWidth() int {
	return l.Width - l.SidebarWidth
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with a title and status text.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderPanels joins the sidebar and the content area horizontally.
func (l Layout) RenderPanels(sidebar, content string) string {
	sidebarRendered := theme.SidebarStyle.
		Width(l.SidebarWidth).
		Height(l.ContentHeight()).
		Render(sidebar)

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebarRendered, content)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, panel area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	panels string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		panels,
		statusBar,
	)
}
