package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// handleKeys processes global keys, then delegates to the focused
// component.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys that work regardless of current view.
	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		return m, tea.Quit

	case "q":
		if m.currentView == ViewMail && !m.list.Searching() {
			m.cancel()
			return m, tea.Quit
		}

	case "?":
		if m.currentView == ViewSetup {
			break
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	}

	if m.currentView == ViewHelp {
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
		}
		return m, nil
	}
	if m.currentView == ViewSetup {
		return m.updateActiveView(msg)
	}

	// Keys shared by the mail and message views.
	if m.currentView == ViewMail || m.currentView == ViewMessage {
		switch {
		case key.Matches(msg, m.keys.ToggleRead):
			if !m.searchFocused() {
				return m.toggleFlag(model.FlagRead)
			}

		case key.Matches(msg, m.keys.ToggleStar):
			if !m.searchFocused() {
				return m.toggleFlag(model.FlagStarred)
			}

		case key.Matches(msg, m.keys.Archive):
			if !m.searchFocused() {
				return m.moveAndLeaveView(archiveFolders)
			}

		case key.Matches(msg, m.keys.Trash):
			if !m.searchFocused() {
				return m.moveAndLeaveView(trashFolders)
			}
		}
	}

	if m.currentView == ViewMail {
		switch {
		case msg.String() == "h":
			if !m.searchFocused() {
				m.focus = PaneSidebar
				return m, nil
			}

		case msg.String() == "l" && m.focus == PaneSidebar:
			m.focus = PaneList
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if !m.searchFocused() {
				m.refresher.Trigger()
				return m, nil
			}

		case key.Matches(msg, m.keys.NextAccount):
			if !m.searchFocused() {
				return m.nextAccount()
			}

		case key.Matches(msg, m.keys.Reconnect):
			if !m.searchFocused() {
				return m.reconnectActive()
			}

		case key.Matches(msg, m.keys.AddAccount):
			if !m.searchFocused() {
				m.previousView = m.currentView
				m.currentView = ViewSetup
				return m, m.setupForm.StartAdd()
			}

		case key.Matches(msg, m.keys.RemoveAccount):
			if !m.searchFocused() {
				return m.removeActiveAccount()
			}
		}
	}

	return m.updateActiveView(msg)
}

// searchFocused reports whether the list's search box is capturing
// input, in which case plain letters must not trigger actions.
func (m Model) searchFocused() bool {
	return m.currentView == ViewMail && m.focus == PaneList && m.list.SearchFocused()
}

// moveAndLeaveView runs a move and, when it was issued from the
// message view, returns to the list.
func (m Model) moveAndLeaveView(destNames []string) (tea.Model, tea.Cmd) {
	mdl, cmd := m.moveSelected(destNames)
	if mm, ok := mdl.(Model); ok && mm.currentView == ViewMessage {
		mm.currentView = ViewMail
		mm.focus = PaneList
		return mm, cmd
	}
	return mdl, cmd
}
