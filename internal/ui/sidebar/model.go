package sidebar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/keys"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/theme"
)

// SelectedFolderMsg is sent when the user opens a folder.
type SelectedFolderMsg struct {
	AccountID string
	MailboxID uint64
}

// Entry is one account's slice of the sidebar.
type Entry struct {
	AccountID string
	Label     string
	Conn      model.ConnectionState
	Folders   []model.Folder
}

// row is a flattened sidebar line; folder rows are selectable.
type row struct {
	accountID string
	mailboxID uint64
	folder    bool
	text      string
	conn      model.ConnectionState
	unread    uint32
}

// Model is the account/folder sidebar component.
type Model struct {
	entries  []Entry
	rows     []row
	cursor   int
	selected uint64
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a sidebar model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height}
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetEntries replaces the sidebar contents, keeping the cursor on the
// selected folder when it still exists.
func (m *Model) SetEntries(entries []Entry) {
	m.entries = entries
	m.rows = m.rows[:0]
	for _, e := range entries {
		m.rows = append(m.rows, row{
			accountID: e.AccountID,
			text:      e.Label,
			conn:      e.Conn,
		})
		for _, f := range e.Folders {
			m.rows = append(m.rows, row{
				accountID: e.AccountID,
				mailboxID: f.MailboxID,
				folder:    true,
				text:      f.Name,
				unread:    f.UnreadCount,
			})
		}
	}
	m.cursor = m.clampToFolder(m.cursor)
	for i, r := range m.rows {
		if r.folder && r.mailboxID == m.selected {
			m.cursor = i
			break
		}
	}
}

// MarkSelected records which folder is open, for the row highlight.
func (m *Model) MarkSelected(mailboxID uint64) {
	m.selected = mailboxID
}

// Update handles navigation within the sidebar.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Down):
		m.cursor = m.nextFolder(m.cursor, 1)
	case key.Matches(keyMsg, m.keys.Up):
		m.cursor = m.nextFolder(m.cursor, -1)
	case key.Matches(keyMsg, m.keys.Select):
		if m.cursor < len(m.rows) && m.rows[m.cursor].folder {
			r := m.rows[m.cursor]
			m.selected = r.mailboxID
			return m, func() tea.Msg {
				return SelectedFolderMsg{
					AccountID: r.accountID,
					MailboxID: r.mailboxID,
				}
			}
		}
	}

	return m, nil
}

// nextFolder moves the cursor to the next selectable row in the given
// direction, skipping account headers.
func (m Model) nextFolder(from, dir int) int {
	i := from + dir
	for i >= 0 && i < len(m.rows) {
		if m.rows[i].folder {
			return i
		}
		i += dir
	}
	return from
}

// clampToFolder snaps a cursor onto the nearest folder row.
func (m Model) clampToFolder(cursor int) int {
	if len(m.rows) == 0 {
		return 0
	}
	if cursor >= len(m.rows) {
		cursor = len(m.rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	if m.rows[cursor].folder {
		return cursor
	}
	if next := m.nextFolder(cursor, 1); next != cursor {
		return next
	}
	return m.nextFolder(cursor, -1)
}

// View renders the sidebar.
func (m Model) View() string {
	var b strings.Builder
	for i, r := range m.rows {
		if i > 0 {
			b.WriteString("\n")
		}
		if !r.folder {
			pill := theme.ConnStyle(r.conn.State).Render(r.conn.Label())
			b.WriteString(theme.AccountHeaderStyle.Render(r.text) + " " + pill)
			continue
		}

		line := r.text
		if r.unread > 0 {
			line = fmt.Sprintf("%s (%d)", r.text, r.unread)
		}
		switch {
		case i == m.cursor:
			line = theme.SelectedFolderStyle.Render(line)
		case r.mailboxID == m.selected:
			line = theme.FolderStyle.Bold(true).Render(line)
		case r.unread > 0:
			line = theme.FolderStyle.Render(theme.UnreadStyle.Render(line))
		default:
			line = theme.FolderStyle.Render(line)
		}
		b.WriteString(line)
	}
	return b.String()
}
