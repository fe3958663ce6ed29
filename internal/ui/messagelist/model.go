package messagelist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/keys"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/theme"
	"github.com/jstelzer/neverlight-mail/internal/thread"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	EnvelopeID uint64
	MailboxID  uint64
}

// LoadMoreMsg asks the parent to load the next cached page.
type LoadMoreMsg struct{}

// Model is the message list view component.
type Model struct {
	messages  []model.MessageSummary
	collapsed thread.Collapsed
	proj      thread.Projection

	// display holds the indices currently rendered: the thread
	// projection normally, or the flat search matches while searching.
	display []int

	cursor  int
	hasMore bool

	searchMode  bool
	searchQuery string
	searchInput textinput.Model

	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a message list model.
func New(k *keys.KeyMap, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "search subject or sender..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		collapsed:   thread.Collapsed{},
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.searchInput.Width = width - 4
}

// SetMessages replaces the list contents. The cursor stays on the same
// envelope when it survives the replacement.
func (m *Model) SetMessages(messages []model.MessageSummary, hasMore bool) {
	var keep uint64
	if sel, ok := m.Selected(); ok {
		keep = sel.EnvelopeID
	}

	m.messages = messages
	m.hasMore = hasMore
	m.reproject()

	if keep != 0 {
		for cursor, i := range m.display {
			if m.messages[i].EnvelopeID == keep {
				m.cursor = cursor
				break
			}
		}
	}
	m.cursor = m.clamp(m.cursor)
}

// Messages returns the full backing list, in display order.
func (m *Model) Messages() []model.MessageSummary {
	return m.messages
}

// HasMore reports whether another cached page may exist.
func (m *Model) HasMore() bool { return m.hasMore }

// Searching reports whether a search filter is active. Pagination is
// disabled while searching.
func (m *Model) Searching() bool { return m.searchMode || m.searchQuery != "" }

// SearchFocused reports whether the search box is capturing input.
func (m *Model) SearchFocused() bool { return m.searchMode }

// Selected returns the message under the cursor.
func (m *Model) Selected() (*model.MessageSummary, bool) {
	if m.cursor < 0 || m.cursor >= len(m.display) {
		return nil, false
	}
	return &m.messages[m.display[m.cursor]], true
}

// Insert adds a newly arrived message in timestamp order.
func (m *Model) Insert(summary model.MessageSummary) {
	for _, existing := range m.messages {
		if existing.EnvelopeID == summary.EnvelopeID {
			return
		}
	}
	m.messages = append(m.messages, summary)
	sort.SliceStable(m.messages, func(i, j int) bool {
		return m.messages[i].Timestamp > m.messages[j].Timestamp
	})
	m.reproject()
	m.cursor = m.clamp(m.cursor)
}

// InsertAt restores a removed message at its original position, used
// when a move is rolled back.
func (m *Model) InsertAt(summary model.MessageSummary, index int) {
	if index < 0 || index > len(m.messages) {
		index = len(m.messages)
	}
	m.messages = append(m.messages, model.MessageSummary{})
	copy(m.messages[index+1:], m.messages[index:])
	m.messages[index] = summary
	m.reproject()
	m.cursor = m.clamp(m.cursor)
}

// Remove deletes a message, returning its snapshot and list position
// so the caller can restore it if needed.
func (m *Model) Remove(envelopeID uint64) (model.MessageSummary, int, bool) {
	for i := range m.messages {
		if m.messages[i].EnvelopeID != envelopeID {
			continue
		}
		snapshot := m.messages[i]
		m.messages = append(m.messages[:i], m.messages[i+1:]...)
		m.reproject()
		m.cursor = m.clamp(m.cursor)
		return snapshot, i, true
	}
	return model.MessageSummary{}, 0, false
}

// ApplyFlags updates one message's flag byte in place.
func (m *Model) ApplyFlags(envelopeID uint64, flags uint8) {
	for i := range m.messages {
		if m.messages[i].EnvelopeID == envelopeID {
			m.messages[i].ApplyFlags(flags)
			return
		}
	}
}

// ToggleCollapse flips the collapse state of the selected thread.
func (m *Model) ToggleCollapse() {
	sel, ok := m.Selected()
	if !ok || sel.ThreadID == 0 {
		return
	}
	keep := sel.EnvelopeID
	m.collapsed.Toggle(sel.ThreadID)
	m.reproject()

	// Collapsing may hide the cursor's row; snap to the thread root.
	for cursor, i := range m.display {
		if m.messages[i].EnvelopeID == keep {
			m.cursor = cursor
			return
		}
	}
	for cursor, i := range m.display {
		if m.messages[i].ThreadID == sel.ThreadID && m.messages[i].ThreadDepth == 0 {
			m.cursor = cursor
			return
		}
	}
	m.cursor = m.clamp(m.cursor)
}

// reproject rebuilds the display order from the current messages,
// collapse set, and search filter.
func (m *Model) reproject() {
	thread.Assign(m.messages)
	m.proj = thread.Project(m.messages, m.collapsed)

	if m.searchQuery == "" {
		m.display = m.proj.Visible
		return
	}

	// Search is a flat filter over subject and sender; threading and
	// collapse do not apply to results.
	query := strings.ToLower(m.searchQuery)
	m.display = m.display[:0]
	for i := range m.messages {
		if strings.Contains(strings.ToLower(m.messages[i].Subject), query) ||
			strings.Contains(strings.ToLower(m.messages[i].From), query) {
			m.display = append(m.display, i)
		}
	}
}

func (m *Model) clamp(cursor int) int {
	if len(m.display) == 0 {
		return 0
	}
	if cursor < 0 {
		return 0
	}
	if cursor >= len(m.display) {
		return len(m.display) - 1
	}
	return cursor
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searchMode {
		return m.handleSearchKeys(keyMsg)
	}
	return m.handleNormalKeys(keyMsg)
}

// handleSearchKeys processes key input while the search box has focus.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchQuery = m.searchInput.Value()
		m.reproject()
		m.cursor = 0
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.searchQuery = ""
		m.reproject()
		m.cursor = m.clamp(m.cursor)
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor = m.clamp(m.cursor + 1)

	case key.Matches(msg, m.keys.Up):
		m.cursor = m.clamp(m.cursor - 1)

	case key.Matches(msg, m.keys.Select):
		sel, ok := m.Selected()
		if !ok {
			return m, nil
		}
		envelopeID, mailboxID := sel.EnvelopeID, sel.MailboxID
		return m, func() tea.Msg {
			return SelectedMessageMsg{EnvelopeID: envelopeID, MailboxID: mailboxID}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.searchQuery != "" {
			m.searchQuery = ""
			m.searchInput.Reset()
			m.reproject()
			m.cursor = m.clamp(m.cursor)
		}

	case key.Matches(msg, m.keys.ToggleThread):
		m.ToggleCollapse()

	case key.Matches(msg, m.keys.LoadMore):
		if m.hasMore && !m.Searching() {
			return m, func() tea.Msg { return LoadMoreMsg{} }
		}
	}

	return m, nil
}

// View renders the message list.
func (m Model) View() string {
	var b strings.Builder

	if m.searchMode {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n\n")
	} else if m.searchQuery != "" {
		b.WriteString(theme.HelpStyle.Render(
			fmt.Sprintf("search: %q (%d matches, esc to clear)", m.searchQuery, len(m.display)),
		))
		b.WriteString("\n\n")
	}

	if len(m.display) == 0 {
		b.WriteString(theme.HelpStyle.Render("no messages"))
		return b.String()
	}

	visible := m.height - 4
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.display) {
		end = len(m.display)
	}

	for cursor := start; cursor < end; cursor++ {
		msg := &m.messages[m.display[cursor]]
		line := m.renderRow(msg)
		if cursor == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else if !msg.IsRead {
			line = theme.ListItemStyle.Render(theme.UnreadStyle.Render(line))
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		b.WriteString(line)
		if cursor < end-1 {
			b.WriteString("\n")
		}
	}

	if m.hasMore && !m.Searching() {
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render("L load more"))
	}

	return b.String()
}

// renderRow formats one message line: markers, thread indent, sender,
// subject, date.
func (m Model) renderRow(msg *model.MessageSummary) string {
	var marks strings.Builder
	if msg.IsRead {
		marks.WriteString("  ")
	} else {
		marks.WriteString("● ")
	}
	if msg.IsStarred {
		marks.WriteString(theme.StarStyle.Render("★") + " ")
	} else {
		marks.WriteString("  ")
	}
	if msg.HasAttachments {
		marks.WriteString("📎 ")
	}

	var threadMark string
	if msg.ThreadDepth > 0 {
		threadMark = theme.ThreadMarkerStyle.Render(
			strings.Repeat("  ", msg.ThreadDepth) + "↳ ",
		)
	} else if size := m.proj.Sizes[msg.ThreadID]; size > 1 {
		arrow := "▾"
		if m.collapsed.Has(msg.ThreadID) {
			arrow = "▸"
		}
		threadMark = theme.ThreadMarkerStyle.Render(fmt.Sprintf("%s(%d) ", arrow, size))
	}

	from := msg.From
	if len(from) > 20 {
		from = from[:20]
	}

	return fmt.Sprintf("%s%s%-20s  %s  %s",
		marks.String(), threadMark, from, msg.Subject, msg.Date)
}
