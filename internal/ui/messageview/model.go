package messageview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/keys"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model is the message body view component.
type Model struct {
	summary  *model.MessageSummary
	body     *model.Body
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
	status   string
}

// New creates a message view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}

// SetLoading shows the loading indicator until a body arrives.
func (m *Model) SetLoading(summary *model.MessageSummary) {
	m.summary = summary
	m.body = nil
	m.loading = true
	m.status = ""
}

// SetBody installs the fetched body.
func (m *Model) SetBody(body *model.Body) {
	m.body = body
	m.loading = false
	m.status = ""
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetStatus shows a transient line instead of a body, for deferred
// loads and fetch errors.
func (m *Model) SetStatus(status string) {
	m.loading = false
	m.status = status
}

// Clear drops the displayed message so late results for it no longer
// match EnvelopeID.
func (m *Model) Clear() {
	m.summary = nil
	m.body = nil
	m.loading = false
	m.status = ""
}

// EnvelopeID returns the displayed message's identity, or 0.
func (m *Model) EnvelopeID() uint64 {
	if m.summary == nil {
		return 0
	}
	return m.summary.EnvelopeID
}

// Update handles messages for the body view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(keyMsg, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the message view.
func (m Model) View() string {
	if m.loading {
		return theme.HelpStyle.Render("loading message...")
	}
	if m.status != "" {
		return theme.HelpStyle.Render(m.status)
	}
	if m.summary == nil {
		return theme.HelpStyle.Render("no message selected")
	}
	return m.viewport.View()
}

// renderContent formats the headers, body text, and attachment list.
func (m Model) renderContent() string {
	var b strings.Builder

	b.WriteString(theme.UnreadStyle.Render(m.summary.Subject))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("From: %s\n", m.summary.From))
	b.WriteString(fmt.Sprintf("Date: %s\n", m.summary.Date))
	b.WriteString(strings.Repeat("─", min(m.width, 80)))
	b.WriteString("\n\n")

	if m.body != nil {
		b.WriteString(m.body.Preview())
		if len(m.body.Attachments) > 0 {
			b.WriteString("\n\n")
			b.WriteString(theme.ThreadMarkerStyle.Render("Attachments:"))
			for _, a := range m.body.Attachments {
				b.WriteString(fmt.Sprintf(
					"\n  📎 %s (%s, %d bytes)", a.Filename, a.MIMEType, a.Size,
				))
			}
		}
	}

	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
