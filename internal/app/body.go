package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/syncer"
	"github.com/jstelzer/neverlight-mail/internal/ui/messagelist"
)

// bodyRetryMsg re-runs a deferred body load once the dwell elapsed.
type bodyRetryMsg struct {
	mailboxID  uint64
	envelopeID uint64
	attempt    int
}

// autoReadMsg fires after a message has been open for the dwell time.
type autoReadMsg struct {
	envelopeID uint64
}

// bodyRetryDelay paces deferred body reloads while a session connects.
const bodyRetryDelay = 2 * time.Second

// openMessage switches to the message view and starts the cache-first
// body load plus the auto-read dwell timer.
func (m Model) openMessage(msg messagelist.SelectedMessageMsg) (tea.Model, tea.Cmd) {
	sel, ok := m.list.Selected()
	if !ok || sel.EnvelopeID != msg.EnvelopeID {
		return m, nil
	}

	m.currentView = ViewMessage
	m.view.SetLoading(sel)

	var sess mail.Session
	if a, ok := m.registry.ByMailbox(msg.MailboxID); ok && a.Connected() {
		sess = a.Session
	}

	envelopeID := msg.EnvelopeID
	cmds := []tea.Cmd{
		syncer.LoadBody(m.ctx, m.store, sess, msg.MailboxID, envelopeID, 0),
		tea.Tick(autoReadDwell, func(time.Time) tea.Msg {
			return autoReadMsg{envelopeID: envelopeID}
		}),
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleBodyLoaded(msg syncer.BodyLoadedMsg) (tea.Model, tea.Cmd) {
	// The user may have moved on; a late body must not repaint.
	if m.view.EnvelopeID() != msg.EnvelopeID {
		return m, nil
	}

	switch {
	case msg.Body != nil:
		m.view.SetBody(msg.Body)
		return m, nil

	case msg.Deferred:
		m.view.SetStatus("waiting for connection...")
		retry := bodyRetryMsg{
			mailboxID:  msg.MailboxID,
			envelopeID: msg.EnvelopeID,
			attempt:    msg.Attempt + 1,
		}
		return m, tea.Tick(bodyRetryDelay, func(time.Time) tea.Msg {
			return retry
		})

	case msg.Err != nil:
		m.view.SetStatus("could not load message: " + msg.Err.Error())
		return m, nil

	default:
		m.view.SetStatus("message is not available offline")
		return m, nil
	}
}

func (m Model) handleBodyRetry(msg bodyRetryMsg) (tea.Model, tea.Cmd) {
	if m.view.EnvelopeID() != msg.envelopeID {
		return m, nil
	}

	var sess mail.Session
	if a, ok := m.registry.ByMailbox(msg.mailboxID); ok && a.Connected() {
		sess = a.Session
	}
	return m, syncer.LoadBody(
		m.ctx, m.store, sess, msg.mailboxID, msg.envelopeID, msg.attempt,
	)
}

// handleAutoRead marks the open message read after the dwell, unless
// the user left it or manually marked it unread in the meantime.
func (m Model) handleAutoRead(msg autoReadMsg) (tea.Model, tea.Cmd) {
	if m.currentView != ViewMessage || m.view.EnvelopeID() != msg.envelopeID {
		return m, nil
	}
	if !m.engine.AutoReadAllowed(msg.envelopeID) {
		return m, nil
	}
	sel, ok := m.list.Selected()
	if !ok || sel.EnvelopeID != msg.envelopeID || sel.IsRead {
		return m, nil
	}
	return m.toggleFlag(model.FlagRead)
}
