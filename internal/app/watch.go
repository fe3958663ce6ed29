package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/syncer"
	"github.com/jstelzer/neverlight-mail/internal/watch"
)

// watchStartedMsg carries a freshly opened watch stream.
type watchStartedMsg struct {
	accountID  string
	generation uint64
	events     <-chan mail.WatchEvent
	err        error
}

// watchEventMsg carries one event drained from a watch stream.
type watchEventMsg struct {
	accountID  string
	generation uint64
	events     <-chan mail.WatchEvent
	event      mail.WatchEvent
	ok         bool
}

// startWatch opens the server-push stream for an account. Watch
// failures are advisory; the main session keeps working without push.
func (m *Model) startWatch(accountID string) tea.Cmd {
	a, ok := m.registry.ByID(accountID)
	if !ok || !a.Connected() {
		return nil
	}

	// The stream lives on its own context so a session replacement can
	// tear down the dedicated watch connection and its goroutine.
	ctx, cancel := context.WithCancel(m.ctx)
	a.SetWatchCancel(cancel)
	sess, gen := a.Session, a.Generation()

	return func() tea.Msg {
		events, err := sess.Watch(ctx)
		return watchStartedMsg{
			accountID:  accountID,
			generation: gen,
			events:     events,
			err:        err,
		}
	}
}

func (m Model) handleWatchStarted(msg watchStartedMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.accountID)
	if !ok || a.Stale(msg.generation) {
		return m, nil
	}
	if msg.err != nil {
		// Connection state untouched; the periodic refresher covers
		// accounts without push.
		return m, nil
	}
	return m, waitWatch(msg.accountID, msg.generation, msg.events)
}

// waitWatch blocks on the stream and feeds the next event back into
// the loop, re-armed after each delivery.
func waitWatch(accountID string, generation uint64, events <-chan mail.WatchEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return watchEventMsg{
			accountID:  accountID,
			generation: generation,
			events:     events,
			event:      ev,
			ok:         ok,
		}
	}
}

func (m Model) handleWatchEvent(msg watchEventMsg) (tea.Model, tea.Cmd) {
	a, ok := m.registry.ByID(msg.accountID)
	if !ok || a.Stale(msg.generation) {
		return m, nil
	}
	if !msg.ok {
		// Stream closed without WatchEnded; treat like an ended stream.
		return m, m.startWatch(msg.accountID)
	}

	rearm := waitWatch(msg.accountID, msg.generation, msg.events)
	action := m.reconciler.Apply(m.selectedMailbox, msg.event)

	switch action.Kind {
	case watch.ActionInsert:
		m.list.Insert(*action.Summary)
		return m, rearm

	case watch.ActionRemove:
		m.list.Remove(action.EnvelopeID)
		envelopeID, st, ctx := action.EnvelopeID, m.store, m.ctx
		return m, tea.Batch(rearm, func() tea.Msg {
			_ = st.RemoveMessage(ctx, envelopeID)
			return nil
		})

	case watch.ActionSetFlags:
		m.list.ApplyFlags(action.EnvelopeID, action.Flags)
		envelopeID, flags := action.EnvelopeID, action.Flags
		st, ctx := m.store, m.ctx
		return m, tea.Batch(rearm, func() tea.Msg {
			_ = st.ClearPendingOp(ctx, envelopeID, flags)
			return nil
		})

	case watch.ActionResync:
		if a.Connected() {
			return m, tea.Batch(rearm, syncer.SyncMessages(
				m.ctx, m.store, a.Session, a.Config.ID, a.Generation(),
				action.MailboxID, m.pageSize,
			))
		}
		return m, rearm

	case watch.ActionStatus:
		m.statusMsg = "watch: " + action.Status
		return m, rearm

	case watch.ActionRestartWatch:
		// The stream closes right after WatchEnded; stop draining the
		// old channel and reopen.
		return m, m.startWatch(msg.accountID)
	}

	return m, rearm
}
