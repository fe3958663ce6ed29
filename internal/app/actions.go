package app

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/account"
	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/mutate"
)

// flagResultMsg carries the server's answer to a flag mutation.
type flagResultMsg struct {
	accountID  string
	generation uint64
	envelopeID uint64
	flags      uint8
	err        error
}

// moveResultMsg carries the server's answer to a move mutation.
type moveResultMsg struct {
	accountID  string
	generation uint64
	envelopeID uint64
	err        error
}

// errStaleSession resolves records whose result arrived after the
// session that started them was replaced.
var errStaleSession = errors.New("session replaced")

// archiveFolders and trashFolders are tried in order when resolving
// the move destinations; servers differ in naming.
var (
	archiveFolders = []string{"Archive", "Archives", "All Mail"}
	trashFolders   = []string{"Trash", "Deleted", "Deleted Items", "Deleted Messages"}
)

// toggleFlag begins an optimistic flag mutation on the selected
// message: flip locally, persist the pending marker, then tell the
// server.
func (m Model) toggleFlag(flag uint8) (tea.Model, tea.Cmd) {
	sel, ok := m.list.Selected()
	if !ok {
		return m, nil
	}
	a, ok := m.registry.ByMailbox(sel.MailboxID)
	if !ok || !a.Connected() {
		m.statusMsg = "not connected"
		return m, nil
	}

	prevFlags := sel.Flags()
	newFlags := prevFlags ^ flag

	if err := m.engine.BeginFlag(sel.EnvelopeID, prevFlags); err != nil {
		if errors.Is(err, mutate.ErrPending) {
			m.statusMsg = "operation in progress"
		}
		return m, nil
	}

	// Manually marking unread cancels a pending auto-read.
	if flag == model.FlagRead && prevFlags&model.FlagRead != 0 {
		m.engine.SuppressAutoRead(sel.EnvelopeID)
	}

	m.list.ApplyFlags(sel.EnvelopeID, newFlags)
	m.statusMsg = ""

	envelopeID, mailboxID := sel.EnvelopeID, sel.MailboxID
	accountID, gen := a.Config.ID, a.Generation()
	sess, st, ctx := a.Session, m.store, m.ctx
	op := mail.FlagOp{Flag: flag, Set: newFlags&flag != 0}

	return m, func() tea.Msg {
		_ = st.UpdateFlags(ctx, envelopeID, newFlags, "flag")
		confirmed, err := sess.SetFlags(ctx, envelopeID, mailboxID, []mail.FlagOp{op})
		if err != nil {
			confirmed = newFlags
		}
		return flagResultMsg{
			accountID:  accountID,
			generation: gen,
			envelopeID: envelopeID,
			flags:      confirmed,
			err:        err,
		}
	}
}

func (m Model) handleFlagResult(msg flagResultMsg) (tea.Model, tea.Cmd) {
	if a, ok := m.registry.ByID(msg.accountID); ok && a.Stale(msg.generation) {
		// The session was replaced mid-flight, so the outcome was never
		// observed. The record must still be released or the envelope
		// stays locked; revert and let the reconnect resync settle it.
		if res, ok := m.engine.CompleteFlag(msg.envelopeID, errStaleSession); ok {
			m.list.ApplyFlags(msg.envelopeID, res.PrevFlags)
			envelopeID, st, ctx := msg.envelopeID, m.store, m.ctx
			return m, func() tea.Msg {
				_ = st.RevertPendingOp(ctx, envelopeID)
				return nil
			}
		}
		return m, nil
	}

	res, ok := m.engine.CompleteFlag(msg.envelopeID, msg.err)
	if !ok {
		return m, nil
	}

	envelopeID, st, ctx := msg.envelopeID, m.store, m.ctx
	if res.Confirmed {
		flags := msg.flags
		m.list.ApplyFlags(envelopeID, flags)
		return m, func() tea.Msg {
			_ = st.ClearPendingOp(ctx, envelopeID, flags)
			return nil
		}
	}

	m.list.ApplyFlags(envelopeID, res.PrevFlags)
	m.statusMsg = "flag change failed: " + msg.err.Error()
	return m, func() tea.Msg {
		_ = st.RevertPendingOp(ctx, envelopeID)
		return nil
	}
}

// moveSelected removes the selected message optimistically and asks
// the server to move it to the first matching destination folder.
func (m Model) moveSelected(destNames []string) (tea.Model, tea.Cmd) {
	sel, ok := m.list.Selected()
	if !ok {
		return m, nil
	}
	a, ok := m.registry.ByMailbox(sel.MailboxID)
	if !ok || !a.Connected() {
		m.statusMsg = "not connected"
		return m, nil
	}

	destMailbox, ok := resolveFolder(a, destNames)
	if !ok {
		m.statusMsg = "no " + destNames[0] + " folder on this account"
		return m, nil
	}
	if destMailbox == sel.MailboxID {
		return m, nil
	}

	envelopeID, sourceMailbox := sel.EnvelopeID, sel.MailboxID
	snapshot, index, removed := m.list.Remove(envelopeID)
	if !removed {
		return m, nil
	}
	if err := m.engine.BeginMove(envelopeID, snapshot, index); err != nil {
		m.list.InsertAt(snapshot, index)
		if errors.Is(err, mutate.ErrPending) {
			m.statusMsg = "operation in progress"
		}
		return m, nil
	}
	m.statusMsg = ""

	accountID, gen := a.Config.ID, a.Generation()
	sess, st, ctx := a.Session, m.store, m.ctx
	flags := snapshot.Flags()

	return m, func() tea.Msg {
		// Marker first so a crash mid-move is recoverable on restart.
		_ = st.UpdateFlags(ctx, envelopeID, flags, fmt.Sprintf("move:%d", destMailbox))
		err := sess.MoveMessage(ctx, envelopeID, sourceMailbox, destMailbox)
		if err == nil {
			_ = st.RemoveMessage(ctx, envelopeID)
		}
		return moveResultMsg{
			accountID:  accountID,
			generation: gen,
			envelopeID: envelopeID,
			err:        err,
		}
	}
}

func (m Model) handleMoveResult(msg moveResultMsg) (tea.Model, tea.Cmd) {
	if a, ok := m.registry.ByID(msg.accountID); ok && a.Stale(msg.generation) {
		// Release the record without touching the list; the resync that
		// follows reconnect owns the list contents now.
		if _, ok := m.engine.CompleteMove(msg.envelopeID, errStaleSession); ok {
			envelopeID, st, ctx := msg.envelopeID, m.store, m.ctx
			return m, func() tea.Msg {
				_ = st.RevertPendingOp(ctx, envelopeID)
				return nil
			}
		}
		return m, nil
	}

	res, ok := m.engine.CompleteMove(msg.envelopeID, msg.err)
	if !ok || res.Confirmed {
		return m, nil
	}

	// Failed move: the message comes back where it was.
	m.list.InsertAt(res.Snapshot, res.Index)
	m.statusMsg = "move failed: " + msg.err.Error()
	envelopeID, st, ctx := msg.envelopeID, m.store, m.ctx
	return m, func() tea.Msg {
		_ = st.RevertPendingOp(ctx, envelopeID)
		return nil
	}
}

// resolveFolder finds the first folder whose leaf name or full path
// matches any of the candidates. Matching is case-insensitive; servers
// disagree on both casing and nesting ("Trash", "[Gmail]/Trash",
// "INBOX.trash").
func resolveFolder(a *account.Account, names []string) (uint64, bool) {
	for _, name := range names {
		for _, f := range a.Folders {
			if strings.EqualFold(f.Name, name) || strings.EqualFold(f.Path, name) {
				return f.MailboxID, true
			}
		}
	}
	return 0, false
}
