// Package watch decides how server-push events change the in-memory
// list and the cache. The policy is pure so it can be tested without a
// connection; the app executes the returned action.
package watch

import (
	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
)

// ActionKind discriminates what the app should do with an event.
type ActionKind int

const (
	// ActionNone drops the event.
	ActionNone ActionKind = iota

	// ActionInsert adds Summary to the selected list and the cache.
	ActionInsert

	// ActionRemove deletes the envelope from the list and the cache.
	ActionRemove

	// ActionSetFlags applies Flags to the envelope in list and cache.
	ActionSetFlags

	// ActionResync re-runs a full mailbox sync through the loader.
	ActionResync

	// ActionStatus surfaces a stream error on the status line. The
	// account's connection state is not touched; the watch stream is
	// advisory and its failure does not mean the session is down.
	ActionStatus

	// ActionRestartWatch re-arms the watch stream after it ended.
	ActionRestartWatch
)

// Action is the reconciler's verdict on one event.
type Action struct {
	Kind       ActionKind
	MailboxID  uint64
	EnvelopeID uint64
	Flags      uint8
	Summary    *model.MessageSummary
	Status     string
}

// Reconciler applies the event policy. Pending reports whether an
// envelope has an in-flight optimistic mutation; flag pushes for such
// envelopes are suppressed entirely so a concurrent server change
// cannot fight the local state or its rollback.
type Reconciler struct {
	Pending func(envelopeID uint64) bool
}

// Apply translates one watch event into an action, given the mailbox
// currently on screen. Events for other mailboxes are dropped; the
// periodic refresher reconciles those.
func (r Reconciler) Apply(selectedMailbox uint64, ev mail.WatchEvent) Action {
	switch ev.Kind {
	case mail.WatchNewMessage:
		if ev.MailboxID != selectedMailbox || ev.Summary == nil {
			return Action{Kind: ActionNone}
		}
		return Action{
			Kind:       ActionInsert,
			MailboxID:  ev.MailboxID,
			EnvelopeID: ev.EnvelopeID,
			Summary:    ev.Summary,
		}

	case mail.WatchMessageRemoved:
		if ev.MailboxID != selectedMailbox {
			return Action{Kind: ActionNone}
		}
		return Action{
			Kind:       ActionRemove,
			MailboxID:  ev.MailboxID,
			EnvelopeID: ev.EnvelopeID,
		}

	case mail.WatchFlagsChanged:
		if ev.MailboxID != selectedMailbox {
			return Action{Kind: ActionNone}
		}
		if r.Pending != nil && r.Pending(ev.EnvelopeID) {
			return Action{Kind: ActionNone}
		}
		return Action{
			Kind:       ActionSetFlags,
			MailboxID:  ev.MailboxID,
			EnvelopeID: ev.EnvelopeID,
			Flags:      ev.Flags,
		}

	case mail.WatchRescan:
		if ev.MailboxID != selectedMailbox {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionResync, MailboxID: ev.MailboxID}

	case mail.WatchError:
		return Action{Kind: ActionStatus, Status: ev.Err}

	case mail.WatchEnded:
		return Action{Kind: ActionRestartWatch}
	}

	return Action{Kind: ActionNone}
}
