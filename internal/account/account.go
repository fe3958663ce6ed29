// Package account holds the per-account connection state machine and
// the registry routing mailbox identities back to their account. All
// state here is owned by the event loop; nothing is goroutine-safe and
// nothing needs to be.
package account

import (
	"context"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
)

// Account is one configured mail account: its config, the live session
// when connected, the cached folder list, and the connection state.
type Account struct {
	Config model.AccountConfig

	// Session is nil unless the account is connected.
	Session mail.Session

	// Conn is the lifecycle state shown in the sidebar. Error is sticky
	// until an explicit reconnect.
	Conn model.ConnectionState

	Folders []model.Folder

	// generation increments on every session replacement. Async results
	// carry the generation they started under; the handlers drop any
	// result whose generation no longer matches.
	generation uint64

	// byPath maps folder path to mailbox identity, rebuilt from Folders.
	byPath map[string]uint64

	// watchCancel stops the session's push stream. The watch holds a
	// dedicated connection, so closing the session does not end it.
	watchCancel context.CancelFunc
}

// New returns a disconnected account for the given config.
func New(cfg model.AccountConfig) *Account {
	return &Account{
		Config: cfg,
		Conn:   model.Disconnected(),
		byPath: make(map[string]uint64),
	}
}

// Generation returns the current session generation.
func (a *Account) Generation() uint64 { return a.generation }

// Stale reports whether an async result started under gen is outdated.
func (a *Account) Stale(gen uint64) bool { return gen != a.generation }

// AttachSession installs a freshly connected session, invalidating all
// in-flight results from the previous one. Returns the new generation.
func (a *Account) AttachSession(s mail.Session) uint64 {
	a.cancelWatch()
	if a.Session != nil {
		_ = a.Session.Close()
	}
	a.Session = s
	a.generation++
	a.Conn = model.Connected()
	return a.generation
}

// DropSession closes and clears the session. A non-empty reason puts
// the account in the Error state; otherwise it becomes Disconnected.
func (a *Account) DropSession(reason string) {
	a.cancelWatch()
	if a.Session != nil {
		_ = a.Session.Close()
		a.Session = nil
	}
	a.generation++
	if reason != "" {
		a.Conn = model.ConnFailed(reason)
	} else {
		a.Conn = model.Disconnected()
	}
}

// SetWatchCancel records the cancel for the session's watch stream,
// stopping any previous one first.
func (a *Account) SetWatchCancel(cancel context.CancelFunc) {
	a.cancelWatch()
	a.watchCancel = cancel
}

func (a *Account) cancelWatch() {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
}

// SetFolders replaces the folder list and rebuilds the path map. The
// map is cleared first so folders deleted on the server do not linger.
func (a *Account) SetFolders(folders []model.Folder) {
	a.Folders = folders
	a.byPath = make(map[string]uint64, len(folders))
	for _, f := range folders {
		a.byPath[f.Path] = f.MailboxID
	}
}

// MailboxByPath resolves a folder path to its mailbox identity.
func (a *Account) MailboxByPath(path string) (uint64, bool) {
	id, ok := a.byPath[path]
	return id, ok
}

// Folder returns the folder with the given mailbox identity.
func (a *Account) Folder(mailboxID uint64) (*model.Folder, bool) {
	for i := range a.Folders {
		if a.Folders[i].MailboxID == mailboxID {
			return &a.Folders[i], true
		}
	}
	return nil, false
}

// Connected reports whether a live session is attached.
func (a *Account) Connected() bool { return a.Session != nil }
