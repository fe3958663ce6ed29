// Package mail provides the live mailbox session: connect, fetch,
// mutate, and the server-push watch stream. The rest of the
// application consumes the Session interface so tests can substitute
// a fake.
package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// AuthError indicates that authentication failed for an account.
// Callers surface it as a re-authentication prompt instead of a plain
// connection error.
type AuthError struct {
	AccountID string
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.AccountID, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// FlagOp is a single flag change requested of the server.
type FlagOp struct {
	// Flag is one of model.FlagRead or model.FlagStarred.
	Flag uint8

	// Set adds the flag; false removes it.
	Set bool
}

// WatchEventKind discriminates the server-push event variants.
type WatchEventKind int

const (
	// WatchNewMessage signals a message arrived in a mailbox.
	WatchNewMessage WatchEventKind = iota

	// WatchMessageRemoved signals a message left a mailbox.
	WatchMessageRemoved

	// WatchFlagsChanged signals a server-side flag update.
	WatchFlagsChanged

	// WatchRescan asks for a full re-sync of the mailbox; emitted when
	// the stream cannot attribute a change to a single envelope.
	WatchRescan

	// WatchError reports a stream failure. The stream may still emit
	// WatchEnded afterwards.
	WatchError

	// WatchEnded signals the stream is finished and will emit nothing
	// further.
	WatchEnded
)

// WatchEvent is one entry in an account's server-push stream.
type WatchEvent struct {
	Kind       WatchEventKind
	MailboxID  uint64
	EnvelopeID uint64
	Flags      uint8
	Err        string

	// Summary carries the full header for WatchNewMessage so the
	// reconciler can insert it without a round-trip.
	Summary *model.MessageSummary
}

// Session is one live connection to a mail server. Implementations
// must be safe for use from multiple background tasks.
type Session interface {
	// FetchFolders lists all folders with their unread/total counts.
	FetchFolders(ctx context.Context) ([]model.Folder, error)

	// FetchMessages lists the headers of a mailbox, newest first.
	FetchMessages(ctx context.Context, mailboxID uint64) ([]model.MessageSummary, error)

	// FetchBody retrieves and parses the body of a single message.
	FetchBody(ctx context.Context, envelopeID uint64) (*model.Body, error)

	// SetFlags applies flag operations and returns the resulting flag
	// byte.
	SetFlags(ctx context.Context, envelopeID, mailboxID uint64, ops []FlagOp) (uint8, error)

	// MoveMessage moves a message between two mailboxes of the same
	// account.
	MoveMessage(ctx context.Context, envelopeID, sourceMailboxID, destMailboxID uint64) error

	// Watch opens the server-push event stream. The channel closes
	// after a WatchEnded event or when ctx is cancelled.
	Watch(ctx context.Context) (<-chan WatchEvent, error)

	// Close tears the connection down. In-flight operations fail.
	Close() error
}
