// Package syncer implements the cache-first loading protocol: render
// cached data immediately, fetch from the server in the background,
// persist, then re-read the cache so the UI always shows what was
// written. Every entry point is a tea.Cmd so results flow back through
// the event loop as messages.
package syncer

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/store"
	"github.com/jstelzer/neverlight-mail/internal/thread"
)

// MaxBodyRetries bounds the deferred body reload attempts while an
// account is still connecting.
const MaxBodyRetries = 5

// CachedFoldersMsg carries the cached folder list, delivered before
// any network traffic.
type CachedFoldersMsg struct {
	AccountID string
	Folders   []model.Folder
	Err       error
}

// FoldersSyncedMsg carries the server folder list after it was saved
// to the cache.
type FoldersSyncedMsg struct {
	AccountID  string
	Generation uint64
	Folders    []model.Folder
	Err        error
}

// CachedMessagesMsg carries one cached page of a mailbox.
type CachedMessagesMsg struct {
	MailboxID uint64
	Offset    int
	Messages  []model.MessageSummary
	HasMore   bool
	Err       error
}

// MessagesSyncedMsg carries the first page re-read from the cache
// after a server sync was persisted.
type MessagesSyncedMsg struct {
	AccountID  string
	Generation uint64
	MailboxID  uint64
	Messages   []model.MessageSummary
	HasMore    bool
	Err        error
}

// BodyLoadedMsg carries a message body, from cache or server.
// Deferred means no session was available; the caller may retry until
// MaxBodyRetries.
type BodyLoadedMsg struct {
	MailboxID  uint64
	EnvelopeID uint64
	Body       *model.Body
	FromCache  bool
	Deferred   bool
	Attempt    int
	Err        error
}

// LoadCachedFolders reads the folder list from the cache only.
func LoadCachedFolders(ctx context.Context, st store.Store, accountID string) tea.Cmd {
	return func() tea.Msg {
		folders, err := st.LoadFolders(ctx, accountID)
		return CachedFoldersMsg{AccountID: accountID, Folders: folders, Err: err}
	}
}

// SyncFolders fetches the folder list from the server, persists it,
// and reports the fetched list. Cache write failures are not fatal;
// the fetched data still reaches the UI.
func SyncFolders(
	ctx context.Context,
	st store.Store,
	sess mail.Session,
	accountID string,
	generation uint64,
) tea.Cmd {
	return func() tea.Msg {
		folders, err := sess.FetchFolders(ctx)
		if err != nil {
			return FoldersSyncedMsg{AccountID: accountID, Generation: generation, Err: err}
		}
		if err := st.SaveFolders(ctx, accountID, folders); err != nil {
			log.Printf("failed to cache folders for %s: %v", accountID, err)
		}
		return FoldersSyncedMsg{
			AccountID:  accountID,
			Generation: generation,
			Folders:    folders,
		}
	}
}

// LoadCachedMessages reads one page of a mailbox from the cache.
func LoadCachedMessages(
	ctx context.Context,
	st store.Store,
	mailboxID uint64,
	pageSize, offset int,
) tea.Cmd {
	return func() tea.Msg {
		page, err := st.LoadMessages(ctx, mailboxID, pageSize, offset)
		return CachedMessagesMsg{
			MailboxID: mailboxID,
			Offset:    offset,
			Messages:  page,
			HasMore:   len(page) == pageSize,
			Err:       err,
		}
	}
}

// SyncMessages fetches a mailbox from the server, replaces the cached
// contents, and re-reads the first page from the cache. Returning the
// re-read page rather than the fetch result guarantees the UI shows
// exactly what the cache now holds.
func SyncMessages(
	ctx context.Context,
	st store.Store,
	sess mail.Session,
	accountID string,
	generation uint64,
	mailboxID uint64,
	pageSize int,
) tea.Cmd {
	return func() tea.Msg {
		messages, err := sess.FetchMessages(ctx, mailboxID)
		if err != nil {
			return MessagesSyncedMsg{
				AccountID:  accountID,
				Generation: generation,
				MailboxID:  mailboxID,
				Err:        err,
			}
		}

		// Thread structure is derived here so the cache rows carry it.
		thread.Assign(messages)

		if err := st.SaveMessages(ctx, mailboxID, messages); err != nil {
			// Cache is an optimization; serve the fetched data directly.
			log.Printf("failed to cache mailbox %d: %v", mailboxID, err)
			return MessagesSyncedMsg{
				AccountID:  accountID,
				Generation: generation,
				MailboxID:  mailboxID,
				Messages:   truncate(messages, pageSize),
				HasMore:    len(messages) > pageSize,
			}
		}

		page, err := st.LoadMessages(ctx, mailboxID, pageSize, 0)
		if err != nil {
			return MessagesSyncedMsg{
				AccountID:  accountID,
				Generation: generation,
				MailboxID:  mailboxID,
				Messages:   truncate(messages, pageSize),
				HasMore:    len(messages) > pageSize,
			}
		}
		return MessagesSyncedMsg{
			AccountID:  accountID,
			Generation: generation,
			MailboxID:  mailboxID,
			Messages:   page,
			HasMore:    len(page) == pageSize,
		}
	}
}

// LoadBody resolves a message body cache-first. sess may be nil while
// the account is connecting; the miss is then reported as deferred so
// the caller can retry once the session is up.
func LoadBody(
	ctx context.Context,
	st store.Store,
	sess mail.Session,
	mailboxID, envelopeID uint64,
	attempt int,
) tea.Cmd {
	return func() tea.Msg {
		body, err := st.LoadBody(ctx, envelopeID)
		if err == nil && body != nil {
			return BodyLoadedMsg{
				MailboxID:  mailboxID,
				EnvelopeID: envelopeID,
				Body:       body,
				FromCache:  true,
				Attempt:    attempt,
			}
		}

		if sess == nil {
			return BodyLoadedMsg{
				MailboxID:  mailboxID,
				EnvelopeID: envelopeID,
				Deferred:   attempt < MaxBodyRetries,
				Attempt:    attempt,
			}
		}

		fetched, err := sess.FetchBody(ctx, envelopeID)
		if err != nil {
			return BodyLoadedMsg{
				MailboxID:  mailboxID,
				EnvelopeID: envelopeID,
				Attempt:    attempt,
				Err:        err,
			}
		}
		if err := st.SaveBody(ctx, envelopeID, *fetched); err != nil {
			log.Printf("failed to cache body %d: %v", envelopeID, err)
		}
		return BodyLoadedMsg{
			MailboxID:  mailboxID,
			EnvelopeID: envelopeID,
			Body:       fetched,
			Attempt:    attempt,
		}
	}
}

func truncate(messages []model.MessageSummary, n int) []model.MessageSummary {
	if len(messages) <= n {
		return messages
	}
	return messages[:n]
}
