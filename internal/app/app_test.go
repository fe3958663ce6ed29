package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jstelzer/neverlight-mail/internal/account"
	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/syncer"
	"github.com/jstelzer/neverlight-mail/internal/testutil"
)

// fakeSession mimics the real session's ordering constraint: message
// fetches need the path map a folder fetch builds.
type fakeSession struct {
	folders  []model.Folder
	messages []model.MessageSummary

	foldersFetched bool
	messageFetches int
	closed         bool
}

func (f *fakeSession) FetchFolders(context.Context) ([]model.Folder, error) {
	f.foldersFetched = true
	return f.folders, nil
}

func (f *fakeSession) FetchMessages(_ context.Context, mailboxID uint64) ([]model.MessageSummary, error) {
	f.messageFetches++
	if !f.foldersFetched {
		return nil, fmt.Errorf("unknown mailbox %d", mailboxID)
	}
	return f.messages, nil
}

func (f *fakeSession) FetchBody(context.Context, uint64) (*model.Body, error) {
	return &model.Body{}, nil
}

func (f *fakeSession) SetFlags(context.Context, uint64, uint64, []mail.FlagOp) (uint8, error) {
	return 0, nil
}

func (f *fakeSession) MoveMessage(context.Context, uint64, uint64, uint64) error { return nil }

func (f *fakeSession) Watch(context.Context) (<-chan mail.WatchEvent, error) {
	return nil, errors.New("push not supported")
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := &model.AppConfig{
		Accounts: []model.AccountConfig{{
			ID:       "acct",
			Label:    "Test",
			Server:   "imap.test",
			Port:     993,
			Username: "user",
		}},
		Display: model.DisplayConfig{PageSize: 10, RefreshIntervalSec: 300},
	}
	return New(cfg, filepath.Join(t.TempDir(), "config.yaml"), testutil.NewStore(t))
}

// collectMsgs runs a command tree and flattens batches into the
// messages they produce.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collectMsgs(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func TestStaleFlagResultReleasesPendingRecord(t *testing.T) {
	m := newTestModel(t)
	a, _ := m.registry.ByID("acct")
	a.AttachSession(&fakeSession{})
	gen := a.Generation()

	const envelopeID = uint64(101)
	if err := m.engine.BeginFlag(envelopeID, 0); err != nil {
		t.Fatal(err)
	}

	// Reconnect while the mutation is in flight.
	a.AttachSession(&fakeSession{})

	mdl, cmd := m.handleFlagResult(flagResultMsg{
		accountID:  "acct",
		generation: gen,
		envelopeID: envelopeID,
		flags:      model.FlagRead,
	})
	m = mdl.(Model)
	collectMsgs(cmd)

	if m.engine.Pending(envelopeID) {
		t.Fatal("record survived a stale result; the envelope stays locked")
	}
	if err := m.engine.BeginFlag(envelopeID, 0); err != nil {
		t.Fatalf("next mutation on the envelope refused: %v", err)
	}
}

func TestStaleMoveResultReleasesPendingRecord(t *testing.T) {
	m := newTestModel(t)
	a, _ := m.registry.ByID("acct")
	a.AttachSession(&fakeSession{})
	gen := a.Generation()

	const envelopeID = uint64(202)
	snapshot := model.MessageSummary{AccountID: "acct", EnvelopeID: envelopeID}
	if err := m.engine.BeginMove(envelopeID, snapshot, 0); err != nil {
		t.Fatal(err)
	}

	a.AttachSession(&fakeSession{})

	mdl, cmd := m.handleMoveResult(moveResultMsg{
		accountID:  "acct",
		generation: gen,
		envelopeID: envelopeID,
	})
	m = mdl.(Model)
	collectMsgs(cmd)

	if m.engine.Pending(envelopeID) {
		t.Fatal("record survived a stale result; the envelope stays locked")
	}
	// The new session's resync owns the list; the snapshot must not be
	// reinserted alongside whatever the resync delivers.
	if got := len(m.list.Messages()); got != 0 {
		t.Fatalf("list has %d messages after stale move result, want 0", got)
	}
}

func TestMessageSyncWaitsForFolderSync(t *testing.T) {
	m := newTestModel(t)
	inbox := model.MailboxID("acct", "INBOX")
	sess := &fakeSession{
		folders: []model.Folder{{
			AccountID: "acct", Name: "INBOX", Path: "INBOX", MailboxID: inbox,
		}},
		messages: []model.MessageSummary{{
			AccountID:  "acct",
			UID:        1,
			Subject:    "hello",
			MessageID:  "<m1@test>",
			EnvelopeID: model.EnvelopeID("acct", "<m1@test>"),
			MailboxID:  inbox,
			Timestamp:  1000,
		}},
	}
	m.selectedMailbox = inbox

	mdl, cmd := m.handleConnected(connectedMsg{accountID: "acct", session: sess})
	m = mdl.(Model)

	var foldersMsg syncer.FoldersSyncedMsg
	var haveFolders bool
	for _, got := range collectMsgs(cmd) {
		switch got := got.(type) {
		case syncer.MessagesSyncedMsg:
			t.Fatalf("message sync ran on a session without a path map: %+v", got)
		case syncer.FoldersSyncedMsg:
			foldersMsg, haveFolders = got, true
		}
	}
	if !haveFolders {
		t.Fatal("connecting did not start a folder sync")
	}

	mdl, cmd = m.handleFoldersSynced(foldersMsg)
	m = mdl.(Model)

	var synced *syncer.MessagesSyncedMsg
	for _, got := range collectMsgs(cmd) {
		if ms, ok := got.(syncer.MessagesSyncedMsg); ok {
			synced = &ms
		}
	}
	if synced == nil {
		t.Fatal("folder sync completion did not trigger the message sync")
	}
	if synced.Err != nil {
		t.Fatalf("message sync failed: %v", synced.Err)
	}
	if len(synced.Messages) != 1 {
		t.Fatalf("synced %d messages, want 1", len(synced.Messages))
	}
}

func TestCachedReadFailureIsLogged(t *testing.T) {
	m := newTestModel(t)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	m.handleCachedMessages(syncer.CachedMessagesMsg{
		MailboxID: 7,
		Err:       errors.New("database is locked"),
	})

	if !strings.Contains(buf.String(), "database is locked") {
		t.Fatalf("cache read failure not logged, got %q", buf.String())
	}
}

func TestFolderSwitchClearsMessageView(t *testing.T) {
	m := newTestModel(t)
	m.view.SetLoading(&model.MessageSummary{EnvelopeID: 9, Subject: "old"})

	mdl, _ := m.selectFolder(model.MailboxID("acct", "Archive"))
	m = mdl.(Model)

	if got := m.view.EnvelopeID(); got != 0 {
		t.Fatalf("detail view still shows envelope %d after folder switch", got)
	}
}

func TestResolveFolderMatchesProviderNaming(t *testing.T) {
	a := account.New(model.AccountConfig{ID: "acct"})
	a.SetFolders([]model.Folder{
		{AccountID: "acct", Name: "INBOX", Path: "INBOX", MailboxID: 1},
		{AccountID: "acct", Name: "Trash", Path: "[Gmail]/Trash", MailboxID: 2},
		{AccountID: "acct", Name: "all mail", Path: "[Gmail]/all mail", MailboxID: 3},
		{AccountID: "acct", Name: "Papierkorb", Path: "trash", MailboxID: 4},
	})

	if id, ok := resolveFolder(a, trashFolders); !ok || id != 2 {
		t.Fatalf("trash resolved to (%d, %v), want mailbox 2", id, ok)
	}
	if id, ok := resolveFolder(a, archiveFolders); !ok || id != 3 {
		t.Fatalf("archive resolved to (%d, %v), want mailbox 3", id, ok)
	}

	a.SetFolders([]model.Folder{
		{AccountID: "acct", Name: "Papierkorb", Path: "trash", MailboxID: 4},
	})
	if id, ok := resolveFolder(a, trashFolders); !ok || id != 4 {
		t.Fatalf("path-only match resolved to (%d, %v), want mailbox 4", id, ok)
	}

	if _, ok := resolveFolder(a, archiveFolders); ok {
		t.Fatal("archive should not resolve on an account without one")
	}
}
