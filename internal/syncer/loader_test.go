package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
	"github.com/jstelzer/neverlight-mail/internal/store"
	"github.com/jstelzer/neverlight-mail/internal/testutil"
)

type fakeSession struct {
	folders  []model.Folder
	messages []model.MessageSummary
	bodies   map[uint64]model.Body
	err      error

	bodyFetches int
}

func (f *fakeSession) FetchFolders(context.Context) ([]model.Folder, error) {
	return f.folders, f.err
}

func (f *fakeSession) FetchMessages(context.Context, uint64) ([]model.MessageSummary, error) {
	return f.messages, f.err
}

func (f *fakeSession) FetchBody(_ context.Context, envelopeID uint64) (*model.Body, error) {
	f.bodyFetches++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bodies[envelopeID]
	if !ok {
		return nil, errors.New("no such message")
	}
	return &b, nil
}

func (f *fakeSession) SetFlags(context.Context, uint64, uint64, []mail.FlagOp) (uint8, error) {
	return 0, f.err
}

func (f *fakeSession) MoveMessage(context.Context, uint64, uint64, uint64) error {
	return f.err
}

func (f *fakeSession) Watch(context.Context) (<-chan mail.WatchEvent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSession) Close() error { return nil }

func makeMessages(accountID string, mailboxID uint64, n int) []model.MessageSummary {
	out := make([]model.MessageSummary, n)
	for i := range out {
		msgID := fmt.Sprintf("<m%d@test>", i)
		out[i] = model.MessageSummary{
			AccountID:  accountID,
			UID:        uint32(i + 1),
			Subject:    fmt.Sprintf("message %d", i),
			MessageID:  msgID,
			EnvelopeID: model.EnvelopeID(accountID, msgID),
			MailboxID:  mailboxID,
			Timestamp:  int64(1000 + i),
		}
	}
	return out
}

func TestCachedMessagesRenderWithNetworkDown(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	if err := st.SaveMessages(ctx, mailboxID, makeMessages("acct", mailboxID, 3)); err != nil {
		t.Fatal(err)
	}

	msg := LoadCachedMessages(ctx, st, mailboxID, 50, 0)()
	got, ok := msg.(CachedMessagesMsg)
	if !ok {
		t.Fatalf("got %T, want CachedMessagesMsg", msg)
	}
	if got.Err != nil {
		t.Fatal(got.Err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("cached page has %d messages, want 3", len(got.Messages))
	}
	if got.HasMore {
		t.Error("partial page should not report more")
	}

	// The network path failing afterwards must not undo the cached render.
	sess := &fakeSession{err: errors.New("connection refused")}
	syncMsg := SyncMessages(ctx, st, sess, "acct", 1, mailboxID, 50)()
	synced := syncMsg.(MessagesSyncedMsg)
	if synced.Err == nil {
		t.Fatal("sync should report the network error")
	}

	msg = LoadCachedMessages(ctx, st, mailboxID, 50, 0)()
	if got := msg.(CachedMessagesMsg); len(got.Messages) != 3 {
		t.Errorf("cache lost data after failed sync: %d messages", len(got.Messages))
	}
}

func TestSyncMessagesReadsBackFromCache(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	sess := &fakeSession{messages: makeMessages("acct", mailboxID, 5)}
	msg := SyncMessages(ctx, st, sess, "acct", 1, mailboxID, 50)()
	got := msg.(MessagesSyncedMsg)
	if got.Err != nil {
		t.Fatal(got.Err)
	}
	if len(got.Messages) != 5 {
		t.Fatalf("synced page has %d messages, want 5", len(got.Messages))
	}

	// Newest first, which is the cache's read order.
	for i := 1; i < len(got.Messages); i++ {
		if got.Messages[i-1].Timestamp < got.Messages[i].Timestamp {
			t.Fatalf("page not newest-first at %d", i)
		}
	}

	cached, err := st.LoadMessages(ctx, mailboxID, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != len(got.Messages) {
		t.Errorf("result diverges from cache: %d vs %d", len(got.Messages), len(cached))
	}
}

func TestSyncMessagesHasMoreBoundary(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	sess := &fakeSession{messages: makeMessages("acct", mailboxID, 4)}
	got := SyncMessages(ctx, st, sess, "acct", 1, mailboxID, 4)().(MessagesSyncedMsg)
	if !got.HasMore {
		t.Error("a full page must report more, even when it is the last one")
	}

	sess = &fakeSession{messages: makeMessages("acct", mailboxID, 3)}
	got = SyncMessages(ctx, st, sess, "acct", 1, mailboxID, 4)().(MessagesSyncedMsg)
	if got.HasMore {
		t.Error("a short page must not report more")
	}
}

func TestSyncMessagesServesFetchWhenCacheDisabled(t *testing.T) {
	ctx := context.Background()
	mailboxID := model.MailboxID("acct", "INBOX")

	// Without a cache the fetched page must reach the UI directly.
	sess := &fakeSession{messages: makeMessages("acct", mailboxID, 5)}
	got := SyncMessages(ctx, store.NewNoopStore(), sess, "acct", 1, mailboxID, 4)().(MessagesSyncedMsg)
	if got.Err != nil {
		t.Fatal(got.Err)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("page has %d messages, want 4", len(got.Messages))
	}
	if !got.HasMore {
		t.Error("truncated fetch should report more")
	}
}

func TestSyncFoldersPersists(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)

	sess := &fakeSession{folders: []model.Folder{
		{AccountID: "acct", Name: "INBOX", Path: "INBOX", MailboxID: model.MailboxID("acct", "INBOX")},
	}}
	got := SyncFolders(ctx, st, sess, "acct", 1)().(FoldersSyncedMsg)
	if got.Err != nil {
		t.Fatal(got.Err)
	}

	cached := LoadCachedFolders(ctx, st, "acct")().(CachedFoldersMsg)
	if len(cached.Folders) != 1 || cached.Folders[0].Path != "INBOX" {
		t.Errorf("cache after folder sync = %+v", cached.Folders)
	}
}

func TestLoadBodyCacheFirst(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	envelopeID := model.EnvelopeID("acct", "<m0@test>")

	sess := &fakeSession{bodies: map[uint64]model.Body{
		envelopeID: {Text: "hello"},
	}}

	got := LoadBody(ctx, st, sess, 1, envelopeID, 0)().(BodyLoadedMsg)
	if got.Err != nil {
		t.Fatal(got.Err)
	}
	if got.FromCache {
		t.Error("first load should come from the server")
	}
	if got.Body == nil || got.Body.Text != "hello" {
		t.Fatalf("body = %+v", got.Body)
	}

	got = LoadBody(ctx, st, sess, 1, envelopeID, 0)().(BodyLoadedMsg)
	if !got.FromCache {
		t.Error("second load should hit the cache")
	}
	if sess.bodyFetches != 1 {
		t.Errorf("server fetched %d times, want 1", sess.bodyFetches)
	}
}

func TestLoadBodyDefersWithoutSession(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	envelopeID := model.EnvelopeID("acct", "<m0@test>")

	got := LoadBody(ctx, st, nil, 1, envelopeID, 0)().(BodyLoadedMsg)
	if !got.Deferred {
		t.Error("miss without a session should defer")
	}

	got = LoadBody(ctx, st, nil, 1, envelopeID, MaxBodyRetries)().(BodyLoadedMsg)
	if got.Deferred {
		t.Error("retries must stop at the bound")
	}
}
