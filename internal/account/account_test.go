package account

import (
	"context"
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/mail"
	"github.com/jstelzer/neverlight-mail/internal/model"
)

type fakeSession struct {
	closed bool
}

func (f *fakeSession) FetchFolders(context.Context) ([]model.Folder, error) { return nil, nil }
func (f *fakeSession) FetchMessages(context.Context, uint64) ([]model.MessageSummary, error) {
	return nil, nil
}
func (f *fakeSession) FetchBody(context.Context, uint64) (*model.Body, error) { return nil, nil }
func (f *fakeSession) SetFlags(context.Context, uint64, uint64, []mail.FlagOp) (uint8, error) {
	return 0, nil
}
func (f *fakeSession) MoveMessage(context.Context, uint64, uint64, uint64) error { return nil }
func (f *fakeSession) Watch(context.Context) (<-chan mail.WatchEvent, error)     { return nil, nil }
func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func testFolder(accountID, path string) model.Folder {
	return model.Folder{
		AccountID: accountID,
		Name:      path,
		Path:      path,
		MailboxID: model.MailboxID(accountID, path),
	}
}

func TestSetFoldersReplacesPathMap(t *testing.T) {
	a := New(model.AccountConfig{ID: "acct-1"})
	a.SetFolders([]model.Folder{
		testFolder("acct-1", "INBOX"),
		testFolder("acct-1", "Archive"),
	})

	if _, ok := a.MailboxByPath("Archive"); !ok {
		t.Fatal("Archive should resolve after first sync")
	}

	// Archive disappeared on the server; resync must not leave it behind.
	a.SetFolders([]model.Folder{testFolder("acct-1", "INBOX")})

	if _, ok := a.MailboxByPath("Archive"); ok {
		t.Error("Archive should not resolve after it was removed")
	}
	if _, ok := a.MailboxByPath("INBOX"); !ok {
		t.Error("INBOX should still resolve")
	}
}

func TestGenerationInvalidatesStaleResults(t *testing.T) {
	a := New(model.AccountConfig{ID: "acct-1"})

	gen := a.AttachSession(&fakeSession{})
	if a.Stale(gen) {
		t.Fatal("result from the current session should not be stale")
	}

	prev := &fakeSession{}
	a.Session = prev
	a.AttachSession(&fakeSession{})
	if !prev.closed {
		t.Error("replaced session should be closed")
	}
	if !a.Stale(gen) {
		t.Error("result from the replaced session should be stale")
	}
}

func TestDropSessionStates(t *testing.T) {
	a := New(model.AccountConfig{ID: "acct-1"})
	s := &fakeSession{}
	a.AttachSession(s)

	a.DropSession("connection reset")
	if !s.closed {
		t.Error("session should be closed on drop")
	}
	if !a.Conn.IsError() {
		t.Errorf("drop with reason should enter Error state, got %v", a.Conn.State)
	}

	a.DropSession("")
	if a.Conn.State != model.ConnDisconnected {
		t.Errorf("drop without reason should disconnect, got %v", a.Conn.State)
	}
}

func TestSessionReplacementCancelsWatch(t *testing.T) {
	a := New(model.AccountConfig{ID: "acct-1"})
	a.AttachSession(&fakeSession{})

	cancelled := false
	a.SetWatchCancel(func() { cancelled = true })

	// Each reconnect opens a fresh watch; the old one must not keep its
	// dedicated connection and goroutine alive.
	a.AttachSession(&fakeSession{})
	if !cancelled {
		t.Error("attaching a new session should cancel the previous watch")
	}

	cancelled = false
	a.SetWatchCancel(func() { cancelled = true })
	a.DropSession("connection reset")
	if !cancelled {
		t.Error("dropping the session should cancel the watch")
	}
}

func TestSetWatchCancelReplacesPreviousWatch(t *testing.T) {
	a := New(model.AccountConfig{ID: "acct-1"})

	first := false
	a.SetWatchCancel(func() { first = true })
	a.SetWatchCancel(func() {})
	if !first {
		t.Error("installing a new watch cancel should stop the previous watch")
	}
}

func TestRegistryRoutesMailboxToAccount(t *testing.T) {
	one := New(model.AccountConfig{ID: "one"})
	one.SetFolders([]model.Folder{testFolder("one", "INBOX")})
	two := New(model.AccountConfig{ID: "two"})
	two.SetFolders([]model.Folder{testFolder("two", "INBOX")})

	r := NewRegistry([]*Account{one, two})

	got, ok := r.ByMailbox(model.MailboxID("two", "INBOX"))
	if !ok {
		t.Fatal("mailbox of account two should route")
	}
	if got.Config.ID != "two" {
		t.Errorf("routed to %q, want %q", got.Config.ID, "two")
	}

	if _, ok := r.ByMailbox(model.MailboxID("three", "INBOX")); ok {
		t.Error("unknown mailbox should not route")
	}
}

func TestRegistryRemove(t *testing.T) {
	one := New(model.AccountConfig{ID: "one"})
	two := New(model.AccountConfig{ID: "two"})
	s := &fakeSession{}
	two.AttachSession(s)

	r := NewRegistry([]*Account{one, two})
	r.SetActive("two")

	removed, ok := r.Remove("two")
	if !ok {
		t.Fatal("remove should find account two")
	}
	if removed.Config.ID != "two" {
		t.Errorf("removed %q, want %q", removed.Config.ID, "two")
	}
	if !s.closed {
		t.Error("removal should close the session")
	}
	if r.Active() == nil || r.Active().Config.ID != "one" {
		t.Error("active account should fall back to the remaining one")
	}
	if _, ok := r.ByID("two"); ok {
		t.Error("removed account should not resolve")
	}
}
