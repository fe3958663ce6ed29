package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeMessage(accountID string, mailboxID uint64, i int) model.MessageSummary {
	msgID := fmt.Sprintf("<m%d@test>", i)
	return model.MessageSummary{
		AccountID:  accountID,
		UID:        uint32(i + 1),
		Subject:    fmt.Sprintf("subject %d", i),
		From:       "someone@example.com",
		MessageID:  msgID,
		EnvelopeID: model.EnvelopeID(accountID, msgID),
		MailboxID:  mailboxID,
		Timestamp:  int64(1000 + i),
	}
}

func TestSaveMessagesReadYourWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	first := []model.MessageSummary{
		makeMessage("acct", mailboxID, 0),
		makeMessage("acct", mailboxID, 1),
	}
	if err := s.SaveMessages(ctx, mailboxID, first); err != nil {
		t.Fatal(err)
	}

	// Replacement must be total: a read after the second save sees
	// exactly the second set, not a union.
	second := []model.MessageSummary{
		makeMessage("acct", mailboxID, 2),
	}
	if err := s.SaveMessages(ctx, mailboxID, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadMessages(ctx, mailboxID, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d messages, want 1", len(got))
	}
	if got[0].EnvelopeID != second[0].EnvelopeID {
		t.Errorf("loaded envelope %d, want %d", got[0].EnvelopeID, second[0].EnvelopeID)
	}
}

func TestLoadMessagesPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	var all []model.MessageSummary
	for i := 0; i < 7; i++ {
		all = append(all, makeMessage("acct", mailboxID, i))
	}
	if err := s.SaveMessages(ctx, mailboxID, all); err != nil {
		t.Fatal(err)
	}

	page, err := s.LoadMessages(ctx, mailboxID, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 {
		t.Fatalf("first page has %d, want 3", len(page))
	}
	// Newest first.
	if page[0].Timestamp != 1006 {
		t.Errorf("first page starts at timestamp %d, want 1006", page[0].Timestamp)
	}

	page, err = s.LoadMessages(ctx, mailboxID, 3, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 {
		t.Errorf("last page has %d, want 1", len(page))
	}
}

func TestFlagPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	m := makeMessage("acct", mailboxID, 0)
	if err := s.SaveMessages(ctx, mailboxID, []model.MessageSummary{m}); err != nil {
		t.Fatal(err)
	}

	newFlags := model.FlagsByte(true, false)
	if err := s.UpdateFlags(ctx, m.EnvelopeID, newFlags, "flag"); err != nil {
		t.Fatal(err)
	}

	ops, err := s.PendingOps(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].EnvelopeID != m.EnvelopeID || ops[0].Op != "flag" {
		t.Fatalf("pending ops = %+v", ops)
	}

	got, _ := s.LoadMessages(ctx, mailboxID, 50, 0)
	if !got[0].IsRead {
		t.Error("optimistic flag should be visible immediately")
	}

	// Failure path restores the previous byte.
	if err := s.RevertPendingOp(ctx, m.EnvelopeID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadMessages(ctx, mailboxID, 50, 0)
	if got[0].IsRead {
		t.Error("revert should restore the unread state")
	}
	if ops, _ = s.PendingOps(ctx, "acct"); len(ops) != 0 {
		t.Errorf("pending ops after revert = %+v", ops)
	}

	// Success path keeps the confirmed byte.
	if err := s.UpdateFlags(ctx, m.EnvelopeID, newFlags, "flag"); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearPendingOp(ctx, m.EnvelopeID, newFlags); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadMessages(ctx, mailboxID, 50, 0)
	if !got[0].IsRead {
		t.Error("confirmed flag should persist")
	}
	if ops, _ = s.PendingOps(ctx, "acct"); len(ops) != 0 {
		t.Errorf("pending ops after confirm = %+v", ops)
	}
}

func TestSaveMessagesPreservesPendingMarkers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	m := makeMessage("acct", mailboxID, 0)
	if err := s.SaveMessages(ctx, mailboxID, []model.MessageSummary{m}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateFlags(ctx, m.EnvelopeID, model.FlagsByte(true, false), "flag"); err != nil {
		t.Fatal(err)
	}

	// A sync lands while the mutation is in flight, carrying the stale
	// server-side flag state.
	if err := s.SaveMessages(ctx, mailboxID, []model.MessageSummary{m}); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadMessages(ctx, mailboxID, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].IsRead {
		t.Error("sync must not clobber the optimistic flag")
	}
	ops, _ := s.PendingOps(ctx, "acct")
	if len(ops) != 1 {
		t.Fatalf("pending marker lost across replacement: %+v", ops)
	}

	// The preserved marker must still revert correctly.
	if err := s.RevertPendingOp(ctx, m.EnvelopeID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.LoadMessages(ctx, mailboxID, 50, 0)
	if got[0].IsRead {
		t.Error("revert after replacement should restore the unread state")
	}
}

func TestBodyRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	envelopeID := model.EnvelopeID("acct", "<m0@test>")

	body, err := s.LoadBody(ctx, envelopeID)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		t.Fatal("miss should return nil, nil")
	}

	want := model.Body{
		Text: "plain",
		HTML: "<p>rich</p>",
		Attachments: []model.Attachment{
			{Filename: "a.pdf", MIMEType: "application/pdf", Size: 1234},
		},
	}
	if err := s.SaveBody(ctx, envelopeID, want); err != nil {
		t.Fatal(err)
	}

	body, err = s.LoadBody(ctx, envelopeID)
	if err != nil {
		t.Fatal(err)
	}
	if body == nil || body.Text != want.Text || body.HTML != want.HTML {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Attachments) != 1 || body.Attachments[0].Filename != "a.pdf" {
		t.Errorf("attachments = %+v", body.Attachments)
	}
}

func TestRemoveAccountScoping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	keepBox := model.MailboxID("keep", "INBOX")
	goneBox := model.MailboxID("gone", "INBOX")

	if err := s.SaveFolders(ctx, "keep", []model.Folder{
		{AccountID: "keep", Name: "INBOX", Path: "INBOX", MailboxID: keepBox},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFolders(ctx, "gone", []model.Folder{
		{AccountID: "gone", Name: "INBOX", Path: "INBOX", MailboxID: goneBox},
	}); err != nil {
		t.Fatal(err)
	}

	keepMsg := makeMessage("keep", keepBox, 0)
	goneMsg := makeMessage("gone", goneBox, 0)
	if err := s.SaveMessages(ctx, keepBox, []model.MessageSummary{keepMsg}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMessages(ctx, goneBox, []model.MessageSummary{goneMsg}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBody(ctx, goneMsg.EnvelopeID, model.Body{Text: "bye"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveAccount(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	if folders, _ := s.LoadFolders(ctx, "gone"); len(folders) != 0 {
		t.Errorf("removed account still has folders: %+v", folders)
	}
	if msgs, _ := s.LoadMessages(ctx, goneBox, 50, 0); len(msgs) != 0 {
		t.Errorf("removed account still has messages: %+v", msgs)
	}
	if body, _ := s.LoadBody(ctx, goneMsg.EnvelopeID); body != nil {
		t.Error("removed account still has a cached body")
	}

	if msgs, _ := s.LoadMessages(ctx, keepBox, 50, 0); len(msgs) != 1 {
		t.Errorf("other account lost data: %+v", msgs)
	}
	if folders, _ := s.LoadFolders(ctx, "keep"); len(folders) != 1 {
		t.Errorf("other account lost folders: %+v", folders)
	}
}

func TestRemoveMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mailboxID := model.MailboxID("acct", "INBOX")

	m := makeMessage("acct", mailboxID, 0)
	if err := s.SaveMessages(ctx, mailboxID, []model.MessageSummary{m}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBody(ctx, m.EnvelopeID, model.Body{Text: "x"}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveMessage(ctx, m.EnvelopeID); err != nil {
		t.Fatal(err)
	}
	if msgs, _ := s.LoadMessages(ctx, mailboxID, 50, 0); len(msgs) != 0 {
		t.Errorf("message survived removal: %+v", msgs)
	}
	if body, _ := s.LoadBody(ctx, m.EnvelopeID); body != nil {
		t.Error("body survived removal")
	}
}
