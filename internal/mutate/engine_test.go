package mutate

import (
	"errors"
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

func TestSinglePendingPerEnvelope(t *testing.T) {
	e := NewEngine()

	if err := e.BeginFlag(1, 0); err != nil {
		t.Fatalf("first BeginFlag: %v", err)
	}
	if err := e.BeginFlag(1, 0); !errors.Is(err, ErrPending) {
		t.Errorf("second BeginFlag = %v, want ErrPending", err)
	}
	if err := e.BeginMove(1, model.MessageSummary{}, 0); !errors.Is(err, ErrPending) {
		t.Errorf("BeginMove over pending flag = %v, want ErrPending", err)
	}
	if err := e.BeginFlag(2, 0); err != nil {
		t.Errorf("different envelope should not be blocked: %v", err)
	}
}

func TestFlagConfirmAndRollback(t *testing.T) {
	e := NewEngine()

	prev := model.FlagsByte(true, false)
	if err := e.BeginFlag(1, prev); err != nil {
		t.Fatal(err)
	}
	res, ok := e.CompleteFlag(1, nil)
	if !ok || !res.Confirmed {
		t.Errorf("success should confirm, got ok=%v res=%+v", ok, res)
	}
	if e.Pending(1) {
		t.Error("record should be gone after confirm")
	}

	if err := e.BeginFlag(1, prev); err != nil {
		t.Fatal(err)
	}
	res, ok = e.CompleteFlag(1, errors.New("server said no"))
	if !ok || res.Confirmed {
		t.Errorf("failure should roll back, got ok=%v res=%+v", ok, res)
	}
	if res.PrevFlags != prev {
		t.Errorf("rollback flags = %d, want %d", res.PrevFlags, prev)
	}
	if e.Pending(1) {
		t.Error("record should be gone after rollback")
	}
}

func TestCompleteWithoutRecordIsIgnored(t *testing.T) {
	e := NewEngine()
	if _, ok := e.CompleteFlag(9, nil); ok {
		t.Error("completion without a record must be dropped")
	}
	if _, ok := e.CompleteMove(9, nil); ok {
		t.Error("move completion without a record must be dropped")
	}
}

func TestMoveRollbackReturnsSnapshotAndIndex(t *testing.T) {
	e := NewEngine()

	snap := model.MessageSummary{EnvelopeID: 7, Subject: "keep me"}
	if err := e.BeginMove(7, snap, 3); err != nil {
		t.Fatal(err)
	}

	res, ok := e.CompleteMove(7, errors.New("move rejected"))
	if !ok || res.Confirmed {
		t.Fatalf("failed move should roll back, got ok=%v res=%+v", ok, res)
	}
	if res.Snapshot.Subject != "keep me" || res.Index != 3 {
		t.Errorf("rollback lost position: snapshot=%+v index=%d", res.Snapshot, res.Index)
	}
}

func TestMoveConfirm(t *testing.T) {
	e := NewEngine()
	if err := e.BeginMove(7, model.MessageSummary{EnvelopeID: 7}, 0); err != nil {
		t.Fatal(err)
	}
	res, ok := e.CompleteMove(7, nil)
	if !ok || !res.Confirmed {
		t.Errorf("successful move should confirm, got ok=%v res=%+v", ok, res)
	}
}

func TestAutoReadSuppression(t *testing.T) {
	e := NewEngine()

	if !e.AutoReadAllowed(5) {
		t.Error("auto-read should be allowed by default")
	}

	e.SuppressAutoRead(5)
	if e.AutoReadAllowed(5) {
		t.Error("auto-read should be suppressed after a manual unread")
	}
	// Suppression is consumed; the next dwell may mark read again.
	if !e.AutoReadAllowed(5) {
		t.Error("suppression should not outlive one timer")
	}
}
