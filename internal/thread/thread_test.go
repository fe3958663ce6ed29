package thread

import (
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

func msg(accountID, messageID, inReplyTo string) model.MessageSummary {
	return model.MessageSummary{
		AccountID:  accountID,
		MessageID:  messageID,
		InReplyTo:  inReplyTo,
		EnvelopeID: model.EnvelopeID(accountID, messageID),
	}
}

func TestAssignDepthsAndThreadIDs(t *testing.T) {
	messages := []model.MessageSummary{
		msg("a", "<root@x>", ""),
		msg("a", "<reply@x>", "<root@x>"),
		msg("a", "<reply2@x>", "<reply@x>"),
		msg("a", "<lonely@x>", ""),
	}

	Assign(messages)

	rootThread := messages[0].EnvelopeID
	for i, want := range []struct {
		threadID uint64
		depth    int
	}{
		{rootThread, 0},
		{rootThread, 1},
		{rootThread, 2},
		{0, 0},
	} {
		if messages[i].ThreadID != want.threadID {
			t.Errorf("message %d: thread id %d, want %d", i, messages[i].ThreadID, want.threadID)
		}
		if messages[i].ThreadDepth != want.depth {
			t.Errorf("message %d: depth %d, want %d", i, messages[i].ThreadDepth, want.depth)
		}
	}
}

func TestAssignOrphanReplyStartsOwnThread(t *testing.T) {
	messages := []model.MessageSummary{
		msg("a", "<reply@x>", "<missing@x>"),
	}
	Assign(messages)

	if messages[0].ThreadID != 0 {
		t.Errorf("orphan reply with no siblings should be unthreaded, got thread %d", messages[0].ThreadID)
	}
	if messages[0].ThreadDepth != 0 {
		t.Errorf("orphan reply depth = %d, want 0", messages[0].ThreadDepth)
	}
}

func TestAssignSurvivesReferenceCycle(t *testing.T) {
	messages := []model.MessageSummary{
		msg("a", "<one@x>", "<two@x>"),
		msg("a", "<two@x>", "<one@x>"),
	}
	// Must terminate; exact assignment for broken chains is not pinned.
	Assign(messages)
}

func TestProjectVisibilityRule(t *testing.T) {
	messages := []model.MessageSummary{
		msg("a", "<root@x>", ""),
		msg("a", "<reply@x>", "<root@x>"),
		msg("a", "<other@x>", ""),
	}
	Assign(messages)
	threadID := messages[0].ThreadID

	collapsed := Collapsed{}
	p := Project(messages, collapsed)
	if len(p.Visible) != 3 {
		t.Fatalf("expanded projection has %d visible, want 3", len(p.Visible))
	}
	if p.Sizes[threadID] != 2 {
		t.Errorf("thread size %d, want 2", p.Sizes[threadID])
	}

	collapsed.Toggle(threadID)
	p = Project(messages, collapsed)
	if len(p.Visible) != 2 {
		t.Fatalf("collapsed projection has %d visible, want 2", len(p.Visible))
	}
	// The root stays visible, the reply is hidden.
	if p.At(0) != 0 || p.At(1) != 2 {
		t.Errorf("visible indices = %v, want [0 2]", p.Visible)
	}
	if p.Pos(1) != -1 {
		t.Errorf("hidden reply should have no cursor position, got %d", p.Pos(1))
	}
}

func TestToggleIsIdempotentPair(t *testing.T) {
	messages := []model.MessageSummary{
		msg("a", "<root@x>", ""),
		msg("a", "<reply@x>", "<root@x>"),
	}
	Assign(messages)
	threadID := messages[0].ThreadID

	collapsed := Collapsed{}
	before := len(Project(messages, collapsed).Visible)

	collapsed.Toggle(threadID)
	collapsed.Toggle(threadID)
	after := len(Project(messages, collapsed).Visible)

	if before != after {
		t.Errorf("double toggle changed visibility: %d -> %d", before, after)
	}
}

func TestToggleIgnoresUnthreaded(t *testing.T) {
	collapsed := Collapsed{}
	collapsed.Toggle(0)
	if len(collapsed) != 0 {
		t.Error("thread id 0 must never enter the collapse set")
	}
}

func TestClamp(t *testing.T) {
	p := Projection{Visible: []int{0, 1, 2}}
	for _, tc := range []struct{ in, want int }{
		{-1, 0}, {0, 0}, {2, 2}, {5, 2},
	} {
		if got := p.Clamp(tc.in); got != tc.want {
			t.Errorf("Clamp(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
	empty := Projection{}
	if got := empty.Clamp(3); got != 0 {
		t.Errorf("Clamp on empty projection = %d, want 0", got)
	}
}
