// Package thread derives conversation structure from message headers
// and projects it into the flat list the UI renders. Nothing here is
// persisted; both the thread ids and the collapse set are recomputed
// or kept in memory only.
package thread

import "github.com/jstelzer/neverlight-mail/internal/model"

// Assign recomputes ThreadID and ThreadDepth in place from the
// MessageID/InReplyTo chains. A message whose parent is not in the
// slice starts its own thread. Messages with no parent and no replies
// stay unthreaded (ThreadID 0).
func Assign(messages []model.MessageSummary) {
	byMessageID := make(map[string]int, len(messages))
	for i := range messages {
		if id := messages[i].MessageID; id != "" {
			byMessageID[id] = i
		}
	}

	parent := make([]int, len(messages))
	hasReply := make([]bool, len(messages))
	for i := range parent {
		parent[i] = -1
	}
	for i := range messages {
		ref := messages[i].InReplyTo
		if ref == "" {
			continue
		}
		if p, ok := byMessageID[ref]; ok && p != i {
			parent[i] = p
			hasReply[p] = true
		}
	}

	for i := range messages {
		root, depth := i, 0
		// The step bound guards against reference cycles in the wild.
		for parent[root] != -1 && depth < len(messages) {
			root = parent[root]
			depth++
		}

		if depth == 0 && !hasReply[i] {
			messages[i].ThreadID = 0
			messages[i].ThreadDepth = 0
			continue
		}
		messages[i].ThreadID = messages[root].EnvelopeID
		messages[i].ThreadDepth = depth
	}
}

// Collapsed is the set of thread ids whose replies are hidden.
type Collapsed map[uint64]struct{}

// Toggle flips the collapse state of a thread. Toggling twice restores
// the original state.
func (c Collapsed) Toggle(threadID uint64) {
	if threadID == 0 {
		return
	}
	if _, ok := c[threadID]; ok {
		delete(c, threadID)
	} else {
		c[threadID] = struct{}{}
	}
}

// Has reports whether a thread is collapsed.
func (c Collapsed) Has(threadID uint64) bool {
	_, ok := c[threadID]
	return ok
}

// Projection is the render-order view of a message list under a
// collapse set.
type Projection struct {
	// Visible holds indices into the projected slice, in order. A
	// message is visible iff it is a thread root (depth 0) or its
	// thread is not collapsed.
	Visible []int

	// Sizes counts the messages of each thread id. Unthreaded messages
	// (id 0) are not counted.
	Sizes map[uint64]int
}

// Project computes the visible indices and thread sizes.
func Project(messages []model.MessageSummary, collapsed Collapsed) Projection {
	p := Projection{
		Visible: make([]int, 0, len(messages)),
		Sizes:   make(map[uint64]int),
	}
	for i := range messages {
		m := &messages[i]
		if m.ThreadID != 0 {
			p.Sizes[m.ThreadID]++
		}
		if m.ThreadDepth == 0 || !collapsed.Has(m.ThreadID) {
			p.Visible = append(p.Visible, i)
		}
	}
	return p
}

// At translates a cursor position in projection space to an index into
// the message slice. Returns -1 when out of range.
func (p Projection) At(cursor int) int {
	if cursor < 0 || cursor >= len(p.Visible) {
		return -1
	}
	return p.Visible[cursor]
}

// Pos translates a message index back to its cursor position, or -1
// when the message is hidden.
func (p Projection) Pos(index int) int {
	for cursor, i := range p.Visible {
		if i == index {
			return cursor
		}
	}
	return -1
}

// Clamp bounds a cursor to the visible range.
func (p Projection) Clamp(cursor int) int {
	if len(p.Visible) == 0 {
		return 0
	}
	if cursor < 0 {
		return 0
	}
	if cursor >= len(p.Visible) {
		return len(p.Visible) - 1
	}
	return cursor
}
