// Package mutate implements optimistic flag and move mutations: the
// UI applies the change immediately, a pending record remembers how to
// undo it, and the server's answer either confirms the record away or
// rolls the change back. The engine is pure state owned by the event
// loop; persistence and network belong to the caller.
package mutate

import (
	"errors"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// ErrPending is returned when an envelope already has an in-flight
// mutation. The UI surfaces it as "operation in progress".
var ErrPending = errors.New("mutation already in progress for this message")

type recordKind int

const (
	recordFlag recordKind = iota
	recordMove
)

type record struct {
	kind      recordKind
	prevFlags uint8

	// Move records keep the removed summary and where it sat in the
	// list, so a failed move reinserts it at its original position.
	snapshot model.MessageSummary
	index    int
}

// FlagResult reports how a flag mutation ended.
type FlagResult struct {
	Confirmed bool

	// PrevFlags is the flag byte to restore when not confirmed.
	PrevFlags uint8
}

// MoveResult reports how a move mutation ended.
type MoveResult struct {
	Confirmed bool

	// Snapshot and Index restore the removed message when not confirmed.
	Snapshot model.MessageSummary
	Index    int
}

// Engine tracks at most one pending mutation per envelope, plus the
// auto-mark-read suppression set.
type Engine struct {
	pending    map[uint64]record
	suppressed map[uint64]struct{}
}

func NewEngine() *Engine {
	return &Engine{
		pending:    make(map[uint64]record),
		suppressed: make(map[uint64]struct{}),
	}
}

// BeginFlag records an optimistic flag change. prevFlags is the flag
// byte before the optimistic update was applied.
func (e *Engine) BeginFlag(envelopeID uint64, prevFlags uint8) error {
	if _, ok := e.pending[envelopeID]; ok {
		return ErrPending
	}
	e.pending[envelopeID] = record{kind: recordFlag, prevFlags: prevFlags}
	return nil
}

// CompleteFlag resolves a pending flag mutation against the server's
// answer. The second return is false when no flag record exists, which
// happens when a stale result arrives after a session replacement.
func (e *Engine) CompleteFlag(envelopeID uint64, opErr error) (FlagResult, bool) {
	rec, ok := e.pending[envelopeID]
	if !ok || rec.kind != recordFlag {
		return FlagResult{}, false
	}
	delete(e.pending, envelopeID)
	if opErr != nil {
		return FlagResult{PrevFlags: rec.prevFlags}, true
	}
	return FlagResult{Confirmed: true}, true
}

// BeginMove records an optimistic move. snapshot is the summary as
// removed from the list, index its position there.
func (e *Engine) BeginMove(envelopeID uint64, snapshot model.MessageSummary, index int) error {
	if _, ok := e.pending[envelopeID]; ok {
		return ErrPending
	}
	e.pending[envelopeID] = record{kind: recordMove, snapshot: snapshot, index: index}
	return nil
}

// CompleteMove resolves a pending move against the server's answer.
func (e *Engine) CompleteMove(envelopeID uint64, opErr error) (MoveResult, bool) {
	rec, ok := e.pending[envelopeID]
	if !ok || rec.kind != recordMove {
		return MoveResult{}, false
	}
	delete(e.pending, envelopeID)
	if opErr != nil {
		return MoveResult{Snapshot: rec.snapshot, Index: rec.index}, true
	}
	return MoveResult{Confirmed: true}, true
}

// Pending reports whether the envelope has an in-flight mutation.
// Server-push flag updates for such envelopes are dropped so a slow
// confirmation cannot fight the optimistic state.
func (e *Engine) Pending(envelopeID uint64) bool {
	_, ok := e.pending[envelopeID]
	return ok
}

// SuppressAutoRead marks an envelope as manually set unread, which
// cancels any armed auto-mark-read timer for it.
func (e *Engine) SuppressAutoRead(envelopeID uint64) {
	e.suppressed[envelopeID] = struct{}{}
}

// AutoReadAllowed reports whether the dwell timer may mark the
// envelope read, and consumes the suppression if one was set.
func (e *Engine) AutoReadAllowed(envelopeID uint64) bool {
	if _, ok := e.suppressed[envelopeID]; ok {
		delete(e.suppressed, envelopeID)
		return false
	}
	return true
}
