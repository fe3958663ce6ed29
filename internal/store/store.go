package store

import (
	"context"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// DefaultPageSize is the message page size used by the cache-first
// loader when no display override is configured.
const DefaultPageSize = 50

// PendingOp is a persisted marker for an in-flight optimistic mutation,
// used to recover state after a crash mid-operation.
type PendingOp struct {
	EnvelopeID uint64
	Op         string
	Flags      uint8
}

// Store defines the persistence contract for the local mail cache.
// The cache is an optimization, never the source of truth: every method
// failure must leave the caller able to proceed on network state alone.
type Store interface {
	// === Folders ===

	LoadFolders(ctx context.Context, accountID string) ([]model.Folder, error)
	SaveFolders(ctx context.Context, accountID string, folders []model.Folder) error

	// === Messages ===

	// LoadMessages returns one page of headers for a mailbox, newest
	// first.
	LoadMessages(ctx context.Context, mailboxID uint64, pageSize, offset int) ([]model.MessageSummary, error)

	// SaveMessages replaces the cached contents of a mailbox with the
	// given set. Replacement is atomic so a subsequent read returns
	// exactly what was persisted, never a mix of old and new rows.
	SaveMessages(ctx context.Context, mailboxID uint64, messages []model.MessageSummary) error

	RemoveMessage(ctx context.Context, envelopeID uint64) error

	// === Bodies ===

	// LoadBody returns nil with no error on a cache miss.
	LoadBody(ctx context.Context, envelopeID uint64) (*model.Body, error)
	SaveBody(ctx context.Context, envelopeID uint64, body model.Body) error

	// === Optimistic mutation markers ===

	// UpdateFlags applies the optimistic flag byte and records the
	// previous byte plus an operation tag for rollback.
	UpdateFlags(ctx context.Context, envelopeID uint64, newFlags uint8, pendingOp string) error

	// ClearPendingOp confirms a completed operation and persists the
	// server-confirmed flag byte.
	ClearPendingOp(ctx context.Context, envelopeID uint64, confirmedFlags uint8) error

	// RevertPendingOp restores the pre-operation flag byte.
	RevertPendingOp(ctx context.Context, envelopeID uint64) error

	// PendingOps lists unresolved mutation markers for an account.
	PendingOps(ctx context.Context, accountID string) ([]PendingOp, error)

	// === Account lifecycle ===

	// RemoveAccount deletes every row scoped to the account.
	RemoveAccount(ctx context.Context, accountID string) error

	Close() error
}
