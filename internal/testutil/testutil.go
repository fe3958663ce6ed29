// Package testutil provides shared test fixtures.
package testutil

import (
	"testing"

	"github.com/jstelzer/neverlight-mail/internal/store"
)

// NewStore returns an in-memory cache store that is closed when the
// test ends.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
