package store

import (
	"context"
	"errors"

	"github.com/jstelzer/neverlight-mail/internal/model"
)

// ErrCacheDisabled is returned by NoopStore writes. Loaders treat a
// failed write like any cache error and serve the fetched data
// directly instead of re-reading an empty cache.
var ErrCacheDisabled = errors.New("cache disabled")

// NoopStore stands in when the on-disk cache cannot be opened: reads
// come back empty, writes fail. The application then runs on network
// state alone.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (*NoopStore) LoadFolders(context.Context, string) ([]model.Folder, error) {
	return nil, nil
}

func (*NoopStore) SaveFolders(context.Context, string, []model.Folder) error {
	return ErrCacheDisabled
}

func (*NoopStore) LoadMessages(context.Context, uint64, int, int) ([]model.MessageSummary, error) {
	return nil, nil
}

func (*NoopStore) SaveMessages(context.Context, uint64, []model.MessageSummary) error {
	return ErrCacheDisabled
}

func (*NoopStore) RemoveMessage(context.Context, uint64) error { return nil }

func (*NoopStore) LoadBody(context.Context, uint64) (*model.Body, error) {
	return nil, nil
}

func (*NoopStore) SaveBody(context.Context, uint64, model.Body) error {
	return ErrCacheDisabled
}

func (*NoopStore) UpdateFlags(context.Context, uint64, uint8, string) error { return nil }

func (*NoopStore) ClearPendingOp(context.Context, uint64, uint8) error { return nil }

func (*NoopStore) RevertPendingOp(context.Context, uint64) error { return nil }

func (*NoopStore) PendingOps(context.Context, string) ([]PendingOp, error) {
	return nil, nil
}

func (*NoopStore) RemoveAccount(context.Context, string) error { return nil }

func (*NoopStore) Close() error { return nil }
