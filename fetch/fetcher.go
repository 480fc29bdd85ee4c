// Package fetch retrieves animation frame blobs from a remote object store.
//
// Fetchers perform a single attempt per call; retry policy belongs to the
// caller. Every failure is returned as *Error classified as ErrNotFound,
// ErrSizeExceeded or ErrTransport.
package fetch

import (
	"context"
	"errors"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/petframes/iox"
)

// DefaultMaxBytes is the default per-frame size ceiling (5 MiB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// Fetcher retrieves one named blob. Implementations must be safe for
// concurrent use and idempotent.
type Fetcher interface {
	// Fetch returns the blob stored at path. Payloads larger than maxBytes
	// fail with ErrSizeExceeded. maxBytes <= 0 disables the ceiling.
	Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error)
}

// StoreFetcher serves frames from a lode Store, typically a filesystem
// mirror of the asset bucket.
type StoreFetcher struct {
	store lode.Store
}

// NewStoreFetcher creates a fetcher over an existing store.
func NewStoreFetcher(store lode.Store) *StoreFetcher {
	return &StoreFetcher{store: store}
}

// NewMirrorFetcher creates a fetcher over a filesystem mirror rooted at root.
func NewMirrorFetcher(root string) (*StoreFetcher, error) {
	store, err := lode.NewFSFactory(root)()
	if err != nil {
		return nil, NewError(ErrTransport, root, err)
	}
	return NewStoreFetcher(store), nil
}

// Fetch implements Fetcher.
func (f *StoreFetcher) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	ok, err := f.store.Exists(ctx, path)
	if err != nil {
		return nil, NewError(classify(err), path, err)
	}
	if !ok {
		return nil, NewError(ErrNotFound, path, nil)
	}

	rc, err := f.store.Get(ctx, path)
	if err != nil {
		return nil, NewError(classify(err), path, err)
	}
	defer iox.DiscardClose(rc)

	data, err := iox.ReadAllLimit(rc, maxBytes)
	if err != nil {
		if errors.Is(err, iox.ErrLimitExceeded) {
			return nil, NewError(ErrSizeExceeded, path, err)
		}
		return nil, NewError(ErrTransport, path, err)
	}
	return data, nil
}

// Verify StoreFetcher implements Fetcher.
var _ Fetcher = (*StoreFetcher)(nil)
