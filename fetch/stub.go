package fetch

import (
	"context"
	"sync"
)

// StubFetcher serves blobs from memory and records every call.
// Safe for concurrent use.
type StubFetcher struct {
	mu      sync.Mutex
	objects map[string][]byte
	failing map[string]error
	calls   []string

	// Default, when non-nil, is returned for paths without an object.
	Default func(path string) ([]byte, error)
}

// NewStubFetcher creates an empty stub fetcher.
func NewStubFetcher() *StubFetcher {
	return &StubFetcher{
		objects: make(map[string][]byte),
		failing: make(map[string]error),
	}
}

// Put stores a blob under path.
func (s *StubFetcher) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
}

// Fail makes every fetch of path return err.
func (s *StubFetcher) Fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = err
}

// Calls returns a copy of the requested paths in call order.
func (s *StubFetcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns the number of Fetch calls so far.
func (s *StubFetcher) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Fetch implements Fetcher.
func (s *StubFetcher) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	failErr, failing := s.failing[path]
	data, ok := s.objects[path]
	fallback := s.Default
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrTransport, path, err)
	}
	if failing {
		return nil, NewError(ErrTransport, path, failErr)
	}
	if !ok {
		if fallback == nil {
			return nil, NewError(ErrNotFound, path, nil)
		}
		var err error
		data, err = fallback(path)
		if err != nil {
			return nil, NewError(classify(err), path, err)
		}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, NewError(ErrSizeExceeded, path, nil)
	}
	return data, nil
}

// Verify StubFetcher implements Fetcher.
var _ Fetcher = (*StubFetcher)(nil)
