// Package framestore persists animation frames under a local root and loads
// them back as decoded images.
//
// Storage goes through a lode Store: the filesystem store in production, the
// memory store in tests. Paths are relative (see types.FrameKey.LocalPath).
// All operations block on I/O; callers run them off the presentation loop.
//
// Known limitation: Write replaces an existing frame with delete-then-put, so
// a crash between the two leaves the frame absent. The next completeness
// check detects that and triggers a re-download.
package framestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // frame decoder

	"github.com/justapithecus/lode/lode"
	_ "golang.org/x/image/webp" // frame decoder

	"github.com/justapithecus/petframes/iox"
)

// Sentinel errors for frame storage failures.
var (
	// ErrIOFailure indicates the backing store could not write or read.
	ErrIOFailure = errors.New("frame store I/O failure")
	// ErrNotFound indicates no frame exists at the path.
	ErrNotFound = errors.New("frame not found")
	// ErrDecodeFailure indicates the stored bytes are not a decodable image.
	ErrDecodeFailure = errors.New("frame decode failure")
)

// Error wraps a frame store failure with its classification.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Store persists and loads frames.
type Store struct {
	backend lode.Store
}

// New creates a frame store over an existing lode Store.
func New(backend lode.Store) *Store {
	return &Store{backend: backend}
}

// NewFS creates a frame store rooted at a local directory.
func NewFS(root string) (*Store, error) {
	backend, err := lode.NewFSFactory(root)()
	if err != nil {
		return nil, &Error{Kind: ErrIOFailure, Op: "open", Path: root, Err: err}
	}
	return New(backend), nil
}

// Write stores data at path, replacing any existing frame.
func (s *Store) Write(ctx context.Context, path string, data []byte) error {
	exists, err := s.backend.Exists(ctx, path)
	if err != nil {
		return &Error{Kind: ErrIOFailure, Op: "write", Path: path, Err: err}
	}
	if exists {
		if err := s.backend.Delete(ctx, path); err != nil {
			return &Error{Kind: ErrIOFailure, Op: "write", Path: path, Err: err}
		}
	}
	if err := s.backend.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return &Error{Kind: ErrIOFailure, Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadBytes returns the raw stored bytes at path.
func (s *Store) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	exists, err := s.backend.Exists(ctx, path)
	if err != nil {
		return nil, &Error{Kind: ErrIOFailure, Op: "read", Path: path, Err: err}
	}
	if !exists {
		return nil, &Error{Kind: ErrNotFound, Op: "read", Path: path}
	}
	rc, err := s.backend.Get(ctx, path)
	if err != nil {
		return nil, &Error{Kind: ErrIOFailure, Op: "read", Path: path, Err: err}
	}
	defer iox.DiscardClose(rc)

	data, err := iox.ReadAllLimit(rc, 0)
	if err != nil {
		return nil, &Error{Kind: ErrIOFailure, Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Read loads and decodes the frame at path.
func (s *Store) Read(ctx context.Context, path string) (image.Image, error) {
	data, err := s.ReadBytes(ctx, path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: ErrDecodeFailure, Op: "read", Path: path, Err: err}
	}
	return img, nil
}

// Exists reports whether a frame is stored at path. Backend errors count as
// absent so completeness checks fail closed.
func (s *Store) Exists(ctx context.Context, path string) bool {
	ok, err := s.backend.Exists(ctx, path)
	return err == nil && ok
}

// Remove deletes the frame at path. Missing frames are not an error.
func (s *Store) Remove(ctx context.Context, path string) error {
	if !s.Exists(ctx, path) {
		return nil
	}
	if err := s.backend.Delete(ctx, path); err != nil {
		return &Error{Kind: ErrIOFailure, Op: "remove", Path: path, Err: err}
	}
	return nil
}
