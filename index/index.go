// Package index records which animation frames are stored locally.
//
// The index maps (character type, phase, clip, frame index) to a
// types.FrameRecord. Every failure of the backing store surfaces as
// ErrIndexUnavailable; callers treat it as "cannot confirm completeness".
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/petframes/types"
)

// ErrIndexUnavailable indicates the backing record store failed.
var ErrIndexUnavailable = errors.New("metadata index unavailable")

// Error wraps a backing store failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("index %s: %v: %v", e.Op, ErrIndexUnavailable, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrIndexUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrIndexUnavailable
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Index is the query surface over the frame metadata store.
// Implementations must be safe for concurrent use; mutations are serialized.
type Index interface {
	// Insert adds a record. A record with the same key is replaced.
	Insert(ctx context.Context, rec types.FrameRecord) error
	// DeleteAll removes every record of one clip.
	DeleteAll(ctx context.Context, characterType, phase, clip string) error
	// DeleteEverything removes every record.
	DeleteEverything(ctx context.Context) error
	// Query returns the records of one clip sorted by frame index ascending.
	Query(ctx context.Context, characterType, phase, clip string) ([]types.FrameRecord, error)
	// QuerySingle returns one record, or nil when absent.
	QuerySingle(ctx context.Context, characterType, phase, clip string, frameIndex int) (*types.FrameRecord, error)
	// Count returns the number of records of one clip.
	Count(ctx context.Context, characterType, phase, clip string) (int, error)
	// Summary returns per-clip counts and byte totals, sorted by key.
	Summary(ctx context.Context) ([]ClipSummary, error)
	// Close releases resources.
	Close() error
}

// ClipSummary aggregates the records of one clip.
type ClipSummary struct {
	CharacterType string `json:"character_type"`
	Phase         string `json:"phase"`
	Clip          string `json:"clip"`
	Frames        int    `json:"frames"`
	Bytes         int64  `json:"bytes"`
}

var errClosed = errors.New("index closed")
