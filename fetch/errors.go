package fetch

import (
	"errors"
	"fmt"
	"strings"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors for fetch failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the remote object does not exist (NoSuchKey, 404).
	ErrNotFound = errors.New("asset not found")

	// ErrSizeExceeded indicates the object is larger than the caller's ceiling.
	ErrSizeExceeded = errors.New("asset size exceeded")

	// ErrTransport covers every other failure: network, auth, throttling.
	ErrTransport = errors.New("asset transport failure")
)

// Error wraps an underlying fetch failure with its classification.
type Error struct {
	// Kind is one of ErrNotFound, ErrSizeExceeded, ErrTransport.
	Kind error
	// Path is the remote path that was requested.
	Path string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewError creates a classified fetch error.
func NewError(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// classify maps an object-store error onto ErrNotFound or ErrTransport.
// Typed SDK errors are checked first, then message patterns.
func classify(err error) error {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNotFound
		}
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"no such file", "does not exist", "not found", "nosuchkey", "statuscode: 404"} {
		if strings.Contains(msg, pattern) {
			return ErrNotFound
		}
	}
	return ErrTransport
}
