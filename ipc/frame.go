// Package ipc implements the length-prefixed msgpack event stream written by
// `petframes ensure --emit` and `petframes play --emit`.
//
// Each frame is a 4-byte big-endian payload length followed by a msgpack
// encoded Event.
package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/petframes/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (1 MiB), including length prefix.
	MaxFrameSize = 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorUnknownType indicates a well-formed event of an unknown type.
	FrameErrorUnknownType
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the stream can no longer be read.
// Partial and oversized frames desynchronize the stream; decode errors do not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameEncoder writes events as length-prefixed frames.
// Safe for concurrent use; Seq is assigned in write order.
type FrameEncoder struct {
	mu  sync.Mutex
	w   io.Writer
	seq uint64
	now func() time.Time
}

// NewFrameEncoder creates an encoder writing to w.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{w: w, now: time.Now}
}

// WriteProgress writes a progress event.
func (e *FrameEncoder) WriteProgress(p ProgressPayload) error {
	return e.write(&Event{Type: EventTypeProgress, Progress: &p})
}

// WriteFrame writes a frame event.
func (e *FrameEncoder) WriteFrame(f FramePayload) error {
	return e.write(&Event{Type: EventTypeFrame, Frame: &f})
}

// WriteResult writes a result event.
func (e *FrameEncoder) WriteResult(r ResultPayload) error {
	return e.write(&Event{Type: EventTypeResult, Result: &r})
}

func (e *FrameEncoder) write(ev *Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ev.Seq = e.seq
	ev.ContractVersion = types.ContractVersion
	ev.Ts = timestamp(e.now())

	payload, err := msgpack.Marshal(ev)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode event", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	if _, err := e.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader *bufio.Reader
}

// NewFrameDecoder creates a new frame decoder. Reads are buffered.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReader(r)}
}

// ReadFrame reads a single frame from the stream and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}
	return payload, nil
}

// ReadEvent reads and decodes the next event.
func (d *FrameDecoder) ReadEvent() (*Event, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEvent(payload)
}

// DecodeEvent decodes a payload and checks that the body matches its type.
func DecodeEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := msgpack.Unmarshal(payload, &ev); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode event",
			Err:  err,
		}
	}

	var ok bool
	switch ev.Type {
	case EventTypeProgress:
		ok = ev.Progress != nil
	case EventTypeFrame:
		ok = ev.Frame != nil
	case EventTypeResult:
		ok = ev.Result != nil
	default:
		return nil, &FrameError{
			Kind: FrameErrorUnknownType,
			Msg:  fmt.Sprintf("unknown event type %q", ev.Type),
		}
	}
	if !ok {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("%s event without %s body", ev.Type, ev.Type),
		}
	}
	return &ev, nil
}
