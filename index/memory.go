package index

import (
	"context"
	"sort"
	"sync"

	"github.com/justapithecus/petframes/types"
)

type clipKey struct {
	characterType string
	phase         string
	clip          string
}

// Memory is an in-process Index. It backs `--index memory` and serves as
// the substitute store in tests.
type Memory struct {
	mu      sync.Mutex
	records map[clipKey]map[int]types.FrameRecord
	closed  bool
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{records: make(map[clipKey]map[int]types.FrameRecord)}
}

func (m *Memory) check() error {
	if m.closed {
		return wrap("memory", errClosed)
	}
	return nil
}

// Insert implements Index.
func (m *Memory) Insert(_ context.Context, rec types.FrameRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	k := clipKey{rec.CharacterType, rec.Phase, rec.Clip}
	if m.records[k] == nil {
		m.records[k] = make(map[int]types.FrameRecord)
	}
	m.records[k][rec.FrameIndex] = rec
	return nil
}

// DeleteAll implements Index.
func (m *Memory) DeleteAll(_ context.Context, characterType, phase, clip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	delete(m.records, clipKey{characterType, phase, clip})
	return nil
}

// DeleteEverything implements Index.
func (m *Memory) DeleteEverything(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.records = make(map[clipKey]map[int]types.FrameRecord)
	return nil
}

// Query implements Index.
func (m *Memory) Query(_ context.Context, characterType, phase, clip string) ([]types.FrameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	frames := m.records[clipKey{characterType, phase, clip}]
	out := make([]types.FrameRecord, 0, len(frames))
	for _, rec := range frames {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrameIndex < out[j].FrameIndex })
	return out, nil
}

// QuerySingle implements Index.
func (m *Memory) QuerySingle(_ context.Context, characterType, phase, clip string, frameIndex int) (*types.FrameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	rec, ok := m.records[clipKey{characterType, phase, clip}][frameIndex]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Count implements Index.
func (m *Memory) Count(_ context.Context, characterType, phase, clip string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return 0, err
	}
	return len(m.records[clipKey{characterType, phase, clip}]), nil
}

// Summary implements Index.
func (m *Memory) Summary(_ context.Context) ([]ClipSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return nil, err
	}
	out := make([]ClipSummary, 0, len(m.records))
	for k, frames := range m.records {
		if len(frames) == 0 {
			continue
		}
		cs := ClipSummary{CharacterType: k.characterType, Phase: k.phase, Clip: k.clip, Frames: len(frames)}
		for _, rec := range frames {
			cs.Bytes += rec.ByteSize
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CharacterType != b.CharacterType {
			return a.CharacterType < b.CharacterType
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.Clip < b.Clip
	})
	return out, nil
}

// Close marks the index closed; later calls fail with ErrIndexUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Verify Memory implements Index.
var _ Index = (*Memory)(nil)
