package playback

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/justapithecus/petframes/log"
	"github.com/justapithecus/petframes/metrics"
	"github.com/justapithecus/petframes/types"
)

// DefaultFPS is the tick rate used when Config.FPS is zero.
const DefaultFPS = 24

// ErrUnknownClip is returned when a clip has no catalog entry.
var ErrUnknownClip = errors.New("unknown clip")

var errChainLimit = errors.New("too many consecutive chains")

// Snapshot is the externally visible playback state.
type Snapshot struct {
	CharacterType string
	Phase         string
	Clip          string
	Status        Status
	CurrentFrame  image.Image
	// FrameIndex is the 1-based index of CurrentFrame, 0 when nothing is shown.
	FrameIndex  int
	FrameCount  int
	IsAnimating bool
}

// Ticker is the fixed-rate timer used by the engine.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Config configures an Engine.
type Config struct {
	Catalog types.Catalog
	Loader  FrameLoader
	// FPS is the tick rate. Zero means DefaultFPS.
	FPS     int
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Engine plays one clip at a time.
//
// All state is guarded by mu. At most one timer goroutine is live; a timer
// whose done channel is no longer current ignores its ticks. gen is bumped by
// every command so a load that was overtaken by a newer command is dropped.
type Engine struct {
	mu sync.Mutex

	catalog   types.Catalog
	loader    FrameLoader
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	logger    *log.Logger
	metrics   *metrics.Collector

	state         State
	characterType string
	phase         string
	buffer        []image.Image
	current       image.Image
	shown         int

	gen    uint64
	ticker Ticker
	done   chan struct{}

	listeners []chan Snapshot
}

// New creates an idle engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Loader == nil {
		return nil, errors.New("playback: loader is required")
	}
	if cfg.FPS < 0 {
		return nil, fmt.Errorf("playback: fps must be >= 0, got %d", cfg.FPS)
	}
	fps := cfg.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = types.DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		catalog:   catalog,
		loader:    cfg.Loader,
		interval:  time.Second / time.Duration(fps),
		newTicker: newTimeTicker,
		logger:    logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Interval returns the time between ticks.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// LoadClip buffers a clip and starts playing it from the first frame.
//
// It returns false with a nil error when the clip has no readable frames; the
// engine keeps showing whatever it showed before. Index errors are returned.
func (e *Engine) LoadClip(ctx context.Context, characterType, phase, clip string) (bool, error) {
	spec, err := e.clipSpec(characterType, phase, clip)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	frames, loadErr := e.loader.Load(ctx, characterType, phase, clip)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.logger.Debug("clip load superseded", map[string]any{"clip": clip})
		return false, nil
	}
	ok, next, err := e.finishLoadLocked(characterType, phase, spec, frames, loadErr)
	if next == "" {
		e.mu.Unlock()
		return ok, err
	}
	gen = e.beginChainLocked(next)
	e.mu.Unlock()

	e.chain(gen, characterType, phase, next)
	return true, nil
}

// Stop halts the timer and keeps the current frame. Safe to call repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.dispatchLocked(Stop{})
}

// Cleanup halts the timer and clears the buffer and the current frame.
// Safe to call repeatedly.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.dispatchLocked(Cleanup{})
	e.characterType, e.phase = "", ""
}

// State returns a copy of the state machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the current externally visible state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel receiving a Snapshot after every state change.
// A subscriber that falls behind misses updates; it never stalls playback.
func (e *Engine) Subscribe() <-chan Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Snapshot, 16)
	e.listeners = append(e.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (e *Engine) Unsubscribe(ch <-chan Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, listener := range e.listeners {
		if listener == ch {
			close(listener)
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			break
		}
	}
}

func (e *Engine) clipSpec(characterType, phase, clip string) (types.ClipSpec, error) {
	phaseSpec, ok := e.catalog.Phase(characterType, phase)
	if !ok {
		return types.ClipSpec{}, fmt.Errorf("%w: %s/%s has no catalog entry", ErrUnknownClip, characterType, phase)
	}
	spec, ok := phaseSpec.Clip(clip)
	if !ok {
		return types.ClipSpec{}, fmt.Errorf("%w: %s/%s/%s", ErrUnknownClip, characterType, phase, clip)
	}
	return spec, nil
}

// finishLoadLocked applies a load result. The returned clip name is non-empty
// when the loaded clip must chain immediately (a single-frame one-shot).
func (e *Engine) finishLoadLocked(characterType, phase string, spec types.ClipSpec, frames []image.Image, err error) (bool, string, error) {
	fields := map[string]any{
		"character_type": characterType,
		"phase":          phase,
		"clip":           spec.Name,
	}
	if err != nil {
		e.metrics.IncClipLoadFailure()
		fields["error"] = err.Error()
		e.logger.Error("clip load failed", fields)
		e.dispatchLocked(LoadFailed{Clip: spec.Name, Err: err})
		return false, "", fmt.Errorf("load clip %s: %w", spec.Name, err)
	}
	if len(frames) == 0 {
		e.logger.Warn("clip has no frames, playback not started", fields)
		e.dispatchLocked(Loaded{Clip: spec.Name})
		return false, "", nil
	}

	e.characterType, e.phase = characterType, phase
	e.buffer = frames
	next := e.dispatchLocked(Loaded{Clip: spec.Name, Length: len(frames), Mode: spec.Mode, Next: spec.Next})
	e.metrics.IncClipLoaded()

	fields["frames"] = len(frames)
	fields["expected"] = spec.Frames
	e.logger.Debug("clip loaded", fields)
	return true, next, nil
}

// dispatchLocked runs one transition and applies its effects. It returns the
// successor clip to load when the transition requested a chain.
func (e *Engine) dispatchLocked(ev Event) string {
	prev := e.state.Status
	next, effects := Transition(e.state, ev)
	e.state = next

	chain := ""
	for _, eff := range effects {
		switch eff := eff.(type) {
		case Publish:
			if eff.Cursor >= 0 && eff.Cursor < len(e.buffer) {
				e.current = e.buffer[eff.Cursor]
				e.shown = eff.Cursor
				e.metrics.IncFramePublished()
			}
		case StartTimer:
			e.startTimerLocked()
		case StopTimer:
			e.stopTimerLocked()
		case ClearBuffer:
			e.buffer = nil
			e.current = nil
			e.shown = 0
		case LoadClip:
			chain = eff.Clip
		}
	}

	if len(effects) > 0 || next.Status != prev {
		e.notifyLocked()
	}
	return chain
}

func (e *Engine) startTimerLocked() {
	e.stopTimerLocked()
	t := e.newTicker(e.interval)
	done := make(chan struct{})
	e.ticker, e.done = t, done
	go e.run(t, done)
}

func (e *Engine) stopTimerLocked() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	close(e.done)
	e.ticker, e.done = nil, nil
}

func (e *Engine) run(t Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			e.handleTick(done)
		}
	}
}

// handleTick advances one frame. A one-shot clip that reaches its last frame
// loads its successor before handleTick returns.
func (e *Engine) handleTick(done chan struct{}) {
	e.mu.Lock()
	if done == nil || e.done != done {
		e.mu.Unlock()
		return
	}
	next := e.dispatchLocked(Tick{})
	if next == "" {
		e.mu.Unlock()
		return
	}
	characterType, phase := e.characterType, e.phase
	gen := e.beginChainLocked(next)
	e.mu.Unlock()

	e.chain(gen, characterType, phase, next)
}

// beginChainLocked invalidates pending loads and returns the generation of
// the chain load.
func (e *Engine) beginChainLocked(next string) uint64 {
	e.gen++
	e.metrics.IncClipChain()
	e.logger.Debug("chaining clip", map[string]any{"from": e.state.Clip, "to": next})
	return e.gen
}

// maxChainHops bounds back-to-back chains of single-frame one-shot clips.
const maxChainHops = 64

// chain loads successor clips until one starts playing or settles.
func (e *Engine) chain(gen uint64, characterType, phase, clip string) {
	for hops := 0; ; hops++ {
		spec, err := e.clipSpec(characterType, phase, clip)
		var frames []image.Image
		if err == nil {
			frames, err = e.loader.Load(context.Background(), characterType, phase, clip)
		} else {
			spec = types.ClipSpec{Name: clip}
		}

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		_, next, _ := e.finishLoadLocked(characterType, phase, spec, frames, err)
		if next == "" {
			e.mu.Unlock()
			return
		}
		if hops+1 >= maxChainHops {
			e.logger.Error("chain limit reached", map[string]any{"clip": clip, "next": next})
			e.dispatchLocked(LoadFailed{Clip: next, Err: errChainLimit})
			e.mu.Unlock()
			return
		}
		gen = e.beginChainLocked(next)
		e.mu.Unlock()
		clip = next
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		CharacterType: e.characterType,
		Phase:         e.phase,
		Clip:          e.state.Clip,
		Status:        e.state.Status,
		CurrentFrame:  e.current,
		FrameCount:    len(e.buffer),
		IsAnimating:   e.state.Status == Playing,
	}
	if e.current != nil {
		s.FrameIndex = e.shown + 1
	}
	return s
}

// notifyLocked sends the current snapshot to every subscriber without blocking.
func (e *Engine) notifyLocked() {
	if len(e.listeners) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, listener := range e.listeners {
		select {
		case listener <- snap:
		default:
		}
	}
}
