// Package playback drives a frame cursor over a buffered clip on a fixed-rate
// timer.
//
// The clip state machine is the pure function Transition. Engine is the
// driver: it owns the frame buffer and the timer, feeds events into
// Transition and applies the returned effects.
package playback

import (
	"fmt"

	"github.com/justapithecus/petframes/types"
)

// Status is the engine's top-level state.
type Status int

const (
	// Idle means no timer is running.
	Idle Status = iota
	// Playing means the timer is running and ticks advance the cursor.
	Playing
	// Chaining means a one-shot clip finished and its successor is loading.
	Chaining
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Chaining:
		return "chaining"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Direction is the cursor step applied on each tick.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// State is the playback state of one engine.
// When Length > 0, 0 <= Cursor < Length. Status Idle implies no timer.
type State struct {
	Status    Status
	Clip      string
	Cursor    int
	Length    int
	Direction Direction
	Mode      types.PlaybackMode
	Next      string
}

// Event is an input to Transition.
type Event interface{ isEvent() }

// Tick is one timer interval elapsing.
type Tick struct{}

// Loaded reports that a clip's frames are buffered.
type Loaded struct {
	Clip   string
	Length int
	Mode   types.PlaybackMode
	Next   string
}

// LoadFailed reports that a clip could not be loaded.
type LoadFailed struct {
	Clip string
	Err  error
}

// Stop halts playback and keeps the current frame.
type Stop struct{}

// Cleanup halts playback and clears the buffer.
type Cleanup struct{}

func (Tick) isEvent()       {}
func (Loaded) isEvent()     {}
func (LoadFailed) isEvent() {}
func (Stop) isEvent()       {}
func (Cleanup) isEvent()    {}

// Effect is a side effect requested by Transition.
type Effect interface{ isEffect() }

// Publish shows the buffered frame at Cursor.
type Publish struct{ Cursor int }

// StartTimer starts the fixed-rate timer.
type StartTimer struct{}

// StopTimer cancels the timer if one is running.
type StopTimer struct{}

// LoadClip asks the driver to load Clip and report back with Loaded or
// LoadFailed.
type LoadClip struct{ Clip string }

// ClearBuffer drops the frame buffer and the displayed frame.
type ClearBuffer struct{}

func (Publish) isEffect()     {}
func (StartTimer) isEffect()  {}
func (StopTimer) isEffect()   {}
func (LoadClip) isEffect()    {}
func (ClearBuffer) isEffect() {}

// Transition computes the next state for an event.
//
// Transition never blocks and has no side effects; the caller applies the
// returned effects in order.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case Loaded:
		return onLoaded(s, ev)
	case LoadFailed:
		if s.Status == Chaining {
			s.Status = Idle
		}
		return s, nil
	case Tick:
		return onTick(s)
	case Stop:
		if s.Status == Idle {
			return s, nil
		}
		s.Status = Idle
		return s, []Effect{StopTimer{}}
	case Cleanup:
		return State{}, []Effect{StopTimer{}, ClearBuffer{}}
	default:
		return s, nil
	}
}

func onLoaded(s State, ev Loaded) (State, []Effect) {
	if ev.Length <= 0 {
		// Nothing to show: keep whatever is on screen. A pending chain ends here.
		if s.Status == Chaining {
			s.Status = Idle
		}
		return s, nil
	}
	next := State{
		Status:    Playing,
		Clip:      ev.Clip,
		Cursor:    0,
		Length:    ev.Length,
		Direction: Forward,
		Mode:      ev.Mode,
		Next:      ev.Next,
	}
	if ev.Mode == types.ModeOneShot && ev.Length == 1 {
		// The first frame is also the last: finish without starting the timer.
		effects := []Effect{StopTimer{}, Publish{Cursor: 0}}
		if ev.Next == "" {
			next.Status = Idle
			return next, effects
		}
		next.Status = Chaining
		return next, append(effects, LoadClip{Clip: ev.Next})
	}
	return next, []Effect{StopTimer{}, Publish{Cursor: 0}, StartTimer{}}
}

func onTick(s State) (State, []Effect) {
	if s.Status != Playing || s.Length <= 0 {
		return s, nil
	}
	last := s.Length - 1

	switch s.Mode {
	case types.ModeOneShot:
		if s.Cursor < last {
			s.Cursor++
		}
		if s.Cursor < last {
			return s, []Effect{Publish{Cursor: s.Cursor}}
		}
		effects := []Effect{Publish{Cursor: s.Cursor}, StopTimer{}}
		if s.Next == "" {
			s.Status = Idle
			return s, effects
		}
		s.Status = Chaining
		return s, append(effects, LoadClip{Clip: s.Next})

	case types.ModePingPong:
		if last == 0 {
			return s, []Effect{Publish{Cursor: 0}}
		}
		if s.Direction == 0 {
			s.Direction = Forward
		}
		s.Cursor += int(s.Direction)
		switch {
		case s.Cursor >= last:
			s.Cursor = last
			s.Direction = Backward
		case s.Cursor <= 0:
			s.Cursor = 0
			s.Direction = Forward
		}
		return s, []Effect{Publish{Cursor: s.Cursor}}

	default:
		s.Cursor = (s.Cursor + 1) % s.Length
		return s, []Effect{Publish{Cursor: s.Cursor}}
	}
}
