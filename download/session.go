package download

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnsupported is returned for a character or phase without a catalog
	// entry. No network or index traffic happens.
	ErrUnsupported = errors.New("unsupported character or phase")

	// ErrSessionInProgress is returned when another process holds the
	// download lock.
	ErrSessionInProgress = errors.New("download session already in progress")
)

// Status is the outcome of one EnsurePhaseReady call.
type Status string

const (
	// StatusReady means every clip was already complete; nothing was fetched.
	StatusReady Status = "ready"
	// StatusCompleted means every download task ran. Some frames may have
	// failed; FailedFrames says how many.
	StatusCompleted Status = "completed"
	// StatusUnsupported means the character/phase has no catalog entry.
	StatusUnsupported Status = "unsupported"
	// StatusCanceled means the context ended before every task ran.
	StatusCanceled Status = "canceled"
)

// Progress is one progress update of a download session.
// Progress is in [0,1]. Message is display copy only.
type Progress struct {
	SessionID     string  `json:"session_id" msgpack:"session_id"`
	IsDownloading bool    `json:"is_downloading" msgpack:"is_downloading"`
	Completed     int     `json:"completed" msgpack:"completed"`
	Total         int     `json:"total" msgpack:"total"`
	Progress      float64 `json:"progress" msgpack:"progress"`
	Message       string  `json:"message" msgpack:"message"`
}

// Result describes a finished download session.
// CompletedFrames == SucceededFrames + FailedFrames.
type Result struct {
	SessionID       string        `json:"session_id"`
	CharacterType   string        `json:"character_type"`
	Phase           string        `json:"phase"`
	Status          Status        `json:"status"`
	TotalFrames     int           `json:"total_frames"`
	CompletedFrames int           `json:"completed_frames"`
	SucceededFrames int           `json:"succeeded_frames"`
	FailedFrames    int           `json:"failed_frames"`
	PurgedClips     int           `json:"purged_clips"`
	Duration        time.Duration `json:"duration"`
}

// Options tune one EnsurePhaseReady call.
type Options struct {
	// FirstHatch runs the lifecycle hook and loads the default clip once a
	// download finishes.
	FirstHatch bool
	// Progress receives progress updates. Intermediate updates are dropped
	// when the channel is full; the final update is always delivered unless
	// the context ends. The channel is not closed.
	Progress chan<- Progress
}

// ClipLoader starts playback of a clip. Implemented by playback.Engine.
type ClipLoader interface {
	LoadClip(ctx context.Context, characterType, phase, clip string) (bool, error)
}

// LifecycleHook is notified when a character's phase becomes playable for
// the first time.
type LifecycleHook interface {
	Hatched(ctx context.Context, characterType, phase string) error
}

// HookFunc adapts a function to LifecycleHook.
type HookFunc func(ctx context.Context, characterType, phase string) error

// Hatched implements LifecycleHook.
func (f HookFunc) Hatched(ctx context.Context, characterType, phase string) error {
	return f(ctx, characterType, phase)
}

const (
	messageDownloading = "Downloading animations..."
	messageFinishing   = "Almost there, unpacking the last frames..."
	messageDone        = "Animations ready"
)

// progressMessage returns the display copy for a completion ratio.
func progressMessage(ratio float64) string {
	switch {
	case ratio >= 1:
		return messageDone
	case ratio >= 0.75:
		return messageFinishing
	default:
		return messageDownloading
	}
}
