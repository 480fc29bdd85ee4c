// Package adapter defines the notification boundary for finished download
// sessions.
//
// Adapters publish a PhaseReadyEvent to a downstream system (an HTTP
// endpoint, a Redis channel) once a character phase has been ensured.
// Publishing is best-effort: the download result does not depend on it.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypePhaseReady is the EventType of every PhaseReadyEvent.
const EventTypePhaseReady = "phase_ready"

// PhaseReadyEvent is the payload published when a download session ends.
type PhaseReadyEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "phase_ready"
	SessionID       string `json:"session_id"`
	CharacterType   string `json:"character_type"`
	Phase           string `json:"phase"`
	Status          string `json:"status"` // ready, completed, canceled
	TotalFrames     int    `json:"total_frames"`
	SucceededFrames int    `json:"succeeded_frames"`
	FailedFrames    int    `json:"failed_frames"`
	FirstHatch      bool   `json:"first_hatch"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	DurationMs      int64  `json:"duration_ms"`
}

// Adapter publishes phase-ready events to a downstream system.
type Adapter interface {
	// Publish sends an event downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *PhaseReadyEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. Each later retry doubles it.
const BaseBackoff = 500 * time.Millisecond

// Backoff returns the delay before retry number n (1-based).
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(1<<uint(n-1)) * BaseBackoff
}

// Retry calls attempt up to 1+retries times, sleeping Backoff(i) before retry i.
// It stops early when attempt succeeds, when permanent reports the error as
// non-retriable, or when ctx is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
