// Package download makes every frame of a character phase available locally.
//
// Coordinator.EnsurePhaseReady checks the index against the clip catalog.
// When anything is missing it purges the phase and fetches every frame in
// parallel. Fetch tasks write frames to the frame store; a single writer
// goroutine inserts index records and counts completions, so index mutations
// are serialized and a frame's write and insert happen before it is counted.
package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/petframes/adapter"
	"github.com/justapithecus/petframes/fetch"
	"github.com/justapithecus/petframes/framestore"
	"github.com/justapithecus/petframes/index"
	"github.com/justapithecus/petframes/log"
	"github.com/justapithecus/petframes/metrics"
	"github.com/justapithecus/petframes/types"
)

// DefaultSampleSize is the number of records per clip whose files are
// checked for existence during the completeness check.
const DefaultSampleSize = 10

// Config wires a Coordinator. Fetcher, Frames and Index are required.
type Config struct {
	Catalog types.Catalog
	Fetcher fetch.Fetcher
	Frames  *framestore.Store
	Index   index.Index

	// Player loads the default clip once a phase is ready. Optional.
	Player ClipLoader
	// Hook runs after a first-hatch download. Optional.
	Hook LifecycleHook
	// Adapter is notified when a session ends. Optional.
	Adapter adapter.Adapter
	// Lock guards purge and download against other processes. Optional.
	Lock Locker

	// Concurrency caps in-flight fetches. Zero means unbounded.
	Concurrency int
	// MaxFrameBytes is the per-frame size ceiling. Zero means fetch.DefaultMaxBytes.
	MaxFrameBytes int64
	// SampleSize overrides DefaultSampleSize when positive.
	SampleSize int

	Logger  *log.Logger
	Metrics *metrics.Collector
}

// Coordinator runs download sessions.
type Coordinator struct {
	catalog     types.Catalog
	fetcher     fetch.Fetcher
	frames      *framestore.Store
	index       index.Index
	player      ClipLoader
	hook        LifecycleHook
	adapter     adapter.Adapter
	lock        Locker
	concurrency int
	maxBytes    int64
	sampleSize  int
	logger      *log.Logger
	metrics     *metrics.Collector
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Fetcher == nil:
		return nil, errors.New("download: fetcher is required")
	case cfg.Frames == nil:
		return nil, errors.New("download: frame store is required")
	case cfg.Index == nil:
		return nil, errors.New("download: index is required")
	case cfg.Concurrency < 0:
		return nil, fmt.Errorf("download: concurrency must be >= 0, got %d", cfg.Concurrency)
	}

	c := &Coordinator{
		catalog:     cfg.Catalog,
		fetcher:     cfg.Fetcher,
		frames:      cfg.Frames,
		index:       cfg.Index,
		player:      cfg.Player,
		hook:        cfg.Hook,
		adapter:     cfg.Adapter,
		lock:        cfg.Lock,
		concurrency: cfg.Concurrency,
		maxBytes:    cfg.MaxFrameBytes,
		sampleSize:  cfg.SampleSize,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if c.catalog == nil {
		c.catalog = types.DefaultCatalog()
	}
	if c.maxBytes <= 0 {
		c.maxBytes = fetch.DefaultMaxBytes
	}
	if c.sampleSize <= 0 {
		c.sampleSize = DefaultSampleSize
	}
	if c.logger == nil {
		c.logger = log.NewNop()
	}
	return c, nil
}

// EnsurePhaseReady makes every frame of characterType/phase available.
//
// When the index and sampled files show the phase complete, nothing is
// fetched and the result is StatusReady. Otherwise every clip of the phase is
// purged and re-downloaded; individual frame failures are counted, never
// retried, and do not fail the session. An index error before the download
// returns an error wrapping index.ErrIndexUnavailable without any fetch.
//
// Cancelling ctx skips tasks that have not started; the result is then
// StatusCanceled and ctx.Err() is returned.
func (c *Coordinator) EnsurePhaseReady(ctx context.Context, characterType, phase string, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{
		SessionID:     uuid.NewString(),
		CharacterType: characterType,
		Phase:         phase,
	}
	logger := c.logger.With(log.Context{
		CharacterType: characterType,
		Phase:         phase,
		SessionID:     res.SessionID,
	})

	spec, ok := c.catalog.Phase(characterType, phase)
	if !ok {
		res.Status = StatusUnsupported
		c.metrics.IncSessionUnsupported()
		logger.Warn("no clip table for phase", nil)
		return res, fmt.Errorf("%w: %s/%s", ErrUnsupported, characterType, phase)
	}
	c.metrics.IncSessionStarted()
	res.TotalFrames = spec.TotalFrames()

	incomplete, err := c.incompleteClips(ctx, characterType, phase, spec)
	if err != nil {
		c.metrics.IncIndexError()
		logger.Error("completeness check failed", map[string]any{"error": err.Error()})
		return res, fmt.Errorf("completeness check: %w", err)
	}

	if len(incomplete) == 0 {
		res.Status = StatusReady
		res.Duration = time.Since(start)
		c.metrics.IncSessionReady()
		logger.Info("phase ready", map[string]any{"total_frames": res.TotalFrames})
		c.report(ctx, opts.Progress, Progress{
			SessionID: res.SessionID,
			Completed: res.TotalFrames,
			Total:     res.TotalFrames,
			Progress:  1,
			Message:   messageDone,
		}, true)
		c.loadDefault(ctx, logger, characterType, phase, spec)
		c.publish(ctx, logger, res, opts)
		return res, nil
	}

	if c.lock != nil {
		locked, err := c.lock.TryLock()
		if err != nil {
			return res, fmt.Errorf("acquire download lock: %w", err)
		}
		if !locked {
			return res, ErrSessionInProgress
		}
		defer func() { _ = c.lock.Unlock() }()
	}

	logger.Info("phase incomplete, purging", map[string]any{
		"incomplete_clips": incomplete,
		"total_frames":     res.TotalFrames,
	})
	for _, clip := range spec.Clips {
		if err := c.index.DeleteAll(ctx, characterType, phase, clip.Name); err != nil {
			c.metrics.IncIndexError()
			return res, fmt.Errorf("purge %s: %w", clip.Name, err)
		}
	}
	res.PurgedClips = len(spec.Clips)
	c.metrics.AddClipsPurged(len(spec.Clips))

	skipped := c.download(ctx, logger, spec, res, opts.Progress)
	res.Duration = time.Since(start)

	if skipped > 0 {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		res.Status = StatusCanceled
		c.metrics.IncSessionCanceled()
		logger.Warn("download canceled", map[string]any{
			"succeeded": res.SucceededFrames,
			"failed":    res.FailedFrames,
			"skipped":   skipped,
		})
		return res, err
	}

	res.Status = StatusCompleted
	c.metrics.IncSessionCompleted()
	logger.Info("download completed", map[string]any{
		"succeeded":   res.SucceededFrames,
		"failed":      res.FailedFrames,
		"duration_ms": res.Duration.Milliseconds(),
	})

	if opts.FirstHatch {
		if c.hook != nil {
			if err := c.hook.Hatched(ctx, characterType, phase); err != nil {
				logger.Error("lifecycle hook failed", map[string]any{"error": err.Error()})
			}
		}
		c.loadDefault(ctx, logger, characterType, phase, spec)
	}
	c.publish(ctx, logger, res, opts)
	return res, nil
}

// incompleteClips returns the clips failing the completeness check.
// A clip is complete when its record count matches the expected frame count
// and the first SampleSize records point at existing files.
func (c *Coordinator) incompleteClips(ctx context.Context, characterType, phase string, spec types.PhaseSpec) ([]string, error) {
	var incomplete []string
	for _, clip := range spec.Clips {
		st, err := c.clipStatus(ctx, characterType, phase, clip)
		if err != nil {
			return nil, err
		}
		if !st.Complete {
			incomplete = append(incomplete, clip.Name)
		}
	}
	return incomplete, nil
}

// frameOutcome is the result of one fetch task, consumed by the writer.
type frameOutcome struct {
	key   types.FrameKey
	total int
	size  int64
	err   error
}

// download runs every fetch task and returns how many were cut short by
// cancellation.
func (c *Coordinator) download(ctx context.Context, logger *log.Logger, spec types.PhaseSpec, res *Result, progress chan<- Progress) int {
	results := make(chan frameOutcome)

	go func() {
		defer close(results)
		var g errgroup.Group
		if c.concurrency > 0 {
			g.SetLimit(c.concurrency)
		}
		for _, clip := range spec.Clips {
			for i := 1; i <= clip.Frames; i++ {
				key := types.FrameKey{
					CharacterType: res.CharacterType,
					Phase:         res.Phase,
					Clip:          clip.Name,
					FrameIndex:    i,
				}
				total := clip.Frames
				g.Go(func() error {
					results <- c.fetchFrame(ctx, key, total)
					return nil
				})
			}
		}
		_ = g.Wait()
	}()

	c.report(ctx, progress, Progress{
		SessionID:     res.SessionID,
		IsDownloading: true,
		Total:         res.TotalFrames,
		Message:       messageDownloading,
	}, false)

	// Records for frames already on disk are inserted even after cancellation.
	insertCtx := context.WithoutCancel(ctx)
	skipped := 0
	for out := range results {
		if out.err == nil {
			rec := types.FrameRecord{
				CharacterType:     out.key.CharacterType,
				Phase:             out.key.Phase,
				Clip:              out.key.Clip,
				FrameIndex:        out.key.FrameIndex,
				Path:              out.key.LocalPath(),
				ByteSize:          out.size,
				TotalFramesInClip: out.total,
			}
			if err := c.index.Insert(insertCtx, rec); err != nil {
				c.metrics.IncIndexError()
				out.err = fmt.Errorf("index insert: %w", err)
			}
		}

		res.CompletedFrames++
		if out.err != nil {
			res.FailedFrames++
			c.metrics.IncFrameFailed(out.key.Clip)
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				skipped++
			} else {
				logger.Warn("frame failed", map[string]any{
					"clip":        out.key.Clip,
					"frame_index": out.key.FrameIndex,
					"error":       out.err.Error(),
				})
			}
		} else {
			res.SucceededFrames++
			c.metrics.AddFrameFetched(out.size)
		}

		ratio := float64(res.CompletedFrames) / float64(res.TotalFrames)
		final := res.CompletedFrames == res.TotalFrames
		c.report(ctx, progress, Progress{
			SessionID:     res.SessionID,
			IsDownloading: !final,
			Completed:     res.CompletedFrames,
			Total:         res.TotalFrames,
			Progress:      ratio,
			Message:       progressMessage(ratio),
		}, final)
	}
	return skipped
}

// fetchFrame fetches one frame and writes it to the frame store.
func (c *Coordinator) fetchFrame(ctx context.Context, key types.FrameKey, total int) frameOutcome {
	out := frameOutcome{key: key, total: total}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	data, err := c.fetcher.Fetch(ctx, key.RemotePath(), c.maxBytes)
	if err != nil {
		out.err = err
		return out
	}
	if err := c.frames.Write(ctx, key.LocalPath(), data); err != nil {
		out.err = err
		return out
	}
	out.size = int64(len(data))
	return out
}

// report delivers a progress update. Intermediate updates never block.
func (c *Coordinator) report(ctx context.Context, ch chan<- Progress, p Progress, final bool) {
	if ch == nil {
		return
	}
	if final {
		select {
		case ch <- p:
		case <-ctx.Done():
		}
		return
	}
	select {
	case ch <- p:
	default:
		c.metrics.IncProgressDropped()
	}
}

func (c *Coordinator) loadDefault(ctx context.Context, logger *log.Logger, characterType, phase string, spec types.PhaseSpec) {
	if c.player == nil {
		return
	}
	clip := spec.Default()
	ok, err := c.player.LoadClip(ctx, characterType, phase, clip)
	if err != nil {
		logger.Error("default clip load failed", map[string]any{"clip": clip, "error": err.Error()})
		return
	}
	if !ok {
		logger.Warn("default clip has no frames", map[string]any{"clip": clip})
	}
}

func (c *Coordinator) publish(ctx context.Context, logger *log.Logger, res *Result, opts Options) {
	if c.adapter == nil {
		return
	}
	event := &adapter.PhaseReadyEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypePhaseReady,
		SessionID:       res.SessionID,
		CharacterType:   res.CharacterType,
		Phase:           res.Phase,
		Status:          string(res.Status),
		TotalFrames:     res.TotalFrames,
		SucceededFrames: res.SucceededFrames,
		FailedFrames:    res.FailedFrames,
		FirstHatch:      opts.FirstHatch,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		DurationMs:      res.Duration.Milliseconds(),
	}
	if err := c.adapter.Publish(ctx, event); err != nil {
		logger.Warn("phase ready notification failed", map[string]any{"error": err.Error()})
	}
}
