// Package metrics provides process-local counters for download sessions and
// playback.
//
// The Collector is a leaf package with no internal dependencies. Download and
// playback record into the same Collector so `petframes ensure` and
// `petframes play` can print one summary table.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Download sessions
	SessionsStarted     int64
	SessionsReady       int64 // phase already complete, nothing fetched
	SessionsCompleted   int64
	SessionsCanceled    int64
	SessionsUnsupported int64

	// Frames
	FramesFetched   int64
	FramesFailed    int64
	BytesFetched    int64
	ProgressDropped int64
	FailedByClip    map[string]int64

	// Index / storage
	ClipsPurged int64
	IndexErrors int64

	// Playback
	ClipsLoaded      int64
	ClipLoadFailures int64
	ClipChains       int64
	FramesMissing    int64
	FramesPublished  int64

	// Dimensions (informational, set at construction)
	Source         string
	StorageBackend string
	IndexBackend   string
}

// Collector accumulates counters for one process.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted     int64
	sessionsReady       int64
	sessionsCompleted   int64
	sessionsCanceled    int64
	sessionsUnsupported int64

	framesFetched   int64
	framesFailed    int64
	bytesFetched    int64
	progressDropped int64
	failedByClip    map[string]int64

	clipsPurged int64
	indexErrors int64

	clipsLoaded      int64
	clipLoadFailures int64
	clipChains       int64
	framesMissing    int64
	framesPublished  int64

	source         string
	storageBackend string
	indexBackend   string
}

// NewCollector creates a Collector with dimension labels.
// source is the remote fetcher kind (s3, mirror), storageBackend is the
// frame store backend (fs, memory) and indexBackend is sqlite or memory.
func NewCollector(source, storageBackend, indexBackend string) *Collector {
	return &Collector{
		failedByClip:   make(map[string]int64),
		source:         source,
		storageBackend: storageBackend,
		indexBackend:   indexBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Download sessions ---

// IncSessionStarted records an EnsurePhaseReady call that passed validation.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionReady records a session that found the phase already complete.
func (c *Collector) IncSessionReady() {
	if c == nil {
		return
	}
	c.add(&c.sessionsReady, 1)
}

// IncSessionCompleted records a session that ran every download task.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCompleted, 1)
}

// IncSessionCanceled records a session stopped by context cancellation.
func (c *Collector) IncSessionCanceled() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCanceled, 1)
}

// IncSessionUnsupported records a request for an unknown character or phase.
func (c *Collector) IncSessionUnsupported() {
	if c == nil {
		return
	}
	c.add(&c.sessionsUnsupported, 1)
}

// --- Frames ---

// AddFrameFetched records one stored frame of the given size.
func (c *Collector) AddFrameFetched(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesFetched++
	c.bytesFetched += bytes
	c.mu.Unlock()
}

// IncFrameFailed records a frame whose fetch or store failed.
func (c *Collector) IncFrameFailed(clip string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesFailed++
	c.failedByClip[clip]++
	c.mu.Unlock()
}

// IncProgressDropped records a progress update skipped because the
// consumer was not keeping up.
func (c *Collector) IncProgressDropped() {
	if c == nil {
		return
	}
	c.add(&c.progressDropped, 1)
}

// --- Index / storage ---

// AddClipsPurged records clips whose records were deleted before re-download.
func (c *Collector) AddClipsPurged(n int) {
	if c == nil {
		return
	}
	c.add(&c.clipsPurged, int64(n))
}

// IncIndexError records a failed index operation.
func (c *Collector) IncIndexError() {
	if c == nil {
		return
	}
	c.add(&c.indexErrors, 1)
}

// --- Playback ---

// IncClipLoaded records a clip buffered into the playback engine.
func (c *Collector) IncClipLoaded() {
	if c == nil {
		return
	}
	c.add(&c.clipsLoaded, 1)
}

// IncClipLoadFailure records a clip that could not be loaded.
func (c *Collector) IncClipLoadFailure() {
	if c == nil {
		return
	}
	c.add(&c.clipLoadFailures, 1)
}

// IncClipChain records a one-shot clip handing off to its successor.
func (c *Collector) IncClipChain() {
	if c == nil {
		return
	}
	c.add(&c.clipChains, 1)
}

// AddFramesMissing records indexed frames whose files could not be decoded.
func (c *Collector) AddFramesMissing(n int) {
	if c == nil {
		return
	}
	c.add(&c.framesMissing, int64(n))
}

// IncFramePublished records a frame published to the display surface.
func (c *Collector) IncFramePublished() {
	if c == nil {
		return
	}
	c.add(&c.framesPublished, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := make(map[string]int64, len(c.failedByClip))
	for k, v := range c.failedByClip {
		failed[k] = v
	}

	return Snapshot{
		SessionsStarted:     c.sessionsStarted,
		SessionsReady:       c.sessionsReady,
		SessionsCompleted:   c.sessionsCompleted,
		SessionsCanceled:    c.sessionsCanceled,
		SessionsUnsupported: c.sessionsUnsupported,

		FramesFetched:   c.framesFetched,
		FramesFailed:    c.framesFailed,
		BytesFetched:    c.bytesFetched,
		ProgressDropped: c.progressDropped,
		FailedByClip:    failed,

		ClipsPurged: c.clipsPurged,
		IndexErrors: c.indexErrors,

		ClipsLoaded:      c.clipsLoaded,
		ClipLoadFailures: c.clipLoadFailures,
		ClipChains:       c.clipChains,
		FramesMissing:    c.framesMissing,
		FramesPublished:  c.framesPublished,

		Source:         c.source,
		StorageBackend: c.storageBackend,
		IndexBackend:   c.indexBackend,
	}
}
