package download

import (
	"context"
	"errors"
	"image/color"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/flock"
	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/petframes/adapter"
	"github.com/justapithecus/petframes/fetch"
	"github.com/justapithecus/petframes/framestore"
	"github.com/justapithecus/petframes/index"
	"github.com/justapithecus/petframes/metrics"
	"github.com/justapithecus/petframes/types"
)

var framePNG = framestore.SolidPNG(2, 2, color.RGBA{R: 0x7C, G: 0x3A, B: 0xED, A: 0xFF})

type fixture struct {
	coord   *Coordinator
	fetcher *fetch.StubFetcher
	frames  *framestore.Store
	index   index.Index
	metrics *metrics.Collector
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: fetch.NewStubFetcher(),
		frames:  framestore.New(lode.NewMemory()),
		index:   index.NewMemory(),
		metrics: metrics.NewCollector("stub", "memory", "memory"),
	}
	f.fetcher.Default = func(string) ([]byte, error) { return framePNG, nil }

	cfg := Config{
		Fetcher: f.fetcher,
		Frames:  f.frames,
		Index:   f.index,
		Metrics: f.metrics,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.index = cfg.Index

	coord, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.coord = coord
	return f
}

// assertComplete checks that every clip has its expected record count and
// every record's file exists.
func assertComplete(t *testing.T, f *fixture, characterType, phase string) {
	t.Helper()
	ctx := context.Background()
	spec, _ := f.coord.catalog.Phase(characterType, phase)
	for _, clip := range spec.Clips {
		n, err := f.index.Count(ctx, characterType, phase, clip.Name)
		if err != nil {
			t.Fatalf("Count(%s): %v", clip.Name, err)
		}
		if n != clip.Frames {
			t.Errorf("Count(%s) = %d, want %d", clip.Name, n, clip.Frames)
		}
		records, _ := f.index.Query(ctx, characterType, phase, clip.Name)
		for _, rec := range records {
			if !f.frames.Exists(ctx, rec.Path) {
				t.Errorf("record %s points at missing file %s", rec.Key(), rec.Path)
			}
		}
	}
}

type recordingPlayer struct {
	mu    sync.Mutex
	clips []string
}

func (p *recordingPlayer) LoadClip(_ context.Context, characterType, phase, clip string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips = append(p.clips, characterType+"/"+phase+"/"+clip)
	return true, nil
}

type recordingAdapter struct {
	mu     sync.Mutex
	events []*adapter.PhaseReadyEvent
}

func (a *recordingAdapter) Publish(_ context.Context, event *adapter.PhaseReadyEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAdapter) Close() error { return nil }

func TestEnsurePhaseReady_DownloadsEveryFrame(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", res.Status)
	}
	if res.TotalFrames != 615 || res.CompletedFrames != 615 || res.SucceededFrames != 615 || res.FailedFrames != 0 {
		t.Errorf("Result = %+v, want 615 succeeded", res)
	}
	if res.SessionID == "" {
		t.Error("SessionID is empty")
	}
	if got := f.fetcher.CallCount(); got != 615 {
		t.Errorf("fetches = %d, want 615", got)
	}
	assertComplete(t, f, "quokka", "infant")

	s := f.metrics.Snapshot()
	if s.FramesFetched != 615 || s.BytesFetched != int64(615*len(framePNG)) {
		t.Errorf("metrics frames/bytes = %d/%d", s.FramesFetched, s.BytesFetched)
	}
	if s.SessionsCompleted != 1 || s.ClipsPurged != 7 {
		t.Errorf("metrics sessions/purged = %d/%d, want 1/7", s.SessionsCompleted, s.ClipsPurged)
	}
}

func TestEnsurePhaseReady_Idempotent(t *testing.T) {
	player := &recordingPlayer{}
	f := newFixture(t, func(c *Config) { c.Player = player })
	ctx := context.Background()

	if _, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	before := f.fetcher.CallCount()

	res, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if res.Status != StatusReady {
		t.Errorf("Status = %q, want ready", res.Status)
	}
	if got := f.fetcher.CallCount() - before; got != 0 {
		t.Errorf("second call fetched %d frames, want 0", got)
	}
	if len(player.clips) != 1 || player.clips[0] != "quokka/infant/normal" {
		t.Errorf("player loads = %v, want [quokka/infant/normal]", player.clips)
	}
}

// opLog records index deletes and fetches in one sequence.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

type spyIndex struct {
	index.Index
	log *opLog
}

func (s *spyIndex) DeleteAll(ctx context.Context, characterType, phase, clip string) error {
	s.log.add("delete:" + clip)
	return s.Index.DeleteAll(ctx, characterType, phase, clip)
}

func (s *spyIndex) DeleteEverything(ctx context.Context) error {
	s.log.add("delete_everything")
	return s.Index.DeleteEverything(ctx)
}

type spyFetcher struct {
	fetch.Fetcher
	log     *opLog
	once    sync.Once
	onFirst func()
}

func (s *spyFetcher) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	s.once.Do(s.onFirst)
	s.log.add("fetch")
	return s.Fetcher.Fetch(ctx, path, maxBytes)
}

func seedFrames(t *testing.T, f *fixture, clip string, n, total int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		key := types.FrameKey{CharacterType: "quokka", Phase: "infant", Clip: clip, FrameIndex: i}
		if err := f.frames.Write(ctx, key.LocalPath(), framePNG); err != nil {
			t.Fatalf("Write: %v", err)
		}
		rec := types.FrameRecord{
			CharacterType: "quokka", Phase: "infant", Clip: clip, FrameIndex: i,
			Path: key.LocalPath(), ByteSize: int64(len(framePNG)), TotalFramesInClip: total,
		}
		if err := f.index.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
}

func TestEnsurePhaseReady_PurgesEveryClipBeforeFirstFetch(t *testing.T) {
	ops := &opLog{}
	mem := index.NewMemory()
	var countsAtFirstFetch map[string]int

	fx := newFixture(t, func(c *Config) {
		c.Index = &spyIndex{Index: mem, log: ops}
		c.Fetcher = &spyFetcher{Fetcher: c.Fetcher, log: ops, onFirst: func() {
			countsAtFirstFetch = make(map[string]int)
			spec, _ := types.DefaultCatalog().Phase("quokka", "infant")
			for _, clip := range spec.Clips {
				n, _ := mem.Count(context.Background(), "quokka", "infant", clip.Name)
				countsAtFirstFetch[clip.Name] = n
			}
		}}
	})

	// Every clip complete except normal, which has 50 of 122 frames.
	spec, _ := types.DefaultCatalog().Phase("quokka", "infant")
	for _, clip := range spec.Clips {
		n := clip.Frames
		if clip.Name == "normal" {
			n = 50
		}
		seedFrames(t, fx, clip.Name, n, clip.Frames)
	}
	ops.ops = nil

	res, err := fx.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}

	deletes := 0
	for i, op := range ops.ops {
		if op == "fetch" {
			if deletes != 7 {
				t.Fatalf("first fetch at op %d after %d deletes, want 7", i, deletes)
			}
			break
		}
		deletes++
	}
	for clip, n := range countsAtFirstFetch {
		if n != 0 {
			t.Errorf("clip %s had %d records at first fetch, want 0", clip, n)
		}
	}
	if len(countsAtFirstFetch) != 7 {
		t.Errorf("checked %d clips at first fetch, want 7", len(countsAtFirstFetch))
	}
	if got := len(ops.ops) - deletes; got != 615 {
		t.Errorf("fetches = %d, want 1+1+122+204+60+54+173 = 615", got)
	}
	if res.PurgedClips != 7 || res.Status != StatusCompleted {
		t.Errorf("Result = %+v", res)
	}
	assertComplete(t, fx, "quokka", "infant")
}

func TestEnsurePhaseReady_PartialFailureTolerance(t *testing.T) {
	catalog := types.Catalog{"quokka": {"egg": {Clips: []types.ClipSpec{
		{Name: "normal", Frames: 100, Mode: types.ModeLoop},
	}}}}
	f := newFixture(t, func(c *Config) { c.Catalog = catalog })

	rng := rand.New(rand.NewPCG(7, 11))
	failing := rng.Perm(100)[:10]
	for _, i := range failing {
		key := types.FrameKey{CharacterType: "quokka", Phase: "egg", Clip: "normal", FrameIndex: i + 1}
		f.fetcher.Fail(key.RemotePath(), errors.New("connection reset"))
	}

	res, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "egg", Options{})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", res.Status)
	}
	if res.CompletedFrames != 100 {
		t.Errorf("CompletedFrames = %d, want 100 (successes + failures)", res.CompletedFrames)
	}
	if res.SucceededFrames != 90 || res.FailedFrames != 10 {
		t.Errorf("succeeded/failed = %d/%d, want 90/10", res.SucceededFrames, res.FailedFrames)
	}
	n, _ := f.index.Count(context.Background(), "quokka", "egg", "normal")
	if n != 90 {
		t.Errorf("Count = %d, want 90", n)
	}
	if got := f.metrics.Snapshot().FailedByClip["normal"]; got != 10 {
		t.Errorf("FailedByClip[normal] = %d, want 10", got)
	}

	// The gap is detected on the next call and the whole phase is redone.
	before := f.fetcher.CallCount()
	res, _ = f.coord.EnsurePhaseReady(context.Background(), "quokka", "egg", Options{})
	if res.Status != StatusCompleted {
		t.Errorf("second Status = %q, want completed", res.Status)
	}
	if got := f.fetcher.CallCount() - before; got != 100 {
		t.Errorf("second call fetched %d, want 100", got)
	}
}

func TestEnsurePhaseReady_MissingSampledFileTriggersRedownload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	key := types.FrameKey{CharacterType: "quokka", Phase: "infant", Clip: "sleep3mouth", FrameIndex: 3}
	if err := f.frames.Remove(ctx, key.LocalPath()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	before := f.fetcher.CallCount()
	res, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", res.Status)
	}
	if got := f.fetcher.CallCount() - before; got != 615 {
		t.Errorf("fetches = %d, want 615", got)
	}
	assertComplete(t, f, "quokka", "infant")
}

func TestEnsurePhaseReady_Unsupported(t *testing.T) {
	ops := &opLog{}
	f := newFixture(t, func(c *Config) {
		c.Index = &spyIndex{Index: index.NewMemory(), log: ops}
	})

	for _, tc := range [][2]string{{"koala", "infant"}, {"quokka", "egg"}} {
		res, err := f.coord.EnsurePhaseReady(context.Background(), tc[0], tc[1], Options{})
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%v: err = %v, want ErrUnsupported", tc, err)
		}
		if res.Status != StatusUnsupported {
			t.Errorf("%v: Status = %q, want unsupported", tc, res.Status)
		}
	}
	if got := f.fetcher.CallCount(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
	if len(ops.ops) != 0 {
		t.Errorf("index ops = %v, want none", ops.ops)
	}
	if got := f.metrics.Snapshot().SessionsUnsupported; got != 2 {
		t.Errorf("SessionsUnsupported = %d, want 2", got)
	}
}

func TestEnsurePhaseReady_IndexUnavailable(t *testing.T) {
	mem := index.NewMemory()
	_ = mem.Close()
	f := newFixture(t, func(c *Config) { c.Index = mem })

	_, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{})
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want ErrIndexUnavailable", err)
	}
	if got := f.fetcher.CallCount(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
}

func TestEnsurePhaseReady_FirstHatch(t *testing.T) {
	player := &recordingPlayer{}
	var hatched []string
	hook := HookFunc(func(_ context.Context, characterType, phase string) error {
		hatched = append(hatched, characterType+"/"+phase)
		return nil
	})
	f := newFixture(t, func(c *Config) {
		c.Player = player
		c.Hook = hook
	})

	if _, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{FirstHatch: true}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if len(hatched) != 1 || hatched[0] != "quokka/infant" {
		t.Errorf("hatched = %v, want [quokka/infant]", hatched)
	}
	if len(player.clips) != 1 || player.clips[0] != "quokka/infant/normal" {
		t.Errorf("player loads = %v", player.clips)
	}
}

func TestEnsurePhaseReady_NoHatchSkipsHookAndPlayback(t *testing.T) {
	player := &recordingPlayer{}
	called := false
	f := newFixture(t, func(c *Config) {
		c.Player = player
		c.Hook = HookFunc(func(context.Context, string, string) error {
			called = true
			return nil
		})
	})

	if _, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if called {
		t.Error("hook ran without FirstHatch")
	}
	if len(player.clips) != 0 {
		t.Errorf("player loads = %v, want none", player.clips)
	}
}

func TestEnsurePhaseReady_HookErrorIsNotFatal(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Hook = HookFunc(func(context.Context, string, string) error { return errors.New("profile store down") })
	})

	res, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{FirstHatch: true})
	if err != nil || res.Status != StatusCompleted {
		t.Errorf("EnsurePhaseReady = %+v, %v; want completed", res, err)
	}
}

func TestEnsurePhaseReady_PublishesEvent(t *testing.T) {
	rec := &recordingAdapter{}
	f := newFixture(t, func(c *Config) { c.Adapter = rec })
	ctx := context.Background()

	first, _ := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{FirstHatch: true})
	second, _ := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})

	if len(rec.events) != 2 {
		t.Fatalf("events = %d, want 2", len(rec.events))
	}
	e := rec.events[0]
	if e.EventType != adapter.EventTypePhaseReady || e.SessionID != first.SessionID {
		t.Errorf("event = %+v", e)
	}
	if e.Status != "completed" || e.TotalFrames != 615 || e.SucceededFrames != 615 || !e.FirstHatch {
		t.Errorf("event = %+v", e)
	}
	if e.ContractVersion != types.ContractVersion {
		t.Errorf("ContractVersion = %q, want %q", e.ContractVersion, types.ContractVersion)
	}
	if rec.events[1].Status != "ready" || rec.events[1].SessionID != second.SessionID {
		t.Errorf("second event = %+v", rec.events[1])
	}
	if first.SessionID == second.SessionID {
		t.Error("session IDs should differ")
	}
}

func TestEnsurePhaseReady_Progress(t *testing.T) {
	f := newFixture(t, nil)
	ch := make(chan Progress, 1024)

	res, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{Progress: ch})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	close(ch)

	var updates []Progress
	for p := range ch {
		updates = append(updates, p)
	}
	if len(updates) != 616 {
		t.Fatalf("updates = %d, want 616 (start + one per frame)", len(updates))
	}
	seen := make(map[int]bool)
	for _, p := range updates {
		if p.SessionID != res.SessionID || p.Total != 615 {
			t.Fatalf("update = %+v", p)
		}
		if p.Progress < 0 || p.Progress > 1 {
			t.Errorf("Progress = %v, out of range", p.Progress)
		}
		seen[p.Completed] = true
	}
	for i := 0; i <= 615; i++ {
		if !seen[i] {
			t.Errorf("no update with Completed = %d", i)
		}
	}
	last := updates[len(updates)-1]
	if last.IsDownloading || last.Completed != 615 || last.Progress != 1 {
		t.Errorf("last update = %+v, want done", last)
	}
}

func TestEnsurePhaseReady_ProgressDropsWhenFull(t *testing.T) {
	f := newFixture(t, nil)
	ch := make(chan Progress, 1)
	done := make(chan Progress, 1)
	go func() {
		var last Progress
		for p := range ch {
			last = p
		}
		done <- last
	}()

	if _, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{Progress: ch}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	close(ch)

	last := <-done
	if last.Completed != 615 || last.IsDownloading {
		t.Errorf("last update = %+v, want final", last)
	}
}

func TestEnsurePhaseReady_Canceled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Status != StatusCanceled {
		t.Errorf("Status = %q, want canceled", res.Status)
	}
	if res.CompletedFrames != 615 || res.FailedFrames != 615 {
		t.Errorf("completed/failed = %d/%d, want 615/615", res.CompletedFrames, res.FailedFrames)
	}
	if got := f.fetcher.CallCount(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
}

func TestEnsurePhaseReady_CanceledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	f := newFixture(t, func(c *Config) { c.Concurrency = 4 })
	f.fetcher.Default = func(string) ([]byte, error) {
		if calls.Add(1) == 20 {
			cancel()
		}
		return framePNG, nil
	}

	res, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})
	if !errors.Is(err, context.Canceled) || res.Status != StatusCanceled {
		t.Fatalf("EnsurePhaseReady = %q, %v; want canceled", res.Status, err)
	}
	if res.SucceededFrames+res.FailedFrames != 615 || res.CompletedFrames != 615 {
		t.Errorf("Result = %+v, want every task accounted for", res)
	}
	if res.SucceededFrames >= 615 {
		t.Errorf("SucceededFrames = %d, want fewer than 615", res.SucceededFrames)
	}
	n := 0
	spec, _ := types.DefaultCatalog().Phase("quokka", "infant")
	for _, clip := range spec.Clips {
		c, _ := f.index.Count(context.Background(), "quokka", "infant", clip.Name)
		n += c
	}
	if n != res.SucceededFrames {
		t.Errorf("indexed records = %d, want %d", n, res.SucceededFrames)
	}
}

// cancelingIndex cancels a context while inserting the n-th record.
type cancelingIndex struct {
	index.Index
	inserts atomic.Int32
	n       int32
	cancel  context.CancelFunc
}

func (c *cancelingIndex) Insert(ctx context.Context, rec types.FrameRecord) error {
	err := c.Index.Insert(ctx, rec)
	if c.inserts.Add(1) == c.n {
		c.cancel()
	}
	return err
}

func TestEnsurePhaseReady_CanceledAfterLastFrameCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := &cancelingIndex{Index: index.NewMemory(), n: 615, cancel: cancel}
	f := newFixture(t, func(c *Config) { c.Index = idx })

	res, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{})
	if err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", res.Status)
	}
	if res.SucceededFrames != 615 || res.FailedFrames != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 615/0", res.SucceededFrames, res.FailedFrames)
	}
	if got := f.metrics.Snapshot().SessionsCanceled; got != 0 {
		t.Errorf("SessionsCanceled = %d, want 0", got)
	}
	assertComplete(t, f, "quokka", "infant")
}

type gaugeFetcher struct {
	fetch.Fetcher
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gaugeFetcher) Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return g.Fetcher.Fetch(ctx, path, maxBytes)
}

func TestEnsurePhaseReady_ConcurrencyLimit(t *testing.T) {
	gauge := &gaugeFetcher{}
	f := newFixture(t, func(c *Config) {
		gauge.Fetcher = c.Fetcher
		c.Fetcher = gauge
		c.Concurrency = 3
	})

	if _, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}
	if got := gauge.peak.Load(); got > 3 {
		t.Errorf("peak in-flight fetches = %d, want <= 3", got)
	}
}

func TestEnsurePhaseReady_LockHeldElsewhere(t *testing.T) {
	root := t.TempDir()
	other := flock.New(filepath.Join(root, LockFileName))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock = %v, %v", locked, err)
	}
	defer func() { _ = other.Unlock() }()

	ops := &opLog{}
	f := newFixture(t, func(c *Config) {
		c.Index = &spyIndex{Index: index.NewMemory(), log: ops}
		c.Lock = NewFileLock(root)
	})

	_, err = f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{})
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("err = %v, want ErrSessionInProgress", err)
	}
	if len(ops.ops) != 0 || f.fetcher.CallCount() != 0 {
		t.Errorf("ops = %v, fetches = %d; want nothing", ops.ops, f.fetcher.CallCount())
	}
}

func TestEnsurePhaseReady_LockReleased(t *testing.T) {
	root := t.TempDir()
	f := newFixture(t, func(c *Config) { c.Lock = NewFileLock(root) })

	if _, err := f.coord.EnsurePhaseReady(context.Background(), "quokka", "infant", Options{}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}

	other := flock.New(filepath.Join(root, LockFileName))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Errorf("lock still held after session: %v, %v", locked, err)
	}
	_ = other.Unlock()
}

func TestInspect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedFrames(t, f, "normal", 50, 122)
	seedFrames(t, f, "eating", 1, 1)

	got, err := f.coord.Inspect(ctx, "quokka", "infant")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	byClip := make(map[string]ClipStatus)
	for _, st := range got {
		byClip[st.Clip] = st
	}
	if st := byClip["normal"]; st.Indexed != 50 || st.Expected != 122 || st.Complete {
		t.Errorf("normal = %+v", st)
	}
	if st := byClip["eating"]; !st.Complete || st.Sampled != 1 {
		t.Errorf("eating = %+v", st)
	}
	if st := byClip["sleep1Start"]; st.Indexed != 0 || st.Complete {
		t.Errorf("sleep1Start = %+v", st)
	}

	if _, err := f.coord.Inspect(ctx, "koala", "infant"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Inspect(koala) err = %v, want ErrUnsupported", err)
	}
}

func TestPurge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.coord.EnsurePhaseReady(ctx, "quokka", "infant", Options{}); err != nil {
		t.Fatalf("EnsurePhaseReady: %v", err)
	}

	n, err := f.coord.Purge(ctx, "quokka", "infant", true)
	if err != nil || n != 7 {
		t.Fatalf("Purge = %d, %v; want 7, nil", n, err)
	}
	for _, clip := range []string{"normal", "sleep4WakeUp"} {
		if c, _ := f.index.Count(ctx, "quokka", "infant", clip); c != 0 {
			t.Errorf("Count(%s) = %d after purge", clip, c)
		}
	}
	key := types.FrameKey{CharacterType: "quokka", Phase: "infant", Clip: "normal", FrameIndex: 1}
	if f.frames.Exists(ctx, key.LocalPath()) {
		t.Error("frame file survived purge with removeFiles")
	}
}

func TestNew_Validation(t *testing.T) {
	base := Config{Fetcher: fetch.NewStubFetcher(), Frames: framestore.New(lode.NewMemory()), Index: index.NewMemory()}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no fetcher", func(c *Config) { c.Fetcher = nil }},
		{"no frames", func(c *Config) { c.Frames = nil }},
		{"no index", func(c *Config) { c.Index = nil }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	c, err := New(base)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.sampleSize != DefaultSampleSize || c.maxBytes != fetch.DefaultMaxBytes {
		t.Errorf("defaults = %d/%d", c.sampleSize, c.maxBytes)
	}
}

func TestProgressMessage(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, messageDownloading},
		{0.5, messageDownloading},
		{0.75, messageFinishing},
		{0.99, messageFinishing},
		{1, messageDone},
	}
	for _, tt := range tests {
		if got := progressMessage(tt.ratio); got != tt.want {
			t.Errorf("progressMessage(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}
