package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/ipc"
	"github.com/justapithecus/petframes/playback"
)

// PlayCommand returns the play command.
// Play drives the playback engine from local frames only.
func PlayCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a clip from local frames",
		ArgsUsage: "<character> <phase> [clip]",
		Flags: joinFlags(StorageFlags(), []cli.Flag{
			EmitFlag,
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 plays until interrupted)",
				Value: 5 * time.Second,
			},
			&cli.IntFlag{
				Name:  "fps",
				Usage: "Tick rate (overrides playback.fps)",
			},
		}),
		Action: playAction,
	}
}

func playAction(c *cli.Context) error {
	characterType, phase, err := phaseArgs(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("fps") {
		cfg.Playback.FPS = c.Int("fps")
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()
	if d := c.Duration("duration"); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	e, err := openEnv(ctx, cfg, "play", false)
	if err != nil {
		return err
	}
	defer e.Close()

	catalog := cfg.EffectiveCatalog()
	spec, ok := catalog.Phase(characterType, phase)
	if !ok {
		return cli.Exit(fmt.Sprintf("unsupported character or phase: %s/%s", characterType, phase), exitUnsupported)
	}
	clip := c.Args().Get(2)
	if clip == "" {
		clip = spec.Default()
	}

	engine, err := playback.New(playback.Config{
		Catalog: catalog,
		Loader:  playback.NewLoader(e.index, e.frames, e.logger, e.metrics),
		FPS:     cfg.Playback.FPS,
		Logger:  e.logger,
		Metrics: e.metrics,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid playback config: %v", err), exitConfig)
	}
	defer engine.Cleanup()

	updates := engine.Subscribe()
	defer engine.Unsubscribe(updates)

	var sink frameSink = &lineSink{w: c.App.ErrWriter}
	if c.Bool("emit") {
		sink = &emitSink{enc: ipc.NewFrameEncoder(c.App.Writer)}
	}

	loaded, err := engine.LoadClip(ctx, characterType, phase, clip)
	if err != nil {
		if errors.Is(err, playback.ErrUnknownClip) {
			return cli.Exit(err.Error(), exitUnsupported)
		}
		return cli.Exit(fmt.Sprintf("load clip: %v", err), exitFailure)
	}
	if !loaded {
		return cli.Exit(fmt.Sprintf("no frames indexed for %s/%s/%s; run `petframes ensure %s %s` first",
			characterType, phase, clip, characterType, phase), exitFailure)
	}

	if err := playLoop(ctx, updates, sink); err != nil {
		return cli.Exit(fmt.Sprintf("play: %v", err), exitFailure)
	}

	snap := e.metrics.Snapshot()
	e.logger.Info("playback finished", map[string]any{
		"frames_published": snap.FramesPublished,
		"clip_chains":      snap.ClipChains,
		"frames_missing":   snap.FramesMissing,
	})
	return nil
}

// playLoop forwards snapshots to sink until ctx ends or the channel closes.
func playLoop(ctx context.Context, updates <-chan playback.Snapshot, sink frameSink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if err := sink.Frame(s); err != nil {
				return err
			}
		}
	}
}

// frameSink receives playback snapshots.
type frameSink interface {
	Frame(s playback.Snapshot) error
}

// emitSink writes every snapshot as an ipc frame event.
type emitSink struct {
	enc *ipc.FrameEncoder
}

func (s *emitSink) Frame(snap playback.Snapshot) error {
	return s.enc.WriteFrame(framePayload(snap))
}

// lineSink prints a line whenever the clip or status changes.
type lineSink struct {
	w      io.Writer
	clip   string
	status playback.Status
	seen   bool
}

func (s *lineSink) Frame(snap playback.Snapshot) error {
	if s.seen && snap.Clip == s.clip && snap.Status == s.status {
		return nil
	}
	s.seen = true
	s.clip = snap.Clip
	s.status = snap.Status
	_, err := fmt.Fprintf(s.w, "%s/%s %s: %s (frame %d/%d)\n",
		snap.CharacterType, snap.Phase, snap.Clip, snap.Status, snap.FrameIndex, snap.FrameCount)
	return err
}

func framePayload(s playback.Snapshot) ipc.FramePayload {
	return ipc.FramePayload{
		CharacterType: s.CharacterType,
		Phase:         s.Phase,
		Clip:          s.Clip,
		FrameIndex:    s.FrameIndex,
		FrameCount:    s.FrameCount,
		IsAnimating:   s.IsAnimating,
		Status:        s.Status.String(),
	}
}
