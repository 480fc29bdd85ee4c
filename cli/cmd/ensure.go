package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/cli/render"
	"github.com/justapithecus/petframes/cli/tui"
	"github.com/justapithecus/petframes/download"
	"github.com/justapithecus/petframes/ipc"
)

// EnsureCommand returns the ensure command.
// Ensure is the only command that downloads frames.
func EnsureCommand() *cli.Command {
	return &cli.Command{
		Name:      "ensure",
		Usage:     "Make every frame of a character phase available locally",
		ArgsUsage: "<character> <phase>",
		Flags: joinFlags(StorageFlags(), ReadOnlyFlags(), []cli.Flag{
			TUIFlag,
			EmitFlag,
			&cli.BoolFlag{
				Name:  "hatch",
				Usage: "First hatch: run the hatch hook once the download finishes",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Max in-flight fetches (overrides download.concurrency, 0 = unbounded)",
			},
		}),
		Action: ensureAction,
	}
}

func ensureAction(c *cli.Context) error {
	characterType, phase, err := phaseArgs(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") && c.Bool("emit") {
		return cli.Exit("--tui and --emit are mutually exclusive", exitFailure)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("concurrency") {
		cfg.Download.Concurrency = c.Int("concurrency")
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	e, err := openEnv(ctx, cfg, "ensure", true)
	if err != nil {
		return err
	}
	defer e.Close()

	hatch := c.Bool("hatch")
	var hook download.LifecycleHook
	if hatch {
		hook = download.HookFunc(func(_ context.Context, characterType, phase string) error {
			e.logger.Info("phase hatched", map[string]any{
				"character_type": characterType,
				"phase":          phase,
			})
			return nil
		})
	}

	coord, err := e.coordinator(nil, hook)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, progress chan<- download.Progress) (*download.Result, error) {
		return coord.EnsurePhaseReady(ctx, characterType, phase, download.Options{
			FirstHatch: hatch,
			Progress:   progress,
		})
	}

	var res *download.Result
	switch {
	case c.Bool("tui"):
		res, err = tui.RunProgress(ctx, characterType, phase, run)
	case c.Bool("emit"):
		res, err = runEmitting(ctx, ipc.NewFrameEncoder(c.App.Writer), run)
	default:
		res, err = runWithProgressLines(ctx, c.App.ErrWriter, render.IsTTY(os.Stderr), run)
	}

	if err != nil && !(errors.Is(err, context.Canceled) && res != nil) {
		switch {
		case errors.Is(err, download.ErrUnsupported):
			return cli.Exit(err.Error(), exitUnsupported)
		case errors.Is(err, download.ErrSessionInProgress):
			return cli.Exit(err.Error(), exitBusy)
		default:
			return cli.Exit(fmt.Sprintf("ensure failed: %v", err), exitFailure)
		}
	}

	if !c.Bool("emit") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if err := r.Render(res); err != nil {
			return err
		}
	}

	if code := resultExitCode(res); code != exitSuccess {
		return cli.Exit("", code)
	}
	return nil
}

// resultExitCode maps a session result to an exit code.
func resultExitCode(res *download.Result) int {
	switch res.Status {
	case download.StatusReady:
		return exitSuccess
	case download.StatusCompleted:
		if res.FailedFrames > 0 {
			return exitPartial
		}
		return exitSuccess
	case download.StatusCanceled:
		return exitCanceled
	case download.StatusUnsupported:
		return exitUnsupported
	default:
		return exitFailure
	}
}

// runEmitting runs a session, writing progress and the result as ipc events.
func runEmitting(ctx context.Context, enc *ipc.FrameEncoder, run tui.RunFunc) (*download.Result, error) {
	updates := make(chan download.Progress, 64)
	var writeErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range updates {
			if writeErr != nil {
				continue
			}
			writeErr = enc.WriteProgress(progressPayload(p))
		}
	}()

	res, err := run(ctx, updates)
	close(updates)
	<-done

	if res != nil && writeErr == nil {
		writeErr = enc.WriteResult(resultPayload(res))
	}
	if err == nil && writeErr != nil {
		err = fmt.Errorf("emit: %w", writeErr)
	}
	return res, err
}

// runWithProgressLines runs a session, printing progress to w. On a
// terminal the line is rewritten in place; otherwise one line is printed
// per 10% step.
func runWithProgressLines(ctx context.Context, w io.Writer, tty bool, run tui.RunFunc) (*download.Result, error) {
	updates := make(chan download.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lastStep := -1
		for p := range updates {
			if !p.IsDownloading && p.Total == 0 {
				continue
			}
			if tty {
				fmt.Fprintf(w, "\r[%3.0f%%] %d/%d %s", p.Progress*100, p.Completed, p.Total, p.Message)
				continue
			}
			step := int(p.Progress * 10)
			if step == lastStep {
				continue
			}
			lastStep = step
			fmt.Fprintf(w, "[%3.0f%%] %d/%d %s\n", p.Progress*100, p.Completed, p.Total, p.Message)
		}
		if tty {
			fmt.Fprintln(w)
		}
	}()

	res, err := run(ctx, updates)
	close(updates)
	<-done
	return res, err
}

func progressPayload(p download.Progress) ipc.ProgressPayload {
	return ipc.ProgressPayload{
		SessionID:     p.SessionID,
		IsDownloading: p.IsDownloading,
		Completed:     p.Completed,
		Total:         p.Total,
		Progress:      p.Progress,
		Message:       p.Message,
	}
}

func resultPayload(r *download.Result) ipc.ResultPayload {
	return ipc.ResultPayload{
		SessionID:       r.SessionID,
		CharacterType:   r.CharacterType,
		Phase:           r.Phase,
		Status:          string(r.Status),
		TotalFrames:     r.TotalFrames,
		SucceededFrames: r.SucceededFrames,
		FailedFrames:    r.FailedFrames,
		DurationMs:      r.Duration.Milliseconds(),
	}
}
