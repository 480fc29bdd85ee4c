package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/cli/render"
	"github.com/justapithecus/petframes/cli/tui"
	"github.com/justapithecus/petframes/download"
	"github.com/justapithecus/petframes/index"
	"github.com/justapithecus/petframes/types"
)

// StatusCommand returns the status command.
// Without arguments it summarizes the whole index; with a character and
// phase it runs the completeness check of that phase. It never downloads.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show indexed frames and phase completeness",
		ArgsUsage: "[<character> <phase>]",
		Flags:     joinFlags(StorageFlags(), ReadOnlyFlags(), []cli.Flag{TUIFlag}),
		Action:    statusAction,
	}
}

// PhaseStatus is the completeness report of one phase.
type PhaseStatus struct {
	CharacterType string                `json:"character_type"`
	Phase         string                `json:"phase"`
	Ready         bool                  `json:"ready"`
	Clips         []download.ClipStatus `json:"clips"`
}

// TableHeader implements render.Tabular.
func (s PhaseStatus) TableHeader() []string {
	return []string{"clip", "indexed", "expected", "sampled", "missing", "status"}
}

// TableRows implements render.Tabular.
func (s PhaseStatus) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Clips))
	for _, c := range s.Clips {
		state := "complete"
		if !c.Complete {
			state = "incomplete"
		}
		rows = append(rows, []string{
			c.Clip,
			fmt.Sprintf("%d", c.Indexed),
			fmt.Sprintf("%d", c.Expected),
			fmt.Sprintf("%d", c.Sampled),
			fmt.Sprintf("%d", c.Missing),
			state,
		})
	}
	return rows
}

// IndexSummary is the per-clip content of the whole index.
type IndexSummary struct {
	Clips       []index.ClipSummary `json:"clips"`
	TotalFrames int                 `json:"total_frames"`
	TotalBytes  int64               `json:"total_bytes"`

	catalog types.Catalog
}

// TableHeader implements render.Tabular.
func (s IndexSummary) TableHeader() []string {
	return []string{"character", "phase", "clip", "frames", "expected", "size"}
}

// TableRows implements render.Tabular.
func (s IndexSummary) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Clips)+1)
	for _, c := range s.Clips {
		expected := "-"
		if spec, ok := s.catalog.Phase(c.CharacterType, c.Phase); ok {
			if clip, ok := spec.Clip(c.Clip); ok {
				expected = fmt.Sprintf("%d", clip.Frames)
			}
		}
		rows = append(rows, []string{
			c.CharacterType,
			c.Phase,
			c.Clip,
			fmt.Sprintf("%d", c.Frames),
			expected,
			humanize.Bytes(uint64(c.Bytes)),
		})
	}
	rows = append(rows, []string{"total", "", "", fmt.Sprintf("%d", s.TotalFrames), "", humanize.Bytes(uint64(s.TotalBytes))})
	return rows
}

func statusAction(c *cli.Context) error {
	if c.NArg() != 0 && c.NArg() != 2 {
		return cli.Exit("usage: petframes status [<character> <phase>]", exitFailure)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, err := openEnv(c.Context, cfg, "status", false)
	if err != nil {
		return err
	}
	defer e.Close()

	if c.NArg() == 0 {
		if c.Bool("tui") {
			return cli.Exit("--tui requires <character> <phase>", exitFailure)
		}
		clips, err := e.index.Summary(c.Context)
		if err != nil {
			return cli.Exit(fmt.Sprintf("status failed: %v", err), exitFailure)
		}
		summary := IndexSummary{Clips: clips, catalog: cfg.EffectiveCatalog()}
		if summary.Clips == nil {
			summary.Clips = []index.ClipSummary{}
		}
		for _, cs := range clips {
			summary.TotalFrames += cs.Frames
			summary.TotalBytes += cs.Bytes
		}
		return renderResult(c, summary)
	}

	characterType, phase := c.Args().Get(0), c.Args().Get(1)
	coord, err := e.coordinator(nil, nil)
	if err != nil {
		return err
	}
	clips, err := coord.Inspect(c.Context, characterType, phase)
	if err != nil {
		if errors.Is(err, download.ErrUnsupported) {
			return cli.Exit(err.Error(), exitUnsupported)
		}
		return cli.Exit(fmt.Sprintf("status failed: %v", err), exitFailure)
	}

	if c.Bool("tui") {
		return tui.RunStatus(characterType, phase, clips)
	}

	st := PhaseStatus{CharacterType: characterType, Phase: phase, Ready: true, Clips: clips}
	for _, cs := range clips {
		if !cs.Complete {
			st.Ready = false
		}
	}
	return renderResult(c, st)
}

func renderResult(c *cli.Context, data any) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(data)
}
