package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// ClipsCommand returns the clips command.
// It lists the effective clip catalog and never opens storage.
func ClipsCommand() *cli.Command {
	return &cli.Command{
		Name:      "clips",
		Usage:     "List configured characters, phases and clips",
		ArgsUsage: "[<character> [<phase>]]",
		Flags:     joinFlags([]cli.Flag{ConfigFlag}, ReadOnlyFlags()),
		Action:    clipsAction,
	}
}

// ClipRow is one clip of the catalog.
type ClipRow struct {
	CharacterType string `json:"character_type"`
	Phase         string `json:"phase"`
	Clip          string `json:"clip"`
	Frames        int    `json:"frames"`
	Mode          string `json:"mode"`
	Next          string `json:"next,omitempty"`
	Default       bool   `json:"default"`
}

func clipsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLocal(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitConfig)
	}
	catalog := cfg.EffectiveCatalog()

	characters := catalog.Characters()
	if c.NArg() > 0 {
		want := c.Args().Get(0)
		if _, ok := catalog[want]; !ok {
			return cli.Exit(fmt.Sprintf("unknown character %q", want), exitUnsupported)
		}
		characters = []string{want}
	}

	rows := []ClipRow{}
	for _, char := range characters {
		phases := catalog.Phases(char)
		if c.NArg() > 1 {
			want := c.Args().Get(1)
			if _, ok := catalog.Phase(char, want); !ok {
				return cli.Exit(fmt.Sprintf("unknown phase %s/%s", char, want), exitUnsupported)
			}
			phases = []string{want}
		}
		for _, phase := range phases {
			spec, _ := catalog.Phase(char, phase)
			for _, clip := range spec.Clips {
				rows = append(rows, ClipRow{
					CharacterType: char,
					Phase:         phase,
					Clip:          clip.Name,
					Frames:        clip.Frames,
					Mode:          string(clip.Mode),
					Next:          clip.Next,
					Default:       clip.Name == spec.Default(),
				})
			}
		}
	}
	return renderResult(c, rows)
}
