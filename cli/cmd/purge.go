package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/download"
	"github.com/justapithecus/petframes/types"
)

// PurgeCommand returns the purge command.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "Delete index records (and optionally frame files) of a phase",
		ArgsUsage: "<character> <phase> | --all",
		Flags: joinFlags(StorageFlags(), ReadOnlyFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "files",
				Usage: "Also delete frame files",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Purge every character and phase",
			},
		}),
		Action: purgeAction,
	}
}

// PurgeResponse reports what a purge removed.
type PurgeResponse struct {
	CharacterType string `json:"character_type,omitempty"`
	Phase         string `json:"phase,omitempty"`
	All           bool   `json:"all"`
	Clips         int    `json:"clips"`
	Files         bool   `json:"files"`
}

func purgeAction(c *cli.Context) error {
	all := c.Bool("all")
	if all && c.NArg() > 0 {
		return cli.Exit("--all takes no arguments", exitFailure)
	}
	var characterType, phase string
	if !all {
		var err error
		if characterType, phase, err = phaseArgs(c); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, err := openEnv(c.Context, cfg, "purge", false)
	if err != nil {
		return err
	}
	defer e.Close()

	files := c.Bool("files")
	resp := PurgeResponse{CharacterType: characterType, Phase: phase, All: all, Files: files}

	if all {
		if err := e.index.DeleteEverything(c.Context); err != nil {
			return cli.Exit(fmt.Sprintf("purge failed: %v", err), exitFailure)
		}
		if files {
			if err := os.RemoveAll(filepath.Join(cfg.Storage.Root, types.AnimationsPrefix)); err != nil {
				return cli.Exit(fmt.Sprintf("remove frame files: %v", err), exitFailure)
			}
		}
		e.logger.Info("purged everything", map[string]any{"files": files})
		return renderResult(c, resp)
	}

	coord, err := e.coordinator(nil, nil)
	if err != nil {
		return err
	}
	n, err := coord.Purge(c.Context, characterType, phase, files)
	if err != nil {
		switch {
		case errors.Is(err, download.ErrUnsupported):
			return cli.Exit(err.Error(), exitUnsupported)
		case errors.Is(err, download.ErrSessionInProgress):
			return cli.Exit(err.Error(), exitBusy)
		default:
			return cli.Exit(fmt.Sprintf("purge failed: %v", err), exitFailure)
		}
	}
	resp.Clips = n
	return renderResult(c, resp)
}
