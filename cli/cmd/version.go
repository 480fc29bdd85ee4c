package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version         string `json:"version"`
	ContractVersion string `json:"contract_version"`
	Commit          string `json:"commit"`
}

// VersionCommand returns the version command. It never opens storage.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			return renderResult(c, VersionResponse{
				Version:         types.Version,
				ContractVersion: types.ContractVersion,
				Commit:          commit,
			})
		},
	}
}
