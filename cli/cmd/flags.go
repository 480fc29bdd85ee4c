// Package cmd provides CLI commands for the petframes binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/cli/config"
)

// Flags shared by every command that touches local storage.
var (
	// ConfigFlag selects the config file. A missing default file is not an error.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file",
		Value:   config.DefaultFileName,
		EnvVars: []string{"PETFRAMES_CONFIG"},
	}

	// RootFlag overrides storage.root.
	RootFlag = &cli.StringFlag{
		Name:    "root",
		Usage:   "Local frame root (overrides storage.root)",
		EnvVars: []string{"PETFRAMES_ROOT"},
	}

	// LogLevelFlag overrides log.level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// Output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode (ensure, status).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode",
	}

	// EmitFlag writes the ipc event stream to stdout instead of rendering.
	EmitFlag = &cli.BoolFlag{
		Name:  "emit",
		Usage: "Write length-prefixed msgpack events to stdout",
	}
)

// StorageFlags returns the flags of commands that open local storage.
func StorageFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, RootFlag, LogLevelFlag}
}

// ReadOnlyFlags returns the output flags of commands that render a result.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

func joinFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
