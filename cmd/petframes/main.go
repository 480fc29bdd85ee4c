// Package main provides the petframes CLI entrypoint.
//
// Usage:
//
//	petframes <command> [options] [arguments]
//
// Exit codes:
//   - 0: success (phase ready or fully downloaded)
//   - 1: failure (usage, index or storage error)
//   - 2: download completed with failed frames
//   - 3: canceled
//   - 4: unsupported character, phase or clip
//   - 5: another download session holds the lock
//   - 6: invalid configuration
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/petframes/cli/cmd"
	"github.com/justapithecus/petframes/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

var (
	osExit           = os.Exit
	stderr io.Writer = os.Stderr
)

func newApp() *cli.App {
	return &cli.App{
		Name:           "petframes",
		Usage:          "Frame-sprite animation downloader and player",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.EnsureCommand(),
			cmd.StatusCommand(),
			cmd.PlayCommand(),
			cmd.PurgeCommand(),
			cmd.ClipsCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		osExit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit and prints everything
// else as an error with exit code 1.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		osExit(code)
		return
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	osExit(1)
}
