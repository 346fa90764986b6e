// Package version provides the version command.
package version

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X meep/fpgarelay/cmd/version.Version=...".
var Version = "unknown"

// GetCommand ...
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, Version)
			return err
		},
		Flags: []cli.Flag{},
	}
}
