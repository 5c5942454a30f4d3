// Package cli defines the resp-server and resp-cli command-line tools.
package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	respserver "github.com/raniellyferreira/resp-server"
)

// Build information, set via ldflags.
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// ServerApp creates the resp-server application
func ServerApp() *cli.App {
	return newServerApp(afero.NewOsFs())
}

func newServerApp(fs afero.Fs) *cli.App {
	return &cli.App{
		Name:    "resp-server",
		Usage:   "RESP2 server and wire-format tools",
		Version: versionString(),
		Commands: []*cli.Command{
			serveCommand(fs),
			decodeCommand(fs),
			versionCommand(),
		},
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", respserver.Version, Commit, BuildTime)
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(c.App.Writer, "resp-server %s\n", versionString())
			return err
		},
	}
}
