// Package cmd implements CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/capturescope/internal/daemon"
)

// daemonCmd runs the capturescope daemon process in the foreground. This is
// what "start" (without --foreground) spawns as a detached child process.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the capturescope daemon in foreground",
	Long: `Run the capturescope daemon process in foreground.

The daemon loads its global configuration, starts the metrics server and
control socket, and waits for tasks to be created via the CLI, handling
SIGTERM/SIGINT for graceful shutdown and SIGHUP for configuration reload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(configFile, socketPath, pidFile)
		if err != nil {
			return fmt.Errorf("failed to initialize daemon: %w", err)
		}
		if err := d.Start(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		return d.Run()
	},
}
