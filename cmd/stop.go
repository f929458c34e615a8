// Package cmd implements CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the capturescope daemon",
	Long: `Stop the capturescope daemon gracefully.

This command sends a daemon_shutdown signal to the running daemon over its
Unix Domain Socket control channel. The daemon stops all tasks, flushes
reporters, and exits cleanly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Daemon stopped successfully")
		return nil
	},
}
