// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
	pidFile    string

	// cli is the active daemon client, wired by ensureDaemonAndConnect and
	// swappable in tests via SetClient.
	cli ClientInterface
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "capturescope",
	Short: "capturescope - scoped per-goroutine context propagation service",
	Long: `capturescope runs a worker-pool dispatch daemon built on top of the
capture package's scoped, goroutine-local context stack.

Features:
  - Flow-hash or round-robin item dispatch across a task's worker pool
  - Cross-goroutine context carried from worker to sender via capture.WrapCall
  - Pluggable Reporters (stdout, kafka) with batching and fallback
  - Remote control: CLI over a local Unix Domain Socket`,
	Version:           "0.1.0",
	PersistentPreRunE: ensureDaemonAndConnect,
	PersistentPostRun: closeClient,
}

// Execute adds all child commands to the root command and runs it.
// Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/capturescope/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/capturescope.sock",
		"daemon socket path")
	rootCmd.PersistentFlags().StringVarP(&pidFile, "pidfile", "p", "/var/run/capturescope.pid",
		"daemon PID file path")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(validateCmd)
}

// ensureDaemonAndConnect wires cli before every command except the ones
// that never talk to a running daemon through it (daemon itself, validate,
// and a foreground start).
func ensureDaemonAndConnect(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "daemon" || cmd.Name() == "validate" {
		return nil
	}
	if cmd.Name() == "start" && cmd.Flag("foreground") != nil && cmd.Flag("foreground").Value.String() == "true" {
		return nil
	}

	if cli == nil {
		cli = newUDSDaemonClient(socketPath, configFile, pidFile)
	}
	return nil
}

func closeClient(cmd *cobra.Command, args []string) {
	if cli != nil {
		cli.Close()
	}
}

// SetClient injects a client (typically a mock) for testing.
func SetClient(c ClientInterface) {
	cli = c
}

// GetClient returns the currently wired client.
func GetClient() ClientInterface {
	return cli
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
