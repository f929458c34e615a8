// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"context"
	"fmt"
	"time"

	"firestige.xyz/capturescope/internal/command"
	"firestige.xyz/capturescope/internal/daemon"
)

// ClientInterface is the set of daemon control operations every CLI command
// depends on. Production code gets a udsDaemonClient; tests inject a
// testify-backed MockClient via SetClient.
type ClientInterface interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reload(ctx context.Context) error
	Close() error
}

// udsDaemonClient implements ClientInterface over a JSON-RPC Unix Domain
// Socket connection, auto-spawning the daemon process on Start if it isn't
// already listening.
type udsDaemonClient struct {
	uds       *command.UDSClient
	spawnOpts daemon.SpawnOptions
}

func newUDSDaemonClient(socketPath, configPath, pidFile string) *udsDaemonClient {
	return &udsDaemonClient{
		uds: command.NewUDSClient(socketPath, 10*time.Second),
		spawnOpts: daemon.SpawnOptions{
			ConfigPath: configPath,
			SocketPath: socketPath,
			PIDFile:    pidFile,
			LogFile:    "/tmp/capturescoped.log",
		},
	}
}

func (c *udsDaemonClient) Start(ctx context.Context) error {
	return daemon.EnsureRunning(c.spawnOpts)
}

func (c *udsDaemonClient) Stop(ctx context.Context) error {
	resp, err := c.uds.DaemonShutdown(ctx)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("daemon_shutdown failed: %s", resp.Error.Message)
	}
	return nil
}

func (c *udsDaemonClient) Reload(ctx context.Context) error {
	resp, err := c.uds.ConfigReload(ctx)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("config_reload failed: %s", resp.Error.Message)
	}
	return nil
}

func (c *udsDaemonClient) Close() error {
	return nil
}
