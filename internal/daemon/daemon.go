// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"firestige.xyz/capturescope/internal/command"
	"firestige.xyz/capturescope/internal/config"
	"firestige.xyz/capturescope/internal/eventbus"
	"firestige.xyz/capturescope/internal/log"
	"firestige.xyz/capturescope/internal/metrics"
	"firestige.xyz/capturescope/internal/task"
	"firestige.xyz/capturescope/pkg/capture"
)

// Daemon manages the capturescope daemon process lifecycle.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string

	taskManager   *task.TaskManager
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server // nil if metrics disabled
	loggerScope   *capture.AutoScoped[log.Logger]
	events        eventbus.EventBus // lifecycle notifications; Start does not assign it, so it stays nil
	eventSink     *eventbus.KafkaSink // Kafka mirror of events; Start does not assign it, so it stays nil

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal // promoted from Run() local for cleanup in Stop()
}

// New creates a new Daemon instance.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	globalConfig, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if socketPath == "" {
		socketPath = globalConfig.Control.Socket
	}
	if pidFile == "" {
		pidFile = globalConfig.Control.PIDFile
	}

	d := &Daemon{
		config:       globalConfig,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	return d, nil
}

// Start initializes and starts all daemon components.
func (d *Daemon) Start() error {
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	log.Current().Infof("starting capturescope daemon: hostname=%s config=%s socket=%s",
		d.config.Node.Hostname, d.configPath, d.socketPath)

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	var taskStore task.TaskStore
	if d.config.TaskPersistence.Enabled {
		storeDir := filepath.Join(d.config.DataDir, "tasks")
		store, storeErr := task.NewFileTaskStore(storeDir)
		if storeErr != nil {
			log.Current().WithError(storeErr).Warnf("failed to initialise task store at %s, persistence disabled", storeDir)
		} else {
			taskStore = store
		}
	}
	d.taskManager = task.NewTaskManager(d.config.Node.Hostname, taskStore)

	if d.config.TaskPersistence.Enabled && taskStore != nil {
		d.taskManager.Restore(d.config.TaskPersistence.AutoRestart)
	}

	if d.config.TaskPersistence.Enabled && taskStore != nil {
		gcInterval, err := time.ParseDuration(d.config.TaskPersistence.GCInterval)
		if err != nil {
			log.Current().WithError(err).Warnf("invalid task_persistence.gc_interval %q, defaulting to 1h",
				d.config.TaskPersistence.GCInterval)
			gcInterval = time.Hour
		}
		go func() {
			ticker := time.NewTicker(gcInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					d.taskManager.GCOldTasks(d.config.TaskPersistence.MaxTaskHistory)
				case <-d.ctx.Done():
					return
				}
			}
		}()
	}

	d.cmdHandler = command.NewCommandHandler(d.taskManager, d)

	d.cmdHandler.SetShutdownFunc(func() {
		log.Current().Info("shutdown triggered via daemon_shutdown command")
		close(d.shutdownChan)
	})

	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	go func() {
		if err := d.udsServer.Start(d.ctx); err != nil && err != context.Canceled {
			log.Current().WithError(err).Error("uds server failed")
		}
	}()

	log.Current().Info("daemon started successfully")
	return nil
}

// Stop performs graceful shutdown of all daemon components.
func (d *Daemon) Stop() {
	log.Current().Info("initiating graceful shutdown")

	log.Current().Info("stopping all tasks")
	if err := d.taskManager.StopAll(); err != nil {
		log.Current().WithError(err).Error("error stopping tasks")
	}

	log.Current().Info("stopping uds server")
	d.udsServer.Stop()

	if d.metricsServer != nil {
		log.Current().Info("stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			log.Current().WithError(err).Error("error stopping metrics server")
		}
	}

	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		log.Current().WithError(err).Error("error removing PID file")
	}

	log.Current().Info("daemon stopped gracefully")

	if d.loggerScope != nil {
		d.loggerScope.Close()
	}
}

// Run runs the daemon main loop, blocking until shutdown is triggered.
// Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. daemon_shutdown command via UDS
//  3. SIGHUP triggers config reload
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	log.Current().Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				log.Current().Infof("received shutdown signal: %v", sig)
				d.Stop()
				return nil

			case syscall.SIGHUP:
				log.Current().Info("received reload signal")
				if err := d.Reload(); err != nil {
					log.Current().WithError(err).Error("failed to reload config")
				} else {
					log.Current().Info("configuration reloaded successfully")
				}
			}

		case <-d.shutdownChan:
			log.Current().Info("shutdown triggered by command")
			d.Stop()
			return nil

		case <-d.ctx.Done():
			log.Current().WithError(d.ctx.Err()).Info("context cancelled")
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// Reload reloads the global configuration.
// Hot-reloadable: log level/pattern, metrics collect interval.
// Cold (requires restart): node.hostname, metrics.listen.
// Implements command.ConfigReloader for CommandHandler.
func (d *Daemon) Reload() error {
	log.Current().Infof("reloading configuration from %s", d.configPath)

	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	hotReloaded := []string{}

	oldConfig := d.config
	oldLevel := d.config.Log.Level
	oldPattern := d.config.Log.Pattern
	d.config = newConfig
	if err := d.initLogging(); err != nil {
		log.Current().WithError(err).Error("failed to reinitialize logging")
	} else if newConfig.Log.Level != oldLevel || newConfig.Log.Pattern != oldPattern {
		hotReloaded = append(hotReloaded, "log")
	}

	if newConfig.Metrics.CollectInterval != "" {
		if interval, err := time.ParseDuration(newConfig.Metrics.CollectInterval); err == nil && interval > 0 {
			d.taskManager.UpdateMetricsInterval(interval)
			hotReloaded = append(hotReloaded, "metrics_interval")
		} else if err != nil {
			log.Current().WithError(err).Warnf("invalid metrics.collect_interval %q, ignoring",
				newConfig.Metrics.CollectInterval)
		}
	}

	requiresRestart := []string{}
	if newConfig.Node.Hostname != oldConfig.Node.Hostname {
		requiresRestart = append(requiresRestart, "node.hostname")
	}
	if newConfig.Metrics.Listen != oldConfig.Metrics.Listen {
		requiresRestart = append(requiresRestart, "metrics.listen")
	}

	log.Current().Infof("configuration reloaded: hot_reloaded=%v requires_restart=%v", hotReloaded, requiresRestart)

	return nil
}

// TriggerShutdown triggers graceful shutdown from an external caller.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

// initLogging (re)builds the daemon's Logger and installs it as an
// auto-crossing capture point on the calling goroutine, where log.Current
// returns it, as it does inside any function that goroutine wraps with
// capture.WrapCall. Goroutines started with a plain go statement (the UDS
// server and its connection handlers, task workers, the sender loop) are
// not wrapped and log through log.Current's stderr fallback.
func (d *Daemon) initLogging() error {
	logger, err := log.Init(d.config.Log)
	if err != nil {
		return err
	}

	if d.loggerScope != nil {
		d.loggerScope.Close()
	}
	d.loggerScope = log.InstallAuto(logger)

	log.Current().Debugf("logging initialized: level=%s pattern=%s", d.config.Log.Level, d.config.Log.Pattern)

	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.Current().Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	log.Current().Infof("metrics server started: addr=%s path=%s", d.config.Metrics.Listen, d.config.Metrics.Path)

	return nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}

	return nil
}
