package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDaemon_ReloadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
capturescope:
  node:
    hostname: test-reload-001
  log:
    level: info
  metrics:
    enabled: false
    collect_interval: 5s
  task_persistence:
    enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socketPath := filepath.Join(tmpDir, "capturescope.sock")
	pidFile := filepath.Join(tmpDir, "capturescope.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if d.config.Log.Level != "info" {
		t.Fatalf("expected initial level info, got %s", d.config.Log.Level)
	}

	newConfigContent := `
capturescope:
  node:
    hostname: test-reload-001
  log:
    level: debug
  metrics:
    enabled: false
    collect_interval: 5s
  task_persistence:
    enabled: false
`
	if err := os.WriteFile(configPath, []byte(newConfigContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if d.config.Log.Level != "debug" {
		t.Fatalf("expected level debug after reload, got %s", d.config.Log.Level)
	}
}

func TestDaemon_ReloadPreservesRunningTasks(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
capturescope:
  node:
    hostname: test-reload-002
  log:
    level: info
  metrics:
    enabled: false
    collect_interval: 5s
  task_persistence:
    enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socketPath := filepath.Join(tmpDir, "capturescope.sock")
	pidFile := filepath.Join(tmpDir, "capturescope.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	initialCount := len(d.taskManager.List())

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	afterCount := len(d.taskManager.List())
	if initialCount != afterCount {
		t.Fatalf("task count changed after reload: %d -> %d", initialCount, afterCount)
	}
}

func TestDaemon_ReloadMetricsInterval(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
capturescope:
  node:
    hostname: test-reload-003
  log:
    level: info
  metrics:
    enabled: false
    collect_interval: 5s
  task_persistence:
    enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socketPath := filepath.Join(tmpDir, "capturescope.sock")
	pidFile := filepath.Join(tmpDir, "capturescope.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	newConfigContent := `
capturescope:
  node:
    hostname: test-reload-003
  log:
    level: info
  metrics:
    enabled: false
    collect_interval: 15s
  task_persistence:
    enabled: false
`
	if err := os.WriteFile(configPath, []byte(newConfigContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if d.config.Metrics.CollectInterval != "15s" {
		t.Fatalf("expected collect_interval 15s, got %s", d.config.Metrics.CollectInterval)
	}
}
