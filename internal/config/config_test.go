package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to write a tmp YAML file and return its path.
func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return p
}

// ── Load & validate round-trip ──

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
    hostname: "test-host"
    tags:
      env: "test"
  control:
    socket: "/tmp/test.sock"
    pid_file: "/tmp/test.pid"
  kafka:
    brokers:
      - "kafka1:9092"
  log:
    level: "debug"
  metrics:
    enabled: true
    listen: "0.0.0.0:9090"
    path: "/metrics"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Node.IP != "10.0.0.1" {
		t.Errorf("Node.IP = %q, want 10.0.0.1", cfg.Node.IP)
	}
	if cfg.Node.Hostname != "test-host" {
		t.Errorf("Node.Hostname = %q, want test-host", cfg.Node.Hostname)
	}
	if cfg.Node.Tags["env"] != "test" {
		t.Errorf("Node.Tags[env] = %q, want test", cfg.Node.Tags["env"])
	}

	if cfg.Control.Socket != "/tmp/test.sock" {
		t.Errorf("Control.Socket = %q", cfg.Control.Socket)
	}
	if cfg.Control.PIDFile != "/tmp/test.pid" {
		t.Errorf("Control.PIDFile = %q", cfg.Control.PIDFile)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}

	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "kafka1:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}

	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

// ── Log validation ──

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  log:
    level: "invalid"
`))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("error = %v, want 'invalid log level'", err)
	}
}

// ── Node hostname auto-detect ──

func TestAutoDetectHostname(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Node.Hostname == "" {
		t.Error("expected auto-detected hostname, got empty")
	}
	expected, _ := os.Hostname()
	if cfg.Node.Hostname != expected {
		t.Errorf("Node.Hostname = %q, want %q", cfg.Node.Hostname, expected)
	}
}

// ── Node IP resolution ──

func TestNodeIPExplicit(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "192.168.1.100"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Node.IP != "192.168.1.100" {
		t.Errorf("Node.IP = %q, want 192.168.1.100", cfg.Node.IP)
	}
}

func TestNodeIPAutoDetect(t *testing.T) {
	// No explicit IP -> auto-detect should find something on CI / dev containers
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  log:
    level: "info"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Node.IP == "" {
		t.Error("expected auto-detected Node.IP, got empty")
	}
}

// ── Kafka inheritance ──

func TestKafkaInheritanceSameCluster(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  kafka:
    brokers:
      - "shared:9092"
    sasl:
      enabled: true
      mechanism: "PLAIN"
      username: "user"
      password: "pass"
  event_bus:
    sink: "kafka"
    kafka:
      topic: "capture-events"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.EventBus.Kafka.Brokers) != 1 || cfg.EventBus.Kafka.Brokers[0] != "shared:9092" {
		t.Errorf("EventBus.Kafka.Brokers = %v, want [shared:9092]", cfg.EventBus.Kafka.Brokers)
	}
	if cfg.EventBus.Kafka.SASL.Username != "user" {
		t.Errorf("EventBus.Kafka.SASL.Username = %q, want user", cfg.EventBus.Kafka.SASL.Username)
	}

	if len(cfg.Reporters.Kafka.Brokers) != 1 || cfg.Reporters.Kafka.Brokers[0] != "shared:9092" {
		t.Errorf("Reporters.Kafka.Brokers = %v, want [shared:9092]", cfg.Reporters.Kafka.Brokers)
	}
	if cfg.Reporters.Kafka.SASL.Username != "user" {
		t.Errorf("Reporters.Kafka.SASL.Username = %q, want user", cfg.Reporters.Kafka.SASL.Username)
	}

	if len(cfg.Log.Outputs.Kafka.Brokers) != 1 || cfg.Log.Outputs.Kafka.Brokers[0] != "shared:9092" {
		t.Errorf("Log.Outputs.Kafka.Brokers = %v, want [shared:9092]", cfg.Log.Outputs.Kafka.Brokers)
	}
}

func TestKafkaInheritanceDifferentCluster(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  kafka:
    brokers:
      - "global:9092"
  event_bus:
    sink: "kafka"
    kafka:
      brokers:
        - "events-cluster:9092"
      topic: "capture-events"
  reporters:
    kafka:
      brokers:
        - "data-cluster:9092"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.EventBus.Kafka.Brokers[0] != "events-cluster:9092" {
		t.Errorf("EventBus.Kafka.Brokers[0] = %q, want events-cluster:9092", cfg.EventBus.Kafka.Brokers[0])
	}
	if cfg.Reporters.Kafka.Brokers[0] != "data-cluster:9092" {
		t.Errorf("Reporters.Kafka.Brokers[0] = %q, want data-cluster:9092", cfg.Reporters.Kafka.Brokers[0])
	}
}

func TestKafkaInheritanceNoGlobal(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka.Brokers = %v, want empty", cfg.Kafka.Brokers)
	}
}

// ── Event bus validation ──

func TestEventBusKafkaSinkWithoutBrokers(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  event_bus:
    sink: "kafka"
    kafka:
      topic: "capture-events"
`))
	if err == nil {
		t.Fatal("expected error: event_bus sink=kafka without brokers")
	}
	if !strings.Contains(err.Error(), "brokers") {
		t.Errorf("error = %v, want mention of brokers", err)
	}
}

func TestEventBusKafkaSinkWithoutTopic(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  kafka:
    brokers:
      - "kafka:9092"
  event_bus:
    sink: "kafka"
`))
	if err == nil {
		t.Fatal("expected error: event_bus sink=kafka without topic")
	}
	if !strings.Contains(err.Error(), "topic") {
		t.Errorf("error = %v, want mention of topic", err)
	}
}

// ── Defaults ──

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Control.PIDFile != "/var/run/capturescoped.pid" {
		t.Errorf("Control.PIDFile = %q, want /var/run/capturescoped.pid", cfg.Control.PIDFile)
	}
	if cfg.Control.Socket != "/var/run/capturescoped.sock" {
		t.Errorf("Control.Socket = %q, want /var/run/capturescoped.sock", cfg.Control.Socket)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}

	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Listen != ":9091" {
		t.Errorf("Metrics.Listen = %q, want :9091", cfg.Metrics.Listen)
	}

	if cfg.Backpressure.TaskChannel.Capacity != 4096 {
		t.Errorf("TaskChannel.Capacity = %d, want 4096", cfg.Backpressure.TaskChannel.Capacity)
	}
	if cfg.Backpressure.SendBuffer.HighWatermark != 0.8 {
		t.Errorf("SendBuffer.HighWatermark = %f, want 0.8", cfg.Backpressure.SendBuffer.HighWatermark)
	}

	if cfg.Reporters.Kafka.Compression != "snappy" {
		t.Errorf("Reporters.Kafka.Compression = %q, want snappy", cfg.Reporters.Kafka.Compression)
	}
}

// ── Env override ──

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CAPTURESCOPE_LOG_LEVEL", "debug")

	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
  log:
    level: "info"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug (from env)", cfg.Log.Level)
	}
}

// ── Kafka optional (no brokers, no event bus sink) ──

func TestKafkaOptional(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
capturescope:
  node:
    ip: "10.0.0.1"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka.Brokers = %v, want empty", cfg.Kafka.Brokers)
	}
	if cfg.EventBus.Sink != "none" {
		t.Errorf("EventBus.Sink = %q, want none by default", cfg.EventBus.Sink)
	}
}
