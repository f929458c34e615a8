// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level global static configuration.
// Maps to the `capturescope:` root key in YAML.
type GlobalConfig struct {
	Node            NodeConfig            `mapstructure:"node"`
	Control         ControlConfig         `mapstructure:"control"`
	Kafka           GlobalKafkaConfig     `mapstructure:"kafka"`
	EventBus        EventBusConfig        `mapstructure:"event_bus"`
	Reporters       ReportersConfig       `mapstructure:"reporters"`
	Resources       ResourcesConfig       `mapstructure:"resources"`
	Backpressure    BackpressureConfig    `mapstructure:"backpressure"`
	Metrics         MetricsConfig         `mapstructure:"metrics"`
	Log             LogConfig             `mapstructure:"log"`
	DataDir         string                `mapstructure:"data_dir"`
	TaskPersistence TaskPersistenceConfig `mapstructure:"task_persistence"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	IP       string            `mapstructure:"ip"` // Empty = auto-detect
	Hostname string            `mapstructure:"hostname"`
	Tags     map[string]string `mapstructure:"tags"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Kafka Global Default ───

// GlobalKafkaConfig provides shared Kafka connection defaults. event_bus.kafka,
// reporters.kafka and log.outputs.kafka inherit from here when their fields
// are zero.
type GlobalKafkaConfig struct {
	Brokers []string   `mapstructure:"brokers"`
	SASL    SASLConfig `mapstructure:"sasl"`
	TLS     TLSConfig  `mapstructure:"tls"`
}

// SASLConfig contains SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig contains TLS settings.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCert         string `mapstructure:"client_cert"`
	ClientKey          string `mapstructure:"client_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ─── Event Bus ───

// EventBusConfig configures the internal event bus and its optional Kafka
// sink.
type EventBusConfig struct {
	Partitions int           `mapstructure:"partitions"`
	Kafka      EventBusKafka `mapstructure:"kafka"`
	Sink       string        `mapstructure:"sink"` // "none" | "kafka"
}

// EventBusKafka contains Kafka-specific event-bus sink settings.
// Brokers/SASL/TLS inherit from GlobalKafkaConfig when empty/zero.
type EventBusKafka struct {
	Brokers []string   `mapstructure:"brokers"`
	Topic   string     `mapstructure:"topic"`
	SASL    SASLConfig `mapstructure:"sasl"`
	TLS     TLSConfig  `mapstructure:"tls"`
}

// ─── Shared Reporter Connection ───

// ReportersConfig holds shared reporter connection configurations.
type ReportersConfig struct {
	Kafka KafkaReporterConnectionConfig `mapstructure:"kafka"`
}

// KafkaReporterConnectionConfig is the shared Kafka reporter connection config.
// Brokers/SASL/TLS inherit from GlobalKafkaConfig when empty/zero.
type KafkaReporterConnectionConfig struct {
	Brokers         []string   `mapstructure:"brokers"`
	Compression     string     `mapstructure:"compression"`
	MaxMessageBytes int        `mapstructure:"max_message_bytes"`
	SASL            SASLConfig `mapstructure:"sasl"`
	TLS             TLSConfig  `mapstructure:"tls"`
}

// ─── Resources & Backpressure ───

// ResourcesConfig contains global resource limits.
type ResourcesConfig struct {
	MaxWorkers int `mapstructure:"max_workers"` // 0 = auto (GOMAXPROCS)
}

// BackpressureConfig contains backpressure control settings.
type BackpressureConfig struct {
	TaskChannel PipelineChannelConfig      `mapstructure:"task_channel"`
	SendBuffer  SendBufferConfig           `mapstructure:"send_buffer"`
	Reporter    ReporterBackpressureConfig `mapstructure:"reporter"`
}

// PipelineChannelConfig configures a task's per-item intake channel.
type PipelineChannelConfig struct {
	Capacity   int    `mapstructure:"capacity"`
	DropPolicy string `mapstructure:"drop_policy"` // "tail" | "head"
}

// SendBufferConfig configures the send buffer between task workers and reporters.
type SendBufferConfig struct {
	Capacity      int     `mapstructure:"capacity"`
	DropPolicy    string  `mapstructure:"drop_policy"`
	HighWatermark float64 `mapstructure:"high_watermark"`
	LowWatermark  float64 `mapstructure:"low_watermark"`
}

// ReporterBackpressureConfig configures reporter-level backpressure.
type ReporterBackpressureConfig struct {
	SendTimeout string `mapstructure:"send_timeout"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Listen          string `mapstructure:"listen"`
	Path            string `mapstructure:"path"`
	CollectInterval string `mapstructure:"collect_interval"` // e.g. "5s", hot-reloadable
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"` // trace/debug/info/warn/error
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	Console bool              `mapstructure:"console"`
	File    FileOutputConfig  `mapstructure:"file"`
	Loki    LokiOutputConfig  `mapstructure:"loki"`
	Kafka   KafkaOutputConfig `mapstructure:"kafka"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// LokiOutputConfig configures Loki log output.
type LokiOutputConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	Endpoint      string            `mapstructure:"endpoint"`
	Labels        map[string]string `mapstructure:"labels"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval string            `mapstructure:"flush_interval"`
}

// KafkaOutputConfig configures shipping logs to a Kafka topic.
// Brokers inherit from GlobalKafkaConfig when empty.
type KafkaOutputConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	TLS      bool     `mapstructure:"tls"`
}

// ─── Task Persistence ───

// TaskPersistenceConfig controls task state persistence and history GC.
type TaskPersistenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`          // false = disable (dev/test)
	AutoRestart    bool   `mapstructure:"auto_restart"`     // true = auto-restart running tasks on startup
	GCInterval     string `mapstructure:"gc_interval"`      // default "1h"
	MaxTaskHistory int    `mapstructure:"max_task_history"` // 0 = disable in-process GC
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `capturescope: ...`.
type configRoot struct {
	CaptureScope GlobalConfig `mapstructure:"capturescope"`
}

// Load loads configuration from file.
// The YAML file uses `capturescope:` as root key; env vars use CAPTURESCOPE_
// prefix (e.g., CAPTURESCOPE_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// No explicit env prefix — the `capturescope.` key prefix naturally maps
	// to `CAPTURESCOPE_` via the key replacer (e.g. key
	// "capturescope.log.level" -> env "CAPTURESCOPE_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.CaptureScope

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("capturescope.control.pid_file", "/var/run/capturescoped.pid")
	v.SetDefault("capturescope.control.socket", "/var/run/capturescoped.sock")

	v.SetDefault("capturescope.log.level", "info")
	v.SetDefault("capturescope.log.outputs.console", true)
	v.SetDefault("capturescope.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("capturescope.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("capturescope.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("capturescope.log.outputs.file.rotation.compress", true)

	v.SetDefault("capturescope.metrics.enabled", true)
	v.SetDefault("capturescope.metrics.listen", ":9091")
	v.SetDefault("capturescope.metrics.path", "/metrics")
	v.SetDefault("capturescope.metrics.collect_interval", "5s")

	v.SetDefault("capturescope.event_bus.partitions", 8)
	v.SetDefault("capturescope.event_bus.sink", "none")

	v.SetDefault("capturescope.backpressure.task_channel.capacity", 4096)
	v.SetDefault("capturescope.backpressure.task_channel.drop_policy", "tail")
	v.SetDefault("capturescope.backpressure.send_buffer.capacity", 4096)
	v.SetDefault("capturescope.backpressure.send_buffer.drop_policy", "head")
	v.SetDefault("capturescope.backpressure.send_buffer.high_watermark", 0.8)
	v.SetDefault("capturescope.backpressure.send_buffer.low_watermark", 0.3)
	v.SetDefault("capturescope.backpressure.reporter.send_timeout", "3s")
	v.SetDefault("capturescope.backpressure.reporter.max_retries", 1)

	v.SetDefault("capturescope.data_dir", "/var/lib/capturescope")
	v.SetDefault("capturescope.task_persistence.enabled", true)
	v.SetDefault("capturescope.task_persistence.auto_restart", true)
	v.SetDefault("capturescope.task_persistence.gc_interval", "1h")
	v.SetDefault("capturescope.task_persistence.max_task_history", 100)

	v.SetDefault("capturescope.reporters.kafka.compression", "snappy")
	v.SetDefault("capturescope.reporters.kafka.max_message_bytes", 1048576)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
// Implements Kafka inheritance and node IP resolution.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	resolvedIP, err := resolveNodeIP(&cfg.Node)
	if err != nil {
		return err
	}
	cfg.Node.IP = resolvedIP

	applyKafkaInheritance(cfg)

	if cfg.EventBus.Sink == "kafka" {
		if len(cfg.EventBus.Kafka.Brokers) == 0 {
			return fmt.Errorf("event_bus.kafka.brokers is required when event_bus.sink=kafka")
		}
		if cfg.EventBus.Kafka.Topic == "" {
			return fmt.Errorf("event_bus.kafka.topic is required when event_bus.sink=kafka")
		}
	}

	return nil
}

// resolveNodeIP resolves the node IP address.
// Priority: explicit config/env value -> auto-detect -> error.
func resolveNodeIP(node *NodeConfig) (string, error) {
	if node.IP != "" {
		return node.IP, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("cannot resolve node IP: failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			if ip4[0] == 169 && ip4[1] == 254 {
				continue
			}
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("cannot resolve node IP: set CAPTURESCOPE_NODE_IP or capturescope.node.ip")
}

// applyKafkaInheritance propagates the global Kafka connection settings to
// event_bus.kafka, reporters.kafka and log.outputs.kafka when their local
// fields are empty/zero.
func applyKafkaInheritance(cfg *GlobalConfig) {
	global := &cfg.Kafka

	eb := &cfg.EventBus.Kafka
	if len(eb.Brokers) == 0 {
		eb.Brokers = global.Brokers
	}
	if !eb.SASL.Enabled && global.SASL.Enabled {
		eb.SASL = global.SASL
	}
	if !eb.TLS.Enabled && global.TLS.Enabled {
		eb.TLS = global.TLS
	}

	rk := &cfg.Reporters.Kafka
	if len(rk.Brokers) == 0 {
		rk.Brokers = global.Brokers
	}
	if !rk.SASL.Enabled && global.SASL.Enabled {
		rk.SASL = global.SASL
	}
	if !rk.TLS.Enabled && global.TLS.Enabled {
		rk.TLS = global.TLS
	}

	lk := &cfg.Log.Outputs.Kafka
	if len(lk.Brokers) == 0 {
		lk.Brokers = global.Brokers
	}
}
