// Package log provides the structured Logger capability and its
// installation as a capture.Scoped/capture.AutoScoped capture point, rather
// than a package-level singleton.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/capturescope/internal/config"
	"firestige.xyz/capturescope/pkg/capture"
)

// Logger is the capability callers reach for via Current. Every method
// mirrors logrus.Entry's so logrusAdapter can forward directly.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Panic(args ...interface{})
	Panicf(format string, args ...interface{})
	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

// logrusAdapter is the only Logger implementation in this package: a thin
// forwarding shim over a *logrus.Entry, so WithField/WithFields/WithError
// return a new Logger wrapping the derived entry rather than mutating this
// one — matching logrus.Entry's own copy-on-With semantics.
type logrusAdapter struct {
	entry *logrus.Entry
}

func (a *logrusAdapter) Print(args ...interface{})  { a.entry.Print(args...) }
func (a *logrusAdapter) Trace(args ...interface{})  { a.entry.Trace(args...) }
func (a *logrusAdapter) Debug(args ...interface{})  { a.entry.Debug(args...) }
func (a *logrusAdapter) Info(args ...interface{})   { a.entry.Info(args...) }
func (a *logrusAdapter) Warn(args ...interface{})   { a.entry.Warn(args...) }
func (a *logrusAdapter) Error(args ...interface{})  { a.entry.Error(args...) }
func (a *logrusAdapter) Fatal(args ...interface{})  { a.entry.Fatal(args...) }
func (a *logrusAdapter) Panic(args ...interface{})  { a.entry.Panic(args...) }

func (a *logrusAdapter) Printf(format string, args ...interface{})  { a.entry.Printf(format, args...) }
func (a *logrusAdapter) Tracef(format string, args ...interface{})  { a.entry.Tracef(format, args...) }
func (a *logrusAdapter) Debugf(format string, args ...interface{})  { a.entry.Debugf(format, args...) }
func (a *logrusAdapter) Infof(format string, args ...interface{})   { a.entry.Infof(format, args...) }
func (a *logrusAdapter) Warnf(format string, args ...interface{})   { a.entry.Warnf(format, args...) }
func (a *logrusAdapter) Errorf(format string, args ...interface{})  { a.entry.Errorf(format, args...) }
func (a *logrusAdapter) Fatalf(format string, args ...interface{})  { a.entry.Fatalf(format, args...) }
func (a *logrusAdapter) Panicf(format string, args ...interface{})  { a.entry.Panicf(format, args...) }

func (a *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: a.entry.WithField(field, value)}
}

func (a *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: a.entry.WithFields(fields)}
}

func (a *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: a.entry.WithError(err)}
}

func (a *logrusAdapter) IsTraceEnabled() bool { return a.entry.Logger.IsLevelEnabled(logrus.TraceLevel) }
func (a *logrusAdapter) IsDebugEnabled() bool { return a.entry.Logger.IsLevelEnabled(logrus.DebugLevel) }
func (a *logrusAdapter) IsInfoEnabled() bool  { return a.entry.Logger.IsLevelEnabled(logrus.InfoLevel) }

const (
	defaultPattern    = "%time [%level] %field %msg"
	defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Init builds a Logger from cfg. Unlike the package-level slog.SetDefault
// pattern it replaces, Init has no side effects on package state — the
// caller installs the result into scope with Install or InstallAuto.
func Init(cfg config.LogConfig) (Logger, error) {
	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	timeFmt := cfg.Time
	if timeFmt == "" {
		timeFmt = defaultTimeFormat
	}

	mw := NewMultiWriter()
	if cfg.Outputs.Console || !anyOutputEnabled(cfg.Outputs) {
		mw.Add(os.Stdout)
	}

	if cfg.Outputs.File.Enabled {
		if cfg.Outputs.File.Path == "" {
			return nil, fmt.Errorf("log file output requires a path")
		}
		mw.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.Outputs.File.Path,
			MaxSize:    cfg.Outputs.File.Rotation.MaxSizeMB,
			MaxBackups: cfg.Outputs.File.Rotation.MaxBackups,
			MaxAge:     cfg.Outputs.File.Rotation.MaxAgeDays,
			Compress:   cfg.Outputs.File.Rotation.Compress,
		})
	}

	if cfg.Outputs.Loki.Enabled {
		if cfg.Outputs.Loki.Endpoint == "" {
			return nil, fmt.Errorf("loki output requires an endpoint")
		}
		lw, err := NewLokiWriter(LokiConfig{
			Endpoint:      cfg.Outputs.Loki.Endpoint,
			Labels:        cfg.Outputs.Loki.Labels,
			BatchSize:     cfg.Outputs.Loki.BatchSize,
			FlushInterval: cfg.Outputs.Loki.FlushInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("loki output: %w", err)
		}
		mw.Add(lw)
	}

	if cfg.Outputs.Kafka.Enabled {
		if len(cfg.Outputs.Kafka.Brokers) == 0 || cfg.Outputs.Kafka.Topic == "" {
			return nil, fmt.Errorf("kafka output requires brokers and a topic")
		}
		mw.AddKafkaAppender(KafkaAppenderOpt{
			Brokers:  cfg.Outputs.Kafka.Brokers,
			Topic:    cfg.Outputs.Kafka.Topic,
			Username: cfg.Outputs.Kafka.Username,
			Password: cfg.Outputs.Kafka.Password,
			TLS:      cfg.Outputs.Kafka.TLS,
		})
	}

	l := logrus.New()
	l.SetFormatter(&formatter{pattern: pattern, time: timeFmt})
	l.SetLevel(level)
	l.SetOutput(mw)
	l.SetReportCaller(true)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func anyOutputEnabled(o config.LogOutputsConfig) bool {
	return o.File.Enabled || o.Loki.Enabled || o.Kafka.Enabled
}

var (
	fallbackOnce sync.Once
	fallback     Logger
)

// defaultLogger is a bare stderr logger, built once, used only as a safety
// net so Current never has to return nil. It carries no scope and is never
// itself installed as a capture point.
func defaultLogger() Logger {
	fallbackOnce.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		fallback = &logrusAdapter{entry: logrus.NewEntry(l)}
	})
	return fallback
}

// Install installs base as the Logger visible to the calling goroutine for
// the lifetime of the returned scope. It does not cross goroutines; use
// InstallAuto for a Logger that should.
func Install(base Logger) *capture.Scoped[Logger] {
	return capture.Scope[Logger](base)
}

// InstallAuto installs base the way Install does, and additionally opts it
// into capture.WrapCall propagation — the shape the daemon uses for its
// process-wide logger — so that work handed off to another goroutine
// through capture.WrapCall still logs through the same Logger.
func InstallAuto(base Logger) *capture.AutoScoped[Logger] {
	return capture.AutoScope[Logger](base)
}

// Current returns the Logger visible in the calling goroutine's scope, or a
// bare stderr fallback if nothing has been installed (e.g. in a test that
// never called Install).
func Current() Logger {
	if l, ok := capture.Current[Logger](); ok {
		return l
	}
	return defaultLogger()
}
