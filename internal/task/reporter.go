package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/capturescope/internal/log"
	"firestige.xyz/capturescope/pkg/capture"
)

// Reporter delivers Results somewhere: stdout, a metrics sink, a Kafka topic.
// Implementations are constructed empty by their factory and brought up
// through Init -> Start -> (Report)* -> Flush -> Stop.
type Reporter interface {
	Name() string
	Init(cfg map[string]any) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Flush(ctx context.Context) error
	Report(ctx context.Context, r *Result) error
}

// Pausable is implemented by Reporters that can suspend and resume delivery
// without tearing down their connection. Opt-in: Task.Pause/Resume silently
// skip Reporters that don't implement it.
type Pausable interface {
	Pause() error
	Resume() error
}

// Reconfigurable is implemented by Reporters that can apply new config
// without a restart (e.g. a new Kafka topic). Opt-in.
type Reconfigurable interface {
	Reconfigure(cfg map[string]any) error
}

// ReporterFactory constructs a new, uninitialized Reporter instance.
type ReporterFactory func() Reporter

var (
	reporterRegistryMu sync.RWMutex
	reporterRegistry   = map[string]ReporterFactory{}
)

// RegisterReporter adds a ReporterFactory to the registry under name.
// Called from init() by built-in reporters and may also be called by callers
// wiring in their own Reporter implementations.
func RegisterReporter(name string, factory ReporterFactory) {
	reporterRegistryMu.Lock()
	defer reporterRegistryMu.Unlock()
	reporterRegistry[name] = factory
}

// GetReporterFactory looks up a registered ReporterFactory by name.
func GetReporterFactory(name string) (ReporterFactory, error) {
	reporterRegistryMu.RLock()
	defer reporterRegistryMu.RUnlock()
	f, ok := reporterRegistry[name]
	if !ok {
		return nil, fmt.Errorf("no reporter registered with name %q", name)
	}
	return f, nil
}

func init() {
	RegisterReporter("stdout", func() Reporter { return &stdoutReporter{} })
	RegisterReporter("kafka", func() Reporter { return &kafkaReporter{} })
}

// stdoutReporter writes each Result as a log line through the capture-scoped
// Logger — useful for development and for the task package's own tests.
type stdoutReporter struct {
	paused bool
}

func (r *stdoutReporter) Name() string                      { return "stdout" }
func (r *stdoutReporter) Init(_ map[string]any) error        { return nil }
func (r *stdoutReporter) Start(_ context.Context) error      { return nil }
func (r *stdoutReporter) Stop(_ context.Context) error       { return nil }
func (r *stdoutReporter) Flush(_ context.Context) error      { return nil }
func (r *stdoutReporter) Pause() error                       { r.paused = true; return nil }
func (r *stdoutReporter) Resume() error                      { r.paused = false; return nil }

// Report logs res through the ItemContext installed by processItem and
// carried across the worker->sender crossing via capture.WrapCall — the
// TaskID/ItemID pair it logs comes from capture.Current, not from res's own
// fields, so a broken crossing shows up here as missing log fields rather
// than passing silently.
func (r *stdoutReporter) Report(_ context.Context, res *Result) error {
	if r.paused {
		return nil
	}
	entry := log.Current()
	if ictx, ok := capture.Current[ItemContext](); ok {
		entry = entry.WithField("task_id", ictx.TaskID).WithField("item_id", ictx.ItemID)
	} else {
		entry = entry.WithField("task_id", res.TaskID).WithField("item_id", res.ItemID).
			WithField("item_context", "missing")
	}
	if res.Err != nil {
		entry.WithError(res.Err).Warn("item failed")
		return nil
	}
	entry.WithField("payload", res.Payload).Info("item reported")
	return nil
}

// kafkaReporter ships every Result as a JSON-less, fire-and-forget message to
// a Kafka topic, reusing the same segmentio/kafka-go writer shape the log
// package's kafka appender uses.
type kafkaReporter struct {
	writer *kafka.Writer
	topic  string
}

func (r *kafkaReporter) Name() string { return "kafka" }

func (r *kafkaReporter) Init(cfg map[string]any) error {
	brokers, _ := cfg["brokers"].([]string)
	if len(brokers) == 0 {
		if raw, ok := cfg["brokers"].([]any); ok {
			for _, b := range raw {
				if s, ok := b.(string); ok {
					brokers = append(brokers, s)
				}
			}
		}
	}
	topic, _ := cfg["topic"].(string)
	if len(brokers) == 0 || topic == "" {
		return fmt.Errorf("kafka reporter requires brokers and topic")
	}
	r.topic = topic
	r.writer = &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
	}
	return nil
}

func (r *kafkaReporter) Start(_ context.Context) error { return nil }

func (r *kafkaReporter) Stop(_ context.Context) error {
	if r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

func (r *kafkaReporter) Flush(_ context.Context) error { return nil }

func (r *kafkaReporter) Report(ctx context.Context, res *Result) error {
	if r.writer == nil {
		return fmt.Errorf("kafka reporter: not initialized")
	}
	value := fmt.Sprintf("%v", res.Payload)
	if res.Err != nil {
		value = fmt.Sprintf("error: %v", res.Err)
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(res.ItemID),
		Value: []byte(value),
	})
}

func (r *kafkaReporter) Reconfigure(cfg map[string]any) error {
	return r.Init(cfg)
}
