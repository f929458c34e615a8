package log

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaAppenderOpt configures a log appender that ships every write as a
// single Kafka record, for centralizing logs the way the daemon already
// centralizes commands and events on Kafka topics.
type KafkaAppenderOpt struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	TLS      bool
}

// kafkaAppender adapts a kafka.Writer to io.Writer so it can sit in a
// MultiWriter next to stdout, a file, and Loki.
type kafkaAppender struct {
	w *kafka.Writer
}

func (k *kafkaAppender) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	err := k.w.WriteMessages(context.Background(), kafka.Message{
		Value: line,
		Time:  time.Now(),
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// AddKafkaAppender wires an asynchronous, least-bytes-balanced kafka.Writer
// into the MultiWriter. Writes are fire-and-forget: a slow or unreachable
// broker must never block the log call site.
func (m *MultiWriter) AddKafkaAppender(options KafkaAppenderOpt) *MultiWriter {
	transport := &kafka.Transport{}
	if options.TLS {
		transport.TLS = &tls.Config{}
	}
	if options.Username != "" {
		transport.SASL = plain.Mechanism{
			Username: options.Username,
			Password: options.Password,
		}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(options.Brokers...),
		Topic:        options.Topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    transport,
		BatchTimeout: 500 * time.Millisecond,
		Async:        true,
	}

	return m.Add(&kafkaAppender{w: w})
}
