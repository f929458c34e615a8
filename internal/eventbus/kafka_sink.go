package eventbus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"firestige.xyz/capturescope/internal/config"
)

// KafkaSink forwards every event its Handler receives to a Kafka topic,
// letting a downstream system observe the events published on the bus
// across the whole fleet.
type KafkaSink struct {
	w *kafka.Writer
}

// NewKafkaSink builds a KafkaSink from an EventBusConfig. Brokers/SASL/TLS
// fall back to the node's GlobalKafkaConfig when left unset.
func NewKafkaSink(cfg config.EventBusKafka, global config.GlobalKafkaConfig) *KafkaSink {
	brokers := cfg.Brokers
	if len(brokers) == 0 {
		brokers = global.Brokers
	}
	sasl := cfg.SASL
	if !sasl.Enabled {
		sasl = global.SASL
	}
	tlsCfg := cfg.TLS
	if !tlsCfg.Enabled {
		tlsCfg = global.TLS
	}

	transport := &kafka.Transport{}
	if tlsCfg.Enabled {
		transport.TLS = &tls.Config{InsecureSkipVerify: tlsCfg.InsecureSkipVerify}
	}
	if sasl.Enabled && sasl.Username != "" {
		transport.SASL = plain.Mechanism{Username: sasl.Username, Password: sasl.Password}
	}

	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    transport,
		BatchTimeout: 200 * time.Millisecond,
		Async:        true,
	}}
}

// Handler returns a Handler suitable for Subscribe, serializing each event
// to JSON and shipping it fire-and-forget.
func (s *KafkaSink) Handler() Handler {
	return func(event *Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return s.w.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte(event.Key),
			Value: payload,
			Time:  time.Now(),
		})
	}
}

// Close flushes and releases the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
