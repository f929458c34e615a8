// Package eventbus implements an in-process, partitioned event bus used to
// fan out published events (such as task.TaskManager's task.created and
// task.deleted notifications) to interested subscribers without blocking
// the goroutine that raised them.
package eventbus

import (
	"context"
)

// Event is a single notification published on the bus.
type Event struct {
	Topic   string      `json:"topic"`
	Key     string      `json:"key"` // affinity key; same key always lands on the same partition
	Payload interface{} `json:"payload"`
}

// Handler processes one Event. A non-nil error is logged but never
// retried or fed back to the publisher.
type Handler func(event *Event) error

// Subscriber pairs a topic with the handler invoked for events on it.
type Subscriber struct {
	Topic   string
	Handler Handler
}

// partition is one independent, ordered consumer of queued events. Events
// are sharded across partitions by Event.Key so that events sharing a key
// are always processed in publish order.
type partition struct {
	id      int
	queue   chan *Event
	ctx     context.Context
	cancel  context.CancelFunc
	handler Handler
}
