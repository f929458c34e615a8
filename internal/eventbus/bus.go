package eventbus

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"firestige.xyz/capturescope/internal/log"
)

// EventBus fans out published events to subscribed handlers.
type EventBus interface {
	Publish(event *Event) error
	Subscribe(topic string, handler Handler) error
	Close() error
	GetStats() *Stats
}

// Stats reports bus throughput and queue depth.
type Stats struct {
	PublishedCount int64
	ProcessedCount int64
	PartitionCount int
	QueuedCount    []int
}

// InMemoryEventBus is a partitioned, in-process EventBus implementation.
// Each partition runs its own consumer goroutine so that one slow handler
// can only stall events that hash to its partition.
type InMemoryEventBus struct {
	partitions     []*partition
	partitionCount int
	queueSize      int
	subscribers    map[string]Handler
	mu             sync.RWMutex
	closed         int32

	publishedCount int64
	processedCount int64
}

// NewInMemoryEventBus creates a bus with the given number of partitions,
// each buffered to queueSize pending events.
func NewInMemoryEventBus(partitionCount, queueSize int) EventBus {
	if partitionCount < 1 {
		partitionCount = 1
	}
	bus := &InMemoryEventBus{
		partitionCount: partitionCount,
		queueSize:      queueSize,
		subscribers:    make(map[string]Handler),
		partitions:     make([]*partition, partitionCount),
	}

	for i := 0; i < partitionCount; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		bus.partitions[i] = &partition{
			id:     i,
			queue:  make(chan *Event, queueSize),
			ctx:    ctx,
			cancel: cancel,
		}
		go bus.runPartition(bus.partitions[i])
	}

	return bus
}

// Publish routes event to the partition selected by hashing event.Key.
func (b *InMemoryEventBus) Publish(event *Event) error {
	if atomic.LoadInt32(&b.closed) == 1 {
		return fmt.Errorf("event bus is closed")
	}

	partitionID := b.getPartitionID(event.Key)
	p := b.partitions[partitionID]

	select {
	case p.queue <- event:
		atomic.AddInt64(&b.publishedCount, 1)
		return nil
	default:
		return fmt.Errorf("partition %d queue is full", partitionID)
	}
}

// Subscribe registers handler for topic, replacing any prior handler for
// that topic. All partitions share the same subscriber map.
func (b *InMemoryEventBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if atomic.LoadInt32(&b.closed) == 1 {
		return fmt.Errorf("event bus is closed")
	}

	b.subscribers[topic] = handler

	for _, p := range b.partitions {
		p.handler = b.getHandler
	}

	log.Current().Infof("eventbus: subscribed to topic %q", topic)
	return nil
}

// Close stops all partition consumers. Idempotent.
func (b *InMemoryEventBus) Close() error {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return nil
	}

	for _, p := range b.partitions {
		p.cancel()
		close(p.queue)
	}

	log.Current().Info("eventbus: closed")
	return nil
}

// GetStats returns a point-in-time snapshot of bus counters.
func (b *InMemoryEventBus) GetStats() *Stats {
	stats := &Stats{
		PublishedCount: atomic.LoadInt64(&b.publishedCount),
		ProcessedCount: atomic.LoadInt64(&b.processedCount),
		PartitionCount: b.partitionCount,
		QueuedCount:    make([]int, b.partitionCount),
	}

	for i, p := range b.partitions {
		stats.QueuedCount[i] = len(p.queue)
	}

	return stats
}

func (b *InMemoryEventBus) getPartitionID(key string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return int(hasher.Sum32()) % b.partitionCount
}

func (b *InMemoryEventBus) getHandler(event *Event) error {
	b.mu.RLock()
	handler, exists := b.subscribers[event.Topic]
	b.mu.RUnlock()

	if !exists {
		log.Current().Debugf("eventbus: no handler for topic %q", event.Topic)
		return nil
	}

	return handler(event)
}

func (b *InMemoryEventBus) runPartition(p *partition) {
	logger := log.Current()
	logger.Debugf("eventbus: partition %d started", p.id)

	defer func() {
		logger.Debugf("eventbus: partition %d stopped", p.id)
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case event, ok := <-p.queue:
			if !ok {
				return
			}

			if p.handler != nil {
				if err := p.handler(event); err != nil {
					logger.Errorf("eventbus: partition %d: handler failed: %v", p.id, err)
				} else {
					atomic.AddInt64(&b.processedCount, 1)
				}
			}
		}
	}
}
