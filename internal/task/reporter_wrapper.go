package task

import (
	"context"
	"time"

	"firestige.xyz/capturescope/internal/log"
	"firestige.xyz/capturescope/internal/metrics"
)

// WrapperConfig configures a ReporterWrapper.
type WrapperConfig struct {
	Primary      Reporter
	Fallback     Reporter // optional; tried once when Primary.Report fails
	TaskID       string
	BatchSize    int           // results buffered before a forced flush; 0 = 1 (no batching)
	BatchTimeout time.Duration // max delay before a partial batch flushes; 0 = 50ms
}

// ReporterWrapper decouples a Task's sender loop from a single Reporter's
// pace: it buffers Results and flushes them — by count or by timeout,
// whichever comes first — so a slow Reporter holds up the others only once
// its buffer of BatchSize*4 Results is full and Send blocks.
type ReporterWrapper struct {
	cfg   WrapperConfig
	ch    chan *Result
	done  chan struct{}
	ctx   context.Context
}

// NewReporterWrapper builds a wrapper around cfg.Primary. Call Start before
// Send, and Close to flush and release the background goroutine.
func NewReporterWrapper(cfg WrapperConfig) *ReporterWrapper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	return &ReporterWrapper{
		cfg:  cfg,
		ch:   make(chan *Result, cfg.BatchSize*4),
		done: make(chan struct{}),
	}
}

// Start launches the background batching goroutine bound to ctx.
func (w *ReporterWrapper) Start(ctx context.Context) {
	w.ctx = ctx
	go w.loop()
}

// Send enqueues a Result for delivery. Never blocks the caller beyond the
// wrapper's own buffer capacity.
func (w *ReporterWrapper) Send(r *Result) {
	w.ch <- r
}

// Close stops accepting new Results, flushes whatever remains, and blocks
// until the background goroutine has exited.
func (w *ReporterWrapper) Close() {
	close(w.ch)
	<-w.done
}

func (w *ReporterWrapper) loop() {
	defer close(w.done)

	batch := make([]*Result, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		metrics.ReporterBatchSize.WithLabelValues(w.cfg.TaskID, w.cfg.Primary.Name()).Observe(float64(len(batch)))
		for _, r := range batch {
			w.deliver(r)
		}
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-w.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= w.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.cfg.BatchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(w.cfg.BatchTimeout)
		}
	}
}

func (w *ReporterWrapper) deliver(r *Result) {
	if err := w.cfg.Primary.Report(w.ctx, r); err != nil {
		metrics.ReporterErrorsTotal.WithLabelValues(w.cfg.TaskID, w.cfg.Primary.Name(), "report").Inc()
		entry := log.Current().WithField("task_id", w.cfg.TaskID).
			WithField("reporter", w.cfg.Primary.Name()).WithError(err)
		if w.cfg.Fallback == nil {
			entry.Warn("reporter failed, no fallback configured")
			return
		}
		entry.Warn("reporter failed, trying fallback")
		if fbErr := w.cfg.Fallback.Report(w.ctx, r); fbErr != nil {
			metrics.ReporterErrorsTotal.WithLabelValues(w.cfg.TaskID, w.cfg.Fallback.Name(), "fallback").Inc()
			log.Current().WithField("task_id", w.cfg.TaskID).
				WithField("reporter", w.cfg.Fallback.Name()).WithError(fbErr).
				Error("fallback reporter also failed")
		}
	}
}
