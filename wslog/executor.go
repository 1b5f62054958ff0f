package wslog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives every closed transaction record.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Deliver(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Submitter accepts records for asynchronous delivery.
type Submitter interface {
	Submit(rec Record) bool
}

type ExecutorConfig struct {
	Workers     int
	QueueSize   int
	SinkTimeout time.Duration
	Logger      *slog.Logger
}

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultSinkTimeout = 10 * time.Second
)

// Executor is a fixed pool of workers that delivers records to sinks. Submit never blocks: when
// the queue is full the record is dropped and a warning is logged.
type Executor struct {
	queue       chan Record
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
	lock        sync.RWMutex
	closed      bool
	closeOnce   sync.Once
}

func NewExecutor(config ExecutorConfig, sinks ...Sink) *Executor {
	if config.Workers < 1 {
		config.Workers = defaultWorkers
	}
	if config.QueueSize < 1 {
		config.QueueSize = defaultQueueSize
	}
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = defaultSinkTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	e := &Executor{
		queue:       make(chan Record, config.QueueSize),
		sinks:       sinks,
		sinkTimeout: config.SinkTimeout,
		logger:      config.Logger,
	}
	for i := 0; i < config.Workers; i++ {
		e.wg.Add(1)
		go e.work()
	}
	return e
}

// Submit queues rec for delivery and reports whether it was accepted.
func (e *Executor) Submit(rec Record) bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	if e.closed {
		e.logger.Warn("Dropping transaction record, executor is closed", "id", rec.ID)
		return false
	}
	select {
	case e.queue <- rec:
		return true
	default:
		e.logger.Warn("Dropping transaction record, delivery queue is full",
			"id", rec.ID, "endpoint", rec.Endpoint)
		return false
	}
}

// Close stops accepting records, waits for the queue to drain, and returns once every worker
// has exited.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.lock.Lock()
		e.closed = true
		close(e.queue)
		e.lock.Unlock()
	})
	e.wg.Wait()
}

func (e *Executor) work() {
	defer e.wg.Done()
	for rec := range e.queue {
		for _, s := range e.sinks {
			e.deliver(s, rec)
		}
	}
}

func (e *Executor) deliver(s Sink, rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), e.sinkTimeout)
	defer cancel()
	if err := s.Deliver(ctx, rec); err != nil {
		e.logger.Warn("Transaction sink failed", "id", rec.ID, "error", err)
	}
}
