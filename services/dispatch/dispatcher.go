package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/llm-dev-ops/governance-gateway/models"
)

// AuditSink receives audit events. Delivery is at-least-once; sinks dedupe
// on the event's RequestID.
type AuditSink interface {
	WriteAudit(ctx context.Context, event *models.AuditEvent) error
}

// MetricsSink receives metric samples
type MetricsSink interface {
	WriteMetric(ctx context.Context, sample *models.MetricSample) error
}

// BackpressureMode selects what happens when the queue is full
type BackpressureMode string

const (
	// DropOldest evicts the oldest queued envelope to make room (default)
	DropOldest BackpressureMode = "drop_oldest"
	// Block waits for room up to EnqueueTimeout, then drops the new envelope
	Block BackpressureMode = "block"
)

// Config holds configuration for the Dispatcher
type Config struct {
	BufferSize     int
	WorkerCount    int
	Backpressure   BackpressureMode
	EnqueueTimeout time.Duration // only used in Block mode
	WriteTimeout   time.Duration // per-sink write deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:     10000,
		WorkerCount:    5,
		Backpressure:   DropOldest,
		EnqueueTimeout: 100 * time.Millisecond,
		WriteTimeout:   5 * time.Second,
	}
}

// envelope carries one audit event or one metric sample through the queue
type envelope struct {
	audit  *models.AuditEvent
	metric *models.MetricSample
}

// Dispatcher fans governance outcomes out to the audit and metrics sinks
// asynchronously. Emission never blocks the request path beyond the
// configured backpressure policy, and sink failures never fail a request.
type Dispatcher struct {
	auditSink   AuditSink
	metricsSink MetricsSink
	logger      *zap.Logger
	config      Config
	queue       chan envelope
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	dropped     atomic.Int64
	failures    atomic.Int64
}

// NewDispatcher creates a new Dispatcher. Either sink may be nil, in which
// case its envelopes are discarded.
func NewDispatcher(auditSink AuditSink, metricsSink MetricsSink, logger *zap.Logger, config Config) *Dispatcher {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.Backpressure == "" {
		config.Backpressure = DropOldest
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	return &Dispatcher{
		auditSink:   auditSink,
		metricsSink: metricsSink,
		logger:      logger,
		config:      config,
		queue:       make(chan envelope, config.BufferSize),
	}
}

// Start starts the background workers
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("dispatcher already started")
	}

	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.started = true

	d.logger.Info("started dispatcher",
		zap.Int("worker_count", d.config.WorkerCount),
		zap.Int("buffer_size", d.config.BufferSize),
		zap.String("backpressure", string(d.config.Backpressure)))

	return nil
}

// Stop drains the queue and stops the workers, waiting up to timeout
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	d.started = false
	// Closing under the write lock: enqueue holds the read lock across its
	// send, so no emitter can be mid-send on a closed channel.
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher", zap.Int("pending", len(d.queue)))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("dispatcher stop timeout after %v", timeout)
	}
}

// EmitAudit enqueues an audit event for asynchronous delivery
func (d *Dispatcher) EmitAudit(event *models.AuditEvent) {
	d.enqueue(envelope{audit: event})
}

// EmitMetric enqueues a metric sample for asynchronous delivery
func (d *Dispatcher) EmitMetric(sample *models.MetricSample) {
	d.enqueue(envelope{metric: sample})
}

func (d *Dispatcher) enqueue(env envelope) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.started {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- env:
		return
	default:
	}

	switch d.config.Backpressure {
	case Block:
		select {
		case d.queue <- env:
			return
		case <-time.After(d.config.EnqueueTimeout):
			d.dropped.Add(1)
			d.logger.Warn("dispatch queue full, dropping envelope after wait")
		}
	default:
		// Evict the oldest entry, then retry once
		select {
		case <-d.queue:
			d.dropped.Add(1)
			d.logger.Warn("dispatch queue full, evicted oldest envelope")
		default:
		}
		select {
		case d.queue <- env:
		default:
			d.dropped.Add(1)
		}
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for env := range d.queue {
		if err := d.deliver(env); err != nil {
			d.failures.Add(1)
			d.logger.Error("failed to deliver envelope",
				zap.Int("worker_id", id),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(env envelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.WriteTimeout)
	defer cancel()

	switch {
	case env.audit != nil && d.auditSink != nil:
		if err := d.auditSink.WriteAudit(ctx, env.audit); err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
	case env.metric != nil && d.metricsSink != nil:
		if err := d.metricsSink.WriteMetric(ctx, env.metric); err != nil {
			return fmt.Errorf("metrics sink: %w", err)
		}
	}
	return nil
}

// Stats reports queue health for the health endpoint
type Stats struct {
	BufferSize int   `json:"buffer_size"`
	Pending    int   `json:"pending"`
	Dropped    int64 `json:"dropped"`
	Failures   int64 `json:"failures"`
	Started    bool  `json:"started"`
}

// GetStats returns dispatcher statistics
func (d *Dispatcher) GetStats() Stats {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()

	return Stats{
		BufferSize: d.config.BufferSize,
		Pending:    len(d.queue),
		Dropped:    d.dropped.Load(),
		Failures:   d.failures.Load(),
		Started:    started,
	}
}
