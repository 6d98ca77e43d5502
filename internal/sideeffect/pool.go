// Package sideeffect runs best-effort work after a request has been served.
//
// Jobs are queued on a bounded channel and executed by a fixed set of
// workers. Enqueueing never blocks: when the queue is full the job is dropped
// and logged. Job errors and panics are logged and discarded.
package sideeffect

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	// Timeout bounds each job.
	Timeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

type job struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
}

// Pool is a bounded worker pool for side effects.
type Pool struct {
	cfg  Config
	jobs chan job
	wg   sync.WaitGroup

	// mu orders Go against Close so nothing is sent on a closed channel.
	mu     sync.RWMutex
	closed bool

	outcomes metric.Int64Counter
}

// Option configures a Pool.
type Option func(*Pool)

// WithMeterProvider records job outcomes on mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pool) {
		p.outcomes, _ = mp.Meter("catering/sideeffect").Int64Counter("sideeffect.jobs")
	}
}

// New starts a Pool.
func New(cfg Config, opts ...Option) *Pool {
	cfg.setDefaults()
	p := &Pool{
		cfg:  cfg,
		jobs: make(chan job, cfg.QueueSize),
	}
	p.outcomes, _ = noop.NewMeterProvider().Meter("").Int64Counter("sideeffect.jobs")
	for _, o := range opts {
		o(p)
	}

	p.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go p.worker()
	}
	return p
}

// Go schedules fn. The job context keeps the values of ctx (logger, trace)
// but not its cancellation, so it outlives the request.
func (p *Pool) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	j := job{ctx: context.WithoutCancel(ctx), name: name, fn: fn}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.record(j, "dropped")
		zctx.From(ctx).Warn("Side effect dropped, pool closed", zap.String("job", name))
		return
	}
	select {
	case p.jobs <- j:
	default:
		p.record(j, "dropped")
		zctx.From(ctx).Warn("Side effect dropped, queue full",
			zap.String("job", name),
			zap.Int("queue_size", p.cfg.QueueSize),
		)
	}
}

// Close stops accepting jobs and waits for queued ones until ctx is done.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain side effects")
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, p.cfg.Timeout)
	defer cancel()

	lg := zctx.From(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			p.record(j, "panic")
			lg.Error("Side effect panicked",
				zap.String("job", j.name),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		p.record(j, "error")
		lg.Warn("Side effect failed",
			zap.String("job", j.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	p.record(j, "ok")
	lg.Debug("Side effect done", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
}

func (p *Pool) record(j job, outcome string) {
	p.outcomes.Add(j.ctx, 1, metric.WithAttributes(
		attribute.String("job", j.name),
		attribute.String("outcome", outcome),
	))
}
