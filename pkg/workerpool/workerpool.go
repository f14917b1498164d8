// Package workerpool runs tasks on a bounded set of goroutines fed by a
// bounded queue. Submission never blocks: when the queue is full and no
// more workers may be started, the task is rejected.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Workers kept for the lifetime of the pool.
	Core int
	// Upper bound on workers. Workers above Core are started when the queue
	// is full and stop after IdleLifetime without work.
	Max          int
	IdleLifetime time.Duration
	// Capacity of the task queue. Zero hands tasks directly to idle workers.
	QueueSize int
}

type Pool struct {
	cfg   Config
	log   zerolog.Logger
	queue chan func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers int
	closed  bool

	pending  atomic.Int64
	rejected atomic.Int64
}

type Stats struct {
	Workers  int
	Queued   int
	Pending  int
	Rejected int64
}

// New creates the pool and starts the core workers.
func New(cfg Config, log zerolog.Logger) *Pool {
	if cfg.Core < 0 {
		cfg.Core = 0
	}
	if cfg.Max < cfg.Core {
		cfg.Max = cfg.Core
	}
	if cfg.Max <= 0 {
		cfg.Max = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		log:    log.With().Str("component", "workerpool").Logger(),
		queue:  make(chan func(), cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.mu.Lock()
	for i := 0; i < cfg.Core; i++ {
		p.startWorker(nil)
	}
	p.mu.Unlock()
	return p
}

// Submit queues the task. It returns false if the pool is closed or
// saturated; the task is then not run.
func (p *Pool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	// checked under mu, so that nothing is queued after Close drained the queue
	if p.closed {
		return false
	}
	p.pending.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
	}
	if p.workers < p.cfg.Max {
		p.startWorker(task)
		return true
	}
	p.pending.Add(-1)
	p.rejected.Add(1)
	p.log.Debug().Int("workers", p.workers).Int("queued", len(p.queue)).Msg("Rejected task")
	return false
}

// startWorker must be called with mu held.
func (p *Pool) startWorker(first func()) {
	p.workers++
	p.wg.Add(1)
	go p.worker(first)
}

func (p *Pool) worker(task func()) {
	defer p.wg.Done()
	if task != nil {
		p.run(task)
	}
	for {
		if p.ctx.Err() != nil {
			p.exit()
			return
		}
		var timeout <-chan time.Time
		var timer *time.Timer
		if p.cfg.IdleLifetime > 0 {
			timer = time.NewTimer(p.cfg.IdleLifetime)
			timeout = timer.C
		}
		select {
		case <-p.ctx.Done():
			stopTimer(timer)
			p.exit()
			return
		case task := <-p.queue:
			stopTimer(timer)
			p.run(task)
		case <-timeout:
			if p.retire() {
				return
			}
		}
	}
}

// retire stops an idle worker if there are more workers than Core.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers > p.cfg.Core {
		p.workers--
		p.log.Trace().Int("workers", p.workers).Msg("Idle worker stopped")
		return true
	}
	return false
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) run(task func()) {
	defer p.pending.Add(-1)
	defer func() {
		if err := recover(); err != nil {
			p.log.Error().Interface("error", err).Msg("Panic in task")
		}
	}()
	task()
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// Pending returns the number of tasks queued or running.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:  p.workers,
		Queued:   len(p.queue),
		Pending:  int(p.pending.Load()),
		Rejected: p.rejected.Load(),
	}
}

// Close stops the workers after their current task and drops queued tasks.
// It returns the number of dropped tasks.
func (p *Pool) Close() int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
	dropped := 0
	for {
		select {
		case <-p.queue:
			dropped++
			p.pending.Add(-1)
		default:
			if dropped > 0 {
				p.log.Debug().Int("dropped", dropped).Msg("Dropped queued tasks")
			}
			return dropped
		}
	}
}
