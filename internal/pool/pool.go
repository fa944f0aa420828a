// Package pool implements a bounded task pool with a fixed core worker
// count, burst workers up to an upper limit, a bounded backlog queue, and a
// caller-runs overflow policy: when both the pool and its backlog are
// saturated, Submit executes the task synchronously on the submitting
// goroutine instead of rejecting or dropping it.
package pool

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/kursadbilgin/item-engine/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultCoreWorkers = 5
	defaultMaxWorkers  = 10
	defaultQueueSize   = 100
	defaultIdleTimeout = 60 * time.Second
)

type Config struct {
	// CoreWorkers is the number of workers kept alive for the pool's lifetime.
	CoreWorkers int
	// MaxWorkers is the upper burst limit; workers above CoreWorkers exit
	// after IdleTimeout without work.
	MaxWorkers int
	// QueueSize bounds the backlog of tasks waiting for a worker.
	QueueSize int
	// IdleTimeout is how long a burst worker waits for work before exiting.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CoreWorkers < 1 {
		c.CoreWorkers = defaultCoreWorkers
	}
	if c.MaxWorkers < c.CoreWorkers {
		c.MaxWorkers = c.CoreWorkers
	}
	if c.QueueSize < 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	return c
}

// Pool is a shared, process-wide task pool. It is safe for concurrent
// submission from multiple goroutines. Submit never rejects a task and never
// blocks on a full queue; overflow work runs on the caller.
type Pool struct {
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics

	queue chan func()

	mu      sync.Mutex
	workers int
	closed  bool

	// pending counts accepted tasks that have not finished executing;
	// workerWG counts live worker goroutines.
	pending  sync.WaitGroup
	workerWG sync.WaitGroup
}

func New(cfg Config, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan func(), cfg.QueueSize),
	}
}

func (p *Pool) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Submit schedules a task, preferring in this order: a new core worker, the
// backlog queue, a new burst worker, and finally the submitting goroutine
// itself. It returns once the task is accepted, or after running it in the
// caller-runs case.
func (p *Pool) Submit(task func()) {
	if p == nil || task == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		// The pool no longer accepts work but tasks are never dropped.
		p.logger.Warn("task submitted after pool close, running on caller")
		p.execute(task)
		return
	}

	p.pending.Add(1)
	p.metrics.IncPoolTaskSubmitted()
	run := func() {
		defer p.pending.Done()
		p.execute(task)
	}

	if p.workers < p.cfg.CoreWorkers {
		p.startWorkerLocked(run, false)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.queue <- run:
		p.metrics.SetPoolQueueDepth(len(p.queue))
		return
	default:
	}

	p.mu.Lock()
	if !p.closed && p.workers < p.cfg.MaxWorkers {
		p.startWorkerLocked(run, true)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// Pool and backlog saturated: caller-runs backpressure.
	p.metrics.IncPoolCallerRun()
	p.logger.Debug("pool saturated, executing task on submitting goroutine",
		zap.Int("workers", p.cfg.MaxWorkers),
		zap.Int("queueSize", p.cfg.QueueSize),
	)
	run()
}

// Close stops accepting work, waits for every accepted task to reach a
// terminal state, and then releases the workers. Tasks submitted after Close
// still execute, on the submitting goroutine.
func (p *Pool) Close() {
	if p == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.queue)
	p.workerWG.Wait()
}

// Workers reports the current number of live worker goroutines.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

func (p *Pool) startWorkerLocked(first func(), burst bool) {
	p.workers++
	p.metrics.SetPoolWorkers(p.workers)
	p.workerWG.Add(1)
	go p.workerLoop(first, burst)
}

func (p *Pool) workerLoop(first func(), burst bool) {
	defer p.workerWG.Done()

	if first != nil {
		first()
	}

	if burst {
		p.burstLoop()
	} else {
		p.coreLoop()
	}

	p.mu.Lock()
	p.workers--
	p.metrics.SetPoolWorkers(p.workers)
	p.mu.Unlock()
}

func (p *Pool) coreLoop() {
	for run := range p.queue {
		p.metrics.SetPoolQueueDepth(len(p.queue))
		run()
	}
}

func (p *Pool) burstLoop() {
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case run, ok := <-p.queue:
			if !ok {
				return
			}
			p.metrics.SetPoolQueueDepth(len(p.queue))
			run()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.IdleTimeout)
		case <-idle.C:
			return
		}
	}
}

// execute runs one task, containing panics so a failing task can never take
// down a worker or the submitting goroutine.
func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	task()
}
