package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// PoolConfig defines worker pool configuration
type PoolConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// DefaultPoolConfig sizes the pool to the machine.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:   runtime.GOMAXPROCS(0),
		QueueSize: 64,
	}
}

type task struct {
	fn   func()
	done chan error
}

// Pool runs CPU-bound functions on a fixed set of goroutines so that bursts
// of password hashing cannot starve request handling.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan task
	wg     sync.WaitGroup
	logger *zap.Logger

	completed atomic.Int64
	panicked  atomic.Int64
}

// New starts a pool with config.Workers goroutines.
func New(config PoolConfig, logger *zap.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultPoolConfig().Workers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		tasks:  make(chan task, config.QueueSize),
		logger: logger,
	}

	p.wg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go p.worker()
	}

	logger.Info("Worker pool started",
		zap.Int("workers", config.Workers),
		zap.Int("queue_size", config.QueueSize))

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.done <- p.execute(t.fn)
	}
}

func (p *Pool) execute(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("Worker pool task panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("worker pool task panicked: %v", r)
		}
	}()
	fn()
	p.completed.Add(1)
	return nil
}

// Do runs fn on a pool worker and waits for it to finish. If ctx ends first
// Do returns ctx.Err(); a task that was already picked up still runs to
// completion, so fn must only write to state the caller discards on error.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	t := task{fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped", zap.Int64("completed", p.completed.Load()))
}

// Stats returns pool statistics
func (p *Pool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"completed": p.completed.Load(),
		"panicked":  p.panicked.Load(),
		"queued":    len(p.tasks),
	}
}
