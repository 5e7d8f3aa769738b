// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Pool is the default Executor: a fixed set of worker goroutines draining a
// shared task channel.
type Pool struct {
	logger Logger
	tasks  chan func()

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts workers goroutines; workers <= 0 means GOMAXPROCS.
func NewPool(workers int, logger Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = NopLogger
	}

	p := &Pool{
		logger: logger,
		tasks:  make(chan func(), workers),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}

	logger.Debug("Started worker pool", zap.Int("workers", workers))

	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	p.logger.Verbo("Worker started", zap.Int("worker", id))
	for f := range p.tasks {
		f()
	}
	p.logger.Verbo("Worker stopped", zap.Int("worker", id))
}

// Submit hands f to a worker. It blocks while all workers are busy and the
// channel is full, and must not be called after Close.
func (p *Pool) Submit(f func()) {
	p.tasks <- f
}

// Close stops accepting work and waits for in-flight tasks to finish. It is
// idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
