// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"go.uber.org/zap"

	"parex/store"
)

// Builder collects named tasks and their ordering constraints, then compiles
// them into a Dispatcher.
//
// Dependencies must name tasks registered earlier, so registration order is
// always a valid topological order and cycles cannot be expressed. The first
// registration error sticks and is returned by Build; no partial dispatcher
// is ever produced.
type Builder struct {
	logger  Logger
	exec    Executor
	workers int

	tasks   []pendingTask
	names   map[string]int
	barrier int
	locals  []Task
	err     error
}

type pendingTask struct {
	name string
	deps []string
	task Task

	// Tasks registered before this index are implicit predecessors,
	// see WithBarrier.
	barrier int
}

func NewBuilder() *Builder {
	return &Builder{
		logger: NopLogger,
		names:  make(map[string]int),
	}
}

// WithLogger sets the logger handed to the dispatcher and, when no executor
// is supplied, the default pool.
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.logger = logger
	return b
}

// WithExecutor makes the dispatcher submit work to the given executor
// instead of creating its own pool. The caller keeps ownership of it.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	b.exec = exec
	return b
}

// WithWorkers sizes the default pool. It has no effect when an executor is
// supplied.
func (b *Builder) WithWorkers(n int) *Builder {
	b.workers = n
	return b
}

// With registers a parallel task under a unique name. Every dependency must
// name a task registered earlier.
func (b *Builder) With(task Task, name string, deps ...string) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.names[name]; dup {
		b.err = &DuplicateNameError{Name: name}
		return b
	}
	for _, dep := range deps {
		if _, ok := b.names[dep]; !ok {
			b.err = &UnknownDependencyError{Task: name, Dependency: dep}
			return b
		}
	}

	b.names[name] = len(b.tasks)
	b.tasks = append(b.tasks, pendingTask{
		name:    name,
		deps:    deps,
		task:    task,
		barrier: b.barrier,
	})
	return b
}

// WithBarrier makes every task registered after it depend on every task
// registered before it.
func (b *Builder) WithBarrier() *Builder {
	b.barrier = len(b.tasks)
	return b
}

// WithThreadLocal registers a task that runs on the dispatching goroutine
// after the parallel stage, in registration order.
func (b *Builder) WithThreadLocal(task Task) *Builder {
	b.locals = append(b.locals, task)
	return b
}

// Build compiles the plan: per-task cached access sets, predecessor counts
// and successor lists.
func (b *Builder) Build() (*Dispatcher, error) {
	if b.err != nil {
		return nil, b.err
	}

	tasks := make([]*plannedTask, len(b.tasks))
	for i, pt := range b.tasks {
		probe := pt.task.Data()
		reads, writes := probe.Reads(), probe.Writes()
		if err := validateAccess(pt.name, reads, writes); err != nil {
			return nil, err
		}

		deps := make(map[int]struct{}, len(pt.deps)+pt.barrier)
		for _, dep := range pt.deps {
			deps[b.names[dep]] = struct{}{}
		}
		for j := 0; j < pt.barrier; j++ {
			deps[j] = struct{}{}
		}

		tasks[i] = &plannedTask{
			name:   pt.name,
			task:   pt.task,
			reads:  dedupeIDs(reads),
			writes: dedupeIDs(writes),
			deps:   deps,
		}
	}

	for i, t := range tasks {
		for dep := range t.deps {
			tasks[dep].successors = append(tasks[dep].successors, i)
		}
	}

	d := &Dispatcher{
		logger: b.logger,
		exec:   b.exec,
		tasks:  tasks,
		locals: b.locals,
	}
	if d.exec == nil {
		d.ownedPool = NewPool(b.workers, b.logger)
		d.exec = d.ownedPool
	}

	b.logger.Debug("Compiled dispatch plan",
		zap.Int("tasks", len(tasks)),
		zap.Int("threadLocal", len(b.locals)))

	return d, nil
}

type plannedTask struct {
	name   string
	task   Task
	reads  []store.ID
	writes []store.ID

	deps       map[int]struct{}
	successors []int
}
