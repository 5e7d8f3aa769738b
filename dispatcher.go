// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"parex/store"
)

// Dispatcher executes a compiled plan against a store. It is reusable across
// dispatches, including after a failed one, but a single dispatcher runs one
// dispatch at a time.
type Dispatcher struct {
	logger    Logger
	exec      Executor
	ownedPool *Pool
	tasks     []*plannedTask
	locals    []Task

	mu sync.Mutex
}

// Setup walks every task in registration order and installs defaults for the
// resources its bundle declares, followed by the task's own Setup hook if it
// has one. Call it once before the first dispatch.
func (d *Dispatcher) Setup(s *store.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.tasks {
		setupTask(t.task, s)
	}
	for _, t := range d.locals {
		setupTask(t, s)
	}
}

func setupTask(t Task, s *store.Store) {
	t.Data().Setup(s)
	if st, ok := t.(SetupTask); ok {
		st.Setup(s)
	}
}

// Dispose runs the Dispose hook of every task that has one. The dispatcher
// must not be dispatched afterwards.
func (d *Dispatcher) Dispose(s *store.Store) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.tasks {
		if dt, ok := t.task.(DisposeTask); ok {
			dt.Dispose(s)
		}
	}
	for _, t := range d.locals {
		if dt, ok := t.(DisposeTask); ok {
			dt.Dispose(s)
		}
	}
	d.tasks = nil
	d.locals = nil
}

// Close releases the default pool if the builder created one. A dispatcher
// running on a caller-supplied executor has nothing to close.
func (d *Dispatcher) Close() {
	if d.ownedPool != nil {
		d.ownedPool.Close()
		d.ownedPool = nil
	}
}

// Dispatch runs the parallel stage on the executor, then the thread-local
// tasks on the calling goroutine. At any instant the set of running tasks
// has pairwise disjoint write sets, no write overlapping another task's
// reads, and every declared predecessor completed.
//
// If any task fails, no further tasks are launched, in-flight tasks drain,
// the thread-local stage is skipped, and the combined failures are returned.
// The store keeps all its resources and the dispatcher stays usable.
func (d *Dispatcher) Dispatch(s *store.Store) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.runParallel(s); err != nil {
		return err
	}
	return d.runThreadLocal(s)
}

// DispatchSeq runs every task on the calling goroutine in registration
// order, which the builder guarantees is topological, then the thread-local
// stage. It needs no executor and stops at the first failure.
func (d *Dispatcher) DispatchSeq(s *store.Store) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.tasks {
		d.logger.Trace("Running task", zap.String("task", t.name))
		if err := runInline(t.name, t.task, s); err != nil {
			d.logger.Error("Task failed", zap.String("task", t.name), zap.Error(err))
			return err
		}
	}
	return d.runThreadLocal(s)
}

type completion struct {
	idx int
	err error
}

func (d *Dispatcher) runParallel(s *store.Store) error {
	n := len(d.tasks)
	if n == 0 {
		return nil
	}

	waiting := make([]int, n)
	var pending []int
	for i, t := range d.tasks {
		waiting[i] = len(t.deps)
		if waiting[i] == 0 {
			pending = append(pending, i)
		}
	}

	activeReads := make(map[store.ID]int)
	activeWrites := make(map[store.ID]struct{})
	done := make(chan completion, n)

	launchable := func(t *plannedTask) bool {
		for _, id := range t.reads {
			if _, w := activeWrites[id]; w {
				return false
			}
		}
		for _, id := range t.writes {
			if activeReads[id] > 0 {
				return false
			}
			if _, w := activeWrites[id]; w {
				return false
			}
		}
		return true
	}

	running := 0
	var failures []error

	for {
		if failures == nil {
			// Scan in registration order; every launchable task is
			// claimed and submitted, the rest stay pending.
			var rest []int
			for _, i := range pending {
				t := d.tasks[i]
				if !launchable(t) {
					rest = append(rest, i)
					continue
				}
				for _, id := range t.reads {
					activeReads[id]++
				}
				for _, id := range t.writes {
					activeWrites[id] = struct{}{}
				}
				running++
				d.logger.Debug("Launching task",
					zap.String("task", t.name),
					zap.Int("running", running))
				d.exec.Submit(d.worker(i, s, done))
			}
			pending = rest
		} else {
			// A task failed, abandon everything not yet launched.
			pending = nil
		}

		if running == 0 {
			if len(pending) > 0 {
				stuck := d.tasks[pending[0]]
				return &InvariantError{
					Task: stuck.name,
					Err:  fmt.Errorf("not launchable while nothing is running"),
				}
			}
			break
		}

		c := <-done
		t := d.tasks[c.idx]
		running--
		for _, id := range t.reads {
			if activeReads[id]--; activeReads[id] == 0 {
				delete(activeReads, id)
			}
		}
		for _, id := range t.writes {
			delete(activeWrites, id)
		}

		if c.err != nil {
			d.logger.Error("Task failed", zap.String("task", t.name), zap.Error(c.err))
			failures = append(failures, c.err)
			continue
		}

		d.logger.Trace("Task completed", zap.String("task", t.name))
		for _, succ := range t.successors {
			if waiting[succ]--; waiting[succ] == 0 {
				pending = insertOrdered(pending, succ)
			}
		}
	}

	return multierr.Combine(failures...)
}

// worker wraps one task invocation for the executor: build the bundle, run,
// release, and report back exactly once. A borrow failing here contradicts
// the exclusion the scheduler just proved, so it surfaces as an invariant
// violation rather than a recoverable error.
func (d *Dispatcher) worker(idx int, s *store.Store, done chan<- completion) func() {
	t := d.tasks[idx]
	return func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Task: t.name, Value: r}
			}
			done <- completion{idx: idx, err: err}
		}()

		data := t.task.Data()
		if ferr := data.Fetch(s); ferr != nil {
			err = &InvariantError{Task: t.name, Err: ferr}
			return
		}
		defer data.Release()

		t.task.Run(data)
	}
}

func (d *Dispatcher) runThreadLocal(s *store.Store) error {
	for i, t := range d.locals {
		name := fmt.Sprintf("thread-local #%d", i)
		d.logger.Trace("Running task", zap.String("task", name))
		if err := runInline(name, t, s); err != nil {
			d.logger.Error("Task failed", zap.String("task", name), zap.Error(err))
			return err
		}
	}
	return nil
}

// runInline executes one task synchronously with the same bundle lifecycle
// and panic containment as a worker.
func runInline(name string, t Task, s *store.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: name, Value: r}
		}
	}()

	data := t.Data()
	if ferr := data.Fetch(s); ferr != nil {
		return &InvariantError{Task: name, Err: ferr}
	}
	defer data.Release()

	t.Run(data)
	return nil
}

// insertOrdered keeps the pending queue in registration order, the stable
// tie-breaker for conflicting tasks.
func insertOrdered(pending []int, idx int) []int {
	i := len(pending)
	for i > 0 && pending[i-1] > idx {
		i--
	}
	pending = append(pending, 0)
	copy(pending[i+1:], pending[i:])
	pending[i] = idx
	return pending
}
