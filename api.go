// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"parex/store"

	"go.uber.org/zap"
)

type Logger interface {
	// Log that a fatal error has occurred. The program should likely exit soon
	// after this is called
	Fatal(msg string, fields ...zap.Field)
	// Log that an error has occurred. The program should be able to recover
	// from this error
	Error(msg string, fields ...zap.Field)
	// Log that an event has occurred that may indicate a future error or
	// vulnerability
	Warn(msg string, fields ...zap.Field)
	// Log an event that may be useful for a user to see to measure the progress
	// of a dispatch
	Info(msg string, fields ...zap.Field)
	// Log an event that may be useful for understanding the order of the
	// execution of tasks
	Trace(msg string, fields ...zap.Field)
	// Log an event that may be useful for a programmer to see when debugging
	// the scheduling of tasks
	Debug(msg string, fields ...zap.Field)
	// Log extremely detailed events that can be useful for inspecting every
	// aspect of the program
	Verbo(msg string, fields ...zap.Field)
}

// Executor runs closures handed to it by the scheduler, each on some worker
// goroutine. A fixed Pool is used when no executor is supplied; anything with
// the same contract (run every submitted closure exactly once, off the
// submitting goroutine) can stand in.
type Executor interface {
	Submit(f func())
}

// Bundle declares and carries the resource views for one task invocation.
//
// Reads and Writes declare the access set; Setup installs defaults for
// resources the bundle expects but which may be absent; Fetch acquires every
// declared borrow from the store or fails without holding any; Release
// returns all borrows.
//
// Bundles compose: a bundle made of sub-bundles unions their access sets and
// runs their setup and fetch in declared order. The union must keep reads
// and writes disjoint; a bundle that overlaps them is rejected no later than
// its first Fetch.
type Bundle interface {
	Reads() []store.ID
	Writes() []store.ID
	Setup(s *store.Store)
	Fetch(s *store.Store) error
	Release()
}

// Task is one unit of work. Data returns the task's bundle; the dispatcher
// fetches it immediately before Run and releases it immediately after, so a
// task holds no borrows between dispatches. Run receives the same bundle
// value Data returned, already fetched.
//
// A task instance is entered by at most one worker at a time per dispatch.
type Task interface {
	Data() Bundle
	Run(data Bundle)
}

// SetupTask is implemented by tasks that install defaults beyond what their
// bundle declares.
type SetupTask interface {
	Setup(s *store.Store)
}

// DisposeTask is implemented by tasks that hold external state to release
// when the dispatcher is torn down.
type DisposeTask interface {
	Dispose(s *store.Store)
}

type nopLogger struct{}

func (nopLogger) Fatal(string, ...zap.Field) {}
func (nopLogger) Error(string, ...zap.Field) {}
func (nopLogger) Warn(string, ...zap.Field)  {}
func (nopLogger) Info(string, ...zap.Field)  {}
func (nopLogger) Trace(string, ...zap.Field) {}
func (nopLogger) Debug(string, ...zap.Field) {}
func (nopLogger) Verbo(string, ...zap.Field) {}

// NopLogger discards everything. It is the default for builders and pools
// constructed without a logger.
var NopLogger Logger = nopLogger{}
