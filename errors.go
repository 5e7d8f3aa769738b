// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"fmt"

	"parex/store"
)

// UnknownDependencyError reports a task registered with a dependency name
// that no earlier task carries.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Dependency)
}

// DuplicateNameError reports two tasks registered under the same name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("a task named %q is already registered", e.Name)
}

// OverlappingAccessError reports a bundle whose declared reads and writes
// are not disjoint, or which declares the same write twice.
type OverlappingAccessError struct {
	Task string
	ID   store.ID
}

func (e *OverlappingAccessError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("bundle declares overlapping access to %s", e.ID)
	}
	return fmt.Sprintf("task %q declares overlapping access to %s", e.Task, e.ID)
}

// PanicError carries the panic value recovered from one task's Run.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.Task, e.Value)
}

// InvariantError reports a condition the scheduler's correctness argument
// rules out, such as a borrow failing inside a launched task. It aborts the
// dispatch and is not recoverable.
type InvariantError struct {
	Task string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("scheduler invariant violated in task %q: %v", e.Task, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}
