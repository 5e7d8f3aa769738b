// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import "parex/store"

// RunNow executes a single task against the store on the calling goroutine,
// outside any dispatcher: setup, fetch, run, release. A failed fetch is
// returned; a panic inside Run propagates to the caller.
func RunNow(t Task, s *store.Store) error {
	if st, ok := t.(SetupTask); ok {
		st.Setup(s)
	}

	data := t.Data()
	data.Setup(s)

	if err := validateAccess("", data.Reads(), data.Writes()); err != nil {
		return err
	}
	if err := data.Fetch(s); err != nil {
		return err
	}
	defer data.Release()

	t.Run(data)
	return nil
}

// TaskFunc adapts a bundle value and a closure into a Task, for tasks that
// carry no state of their own.
func TaskFunc(data Bundle, run func(data Bundle)) Task {
	return &funcTask{data: data, run: run}
}

type funcTask struct {
	data Bundle
	run  func(data Bundle)
}

func (t *funcTask) Data() Bundle { return t.data }

func (t *funcTask) Run(data Bundle) { t.run(data) }
