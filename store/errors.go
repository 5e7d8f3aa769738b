// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import "fmt"

// NotPresentError is returned when fetching a resource that was never
// inserted into the store.
type NotPresentError struct {
	ID ID
}

func (e *NotPresentError) Error() string {
	return fmt.Sprintf("no resource registered for %s", e.ID)
}

// ConflictError is returned when a fetch collides with a live borrow that
// excludes it. Inside a dispatch this indicates a mis-declared access set.
type ConflictError struct {
	ID ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting borrow of %s", e.ID)
}
