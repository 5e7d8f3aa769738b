// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"fmt"
	"reflect"
	"sync"
)

// ID identifies a stored resource by its concrete type and a small variant
// integer, so several instances of one type can coexist in a store.
type ID struct {
	Type    reflect.Type
	Variant uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%v#%d", id.Type, id.Variant)
}

// IDOf returns the ID of T at variant 0, which is where untagged operations
// place resources.
func IDOf[T any]() ID {
	return IDOfVariant[T](0)
}

func IDOfVariant[T any](variant uint64) ID {
	return ID{Type: reflect.TypeFor[T](), Variant: variant}
}

// Store maps resource IDs to borrow-checked cells holding the resource
// values. The store owns its resources; outside code only ever sees them
// through Ref and RefMut views bounded by an explicit Release.
//
// The directory itself (ID to cell) is guarded by a mutex, but during a
// dispatch it is only read: workers fetch concurrently, and all structural
// mutation (Insert, Remove) happens between dispatches on one goroutine.
type Store struct {
	mu    sync.RWMutex
	cells map[ID]*cell
}

func New() *Store {
	return &Store{cells: make(map[ID]*cell)}
}

// Contains reports whether a resource is present under the given ID.
func (s *Store) Contains(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.cells[id]
	return ok
}

// Remove drops the resource stored under id and reports whether it was
// present. Outstanding views of the removed resource stay valid until
// released; they just no longer correspond to anything reachable.
func (s *Store) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.cells[id]
	delete(s.cells, id)
	return ok
}

func (s *Store) cell(id ID) (*cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[id]
	return c, ok
}

func (s *Store) putCell(id ID, c *cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cells[id] = c
}

func (s *Store) putCellIfAbsent(id ID, mk func() *cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cells[id]; !ok {
		s.cells[id] = mk()
	}
}

// Insert places v into the store at variant 0, replacing any previous value
// stored under the same ID. It must not race a dispatch over this store.
func Insert[T any](s *Store, v T) {
	InsertAt(s, 0, v)
}

// InsertAt is Insert for an explicit variant.
func InsertAt[T any](s *Store, variant uint64, v T) {
	s.putCell(IDOfVariant[T](variant), newCell(&v))
}

// Fetch borrows the resource of type T at variant 0 shared. It fails with
// NotPresentError if the resource was never inserted and with ConflictError
// if an exclusive borrow is live.
func Fetch[T any](s *Store) (Ref[T], error) {
	return FetchAt[T](s, 0)
}

func FetchAt[T any](s *Store, variant uint64) (Ref[T], error) {
	id := IDOfVariant[T](variant)
	c, ok := s.cell(id)
	if !ok {
		return Ref[T]{}, &NotPresentError{ID: id}
	}
	if !c.borrowShared() {
		return Ref[T]{}, &ConflictError{ID: id}
	}
	return Ref[T]{c: c, v: downcast[T](c, id)}, nil
}

// FetchMut borrows the resource of type T at variant 0 exclusively. It fails
// with NotPresentError or ConflictError.
func FetchMut[T any](s *Store) (RefMut[T], error) {
	return FetchMutAt[T](s, 0)
}

func FetchMutAt[T any](s *Store, variant uint64) (RefMut[T], error) {
	id := IDOfVariant[T](variant)
	c, ok := s.cell(id)
	if !ok {
		return RefMut[T]{}, &NotPresentError{ID: id}
	}
	if !c.borrowExclusive() {
		return RefMut[T]{}, &ConflictError{ID: id}
	}
	return RefMut[T]{c: c, v: downcast[T](c, id)}, nil
}

// TryFetch is Fetch, except absence is reported through ok rather than an
// error. A borrow conflict is still an error: absence is a legitimate state,
// a conflict is a bug.
func TryFetch[T any](s *Store) (Ref[T], bool, error) {
	return TryFetchAt[T](s, 0)
}

func TryFetchAt[T any](s *Store, variant uint64) (Ref[T], bool, error) {
	id := IDOfVariant[T](variant)
	c, ok := s.cell(id)
	if !ok {
		return Ref[T]{}, false, nil
	}
	if !c.borrowShared() {
		return Ref[T]{}, false, &ConflictError{ID: id}
	}
	return Ref[T]{c: c, v: downcast[T](c, id)}, true, nil
}

func TryFetchMut[T any](s *Store) (RefMut[T], bool, error) {
	return TryFetchMutAt[T](s, 0)
}

func TryFetchMutAt[T any](s *Store, variant uint64) (RefMut[T], bool, error) {
	id := IDOfVariant[T](variant)
	c, ok := s.cell(id)
	if !ok {
		return RefMut[T]{}, false, nil
	}
	if !c.borrowExclusive() {
		return RefMut[T]{}, false, &ConflictError{ID: id}
	}
	return RefMut[T]{c: c, v: downcast[T](c, id)}, true, nil
}

// SetupDefault installs the zero value of T under the given variant if
// nothing is stored there yet. It is idempotent and is what bundle setup
// uses to satisfy "create if missing" declarations.
func SetupDefault[T any](s *Store, variant uint64) {
	SetupWith(s, variant, func() T {
		var zero T
		return zero
	})
}

// SetupWith installs factory() under the given variant if nothing is stored
// there yet. The factory is not called when the resource is present.
func SetupWith[T any](s *Store, variant uint64, factory func() T) {
	s.putCellIfAbsent(IDOfVariant[T](variant), func() *cell {
		v := factory()
		return newCell(&v)
	})
}

// GetOrDefault fetches T at variant 0 shared, installing the zero value
// first if the resource is absent.
func GetOrDefault[T any](s *Store) (Ref[T], error) {
	SetupDefault[T](s, 0)
	return Fetch[T](s)
}

// MutUnique returns a direct pointer to the resource without taking a
// borrow. The caller must guarantee by external means that no views are live
// and no dispatch is running; the idle check here is best effort.
func MutUnique[T any](s *Store) (*T, error) {
	id := IDOf[T]()
	c, ok := s.cell(id)
	if !ok {
		return nil, &NotPresentError{ID: id}
	}
	if !c.idle() {
		return nil, &ConflictError{ID: id}
	}
	return downcast[T](c, id), nil
}

// downcast recovers the concrete pointer from a cell. The ID embeds the
// concrete type, so a mismatch means the directory was corrupted.
func downcast[T any](c *cell, id ID) *T {
	v, ok := c.value.(*T)
	if !ok {
		panic(fmt.Sprintf("store: resource stored under %s has type %T", id, c.value))
	}
	return v
}

// Ref is a shared view of a stored resource. The pointee must not be
// mutated through it.
type Ref[T any] struct {
	c *cell
	v *T
}

// Get returns the borrowed resource. It panics if the view was never
// fetched or was already released.
func (r *Ref[T]) Get() *T {
	if r.c == nil {
		panic("store: use of an unfetched or released view")
	}
	return r.v
}

// Release returns the borrow to the cell. Releasing twice is a no-op on the
// same view value.
func (r *Ref[T]) Release() {
	if r.c == nil {
		return
	}
	r.c.releaseShared()
	r.c = nil
	r.v = nil
}

// RefMut is an exclusive view of a stored resource.
type RefMut[T any] struct {
	c *cell
	v *T
}

func (r *RefMut[T]) Get() *T {
	if r.c == nil {
		panic("store: use of an unfetched or released view")
	}
	return r.v
}

func (r *RefMut[T]) Release() {
	if r.c == nil {
		return
	}
	r.c.releaseExclusive()
	r.c = nil
	r.v = nil
}
