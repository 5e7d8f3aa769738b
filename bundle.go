// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"fmt"
	"reflect"

	"parex/store"
)

// Read declares a shared borrow of the resource T at the given variant. Its
// zero value declares variant 0. After Fetch, Get returns the resource; the
// pointee must not be mutated through it.
//
// Read implements Bundle, so it can be used directly as a task's data or as
// a field of a struct bundle.
type Read[T any] struct {
	Variant uint64

	ref store.Ref[T]
}

func (r *Read[T]) Reads() []store.ID {
	return []store.ID{store.IDOfVariant[T](r.Variant)}
}

func (r *Read[T]) Writes() []store.ID { return nil }

func (r *Read[T]) Setup(s *store.Store) {
	store.SetupDefault[T](s, r.Variant)
}

func (r *Read[T]) Fetch(s *store.Store) error {
	ref, err := store.FetchAt[T](s, r.Variant)
	if err != nil {
		return err
	}
	r.ref = ref
	return nil
}

func (r *Read[T]) Release() {
	r.ref.Release()
}

// Get returns the fetched resource. It panics outside a fetch/release pair.
func (r *Read[T]) Get() *T {
	return r.ref.Get()
}

// Write declares an exclusive borrow of the resource T at the given variant.
// Like Read, it implements Bundle.
type Write[T any] struct {
	Variant uint64

	ref store.RefMut[T]
}

func (w *Write[T]) Reads() []store.ID { return nil }

func (w *Write[T]) Writes() []store.ID {
	return []store.ID{store.IDOfVariant[T](w.Variant)}
}

func (w *Write[T]) Setup(s *store.Store) {
	store.SetupDefault[T](s, w.Variant)
}

func (w *Write[T]) Fetch(s *store.Store) error {
	ref, err := store.FetchMutAt[T](s, w.Variant)
	if err != nil {
		return err
	}
	w.ref = ref
	return nil
}

func (w *Write[T]) Release() {
	w.ref.Release()
}

func (w *Write[T]) Get() *T {
	return w.ref.Get()
}

// TryRead is Read for a resource that may legitimately be absent. It still
// declares a shared access (so the scheduler serializes it against writers),
// does not install a default, and reports presence through OK.
type TryRead[T any] struct {
	Variant uint64

	ref store.Ref[T]
	ok  bool
}

func (r *TryRead[T]) Reads() []store.ID {
	return []store.ID{store.IDOfVariant[T](r.Variant)}
}

func (r *TryRead[T]) Writes() []store.ID { return nil }

func (r *TryRead[T]) Setup(*store.Store) {}

func (r *TryRead[T]) Fetch(s *store.Store) error {
	ref, ok, err := store.TryFetchAt[T](s, r.Variant)
	if err != nil {
		return err
	}
	r.ref, r.ok = ref, ok
	return nil
}

func (r *TryRead[T]) Release() {
	r.ref.Release()
	r.ok = false
}

func (r *TryRead[T]) OK() bool { return r.ok }

func (r *TryRead[T]) Get() *T {
	return r.ref.Get()
}

// TryWrite is Write for a resource that may legitimately be absent.
type TryWrite[T any] struct {
	Variant uint64

	ref store.RefMut[T]
	ok  bool
}

func (w *TryWrite[T]) Reads() []store.ID { return nil }

func (w *TryWrite[T]) Writes() []store.ID {
	return []store.ID{store.IDOfVariant[T](w.Variant)}
}

func (w *TryWrite[T]) Setup(*store.Store) {}

func (w *TryWrite[T]) Fetch(s *store.Store) error {
	ref, ok, err := store.TryFetchMutAt[T](s, w.Variant)
	if err != nil {
		return err
	}
	w.ref, w.ok = ref, ok
	return nil
}

func (w *TryWrite[T]) Release() {
	w.ref.Release()
	w.ok = false
}

func (w *TryWrite[T]) OK() bool { return w.ok }

func (w *TryWrite[T]) Get() *T {
	return w.ref.Get()
}

// NoData is the bundle of a task that touches no resources.
type NoData struct{}

func (NoData) Reads() []store.ID { return nil }

func (NoData) Writes() []store.ID { return nil }

func (NoData) Setup(*store.Store) {}

func (NoData) Fetch(*store.Store) error { return nil }

func (NoData) Release() {}

var bundleType = reflect.TypeFor[Bundle]()

// Struct assembles a Bundle from a pointer to a struct whose exported fields
// are themselves bundles (Read, Write, their Try variants, other struct
// bundles, or anything else implementing Bundle). Access sets union across
// fields; setup and fetch run in declared field order, release in reverse.
// Plain fields are ignored, nested plain structs are walked.
//
// This is the runtime stand-in for generated bundle code: tasks keep the
// struct as a field, hand Struct(&s) out of Data, and read their views out
// of the struct inside Run.
func Struct(ptr any) Bundle {
	v := reflect.ValueOf(ptr)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("parex: Struct wants a non-nil pointer to a struct, got %T", ptr))
	}

	b := &structBundle{}
	collectParts(v.Elem(), &b.parts)
	return b
}

func collectParts(v reflect.Value, parts *[]Bundle) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		if !t.Field(i).IsExported() {
			continue
		}
		switch {
		case f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface:
			if f.Type().Implements(bundleType) && !f.IsNil() {
				*parts = append(*parts, f.Interface().(Bundle))
			}
		case reflect.PointerTo(f.Type()).Implements(bundleType):
			*parts = append(*parts, f.Addr().Interface().(Bundle))
		case f.Kind() == reflect.Struct:
			collectParts(f, parts)
		}
	}
}

type structBundle struct {
	parts []Bundle
}

func (b *structBundle) Reads() []store.ID {
	var reads []store.ID
	for _, p := range b.parts {
		reads = append(reads, p.Reads()...)
	}
	return reads
}

func (b *structBundle) Writes() []store.ID {
	var writes []store.ID
	for _, p := range b.parts {
		writes = append(writes, p.Writes()...)
	}
	return writes
}

func (b *structBundle) Setup(s *store.Store) {
	for _, p := range b.parts {
		p.Setup(s)
	}
}

func (b *structBundle) Fetch(s *store.Store) error {
	if err := validateAccess("", b.Reads(), b.Writes()); err != nil {
		return err
	}
	for i, p := range b.parts {
		if err := p.Fetch(s); err != nil {
			for j := i - 1; j >= 0; j-- {
				b.parts[j].Release()
			}
			return err
		}
	}
	return nil
}

func (b *structBundle) Release() {
	for i := len(b.parts) - 1; i >= 0; i-- {
		b.parts[i].Release()
	}
}

// validateAccess rejects access sets whose writes collide with their reads
// or with each other. Duplicate reads are fine, they are just several shared
// borrows of one resource.
func validateAccess(task string, reads, writes []store.ID) error {
	written := make(map[store.ID]struct{}, len(writes))
	for _, id := range writes {
		if _, dup := written[id]; dup {
			return &OverlappingAccessError{Task: task, ID: id}
		}
		written[id] = struct{}{}
	}
	for _, id := range reads {
		if _, hit := written[id]; hit {
			return &OverlappingAccessError{Task: task, ID: id}
		}
	}
	return nil
}

func dedupeIDs(ids []store.ID) []store.ID {
	seen := make(map[store.ID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
