// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package parex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parex/store"
)

type positions struct {
	xs []int
}

type velocities struct {
	vs []int
}

type gravity float64

func TestReadWriteDeclarations(t *testing.T) {
	var r Read[positions]
	require.Equal(t, []store.ID{store.IDOf[positions]()}, r.Reads())
	require.Empty(t, r.Writes())

	var w Write[velocities]
	require.Empty(t, w.Reads())
	require.Equal(t, []store.ID{store.IDOf[velocities]()}, w.Writes())

	v := Write[velocities]{Variant: 3}
	require.Equal(t, []store.ID{store.IDOfVariant[velocities](3)}, v.Writes())
}

type moveData struct {
	Pos Write[positions]
	Vel Read[velocities]
}

func TestStructBundleAccessSets(t *testing.T) {
	var d moveData
	b := Struct(&d)

	require.Equal(t, []store.ID{store.IDOf[velocities]()}, b.Reads())
	require.Equal(t, []store.ID{store.IDOf[positions]()}, b.Writes())
}

func TestStructBundleFetchAndWriteBack(t *testing.T) {
	s := store.New()
	store.Insert(s, positions{xs: []int{1, 2}})
	store.Insert(s, velocities{vs: []int{3, 4}})

	var d moveData
	b := Struct(&d)

	require.NoError(t, b.Fetch(s))
	d.Pos.Get().xs[0] += d.Vel.Get().vs[0]
	b.Release()

	ref, err := store.Fetch[positions](s)
	require.NoError(t, err)
	defer ref.Release()
	require.Equal(t, []int{4, 2}, ref.Get().xs)
}

func TestStructBundleDeclaredEqualsBorrowed(t *testing.T) {
	s := store.New()
	store.Insert(s, positions{})
	store.Insert(s, velocities{})

	var d moveData
	b := Struct(&d)
	require.NoError(t, b.Fetch(s))

	// Every declared write holds an exclusive borrow.
	for range b.Writes() {
		_, err := store.Fetch[positions](s)
		var conflict *store.ConflictError
		require.ErrorAs(t, err, &conflict)
	}
	// Every declared read holds a shared borrow, which excludes writers only.
	_, err := store.FetchMut[velocities](s)
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	extra, err := store.Fetch[velocities](s)
	require.NoError(t, err)
	extra.Release()

	b.Release()

	// All borrows returned.
	mut, err := store.FetchMut[positions](s)
	require.NoError(t, err)
	mut.Release()
	mut2, err := store.FetchMut[velocities](s)
	require.NoError(t, err)
	mut2.Release()
}

type nestedData struct {
	Move moveData
	Grav Read[gravity]

	scratch int
}

func TestStructBundleComposes(t *testing.T) {
	var d nestedData
	b := Struct(&d)

	require.ElementsMatch(t, []store.ID{
		store.IDOf[velocities](),
		store.IDOf[gravity](),
	}, b.Reads())
	require.Equal(t, []store.ID{store.IDOf[positions]()}, b.Writes())

	s := store.New()
	b.Setup(s)
	require.True(t, s.Contains(store.IDOf[positions]()))
	require.True(t, s.Contains(store.IDOf[velocities]()))
	require.True(t, s.Contains(store.IDOf[gravity]()))

	require.NoError(t, b.Fetch(s))
	require.NotNil(t, d.Move.Pos.Get())
	require.NotNil(t, d.Grav.Get())
	b.Release()
}

type overlappingData struct {
	R Read[positions]
	W Write[positions]
}

func TestStructBundleRejectsOverlap(t *testing.T) {
	s := store.New()
	store.Insert(s, positions{})

	var d overlappingData
	b := Struct(&d)

	err := b.Fetch(s)
	var overlap *OverlappingAccessError
	require.ErrorAs(t, err, &overlap)
	require.Equal(t, store.IDOf[positions](), overlap.ID)

	// Nothing was borrowed.
	mut, err := store.FetchMut[positions](s)
	require.NoError(t, err)
	mut.Release()
}

type doubleWriteData struct {
	A Write[positions]
	B Write[positions]
}

func TestStructBundleRejectsDoubleWrite(t *testing.T) {
	var d doubleWriteData
	err := Struct(&d).Fetch(store.New())
	var overlap *OverlappingAccessError
	require.ErrorAs(t, err, &overlap)
}

type partialData struct {
	Pos Write[positions]
	Vel TryRead[velocities]
	Mis Read[gravity]
}

func TestStructBundleReleasesOnFailedFetch(t *testing.T) {
	s := store.New()
	store.Insert(s, positions{})
	// gravity is absent and Read does not tolerate that.

	var d partialData
	err := Struct(&d).Fetch(s)
	var notPresent *store.NotPresentError
	require.ErrorAs(t, err, &notPresent)

	// The write borrow taken before the failure was rolled back.
	mut, err := store.FetchMut[positions](s)
	require.NoError(t, err)
	mut.Release()
}

func TestTryViews(t *testing.T) {
	s := store.New()

	var r TryRead[velocities]
	require.NoError(t, r.Fetch(s))
	require.False(t, r.OK())
	r.Release()

	store.Insert(s, velocities{vs: []int{1}})
	require.NoError(t, r.Fetch(s))
	require.True(t, r.OK())
	require.Equal(t, []int{1}, r.Get().vs)
	r.Release()
	require.False(t, r.OK())

	var w TryWrite[velocities]
	require.NoError(t, w.Fetch(s))
	require.True(t, w.OK())
	w.Get().vs = append(w.Get().vs, 2)
	w.Release()

	ref, err := store.Fetch[velocities](s)
	require.NoError(t, err)
	defer ref.Release()
	require.Equal(t, []int{1, 2}, ref.Get().vs)
}

func TestTryViewsDoNotInstallDefaults(t *testing.T) {
	s := store.New()

	var d struct {
		Vel TryRead[velocities]
	}
	b := Struct(&d)
	b.Setup(s)
	require.False(t, s.Contains(store.IDOf[velocities]()))
}

func TestNoData(t *testing.T) {
	var b Bundle = NoData{}
	require.Empty(t, b.Reads())
	require.Empty(t, b.Writes())
	require.NoError(t, b.Fetch(store.New()))
	b.Release()
}

func TestStructWantsStructPointer(t *testing.T) {
	require.Panics(t, func() { Struct(42) })
	require.Panics(t, func() { Struct(nil) })
	var d *moveData
	require.Panics(t, func() { Struct(d) })
}
