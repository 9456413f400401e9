// Package memext extends device arrays with in-place sorting and an
// is-sorted check.
//
//	mem, _ := gpu.New[float32](n)
//	_ = mem.CopyFromHost(values)
//	if err := memext.Ext(mem).Sort(); err != nil { ... }
//	ok, err := memext.Ext(mem).CheckSorted()
//
// Sorting is odd-even transposition sort: N/2 rounds of an even and an odd
// compare-swap phase, every phase one parallel launch on a stream. It is
// O(N) launches and suited to small and medium arrays that already live on
// the device.
package memext

import (
	"errors"

	"github.com/openfluke/devsort/gpu"
	"github.com/openfluke/devsort/kernels"
)

var (
	// ErrNoAdjacentPair is returned by the order checks for arrays with
	// fewer than two elements.
	ErrNoAdjacentPair = errors.New("memext: array has no adjacent pair to check")

	// ErrUnsupportedBuild is returned by every operation in binaries built
	// with the nokernels tag.
	ErrUnsupportedBuild = errors.New("memext: built without sorting kernels (nokernels)")
)

// MemoryExt is the sorting capability of a device array.
//
// The Async variants enqueue on s and return without waiting; s is owned
// by the caller and must belong to the array's context. A nil stream means
// the context's default stream. The check variants always wait for their
// own result.
type MemoryExt[T kernels.Scalar] interface {
	// Sort sorts ascending and blocks until done.
	Sort() error
	// SortDesc sorts descending and blocks until done.
	SortDesc() error
	SortAsync(s *gpu.Stream) error
	SortDescAsync(s *gpu.Stream) error

	// CheckSorted reports whether every adjacent pair is non-decreasing.
	// A descending array is not sorted in this sense.
	CheckSorted() (bool, error)
	// CheckSortedAsync runs the check on s and waits only for its own
	// flag transfer, so it observes everything enqueued on s before it.
	CheckSortedAsync(s *gpu.Stream) (bool, error)

	// CheckSortedDesc reports whether every adjacent pair is
	// non-increasing.
	CheckSortedDesc() (bool, error)
	CheckSortedDescAsync(s *gpu.Stream) (bool, error)
}

// Ext returns the sorting capability of m.
func Ext[T kernels.Scalar](m *gpu.DeviceMemory[T]) MemoryExt[T] {
	return ext[T]{mem: m}
}

type ext[T kernels.Scalar] struct {
	mem *gpu.DeviceMemory[T]
}

func (e ext[T]) Sort() error                       { return sortBlocking(e.mem, true) }
func (e ext[T]) SortDesc() error                   { return sortBlocking(e.mem, false) }
func (e ext[T]) SortAsync(s *gpu.Stream) error     { return sortOn(e.mem, s, true) }
func (e ext[T]) SortDescAsync(s *gpu.Stream) error { return sortOn(e.mem, s, false) }

func (e ext[T]) CheckSorted() (bool, error) { return checkSorted(e.mem, nil, false) }
func (e ext[T]) CheckSortedAsync(s *gpu.Stream) (bool, error) {
	return checkSorted(e.mem, s, false)
}

func (e ext[T]) CheckSortedDesc() (bool, error) { return checkSorted(e.mem, nil, true) }
func (e ext[T]) CheckSortedDescAsync(s *gpu.Stream) (bool, error) {
	return checkSorted(e.mem, s, true)
}

// sortBlocking sorts on a private stream and waits for it.
func sortBlocking[T kernels.Scalar](mem *gpu.DeviceMemory[T], ascending bool) error {
	if !kernelsEnabled {
		return ErrUnsupportedBuild
	}
	if err := checkMem(mem, "sort"); err != nil {
		return err
	}
	if mem.Count() < 2 {
		return nil
	}
	s, err := mem.Context().NewStream()
	if err != nil {
		return err
	}
	err = sortOn(mem, s, ascending)
	if err == nil {
		err = s.Synchronize()
	}
	return errors.Join(err, s.Destroy())
}

func checkMem[T kernels.Scalar](mem *gpu.DeviceMemory[T], op string) error {
	if mem == nil {
		return &gpu.Error{Code: gpu.CodeInvalidValue, Op: op, Msg: "nil device memory"}
	}
	return nil
}
