//go:build !nokernels

package memext

import (
	"errors"
	"math"

	"github.com/exascience/pargo/parallel"

	"github.com/openfluke/devsort/gpu"
	"github.com/openfluke/devsort/kernels"
)

const kernelsEnabled = true

// reduceGrain is the smallest flag count reduced in parallel.
const reduceGrain = 1 << 14

// function loads (or reuses) the sorting module on mem's context and
// resolves the entry point of op for T. Failures are returned unwrapped: a
// missing entry point is a build or backend mismatch, not a transient error.
func function[T kernels.Scalar](mem *gpu.DeviceMemory[T], op kernels.Op) (*gpu.Function, error) {
	mod, err := mem.Context().LoadModule(kernels.Image())
	if err != nil {
		return nil, err
	}
	return mod.GetFunction(kernels.SymbolFor[T](op).Name)
}

func checkCount(n int, op string) error {
	if uint64(n) > math.MaxUint32 {
		return &gpu.Error{Code: gpu.CodeInvalidValue, Op: op, Msg: "array too large for a 32-bit grid"}
	}
	return nil
}

// sortOn enqueues the full odd-even transposition sort of mem on s and
// returns without waiting. On error the phases enqueued so far stay
// enqueued and the array is left partially ordered.
func sortOn[T kernels.Scalar](mem *gpu.DeviceMemory[T], s *gpu.Stream, ascending bool) error {
	if err := checkMem(mem, "sort"); err != nil {
		return err
	}
	n := mem.Count()
	if n < 2 {
		return nil
	}
	if err := checkCount(n, "sort"); err != nil {
		return err
	}

	even, err := function(mem, kernels.OpSortEven)
	if err != nil {
		return err
	}
	odd, err := function(mem, kernels.OpSortOdd)
	if err != nil {
		return err
	}

	// Odd-even transposition sort needs N phases. ceil(N/2) rounds of two
	// give N or N+1; for N=2 the odd phase is empty and one even phase is
	// enough.
	rounds := (n + 1) / 2
	evenGrid := gpu.Dim1(uint32(n / 2))
	oddGrid := gpu.Dim1(uint32((n - 1) / 2))
	block := gpu.Dim1(1)

	gpu.Logger().Debug("sort enqueue",
		"type", kernels.TypeTagOf[T](), "count", n, "rounds", rounds, "ascending", ascending)

	for r := 0; r < rounds; r++ {
		if err := even.Launch(evenGrid, block, 0, s, mem, ascending); err != nil {
			return err
		}
		if oddGrid.Empty() {
			continue
		}
		if err := odd.Launch(oddGrid, block, 0, s, mem, ascending); err != nil {
			return err
		}
	}
	return nil
}

// checkSorted launches the order check over every adjacent pair of mem and
// reduces the per-pair flags to one answer. With a nil stream it runs on
// the default stream and copies the flags back synchronously; otherwise it
// waits only for the flag transfer on s.
func checkSorted[T kernels.Scalar](mem *gpu.DeviceMemory[T], s *gpu.Stream, descending bool) (bool, error) {
	if err := checkMem(mem, "check_sorted"); err != nil {
		return false, err
	}
	n := mem.Count()
	if n < 2 {
		return false, ErrNoAdjacentPair
	}
	if err := checkCount(n, "check_sorted"); err != nil {
		return false, err
	}

	check, err := function(mem, kernels.OpCheckSorted)
	if err != nil {
		return false, err
	}

	pairs := n - 1
	flags, err := gpu.NewIn[uint32](mem.Context(), pairs)
	if err != nil {
		return false, err
	}
	defer flags.Free()

	if err := check.Launch(gpu.Dim1(uint32(pairs)), gpu.Dim1(1), 0, s, mem, flags, uint32(pairs), descending); err != nil {
		return false, err
	}

	host := make([]uint32, pairs)
	if s == nil {
		if err := flags.CopyToHost(host); err != nil {
			return false, err
		}
	} else {
		pending, err := flags.CopyToHostAsync(host, s)
		if err != nil {
			// The launch is already queued and still references flags.
			return false, errors.Join(err, s.Synchronize())
		}
		if host, err = gpu.SynchronizeMemory(s, pending); err != nil {
			return false, err
		}
	}
	return allSet(host), nil
}

// allSet reports whether every flag is 1.
func allSet(flags []uint32) bool {
	batches := 1
	if len(flags) >= reduceGrain {
		batches = 0
	}
	return parallel.RangeAnd(0, len(flags), batches, func(low, high int) bool {
		for _, f := range flags[low:high] {
			if f != 1 {
				return false
			}
		}
		return true
	})
}
