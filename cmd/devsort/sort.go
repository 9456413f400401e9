package main

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openfluke/devsort/gpu"
	"github.com/openfluke/devsort/kernels"
	"github.com/openfluke/devsort/memext"
)

type job struct {
	n          int
	arrays     int
	descending bool
	seed       uint64
}

type result struct {
	index        int
	deviceSorted bool
	hostSorted   bool
	elapsed      time.Duration
}

func (r result) ok() bool { return r.deviceSorted && r.hostSorted }

// sortRandom sorts j.arrays random arrays of T, each on its own stream.
func sortRandom[T kernels.Scalar](ctx *gpu.Context, j job) ([]result, error) {
	results := make([]result, j.arrays)
	var g errgroup.Group
	for i := range j.arrays {
		g.Go(func() error {
			res, err := sortOne[T](ctx, j, i)
			if err != nil {
				return fmt.Errorf("array %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func sortOne[T kernels.Scalar](ctx *gpu.Context, j job, index int) (result, error) {
	r := rand.New(rand.NewPCG(j.seed, uint64(index)))
	values := randomValues[T](r, j.n)

	mem, err := gpu.NewIn[T](ctx, j.n)
	if err != nil {
		return result{}, err
	}
	defer mem.Free()

	s, err := ctx.NewStream()
	if err != nil {
		return result{}, err
	}

	res, err := sortOnStream(mem, s, values, j.descending)
	res.index = index
	return res, errors.Join(err, s.Destroy())
}

// sortOnStream uploads, sorts, checks and downloads, all queued on s.
func sortOnStream[T kernels.Scalar](mem *gpu.DeviceMemory[T], s *gpu.Stream, values []T, descending bool) (result, error) {
	ext := memext.Ext(mem)
	sortAsync, checkAsync := ext.SortAsync, ext.CheckSortedAsync
	if descending {
		sortAsync, checkAsync = ext.SortDescAsync, ext.CheckSortedDescAsync
	}

	start := time.Now()
	if err := mem.CopyFromHostAsync(values, s); err != nil {
		return result{}, err
	}
	if err := sortAsync(s); err != nil {
		return result{}, err
	}
	deviceSorted, err := checkAsync(s)
	if errors.Is(err, memext.ErrNoAdjacentPair) {
		deviceSorted, err = true, nil
	}
	if err != nil {
		return result{}, err
	}
	pending, err := mem.CopyToHostAsync(make([]T, len(values)), s)
	if err != nil {
		return result{}, err
	}
	out, err := gpu.SynchronizeMemory(s, pending)
	if err != nil {
		return result{}, err
	}

	return result{
		deviceSorted: deviceSorted,
		hostSorted:   ordered(out, descending),
		elapsed:      time.Since(start),
	}, nil
}

func randomValues[T kernels.Scalar](r *rand.Rand, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(r.Float64() * 100)
	}
	return out
}

func ordered[T kernels.Scalar](s []T, descending bool) bool {
	if descending {
		return slices.IsSortedFunc(s, func(a, b T) int { return cmp.Compare(b, a) })
	}
	return slices.IsSorted(s)
}
