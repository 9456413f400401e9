package kernels

import "github.com/openfluke/devsort/gpu"

// The compare-swap kernels run one task per adjacent pair, addressed by
// the block id. Within one launch the pairs are disjoint, so no two tasks
// touch the same element and no synchronization is needed; the stream
// orders successive launches.

// sortEven compares pair (2i, 2i+1). Args: (arr, ascending).
func sortEven[T Scalar](args gpu.Args) (gpu.ThreadFunc, error) {
	arr, ascending, err := sortArgs[T](args)
	if err != nil {
		return nil, err
	}
	return func(t gpu.Thread) {
		fst := t.Block() * 2
		compareSwap(arr, fst, fst+1, ascending)
	}, nil
}

// sortOdd compares pair (2i+1, 2i+2). Args: (arr, ascending).
func sortOdd[T Scalar](args gpu.Args) (gpu.ThreadFunc, error) {
	arr, ascending, err := sortArgs[T](args)
	if err != nil {
		return nil, err
	}
	return func(t gpu.Thread) {
		fst := t.Block()*2 + 1
		compareSwap(arr, fst, fst+1, ascending)
	}, nil
}

func sortArgs[T Scalar](args gpu.Args) ([]T, bool, error) {
	arr, err := gpu.ArgSlice[T](args, 0)
	if err != nil {
		return nil, false, err
	}
	ascending, err := args.Bool(1)
	if err != nil {
		return nil, false, err
	}
	return arr, ascending, nil
}

// compareSwap orders arr[i], arr[j]. Equal elements are left alone. Indexing
// is bounds checked: a grid larger than the array faults the launch.
func compareSwap[T Scalar](arr []T, i, j int, ascending bool) {
	a, b := arr[i], arr[j]
	if (ascending && a > b) || (!ascending && a < b) {
		arr[i], arr[j] = b, a
	}
}

// checkSorted writes flags[i] = 1 iff pair (i, i+1) is in order.
// Args: (arr, flags, size, descending). Tasks at or past size do nothing.
func checkSorted[T Scalar](args gpu.Args) (gpu.ThreadFunc, error) {
	arr, err := gpu.ArgSlice[T](args, 0)
	if err != nil {
		return nil, err
	}
	flags, err := gpu.ArgSlice[uint32](args, 1)
	if err != nil {
		return nil, err
	}
	size, err := args.Uint32(2)
	if err != nil {
		return nil, err
	}
	descending, err := args.Bool(3)
	if err != nil {
		return nil, err
	}
	return func(t gpu.Thread) {
		i := t.Block()
		if i >= int(size) {
			return
		}
		if inOrder(arr[i], arr[i+1], descending) {
			flags[i] = 1
		} else {
			flags[i] = 0
		}
	}, nil
}

// inOrder is a <= b (or a >= b when descending); NaN compares false either
// way, so a pair holding NaN is never in order.
func inOrder[T Scalar](a, b T, descending bool) bool {
	if descending {
		return a >= b
	}
	return a <= b
}
