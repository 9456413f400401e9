// Package kernels holds the odd-even transposition sort and order-check
// kernels, specialized for every Scalar type.
//
// Each kernel is written once as a generic host implementation and once as
// a WGSL template. cmd/kernelgen instantiates both per type and emits the
// entry point table (zz_kernels.go) and the shader source (sorting.wgsl);
// entry points are named "<op>_<type>", for example "sort_even_f32".
//
// The kernels take one task per adjacent pair:
//
//	sort_even_<t>(arr, ascending)             pair (2i, 2i+1)
//	sort_odd_<t>(arr, ascending)              pair (2i+1, 2i+2)
//	check_sorted_<t>(arr, flags, size, desc)  flags[i] = arr[i] <= arr[i+1]
//
// Launch them with block size 1 and grid N/2, (N-1)/2 and N-1 respectively.
package kernels
