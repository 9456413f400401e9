//go:build nokernels

package memext

import (
	"github.com/openfluke/devsort/gpu"
	"github.com/openfluke/devsort/kernels"
)

const kernelsEnabled = false

func sortOn[T kernels.Scalar](*gpu.DeviceMemory[T], *gpu.Stream, bool) error {
	return ErrUnsupportedBuild
}

func checkSorted[T kernels.Scalar](*gpu.DeviceMemory[T], *gpu.Stream, bool) (bool, error) {
	return false, ErrUnsupportedBuild
}
