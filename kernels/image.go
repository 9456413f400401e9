package kernels

import (
	_ "embed"
	"sync"

	"github.com/openfluke/devsort/gpu"
)

//go:generate go run ../cmd/kernelgen -out .

//go:embed sorting.wgsl
var sortingWGSL []byte

// ImageName is the name of the sorting kernel image.
const ImageName = "devsort_sorting"

var (
	imageOnce sync.Once
	image     *gpu.Image
)

// Image returns the sorting kernel image: WGSL entry points for the device
// types and host kernels for every Scalar type. It is built on first use
// and shared; a binary that never calls Image does not link the tables.
func Image() *gpu.Image {
	imageOnce.Do(func() {
		host := make(map[string]gpu.HostKernel, int(numOps)*int(numTypes))
		for op := Op(0); op < numOps; op++ {
			for tag := TypeTag(0); tag < numTypes; tag++ {
				host[symbolNames[op][tag]] = hostKernels[op][tag]
			}
		}
		image = &gpu.Image{
			Name:          ImageName,
			WGSL:          sortingWGSL,
			DeviceEntries: deviceEntries,
			Host:          host,
		}
	})
	return image
}
