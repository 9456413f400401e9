package gpu

import (
	"sync/atomic"

	"github.com/openfluke/devsort/detector"
)

// backend is one device implementation. Every method except prepare'd ops
// may be called from any goroutine; ops returned by prepare run on a stream
// worker in enqueue order.
type backend interface {
	name() string
	report() *detector.Report
	alloc(bytes int) (allocation, error)
	loadModule(img *Image) (loadedModule, error)
	// flush blocks until all work submitted to the device has completed.
	flush() error
	close() error
}

// allocation is a contiguous device buffer.
type allocation interface {
	size() int
	write(src []byte) error
	read(dst []byte) error
	release()
}

// hostAccessible is implemented by allocations the host backend's kernels
// can address directly.
type hostAccessible interface {
	bytes() []byte
}

type loadedModule interface {
	kernel(name string) (kernel, error)
	unload()
}

type kernel interface {
	// prepare validates and binds args and returns the op that performs
	// the launch when the stream reaches it.
	prepare(grid, block Dim3, sharedMem int, args []any) (func() error, error)
}

// Limits bounds launch geometry on the current device.
type Limits struct {
	MaxGridDim         uint32
	MaxBlockDim        Dim3
	MaxThreadsPerBlock uint32
	MaxSharedMemory    uint32
	MaxBufferSize      uint64
}

func limitsFrom(rep *detector.Report) Limits {
	l := rep.Limits
	return Limits{
		MaxGridDim: l.MaxComputeWorkgroupsPerDimension,
		MaxBlockDim: Dim3{
			X: l.MaxComputeWorkgroupSizeX,
			Y: l.MaxComputeWorkgroupSizeY,
			Z: l.MaxComputeWorkgroupSizeZ,
		},
		MaxThreadsPerBlock: l.MaxComputeInvocationsPerWorkgroup,
		MaxSharedMemory:    l.MaxComputeWorkgroupStorageSize,
		MaxBufferSize:      l.MaxBufferSize,
	}
}

// Device addresses are opaque handles: distinct per allocation and aligned
// like real device pointers, but never dereferenced.
var nextAddr atomic.Uintptr

func newAddr(size int) uintptr {
	const align = 256
	span := (uintptr(size) + align - 1) &^ (align - 1)
	if span == 0 {
		span = align
	}
	return nextAddr.Add(span) - span + align
}
