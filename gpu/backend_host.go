package gpu

import (
	"sync"

	"github.com/exascience/pargo/parallel"
	"golang.org/x/sync/semaphore"

	"github.com/openfluke/devsort/detector"
)

// hostGrain is the smallest launch that is split across goroutines;
// smaller grids run inline on the stream worker.
const hostGrain = 2048

// hostBackend is a software device. Buffers live in host memory and every
// launch runs its tasks on goroutines, batched with pargo.
type hostBackend struct {
	cfg    Config
	rep    *detector.Report
	budget *semaphore.Weighted // nil when unlimited
}

func newHostBackend(cfg Config) *hostBackend {
	b := &hostBackend{
		cfg: cfg,
		rep: detector.DetectHost(uint64(cfg.MemoryBudget), EnvKeys),
	}
	if cfg.MemoryBudget > 0 {
		b.budget = semaphore.NewWeighted(cfg.MemoryBudget)
	}
	return b
}

func (b *hostBackend) name() string             { return BackendHost }
func (b *hostBackend) report() *detector.Report { return b.rep }
func (b *hostBackend) flush() error             { return nil }
func (b *hostBackend) close() error             { return nil }

func (b *hostBackend) alloc(size int) (allocation, error) {
	if b.budget != nil && !b.budget.TryAcquire(int64(size)) {
		return nil, newError(CodeOutOfMemory, "alloc", "%d bytes exceeds the remaining host device budget of %d", size, b.cfg.MemoryBudget)
	}
	// Backed by words so every element type is naturally aligned.
	words := make([]uint64, (size+7)/8)
	return &hostAllocation{b: b, buf: bytesOf(words)[:size]}, nil
}

func (b *hostBackend) loadModule(img *Image) (loadedModule, error) {
	if len(img.Host) == 0 {
		return nil, newError(CodeNotSupported, "module_load", "image %q has no host kernels", img.Name)
	}
	return &hostModule{b: b, img: img}, nil
}

// run executes body once per task of the launch.
func (b *hostBackend) run(grid, block Dim3, body ThreadFunc) {
	threads := block.Size()
	total := grid.Size() * threads
	exec := func(low, high int) {
		for i := low; i < high; i++ {
			body(Thread{
				BlockIdx:  grid.index(i / threads),
				ThreadIdx: block.index(i % threads),
				BlockDim:  block,
				GridDim:   grid,
			})
		}
	}
	if total < hostGrain || b.cfg.Workers == 1 {
		exec(0, total)
		return
	}
	parallel.Range(0, total, b.cfg.Workers, exec)
}

type hostAllocation struct {
	b    *hostBackend
	buf  []byte
	once sync.Once
}

func (a *hostAllocation) size() int     { return len(a.buf) }
func (a *hostAllocation) bytes() []byte { return a.buf }

func (a *hostAllocation) write(src []byte) error {
	if len(src) != len(a.buf) {
		return newError(CodeInvalidValue, "copy", "%d bytes into a %d byte buffer", len(src), len(a.buf))
	}
	copy(a.buf, src)
	return nil
}

func (a *hostAllocation) read(dst []byte) error {
	if len(dst) != len(a.buf) {
		return newError(CodeInvalidValue, "copy", "%d byte buffer into %d bytes", len(a.buf), len(dst))
	}
	copy(dst, a.buf)
	return nil
}

func (a *hostAllocation) release() {
	a.once.Do(func() {
		if a.b.budget != nil {
			a.b.budget.Release(int64(len(a.buf)))
		}
		a.buf = nil
	})
}

type hostModule struct {
	b   *hostBackend
	img *Image
}

func (m *hostModule) kernel(name string) (kernel, error) {
	fn, ok := m.img.Host[name]
	if !ok {
		return nil, newError(CodeNotFound, "get_function", "%q is not in image %q", name, m.img.Name)
	}
	return &hostKernel{b: m.b, fn: fn}, nil
}

func (m *hostModule) unload() {}

type hostKernel struct {
	b  *hostBackend
	fn HostKernel
}

func (k *hostKernel) prepare(grid, block Dim3, _ int, args []any) (func() error, error) {
	body, err := k.fn(Args(args))
	if err != nil {
		return nil, err
	}
	return func() error {
		k.b.run(grid, block, body)
		return nil
	}, nil
}
