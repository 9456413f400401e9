package gpu

import "sync"

// ThreadFunc is the body of a host kernel for one task.
type ThreadFunc func(t Thread)

// HostKernel binds launch arguments and returns the per-task body run by
// the host backend. Binding errors are returned from Launch.
type HostKernel func(args Args) (ThreadFunc, error)

// Image is a kernel binary: everything a backend needs to load a module.
// Images are immutable once built and shared by every context.
type Image struct {
	Name string

	// WGSL is the shader source for WebGPU and DeviceEntries the compute
	// entry points it defines.
	WGSL          []byte
	DeviceEntries []string

	// Host maps entry point names to host implementations.
	Host map[string]HostKernel
}

// Module is an image loaded on a context.
type Module struct {
	ctx *Context
	img *Image
	lm  loadedModule

	mu    sync.Mutex
	funcs map[string]*Function
}

// LoadModule loads img on the current context.
func LoadModule(img *Image) (*Module, error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	return c.LoadModule(img)
}

// LoadModule loads img, or returns the module already loaded from it.
func (c *Context) LoadModule(img *Image) (*Module, error) {
	if err := c.check("module_load"); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, newError(CodeInvalidValue, "module_load", "nil image")
	}

	c.modMu.Lock()
	defer c.modMu.Unlock()
	if m, ok := c.modules[img]; ok {
		return m, nil
	}
	lm, err := c.be.loadModule(img)
	if err != nil {
		return nil, err
	}
	m := &Module{ctx: c, img: img, lm: lm, funcs: make(map[string]*Function)}
	c.modules[img] = m
	Logger().Debug("module loaded", "image", img.Name, "backend", c.be.name())
	return m, nil
}

// Name is the image name.
func (m *Module) Name() string { return m.img.Name }

// GetFunction resolves an entry point. A name the image does not define
// fails with ErrNotFound.
func (m *Module) GetFunction(name string) (*Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.funcs[name]; ok {
		return f, nil
	}
	k, err := m.lm.kernel(name)
	if err != nil {
		return nil, err
	}
	f := &Function{mod: m, name: name, k: k}
	m.funcs[name] = f
	return f, nil
}

// Function is a resolved kernel entry point.
type Function struct {
	mod  *Module
	name string
	k    kernel
}

// Name is the entry point name.
func (f *Function) Name() string { return f.name }

// Launch enqueues the kernel over grid blocks of block threads on stream
// (nil means the default stream) and returns without waiting. Geometry and
// arguments are validated before anything is enqueued.
func (f *Function) Launch(grid, block Dim3, sharedMemBytes int, stream *Stream, args ...any) error {
	c := f.mod.ctx
	s, err := c.streamOrDefault("launch", stream)
	if err != nil {
		return err
	}
	if err := c.checkLaunch(grid, block, sharedMemBytes); err != nil {
		return err
	}
	for i, a := range args {
		p, ok := a.(devicePointer)
		if !ok {
			continue
		}
		_, owner, err := p.deviceAlloc("launch")
		if err != nil {
			return err
		}
		if owner != c {
			return newError(CodeInvalidHandle, "launch", "argument %d lives on another context", i)
		}
	}

	run, err := f.k.prepare(grid, block, sharedMemBytes, args)
	if err != nil {
		return err
	}
	return s.enqueue(func(prev error) error {
		if prev != nil {
			return nil
		}
		return run()
	})
}

func (c *Context) checkLaunch(grid, block Dim3, sharedMem int) error {
	l := c.limits
	if grid.Empty() {
		return newError(CodeInvalidValue, "launch", "empty grid %v", grid)
	}
	if block.Empty() {
		return newError(CodeInvalidValue, "launch", "empty block %v", block)
	}
	if grid.X > l.MaxGridDim || grid.Y > l.MaxGridDim || grid.Z > l.MaxGridDim {
		return newError(CodeInvalidValue, "launch", "grid %v exceeds %d per dimension", grid, l.MaxGridDim)
	}
	if block.X > l.MaxBlockDim.X || block.Y > l.MaxBlockDim.Y || block.Z > l.MaxBlockDim.Z {
		return newError(CodeInvalidValue, "launch", "block %v exceeds %v", block, l.MaxBlockDim)
	}
	if uint64(block.Size()) > uint64(l.MaxThreadsPerBlock) {
		return newError(CodeInvalidValue, "launch", "block %v has more than %d threads", block, l.MaxThreadsPerBlock)
	}
	if sharedMem < 0 || uint64(sharedMem) > uint64(l.MaxSharedMemory) {
		return newError(CodeInvalidValue, "launch", "shared memory %d out of range [0, %d]", sharedMem, l.MaxSharedMemory)
	}
	return nil
}
