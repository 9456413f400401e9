//go:build webgpu

package gpu

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/devsort/detector"
)

// webgpuBackend runs WGSL compute shaders on a WebGPU device. All device
// calls are serialized; the single queue keeps submissions in order.
type webgpuBackend struct {
	cfg Config
	rep *detector.Report

	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

func newWebGPUBackend(cfg Config) (backend, error) {
	log := Logger()
	b := &webgpuBackend{cfg: cfg}

	b.instance = wgpu.CreateInstance(nil)
	if b.instance == nil {
		return nil, newError(CodeNotInitialized, "init", "failed to create WebGPU instance")
	}

	// Prefer an NVIDIA adapter when one is enumerated.
	for _, a := range b.instance.EnumerateAdapters(nil) {
		info := a.GetInfo()
		log.Debug("adapter found", "name", info.Name, "vendor", info.VendorName, "device_id", info.DeviceId, "type", info.AdapterType.String())
		if strings.Contains(strings.ToLower(info.Name), "nvidia") ||
			strings.Contains(strings.ToLower(info.VendorName), "nvidia") {
			b.adapter = a
			break
		}
	}

	// Then high performance, low power, and finally the default.
	var err error
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		if b.adapter != nil {
			break
		}
		b.adapter, err = b.instance.RequestAdapter(opts)
		if err != nil {
			log.Debug("adapter request failed", "err", err)
		}
	}
	if b.adapter == nil {
		b.instance.Release()
		return nil, wrapError(CodeNotInitialized, "init", fmt.Errorf("all adapter attempts failed: %v", err))
	}

	b.device, err = b.adapter.RequestDevice(nil)
	if err != nil {
		b.adapter.Release()
		b.instance.Release()
		return nil, wrapError(CodeNotInitialized, "init", err)
	}
	b.queue = b.device.GetQueue()
	b.rep = detector.FromAdapter(b.adapter, uint64(cfg.MemoryBudget), EnvKeys)

	log.Info("using GPU adapter", "name", b.rep.Name, "backend", b.rep.Backend, "driver", b.rep.Driver)
	return b, nil
}

func (b *webgpuBackend) name() string             { return BackendWebGPU }
func (b *webgpuBackend) report() *detector.Report { return b.rep }

// padded rounds a byte size up to the 4-byte granularity WebGPU copies need.
func padded(size int) int {
	n := (size + 3) &^ 3
	if n == 0 {
		n = 4
	}
	return n
}

func (b *webgpuBackend) alloc(size int) (allocation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "devsort_buffer",
		Size:  uint64(padded(size)),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, wrapError(CodeOutOfMemory, "alloc", err)
	}
	return &webgpuAllocation{b: b, buf: buf, n: size}, nil
}

func (b *webgpuBackend) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Poll(true) blocks until all submitted work is done.
	b.device.Poll(true, nil)
	return nil
}

func (b *webgpuBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device.Poll(true, nil)
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
	return nil
}

type webgpuAllocation struct {
	b   *webgpuBackend
	buf *wgpu.Buffer
	n   int
}

func (a *webgpuAllocation) size() int { return a.n }

func (a *webgpuAllocation) write(src []byte) error {
	if len(src) != a.n {
		return newError(CodeInvalidValue, "copy", "%d bytes into a %d byte buffer", len(src), a.n)
	}
	if a.n == 0 {
		return nil
	}
	data := src
	if len(src)%4 != 0 {
		data = make([]byte, padded(len(src)))
		copy(data, src)
	}
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	a.b.queue.WriteBuffer(a.buf, 0, data)
	return nil
}

// read copies the buffer through a mappable staging buffer and waits for
// the map to complete.
func (a *webgpuAllocation) read(dst []byte) error {
	if len(dst) != a.n {
		return newError(CodeInvalidValue, "copy", "%d byte buffer into %d bytes", a.n, len(dst))
	}
	if a.n == 0 {
		return nil
	}
	b := a.b
	b.mu.Lock()
	defer b.mu.Unlock()

	sizeBytes := uint64(padded(a.n))
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "devsort_read_staging",
		Size:  sizeBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return wrapError(CodeOutOfMemory, "copy", fmt.Errorf("create staging buffer: %w", err))
	}
	defer staging.Destroy()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return wrapError(CodeLaunchFailure, "copy", fmt.Errorf("create command encoder: %w", err))
	}
	encoder.CopyBufferToBuffer(a.buf, 0, staging, 0, sizeBytes)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return wrapError(CodeLaunchFailure, "copy", fmt.Errorf("finish command: %w", err))
	}
	b.queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return wrapError(CodeLaunchFailure, "copy", fmt.Errorf("MapAsync failed: %w", err))
	}

	timeout := time.After(b.cfg.MapTimeout)
Loop:
	for {
		b.device.Poll(false, nil)
		select {
		case <-done:
			break Loop
		case <-timeout:
			return newError(CodeLaunchFailure, "copy", "readback timed out after %v", b.cfg.MapTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return wrapError(CodeLaunchFailure, "copy", mapErr)
	}

	data := staging.GetMappedRange(0, uint(sizeBytes))
	if data == nil {
		return newError(CodeLaunchFailure, "copy", "failed to get mapped range")
	}
	copy(dst, data[:a.n])
	staging.Unmap()
	return nil
}

func (a *webgpuAllocation) release() {
	a.b.mu.Lock()
	defer a.b.mu.Unlock()
	if a.buf != nil {
		a.buf.Destroy()
		a.buf = nil
	}
}

func (b *webgpuBackend) loadModule(img *Image) (loadedModule, error) {
	if len(img.WGSL) == 0 {
		return nil, newError(CodeNotSupported, "module_load", "image %q has no WGSL source", img.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	shader, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          img.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(img.WGSL)},
	})
	if err != nil {
		return nil, wrapError(CodeInvalidValue, "module_load", err)
	}
	entries := make(map[string]bool, len(img.DeviceEntries))
	for _, e := range img.DeviceEntries {
		entries[e] = true
	}
	return &webgpuModule{b: b, img: img, shader: shader, entries: entries}, nil
}

type webgpuModule struct {
	b         *webgpuBackend
	img       *Image
	shader    *wgpu.ShaderModule
	entries   map[string]bool
	pipelines []*wgpu.ComputePipeline
}

func (m *webgpuModule) kernel(name string) (kernel, error) {
	if !m.entries[name] {
		return nil, newError(CodeNotFound, "get_function", "%q is not in image %q", name, m.img.Name)
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	pipeline, err := m.b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   name,
		Compute: wgpu.ProgrammableStageDescriptor{Module: m.shader, EntryPoint: name},
	})
	if err != nil {
		return nil, wrapError(CodeInvalidValue, "get_function", err)
	}
	m.pipelines = append(m.pipelines, pipeline)
	return &webgpuKernel{b: m.b, name: name, pipeline: pipeline}, nil
}

func (m *webgpuModule) unload() {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	for _, p := range m.pipelines {
		p.Release()
	}
	m.shader.Release()
}

type webgpuKernel struct {
	b        *webgpuBackend
	name     string
	pipeline *wgpu.ComputePipeline
}

// prepare binds device buffers to bindings 0..k-1 in argument order and
// packs scalars, one u32 word each, into a uniform block at binding k.
func (k *webgpuKernel) prepare(grid, block Dim3, _ int, args []any) (func() error, error) {
	if block.Size() != 1 {
		return nil, newError(CodeInvalidValue, "launch", "%s is compiled with workgroup size 1, got block %v", k.name, block)
	}

	var entries []wgpu.BindGroupEntry
	var words []uint32
	for i, arg := range args {
		if p, ok := arg.(devicePointer); ok {
			alloc, _, err := p.deviceAlloc("launch")
			if err != nil {
				return nil, err
			}
			wa, ok := alloc.(*webgpuAllocation)
			if !ok {
				return nil, newError(CodeInvalidValue, "launch", "argument %d is not a WebGPU buffer", i)
			}
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: uint32(len(entries)),
				Buffer:  wa.buf,
				Size:    wa.buf.GetSize(),
			})
			continue
		}
		w, ok := scalarWord(arg)
		if !ok {
			return nil, wrongArg(i, "scalar", arg)
		}
		words = append(words, w)
	}

	k.b.mu.Lock()
	defer k.b.mu.Unlock()

	var uniform *wgpu.Buffer
	if len(words) > 0 {
		for len(words)%4 != 0 {
			words = append(words, 0)
		}
		var err error
		uniform, err = k.b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    k.name + "_params",
			Contents: wgpu.ToBytes(words),
			Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, wrapError(CodeOutOfMemory, "launch", err)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(len(entries)),
			Buffer:  uniform,
			Size:    uniform.GetSize(),
		})
	}

	bindGroup, err := k.b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.name + "_bind",
		Layout:  k.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		if uniform != nil {
			uniform.Release()
		}
		return nil, wrapError(CodeInvalidValue, "launch", err)
	}

	return func() error {
		k.b.mu.Lock()
		defer k.b.mu.Unlock()
		defer func() {
			bindGroup.Release()
			if uniform != nil {
				uniform.Release()
			}
		}()

		encoder, err := k.b.device.CreateCommandEncoder(nil)
		if err != nil {
			return wrapError(CodeLaunchFailure, "launch", err)
		}
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(k.pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.DispatchWorkgroups(grid.X, grid.Y, grid.Z)
		pass.End()
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return wrapError(CodeLaunchFailure, "launch", err)
		}
		k.b.queue.Submit(cmd)
		return nil
	}, nil
}
