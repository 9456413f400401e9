package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testImage is a small kernel image for exercising the runtime.
var testImage = &Image{
	Name: "test",
	Host: map[string]HostKernel{
		// fill(buf []uint32, v uint32): buf[i] = v
		"fill": func(args Args) (ThreadFunc, error) {
			buf, err := ArgSlice[uint32](args, 0)
			if err != nil {
				return nil, err
			}
			v, err := args.Uint32(1)
			if err != nil {
				return nil, err
			}
			return func(t Thread) { buf[t.Global()] = v }, nil
		},
		// step(buf []uint32, v uint32): buf[i] = buf[i]*2 + v
		"step": func(args Args) (ThreadFunc, error) {
			buf, err := ArgSlice[uint32](args, 0)
			if err != nil {
				return nil, err
			}
			v, err := args.Uint32(1)
			if err != nil {
				return nil, err
			}
			return func(t Thread) {
				i := t.Global()
				buf[i] = buf[i]*2 + v
			}, nil
		},
		// ids(buf []uint32): every task writes its linear id at that id.
		"ids": func(args Args) (ThreadFunc, error) {
			buf, err := ArgSlice[uint32](args, 0)
			if err != nil {
				return nil, err
			}
			return func(t Thread) {
				block := int(t.BlockIdx.X) + int(t.BlockIdx.Y)*int(t.GridDim.X) +
					int(t.BlockIdx.Z)*int(t.GridDim.X)*int(t.GridDim.Y)
				id := block*t.BlockDim.Size() + int(t.ThreadIdx.X)
				buf[id] = uint32(id)
			}, nil
		},
		// overrun(buf []uint32) indexes past the end of buf.
		"overrun": func(args Args) (ThreadFunc, error) {
			buf, err := ArgSlice[uint32](args, 0)
			if err != nil {
				return nil, err
			}
			return func(t Thread) { buf[len(buf)+t.Global()] = 1 }, nil
		},
	},
}

func newHostContext(t *testing.T, mutate ...func(*Config)) *Context {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backend = BackendHost
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewContext(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func function(t *testing.T, c *Context, name string) *Function {
	t.Helper()
	mod, err := c.LoadModule(testImage)
	require.NoError(t, err)
	f, err := mod.GetFunction(name)
	require.NoError(t, err)
	return f
}

func TestCopyRoundTrip(t *testing.T) {
	c := newHostContext(t)

	mem, err := NewIn[float64](c, 4)
	require.NoError(t, err)
	defer mem.Free()
	assert.Equal(t, 4, mem.Count())
	assert.Equal(t, 32, mem.SizeBytes())
	assert.NotZero(t, mem.Addr())
	assert.Same(t, c, mem.Context())

	require.NoError(t, mem.CopyFromHost([]float64{1.5, -2, 3, 0}))
	out := make([]float64, 4)
	require.NoError(t, mem.CopyToHost(out))
	assert.Equal(t, []float64{1.5, -2, 3, 0}, out)

	s, err := c.NewStream()
	require.NoError(t, err)
	defer s.Destroy()

	src := []float64{9, 8, 7, 6}
	require.NoError(t, mem.CopyFromHostAsync(src, s))
	src[0] = 100 // captured at enqueue

	pending, err := mem.CopyToHostAsync(make([]float64, 4), s)
	require.NoError(t, err)
	got, err := SynchronizeMemory(s, pending)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 8, 7, 6}, got)
}

func TestCopyLengthMismatch(t *testing.T) {
	c := newHostContext(t)
	mem, err := NewIn[int16](c, 3)
	require.NoError(t, err)
	defer mem.Free()

	assert.ErrorIs(t, mem.CopyFromHost([]int16{1, 2}), ErrInvalidValue)
	assert.ErrorIs(t, mem.CopyToHost(make([]int16, 4)), ErrInvalidValue)
	assert.ErrorIs(t, mem.CopyFromHostAsync(nil, nil), ErrInvalidValue)
	_, err = mem.CopyToHostAsync(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestZeroLengthMemory(t *testing.T) {
	c := newHostContext(t)
	mem, err := NewIn[uint8](c, 0)
	require.NoError(t, err)
	defer mem.Free()
	require.NoError(t, mem.CopyFromHost([]uint8{}))
	require.NoError(t, mem.CopyToHost([]uint8{}))

	_, err = NewIn[uint8](c, -1)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestStreamRunsInOrder(t *testing.T) {
	c := newHostContext(t)
	fill := function(t, c, "fill")
	step := function(t, c, "step")

	mem, err := NewIn[uint32](c, 16)
	require.NoError(t, err)
	defer mem.Free()

	s, err := c.NewStream()
	require.NoError(t, err)
	defer s.Destroy()

	// 0 -> 1 -> 3 -> 6 only in enqueue order.
	require.NoError(t, fill.Launch(Dim1(16), Dim1(1), 0, s, mem, uint32(0)))
	for _, v := range []uint32{1, 1, 0} {
		require.NoError(t, step.Launch(Dim1(4), Dim1(4), 0, s, mem, v))
	}
	pending, err := mem.CopyToHostAsync(make([]uint32, 16), s)
	require.NoError(t, err)
	got, err := pending.Wait()
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, uint32(6), v, "element %d", i)
	}
}

func TestLaunchCoversGrid(t *testing.T) {
	for _, workers := range []int{0, 1, 3} {
		c := newHostContext(t, func(cfg *Config) { cfg.Workers = workers })
		ids := function(t, c, "ids")

		for _, geom := range []struct{ grid, block Dim3 }{
			{Dim1(7), Dim1(1)},
			{NewDim3(2, 3, 2), Dim1(4)},
			{Dim1(5000), Dim1(1)}, // above the host grain
		} {
			n := geom.grid.Size() * geom.block.Size()
			mem, err := NewIn[uint32](c, n)
			require.NoError(t, err)

			require.NoError(t, ids.Launch(geom.grid, geom.block, 0, nil, mem))
			out := make([]uint32, n)
			require.NoError(t, mem.CopyToHost(out))
			for i, v := range out {
				require.Equal(t, uint32(i), v, "workers=%d grid=%v block=%v", workers, geom.grid, geom.block)
			}
			mem.Free()
		}
	}
}

func TestLaunchValidation(t *testing.T) {
	c := newHostContext(t)
	fill := function(t, c, "fill")
	mem, err := NewIn[uint32](c, 4)
	require.NoError(t, err)
	defer mem.Free()
	other, err := NewIn[int32](c, 4)
	require.NoError(t, err)
	defer other.Free()

	tests := []struct {
		name  string
		grid  Dim3
		block Dim3
		smem  int
		args  []any
	}{
		{"empty grid", Dim1(0), Dim1(1), 0, []any{mem, uint32(1)}},
		{"empty block", Dim1(1), NewDim3(1, 0, 1), 0, []any{mem, uint32(1)}},
		{"block too wide", Dim1(1), Dim1(c.Limits().MaxBlockDim.X + 1), 0, []any{mem, uint32(1)}},
		{"negative shared memory", Dim1(1), Dim1(1), -1, []any{mem, uint32(1)}},
		{"shared memory too large", Dim1(1), Dim1(1), int(c.Limits().MaxSharedMemory) + 1, []any{mem, uint32(1)}},
		{"missing argument", Dim1(1), Dim1(1), 0, []any{mem}},
		{"wrong buffer type", Dim1(1), Dim1(1), 0, []any{other, uint32(1)}},
		{"wrong scalar type", Dim1(1), Dim1(1), 0, []any{mem, "one"}},
		{"negative scalar", Dim1(1), Dim1(1), 0, []any{mem, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fill.Launch(tt.grid, tt.block, tt.smem, nil, tt.args...)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
	require.NoError(t, c.Synchronize())
}

func TestKernelFaultIsLaunchFailure(t *testing.T) {
	c := newHostContext(t)
	overrun := function(t, c, "overrun")
	fill := function(t, c, "fill")

	mem, err := NewIn[uint32](c, 4)
	require.NoError(t, err)
	defer mem.Free()

	s, err := c.NewStream()
	require.NoError(t, err)
	defer s.Destroy()

	require.NoError(t, overrun.Launch(Dim1(1), Dim1(1), 0, s, mem))
	// Queued behind the fault: skipped, and the transfer reports it.
	require.NoError(t, fill.Launch(Dim1(4), Dim1(1), 0, s, mem, uint32(7)))
	pending, err := mem.CopyToHostAsync(make([]uint32, 4), s)
	require.NoError(t, err)
	_, err = pending.Wait()
	assert.ErrorIs(t, err, ErrLaunchFailure)

	// The transfer already reported the fault.
	require.NoError(t, s.Synchronize())
	require.NoError(t, s.Synchronize())

	// The stream is usable again.
	require.NoError(t, fill.Launch(Dim1(4), Dim1(1), 0, s, mem, uint32(7)))
	require.NoError(t, s.Synchronize())
	out := make([]uint32, 4)
	require.NoError(t, mem.CopyToHost(out))
	assert.Equal(t, []uint32{7, 7, 7, 7}, out)
}

func TestSynchronizeMemoryForeignStream(t *testing.T) {
	c := newHostContext(t)
	mem, err := NewIn[int32](c, 2)
	require.NoError(t, err)
	defer mem.Free()

	s1, err := c.NewStream()
	require.NoError(t, err)
	defer s1.Destroy()
	s2, err := c.NewStream()
	require.NoError(t, err)
	defer s2.Destroy()

	pending, err := mem.CopyToHostAsync(make([]int32, 2), s1)
	require.NoError(t, err)
	_, err = SynchronizeMemory(s2, pending)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = SynchronizeMemory(s1, pending)
	assert.NoError(t, err)
}

func TestMemoryBudget(t *testing.T) {
	c := newHostContext(t, func(cfg *Config) { cfg.MemoryBudget = 1024 })

	a, err := NewIn[uint64](c, 100) // 800 bytes
	require.NoError(t, err)
	_, err = NewIn[uint64](c, 100)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	a.Free()
	a.Free() // no-op
	b, err := NewIn[uint64](c, 100)
	require.NoError(t, err)
	b.Free()

	_, err = NewIn[uint8](c, 2048)
	assert.ErrorIs(t, err, ErrOutOfMemory, "larger than the whole budget")
}

func TestFreedMemory(t *testing.T) {
	c := newHostContext(t)
	fill := function(t, c, "fill")
	mem, err := NewIn[uint32](c, 2)
	require.NoError(t, err)
	mem.Free()

	assert.ErrorIs(t, mem.CopyFromHost([]uint32{1, 2}), ErrInvalidHandle)
	assert.ErrorIs(t, mem.CopyToHost(make([]uint32, 2)), ErrInvalidHandle)
	assert.ErrorIs(t, fill.Launch(Dim1(2), Dim1(1), 0, nil, mem, uint32(1)), ErrInvalidHandle)
}

func TestDestroyedStream(t *testing.T) {
	c := newHostContext(t)
	fill := function(t, c, "fill")
	mem, err := NewIn[uint32](c, 2)
	require.NoError(t, err)
	defer mem.Free()

	s, err := c.NewStream()
	require.NoError(t, err)
	require.NoError(t, s.Destroy())
	assert.ErrorIs(t, s.Destroy(), ErrInvalidHandle)

	assert.ErrorIs(t, fill.Launch(Dim1(2), Dim1(1), 0, s, mem, uint32(1)), ErrInvalidHandle)
	assert.ErrorIs(t, mem.CopyFromHostAsync([]uint32{1, 2}, s), ErrInvalidHandle)
	assert.ErrorIs(t, s.Synchronize(), ErrInvalidHandle)

	assert.ErrorIs(t, c.DefaultStream().Destroy(), ErrInvalidHandle)
}

func TestForeignContext(t *testing.T) {
	c1 := newHostContext(t)
	c2 := newHostContext(t)
	fill := function(t, c1, "fill")

	mem, err := NewIn[uint32](c2, 2)
	require.NoError(t, err)
	defer mem.Free()
	assert.ErrorIs(t, fill.Launch(Dim1(2), Dim1(1), 0, nil, mem, uint32(1)), ErrInvalidHandle)

	s2, err := c2.NewStream()
	require.NoError(t, err)
	defer s2.Destroy()
	own, err := NewIn[uint32](c1, 2)
	require.NoError(t, err)
	defer own.Free()
	assert.ErrorIs(t, fill.Launch(Dim1(2), Dim1(1), 0, s2, own, uint32(1)), ErrInvalidHandle)
}

func TestModules(t *testing.T) {
	c := newHostContext(t)

	m1, err := c.LoadModule(testImage)
	require.NoError(t, err)
	m2, err := c.LoadModule(testImage)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, "test", m1.Name())

	f1, err := m1.GetFunction("fill")
	require.NoError(t, err)
	f2, err := m1.GetFunction("fill")
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.Equal(t, "fill", f1.Name())

	_, err = m1.GetFunction("sort_even_c128")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.LoadModule(nil)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = c.LoadModule(&Image{Name: "device-only", DeviceEntries: []string{"main"}})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestClosedContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendHost
	c, err := NewContext(cfg)
	require.NoError(t, err)
	mem, err := NewIn[uint32](c, 1)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = NewIn[uint32](c, 1)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = c.NewStream()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = c.LoadModule(testImage)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, mem.CopyFromHostAsync([]uint32{1}, nil), ErrInvalidHandle)
}

func TestHostBackendReport(t *testing.T) {
	c := newHostContext(t, func(cfg *Config) { cfg.MemoryBudget = 1 << 20 })
	assert.Equal(t, BackendHost, c.Backend())
	rep := c.Report()
	require.NotNil(t, rep)
	assert.Equal(t, uint64(1<<20), rep.Limits.MaxBufferSize)
	assert.Equal(t, uint64(1<<20), c.Limits().MaxBufferSize)
	assert.Positive(t, c.Limits().MaxGridDim)
}

func TestProcessContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendHost
	if err := Init(cfg); err != nil {
		// Already configured by an earlier run in this process.
		require.ErrorIs(t, err, ErrInvalidValue)
	}
	assert.ErrorIs(t, Init(cfg), ErrInvalidValue)

	c, err := GetContext()
	require.NoError(t, err)
	again, err := GetContext()
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.Equal(t, BackendHost, c.Backend())

	mem, err := New[uint32](3)
	require.NoError(t, err)
	defer mem.Free()
	assert.Same(t, c, mem.Context())

	s, err := NewStream()
	require.NoError(t, err)
	defer s.Destroy()
	assert.NotZero(t, s.ID())
	assert.Zero(t, c.DefaultStream().ID())

	mod, err := LoadModule(testImage)
	require.NoError(t, err)
	fill, err := mod.GetFunction("fill")
	require.NoError(t, err)
	require.NoError(t, fill.Launch(Dim1(3), Dim1(1), 0, s, mem, 5))
	require.NoError(t, s.Synchronize())
	out := make([]uint32, 3)
	require.NoError(t, mem.CopyToHost(out))
	assert.Equal(t, []uint32{5, 5, 5}, out)
}
