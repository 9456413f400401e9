package gpu

import (
	"math"
	"sync"
	"unsafe"
)

// Element is the set of plain fixed-width types a device buffer can hold.
type Element interface {
	~bool | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// DeviceMemory is an owned, fixed-length buffer of T in device memory.
type DeviceMemory[T Element] struct {
	ctx   *Context
	count int
	addr  uintptr

	mu    sync.RWMutex
	alloc allocation // nil once freed
}

// New allocates count elements on the current context.
func New[T Element](count int) (*DeviceMemory[T], error) {
	c, err := GetContext()
	if err != nil {
		return nil, err
	}
	return NewIn[T](c, count)
}

// NewIn allocates count elements on c.
func NewIn[T Element](c *Context, count int) (*DeviceMemory[T], error) {
	if err := c.check("alloc"); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, newError(CodeInvalidValue, "alloc", "negative count %d", count)
	}
	var zero T
	elem := int(unsafe.Sizeof(zero))
	if count > math.MaxInt/elem {
		return nil, newError(CodeOutOfMemory, "alloc", "%d elements of %d bytes overflow", count, elem)
	}
	size := count * elem
	if lim := c.limits.MaxBufferSize; lim > 0 && uint64(size) > lim {
		return nil, newError(CodeOutOfMemory, "alloc", "%d bytes exceeds max buffer size %d", size, lim)
	}

	a, err := c.be.alloc(size)
	if err != nil {
		return nil, err
	}
	m := &DeviceMemory[T]{ctx: c, count: count, alloc: a, addr: newAddr(size)}
	Logger().Debug("device alloc", "backend", c.be.name(), "count", count, "bytes", size, "addr", m.addr)
	return m, nil
}

// Count is the number of elements; fixed at allocation.
func (m *DeviceMemory[T]) Count() int { return m.count }

// SizeBytes is Count times the element size.
func (m *DeviceMemory[T]) SizeBytes() int {
	var zero T
	return m.count * int(unsafe.Sizeof(zero))
}

// Addr is the opaque device address of the buffer.
func (m *DeviceMemory[T]) Addr() uintptr { return m.addr }

// Context is the context the buffer was allocated on.
func (m *DeviceMemory[T]) Context() *Context { return m.ctx }

// Free releases the buffer. Further use fails with ErrInvalidHandle.
// Freeing twice is a no-op.
func (m *DeviceMemory[T]) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alloc != nil {
		m.alloc.release()
		m.alloc = nil
	}
}

func (m *DeviceMemory[T]) live(op string) (allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.alloc == nil {
		return nil, newError(CodeInvalidHandle, op, "device memory %#x already freed", m.addr)
	}
	return m.alloc, nil
}

// deviceAlloc lets launches validate buffer arguments without knowing T.
func (m *DeviceMemory[T]) deviceAlloc(op string) (allocation, *Context, error) {
	a, err := m.live(op)
	return a, m.ctx, err
}

type devicePointer interface {
	Addr() uintptr
	deviceAlloc(op string) (allocation, *Context, error)
}

func (m *DeviceMemory[T]) checkLen(op string, n int) error {
	if n != m.count {
		return newError(CodeInvalidValue, op, "host slice has %d elements, device buffer %d", n, m.count)
	}
	return nil
}

// CopyFromHost copies src into the buffer. It waits for the default stream
// first, and src must have exactly Count elements.
func (m *DeviceMemory[T]) CopyFromHost(src []T) error {
	if err := m.checkLen("copy_from_host", len(src)); err != nil {
		return err
	}
	a, err := m.live("copy_from_host")
	if err != nil {
		return err
	}
	if err := m.ctx.null.Synchronize(); err != nil {
		return err
	}
	return a.write(bytesOf(src))
}

// CopyFromHostAsync enqueues a copy of src on s. src is captured before the
// call returns and may be reused immediately.
func (m *DeviceMemory[T]) CopyFromHostAsync(src []T, s *Stream) error {
	if err := m.checkLen("copy_from_host_async", len(src)); err != nil {
		return err
	}
	a, err := m.live("copy_from_host_async")
	if err != nil {
		return err
	}
	s, err = m.ctx.streamOrDefault("copy_from_host_async", s)
	if err != nil {
		return err
	}
	snapshot := append([]byte(nil), bytesOf(src)...)
	return s.enqueue(func(prev error) error {
		if prev != nil {
			return nil
		}
		return a.write(snapshot)
	})
}

// CopyToHost copies the buffer into dst after waiting for the default
// stream. dst must have exactly Count elements.
func (m *DeviceMemory[T]) CopyToHost(dst []T) error {
	if err := m.checkLen("copy_to_host", len(dst)); err != nil {
		return err
	}
	a, err := m.live("copy_to_host")
	if err != nil {
		return err
	}
	if err := m.ctx.null.Synchronize(); err != nil {
		return err
	}
	return a.read(bytesOf(dst))
}

// CopyToHostAsync enqueues a copy of the buffer into dst on s. dst must not
// be touched until the returned transfer completes.
func (m *DeviceMemory[T]) CopyToHostAsync(dst []T, s *Stream) (*PendingCopy[T], error) {
	if err := m.checkLen("copy_to_host_async", len(dst)); err != nil {
		return nil, err
	}
	a, err := m.live("copy_to_host_async")
	if err != nil {
		return nil, err
	}
	s, err = m.ctx.streamOrDefault("copy_to_host_async", s)
	if err != nil {
		return nil, err
	}
	p := &PendingCopy[T]{stream: s, dst: dst, done: make(chan struct{})}
	err = s.enqueue(func(prev error) error {
		if prev != nil {
			// The transfer reports the fault, so Synchronize does not.
			p.finish(prev)
			s.takeSticky()
			return nil
		}
		p.finish(a.read(bytesOf(dst)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PendingCopy is a device-to-host transfer enqueued on a stream.
type PendingCopy[T any] struct {
	stream *Stream
	dst    []T
	done   chan struct{}
	err    error
}

func (p *PendingCopy[T]) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed when the transfer has finished or was abandoned.
func (p *PendingCopy[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the transfer finishes and returns the filled slice.
// An earlier failure on the stream abandons the transfer and is returned.
func (p *PendingCopy[T]) Wait() ([]T, error) {
	<-p.done
	return p.dst, p.err
}
