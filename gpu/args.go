package gpu

import (
	"math"
	"unsafe"
)

// Args are the arguments of one kernel launch, in declaration order.
// Device buffers are passed as *DeviceMemory[T]; scalars as bool, int,
// int32, uint32 or float32.
type Args []any

// Bool returns argument i as a bool.
func (a Args) Bool(i int) (bool, error) {
	if i >= len(a) {
		return false, missingArg(i, "bool")
	}
	b, ok := a[i].(bool)
	if !ok {
		return false, wrongArg(i, "bool", a[i])
	}
	return b, nil
}

// Uint32 returns argument i as a uint32. Signed integers must be
// non-negative and every value must fit in 32 bits.
func (a Args) Uint32(i int) (uint32, error) {
	if i >= len(a) {
		return 0, missingArg(i, "uint32")
	}
	switch v := a[i].(type) {
	case uint32:
		return v, nil
	case int32:
		if v >= 0 {
			return uint32(v), nil
		}
	case int:
		if v >= 0 && uint64(v) <= math.MaxUint32 {
			return uint32(v), nil
		}
	case uint:
		if uint64(v) <= math.MaxUint32 {
			return uint32(v), nil
		}
	}
	return 0, wrongArg(i, "uint32", a[i])
}

// ArgSlice returns argument i, which must be a *DeviceMemory[T] on the host
// backend, as a slice aliasing the device buffer.
func ArgSlice[T Element](a Args, i int) ([]T, error) {
	if i >= len(a) {
		return nil, missingArg(i, "device buffer")
	}
	m, ok := a[i].(*DeviceMemory[T])
	if !ok {
		var zero T
		return nil, newError(CodeInvalidValue, "launch", "argument %d: want *DeviceMemory[%T], got %T", i, zero, a[i])
	}
	alloc, err := m.live("launch")
	if err != nil {
		return nil, err
	}
	h, ok := alloc.(hostAccessible)
	if !ok {
		return nil, newError(CodeNotSupported, "launch", "argument %d is not host addressable", i)
	}
	return viewOf[T](h.bytes())[:m.count], nil
}

// scalarWord packs a scalar argument into one 32-bit word, the layout
// shader backends use for their uniform parameter block.
func scalarWord(v any) (uint32, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case uint32:
		return x, true
	case int32:
		return uint32(x), true
	case int:
		if x < 0 || uint64(x) > math.MaxUint32 {
			return 0, false
		}
		return uint32(x), true
	case float32:
		return math.Float32bits(x), true
	}
	return 0, false
}

func missingArg(i int, want string) error {
	return newError(CodeInvalidValue, "launch", "argument %d (%s) missing", i, want)
}

func wrongArg(i int, want string, got any) error {
	return newError(CodeInvalidValue, "launch", "argument %d: want %s, got %T", i, want, got)
}

// bytesOf reinterprets s as its backing bytes.
func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}

// viewOf reinterprets b as elements of T. b must be aligned for T; host
// allocations are 8-byte aligned.
func viewOf[T any](b []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/size)
}
