package kernels

import "fmt"

// Scalar is the closed set of element types the sorting kernels are
// compiled for. The types are exact, so anything else is rejected by the
// compiler.
type Scalar interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// TypeTag enumerates the Scalar types.
type TypeTag uint8

const (
	I8 TypeTag = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	numTypes
)

// TypeTags lists every tag in declaration order.
func TypeTags() []TypeTag {
	tags := make([]TypeTag, numTypes)
	for i := range tags {
		tags[i] = TypeTag(i)
	}
	return tags
}

var typeNames = [numTypes]string{"i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64", "f32", "f64"}

var typeSizes = [numTypes]int{1, 2, 4, 8, 1, 2, 4, 8, 4, 8}

// String is the canonical short name used in entry point names.
func (t TypeTag) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("TypeTag(%d)", uint8(t))
}

// Size is the element width in bytes.
func (t TypeTag) Size() int { return typeSizes[t] }

// TypeTagOf returns the tag of T.
func TypeTagOf[T Scalar]() TypeTag {
	var zero T
	switch any(zero).(type) {
	case int8:
		return I8
	case int16:
		return I16
	case int32:
		return I32
	case int64:
		return I64
	case uint8:
		return U8
	case uint16:
		return U16
	case uint32:
		return U32
	case uint64:
		return U64
	case float32:
		return F32
	default:
		return F64
	}
}

// Op identifies one of the kernels every type is specialized for.
type Op uint8

const (
	OpSortEven Op = iota
	OpSortOdd
	OpCheckSorted
	numOps
)

var opNames = [numOps]string{"sort_even", "sort_odd", "check_sorted"}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Symbol is one specialized entry point.
type Symbol struct {
	Op   Op
	Type TypeTag
	Name string // entry point name in the kernel image
}

// SymbolOf resolves the entry point of op for tag from the generated table.
func SymbolOf(op Op, tag TypeTag) Symbol {
	return Symbol{Op: op, Type: tag, Name: symbolNames[op][tag]}
}

// SymbolFor resolves the entry point of op for T.
func SymbolFor[T Scalar](op Op) Symbol {
	return SymbolOf(op, TypeTagOf[T]())
}

// Symbols lists every entry point in the image.
func Symbols() []Symbol {
	out := make([]Symbol, 0, int(numOps)*int(numTypes))
	for op := Op(0); op < numOps; op++ {
		for tag := TypeTag(0); tag < numTypes; tag++ {
			out = append(out, SymbolOf(op, tag))
		}
	}
	return out
}

// DeviceTypes are the tags the WGSL image is compiled for; WGSL has no
// 8, 16 or 64-bit scalars.
func DeviceTypes() []TypeTag { return []TypeTag{I32, U32, F32} }
