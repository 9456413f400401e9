package gpu

import "fmt"

// Dim3 is a launch extent in up to three dimensions.
type Dim3 struct {
	X, Y, Z uint32
}

// NewDim3 returns a three-dimensional extent.
func NewDim3(x, y, z uint32) Dim3 { return Dim3{X: x, Y: y, Z: z} }

// Dim1 returns a one-dimensional extent.
func Dim1(x uint32) Dim3 { return Dim3{X: x, Y: 1, Z: 1} }

// Size is the number of points covered by d.
func (d Dim3) Size() int { return int(d.X) * int(d.Y) * int(d.Z) }

// Empty reports whether any dimension is zero.
func (d Dim3) Empty() bool { return d.X == 0 || d.Y == 0 || d.Z == 0 }

func (d Dim3) String() string { return fmt.Sprintf("(%d,%d,%d)", d.X, d.Y, d.Z) }

// index unflattens a linear id into d's coordinates, X fastest.
func (d Dim3) index(i int) Dim3 {
	x := i % int(d.X)
	i /= int(d.X)
	y := i % int(d.Y)
	z := i / int(d.Y)
	return Dim3{X: uint32(x), Y: uint32(y), Z: uint32(z)}
}

// Grid1D returns the number of blocks of blockSize threads needed to cover n
// work items.
func Grid1D(n, blockSize int) uint32 {
	if n <= 0 || blockSize <= 0 {
		return 0
	}
	return uint32((n + blockSize - 1) / blockSize)
}

// Thread identifies one task inside a launch.
type Thread struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3
}

// Block is the linear workgroup id along X.
func (t Thread) Block() int { return int(t.BlockIdx.X) }

// Global is the linear thread id along X.
func (t Thread) Global() int {
	return int(t.BlockIdx.X)*int(t.BlockDim.X) + int(t.ThreadIdx.X)
}
