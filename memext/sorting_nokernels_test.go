//go:build nokernels

package memext

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openfluke/devsort/gpu"
)

func TestUnsupportedBuild(t *testing.T) {
	// No device is needed: the stub never touches the memory.
	mem := (*gpu.DeviceMemory[float32])(nil)
	e := Ext(mem)

	assert.ErrorIs(t, e.Sort(), ErrUnsupportedBuild)
	assert.ErrorIs(t, e.SortDesc(), ErrUnsupportedBuild)
	assert.ErrorIs(t, e.SortAsync(nil), ErrUnsupportedBuild)
	assert.ErrorIs(t, e.SortDescAsync(nil), ErrUnsupportedBuild)

	for _, check := range []func() (bool, error){
		e.CheckSorted,
		e.CheckSortedDesc,
		func() (bool, error) { return e.CheckSortedAsync(nil) },
		func() (bool, error) { return e.CheckSortedDescAsync(nil) },
	} {
		ok, err := check()
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUnsupportedBuild)
	}
}
