package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	files, err := Render("kernels")
	require.NoError(t, err)
	require.Len(t, files, 2)

	goSrc := string(files[0].Data)
	assert.Equal(t, "zz_kernels.go", files[0].Name)
	assert.True(t, strings.HasPrefix(goSrc, "// Code generated by kernelgen. DO NOT EDIT."))
	assert.Contains(t, goSrc, `sortEven[float64]`)
	assert.Contains(t, goSrc, `"check_sorted_u8"`)

	wgsl := string(files[1].Data)
	assert.Equal(t, "sorting.wgsl", files[1].Name)
	for _, st := range scalarTypes {
		for _, op := range kernelOps {
			entry := "fn " + op.Name + "_" + st.Name + "("
			assert.Equal(t, st.WGSL != "", strings.Contains(wgsl, entry), entry)
		}
	}
	assert.Contains(t, wgsl, "array<f32>")
}

// The checked-in output must match the generator; run go generate
// ./kernels after changing either.
func TestGeneratedFilesUpToDate(t *testing.T) {
	files, err := Render("kernels")
	require.NoError(t, err)
	for _, f := range files {
		disk, err := os.ReadFile(filepath.Join("..", "..", "kernels", f.Name))
		require.NoError(t, err)
		assert.Equal(t, string(f.Data), string(disk), f.Name)
	}
}
