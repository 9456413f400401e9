package detector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHost(t *testing.T) {
	t.Setenv("DEVSORT_BACKEND", "host")
	t.Setenv("DEVSORT_WORKERS", "")

	rep := DetectHost(0, []string{"DEVSORT_BACKEND", "DEVSORT_WORKERS"})
	assert.Equal(t, "host", rep.Backend)
	assert.Equal(t, "cpu", rep.AdapterType)
	assert.Equal(t, "native", rep.Runtime)
	assert.NotEmpty(t, rep.Name)
	assert.Equal(t, map[string]string{"DEVSORT_BACKEND": "host"}, rep.Env)

	l := rep.Limits
	assert.Equal(t, uint32(hostMaxWorkgroups), l.MaxComputeWorkgroupsPerDimension)
	assert.Greater(t, l.MaxBufferSize, uint64(1<<40))
	assert.Equal(t, uint32(256), rep.Recommended.WorkgroupX)
	assert.Zero(t, rep.Recommended.BudgetBytes)
}

func TestDetectHostBudget(t *testing.T) {
	rep := DetectHost(4096, nil)
	assert.Equal(t, uint64(4096), rep.Limits.MaxBufferSize)
	assert.Equal(t, uint64(4096), rep.Limits.MaxStorageBufferBindingSize)
	assert.Equal(t, uint64(4096), rep.Recommended.BudgetBytes)
	assert.Nil(t, rep.Env)
}

func TestChooseWorkgroup(t *testing.T) {
	tests := []struct {
		maxX, maxTotal uint32
		want           uint32
	}{
		{1024, 1024, 256},
		{256, 128, 128},
		{48, 1024, 32},
		{1, 1, 1},
		{0, 0, 1},
	}
	for _, tt := range tests {
		x, y, z := chooseWorkgroup(Limits{
			MaxComputeWorkgroupSizeX:          tt.maxX,
			MaxComputeInvocationsPerWorkgroup: tt.maxTotal,
		})
		assert.Equal(t, tt.want, x, "maxX=%d maxTotal=%d", tt.maxX, tt.maxTotal)
		assert.Equal(t, uint32(1), y)
		assert.Equal(t, uint32(1), z)
	}
}

func TestJSON(t *testing.T) {
	rep := DetectHost(1<<20, nil)
	out, err := JSON(rep)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, "host", back["backend"])
	assert.Contains(t, back, "limits")
	assert.NotContains(t, back, "env")
}
