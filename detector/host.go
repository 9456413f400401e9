package detector

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sys/cpu"
)

// Host limits. Workgroups are goroutine batches, so the grid is bounded only
// by int32 indexing and the block by what a batch can loop over cheaply.
const (
	hostMaxWorkgroups     = math.MaxInt32
	hostMaxInvocations    = 1024
	hostMaxWorkgroupStore = 64 * 1024
)

// DetectHost describes the software device that runs kernels on goroutines.
// budget is the configured memory cap in bytes (0 = unlimited) and envKeys
// are the variables echoed into the report.
func DetectHost(budget uint64, envKeys []string) *Report {
	limits := Limits{
		MaxComputeInvocationsPerWorkgroup: hostMaxInvocations,
		MaxComputeWorkgroupSizeX:          hostMaxInvocations,
		MaxComputeWorkgroupSizeY:          hostMaxInvocations,
		MaxComputeWorkgroupSizeZ:          64,
		MaxComputeWorkgroupsPerDimension:  hostMaxWorkgroups,
		MaxComputeWorkgroupStorageSize:    hostMaxWorkgroupStore,
		MaxStorageBufferBindingSize:       math.MaxInt64,
		MaxBufferSize:                     math.MaxInt64,
	}
	if budget > 0 {
		limits.MaxBufferSize = budget
		limits.MaxStorageBufferBindingSize = budget
	}

	wgX, wgY, wgZ := chooseWorkgroup(limits)

	return &Report{
		WhenISO:     time.Now().UTC().Format(time.RFC3339),
		Runtime:     detectRuntime(),
		Backend:     "host",
		AdapterType: "cpu",
		VendorID:    "0x0000",
		DeviceID:    "0x0000",
		Name:        fmt.Sprintf("host %s/%s (%d cpus)", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()),
		Driver:      runtime.Version(),
		Limits:      limits,
		Features:    hostFeatures(),
		Recommended: Recommendations{
			WorkgroupX: wgX, WorkgroupY: wgY, WorkgroupZ: wgZ,
			BudgetBytes: budget,
		},
		Env: pickEnv(envKeys),
	}
}

func hostFeatures() []string {
	var feats []string
	add := func(ok bool, name string) {
		if ok {
			feats = append(feats, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasSSE42, "sse4.2")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasFMA, "fma")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasFP, "fp")
		add(cpu.ARM64.HasSVE, "sve")
		add(cpu.ARM64.HasATOMICS, "atomics")
	}
	return feats
}
