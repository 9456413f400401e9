//go:build webgpu

package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// Detect probes the default adapter/device and synthesizes a report.
func Detect(budget uint64, envKeys []string) (*Report, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("wgpu.CreateInstance returned nil")
	}
	defer inst.Release()

	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	if adapter == nil {
		return nil, fmt.Errorf("no adapter")
	}
	defer adapter.Release()

	return FromAdapter(adapter, budget, envKeys), nil
}

// FromAdapter builds a report for an adapter that is already selected.
func FromAdapter(adapter *wgpu.Adapter, budget uint64, envKeys []string) *Report {
	info := adapter.GetInfo()
	supported := adapter.GetLimits()

	var feats []string
	for _, f := range adapter.EnumerateFeatures() {
		feats = append(feats, f.String())
	}

	limits := Limits{
		MaxComputeInvocationsPerWorkgroup: supported.Limits.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupSizeX:          supported.Limits.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupSizeY:          supported.Limits.MaxComputeWorkgroupSizeY,
		MaxComputeWorkgroupSizeZ:          supported.Limits.MaxComputeWorkgroupSizeZ,
		MaxComputeWorkgroupsPerDimension:  supported.Limits.MaxComputeWorkgroupsPerDimension,
		MaxComputeWorkgroupStorageSize:    supported.Limits.MaxComputeWorkgroupStorageSize,
		MaxStorageBufferBindingSize:       supported.Limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                     supported.Limits.MaxBufferSize,
	}
	wgX, wgY, wgZ := chooseWorkgroup(limits)

	if budget == 0 {
		budget = 128 * 1024 * 1024
	}

	return &Report{
		WhenISO:     time.Now().UTC().Format(time.RFC3339),
		Runtime:     detectRuntime(),
		Backend:     info.BackendType.String(),
		AdapterType: info.AdapterType.String(),
		VendorID:    fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID:    fmt.Sprintf("0x%04x", info.DeviceId),
		Name:        strings.TrimSpace(info.Name),
		Driver:      strings.TrimSpace(info.DriverDescription),
		Limits:      limits,
		Features:    feats,
		Recommended: Recommendations{
			WorkgroupX: wgX, WorkgroupY: wgY, WorkgroupZ: wgZ,
			BudgetBytes: budget,
		},
		Env: pickEnv(envKeys),
	}
}
