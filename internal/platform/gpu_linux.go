//go:build linux

// Package platform detects local hardware acceleration capability. C6
// SttRecognizer uses it to fall back to CPU when CUDA is requested but no
// NVIDIA GPU is present.
package platform

import (
	"os"
	"strings"
)

// HasNvidiaGPU reports whether an NVIDIA GPU is available, covering both
// discrete GPUs and Jetson SOC devices (Nano, Orin, AGX, etc).
func HasNvidiaGPU() bool {
	nvidiaSmiPaths := []string{
		"/usr/bin/nvidia-smi",
		"/usr/local/bin/nvidia-smi",
		"/opt/nvidia/bin/nvidia-smi",
	}
	for _, path := range nvidiaSmiPaths {
		if fileExists(path) {
			return true
		}
	}

	if fileExists("/dev/nvidia0") {
		return true
	}

	jetsonIndicators := []string{
		"/dev/nvhost-gpu",
		"/dev/nvhost-ctrl-gpu",
		"/dev/nvmap",
		"/etc/nv_tegra_release",
		"/sys/devices/gpu.0",
		"/sys/devices/17000000.ga10b",
		"/sys/devices/17000000.gv11b",
	}
	for _, path := range jetsonIndicators {
		if fileExists(path) {
			return true
		}
	}

	if data, err := os.ReadFile("/proc/device-tree/compatible"); err == nil {
		compatible := string(data)
		if strings.Contains(compatible, "nvidia,tegra") || strings.Contains(compatible, "nvidia,jetson") {
			return true
		}
	}

	return false
}

// DefaultExecutionProvider returns "cuda" when an NVIDIA GPU is detected,
// otherwise "cpu" (spec §4.6.4: CUDA-with-CPU-fallback).
func DefaultExecutionProvider() string {
	if HasNvidiaGPU() {
		return "cuda"
	}
	return "cpu"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
