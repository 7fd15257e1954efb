package manager

import (
	"os/exec"
	"strings"
)

// Device is the compute device models are loaded on.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ResolveDevice turns a configured preference ("auto", "cpu", "gpu"/"cuda")
// into a concrete device. "auto" selects CUDA when nvidia-smi is on PATH.
// lookPath defaults to exec.LookPath.
func ResolveDevice(pref string, lookPath func(string) (string, error)) Device {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "cpu":
		return DeviceCPU
	case "gpu", "cuda":
		return DeviceCUDA
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath("nvidia-smi"); err == nil {
		return DeviceCUDA
	}
	return DeviceCPU
}

// PrecisionFor returns the compute precision used on d.
func PrecisionFor(d Device) string {
	if d == DeviceCUDA {
		return "float16"
	}
	return "int8"
}
