// Package engine adapts a speech-recognition runtime into a lazily loaded,
// device-pinned transcription capability.
package engine

import (
	"context"
	"fmt"
	"strings"

	"batch-transcriber/internal/domain"
)

// Device is the compute target a model is loaded onto.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// ParseDevice maps a configured device name to a Device. "auto" and empty
// return ok=false so detection decides.
func ParseDevice(raw string) (Device, bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return "", false, nil
	case "cpu":
		return DeviceCPU, true, nil
	case "gpu", "cuda", "metal":
		return DeviceGPU, true, nil
	default:
		return "", false, fmt.Errorf("unknown device %q (want auto, cpu or gpu)", raw)
	}
}

// Options tunes one model invocation. Empty Language means no hint.
type Options struct {
	Language string
}

// Output is the raw model result before normalization.
type Output struct {
	Text     string
	Segments []domain.Segment
	Language string
}

// Model is a loaded speech-recognition model.
type Model interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (Output, error)
}

// Runtime loads models and reports accelerator availability.
type Runtime interface {
	AcceleratorAvailable() bool
	Load(ctx context.Context, modelName string, device Device) (Model, error)
}
