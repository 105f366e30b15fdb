package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"batch-transcriber/internal/domain"
)

// Adapter owns one loaded model. It is used by a single worker and is not
// safe for concurrent calls, except Invalidate which may be called anytime.
type Adapter struct {
	runtime   Runtime
	device    Device
	model     Model
	modelName string
	stale     atomic.Bool
	stat      func(string) (os.FileInfo, error)
	log       zerolog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDevice pins the device instead of detecting it.
func WithDevice(d Device) AdapterOption {
	return func(a *Adapter) { a.device = d }
}

// WithStat overrides file existence checks.
func WithStat(stat func(string) (os.FileInfo, error)) AdapterOption {
	return func(a *Adapter) { a.stat = stat }
}

// NewAdapter builds an adapter and selects its device once.
func NewAdapter(rt Runtime, log zerolog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		runtime: rt,
		stat:    os.Stat,
		log:     log.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.device == "" {
		a.device = DeviceCPU
		if rt.AcceleratorAvailable() {
			a.device = DeviceGPU
		}
	}
	return a
}

// Device reports the device chosen at construction.
func (a *Adapter) Device() Device {
	return a.device
}

// LoadedModel returns the name of the currently loaded model, if any.
func (a *Adapter) LoadedModel() string {
	return a.modelName
}

// Unload drops the loaded model so the next EnsureLoaded resolves it again.
func (a *Adapter) Unload() {
	a.model = nil
	a.modelName = ""
}

// Invalidate marks the loaded model as out of date. The model keeps serving
// the running batch and is dropped by the next ReleaseStale.
func (a *Adapter) Invalidate() {
	a.stale.Store(true)
}

// ReleaseStale unloads the model if Invalidate was called since it loaded.
// It must only be called while no batch is using the adapter.
func (a *Adapter) ReleaseStale() {
	if a.stale.Swap(false) {
		a.Unload()
	}
}

// EnsureLoaded loads modelName unless it is already the loaded model.
func (a *Adapter) EnsureLoaded(ctx context.Context, modelName string, progress domain.ProgressFunc) error {
	if a.model != nil && a.modelName == modelName {
		return nil
	}

	progress.Report(fmt.Sprintf("loading model %s (%s)", modelName, a.device), 30)
	a.log.Info().Str("model", modelName).Str("device", string(a.device)).Msg("loading model")

	model, err := a.runtime.Load(ctx, modelName, a.device)
	if err != nil {
		return &domain.Error{
			Kind:    domain.KindModelLoad,
			Message: fmt.Sprintf("failed to load model %s", modelName),
			Err:     err,
		}
	}

	a.model = model
	a.modelName = modelName
	progress.Report("model loaded", 40)
	return nil
}

// Transcribe runs the loaded model over audioPath. language "" lets the
// model detect the spoken language.
func (a *Adapter) Transcribe(ctx context.Context, audioPath, language string, progress domain.ProgressFunc) (domain.TranscriptionResult, error) {
	if _, err := a.stat(audioPath); err != nil {
		return domain.TranscriptionResult{}, &domain.Error{
			Kind:    domain.KindFileNotFound,
			Path:    audioPath,
			Message: fmt.Sprintf("audio file not found: %s", audioPath),
			Err:     err,
		}
	}
	if a.model == nil {
		return domain.TranscriptionResult{}, &domain.Error{
			Kind:    domain.KindTranscription,
			Path:    audioPath,
			Message: "no model loaded",
			Err:     errors.New("EnsureLoaded must be called before Transcribe"),
		}
	}

	progress.Report("transcribing", 45)
	out, err := a.model.Transcribe(ctx, audioPath, Options{Language: domain.NormalizeLanguage(language)})
	if err != nil {
		return domain.TranscriptionResult{}, &domain.Error{
			Kind:    domain.KindTranscription,
			Path:    audioPath,
			Message: "transcription failed",
			Err:     err,
		}
	}
	progress.Report("transcription complete", 90)

	return domain.TranscriptionResult{
		Text:     strings.TrimSpace(out.Text),
		Segments: normalizeSegments(out.Segments),
		Language: out.Language,
	}, nil
}

// normalizeSegments clamps end >= start and orders segments by start.
func normalizeSegments(in []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, 0, len(in))
	for _, seg := range in {
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		seg.Text = strings.TrimSpace(seg.Text)
		out = append(out, seg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
