// Package transcribe runs one media file through normalization and
// speech recognition.
package transcribe

import (
	"context"
	"fmt"
	"path/filepath"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/media"
)

// Normalizer produces canonical audio for one source file.
type Normalizer interface {
	Normalize(ctx context.Context, sourcePath string) (*media.NormalizedAudio, error)
}

// Engine is the loaded-model capability a job needs.
type Engine interface {
	EnsureLoaded(ctx context.Context, modelName string, progress domain.ProgressFunc) error
	Transcribe(ctx context.Context, audioPath, language string, progress domain.ProgressFunc) (domain.TranscriptionResult, error)
}

// Unit is the per-file processing contract shared by VideoJob and AudioJob.
type Unit interface {
	Job() domain.MediaJob
	Run(ctx context.Context, progress domain.ProgressFunc) (domain.TranscriptionResult, error)
}

// NewUnit selects the job variant for the media kind.
func NewUnit(job domain.MediaJob, normalizer Normalizer, engine Engine) (Unit, error) {
	b := base{job: job, normalizer: normalizer, engine: engine}
	switch job.Kind {
	case domain.MediaKindVideo:
		return &VideoJob{base: b}, nil
	case domain.MediaKindAudio:
		return &AudioJob{base: b}, nil
	default:
		return nil, &domain.Error{
			Kind:    domain.KindValidation,
			Path:    job.SourcePath,
			Message: fmt.Sprintf("unsupported media kind %q", job.Kind),
		}
	}
}

// VideoJob always extracts the audio track; containers never reach the model.
type VideoJob struct {
	base
}

// Run extracts, transcribes and cleans up.
func (j *VideoJob) Run(ctx context.Context, progress domain.ProgressFunc) (domain.TranscriptionResult, error) {
	return j.run(ctx, progress, "extracting audio", "audio extracted")
}

// AudioJob re-encodes audio inputs so the model always sees mono 16kHz PCM16.
type AudioJob struct {
	base
}

// Run normalizes, transcribes and cleans up.
func (j *AudioJob) Run(ctx context.Context, progress domain.ProgressFunc) (domain.TranscriptionResult, error) {
	return j.run(ctx, progress, "preparing audio", "audio prepared")
}

type base struct {
	job        domain.MediaJob
	normalizer Normalizer
	engine     Engine
}

// Job returns the media job this unit processes.
func (b *base) Job() domain.MediaJob {
	return b.job
}

func (b *base) run(ctx context.Context, progress domain.ProgressFunc, startLabel, doneLabel string) (result domain.TranscriptionResult, err error) {
	defer func() {
		if err != nil {
			progress.Report(fmt.Sprintf("error: %v", err), domain.ProgressIndeterminate)
		}
	}()

	name := filepath.Base(b.job.SourcePath)
	progress.Report(fmt.Sprintf("%s: %s", startLabel, name), 5)

	audio, err := b.normalizer.Normalize(ctx, b.job.SourcePath)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	defer audio.Release()
	progress.Report(doneLabel, 25)

	if err := b.engine.EnsureLoaded(ctx, b.job.ModelName, progress); err != nil {
		return domain.TranscriptionResult{}, err
	}

	result, err = b.engine.Transcribe(ctx, audio.Path, b.job.Language, progress)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	progress.Report("done", 100)
	return result, nil
}
