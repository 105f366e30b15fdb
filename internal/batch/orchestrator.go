// Package batch runs an ordered list of media files through the
// transcription pipeline on one background worker.
//
// The worker never calls user callbacks directly. It sends messages on a
// channel drained by a single dispatcher goroutine, which publishes each one
// to the event bus and then invokes the matching callback, so callbacks see
// events in submission order and never run concurrently with each other.
//
// Cancellation is cooperative with per-file granularity: the flag is checked
// before each file starts and again after transcription, before the result
// is written. An in-flight decode or inference always runs to completion.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/jobs"
	"batch-transcriber/internal/output"
	"batch-transcriber/internal/transcribe"
)

const tracerName = "batch-transcriber/batch"

// Request is one startBatch call.
type Request struct {
	Files     []string `json:"files" validate:"required,min=1"`
	Model     string   `json:"model" validate:"required,modeltier"`
	Language  string   `json:"language"`
	OutputDir string   `json:"output_dir" validate:"required"`
}

// FileResult is delivered once per file, in submission order.
type FileResult struct {
	Index      int                        `json:"index"`
	SourcePath string                     `json:"sourcePath"`
	OutputPath string                     `json:"outputPath,omitempty"`
	Result     domain.TranscriptionResult `json:"result"`
	Err        error                      `json:"-"`
}

// Succeeded reports whether the transcript was written.
func (r FileResult) Succeeded() bool {
	return r.OutputPath != ""
}

// Summary is delivered once when the worker exits.
type Summary struct {
	BatchID   string             `json:"batchId"`
	Status    domain.BatchStatus `json:"status"`
	Processed int                `json:"processed"`
	Total     int                `json:"total"`
	Message   string             `json:"message"`
}

// Callbacks receive batch output on the dispatcher goroutine. Any may be nil.
type Callbacks struct {
	OnProgress   func(status string, progress float64)
	OnFileResult func(FileResult)
	OnBatchDone  func(Summary)
	OnEvent      func(jobs.Event)
}

// ResultWriter persists one transcript and returns its path.
type ResultWriter interface {
	Write(result domain.TranscriptionResult, sourcePath, outputDir, modelName, language string) (string, error)
}

// SettingsUpdater persists the model, language and output directory chosen for a batch.
type SettingsUpdater interface {
	Update(model, language, outputDir string) (domain.Settings, error)
}

// staleReleaser is implemented by engines that keep a model across batches.
type staleReleaser interface {
	ReleaseStale()
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Normalizer transcribe.Normalizer
	Engine     transcribe.Engine
	Writer     ResultWriter
	Settings   SettingsUpdater
	State      *jobs.Manager
	Bus        *jobs.EventBus
	Log        zerolog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithIDGenerator overrides batch id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithStat overrides the source existence check.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(o *Orchestrator) { o.stat = stat }
}

// WithMkdirAll overrides output directory creation.
func WithMkdirAll(mkdirAll func(string, os.FileMode) error) Option {
	return func(o *Orchestrator) { o.mkdirAll = mkdirAll }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithQueueSize sets the worker to dispatcher channel capacity.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// Orchestrator owns the single batch worker.
type Orchestrator struct {
	normalizer transcribe.Normalizer
	engine     transcribe.Engine
	writer     ResultWriter
	settings   SettingsUpdater
	state      *jobs.Manager
	bus        *jobs.EventBus
	log        zerolog.Logger

	newID     func() string
	stat      func(string) (os.FileInfo, error)
	mkdirAll  func(string, os.FileMode) error
	tracer    trace.Tracer
	queueSize int

	mu    sync.Mutex
	done  chan struct{}
	queue chan<- message
}

// message is one queued item from worker to dispatcher.
type message struct {
	event   jobs.Event
	file    *FileResult
	summary *Summary
}

// New wires an orchestrator. State and Bus default to fresh instances.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		normalizer: deps.Normalizer,
		engine:     deps.Engine,
		writer:     deps.Writer,
		settings:   deps.Settings,
		state:      deps.State,
		bus:        deps.Bus,
		log:        deps.Log.With().Str("component", "orchestrator").Logger(),
		newID:      uuid.NewString,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		tracer:     otel.Tracer(tracerName),
		queueSize:  64,
	}
	if o.state == nil {
		o.state = jobs.NewManager()
	}
	if o.bus == nil {
		o.bus = jobs.NewEventBus(0)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates req, creates the output directory and launches the worker.
// Validation and directory failures are returned before the batch enters
// Running; everything after that is reported through cb. A batch counts as
// running until its dispatcher has delivered the final summary.
func (o *Orchestrator) Start(ctx context.Context, req Request, cb Callbacks) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsProcessing() || o.dispatching() {
		return "", jobs.ErrBatchAlreadyRunning
	}

	req = cleanRequest(req)
	units, err := o.prepare(req)
	if err != nil {
		o.log.Warn().Err(err).Msg("batch rejected")
		return "", err
	}

	if err := o.mkdirAll(req.OutputDir, 0o755); err != nil {
		return "", &domain.Error{
			Kind:    domain.KindIO,
			Path:    req.OutputDir,
			Message: fmt.Sprintf("cannot create output directory: %s", req.OutputDir),
			Err:     err,
		}
	}

	if engine, ok := o.engine.(staleReleaser); ok {
		engine.ReleaseStale()
	}

	batchID := o.newID()
	if err := o.state.Begin(batchID, len(units)); err != nil {
		return "", err
	}

	if o.settings != nil {
		if _, err := o.settings.Update(req.Model, req.Language, req.OutputDir); err != nil {
			o.log.Warn().Err(err).Msg("settings not persisted")
		}
	}

	queue := make(chan message, o.queueSize)
	done := make(chan struct{})
	o.done = done
	o.queue = queue

	o.log.Info().
		Str("batch_id", batchID).
		Int("total", len(units)).
		Str("model", req.Model).
		Str("output_dir", req.OutputDir).
		Msg("batch started")

	go o.dispatch(queue, cb, done)
	go o.work(context.WithoutCancel(ctx), batchID, units, queue)

	return batchID, nil
}

// RequestCancel asks the running batch to stop at the next file boundary
// and queues an indeterminate "cancelling" progress event.
func (o *Orchestrator) RequestCancel() error {
	if err := o.state.RequestCancel(); err != nil {
		return err
	}
	state := o.state.Snapshot()
	o.log.Info().Str("batch_id", state.ID).Msg("cancel requested")

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.queue == nil {
		return nil
	}
	select {
	case o.queue <- message{event: jobs.Event{
		BatchID:   state.ID,
		Type:      jobs.EventTypeProgress,
		Message:   "cancelling after the current file",
		Progress:  domain.ProgressIndeterminate,
		Processed: state.ProcessedCount,
		Total:     state.TotalCount,
	}}:
	default:
		o.log.Debug().Str("batch_id", state.ID).Msg("queue full, cancelling event dropped")
	}
	return nil
}

// Wait blocks until the most recently started batch has been fully dispatched.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// dispatching reports whether the last dispatcher is still delivering. o.mu must be held.
func (o *Orchestrator) dispatching() bool {
	if o.done == nil {
		return false
	}
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// detachQueue stops RequestCancel from sending on the worker's queue.
func (o *Orchestrator) detachQueue() {
	o.mu.Lock()
	o.queue = nil
	o.mu.Unlock()
}

// IsProcessing reports whether a batch worker is active.
func (o *Orchestrator) IsProcessing() bool {
	return o.state.IsProcessing()
}

// State returns a snapshot of the current or last batch.
func (o *Orchestrator) State() domain.BatchState {
	return o.state.Snapshot()
}

// Events returns bus events with sequence greater than since.
func (o *Orchestrator) Events(since int64) []jobs.Event {
	return o.bus.Since(since)
}

func cleanRequest(req Request) Request {
	files := lo.FilterMap(req.Files, func(f string, _ int) (string, bool) {
		f = strings.TrimSpace(f)
		return f, f != ""
	})
	req.Files = lo.Uniq(files)
	req.Model = strings.TrimSpace(req.Model)
	req.Language = domain.NormalizeLanguage(req.Language)
	req.OutputDir = strings.TrimSpace(req.OutputDir)
	return req
}

// prepare turns the request into job units without touching any external tool.
func (o *Orchestrator) prepare(req Request) ([]transcribe.Unit, error) {
	if len(req.Files) == 0 {
		return nil, &domain.Error{Kind: domain.KindValidation, Message: "no files selected"}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	units := make([]transcribe.Unit, 0, len(req.Files))
	for _, path := range req.Files {
		job, err := domain.NewMediaJob(path, req.Model, req.Language, req.OutputDir)
		if err != nil {
			return nil, err
		}
		unit, err := transcribe.NewUnit(job, o.normalizer, o.engine)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, nil
}

func (o *Orchestrator) work(ctx context.Context, batchID string, units []transcribe.Unit, queue chan<- message) {
	total := len(units)
	status := domain.BatchStatusCompleted

	ctx, span := o.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.total", total),
	))

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("batch_id", batchID).Interface("panic", r).Msg("batch worker panicked")
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
		o.detachQueue()

		processed := o.state.Snapshot().ProcessedCount
		if err := o.state.Finish(status); err != nil {
			o.log.Error().Err(err).Str("batch_id", batchID).Msg("batch state not finalized")
		}

		summary := Summary{
			BatchID:   batchID,
			Status:    status,
			Processed: processed,
			Total:     total,
			Message:   summaryMessage(status, processed, total),
		}
		span.SetAttributes(
			attribute.String("batch.status", string(status)),
			attribute.Int("batch.processed", processed),
		)
		span.End()

		o.log.Info().
			Str("batch_id", batchID).
			Str("status", string(status)).
			Int("processed", processed).
			Int("total", total).
			Msg("batch finished")

		progress := 100.0
		if status == domain.BatchStatusCancelled {
			progress = 0
		}
		queue <- message{
			event: jobs.Event{
				BatchID:     batchID,
				Type:        jobs.EventTypeDone,
				Message:     summary.Message,
				Progress:    progress,
				Processed:   processed,
				Total:       total,
				BatchStatus: status,
			},
			summary: &summary,
		}
		close(queue)
	}()

	for i, unit := range units {
		if o.state.CancelRequested() {
			status = domain.BatchStatusCancelled
			break
		}
		if discarded := o.runFile(ctx, batchID, i, unit, total, queue); discarded {
			status = domain.BatchStatusCancelled
			break
		}
	}
}

// runFile processes one unit; every failure stays scoped to this file. It
// reports true when a finished result was discarded because of a cancel.
func (o *Orchestrator) runFile(ctx context.Context, batchID string, index int, unit transcribe.Unit, total int, queue chan<- message) bool {
	job := unit.Job()
	name := filepath.Base(job.SourcePath)
	processed := o.state.Snapshot().ProcessedCount

	ctx, span := o.tracer.Start(ctx, "batch.file", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("file.index", index),
		attribute.String("file.name", name),
		attribute.String("file.kind", string(job.Kind)),
	))
	defer span.End()

	progress := domain.ProgressFunc(func(status string, p float64) {
		queue <- message{event: jobs.Event{
			BatchID:    batchID,
			Type:       jobs.EventTypeProgress,
			Message:    fmt.Sprintf("%s: %s", name, status),
			Progress:   jobs.Overall(processed, total, p),
			Index:      index,
			SourcePath: job.SourcePath,
			Processed:  processed,
			Total:      total,
		}}
	})

	o.log.Info().Str("batch_id", batchID).Int("index", index).Str("file", job.SourcePath).Msg("file started")

	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error().
			Err(err).
			Str("batch_id", batchID).
			Str("file", job.SourcePath).
			Str("stage", string(domain.KindOf(err))).
			Msg("file failed")

		queue <- message{
			event: jobs.Event{
				BatchID:    batchID,
				Type:       jobs.EventTypeError,
				Message:    fmt.Sprintf("error: %s: %v", name, err),
				Progress:   domain.ProgressIndeterminate,
				Index:      index,
				SourcePath: job.SourcePath,
				ErrorKind:  domain.KindOf(err),
				Processed:  processed,
				Total:      total,
			},
			file: &FileResult{Index: index, SourcePath: job.SourcePath, Err: err},
		}
	}

	if _, err := o.stat(job.SourcePath); err != nil {
		notFound := &domain.Error{
			Kind:    domain.KindFileNotFound,
			Path:    job.SourcePath,
			Message: fmt.Sprintf("source file not found: %s", name),
			Err:     err,
		}
		progress.Report(fmt.Sprintf("error: %v", notFound), domain.ProgressIndeterminate)
		fail(notFound)
		return false
	}

	result, err := unit.Run(ctx, progress)
	if err != nil {
		fail(err)
		return false
	}

	if o.state.CancelRequested() {
		o.log.Info().Str("batch_id", batchID).Str("file", job.SourcePath).Msg("result discarded after cancel")
		return true
	}

	outPath, err := o.writer.Write(result, job.SourcePath, job.OutputDirectory, job.ModelName, job.Language)
	if err != nil && !errors.Is(err, output.ErrHistory) {
		fail(err)
		return false
	}
	if err != nil {
		o.log.Warn().Err(err).Str("output", outPath).Msg("transcript saved without history entry")
	}

	processed = o.state.FileSucceeded()
	queue <- message{
		event: jobs.Event{
			BatchID:    batchID,
			Type:       jobs.EventTypeFileResult,
			Message:    fmt.Sprintf("%s: saved %s", name, filepath.Base(outPath)),
			Progress:   jobs.Overall(processed, total, 0),
			Index:      index,
			SourcePath: job.SourcePath,
			OutputPath: outPath,
			Text:       result.Text,
			Processed:  processed,
			Total:      total,
		},
		file: &FileResult{
			Index:      index,
			SourcePath: job.SourcePath,
			OutputPath: outPath,
			Result:     result,
			Err:        err,
		},
	}
	return false
}

// dispatch is the only goroutine that touches callbacks and the bus.
func (o *Orchestrator) dispatch(queue <-chan message, cb Callbacks, done chan<- struct{}) {
	defer close(done)

	for msg := range queue {
		event := o.bus.Publish(msg.event)
		if cb.OnEvent != nil {
			cb.OnEvent(event)
		}

		switch event.Type {
		case jobs.EventTypeProgress:
			if cb.OnProgress != nil {
				cb.OnProgress(event.Message, event.Progress)
			}
		case jobs.EventTypeFileResult, jobs.EventTypeError:
			if cb.OnFileResult != nil && msg.file != nil {
				cb.OnFileResult(*msg.file)
			}
		case jobs.EventTypeDone:
			if cb.OnBatchDone != nil && msg.summary != nil {
				cb.OnBatchDone(*msg.summary)
			}
		}
	}
}

func summaryMessage(status domain.BatchStatus, processed, total int) string {
	if status == domain.BatchStatusCancelled {
		return fmt.Sprintf("cancelled: %d/%d files processed", processed, total)
	}
	return fmt.Sprintf("completed: %d/%d files", processed, total)
}
