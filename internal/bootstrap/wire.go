package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"batch-transcriber/internal/batch"
	"batch-transcriber/internal/config"
	"batch-transcriber/internal/diagnostics"
	"batch-transcriber/internal/engine"
	"batch-transcriber/internal/jobs"
	"batch-transcriber/internal/logging"
	"batch-transcriber/internal/media"
	"batch-transcriber/internal/output"
)

// ServiceName tags every log line.
const ServiceName = "batch-transcriber"

// Components is the fully wired pipeline shared by the desktop shell and the CLI.
type Components struct {
	Options      config.Options
	Log          zerolog.Logger
	Settings     *config.Manager
	Runtime      *engine.WhisperCPP
	Adapter      *engine.Adapter
	Orchestrator *batch.Orchestrator
	Checker      *diagnostics.Checker
}

// Load reads runtime options, builds the logger and wires all components.
func Load(opts ...config.LoaderOption) (*Components, error) {
	options, err := config.LoadOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	return Wire(options, logging.New(options.Log, ServiceName))
}

// Wire builds components from already loaded options.
func Wire(opts config.Options, log zerolog.Logger) (*Components, error) {
	manager, err := config.NewManager(config.NewStore(opts.StorePath))
	if err != nil {
		return nil, err
	}
	settings := manager.Settings()

	device, pinned, err := engine.ParseDevice(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("parse device: %w", err)
	}

	runtime := engine.NewWhisperCPP(opts.WhisperPath, settings.ModelDir, log)
	var adapterOpts []engine.AdapterOption
	if pinned {
		adapterOpts = append(adapterOpts, engine.WithDevice(device))
	}
	adapter := engine.NewAdapter(runtime, log, adapterOpts...)

	orchestrator := batch.New(batch.Deps{
		Normalizer: media.NewNormalizer(opts.FFmpegPath, opts.TempDir, log),
		Engine:     adapter,
		Writer:     output.NewWriter(manager, log),
		Settings:   manager,
		State:      jobs.NewManager(),
		Bus:        jobs.NewEventBus(opts.EventBuffer),
		Log:        log,
	})

	checker := diagnostics.NewChecker(
		diagnostics.Tools{FFmpeg: opts.FFmpegPath, Whisper: opts.WhisperPath},
		func() string { return string(adapter.Device()) },
	)

	log.Debug().
		Str("store", opts.StorePath).
		Str("device", string(adapter.Device())).
		Bool("device_pinned", pinned).
		Msg("components wired")

	return &Components{
		Options:      opts,
		Log:          log,
		Settings:     manager,
		Runtime:      runtime,
		Adapter:      adapter,
		Orchestrator: orchestrator,
		Checker:      checker,
	}, nil
}
