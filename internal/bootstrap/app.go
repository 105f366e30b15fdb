package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"batch-transcriber/internal/batch"
	"batch-transcriber/internal/config"
	"batch-transcriber/internal/diagnostics"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/jobs"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// BatchEventName is the runtime event every batch event is pushed under.
const BatchEventName = "batch:event"

const modelDownloadTimeout = 30 * time.Minute

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*" + strings.Join(domain.SupportedExtensions(), ";*"),
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// modelDirSetter is implemented by runtimes that resolve tiers in a directory.
type modelDirSetter interface {
	SetModelDir(dir string)
}

// invalidator is implemented by engines that cache a loaded model.
type invalidator interface {
	Invalidate()
}

// App binds the batch pipeline to the Wails desktop runtime.
type App struct {
	settings     *config.Manager
	orchestrator *batch.Orchestrator
	checker      *diagnostics.Checker
	models       modelDirSetter
	engine       invalidator
	log          zerolog.Logger
	assets       fs.FS
	download     func(ctx context.Context, dest, url string) error

	mu          sync.Mutex
	runtimeCtx  context.Context
	diagnostics domain.DiagnosticReport
}

// New builds the application from options, .env and environment.
func New(opts ...config.LoaderOption) (*App, error) {
	return NewWithAssets(nil, opts...)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS, opts ...config.LoaderOption) (*App, error) {
	c, err := Load(opts...)
	if err != nil {
		return nil, err
	}
	return NewApp(c, assets), nil
}

// NewApp binds already wired components and runs startup diagnostics.
func NewApp(c *Components, assets fs.FS) *App {
	a := &App{
		settings:     c.Settings,
		orchestrator: c.Orchestrator,
		checker:      c.Checker,
		log:          c.Log.With().Str("component", "app").Logger(),
		assets:       assets,
		download: func(ctx context.Context, dest, url string) error {
			return downloadURLToFile(ctx, dest, url, modelDownloadTimeout)
		},
	}
	if c.Runtime != nil {
		a.models = c.Runtime
	}
	if c.Adapter != nil {
		a.engine = c.Adapter
	}
	a.refreshDiagnostics()
	return a
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Batch Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown cancels a running batch and waits for it to drain.
func (a *App) Shutdown(ctx context.Context) {
	if a.orchestrator.IsProcessing() {
		_ = a.orchestrator.RequestCancel()
	}
	a.orchestrator.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// GetSettings returns the current persisted settings.
func (a *App) GetSettings() domain.Settings {
	return a.settings.Settings()
}

// SaveSettings persists user-editable keys and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	current := a.settings.Settings()

	saved, err := a.settings.Update(settings.Model, settings.Language, settings.OutputDir)
	if err != nil {
		return domain.Settings{}, err
	}

	modelDir := strings.TrimSpace(settings.ModelDir)
	if modelDir != "" && modelDir != current.ModelDir {
		if err := a.settings.SetModelDir(modelDir); err != nil {
			return domain.Settings{}, err
		}
		a.applyModelDir(modelDir)
		saved = a.settings.Settings()
	}

	a.refreshDiagnostics()
	return saved, nil
}

// GetHistory returns recorded transcripts, newest first.
func (a *App) GetHistory() []domain.HistoryEntry {
	return lo.Reverse(a.settings.History())
}

// GetSupportedExtensions lists accepted media extensions.
func (a *App) GetSupportedExtensions() []string {
	return domain.SupportedExtensions()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns dependency checks against current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	return a.refreshDiagnostics()
}

// StartBatch queues files for sequential transcription. Empty model or
// output directory fall back to saved settings; an empty language means
// auto-detect.
func (a *App) StartBatch(files []string, model, language, outputDir string) (string, error) {
	settings := a.settings.Settings()
	if strings.TrimSpace(model) == "" {
		model = settings.Model
	}
	if strings.TrimSpace(outputDir) == "" {
		outputDir = settings.OutputDir
	}

	req := batch.Request{
		Files:     files,
		Model:     model,
		Language:  language,
		OutputDir: outputDir,
	}
	return a.orchestrator.Start(context.Background(), req, batch.Callbacks{OnEvent: a.emit})
}

// CancelBatch requests cancellation at the next file boundary.
func (a *App) CancelBatch() error {
	return a.orchestrator.RequestCancel()
}

// BatchState returns the current or last batch snapshot.
func (a *App) BatchState() domain.BatchState {
	return a.orchestrator.State()
}

// BatchEvents returns all events with sequence greater than sinceSeq.
func (a *App) BatchEvents(sinceSeq int64) []jobs.Event {
	return a.orchestrator.Events(sinceSeq)
}

// PickMediaFiles opens a native multi-select dialog for media files.
func (a *App) PickMediaFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media files",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	return lo.Uniq(lo.FilterMap(paths, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})), nil
}

// PickOutputDirectory opens a native directory picker for transcripts.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.pickDirectory("Select model directory")
}

func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.settings.Settings().OutputDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// emit pushes one dispatched batch event to the frontend.
func (a *App) emit(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, BatchEventName, event)
	}
}

// applyModelDir points the runtime at dir. The cached model is only marked
// stale; the orchestrator drops it when the next batch starts.
func (a *App) applyModelDir(dir string) {
	if a.models != nil {
		a.models.SetModelDir(dir)
	}
	if a.engine != nil {
		a.engine.Invalidate()
	}
}

func (a *App) refreshDiagnostics() domain.DiagnosticReport {
	if a.checker == nil {
		return domain.DiagnosticReport{}
	}
	report := a.checker.Run(a.settings.Settings())
	if report.HasFailures {
		a.log.Warn().Int("items", len(report.Items)).Msg("startup diagnostics reported failures")
	}

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
