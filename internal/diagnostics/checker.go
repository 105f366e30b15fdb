package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// Tools names the external executables the pipeline shells out to.
type Tools struct {
	FFmpeg  string
	Whisper string
}

// Checker validates external tools, model files and output paths.
type Checker struct {
	tools      Tools
	device     func() string
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies. device reports the
// compute device chosen by the engine adapter and may be nil.
func NewChecker(tools Tools, device func() string) *Checker {
	return &Checker{
		tools:      withDefaultTools(tools),
		device:     device,
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

func withDefaultTools(t Tools) Tools {
	if strings.TrimSpace(t.FFmpeg) == "" {
		t.FFmpeg = "ffmpeg"
	}
	if strings.TrimSpace(t.Whisper) == "" {
		t.Whisper = "whisper-cli"
	}
	return t
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	device := ""
	if c.device != nil {
		device = c.device()
	}

	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", c.tools.FFmpeg),
		c.checkTool("whisper", c.tools.Whisper),
		c.checkModel(settings.Model, settings.ModelDir),
		c.checkOutputDir(settings.OutputDir),
		checkDevice(device),
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: lo.SomeBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Device: device,
		Items:  items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(id, binary string) domain.DiagnosticItem {
	path, err := c.lookPath(binary)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + id,
			Name:    binary,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", binary),
			Hint:    "Install it and ensure the binary is available on PATH before starting a batch.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + id,
		Name:    binary,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModel verifies the selected model file exists. Other models in the
// directory downgrade a miss to a warning.
func (c *Checker) checkModel(model, modelDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Speech model",
	}

	if ext := strings.ToLower(filepath.Ext(model)); ext == ".bin" || ext == ".gguf" {
		if _, err := c.stat(model); err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Model file does not exist: %s", model)
			item.Hint = "Select a model tier or point to an existing ggml model file."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", model)
		return item
	}

	tier, ok := domain.ModelTierByID(model)
	if !ok {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown model: %q", model)
		item.Hint = "Choose one of: " + strings.Join(domain.ModelTierIDs(), ", ")
		return item
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set a directory containing whisper.cpp ggml models."
		return item
	}

	if _, err := c.stat(filepath.Join(modelDir, tier.FileName)); err == nil {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("%s model found in %s", tier.Name, modelDir)
		return item
	}

	entries, err := c.readDir(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model directory does not exist: %s", modelDir)
		} else {
			item.Message = fmt.Sprintf("Cannot read model directory: %s", modelDir)
		}
		item.Hint = fmt.Sprintf("Download %s from %s into the model directory.", tier.FileName, tier.URL)
		return item
	}

	others := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		return entry.Name(), !entry.IsDir() && (ext == ".bin" || ext == ".gguf")
	})
	item.Hint = fmt.Sprintf("Download %s from %s into %s.", tier.FileName, tier.URL, modelDir)
	if len(others) > 0 {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("%s is missing; other models present: %s", tier.FileName, strings.Join(others, ", "))
		return item
	}
	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelDir)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where transcript files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for transcripts."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// checkDevice reports the compute device; CPU only is a warning.
func checkDevice(device string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "device",
		Name: "Compute device",
	}

	switch device {
	case "gpu":
		item.Status = domain.DiagnosticStatusPass
		item.Message = "GPU acceleration available."
	case "cpu":
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Running on CPU; larger models will be slow."
		item.Hint = "Install a CUDA or Metal build of whisper.cpp for acceleration."
	default:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Compute device not yet selected."
	}
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	tools Tools,
	device func() string,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	c := NewChecker(tools, device)
	c.lookPath = lookPath
	c.stat = stat
	c.readDir = readDir
	c.mkdirAll = mkdirAll
	c.createTemp = createTemp
	c.remove = remove
	return c
}
