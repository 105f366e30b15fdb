package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"batch-transcriber/internal/command"
	"batch-transcriber/internal/domain"
)

// WhisperCPP runs models through the whisper.cpp command line tool.
type WhisperCPP struct {
	binary   string
	mu       sync.RWMutex
	modelDir string
	runner   command.Runner
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	goos     string
	goarch   string
	log      zerolog.Logger
}

// NewWhisperCPP builds the production runtime.
func NewWhisperCPP(binary, modelDir string, log zerolog.Logger) *WhisperCPP {
	if strings.TrimSpace(binary) == "" {
		binary = "whisper-cli"
	}
	return &WhisperCPP{
		binary:   binary,
		modelDir: modelDir,
		runner:   &command.ExecRunner{},
		lookPath: exec.LookPath,
		stat:     os.Stat,
		goos:     goruntime.GOOS,
		goarch:   goruntime.GOARCH,
		log:      log.With().Str("component", "whisper.cpp").Logger(),
	}
}

// NewWhisperCPPForTests builds a runtime with injectable dependencies.
func NewWhisperCPPForTests(
	binary string,
	modelDir string,
	runner command.Runner,
	lookPath func(string) (string, error),
	goos string,
	goarch string,
) *WhisperCPP {
	w := NewWhisperCPP(binary, modelDir, zerolog.Nop())
	w.runner = runner
	w.lookPath = lookPath
	w.goos = goos
	w.goarch = goarch
	return w
}

// SetModelDir changes the directory tier names resolve against.
func (w *WhisperCPP) SetModelDir(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modelDir = dir
}

// ModelDir returns the directory tier names resolve against.
func (w *WhisperCPP) ModelDir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.modelDir
}

// AcceleratorAvailable reports a CUDA driver on PATH or Apple Silicon Metal.
func (w *WhisperCPP) AcceleratorAvailable() bool {
	if w.goos == "darwin" && w.goarch == "arm64" {
		return true
	}
	if _, err := w.lookPath("nvidia-smi"); err == nil {
		return true
	}
	return false
}

// Load resolves modelName to a model file and returns a handle bound to device.
func (w *WhisperCPP) Load(ctx context.Context, modelName string, device Device) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := w.ResolveModelPath(modelName)
	if err != nil {
		return nil, err
	}

	if _, err := w.lookPath(w.binary); err != nil {
		return nil, fmt.Errorf("whisper.cpp binary not found (%s): %w", w.binary, err)
	}

	return &whisperModel{
		binary:    w.binary,
		modelPath: path,
		device:    device,
		runner:    w.runner,
		log:       w.log,
	}, nil
}

// ResolveModelPath maps a tier id or a direct model file path to a file on disk.
func (w *WhisperCPP) ResolveModelPath(modelName string) (string, error) {
	name := strings.TrimSpace(modelName)
	if name == "" {
		return "", fmt.Errorf("model name is required")
	}

	var path string
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case strings.ContainsRune(name, filepath.Separator) || ext == ".bin" || ext == ".gguf":
		path = name
	default:
		fileName := "ggml-" + name + ".bin"
		if tier, ok := domain.ModelTierByID(name); ok {
			fileName = tier.FileName
		}
		path = filepath.Join(w.ModelDir(), fileName)
	}

	info, err := w.stat(path)
	if err != nil {
		return "", fmt.Errorf("model file not available: %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("model path is a directory: %s", path)
	}
	return path, nil
}

type whisperModel struct {
	binary    string
	modelPath string
	device    Device
	runner    command.Runner
	log       zerolog.Logger
}

// Transcribe runs whisper.cpp with JSON output and parses its segments.
func (m *whisperModel) Transcribe(ctx context.Context, audioPath string, opts Options) (Output, error) {
	tempDir, err := os.MkdirTemp("", "batch-transcriber-whisper-*")
	if err != nil {
		return Output{}, fmt.Errorf("create whisper workspace: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outBase := filepath.Join(tempDir, "transcript")
	args := BuildWhisperArgs(m.modelPath, audioPath, outBase, opts.Language, m.device)

	res, runErr := m.runner.Run(ctx, m.binary, args...)
	m.log.Debug().Str("audio", audioPath).Int("exit_code", res.ExitCode).Msg("whisper.cpp finished")
	if runErr != nil {
		stderr := strings.TrimSpace(res.Stderr)
		if stderr != "" {
			return Output{}, fmt.Errorf("whisper.cpp exit=%d: %s: %w", res.ExitCode, stderr, runErr)
		}
		return Output{}, fmt.Errorf("whisper.cpp exit=%d: %w", res.ExitCode, runErr)
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return Output{}, fmt.Errorf("whisper.cpp completed but JSON output is missing: %w", err)
	}
	return ParseWhisperJSON(data)
}

// BuildWhisperArgs builds whisper.cpp args for JSON transcript export.
// whisper.cpp defaults to English, so "no hint" is sent as "-l auto".
func BuildWhisperArgs(modelPath, audioPath, outBase, language string, device Device) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
	}

	if lang := domain.NormalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	} else {
		args = append(args, "-l", "auto")
	}
	if device == DeviceCPU {
		args = append(args, "-ng")
	}

	return args
}

type whisperJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseWhisperJSON converts whisper.cpp -oj output (offsets in ms) into Output.
func ParseWhisperJSON(data []byte) (Output, error) {
	var parsed whisperJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Output{}, fmt.Errorf("parse whisper.cpp output: %w", err)
	}

	out := Output{
		Language: parsed.Result.Language,
		Segments: make([]domain.Segment, 0, len(parsed.Transcription)),
	}
	texts := make([]string, 0, len(parsed.Transcription))
	for _, item := range parsed.Transcription {
		text := strings.TrimSpace(item.Text)
		out.Segments = append(out.Segments, domain.Segment{
			Start: float64(item.Offsets.From) / 1000,
			End:   float64(item.Offsets.To) / 1000,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}
	out.Text = strings.Join(texts, " ")
	return out, nil
}
