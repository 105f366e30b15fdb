// Package media converts arbitrary media files into canonical mono 16kHz PCM16 WAV.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batch-transcriber/internal/command"
	"batch-transcriber/internal/domain"
)

const (
	SampleRate = 16000
	Channels   = 1
	Encoding   = "pcm_s16le"
)

// NormalizedAudio is a temporary canonical audio file owned by one job.
type NormalizedAudio struct {
	Path       string
	SampleRate int
	Channels   int
	Encoding   string
	Log        command.Log

	remove func(string) error
}

// Release deletes the temporary file. Errors are swallowed and repeated
// calls are no-ops.
func (a *NormalizedAudio) Release() {
	if a == nil || a.Path == "" || a.remove == nil {
		return
	}
	_ = a.remove(a.Path)
	a.Path = ""
}

// Normalizer invokes the external decoder.
type Normalizer struct {
	ffmpegPath string
	tempDir    string
	runner     command.Runner
	now        func() time.Time
	createTemp func(dir, pattern string) (*os.File, error)
	remove     func(string) error
	log        zerolog.Logger
}

// NewNormalizer constructs the production normalizer. An empty tempDir
// selects the OS temp directory.
func NewNormalizer(ffmpegPath, tempDir string, log zerolog.Logger) *Normalizer {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		runner:     &command.ExecRunner{},
		now:        time.Now,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		log:        log.With().Str("component", "normalizer").Logger(),
	}
}

// NewNormalizerForTests constructs a normalizer with injectable dependencies.
func NewNormalizerForTests(
	ffmpegPath string,
	tempDir string,
	runner command.Runner,
	now func() time.Time,
	remove func(string) error,
) *Normalizer {
	n := NewNormalizer(ffmpegPath, tempDir, zerolog.Nop())
	n.runner = runner
	if now != nil {
		n.now = now
	}
	if remove != nil {
		n.remove = remove
	}
	return n
}

// Normalize converts sourcePath into a temp WAV file. The caller must
// Release the returned audio on every exit path.
func (n *Normalizer) Normalize(ctx context.Context, sourcePath string) (*NormalizedAudio, error) {
	dir := n.tempDir
	if dir == "" {
		dir = os.TempDir()
	}

	pattern := fmt.Sprintf("%s_%s_*.wav", SafeBaseName(sourcePath), n.now().Format("20060102150405"))
	file, err := n.createTemp(dir, pattern)
	if err != nil {
		return nil, &domain.Error{
			Kind:    domain.KindIO,
			Path:    sourcePath,
			Message: "failed to create temporary audio file",
			Err:     err,
		}
	}
	destPath := file.Name()
	_ = file.Close()

	args := BuildFFmpegArgs(sourcePath, destPath)
	res, runErr := n.runner.Run(ctx, n.ffmpegPath, args...)
	cmdLog := command.NewLog(n.ffmpegPath, args, res)
	n.log.Debug().
		Str("source", sourcePath).
		Int("exit_code", res.ExitCode).
		Msg("decoder finished")

	if runErr != nil {
		_ = n.remove(destPath)
		if command.IsNotFound(runErr) {
			return nil, &domain.Error{
				Kind:    domain.KindDecode,
				Path:    sourcePath,
				Message: fmt.Sprintf("decoder not found (%s): install ffmpeg and add it to PATH", n.ffmpegPath),
				Err:     runErr,
			}
		}
		return nil, &domain.Error{
			Kind:    domain.KindDecode,
			Path:    sourcePath,
			Message: fmt.Sprintf("audio extraction failed for %s (exit=%d)", filepath.Base(sourcePath), res.ExitCode),
			Stderr:  strings.TrimSpace(res.Stderr),
			Err:     runErr,
		}
	}

	return &NormalizedAudio{
		Path:       destPath,
		SampleRate: SampleRate,
		Channels:   Channels,
		Encoding:   Encoding,
		Log:        cmdLog,
		remove:     n.remove,
	}, nil
}

// BuildFFmpegArgs builds the fixed decoder argument contract.
func BuildFFmpegArgs(sourcePath, destPath string) []string {
	return []string{
		"-i", sourcePath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", Encoding,
		"-y",
		destPath,
	}
}

// SafeBaseName strips the extension and replaces characters outside
// [A-Za-z0-9_.-] with underscores.
func SafeBaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == '-':
			return r
		default:
			return '_'
		}
	}, base)

	if safe == "" || safe == "." {
		return "audio"
	}
	return safe
}
