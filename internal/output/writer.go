// Package output renders transcripts into annotated text documents and
// records them in history.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batch-transcriber/internal/domain"
)

// maxNameAttempts bounds the disambiguating suffix search.
const maxNameAttempts = 1000

// ErrHistory marks a transcript that was written but not recorded in history.
var ErrHistory = errors.New("history not persisted")

// HistoryRecorder persists history entries.
type HistoryRecorder interface {
	AppendHistory(entry domain.HistoryEntry) error
}

// Writer writes transcript documents into an output directory.
type Writer struct {
	history  HistoryRecorder
	now      func() time.Time
	mkdirAll func(string, os.FileMode) error
	openFile func(string, int, os.FileMode) (*os.File, error)
	log      zerolog.Logger
}

// NewWriter constructs a writer. history may be nil.
func NewWriter(history HistoryRecorder, log zerolog.Logger) *Writer {
	return &Writer{
		history:  history,
		now:      time.Now,
		mkdirAll: os.MkdirAll,
		openFile: os.OpenFile,
		log:      log.With().Str("component", "writer").Logger(),
	}
}

// NewWriterForTests constructs a writer with a fixed clock.
func NewWriterForTests(history HistoryRecorder, now func() time.Time) *Writer {
	w := NewWriter(history, zerolog.Nop())
	w.now = now
	return w
}

// Write renders result and stores it as {base}_{YYYYMMDDHHMMSS}.txt under
// outputDir, then appends a history entry. When only the history update
// fails the output path is returned together with an error wrapping ErrHistory.
func (w *Writer) Write(result domain.TranscriptionResult, sourcePath, outputDir, modelName, language string) (string, error) {
	if err := w.mkdirAll(outputDir, 0o755); err != nil {
		return "", &domain.Error{
			Kind:    domain.KindIO,
			Path:    outputDir,
			Message: fmt.Sprintf("cannot create output directory: %s", outputDir),
			Err:     err,
		}
	}

	now := w.now()
	doc := Render(result, filepath.Base(sourcePath), now, modelName, language)

	outPath, err := w.create(outputDir, FileName(sourcePath, now), []byte(doc))
	if err != nil {
		return "", &domain.Error{
			Kind:    domain.KindIO,
			Path:    sourcePath,
			Message: "failed to write transcript",
			Err:     err,
		}
	}

	if w.history != nil {
		entry := domain.HistoryEntry{
			SourceFile: sourcePath,
			OutputPath: outPath,
			Timestamp:  now.Format(time.RFC3339),
			ModelName:  modelName,
		}
		if err := w.history.AppendHistory(entry); err != nil {
			w.log.Warn().Err(err).Str("output", outPath).Msg("history append failed")
			return outPath, &domain.Error{
				Kind:    domain.KindIO,
				Path:    outPath,
				Message: "transcript saved but history was not persisted",
				Err:     fmt.Errorf("%w: %w", ErrHistory, err),
			}
		}
	}

	return outPath, nil
}

// create writes data to name in dir, adding _2, _3, ... when the name is taken.
func (w *Writer) create(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		candidate := name
		if attempt > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, attempt, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := w.openFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}

	return "", fmt.Errorf("no free file name for %s after %d attempts", name, maxNameAttempts)
}

// FileName builds {base_name_without_extension}_{YYYYMMDDHHMMSS}.txt.
func FileName(sourcePath string, at time.Time) string {
	base := filepath.Base(sourcePath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return fmt.Sprintf("%s_%s.txt", name, at.Format("20060102150405"))
}

// Render formats the header block, full text and optional segment detail.
func Render(result domain.TranscriptionResult, sourceName string, generated time.Time, modelName, language string) string {
	lang := domain.NormalizeLanguage(language)
	if lang == "" {
		lang = domain.AutoDetectLabel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript: %s\n", sourceName)
	fmt.Fprintf(&b, "# Date: %s\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "# Model: %s\n", modelName)
	fmt.Fprintf(&b, "# Language: %s\n", lang)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(result.Text))
	b.WriteString("\n")

	if len(result.Segments) > 0 {
		b.WriteString("\n## Segment detail\n")
		for _, seg := range result.Segments {
			fmt.Fprintf(&b, "[%s --> %s] %s\n", FormatClock(seg.Start), FormatClock(seg.End), strings.TrimSpace(seg.Text))
		}
	}
	return b.String()
}

// FormatClock renders seconds as HH:MM:SS, dropping fractional seconds.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
