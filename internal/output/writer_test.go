package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"batch-transcriber/internal/domain"
)

// fakeHistory collects entries or fails on demand.
type fakeHistory struct {
	entries []domain.HistoryEntry
	err     error
}

// AppendHistory records the entry unless configured to fail.
func (h *fakeHistory) AppendHistory(entry domain.HistoryEntry) error {
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, entry)
	return nil
}

var fixed = time.Date(2026, 10, 16, 9, 8, 7, 0, time.Local)

func sampleResult() domain.TranscriptionResult {
	return domain.TranscriptionResult{
		Text: "hello world",
		Segments: []domain.Segment{
			{Start: 0.0, End: 1.5, Text: "hello"},
			{Start: 1.5, End: 3.2, Text: "world"},
		},
	}
}

// TestWriteDocumentFormat verifies header, text and segment lines.
func TestWriteDocumentFormat(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "out")
	history := &fakeHistory{}
	w := NewWriterForTests(history, func() time.Time { return fixed })

	path, err := w.Write(sampleResult(), "/media/meeting.mp4", outDir, "small", "")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if path != filepath.Join(outDir, "meeting_20261016090807.txt") {
		t.Fatalf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := strings.Join([]string{
		"# Transcript: meeting.mp4",
		"# Date: 2026-10-16 09:08:07",
		"# Model: small",
		"# Language: auto-detect",
		"",
		"hello world",
		"",
		"## Segment detail",
		"[00:00:00 --> 00:00:01] hello",
		"[00:00:01 --> 00:00:03] world",
		"",
	}, "\n")
	if string(data) != want {
		t.Fatalf("document =\n%s\nwant\n%s", data, want)
	}

	if len(history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.entries))
	}
	entry := history.entries[0]
	if entry.OutputPath != path || entry.SourceFile != "/media/meeting.mp4" || entry.ModelName != "small" {
		t.Fatalf("entry = %+v", entry)
	}
	if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
		t.Fatalf("timestamp %q is not ISO-8601: %v", entry.Timestamp, err)
	}
}

// TestRenderWithoutSegments omits the detail section.
func TestRenderWithoutSegments(t *testing.T) {
	doc := Render(domain.TranscriptionResult{Text: "just text"}, "a.wav", fixed, "tiny", "ja")
	if strings.Contains(doc, "## Segment detail") {
		t.Fatalf("unexpected detail section:\n%s", doc)
	}
	if !strings.Contains(doc, "# Language: ja\n") {
		t.Fatalf("language header missing:\n%s", doc)
	}
}

// TestWriteCollisionAddsSuffix checks same-second repeated writes.
func TestWriteCollisionAddsSuffix(t *testing.T) {
	outDir := t.TempDir()
	w := NewWriterForTests(nil, func() time.Time { return fixed })

	first, err := w.Write(sampleResult(), "/media/clip.mp3", outDir, "tiny", "en")
	if err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	second, err := w.Write(sampleResult(), "/media/clip.mp3", outDir, "tiny", "en")
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	if first == second {
		t.Fatalf("paths collide: %q", first)
	}
	if filepath.Base(second) != "clip_20261016090807_2.txt" {
		t.Fatalf("second name = %q", filepath.Base(second))
	}
}

// TestWriteHistoryFailureKeepsFile checks history errors are distinguishable.
func TestWriteHistoryFailureKeepsFile(t *testing.T) {
	w := NewWriterForTests(&fakeHistory{err: errors.New("disk full")}, func() time.Time { return fixed })

	path, err := w.Write(sampleResult(), "/media/clip.wav", t.TempDir(), "tiny", "")
	if !errors.Is(err, ErrHistory) {
		t.Fatalf("error = %v, want ErrHistory", err)
	}
	if !domain.IsKind(err, domain.KindIO) {
		t.Fatalf("kind = %q, want io", domain.KindOf(err))
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("transcript should exist: %v", statErr)
	}
}

// TestWriteUncreatableDirectory checks IO error when the dir cannot exist.
func TestWriteUncreatableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	w := NewWriterForTests(nil, func() time.Time { return fixed })
	path, err := w.Write(sampleResult(), "/media/clip.wav", filepath.Join(blocker, "out"), "tiny", "")
	if !domain.IsKind(err, domain.KindIO) {
		t.Fatalf("error = %v, want io kind", err)
	}
	if path != "" {
		t.Fatalf("path = %q, want empty", path)
	}
}

// TestFormatClockTruncates verifies fractional seconds are dropped.
func TestFormatClockTruncates(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{1.999, "00:00:01"},
		{59.9, "00:00:59"},
		{3661.5, "01:01:01"},
		{-3, "00:00:00"},
		{36000, "10:00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.in); got != tc.want {
			t.Fatalf("FormatClock(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestFileName verifies naming from base name and clock.
func TestFileName(t *testing.T) {
	if got := FileName("/x/y/talk.final.mkv", fixed); got != "talk.final_20261016090807.txt" {
		t.Fatalf("FileName() = %q", got)
	}
}
