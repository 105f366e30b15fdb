package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"batch-transcriber/internal/domain"
)

func foundTool(name string) (string, error) { return "/usr/local/bin/" + name, nil }

func newTestChecker(lookPath func(string) (string, error), device string) *Checker {
	return NewCheckerForTests(
		Tools{FFmpeg: "ffmpeg", Whisper: "whisper-cli"},
		func() string { return device },
		lookPath,
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)
}

func writeModel(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
}

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	writeModel(t, modelDir, "ggml-base.bin")

	report := newTestChecker(foundTool, "gpu").Run(domain.Settings{
		Model:     "base",
		ModelDir:  modelDir,
		OutputDir: filepath.Join(root, "output"),
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if report.Device != "gpu" {
		t.Fatalf("device = %q, want gpu", report.Device)
	}
	assertStatusByID(t, report, "model", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "device", domain.DiagnosticStatusPass)

	entries, _ := os.ReadDir(filepath.Join(root, "output"))
	if len(entries) != 0 {
		t.Fatalf("write check left %d files behind", len(entries))
	}
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	checker := newTestChecker(func(string) (string, error) { return "", errors.New("not found") }, "cpu")

	report := checker.Run(domain.Settings{
		Model:     "tiny",
		ModelDir:  "/path/that/does/not/exist",
		OutputDir: "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_whisper", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "device", domain.DiagnosticStatusWarn)
}

// TestCheckerRunModelDirectoryWithoutModelFilesFails validates model check.
func TestCheckerRunModelDirectoryWithoutModelFilesFails(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	writeModel(t, modelDir, "README.txt")

	report := newTestChecker(foundTool, "cpu").Run(domain.Settings{
		Model:     "tiny",
		ModelDir:  modelDir,
		OutputDir: filepath.Join(root, "output"),
	})

	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
}

// TestCheckerRunOtherModelWarns checks a missing tier with other models present.
func TestCheckerRunOtherModelWarns(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	writeModel(t, modelDir, "ggml-tiny.bin")

	report := newTestChecker(foundTool, "gpu").Run(domain.Settings{
		Model:     "large",
		ModelDir:  modelDir,
		OutputDir: filepath.Join(root, "output"),
	})

	assertStatusByID(t, report, "model", domain.DiagnosticStatusWarn)
	if report.HasFailures {
		t.Fatalf("warnings should not count as failures: %+v", report.Items)
	}
}

// TestCheckerRunDirectModelFile validates a model given as a file path.
func TestCheckerRunDirectModelFile(t *testing.T) {
	root := t.TempDir()
	writeModel(t, root, "custom.gguf")

	checker := newTestChecker(foundTool, "cpu")
	report := checker.Run(domain.Settings{
		Model:     filepath.Join(root, "custom.gguf"),
		OutputDir: filepath.Join(root, "output"),
	})
	assertStatusByID(t, report, "model", domain.DiagnosticStatusPass)

	report = checker.Run(domain.Settings{
		Model:     filepath.Join(root, "absent.bin"),
		OutputDir: filepath.Join(root, "output"),
	})
	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
}

// TestCheckerRunUnknownModel validates rejection of names outside the catalog.
func TestCheckerRunUnknownModel(t *testing.T) {
	root := t.TempDir()
	report := newTestChecker(foundTool, "cpu").Run(domain.Settings{
		Model:     "huge",
		ModelDir:  root,
		OutputDir: filepath.Join(root, "output"),
	})
	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s (%s)", id, item.Status, want, item.Message)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
