package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"batch-transcriber/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Model != "tiny" {
		t.Fatalf("model = %q, want tiny", cfg.Model)
	}
	if cfg.Language != "" {
		t.Fatalf("language = %q, want auto-detect", cfg.Language)
	}
	if cfg.OutputDir == "" || cfg.ModelDir == "" {
		t.Fatal("expected non-empty directories")
	}
}

// TestStoreLoadMissingReturnsDefaults checks first-run behavior for both encodings.
func TestStoreLoadMissingReturnsDefaults(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml"} {
		store := NewStore(filepath.Join(t.TempDir(), "missing", name))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("%s: Load() error = %v", name, err)
		}
		if got.Model != "tiny" {
			t.Fatalf("%s: model = %q, want tiny", name, got.Model)
		}
	}
}

// TestStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	want := domain.Settings{
		Model:     "small",
		Language:  "ja",
		OutputDir: "/out",
		ModelDir:  "/models",
		History: []domain.HistoryEntry{
			{SourceFile: "/in/a.mp4", OutputPath: "/out/a.txt", Timestamp: "2026-10-16T09:00:00Z", ModelName: "small"},
		},
	}

	for _, name := range []string{"settings.json", "settings.yml"} {
		path := filepath.Join(t.TempDir(), "cfg", name)
		store := NewStore(path)

		if err := store.Save(want); err != nil {
			t.Fatalf("%s: Save() error = %v", name, err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("%s: Load() error = %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: settings = %+v, want %+v", name, got, want)
		}

		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Fatalf("%s: expected only the store file, found %d entries", name, len(entries))
		}
	}
}

// TestStoreSelectsEncoding verifies extension-based store selection.
func TestStoreSelectsEncoding(t *testing.T) {
	if _, ok := NewStore("/x/config.YAML").(*YAMLStore); !ok {
		t.Fatal("expected YAML store")
	}
	if _, ok := NewStore("/x/config.json").(*JSONStore); !ok {
		t.Fatal("expected JSON store")
	}
}

// TestJSONStoreFillsMissingKeys checks merge with defaults on partial files.
func TestJSONStoreFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"language":"en"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "en" || got.Model != "tiny" || got.History == nil {
		t.Fatalf("settings = %+v", got)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
