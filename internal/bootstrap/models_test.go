package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestGetModelsMarksDownloaded verifies local model detection and selection.
func TestGetModelsMarksDownloaded(t *testing.T) {
	ta := newTestApp(t)
	modelDir := ta.app.GetSettings().ModelDir
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "ggml-base.bin"), []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	models := ta.app.GetModels()
	if len(models) != 5 {
		t.Fatalf("models = %d, want 5", len(models))
	}
	for _, m := range models {
		switch m.ID {
		case "base":
			if !m.Downloaded || m.LocalPath != filepath.Join(modelDir, "ggml-base.bin") {
				t.Fatalf("base = %+v, want downloaded", m)
			}
		case "tiny":
			if !m.Selected || m.Downloaded {
				t.Fatalf("tiny = %+v, want selected and not downloaded", m)
			}
		default:
			if m.Downloaded || m.Selected {
				t.Fatalf("%s = %+v", m.ID, m)
			}
		}
	}
}

// TestDownloadModelSelectsTier verifies the target path and settings update.
func TestDownloadModelSelectsTier(t *testing.T) {
	ta := newTestApp(t)
	var gotDest, gotURL string
	ta.app.download = func(ctx context.Context, dest, url string) error {
		gotDest, gotURL = dest, url
		return os.WriteFile(dest, []byte("model"), 0o644)
	}
	modelDir := ta.app.GetSettings().ModelDir
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}

	saved, err := ta.app.DownloadModel("small")
	if err != nil {
		t.Fatalf("DownloadModel() error = %v", err)
	}
	if saved.Model != "small" {
		t.Fatalf("model = %q, want small", saved.Model)
	}
	if gotDest != filepath.Join(modelDir, "ggml-small.bin") {
		t.Fatalf("dest = %q", gotDest)
	}
	if gotURL == "" {
		t.Fatal("expected catalog URL")
	}

	if _, err := ta.app.DownloadModel("gigantic"); err == nil {
		t.Fatal("expected unknown model error")
	}
}

// TestDownloadURLToFile checks streaming download and atomic placement.
func TestDownloadURLToFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ggml-data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "models", "ggml-tiny.bin")
	if err := downloadURLToFile(context.Background(), dest, server.URL+"/ggml-tiny.bin", time.Minute); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "ggml-data" {
		t.Fatalf("downloaded = %q, %v", data, err)
	}

	failed := filepath.Join(filepath.Dir(dest), "ggml-base.bin")
	if err := downloadURLToFile(context.Background(), failed, server.URL+"/missing", time.Minute); err == nil {
		t.Fatal("expected HTTP status error")
	}
	if _, err := os.Stat(failed); !os.IsNotExist(err) {
		t.Fatalf("failed download should leave no file, stat err = %v", err)
	}
	if _, err := os.Stat(failed + ".download"); !os.IsNotExist(err) {
		t.Fatalf("failed download should leave no temp file, stat err = %v", err)
	}
}
