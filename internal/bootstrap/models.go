package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// ModelOption is one catalog tier with its local download state.
type ModelOption struct {
	domain.ModelTier
	Selected   bool   `json:"selected"`
	Downloaded bool   `json:"downloaded"`
	LocalPath  string `json:"localPath,omitempty"`
}

// GetModels returns the model tiers, marking the ones present in the model directory.
func (a *App) GetModels() []ModelOption {
	settings := a.settings.Settings()
	return lo.Map(domain.ModelTiers(), func(tier domain.ModelTier, _ int) ModelOption {
		option := ModelOption{ModelTier: tier, Selected: tier.ID == settings.Model}
		candidate := filepath.Join(settings.ModelDir, tier.FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			option.Downloaded = true
			option.LocalPath = candidate
		}
		return option
	})
}

// DownloadModel fetches a tier into the model directory and selects it.
func (a *App) DownloadModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("model id is required")
	}

	tier, found := domain.ModelTierByID(id)
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown model id: %s", id)
	}

	settings := a.settings.Settings()
	if strings.TrimSpace(settings.ModelDir) == "" {
		return domain.Settings{}, fmt.Errorf("model directory is not configured")
	}

	target := filepath.Join(settings.ModelDir, tier.FileName)
	a.log.Info().Str("model", tier.ID).Str("target", target).Msg("downloading model")
	if err := a.download(context.Background(), target, tier.URL); err != nil {
		return domain.Settings{}, fmt.Errorf("download model %s: %w", tier.Name, err)
	}

	saved, err := a.settings.Update(tier.ID, settings.Language, settings.OutputDir)
	if err != nil {
		return domain.Settings{}, err
	}

	a.refreshDiagnostics()
	return saved, nil
}

// downloadURLToFile streams sourceURL into destinationPath via a sibling
// .download file that is renamed into place on success.
func downloadURLToFile(ctx context.Context, destinationPath string, sourceURL string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", ServiceName)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}

	return nil
}
