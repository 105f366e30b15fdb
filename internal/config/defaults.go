package config

import (
	"os"
	"path/filepath"

	"batch-transcriber/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Model:     domain.DefaultModel,
		Language:  "",
		OutputDir: filepath.Join(homeDir, "Documents", "Transcriptions"),
		ModelDir:  filepath.Join(homeDir, ".batch-transcriber", "models"),
		History:   []domain.HistoryEntry{},
	}
}

// applyDefaults fills keys missing from a persisted file.
func applyDefaults(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = def.ModelDir
	}
	if cfg.History == nil {
		cfg.History = []domain.HistoryEntry{}
	}
	return cfg
}
