package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// HistoryLimit caps retained history entries; oldest are evicted first.
const HistoryLimit = 100

// Manager is a concurrency-safe view over a Store. Every mutation is
// persisted immediately.
type Manager struct {
	mu       sync.Mutex
	store    Store
	settings domain.Settings
}

// NewManager loads settings from store.
func NewManager(store Store) (*Manager, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &Manager{store: store, settings: settings}, nil
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() domain.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSettings(m.settings)
}

// Update applies the user-editable keys and persists them. History is kept.
func (m *Manager) Update(model, language, outputDir string) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSettings(m.settings)
	next.Model = strings.TrimSpace(model)
	next.Language = domain.NormalizeLanguage(language)
	next.OutputDir = strings.TrimSpace(outputDir)

	if err := m.store.Save(next); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	m.settings = next
	return cloneSettings(next), nil
}

// SetModelDir changes where model files are looked up.
func (m *Manager) SetModelDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSettings(m.settings)
	next.ModelDir = strings.TrimSpace(dir)
	if err := m.store.Save(next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	m.settings = next
	return nil
}

// AppendHistory adds entry, trims to HistoryLimit and persists.
func (m *Manager) AppendHistory(entry domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneSettings(m.settings)
	next.History = append(next.History, entry)
	if len(next.History) > HistoryLimit {
		next.History = lo.Subset(next.History, -HistoryLimit, HistoryLimit)
	}

	if err := m.store.Save(next); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	m.settings = next
	return nil
}

// History returns recorded entries, oldest first.
func (m *Manager) History() []domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryEntry(nil), m.settings.History...)
}

func cloneSettings(s domain.Settings) domain.Settings {
	s.History = append([]domain.HistoryEntry{}, s.History...)
	return s
}
