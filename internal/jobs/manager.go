package jobs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"batch-transcriber/internal/domain"
)

// ErrBatchAlreadyRunning is returned when starting a second active batch.
var ErrBatchAlreadyRunning = errors.New("batch already running")

// ErrNoRunningBatch is returned when cancel is requested for idle state.
var ErrNoRunningBatch = errors.New("no running batch")

// Manager tracks the single allowed active batch and its transitions.
// The cancel flag is read by the worker without taking the lock.
type Manager struct {
	mu      sync.RWMutex
	current domain.BatchState
	cancel  atomic.Bool
	now     func() time.Time
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.BatchState{Status: domain.BatchStatusIdle},
		now:     time.Now,
	}
}

// Begin moves the manager to running for a new batch of total files.
func (m *Manager) Begin(batchID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.IsProcessing {
		return ErrBatchAlreadyRunning
	}
	if !isValidTransition(m.current.Status, domain.BatchStatusRunning) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, domain.BatchStatusRunning)
	}

	m.cancel.Store(false)
	m.current = domain.BatchState{
		ID:           batchID,
		Status:       domain.BatchStatusRunning,
		IsProcessing: true,
		TotalCount:   total,
		StartedAt:    m.now().UTC(),
	}
	return nil
}

// RequestCancel raises the cooperative cancel flag for the running batch.
func (m *Manager) RequestCancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.IsProcessing {
		return ErrNoRunningBatch
	}
	m.cancel.Store(true)
	m.current.CancelRequested = true
	return nil
}

// CancelRequested reports whether the running batch should stop.
func (m *Manager) CancelRequested() bool {
	return m.cancel.Load()
}

// FileSucceeded increments the processed counter and returns the new value.
func (m *Manager) FileSucceeded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ProcessedCount++
	return m.current.ProcessedCount
}

// Finish records the terminal status and clears the processing and cancel flags.
func (m *Manager) Finish(status domain.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	m.current.IsProcessing = false
	m.current.CancelRequested = false
	m.cancel.Store(false)
	return nil
}

// Snapshot returns a copy of the current batch state.
func (m *Manager) Snapshot() domain.BatchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsProcessing reports whether a batch is between Begin and Finish.
func (m *Manager) IsProcessing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.IsProcessing
}

// isValidTransition enforces the allowed batch state machine edges.
func isValidTransition(from, to domain.BatchStatus) bool {
	switch from {
	case domain.BatchStatusIdle, domain.BatchStatusCompleted, domain.BatchStatusCancelled:
		return to == domain.BatchStatusRunning
	case domain.BatchStatusRunning:
		return to == domain.BatchStatusCompleted || to == domain.BatchStatusCancelled
	default:
		return false
	}
}
