package domain

import "time"

// BatchStatus tracks the orchestrator state machine for one batch run.
type BatchStatus string

const (
	BatchStatusIdle      BatchStatus = "idle"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// ProgressIndeterminate marks a progress report that is not a percentage.
const ProgressIndeterminate = -1.0

// ProgressFunc receives a human-readable status and a percentage in [0,100],
// or ProgressIndeterminate for error and unknown-duration states.
type ProgressFunc func(status string, progress float64)

// Report forwards a progress update when the callback is configured.
func (f ProgressFunc) Report(status string, progress float64) {
	if f != nil {
		f(status, progress)
	}
}

// Settings contains the persisted user configuration and history.
type Settings struct {
	Model     string         `json:"model" yaml:"model"`
	Language  string         `json:"language" yaml:"language"`
	OutputDir string         `json:"output_dir" yaml:"output_dir"`
	ModelDir  string         `json:"model_dir" yaml:"model_dir"`
	History   []HistoryEntry `json:"history" yaml:"history"`
}

// HistoryEntry records one successfully written transcript.
type HistoryEntry struct {
	SourceFile string `json:"source_file" yaml:"source_file"`
	OutputPath string `json:"output_path" yaml:"output_path"`
	Timestamp  string `json:"timestamp" yaml:"timestamp"`
	ModelName  string `json:"model_name" yaml:"model_name"`
}

// Segment is a time-bounded span of recognized speech, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the recognized text of one job plus its segments.
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

// BatchState is a snapshot of the single active (or last) batch.
type BatchState struct {
	ID              string      `json:"id"`
	Status          BatchStatus `json:"status"`
	IsProcessing    bool        `json:"isProcessing"`
	CancelRequested bool        `json:"cancelRequested"`
	ProcessedCount  int         `json:"processedCount"`
	TotalCount      int         `json:"totalCount"`
	StartedAt       time.Time   `json:"startedAt"`
}
