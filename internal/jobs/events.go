package jobs

import (
	"sync"
	"time"

	"batch-transcriber/internal/domain"
)

// EventType classifies messages emitted during batch execution.
type EventType string

const (
	EventTypeProgress   EventType = "progress"
	EventTypeFileResult EventType = "file_result"
	EventTypeError      EventType = "error"
	EventTypeDone       EventType = "done"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq         int64              `json:"seq"`
	Timestamp   time.Time          `json:"timestamp"`
	BatchID     string             `json:"batchId"`
	Type        EventType          `json:"type"`
	Message     string             `json:"message,omitempty"`
	Progress    float64            `json:"progress"`
	Index       int                `json:"index"`
	SourcePath  string             `json:"sourcePath,omitempty"`
	OutputPath  string             `json:"outputPath,omitempty"`
	ErrorKind   domain.ErrorKind   `json:"errorKind,omitempty"`
	Text        string             `json:"text,omitempty"`
	Processed   int                `json:"processed"`
	Total       int                `json:"total"`
	BatchStatus domain.BatchStatus `json:"batchStatus,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence of the newest event, or 0.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
