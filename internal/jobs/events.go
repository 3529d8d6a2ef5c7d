package jobs

import (
	"sync"
	"time"

	"audio-converter/internal/domain"
)

// EventType classifies messages emitted during batch execution.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeLog      EventType = "log"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq        int64               `json:"seq"`
	Timestamp  time.Time           `json:"timestamp"`
	BatchID    string              `json:"batchId"`
	JobID      string              `json:"jobId,omitempty"`
	Type       EventType           `json:"type"`
	State      domain.BatchState   `json:"state,omitempty"`
	Status     domain.JobStatus    `json:"status,omitempty"`
	Message    string              `json:"message,omitempty"`
	Completed  int                 `json:"completed,omitempty"`
	Total      int                 `json:"total,omitempty"`
	FileName   string              `json:"fileName,omitempty"`
	Percent    int                 `json:"percent,omitempty"`
	Command    string              `json:"command,omitempty"`
	Args       []string            `json:"args,omitempty"`
	ExitCode   int                 `json:"exitCode,omitempty"`
	Output     string              `json:"output,omitempty"`
	Tail       []string            `json:"tail,omitempty"`
	OutputPath string              `json:"outputPath,omitempty"`
	Result     *domain.BatchResult `json:"result,omitempty"`
}

// ProgressEvent converts an orchestrator progress update into an event.
func ProgressEvent(p domain.Progress) Event {
	return Event{
		BatchID:   p.BatchID,
		JobID:     p.JobID,
		Type:      EventTypeProgress,
		Status:    p.Status,
		Completed: p.Completed,
		Total:     p.Total,
		FileName:  p.FileName,
		Percent:   p.Percent,
	}
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

// LastSeq returns the sequence number of the newest event, or 0.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
