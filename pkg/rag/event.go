// Package rag provides internal representations of the FinLex assistant
// API: the streaming query protocol events and the request/response
// bodies which are then further folded and handled.
package rag

import "encoding/json"

// EventType discriminates the streaming event union.
type EventType string

const (
	// EventThinking reports a pipeline stage transition.
	EventThinking EventType = "thinking"

	// EventAnswerStart marks that answer text will follow.
	EventAnswerStart EventType = "answer_start"

	// EventAnswerChunk carries an incremental fragment of answer text.
	EventAnswerChunk EventType = "answer_chunk"

	// EventComplete is the terminal success event.
	EventComplete EventType = "complete"

	// EventError is the terminal failure event.
	EventError EventType = "error"
)

// StepStatus is the lifecycle state of a pipeline stage.
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
)

// Event is one parsed JSON object from a "data: " line in the stream.
// Which fields are populated depends on Type.
type Event struct {
	Type EventType `json:"type"`

	// Thinking fields
	Step      string         `json:"step,omitempty"`       // Stage identifier (e.g. "route", "retrieve")
	Status    StepStatus     `json:"status,omitempty"`     // "running" or "done"
	Message   string         `json:"message,omitempty"`    // Human-readable stage description; also the error text on EventError
	ElapsedMs int64          `json:"elapsed_ms,omitempty"` // Stage duration, reported on "done"
	Data      map[string]any `json:"data,omitempty"`       // Open stage metadata (routes, doc_count, fact_count, ...)

	// Answer chunk
	Content string `json:"content,omitempty"` // Opaque UTF-8 text fragment, appended as-is

	// Complete fields
	TotalTimeMs int64      `json:"total_time_ms,omitempty"` // End-to-end pipeline time
	Citations   []Citation `json:"citations,omitempty"`     // Sources backing the answer
}

// DecodeEvent parses a single event payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}

// IsTerminal reports whether the event ends the logical session.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
