package stream

import (
	"github.com/finlexvn/ragchat/pkg/rag"
)

// ThinkingStep is the materialized state of one pipeline stage as shown
// to the user. For a given Step identifier at most one running entry
// exists before its matching done entry replaces it in place.
type ThinkingStep struct {
	Step      string
	Status    rag.StepStatus
	Message   string
	ElapsedMs int64
	Data      map[string]any
}

// Session is the folded view of a single streaming query. It is created
// empty when the query is submitted, mutated exclusively by Apply as
// events arrive in order, and becomes final once a terminal event is
// applied or the transport closes.
type Session struct {
	Streaming     bool
	ThinkingSteps []ThinkingStep // insertion-ordered
	Answer        string         // append-only until terminal
	Citations     []rag.Citation // empty until complete
	TotalTimeMs   int64          // 0 until complete

	// Err holds the upstream failure when the stream ended with an
	// error event. The partial answer and thinking steps accumulated
	// before it remain inspectable.
	Err error

	// Interrupted is set when the stream closed without a terminal
	// event. The answer gathered so far may already be complete, so
	// this is not reported as a failure.
	Interrupted bool

	done bool
}

// NewSession returns an empty session in the streaming state.
func NewSession() *Session {
	return &Session{Streaming: true}
}

// Apply folds one event into the session. Events arriving after a
// terminal event are ignored. Replaying the same event sequence from an
// empty session always reproduces the same final state regardless of
// how the transport chunked the bytes.
func (s *Session) Apply(ev rag.Event) {
	if s.done {
		return
	}
	switch ev.Type {
	case rag.EventThinking:
		s.applyThinking(ev)
	case rag.EventAnswerStart:
		// Signal only: consumers may stop showing a thinking
		// indicator, but no session data changes.
	case rag.EventAnswerChunk:
		s.Answer += ev.Content
	case rag.EventComplete:
		s.Citations = ev.Citations
		s.TotalTimeMs = ev.TotalTimeMs
		s.finish()
	case rag.EventError:
		s.Err = &UpstreamError{Message: ev.Message}
		s.finish()
	default:
		// Unknown event types are skipped so the pipeline can grow
		// new stages without breaking older clients.
	}
}

func (s *Session) applyThinking(ev rag.Event) {
	step := ThinkingStep{
		Step:      ev.Step,
		Status:    ev.Status,
		Message:   ev.Message,
		ElapsedMs: ev.ElapsedMs,
		Data:      ev.Data,
	}

	if ev.Status == rag.StepDone {
		// A done event replaces its most recent running counterpart in
		// place, preserving the array position. An unmatched done is
		// appended, never dropped.
		for i := len(s.ThinkingSteps) - 1; i >= 0; i-- {
			prev := &s.ThinkingSteps[i]
			if prev.Step == ev.Step && prev.Status == rag.StepRunning {
				*prev = step
				return
			}
		}
	}
	s.ThinkingSteps = append(s.ThinkingSteps, step)
}

// Interrupt marks the session terminal without a complete or error
// event, preserving all accumulated state. Used when the connection
// closes early or the query is superseded.
func (s *Session) Interrupt() {
	if s.done {
		return
	}
	s.Interrupted = true
	s.finish()
}

// Done reports whether a terminal event or an interrupt has been
// applied. A done session is never mutated again.
func (s *Session) Done() bool {
	return s.done
}

func (s *Session) finish() {
	s.Streaming = false
	s.done = true
}
