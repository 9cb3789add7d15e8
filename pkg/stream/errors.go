package stream

// UpstreamError is a terminal error event received mid-stream. It is
// the only mid-stream condition escalated to the caller; the session's
// partial answer and thinking steps remain inspectable alongside it.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return "assistant reported an error"
	}
	return "assistant error: " + e.Message
}
