package rag

// QueryResponse is the non-streaming fallback endpoint's reply. It
// carries the full answer with no partial state and no citations.
type QueryResponse struct {
	Answer string `json:"answer"`
}
