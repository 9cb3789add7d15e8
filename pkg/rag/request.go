package rag

// QueryRequest is the body POSTed to both the streaming and the
// non-streaming query endpoints.
type QueryRequest struct {
	Query        string `json:"query"`         // The user's question
	UseInterests bool   `json:"use_interests"` // Bias retrieval toward the user's followed topics
}
