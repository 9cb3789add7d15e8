package rag

// ErrorResponse represents an error body from the assistant API.
type ErrorResponse struct {
	Error string `json:"error"`
}
