package rag

// Citation is a numbered reference to a source document backing part of
// the generated answer. Number matches the inline [n] markers the model
// emits in the answer text.
type Citation struct {
	Number     int     `json:"number"`               // 1-based citation number
	Source     string  `json:"source"`               // Document or collection name
	Preview    string  `json:"preview"`              // Short excerpt from the cited passage
	Similarity float64 `json:"similarity,omitempty"` // Retrieval similarity in [0,1], when available
}
