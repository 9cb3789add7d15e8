// Package history persists completed query turns locally so past
// answers and their citations can be browsed offline.
package history

import (
	"context"
	"strconv"
	"time"

	"github.com/finlexvn/ragchat/pkg/rag"
)

// Turn is one completed question/answer exchange, including the partial
// outcome of an interrupted stream.
type Turn struct {
	// ID is assigned by the store on Put.
	ID int64 `json:"id"`

	// Query is the user's question.
	Query string `json:"query"`

	// Answer is the full (or partial, if Interrupted) answer text.
	Answer string `json:"answer"`

	// Citations backing the answer; empty for interrupted turns.
	Citations []rag.Citation `json:"citations,omitempty"`

	// TotalTimeMs reported by the pipeline's complete event.
	TotalTimeMs int64 `json:"total_time_ms,omitempty"`

	// Interrupted marks a turn whose stream closed without a terminal
	// event.
	Interrupted bool `json:"interrupted,omitempty"`

	// CreatedAt is when the turn was stored.
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for persisting and retrieving turns from
// a storage backend. Implementations must be safe for concurrent use.
type Store interface {
	// Put stores a turn and returns its assigned id. CreatedAt is set
	// by the store if zero.
	Put(ctx context.Context, turn *Turn) (int64, error)

	// Get retrieves a turn by id. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id int64) (*Turn, error)

	// List returns all turns, newest first.
	List(ctx context.Context) ([]*Turn, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a turn doesn't exist in the store.
type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	if e.ID == 0 {
		return "turn not found"
	}
	return "turn not found: " + strconv.FormatInt(e.ID, 10)
}
