// Package client submits queries to the FinLex assistant backend, either
// over the streaming protocol or the non-streaming fallback endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/finlexvn/ragchat/pkg/rag"
	"github.com/finlexvn/ragchat/pkg/stream"
)

// userIDHeader carries the caller identity alongside cookie credentials.
const userIDHeader = "X-User-ID"

const (
	streamPath = "/api/query/stream"
	queryPath  = "/api/query"
)

// Config is the client configuration.
type Config struct {
	// BaseURL of the assistant backend (e.g. "http://localhost:6080")
	BaseURL string

	// UserID identifies the caller. Empty means unauthenticated and
	// fails every submit before any network call.
	UserID string

	// UseInterests asks the pipeline to bias retrieval toward the
	// user's followed topics.
	UseInterests bool
}

// EventHandler observes each event along with the session state after
// the event was folded in. Handlers run synchronously on the stream
// loop, so the session is never mutated while a handler reads it.
type EventHandler func(ev rag.Event, s *stream.Session)

// Client submits queries to the assistant. At most one stream is live
// per client instance; submitting a new query closes the previous
// connection and discards its remaining events. Callers needing
// concurrent conversations use independent clients.
type Client struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client

	// epoch identifies the current stream so events from a superseded
	// one are never folded after cancellation.
	epoch  atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a client. The cookie jar holds the credential cookies the
// backend sets on first contact.
func New(config Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		config: config,
		logger: logger,
		// No client timeout: a slow multi-stage pipeline can stream for
		// an unbounded duration. Callers impose deadlines via ctx.
		httpClient: &http.Client{Jar: jar},
	}, nil
}

// StreamQuery submits a streaming query and folds the event sequence
// into a fresh session, invoking handler after each event. It returns
// the final session in every outcome that produced one, so partial
// state stays inspectable even when err is non-nil.
func (c *Client) StreamQuery(ctx context.Context, query string, handler EventHandler) (*stream.Session, error) {
	if c.config.UserID == "" {
		return nil, ErrUnauthenticated
	}

	epoch := c.epoch.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	c.supersede(cancel)
	defer c.release(epoch)

	resp, err := c.post(ctx, streamPath, query, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	session := stream.NewSession()
	dec := stream.NewDecoder(resp.Body, c.logger)

	for {
		ev, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				// Mid-stream transport drop. Keep what we have; the
				// answer may already be fully visible.
				c.logger.Warn("stream read failed", zap.Error(err))
			}
			break
		}
		if c.epoch.Load() != epoch {
			session.Interrupt()
			return session, context.Canceled
		}
		session.Apply(ev)
		if handler != nil {
			handler(ev, session)
		}
		if session.Done() {
			break
		}
	}

	if !session.Done() {
		// Closed without complete/error. Deliberately lenient: the
		// finalize event may merely be missing or late.
		session.Interrupt()
	}
	if session.Err != nil {
		return session, session.Err
	}
	if err := ctx.Err(); err != nil {
		return session, err
	}
	return session, nil
}

// Query uses the non-streaming fallback endpoint: one request, one
// complete answer, no partial state and no citations.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	if c.config.UserID == "" {
		return "", ErrUnauthenticated
	}

	resp, err := c.post(ctx, queryPath, query, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out rag.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Answer, nil
}

// Cancel closes the currently open stream, if any. The abandoned
// session is finalized with its partial state.
func (c *Client) Cancel() {
	c.epoch.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// SetUseInterests updates the retrieval bias for subsequent queries,
// e.g. when the config file is edited while a chat is open.
func (c *Client) SetUseInterests(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.UseInterests = v
}

// post issues the query request and validates the HTTP status. A
// non-2xx response surfaces as *TransportError before any body is
// consumed as events.
func (c *Client) post(ctx context.Context, path, query, accept string) (*http.Response, error) {
	c.mu.Lock()
	cfg := c.config
	c.mu.Unlock()

	body, err := json.Marshal(rag.QueryRequest{
		Query:        query,
		UseInterests: cfg.UseInterests,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set(userIDHeader, cfg.UserID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

// supersede cancels the previous stream and records this one's cancel.
func (c *Client) supersede(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
}

// release cancels this stream's context on the way out, unless a newer
// stream has already taken over (its supersede cancelled ours).
func (c *Client) release(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch.Load() == epoch && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
