// Package stub provides a local stand-in for the FinLex assistant
// backend. It speaks the same streaming wire contract ("data: <json>"
// lines over a chunked body) with scripted pipeline stages and canned
// answers, so the client and TUI can be developed and tested without
// the real retrieval pipeline.
package stub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/finlexvn/ragchat/pkg/history"
	"github.com/finlexvn/ragchat/pkg/rag"
)

// userIDHeader must be present on query requests; the stub mirrors the
// backend's auth behavior by rejecting anonymous callers.
const userIDHeader = "X-User-ID"

// Config is the stub server configuration.
type Config struct {
	// ListenAddr to serve on (e.g. ":6080").
	ListenAddr string

	// ChunkDelay paces answer chunks so streaming is visible by eye.
	// Zero means no pacing (used in tests).
	ChunkDelay time.Duration
}

// Server emulates the assistant backend and records the turns it
// serves for inspection via the /turns endpoints.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App
	store  history.Store
}

// New creates a stub server. Served turns are recorded in store; pass
// nil for an in-memory store.
func New(config Config, store history.Store, logger *zap.Logger) *Server {
	if store == nil {
		store = history.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
		store:  store,
	}

	app.Post("/api/query/stream", s.handleStreamQuery)
	app.Post("/api/query", s.handleQuery)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	// Served-turn inspection endpoints
	app.Get("/turns", s.handleListTurns)
	app.Get("/turns/:id", s.handleGetTurn)

	return s
}

// Run starts the stub server on the configured listen address.
func (s *Server) Run() error {
	s.logger.Info("starting stub assistant",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Close shuts down the server and releases the turn store.
func (s *Server) Close() error {
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	return s.store.Close()
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler bridges the stub into net/http so tests can serve it from an
// httptest.Server with real chunked response bodies.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// handleStreamQuery plays a scripted pipeline run over the streaming
// wire contract.
func (s *Server) handleStreamQuery(c *fiber.Ctx) error {
	if c.Get(userIDHeader) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(rag.ErrorResponse{Error: "missing user identity"})
	}

	var req rag.QueryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: "invalid request body"})
	}

	script := scriptFor(req.Query)
	s.logger.Debug("received streaming query",
		zap.String("query", req.Query),
		zap.Bool("use_interests", req.UseInterests),
		zap.String("mode", string(script.mode)),
	)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Transfer-Encoding", "chunked")

	delay := s.config.ChunkDelay
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		start := time.Now()
		for _, ev := range script.events() {
			if err := writeEvent(w, ev); err != nil {
				s.logger.Warn("client went away mid-stream", zap.Error(err))
				return
			}
			if delay > 0 && ev.Type == rag.EventAnswerChunk {
				time.Sleep(delay)
			}
		}

		if script.mode == modeDrop {
			// Close without a terminal event; the client is expected
			// to keep the partial answer.
			return
		}
		if script.mode == modeFail {
			return
		}

		turn := &history.Turn{
			Query:       req.Query,
			Answer:      script.answer,
			Citations:   script.citations,
			TotalTimeMs: time.Since(start).Milliseconds(),
		}
		if _, err := s.store.Put(context.Background(), turn); err != nil {
			// Storage failures never fail the query.
			s.logger.Error("failed to record turn", zap.Error(err))
		}
	}))

	return nil
}

// handleQuery is the non-streaming fallback: the full canned answer in
// one JSON body.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	if c.Get(userIDHeader) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(rag.ErrorResponse{Error: "missing user identity"})
	}

	var req rag.QueryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: "invalid request body"})
	}

	script := scriptFor(req.Query)
	if script.mode == modeFail {
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: script.failMessage})
	}

	turn := &history.Turn{Query: req.Query, Answer: script.answer, Citations: script.citations}
	if _, err := s.store.Put(c.Context(), turn); err != nil {
		s.logger.Error("failed to record turn", zap.Error(err))
	}

	return c.JSON(rag.QueryResponse{Answer: script.answer})
}

// handleListTurns returns every turn the stub has served.
func (s *Server) handleListTurns(c *fiber.Ctx) error {
	turns, err := s.store.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(rag.ErrorResponse{Error: "failed to list turns"})
	}
	return c.JSON(map[string]any{
		"count": len(turns),
		"turns": turns,
	})
}

// handleGetTurn returns a single served turn by id.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(rag.ErrorResponse{Error: "invalid turn id"})
	}

	turn, err := s.store.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(rag.ErrorResponse{Error: "turn not found"})
	}
	return c.JSON(turn)
}

// writeEvent frames one event on the wire, followed by a blank
// keep-alive line that consumers must ignore.
func writeEvent(w *bufio.Writer, ev rag.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
