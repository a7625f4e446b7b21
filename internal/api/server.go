// ABOUTME: Dashboard HTTP server: queue, conversations, claim/release, metrics
// ABOUTME: Also hosts the provider webhook and the SSE event stream

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/inauguralar/atende-gateway/internal/bot"
	"github.com/inauguralar/atende-gateway/internal/events"
	"github.com/inauguralar/atende-gateway/internal/operator"
	"github.com/inauguralar/atende-gateway/internal/queue"
	"github.com/inauguralar/atende-gateway/internal/session"
	"github.com/inauguralar/atende-gateway/internal/store"
	"github.com/inauguralar/atende-gateway/internal/transport"
)

// Server exposes the dashboard API and the inbound webhook.
type Server struct {
	addr        string
	sessions    *session.Manager
	store       store.Store
	queue       queue.Queue
	operators   *operator.Service
	broadcaster *events.Broadcaster
	processor   *bot.Processor
	outbound    *transport.FallbackSender
	avgHandle   time.Duration
	logger      *slog.Logger

	httpServer *http.Server
}

// Deps bundles the collaborators the server needs.
type Deps struct {
	Sessions    *session.Manager
	Store       store.Store
	Queue       queue.Queue
	Operators   *operator.Service
	Broadcaster *events.Broadcaster
	Processor   *bot.Processor
	Outbound    *transport.FallbackSender

	// AvgHandleTime feeds the queue wait estimates. Zero means the
	// three-minute default.
	AvgHandleTime time.Duration
}

func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.AvgHandleTime <= 0 {
		deps.AvgHandleTime = 3 * time.Minute
	}
	return &Server{
		addr:        addr,
		sessions:    deps.Sessions,
		store:       deps.Store,
		queue:       deps.Queue,
		operators:   deps.Operators,
		broadcaster: deps.Broadcaster,
		processor:   deps.Processor,
		outbound:    deps.Outbound,
		avgHandle:   deps.AvgHandleTime,
		logger:      logger.With("component", "api"),
	}
}

// Routes builds the full route table. Exported so tests can drive the
// handlers without a listening socket.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	mux.HandleFunc("GET /api/queue", s.handleQueueList)
	mux.HandleFunc("DELETE /api/queue/{user}", s.handleQueueRemove)

	mux.HandleFunc("GET /api/conversations", s.handleConversationList)
	mux.HandleFunc("GET /api/conversations/{user}", s.handleConversationGet)
	mux.HandleFunc("PUT /api/conversations/{user}/step", s.handleConversationSetStep)
	mux.HandleFunc("DELETE /api/conversations/{user}", s.handleConversationDelete)
	mux.HandleFunc("POST /api/conversations/{user}/claim", s.handleClaim)
	mux.HandleFunc("POST /api/conversations/{user}/release", s.handleRelease)

	mux.HandleFunc("GET /api/audit", s.handleAuditList)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return mux
}

// ListenAndServe blocks until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
