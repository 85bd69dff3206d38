package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/fika-labs/agentrelay/pkg/store"
	"github.com/fika-labs/agentrelay/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CoordinatorFactory builds a live coordinator for a session row
type CoordinatorFactory func(sess store.Session) (*session.Coordinator, error)

// Notifier receives session lifecycle notifications. All methods may
// be called concurrently.
type Notifier interface {
	SessionCreated(id, model string)
	TurnStarted(id string)
	TurnCompleted(id string)
	TurnFailed(id string, err error)
}

// Server is the REST + SSE transport
type Server struct {
	options     ServerOptions
	server      *http.Server
	store       *store.Store
	registry    *session.Registry
	queue       *taskqueue.Queue
	coordinator CoordinatorFactory
	notifier    Notifier
	logger      zerolog.Logger
	startTime   time.Time
}

// ServerOptions holds transport configuration
type ServerOptions struct {
	Host string
	Port int

	// WSHandler, when set, is mounted at GET /ws for the lifecycle
	// gateway
	WSHandler http.HandlerFunc
}

// NewServer creates the transport server
func NewServer(options ServerOptions, st *store.Store, registry *session.Registry,
	queue *taskqueue.Queue, factory CoordinatorFactory, notifier Notifier, logger zerolog.Logger) (*Server, error) {

	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}

	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("task queue is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("coordinator factory is required")
	}

	return &Server{
		options:     options,
		store:       st,
		registry:    registry,
		queue:       queue,
		coordinator: factory,
		notifier:    notifier,
		logger:      logger,
		startTime:   time.Now(),
	}, nil
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("GET /test", s.handleTestPage)
	if s.options.WSHandler != nil {
		mux.HandleFunc("GET /ws", s.options.WSHandler)
	}

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /sessions/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /sessions/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := tracing.NewRequestContext(r.Context())
	logger := tracing.LoggerFromContext(ctx, s.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	req, err := parseCreateSession(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sess, err := s.store.CreateSession(ctx, store.Session{
		ID:                 uuid.New().String(),
		Model:              req.Model,
		ToolVersion:        req.ToolVersion,
		SystemPromptSuffix: req.SystemPromptSuffix,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Session creation failed")
		http.Error(w, "Session creation failed", http.StatusInternalServerError)
		return
	}

	coord, err := s.coordinator(sess)
	if err != nil {
		logger.Error().Err(err).Msg("Coordinator creation failed")
		http.Error(w, "Session creation failed", http.StatusInternalServerError)
		return
	}
	if err := s.registry.Register(sess.ID, coord); err != nil {
		logger.Error().Err(err).Msg("Coordinator registration failed")
		http.Error(w, "Session creation failed", http.StatusInternalServerError)
		return
	}

	if s.notifier != nil {
		s.notifier.SessionCreated(sess.ID, sess.Model)
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sessions")
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	summaries := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, map[string]any{
			"id":         sess.ID,
			"model":      sess.Model,
			"created_at": sess.CreatedAt,
			"updated_at": sess.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read session")
		http.Error(w, "Failed to read session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read messages")
		http.Error(w, "Failed to read messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := tracing.WithSessionID(tracing.NewRequestContext(r.Context()), id)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	coord, err := s.registry.Lookup(id)
	if err != nil {
		http.Error(w, "Session not active", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	req, err := parseSendMessage(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if _, err := coord.AddUserMessage(ctx, req.Content); err != nil {
		logger.Error().Err(err).Msg("Failed to append user message")
		http.Error(w, "Failed to append message", http.StatusInternalServerError)
		return
	}

	// One turn, scheduled fire-and-forget. The ack goes out before the
	// turn runs; progress reaches the client over the SSE stream.
	s.queue.EnqueueAsync(context.WithoutCancel(ctx), "session-"+id, func(taskCtx context.Context) error {
		if s.notifier != nil {
			s.notifier.TurnStarted(id)
		}
		if err := coord.RunOnce(taskCtx); err != nil {
			if s.notifier != nil {
				s.notifier.TurnFailed(id, err)
			}
			return err
		}
		if s.notifier != nil {
			s.notifier.TurnCompleted(id)
		}
		return nil
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	coord, err := s.registry.Lookup(id)
	if err != nil {
		http.Error(w, "Session not active", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	observability.AddSSEConsumer(1)
	defer observability.AddSSEConsumer(-1)

	logger := s.logger.With().Str("session_id", id).Logger()
	logger.Debug().Msg("SSE consumer attached")

	queue := coord.Events()
	for {
		ev, err := queue.Next(r.Context())
		if err != nil {
			// Client disconnected; the queue and any in-flight turn
			// keep running.
			logger.Debug().Msg("SSE consumer detached")
			return
		}

		data, err := json.Marshal(ev.Data)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Name).Msg("Failed to encode event")
			continue
		}

		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// corsMiddleware allows cross-origin access from any origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
