package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/execution"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/store"
	"mediaflow/internal/workflow"
)

const (
	defaultLogLimit       = 200
	defaultExecutionLimit = 50
	maxRequestBody        = 1 << 20
)

type apiServer struct {
	bind     string
	token    string
	daemon   *Daemon
	logger   *slog.Logger
	router   chi.Router
	validate *validator.Validate

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closing  chan struct{}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	s := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		token:    strings.TrimSpace(cfg.Paths.APIToken),
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		closing:  make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *apiServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Method(http.MethodGet, "/metrics", s.daemon.metrics.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Get("/logs", s.handleLogs)
			r.Get("/events", s.handleEvents)

			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", s.handleListWorkflows)
				r.Post("/", s.handleCreateWorkflow)
				r.Get("/{id}", s.handleGetWorkflow)
				r.Put("/{id}", s.handleUpdateWorkflow)
				r.Delete("/{id}", s.handleDeleteWorkflow)
				r.Post("/{id}/execute", s.handleExecuteWorkflow)
				r.Get("/{id}/executions", s.handleWorkflowExecutions)
			})

			r.Route("/executions", func(r chi.Router) {
				r.Get("/", s.handleListExecutions)
				r.Get("/{id}", s.handleGetExecution)
				r.Delete("/{id}", s.handleDeleteExecution)
				r.Post("/{id}/cancel", s.handleCancelExecution)
			})
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled; paths.api_bind is empty")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	closing := make(chan struct{})
	server.RegisterOnShutdown(func() { close(closing) })

	s.mu.Lock()
	s.server = server
	s.listener = listener
	s.closing = closing
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server stopped", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.api_bind and restart the daemon"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// streamContext ends when the client disconnects or the server shuts down.
func (s *apiServer) streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		select {
		case <-closing:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.logHub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := queryFlag(query.Get("follow"))
	tail := queryFlag(query.Get("tail"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	switch {
	case tail && since == 0:
		events, next = hub.Tail(limit)
	case follow:
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Time{})
		ctx, cancel := s.streamContext(r)
		defer cancel()
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, true)
		if err != nil && r.Context().Err() != nil {
			return
		}
	default:
		events, next, _ = hub.Fetch(r.Context(), since, limit, false)
	}

	converted := api.FromLogEvents(events)
	if component := strings.TrimSpace(query.Get("component")); component != "" {
		filtered := converted[:0]
		for _, evt := range converted {
			if strings.EqualFold(evt.Component, component) {
				filtered = append(filtered, evt)
			}
		}
		converted = filtered
	}
	if value := strings.TrimSpace(query.Get("execution_id")); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			filtered := converted[:0]
			for _, evt := range converted {
				if evt.ExecutionID == id {
					filtered = append(filtered, evt)
				}
			}
			converted = filtered
		}
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: converted, Next: next})
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, execution.ErrRunning),
		errors.Is(err, execution.ErrAlreadyFinished),
		errors.Is(err, workflow.ErrWorkflowInactive):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access and daemon logs"),
		)
		s.writeError(w, status, op+" failed")
		return
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_encode_failed"),
			logging.String(logging.FieldErrorHint, "client may have disconnected"),
			logging.String(logging.FieldImpact, "response truncated"),
		)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
