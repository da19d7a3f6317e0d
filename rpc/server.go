package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"adserver/native/adserver"
	"adserver/observability/metrics"
)

const (
	requestIDHeader     = "X-Request-ID"
	defaultMaxBodyBytes = 1 << 20
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxBodyBytes  int64
}

// Server hosts the registry entry points over HTTP. It serialises every
// invocation so that only one handler touches the persisted state at a time.
type Server struct {
	cfg      Config
	engine   *adserver.Engine
	logger   *slog.Logger
	metrics  *metrics.AdServerMetrics
	gatherer prometheus.Gatherer

	mu sync.Mutex
}

// New constructs a server around engine. A nil gatherer selects the default
// Prometheus registry.
func New(cfg Config, engine *adserver.Engine, logger *slog.Logger, m *metrics.AdServerMetrics, gatherer prometheus.Gatherer) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{cfg: cfg, engine: engine, logger: logger, metrics: m, gatherer: gatherer}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Method(http.MethodPost, "/instantiate", otelhttp.NewHandler(http.HandlerFunc(s.handleInstantiate), "adserver.instantiate"))
	r.Method(http.MethodPost, "/execute", otelhttp.NewHandler(http.HandlerFunc(s.handleExecute), "adserver.execute"))
	r.Method(http.MethodPost, "/query", otelhttp.NewHandler(http.HandlerFunc(s.handleQuery), "adserver.query"))
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return nil, false
	}
	return body, true
}

func (s *Server) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	started := time.Now()
	s.mu.Lock()
	resp, err := s.engine.InstantiateJSON(body)
	if err == nil {
		s.refreshTotal()
	}
	s.mu.Unlock()
	s.metrics.ObserveCommand("instantiate", started, err)
	if err != nil {
		s.fail(w, r, "instantiate", err)
		return
	}
	s.logger.Warn("registry instantiated over http", slog.String("request_id", w.Header().Get(requestIDHeader)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var msg adserver.ExecuteMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		s.fail(w, r, "execute", fmt.Errorf("%w: %w", adserver.ErrInvalidMessage, err))
		return
	}
	started := time.Now()
	s.mu.Lock()
	resp, err := s.engine.Execute(msg)
	if err == nil {
		s.refreshTotal()
	}
	s.mu.Unlock()
	s.metrics.ObserveCommand(msg.Name(), started, err)
	if err != nil {
		s.fail(w, r, msg.Name(), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var msg adserver.QueryMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		s.fail(w, r, "query", fmt.Errorf("%w: %w", adserver.ErrInvalidMessage, err))
		return
	}
	started := time.Now()
	s.mu.Lock()
	out, err := s.engine.Query(msg)
	s.mu.Unlock()
	s.metrics.ObserveQuery(msg.Name(), started, err)
	if err != nil {
		s.fail(w, r, msg.Name(), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// refreshTotal publishes the lifetime view gauge. Callers hold s.mu.
func (s *Server) refreshTotal() {
	if s.metrics == nil {
		return
	}
	total, err := s.engine.TotalViews()
	if err != nil {
		s.logger.Warn("read total views", slog.String("error", err.Error()))
		return
	}
	s.metrics.SetTotalViews(total.TotalViews)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, handler string, err error) {
	status := statusFor(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("handler", handler),
		slog.Int("status", status),
		slog.String("request_id", w.Header().Get(requestIDHeader)),
		slog.String("error", err.Error()),
	)
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, adserver.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, adserver.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, adserver.ErrDuplicateIdentifier):
		return http.StatusConflict
	case errors.Is(err, adserver.ErrStateCorruptOrMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, adserver.ErrStorageWrite):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
