package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxdraft/internal/gmail"
	"github.com/teemow/inboxdraft/internal/instrumentation"
	"github.com/teemow/inboxdraft/internal/reply"
	"github.com/teemow/inboxdraft/internal/store"
)

// HTTP server timeouts. The write timeout leaves room for the generate
// endpoint, which waits on the completions provider.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config carries the server wiring.
type Config struct {
	Addr           string
	SessionTimeout time.Duration

	Logger    *slog.Logger
	Metrics   *instrumentation.Metrics
	OAuthConf *oauth2.Config
	Store     *store.Store
	Mailbox   *gmail.Service
	Generator *reply.Generator
}

// Server is the application HTTP server: the OAuth flow, the JSON API
// and the health probes.
type Server struct {
	httpServer *http.Server
	sessions   *SessionManager
	health     *HealthChecker
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// New assembles the server and its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions := NewSessionManager(cfg.SessionTimeout, logger, cfg.Metrics)
	health := NewHealthChecker()
	handlers := NewHandlers(logger, cfg.Metrics, sessions, cfg.OAuthConf, cfg.Store, cfg.Mailbox, cfg.Generator)

	s := &Server{
		sessions: sessions,
		health:   health,
		logger:   logger,
		metrics:  cfg.Metrics,
	}

	mux := http.NewServeMux()

	s.route(mux, "GET /oauth/start", handlers.handleOAuthStart)
	s.route(mux, "GET /oauth/callback", handlers.handleOAuthCallback)
	s.route(mux, "GET /api/auth/status", handlers.handleAuthStatus)
	s.route(mux, "GET /api/emails/unread", handlers.handleUnreadEmails)
	s.route(mux, "GET /api/emails/{id}", handlers.handleEmailDetail)
	s.route(mux, "POST /api/emails/{id}/read", handlers.handleMarkRead)
	s.route(mux, "POST /api/generate", handlers.handleGenerate)
	s.route(mux, "POST /api/drafts", handlers.handleSaveDraft)
	s.route(mux, "POST /logout", handlers.handleLogout)
	health.RegisterHealthEndpoints(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return s
}

// route registers a handler wrapped with request metrics. The mux
// pattern doubles as the metric's path label, keeping cardinality
// bounded regardless of the actual URL.
func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, s.withMetrics(pattern, handler))
}

func (s *Server) withMetrics(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, sw.status, time.Since(start))
	})
}

// statusWriter captures the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Start runs the server until it is shut down or fails.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.health.SetShuttingDown()
	s.health.SetReady(false)
	defer s.sessions.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
