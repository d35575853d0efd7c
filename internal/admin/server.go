package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkingovr/captcha-guard/internal/audit"
	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/metrics"
	"github.com/tkingovr/captcha-guard/internal/policy"
)

// Options holds the components exposed by the admin server. AuditStore,
// Metrics and Engine may be nil when the feature is disabled.
type Options struct {
	Config     *config.Config
	Scope      *filter.Scope
	AuditStore audit.Store
	Metrics    *metrics.Recorder
	Engine     policy.Engine
	Logger     *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	cfg        *config.Config
	scope      *filter.Scope
	auditStore audit.Store
	metrics    *metrics.Recorder
	engine     policy.Engine
	addr       string
}

// NewServer creates a new admin server.
func NewServer(addr string, opts Options) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     opts.Logger,
		cfg:        opts.Config,
		scope:      opts.Scope,
		auditStore: opts.AuditStore,
		metrics:    opts.Metrics,
		engine:     opts.Engine,
		addr:       addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleAPIStats)
	s.mux.HandleFunc("GET /api/v1/audit", s.handleAPIAudit)
	s.mux.HandleFunc("GET /api/v1/config", s.handleAPIConfig)
	s.mux.HandleFunc("POST /api/v1/check", s.handleAPICheck)
	s.mux.HandleFunc("POST /api/v1/policy/reload", s.handleAPIPolicyReload)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// ListenAndServe starts the admin HTTP server and shuts it down when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("admin server shutdown", "error", err)
		}
	}()

	s.logger.Info("starting admin server", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}
