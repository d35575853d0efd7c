package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

// Proxy is an HTTP reverse proxy that enforces challenge validation before
// forwarding requests to the target.
type Proxy struct {
	target       *url.URL
	reverseProxy *httputil.ReverseProxy
	handler      http.Handler
	logger       *slog.Logger
}

// NewProxy creates a proxy targeting the given URL. A nil filter forwards
// every request unvalidated.
func NewProxy(target string, rf *middleware.RequestFilter, logger *slog.Logger) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q: expected http(s)://host", target)
	}

	p := &Proxy{
		target: u,
		logger: logger,
	}
	p.reverseProxy = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.errorHandler,
	}

	router := mux.NewRouter()
	router.PathPrefix("/").Handler(p.reverseProxy)

	n := negroni.New(negroni.NewRecovery(), negroni.HandlerFunc(p.accessLog))
	if rf != nil {
		n.Use(rf)
	}
	n.UseHandler(router)
	p.handler = n

	return p, nil
}

// ServeHTTP handles incoming HTTP requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()
	pr.Out.Header.Del(config.BypassHeaderName)
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("proxy error", "error", err, "method", r.Method, "path", r.URL.Path)
	http.Error(w, "bad gateway", http.StatusBadGateway)
}

func (p *Proxy) accessLog(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := 0
	if rw, ok := w.(negroni.ResponseWriter); ok {
		status = rw.Status()
	}
	p.logger.Debug("request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", time.Since(start),
	)
}

// ListenAndServe starts the proxy server and shuts it down gracefully when
// ctx is cancelled.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("starting HTTP proxy",
			"listen", addr,
			"target", p.target.String(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down proxy: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
