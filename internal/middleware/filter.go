// Package middleware enforces challenge validation in front of HTTP handlers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tkingovr/captcha-guard/internal/failure"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

type appliedKey struct{}

// RequestFilter runs the filter chain for each request and either forwards
// it or answers it through the failure handler. It runs at most once per
// request even when installed more than once.
type RequestFilter struct {
	chain    *filter.Chain
	failures failure.Handler
	logger   *slog.Logger
}

// New creates a RequestFilter.
func New(chain *filter.Chain, failures failure.Handler, logger *slog.Logger) *RequestFilter {
	return &RequestFilter{
		chain:    chain,
		failures: failures,
		logger:   logger,
	}
}

// Process decides whether r may reach next. Not-filtered requests are
// forwarded untouched; filtered ones are forwarded only on a successful
// validation.
func (f *RequestFilter) Process(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	if ctx.Value(appliedKey{}) != nil {
		next.ServeHTTP(w, r)
		return
	}
	r = r.WithContext(context.WithValue(ctx, appliedKey{}, struct{}{}))

	fc := filter.NewFilterContext(r)
	if err := f.chain.Process(r.Context(), fc); err != nil {
		f.logger.Error("request filter chain failed", "error", err, "method", fc.Method, "path", fc.Path)
		f.failures.HandleValidationFailure(validation.Failure{
			Code:    validation.CodeRequestFailed,
			Message: validation.MessageRequestFailed,
		}, w)
		return
	}

	if !fc.Filtered {
		if fc.Exempted {
			f.logger.Debug("request exempted by policy", "method", fc.Method, "path", fc.Path, "rule", fc.ExemptRule)
		}
		next.ServeHTTP(w, fc.Request)
		return
	}

	if !fc.TokenFound {
		f.logger.Debug("reCaptcha response missing", "method", fc.Method, "path", fc.Path)
		f.failures.HandleMissingToken(w)
		return
	}

	switch res := fc.Result.(type) {
	case validation.Success:
		next.ServeHTTP(w, fc.Request)
	case validation.Failure:
		f.logger.Info("reCaptcha validation failed",
			"method", fc.Method,
			"path", fc.Path,
			"code", res.Code,
			"details", res.Details,
		)
		f.failures.HandleValidationFailure(res, w)
	default:
		f.logger.Error("no validation result for filtered request", "method", fc.Method, "path", fc.Path)
		f.failures.HandleValidationFailure(validation.Failure{
			Code:    validation.CodeRequestFailed,
			Message: validation.MessageRequestFailed,
		}, w)
	}
}

// Handler wraps next; it has the shape of a gorilla/mux middleware.
func (f *RequestFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.Process(w, r, next)
	})
}

// ServeHTTP implements negroni.Handler.
func (f *RequestFilter) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	f.Process(w, r, next)
}
