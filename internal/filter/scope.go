package filter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/policy"
)

// Scope decides whether a request is subject to challenge validation.
// It only reads its configuration and is safe for concurrent use.
type Scope struct {
	cfg    config.FilterConfig
	engine policy.Engine
	logger *slog.Logger
}

// NewScope creates a Scope. engine may be nil when no exemption policy is configured.
func NewScope(cfg config.FilterConfig, engine policy.Engine, logger *slog.Logger) *Scope {
	return &Scope{cfg: cfg, engine: engine, logger: logger}
}

// ResponseName returns the parameter and header name carrying the token.
func (s *Scope) ResponseName() string {
	return s.cfg.ResponseName
}

// IsFiltered reports whether r must be validated.
func (s *Scope) IsFiltered(ctx context.Context, r *http.Request) bool {
	return s.Check(ctx, r).Filtered
}

// Check evaluates every term of the scope decision for r.
func (s *Scope) Check(ctx context.Context, r *http.Request) api.CheckResponse {
	res := api.CheckResponse{
		URLMatches:    s.urlMatches(r.URL.Path),
		MethodMatches: s.methodMatches(r.Method),
		Bypassed:      s.bypassed(r),
	}
	if res.URLMatches && res.MethodMatches && !res.Bypassed {
		res.Exempted, res.ExemptRule = s.exempted(ctx, r)
	}
	res.Filtered = res.URLMatches && res.MethodMatches && !res.Bypassed && !res.Exempted
	return res
}

func (s *Scope) urlMatches(path string) bool {
	if len(s.cfg.URLPatterns) == 0 && len(s.cfg.URLGlobs) == 0 {
		return true
	}
	for _, re := range s.cfg.URLPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	for _, g := range s.cfg.URLGlobs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (s *Scope) methodMatches(method string) bool {
	_, ok := s.cfg.FilteredMethods[method]
	return ok
}

func (s *Scope) bypassed(r *http.Request) bool {
	if strings.TrimSpace(s.cfg.BypassKey) == "" {
		return false
	}
	return r.Header.Get(config.BypassHeaderName) == s.cfg.BypassKey
}

// exempted consults the exemption policy. Evaluation errors never exempt.
func (s *Scope) exempted(ctx context.Context, r *http.Request) (bool, string) {
	if s.engine == nil {
		return false, ""
	}
	result, err := s.engine.Evaluate(ctx, policy.InputFromRequest(r))
	if err != nil {
		s.logger.Error("exemption policy evaluation failed", "error", err, "path", r.URL.Path)
		return false, ""
	}
	if strings.HasPrefix(result.Rule, "_opa_") {
		s.logger.Warn("exemption policy returned no usable result", "rule", result.Rule, "message", result.Message)
	}
	return result.Exempt, result.Rule
}

// NewCheckRequest builds a request for a dry-run scope check.
func NewCheckRequest(ctx context.Context, cr api.CheckRequest) (*http.Request, error) {
	method := strings.ToUpper(cr.Method)
	if method == "" {
		method = http.MethodPost
	}
	path := cr.Path
	if path == "" {
		path = "/"
	}
	r, err := http.NewRequestWithContext(ctx, method, path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building check request: %w", err)
	}
	for k, v := range cr.Headers {
		r.Header.Set(k, v)
	}
	r.RemoteAddr = cr.RemoteAddr
	return r, nil
}

// ScopeFilter records the scope decision on the filter context.
type ScopeFilter struct {
	scope *Scope
}

// NewScopeFilter creates a filter that applies scope to every request.
func NewScopeFilter(scope *Scope) *ScopeFilter {
	return &ScopeFilter{scope: scope}
}

// Name returns "scope".
func (f *ScopeFilter) Name() string { return "scope" }

// Process copies the decision of Scope.Check onto fc.
func (f *ScopeFilter) Process(ctx context.Context, fc *FilterContext) error {
	res := f.scope.Check(ctx, fc.Request)
	fc.URLMatches = res.URLMatches
	fc.MethodMatches = res.MethodMatches
	fc.Bypassed = res.Bypassed
	fc.Exempted = res.Exempted
	fc.ExemptRule = res.ExemptRule
	fc.Filtered = res.Filtered
	return nil
}
