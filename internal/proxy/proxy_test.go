package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/failure"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/logging"
	"github.com/tkingovr/captcha-guard/internal/middleware"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

type fixedValidator struct {
	result validation.Result
}

func (v fixedValidator) Validate(context.Context, string) validation.Result { return v.result }

func newRequestFilter(v filter.Validator) *middleware.RequestFilter {
	logger := logging.Discard()
	fc := config.FilterConfig{
		ResponseName:    config.DefaultResponseName,
		BypassKey:       "by-pass-key",
		FilteredMethods: map[string]struct{}{"POST": {}},
		URLPatterns:     []*regexp.Regexp{regexp.MustCompile(`^(?:/submit)$`)},
	}
	chain := filter.BuildChain(filter.ChainConfig{
		Scope:     filter.NewScope(fc, nil, logger),
		Validator: v,
		Logger:    logger,
	})
	return middleware.New(chain, failure.NewDefaultHandler(logger), logger)
}

func TestHTTPProxy_AllowedRequest(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit" {
			t.Errorf("expected path /submit upstream, got %s", r.URL.Path)
		}
		if r.Header.Get(config.BypassHeaderName) != "" {
			t.Error("bypass header must not reach the upstream")
		}
		w.Write([]byte("accepted"))
	}))
	defer backend.Close()

	proxy, err := NewProxy(backend.URL, newRequestFilter(fixedValidator{validation.Success{}}), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/submit?g-recaptcha-response=tok", strings.NewReader("a=b"))
	req.Header.Set(config.BypassHeaderName, "wrong")
	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "accepted" {
		t.Errorf("expected proxied body, got %q", w.Body.String())
	}
}

func TestHTTPProxy_DeniedRequest(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for rejected requests")
	}))
	defer backend.Close()

	v := fixedValidator{validation.Failure{Code: validation.CodeValidationFailed, Message: validation.MessageValidationFailed}}
	proxy, _ := NewProxy(backend.URL, newRequestFilter(v), logging.Discard())

	req := httptest.NewRequest("POST", "/submit?g-recaptcha-response=tok", nil)
	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "recaptcha.validation.failed") {
		t.Errorf("expected failure body, got %s", w.Body.String())
	}
}

func TestHTTPProxy_GETPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	proxy, _ := NewProxy(backend.URL, newRequestFilter(fixedValidator{}), logging.Discard())

	req := httptest.NewRequest("GET", "/submit", nil)
	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for GET passthrough, got %d", w.Code)
	}
}

func TestHTTPProxy_DisabledFilter(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	proxy, _ := NewProxy(backend.URL, nil, logging.Discard())

	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, httptest.NewRequest("POST", "/submit", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 without a filter, got %d", w.Code)
	}
}

func TestHTTPProxy_UpstreamDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	backend.Close()

	proxy, _ := NewProxy(backend.URL, nil, logging.Discard())

	w := httptest.NewRecorder()
	proxy.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestNewProxy_InvalidTarget(t *testing.T) {
	for _, target := range []string{"", "localhost:8080", "ftp://host"} {
		if _, err := NewProxy(target, nil, logging.Discard()); err == nil {
			t.Errorf("expected error for target %q", target)
		}
	}
}
