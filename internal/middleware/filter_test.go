package middleware

import (
	"bytes"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/negroni"

	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/failure"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/logging"
	"github.com/tkingovr/captcha-guard/internal/recaptcha"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

const missingBody = `{"code":"recaptcha.missing.response","message":"Unable to retrieve recaptcha response parameter. Please check configuration if endpoint really need reCaptcha validation or if response parameter name is correct."}`

// provider is a fake siteverify endpoint keyed by response token.
type provider struct {
	calls atomic.Int32
	srv   *httptest.Server
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		switch r.URL.Query().Get("response") {
		case "valid_recaptcha_response":
			w.Write([]byte(`{"success":true,"challenge_ts":"2020-03-29T13:42:09Z","hostname":"localhost"}`))
		case "invalid_recaptcha_response":
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-secret","invalid-input-response"]}`))
		case "other_recaptcha_response":
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				tcp.SetLinger(0)
			}
			conn.Close()
		default:
			w.Write([]byte(`{"success":false,"error-codes":["missing-input-response"]}`))
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func newTestFilter(t *testing.T, p *provider, bypassKey string) *RequestFilter {
	t.Helper()
	logger := logging.Discard()

	client, err := recaptcha.NewHTTPClient(config.ClientConfig{
		URL:            p.srv.URL,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
	}, logger)
	require.NoError(t, err)

	fc := config.FilterConfig{
		ResponseName:    config.DefaultResponseName,
		BypassKey:       bypassKey,
		FilteredMethods: map[string]struct{}{"POST": {}},
		URLPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^(?:/test)$`),
			regexp.MustCompile(`^(?:/test/id/sub-resources)$`),
		},
	}
	chain := filter.BuildChain(filter.ChainConfig{
		Scope:     filter.NewScope(fc, nil, logger),
		Validator: validation.NewService(client, "secretKey", logger),
		Logger:    logger,
	})
	return New(chain, failure.NewDefaultHandler(logger), logger)
}

// app records whether it was reached and answers 200 "ok".
type app struct {
	hits atomic.Int32
	body string
}

func (a *app) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.hits.Add(1)
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		a.body = string(b)
	}
	w.Write([]byte("ok"))
}

func serve(f *RequestFilter, next http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.Handler(next).ServeHTTP(rec, r)
	return rec
}

func TestRequestFilter_ValidResponsePasses(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/test?g-recaptcha-response=valid_recaptcha_response", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.EqualValues(t, 1, a.hits.Load())
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestRequestFilter_HeaderToken(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	r := httptest.NewRequest("POST", "/test/id/sub-resources", nil)
	r.Header.Set("g-recaptcha-response", "valid_recaptcha_response")

	rec := serve(newTestFilter(t, p, ""), a, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, a.hits.Load())
}

func TestRequestFilter_ProviderRejects(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/test?g-recaptcha-response=invalid_recaptcha_response", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":"recaptcha.validation.failed","message":"Validation failed for reCaptcha response.","details":["invalid-input-secret","invalid-input-response"]}`, rec.Body.String())
	assert.Zero(t, a.hits.Load())
}

func TestRequestFilter_MissingToken(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/test", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, missingBody, rec.Body.String())
	assert.Zero(t, a.hits.Load())
	assert.Zero(t, p.calls.Load(), "no verification without a token")
}

func TestRequestFilter_ConnectionReset(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/test?g-recaptcha-response=other_recaptcha_response", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":"recaptcha.request.failed","message":"Connection reset"}`, rec.Body.String())
	assert.Zero(t, a.hits.Load())
}

func TestRequestFilter_MethodNotFiltered(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, a.hits.Load())
	assert.Zero(t, p.calls.Load())
}

func TestRequestFilter_PathNotFiltered(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/other", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, a.hits.Load())
	assert.Zero(t, p.calls.Load())
}

func TestRequestFilter_Bypass(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	r := httptest.NewRequest("POST", "/test", nil)
	r.Header.Set(config.BypassHeaderName, "by-pass-key")

	rec := serve(newTestFilter(t, p, "by-pass-key"), a, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, a.hits.Load())
	assert.Zero(t, p.calls.Load())
}

func TestRequestFilter_BlankBypassKeyIsDisabled(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	r := httptest.NewRequest("POST", "/test", nil)
	r.Header.Set(config.BypassHeaderName, "")

	rec := serve(newTestFilter(t, p, ""), a, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, a.hits.Load())
}

func TestRequestFilter_ParameterWinsOverHeader(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	r := httptest.NewRequest("POST", "/test?g-recaptcha-response=invalid_recaptcha_response", nil)
	r.Header.Set("g-recaptcha-response", "valid_recaptcha_response")

	rec := serve(newTestFilter(t, p, ""), a, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestFilter_EmptyTokenIsValidated(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, httptest.NewRequest("POST", "/test?g-recaptcha-response=", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":"recaptcha.validation.failed","message":"Validation failed for reCaptcha response.","details":["missing-input-response"]}`, rec.Body.String())
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestRequestFilter_FormTokenKeepsBody(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	body := "email=a%40b.c&g-recaptcha-response=valid_recaptcha_response"
	r := httptest.NewRequest("POST", "/test", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(newTestFilter(t, p, ""), a, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, a.body)
}

func TestRequestFilter_MultipartFormToken(t *testing.T) {
	p := newProvider(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("attachment", "cv.pdf")
	require.NoError(t, err)
	fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.WriteField("g-recaptcha-response", "valid_recaptcha_response"))
	require.NoError(t, mw.Close())
	body := buf.String()

	r := httptest.NewRequest("POST", "/test", strings.NewReader(body))
	r.Header.Set("Content-Type", mw.FormDataContentType())
	a := &app{}

	rec := serve(newTestFilter(t, p, ""), a, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, p.calls.Load())
	assert.EqualValues(t, 1, a.hits.Load())
	assert.Equal(t, body, a.body)
}

func TestRequestFilter_RunsOncePerRequest(t *testing.T) {
	p := newProvider(t)
	a := &app{}
	f := newTestFilter(t, p, "")

	rec := httptest.NewRecorder()
	f.Handler(f.Handler(a)).ServeHTTP(rec, httptest.NewRequest("POST", "/test?g-recaptcha-response=valid_recaptcha_response", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, p.calls.Load(), "nested installation must not validate twice")
}

func TestRequestFilter_Negroni(t *testing.T) {
	p := newProvider(t)
	a := &app{}

	router := mux.NewRouter()
	router.Handle("/test", a).Methods(http.MethodPost)

	n := negroni.New(negroni.NewRecovery())
	n.Use(newTestFilter(t, p, ""))
	n.UseHandler(router)

	rec := httptest.NewRecorder()
	n.ServeHTTP(rec, httptest.NewRequest("POST", "/test", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	n.ServeHTTP(rec, httptest.NewRequest("POST", "/test?g-recaptcha-response=valid_recaptcha_response", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, a.hits.Load())
}

type customHandler struct {
	missing int
	failed  []validation.Failure
}

func (h *customHandler) HandleMissingToken(w http.ResponseWriter) {
	h.missing++
	w.WriteHeader(http.StatusTeapot)
}

func (h *customHandler) HandleValidationFailure(f validation.Failure, w http.ResponseWriter) {
	h.failed = append(h.failed, f)
	w.WriteHeader(http.StatusUnauthorized)
}

func TestRequestFilter_CustomFailureHandler(t *testing.T) {
	p := newProvider(t)
	base := newTestFilter(t, p, "")
	h := &customHandler{}
	f := New(base.chain, h, logging.Discard())

	rec := serve(f, &app{}, httptest.NewRequest("POST", "/test", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, h.missing)

	rec = serve(f, &app{}, httptest.NewRequest("POST", "/test?g-recaptcha-response=invalid_recaptcha_response", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, h.failed, 1)
	assert.Equal(t, validation.CodeValidationFailed, h.failed[0].Code)
}
