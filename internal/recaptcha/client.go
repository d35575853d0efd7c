package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/config"
)

const verifyPath = "siteverify"

// maxResponseSize bounds the siteverify body we are willing to decode.
const maxResponseSize = 1 << 20

// Client verifies a challenge response token with the provider.
type Client interface {
	// Verify sends secret and response to the provider. Network faults are
	// returned as *TransportError; unusable answers wrap ErrInvalidResponse.
	Verify(ctx context.Context, secret, response string) (*api.VerifyResponse, error)
}

// HTTPClient is the siteverify client over HTTP.
type HTTPClient struct {
	endpoint *url.URL
	http     *http.Client
	logger   *slog.Logger
}

// NewHTTPClient creates a client posting to <cfg.URL>/siteverify.
func NewHTTPClient(cfg config.ClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	base := cfg.URL
	if base == "" {
		base = config.DefaultClientURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid verification URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid verification URL %q: scheme must be http or https", cfg.URL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer(cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.ReadTimeout
	transport.IdleConnTimeout = idleTimeout(cfg.ReadTimeout, transport.IdleConnTimeout)

	return &HTTPClient{
		endpoint: u.ResolveReference(&url.URL{Path: verifyPath}),
		http:     &http.Client{Transport: transport},
		logger:   logger,
	}, nil
}

// Endpoint returns the siteverify URL without query parameters.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint.String()
}

func (c *HTTPClient) Verify(ctx context.Context, secret, response string) (*api.VerifyResponse, error) {
	u := *c.endpoint
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("response", response)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building siteverify request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("siteverify responded",
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	var out api.VerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &out, nil
}
