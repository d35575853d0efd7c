package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/tkingovr/captcha-guard/api"
)

// DefaultMaxFormBytes bounds how much of a form body is inspected for the token.
const DefaultMaxFormBytes = 1 << 20

// TokenFilter extracts the challenge response from a filtered request.
// Lookup order: query parameter, form field (urlencoded or multipart),
// header. The first present value wins, even when it is empty.
type TokenFilter struct {
	name         string
	maxFormBytes int64
}

// NewTokenFilter creates a filter looking up the token under name. A
// non-positive maxFormBytes selects DefaultMaxFormBytes.
func NewTokenFilter(name string, maxFormBytes int64) *TokenFilter {
	if maxFormBytes <= 0 {
		maxFormBytes = DefaultMaxFormBytes
	}
	return &TokenFilter{name: name, maxFormBytes: maxFormBytes}
}

// Name returns "token".
func (f *TokenFilter) Name() string { return "token" }

// Process records the token of a filtered request and halts the chain
// when none is present.
func (f *TokenFilter) Process(_ context.Context, fc *FilterContext) error {
	if !fc.Filtered || fc.Halted {
		return nil
	}
	token, found, err := f.extract(fc.Request)
	if err != nil {
		return err
	}
	fc.Token, fc.TokenFound = token, found
	if !found {
		fc.Outcome = api.OutcomeMissingToken
		fc.Halted = true
	}
	return nil
}

func (f *TokenFilter) extract(r *http.Request) (string, bool, error) {
	if vals, ok := r.URL.Query()[f.name]; ok && len(vals) > 0 {
		return vals[0], true, nil
	}

	if mediaType, params, ok := formMediaType(r); ok {
		body, err := f.readBody(r)
		if err != nil {
			return "", false, err
		}
		if body != nil {
			var (
				token string
				found bool
			)
			if mediaType == mediaTypeMultipart {
				token, found = formFieldMultipart(body, params["boundary"], f.name)
			} else {
				token, found = formFieldURLEncoded(body, f.name)
			}
			if found {
				return token, true, nil
			}
		}
	}

	if vals := r.Header.Values(f.name); len(vals) > 0 {
		return vals[0], true, nil
	}
	return "", false, nil
}

// readBody reads a form body without consuming it: r.Body is replaced with
// a reader yielding the same bytes. Bodies larger than the limit are passed
// through untouched and yield nil.
func (f *TokenFilter) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, f.maxFormBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading form body: %w", err)
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}

	if int64(len(buf)) > f.maxFormBytes {
		return nil, nil
	}
	return buf, nil
}

const (
	mediaTypeURLEncoded = "application/x-www-form-urlencoded"
	mediaTypeMultipart  = "multipart/form-data"
)

func formMediaType(r *http.Request) (string, map[string]string, bool) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "", nil, false
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", nil, false
	}
	switch mt {
	case mediaTypeURLEncoded:
		return mt, params, true
	case mediaTypeMultipart:
		return mt, params, params["boundary"] != ""
	}
	return "", nil, false
}

func formFieldURLEncoded(body []byte, name string) (string, bool) {
	// ParseQuery keeps the well-formed pairs of a malformed body.
	form, _ := url.ParseQuery(string(body))
	if vals, ok := form[name]; ok && len(vals) > 0 {
		return vals[0], true
	}
	return "", false
}

// formFieldMultipart returns the first non-file part named name. A
// malformed body yields the fields read before the fault.
func formFieldMultipart(body []byte, boundary, name string) (string, bool) {
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return "", false
		}
		if part.FormName() != name || part.FileName() != "" {
			continue
		}
		value, err := io.ReadAll(part)
		if err != nil {
			return "", false
		}
		return string(value), true
	}
}
