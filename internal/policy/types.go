package policy

import (
	"net/http"
	"strings"
)

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Exempt  bool   `json:"exempt"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

// InputFromRequest builds the evaluation input for r. Header names are
// lower-cased and only the first value of each header is kept.
func InputFromRequest(r *http.Request) *EvalInput {
	in := &EvalInput{
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		Headers:    make(map[string]string, len(r.Header)),
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			in.Headers[strings.ToLower(k)] = v[0]
		}
	}
	return in
}
