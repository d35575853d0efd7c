package filter

import (
	"net/http"
	"time"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/failure"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

// FilterContext carries all metadata through the filter chain for a single request.
type FilterContext struct {
	// Request is the inbound request. The token filter may replace its Body
	// with an equivalent reader after inspecting a form body.
	Request *http.Request

	Method string
	Path   string

	// Scope decision, set by the scope filter.
	URLMatches    bool
	MethodMatches bool
	Bypassed      bool
	Exempted      bool
	ExemptRule    string

	// Filtered reports whether the request is subject to validation.
	Filtered bool

	// Token is the challenge response, valid when TokenFound is true.
	Token      string
	TokenFound bool

	// Result is set by the verify filter.
	Result         validation.Result
	VerifyDuration time.Duration

	// Outcome summarizes a filtered request once decided.
	Outcome api.Outcome

	// StartTime records when the request entered the pipeline.
	StartTime time.Time

	// Halted indicates the decision is final (missing token).
	Halted bool
}

// NewFilterContext creates a new FilterContext for r.
func NewFilterContext(r *http.Request) *FilterContext {
	return &FilterContext{
		Request:   r,
		Method:    r.Method,
		Path:      r.URL.Path,
		StartTime: time.Now(),
	}
}

// ToAuditRecord converts the filter context into an audit record.
func (fc *FilterContext) ToAuditRecord() *api.AuditRecord {
	record := &api.AuditRecord{
		Timestamp: fc.StartTime,
		Method:    fc.Method,
		Path:      fc.Path,
		Outcome:   fc.Outcome,
		Duration:  time.Since(fc.StartTime),
	}
	if fc.Request != nil {
		record.RemoteAddr = fc.Request.RemoteAddr
	}
	switch res := fc.Result.(type) {
	case validation.Failure:
		record.Code = res.Code
		record.Message = res.Message
		record.Details = res.Details
	case nil:
		if fc.Outcome == api.OutcomeMissingToken {
			record.Code = failure.CodeMissingResponse
		}
	}
	return record
}
