package api

import "time"

// Outcome is the result of running a filtered request through validation.
type Outcome string

const (
	OutcomePassed       Outcome = "passed"
	OutcomeMissingToken Outcome = "missing_token"
	OutcomeFailed       Outcome = "failed"
)

// VerifyResponse is the siteverify response body of the reCAPTCHA provider.
type VerifyResponse struct {
	Success     bool       `json:"success"`
	ChallengeTS *time.Time `json:"challenge_ts,omitempty"`
	Hostname    string     `json:"hostname,omitempty"`
	ErrorCodes  []string   `json:"error-codes,omitempty"`
}

// ErrorBody is the JSON body written when a filtered request is rejected.
type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// AuditRecord represents a single filtered request.
type AuditRecord struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Code       string        `json:"code,omitempty"`
	Message    string        `json:"message,omitempty"`
	Details    []string      `json:"details,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Method  string    `json:"method,omitempty"`
	Path    string    `json:"path,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`

	// NewestFirst orders results from the most recent record backwards
	// before Offset and Limit apply.
	NewestFirst bool `json:"newest_first,omitempty"`
}

// AuditStats provides summary statistics for the admin API.
type AuditStats struct {
	TotalRequests     int            `json:"total_requests"`
	PassedCount       int            `json:"passed_count"`
	MissingTokenCount int            `json:"missing_token_count"`
	FailedCount       int            `json:"failed_count"`
	ByPath            map[string]int `json:"by_path"`
	ByCode            map[string]int `json:"by_code"`
}

// CheckRequest is used by the CLI `check` command and the admin API.
type CheckRequest struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers,omitempty"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
}

// CheckResponse reports how a request would be treated.
type CheckResponse struct {
	Filtered      bool   `json:"filtered"`
	URLMatches    bool   `json:"url_matches"`
	MethodMatches bool   `json:"method_matches"`
	Bypassed      bool   `json:"bypassed"`
	Exempted      bool   `json:"exempted"`
	ExemptRule    string `json:"exempt_rule,omitempty"`
}
