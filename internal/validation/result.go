package validation

// Error codes reported in Failure results.
const (
	CodeRequestFailed    = "recaptcha.request.failed"
	CodeValidationFailed = "recaptcha.validation.failed"
)

// Default messages for Failure results.
const (
	MessageRequestFailed    = "ReCaptcha validation request failed."
	MessageValidationFailed = "Validation failed for reCaptcha response."
)

// Result is the outcome of a single validation attempt: either Success or Failure.
type Result interface {
	isResult()
}

// Success means the provider accepted the token.
type Success struct{}

// Failure describes why a token was not accepted.
type Failure struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (Success) isResult() {}
func (Failure) isResult() {}
