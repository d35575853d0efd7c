package failure

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

const (
	// CodeMissingResponse is the error code written when no token was sent.
	CodeMissingResponse = "recaptcha.missing.response"

	missingResponseMessage = "Unable to retrieve recaptcha response parameter. " +
		"Please check configuration if endpoint really need reCaptcha validation or if response parameter name is correct."
)

// Handler writes the response for a filtered request that did not pass.
// Implementations own the whole response: status, headers and body.
type Handler interface {
	HandleMissingToken(w http.ResponseWriter)
	HandleValidationFailure(f validation.Failure, w http.ResponseWriter)
}

// DefaultHandler writes JSON error bodies: 400 for a missing token and 403
// for a failed validation.
type DefaultHandler struct {
	logger *slog.Logger
}

// NewDefaultHandler creates the default failure handler.
func NewDefaultHandler(logger *slog.Logger) *DefaultHandler {
	return &DefaultHandler{logger: logger}
}

func (h *DefaultHandler) HandleMissingToken(w http.ResponseWriter) {
	h.writeJSON(w, http.StatusBadRequest, api.ErrorBody{
		Code:    CodeMissingResponse,
		Message: missingResponseMessage,
	})
}

func (h *DefaultHandler) HandleValidationFailure(f validation.Failure, w http.ResponseWriter) {
	h.writeJSON(w, http.StatusForbidden, api.ErrorBody{
		Code:    f.Code,
		Message: f.Message,
		Details: f.Details,
	})
}

func (h *DefaultHandler) writeJSON(w http.ResponseWriter, status int, body api.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("writing failure response", "error", err, "code", body.Code)
	}
}
