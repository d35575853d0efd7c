package validation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tkingovr/captcha-guard/internal/recaptcha"
)

// Service validates challenge response tokens with the provider.
// Each call is independent; nothing is cached or retried.
type Service struct {
	client recaptcha.Client
	secret string
	logger *slog.Logger
}

// NewService creates a validation service using the given client and secret.
func NewService(client recaptcha.Client, secret string, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		secret: secret,
		logger: logger,
	}
}

// Validate verifies token and maps the provider answer to a Result.
func (s *Service) Validate(ctx context.Context, token string) Result {
	resp, err := s.client.Verify(ctx, s.secret, token)

	var te *recaptcha.TransportError
	if errors.As(err, &te) {
		s.logger.Error("request for reCaptcha validation failed", "error", err)
		msg := te.Description()
		if msg == "" {
			msg = MessageRequestFailed
		}
		return Failure{Code: CodeRequestFailed, Message: msg}
	}
	if err != nil {
		s.logger.Warn("unusable reCaptcha verification response", "error", err)
	}

	if resp != nil && resp.Success {
		return Success{}
	}

	f := Failure{Code: CodeValidationFailed, Message: MessageValidationFailed}
	if resp != nil {
		f.Details = resp.ErrorCodes
	}
	return f
}
