package filter

import (
	"context"
	"time"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

// Validator validates a challenge response token.
type Validator interface {
	Validate(ctx context.Context, token string) validation.Result
}

// VerifyFilter validates the extracted token with the provider.
type VerifyFilter struct {
	validator Validator
}

// NewVerifyFilter creates a filter validating tokens with v.
func NewVerifyFilter(v Validator) *VerifyFilter {
	return &VerifyFilter{validator: v}
}

// Name returns "verify".
func (f *VerifyFilter) Name() string { return "verify" }

// Process validates the token and records the result and outcome.
func (f *VerifyFilter) Process(ctx context.Context, fc *FilterContext) error {
	if !fc.Filtered || fc.Halted || !fc.TokenFound {
		return nil
	}

	start := time.Now()
	fc.Result = f.validator.Validate(ctx, fc.Token)
	fc.VerifyDuration = time.Since(start)

	switch fc.Result.(type) {
	case validation.Success:
		fc.Outcome = api.OutcomePassed
	default:
		fc.Outcome = api.OutcomeFailed
	}
	return nil
}
