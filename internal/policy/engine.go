package policy

import "context"

// Engine decides whether a request is exempt from challenge validation.
type Engine interface {
	// Evaluate checks a request against the loaded policy.
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload reloads the policy from its source.
	Reload(ctx context.Context) error
}
