package filter

import (
	"log/slog"

	"github.com/tkingovr/captcha-guard/internal/audit"
	"github.com/tkingovr/captcha-guard/internal/metrics"
)

// ChainConfig holds the configuration for building the request chain.
type ChainConfig struct {
	Scope        *Scope
	Validator    Validator
	Metrics      *metrics.Recorder
	AuditStore   audit.Store
	Logger       *slog.Logger
	MaxFormBytes int64
}

// BuildChain constructs the request filter chain: scope, token, verify,
// then the optional metrics and audit filters.
func BuildChain(cfg ChainConfig) *Chain {
	filters := []Filter{
		NewScopeFilter(cfg.Scope),
		NewTokenFilter(cfg.Scope.ResponseName(), cfg.MaxFormBytes),
		NewVerifyFilter(cfg.Validator),
	}

	if cfg.Metrics != nil {
		filters = append(filters, NewMetricsFilter(cfg.Metrics))
	}

	// Audit is always last
	if cfg.AuditStore != nil {
		filters = append(filters, NewAuditFilter(cfg.AuditStore, cfg.Logger))
	}

	return NewChain(cfg.Logger, filters...)
}
