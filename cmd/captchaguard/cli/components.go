package cli

import (
	"fmt"
	"log/slog"

	"github.com/tkingovr/captcha-guard/internal/config"
	"github.com/tkingovr/captcha-guard/internal/filter"
	"github.com/tkingovr/captcha-guard/internal/policy"
	"github.com/tkingovr/captcha-guard/internal/recaptcha"
	"github.com/tkingovr/captcha-guard/internal/validation"
)

// components are the pieces shared by serve and check.
type components struct {
	scope     *filter.Scope
	engine    policy.Engine
	validator *validation.Service
}

func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	if cfg.ExemptionPolicy != "" {
		engine, err := policy.NewOPAEngine(cfg.ExemptionPolicy)
		if err != nil {
			return nil, fmt.Errorf("creating exemption policy engine: %w", err)
		}
		c.engine = engine
	}
	c.scope = filter.NewScope(cfg.Filter, c.engine, logger)

	client, err := recaptcha.NewHTTPClient(cfg.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("creating verification client: %w", err)
	}
	c.validator = validation.NewService(client, cfg.Secret, logger)

	logger.Debug("components ready",
		"siteverify", client.Endpoint(),
		"response_name", cfg.Filter.ResponseName,
		"exemption_policy", cfg.ExemptionPolicy,
	)
	return c, nil
}
