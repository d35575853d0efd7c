package config

import "time"

const (
	DefaultResponseName = "g-recaptcha-response"
	DefaultClientURL    = "https://www.google.com/recaptcha/api/"
	DefaultTimeout      = 5 * time.Second
	DefaultAdminAddr    = "127.0.0.1:8081"
	DefaultEnvFile      = ".env"

	// BypassHeaderName carries the bypass key on requests that skip validation.
	BypassHeaderName = "X-ReCaptcha-ByPass-Key"

	redacted = "******"
)

// Environment variables that override values from the config file.
const (
	EnvSecret    = "CAPTCHAGUARD_SECRET"
	EnvBypassKey = "CAPTCHAGUARD_BYPASS_KEY"
	EnvClientURL = "CAPTCHAGUARD_CLIENT_URL"
)

// DefaultFilteredMethods returns the methods validated when none are configured.
func DefaultFilteredMethods() []string {
	return []string{"POST"}
}

// DefaultLogDir returns the default audit log directory path.
func DefaultLogDir() string {
	return "~/.captchaguard/logs"
}
