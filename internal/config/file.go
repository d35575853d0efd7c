package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML configuration.
type File struct {
	Version   int              `yaml:"version" json:"version" validate:"eq=1"`
	ReCaptcha ReCaptchaSection `yaml:"recaptcha" json:"recaptcha"`
	Settings  Settings         `yaml:"settings" json:"settings"`
}

// ReCaptchaSection configures the request filter and the verification client.
type ReCaptchaSection struct {
	Enabled         *bool         `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Secret          string        `yaml:"secret" json:"secret" validate:"required"`
	ResponseName    string        `yaml:"response_name,omitempty" json:"response_name,omitempty"`
	BypassKey       string        `yaml:"bypass_key,omitempty" json:"bypass_key,omitempty"`
	URLPatterns     []string      `yaml:"url_patterns,omitempty" json:"url_patterns,omitempty"`
	URLGlobs        []string      `yaml:"url_globs,omitempty" json:"url_globs,omitempty"`
	FilteredMethods []string      `yaml:"filtered_methods,omitempty" json:"filtered_methods,omitempty" validate:"dive,oneof=GET HEAD POST PUT PATCH DELETE CONNECT OPTIONS TRACE"`
	ExemptionPolicy string        `yaml:"exemption_policy,omitempty" json:"exemption_policy,omitempty"`
	Client          ClientSection `yaml:"client,omitempty" json:"client,omitempty"`
}

// ClientSection configures the siteverify HTTP client.
type ClientSection struct {
	URL            string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	ConnectTimeout string `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout   string `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// Settings contains process-level settings.
type Settings struct {
	LogDir    string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`
	AdminAddr string `yaml:"admin_addr,omitempty" json:"admin_addr,omitempty" validate:"omitempty,hostname_port"`
	Audit     *bool  `yaml:"audit,omitempty" json:"audit,omitempty"`
	Metrics   *bool  `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads a YAML config file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML config data. Validation happens once environment
// overrides have been applied, see Config construction.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return &f, nil
}

func applyEnv(f *File) {
	if v := os.Getenv(EnvSecret); v != "" {
		f.ReCaptcha.Secret = v
	}
	if v, ok := os.LookupEnv(EnvBypassKey); ok {
		f.ReCaptcha.BypassKey = v
	}
	if v := os.Getenv(EnvClientURL); v != "" {
		f.ReCaptcha.Client.URL = v
	}
}

func normalize(f *File) {
	for i, m := range f.ReCaptcha.FilteredMethods {
		f.ReCaptcha.FilteredMethods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
}

func validateFile(f *File) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
