package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gobwas/glob"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for CaptchaGuard.
type Config struct {
	File *File

	Enabled         bool
	Secret          string
	Filter          FilterConfig
	Client          ClientConfig
	ExemptionPolicy string

	LogDir    string
	AdminAddr string
	Audit     bool
	Metrics   bool
}

// FilterConfig decides which requests are subject to validation.
// It is built once and only read afterwards.
type FilterConfig struct {
	ResponseName    string
	BypassKey       string
	URLPatterns     []*regexp.Regexp
	URLGlobs        []glob.Glob
	FilteredMethods map[string]struct{}
}

// ClientConfig configures the siteverify client.
type ClientConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Load reads a YAML config file and produces a runtime Config. An empty
// path yields a config built from defaults and environment variables only.
func Load(path string) (*Config, error) {
	f := &File{Version: 1}
	if path != "" {
		var err error
		f, err = LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	return FromFile(f)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	f, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return FromFile(f)
}

// LoadEnvFile loads variables from a dotenv file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

// FromFile applies environment overrides and defaults to f, validates it
// and compiles the filter configuration.
func FromFile(f *File) (*Config, error) {
	applyEnv(f)
	normalize(f)
	if err := validateFile(f); err != nil {
		return nil, err
	}

	rc := f.ReCaptcha
	cfg := &Config{
		File:            f,
		Enabled:         rc.Enabled == nil || *rc.Enabled,
		Secret:          rc.Secret,
		ExemptionPolicy: expandHome(rc.ExemptionPolicy),
		Audit:           f.Settings.Audit == nil || *f.Settings.Audit,
		Metrics:         f.Settings.Metrics == nil || *f.Settings.Metrics,
	}

	filter, err := buildFilterConfig(rc)
	if err != nil {
		return nil, err
	}
	cfg.Filter = *filter

	cfg.Client = ClientConfig{URL: rc.Client.URL}
	if cfg.Client.URL == "" {
		cfg.Client.URL = DefaultClientURL
	}
	timeouts := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"connect_timeout", rc.Client.ConnectTimeout, &cfg.Client.ConnectTimeout},
		{"read_timeout", rc.Client.ReadTimeout, &cfg.Client.ReadTimeout},
		{"write_timeout", rc.Client.WriteTimeout, &cfg.Client.WriteTimeout},
	}
	for _, t := range timeouts {
		if t.raw == "" {
			*t.dst = DefaultTimeout
			continue
		}
		d, err := time.ParseDuration(t.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", t.name, t.raw, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be positive", t.name, t.raw)
		}
		*t.dst = d
	}

	cfg.LogDir = f.Settings.LogDir
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	cfg.LogDir = expandHome(cfg.LogDir)

	cfg.AdminAddr = f.Settings.AdminAddr
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = DefaultAdminAddr
	}

	return cfg, nil
}

func buildFilterConfig(rc ReCaptchaSection) (*FilterConfig, error) {
	fc := &FilterConfig{
		ResponseName:    rc.ResponseName,
		BypassKey:       rc.BypassKey,
		FilteredMethods: make(map[string]struct{}),
	}
	if fc.ResponseName == "" {
		fc.ResponseName = DefaultResponseName
	}

	for _, p := range rc.URLPatterns {
		// Anchored so that patterns must match the whole path.
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("url pattern %q invalid: %w", p, err)
		}
		fc.URLPatterns = append(fc.URLPatterns, re)
	}
	for _, p := range rc.URLGlobs {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("url glob %q invalid: %w", p, err)
		}
		fc.URLGlobs = append(fc.URLGlobs, g)
	}

	methods := rc.FilteredMethods
	if len(methods) == 0 {
		methods = DefaultFilteredMethods()
	}
	for _, m := range methods {
		fc.FilteredMethods[m] = struct{}{}
	}
	return fc, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// MarshalYAML serializes the file configuration for display with secrets redacted.
func (c *Config) MarshalYAML() ([]byte, error) {
	f := *c.File
	if f.ReCaptcha.Secret != "" {
		f.ReCaptcha.Secret = redacted
	}
	if f.ReCaptcha.BypassKey != "" {
		f.ReCaptcha.BypassKey = redacted
	}
	return yaml.Marshal(&f)
}
