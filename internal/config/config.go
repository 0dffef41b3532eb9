// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the environment, in increasing order of priority.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"

	html2pdf "github.com/alnah/go-html2pdf"
	"github.com/alnah/go-html2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidEnv     = errors.New("invalid environment variable")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Deployment environments.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Defaults.
const (
	DefaultPort      = 3000
	DefaultBodyLimit = "10M"
	DefaultRateLimit = 5.0
	DefaultRateBurst = 10
	DefaultEnvFile   = ".env"
)

// Environment variable names.
const (
	envPrefix         = "HTML2PDF_"
	EnvVarEnvironment = "HTML2PDF_ENV"
	EnvVarPort        = "PORT"
	EnvVarConcurrency = "HTML2PDF_CONCURRENCY"
	EnvVarMaxPages    = "HTML2PDF_MAX_PAGES"
	EnvVarRateLimit   = "HTML2PDF_RATE_LIMIT"
	EnvVarRateBurst   = "HTML2PDF_RATE_BURST"
	EnvVarBodyLimit   = "HTML2PDF_BODY_LIMIT"
	EnvVarCORSOrigins = "HTML2PDF_CORS_ORIGINS"
	EnvVarLogLevel    = "HTML2PDF_LOG_LEVEL"
	EnvVarDownload    = "HTML2PDF_BROWSER_DOWNLOAD"
	EnvVarConfigFile  = "HTML2PDF_CONFIG"
	EnvVarBrowserBin  = "ROD_BROWSER_BIN"
	EnvVarNoSandbox   = "ROD_NO_SANDBOX"
	EnvVarCI          = "CI"
)

const maxCORSOriginCount = 50

// knownPrefixed lists the HTML2PDF_* variables read by Load.
var knownPrefixed = []string{
	EnvVarEnvironment,
	EnvVarConcurrency,
	EnvVarMaxPages,
	EnvVarRateLimit,
	EnvVarRateBurst,
	EnvVarBodyLimit,
	EnvVarCORSOrigins,
	EnvVarLogLevel,
	EnvVarDownload,
	EnvVarConfigFile,
}

var logLevels = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}

// Config holds all server settings.
type Config struct {
	Environment string        `yaml:"environment"`
	Port        int           `yaml:"port"`
	Concurrency int           `yaml:"concurrency"` // 0 = profile default
	MaxPages    int           `yaml:"maxPages"`    // 0 = profile default
	RateLimit   float64       `yaml:"rateLimit"`   // requests per second per client, 0 disables
	RateBurst   int           `yaml:"rateBurst"`
	BodyLimit   string        `yaml:"bodyLimit"` // e.g. "10M"
	CORSOrigins []string      `yaml:"corsOrigins"`
	LogLevel    string        `yaml:"logLevel"` // empty = environment default
	Browser     BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls how Chrome is found and launched.
type BrowserConfig struct {
	Bin       string `yaml:"bin"`
	NoSandbox bool   `yaml:"noSandbox"`
	Download  bool   `yaml:"download"`
}

// Default returns a development configuration.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Port:        DefaultPort,
		RateLimit:   DefaultRateLimit,
		RateBurst:   DefaultRateBurst,
		BodyLimit:   DefaultBodyLimit,
		CORSOrigins: []string{"*"},
	}
}

// Production reports whether the constrained profile applies.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// Limits resolves the request limits for the environment and overrides.
func (c *Config) Limits() html2pdf.Limits {
	return html2pdf.ResolveLimits(c.Production(), c.Concurrency, c.MaxPages)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != EnvProduction && c.Environment != EnvDevelopment {
		errs = append(errs, fmt.Errorf("environment: %q (must be %s or %s)", c.Environment, EnvProduction, EnvDevelopment))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port: %d out of range 1-65535", c.Port))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency: must not be negative, got %d", c.Concurrency))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("maxPages: must not be negative, got %d", c.MaxPages))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rateLimit: must not be negative, got %v", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rateBurst: must be at least 1 when rate limiting, got %d", c.RateBurst))
	}
	if _, err := bytes.Parse(c.BodyLimit); err != nil {
		errs = append(errs, fmt.Errorf("bodyLimit: %q: %v", c.BodyLimit, err))
	}
	if len(c.CORSOrigins) > maxCORSOriginCount {
		errs = append(errs, fmt.Errorf("corsOrigins: at most %d entries", maxCORSOriginCount))
	}
	if c.LogLevel != "" && !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("logLevel: %q (must be one of %s)", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is a YAML file path; empty falls back to HTML2PDF_CONFIG.
	ConfigFile string
	// EnvFile is a dotenv file. A missing DefaultEnvFile is ignored;
	// any other missing file is an error.
	EnvFile string
	// Lookup reads the process environment. Defaults to os.LookupEnv.
	Lookup LookupFunc
	// Environ lists the process environment for unknown-variable warnings.
	// Defaults to os.Environ.
	Environ func() []string
}

// Load builds the configuration. Warnings report ignored settings.
func Load(opts LoadOptions) (*Config, []string, error) {
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	lookup := withFallback(opts.Lookup, dotenv)

	cfg := Default()
	path := opts.ConfigFile
	if path == "" {
		path, _ = lookup(EnvVarConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	environ := opts.Environ()
	for k := range dotenv {
		environ = append(environ, k+"=")
	}
	return cfg, UnknownVariables(environ), nil
}

// readEnvFile parses a dotenv file without touching the process environment.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultEnvFile {
			return nil, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vars, nil
}

// withFallback consults the environment first, then the dotenv values.
func withFallback(lookup LookupFunc, dotenv map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// loadFile layers a YAML file over the current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-provided path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yamlutil.Decode(data, c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables that are set and non-empty.
func (c *Config) applyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvVarEnvironment); ok {
		c.Environment = strings.ToLower(v)
	}
	if err := envInt(get, EnvVarPort, &c.Port); err != nil {
		return err
	}
	if err := envInt(get, EnvVarConcurrency, &c.Concurrency); err != nil {
		return err
	}
	if err := envInt(get, EnvVarMaxPages, &c.MaxPages); err != nil {
		return err
	}
	if err := envInt(get, EnvVarRateBurst, &c.RateBurst); err != nil {
		return err
	}
	if v, ok := get(EnvVarRateLimit); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidEnv, EnvVarRateLimit, v)
		}
		c.RateLimit = f
	}
	if v, ok := get(EnvVarBodyLimit); ok {
		c.BodyLimit = v
	}
	if v, ok := get(EnvVarCORSOrigins); ok {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := get(EnvVarLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvVarBrowserBin); ok {
		c.Browser.Bin = v
	}
	if err := envBool(get, EnvVarNoSandbox, &c.Browser.NoSandbox); err != nil {
		return err
	}
	if err := envBool(get, EnvVarDownload, &c.Browser.Download); err != nil {
		return err
	}
	// CI runners rarely allow Chrome's sandbox.
	if v, ok := get(EnvVarCI); ok {
		if ci, err := strconv.ParseBool(v); err == nil && ci {
			c.Browser.NoSandbox = true
		}
	}
	return nil
}

func envInt(get func(string) (string, bool), key string, dst *int) error {
	v, ok := get(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidEnv, key, v)
	}
	*dst = n
	return nil
}

func envBool(get func(string) (string, bool), key string, dst *bool) error {
	v, ok := get(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidEnv, key, v)
	}
	*dst = b
	return nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UnknownVariables returns a warning for every HTML2PDF_* variable in
// environ that is not read by Load. Output is sorted and deduplicated.
func UnknownVariables(environ []string) []string {
	seen := map[string]bool{}
	var warnings []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, envPrefix) || slices.Contains(knownPrefixed, key) || seen[key] {
			continue
		}
		seen[key] = true
		warnings = append(warnings, fmt.Sprintf("unknown environment variable %s is ignored", key))
	}
	sort.Strings(warnings)
	return warnings
}

// Encode renders the effective configuration as YAML.
func (c *Config) Encode() ([]byte, error) {
	return yamlutil.Encode(c)
}
