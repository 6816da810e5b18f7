// Package config provides configuration management for the model gateway.
//
// Values are layered: built-in defaults, then config.yaml (with ${VAR} and
// ${VAR:-default} placeholders), then environment variables. A .env file in
// the working directory is loaded into the environment first and never
// overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"modelgateway/internal/httpclient"
)

// Config holds the application configuration
type Config struct {
	Ollama         OllamaConfig         `yaml:"ollama"`
	Timeouts       TimeoutsConfig       `yaml:"timeouts"`
	LargeModels    []string             `yaml:"large_models"`
	Generation     GenerationConfig     `yaml:"generation"`
	Logging        LogConfig            `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	HTTP           HTTPConfig           `yaml:"http"`
}

// OllamaConfig locates the inference server
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
}

// TimeoutsConfig holds the per-call budgets
type TimeoutsConfig struct {
	Standard          Duration `yaml:"standard"`
	Large             Duration `yaml:"large"`
	Probe             Duration `yaml:"probe"`
	Catalog           Duration `yaml:"catalog"`
	AvailabilityProbe Duration `yaml:"availability_probe"`
}

// GenerationConfig holds the sampling options sent with every request
type GenerationConfig struct {
	NumCtx      int     `yaml:"num_ctx"`
	Temperature float64 `yaml:"temperature"`
	TopK        int     `yaml:"top_k"`
}

// LogConfig selects log level and output format
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is auto, pretty or json
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Address the CLI serves /metrics on while a command runs
	Address string `yaml:"address"`
}

// CircuitBreakerConfig controls the upstream circuit breaker
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold uint32   `yaml:"failure_threshold"`
	SuccessThreshold uint32   `yaml:"success_threshold"`
	Timeout          Duration `yaml:"timeout"`
}

// HTTPConfig tunes the shared HTTP client. Zero means no transport-level cap;
// the per-call budgets still apply.
type HTTPConfig struct {
	Timeout               Duration `yaml:"timeout"`
	ResponseHeaderTimeout Duration `yaml:"response_header_timeout"`
}

// LoadResult is a loaded configuration plus where it came from.
type LoadResult struct {
	Config *Config
	// ConfigFile is the YAML file that was read, or "" when none was found
	ConfigFile string
}

// Duration is a time.Duration that unmarshals from integer seconds or a Go
// duration string such as "3m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, ok := httpclient.ParseDuration(strings.TrimSpace(value.Value))
	if !ok {
		return fmt.Errorf("invalid duration %q at line %d", value.Value, value.Line)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// configPaths are searched in order when CONFIG_FILE is unset.
var configPaths = []string{"config.yaml", "config/config.yaml"}

// Load reads configuration from defaults, config.yaml and the environment.
func Load() (*LoadResult, error) {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &LoadResult{Config: cfg, ConfigFile: path}, nil
}

func buildDefaultConfig() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Timeouts: TimeoutsConfig{
			Standard:          Duration(180 * time.Second),
			Large:             Duration(1000 * time.Second),
			Probe:             Duration(5 * time.Second),
			Catalog:           Duration(10 * time.Second),
			AvailabilityProbe: Duration(8 * time.Second),
		},
		LargeModels: []string{"deepseek", "llama3-70b", "mixtral-8x7b", "qwen", "solar-10b"},
		Generation: GenerationConfig{
			NumCtx:      8192,
			Temperature: 0.7,
			TopK:        50,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          Duration(30 * time.Second),
		},
	}
}

func findConfigFile() (string, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A placeholder with no
// default whose variable is unset or empty is left as is.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholder.FindStringSubmatch(match)
		name, hasDefault, def := parts[1], parts[2] != "", parts[3]
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		return match
	})
}

// applyEnvOverrides applies environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OLLAMA_API_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("GATEWAY_LARGE_MODELS"); v != "" {
		cfg.LargeModels = splitList(v)
	}

	durations := []struct {
		key    string
		target *Duration
	}{
		{"GATEWAY_STANDARD_TIMEOUT", &cfg.Timeouts.Standard},
		{"GATEWAY_LARGE_TIMEOUT", &cfg.Timeouts.Large},
		{"GATEWAY_PROBE_TIMEOUT", &cfg.Timeouts.Probe},
		{"GATEWAY_CATALOG_TIMEOUT", &cfg.Timeouts.Catalog},
		{"GATEWAY_AVAILABILITY_PROBE_TIMEOUT", &cfg.Timeouts.AvailabilityProbe},
		{"CIRCUIT_BREAKER_TIMEOUT", &cfg.CircuitBreaker.Timeout},
		{"HTTP_TIMEOUT", &cfg.HTTP.Timeout},
		{"HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, ok := httpclient.ParseDuration(v)
		if !ok {
			return fmt.Errorf("invalid %s value %q: expected seconds or a duration like 3m", d.key, v)
		}
		*d.target = Duration(parsed)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{"METRICS_ENABLED", &cfg.Metrics.Enabled},
		{"CIRCUIT_BREAKER_ENABLED", &cfg.CircuitBreaker.Enabled},
	}
	for _, b := range bools {
		v := os.Getenv(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", b.key, v, err)
		}
		*b.target = parsed
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Ollama.BaseURL) == "" {
		errs = append(errs, errors.New("ollama.base_url must not be empty"))
	}

	budgets := []struct {
		name  string
		value Duration
	}{
		{"timeouts.standard", c.Timeouts.Standard},
		{"timeouts.large", c.Timeouts.Large},
		{"timeouts.probe", c.Timeouts.Probe},
		{"timeouts.catalog", c.Timeouts.Catalog},
		{"timeouts.availability_probe", c.Timeouts.AvailabilityProbe},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", b.name, b.value.Std()))
		}
	}

	if c.Generation.Temperature < 0 {
		errs = append(errs, fmt.Errorf("generation.temperature must not be negative, got %v", c.Generation.Temperature))
	}
	if c.HTTP.Timeout < 0 || c.HTTP.ResponseHeaderTimeout < 0 {
		errs = append(errs, errors.New("http timeouts must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
