// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pyhabit/internal/models"
)

// Config represents the configuration for pyhabit
type Config struct {
	Version string `yaml:"version" json:"version"`

	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Detector toggles
	Rules RulesConfig `yaml:"rules" json:"rules"`

	// pylint subprocess
	Bridge BridgeConfig `yaml:"bridge" json:"bridge"`

	// HTTP service
	Server ServerConfig `yaml:"server" json:"server"`

	// LLM explanations
	Explain ExplainConfig `yaml:"explain" json:"explain"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// File patterns
	Files FilesConfig `yaml:"files" json:"files"`
}

type AnalysisConfig struct {
	// Lowest category that makes the CLI exit non-zero.
	FailOn string `yaml:"fail_on" json:"fail_on"`

	// Health score thresholds
	ScoreThresholds ScoreThresholds `yaml:"score_thresholds" json:"score_thresholds"`
}

type ScoreThresholds struct {
	Excellent int `yaml:"excellent" json:"excellent"` // >= 90
	Good      int `yaml:"good" json:"good"`           // >= 75
	Fair      int `yaml:"fair" json:"fair"`           // >= 50
	Poor      int `yaml:"poor" json:"poor"`           // < 50
}

type OutputConfig struct {
	// Default output format
	Format string `yaml:"format" json:"format"`

	// Colorized output
	Colors bool `yaml:"colors" json:"colors"`

	// Print the per-category breakdown
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Output file path (optional)
	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty"`
}

type RuleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type RulesConfig struct {
	MutableDefault     RuleConfig `yaml:"mutable_default" json:"mutable_default"`
	InfiniteLoop       RuleConfig `yaml:"infinite_loop" json:"infinite_loop"`
	ExceptionHandling  RuleConfig `yaml:"exception_handling" json:"exception_handling"`
	ResourceManagement RuleConfig `yaml:"resource_management" json:"resource_management"`
	UnreachableCode    RuleConfig `yaml:"unreachable_code" json:"unreachable_code"`
	BuiltinShadowing   RuleConfig `yaml:"builtin_shadowing" json:"builtin_shadowing"`
}

type BridgeConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Executable name or path
	Command string `yaml:"command" json:"command"`

	// Extra arguments placed before the file name
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr" validate:"required"`
	MaxSourceBytes  int64         `yaml:"max_source_bytes" json:"max_source_bytes" validate:"gte=1"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type ExplainConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// "anthropic" or "openai"
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// Optional endpoint override, e.g. a local OpenAI-compatible server
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Read from the environment only
	APIKey string `yaml:"-" json:"-"`

	MaxConcurrency    int           `yaml:"max_concurrency" json:"max_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	MaxTokens         int           `yaml:"max_tokens" json:"max_tokens" validate:"gte=1"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type TracingConfig struct {
	// "none", "stdout" or "otlp"
	Exporter     string `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp"`
	ServiceName  string `yaml:"service_name" json:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure" json:"otlp_insecure"`
}

type FilesConfig struct {
	// Directory names skipped while walking
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`

	// Max file size (in KB)
	MaxFileSize int `yaml:"max_file_size" json:"max_file_size" validate:"gte=1"`
}

func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Analysis: AnalysisConfig{
			FailOn: models.CategoryRuntimeError.String(),
			ScoreThresholds: ScoreThresholds{
				Excellent: 90,
				Good:      75,
				Fair:      50,
				Poor:      0,
			},
		},
		Output: OutputConfig{
			Format:  "console",
			Colors:  true,
			Verbose: false,
		},
		Rules: RulesConfig{
			MutableDefault:     RuleConfig{Enabled: true},
			InfiniteLoop:       RuleConfig{Enabled: true},
			ExceptionHandling:  RuleConfig{Enabled: true},
			ResourceManagement: RuleConfig{Enabled: true},
			UnreachableCode:    RuleConfig{Enabled: true},
			BuiltinShadowing:   RuleConfig{Enabled: true},
		},
		Bridge: BridgeConfig{
			Enabled: true,
			Command: "pylint",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxSourceBytes:  1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Explain: ExplainConfig{
			Enabled:           false,
			Provider:          "anthropic",
			Model:             "claude-3-haiku-20240307",
			MaxConcurrency:    4,
			RequestsPerSecond: 2,
			MaxTokens:         500,
			Timeout:           30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			ServiceName:  "pyhabit",
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
		Files: FilesConfig{
			ExcludeDirs: []string{"venv", ".venv", "__pycache__", ".git", "node_modules"},
			MaxFileSize: 1024, // 1MB
		},
	}
}

// LoadConfig loads configuration from file or returns default
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findConfigFile()
	}

	config := DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// findConfigFile looks for config files in common locations
func findConfigFile() string {
	possiblePaths := []string{
		".pyhabit.yml",
		".pyhabit.yaml",
		"pyhabit.yml",
		"pyhabit.yaml",
		".config/pyhabit.yml",
		".config/pyhabit.yaml",
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnv fills secrets that never live in the config file.
func (c *Config) applyEnv() {
	switch c.Explain.Provider {
	case "anthropic":
		c.Explain.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.Explain.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

var structValidator = validator.New()

// Validate checks cross-field rules and the struct tag constraints.
func (c *Config) Validate() error {
	st := c.Analysis.ScoreThresholds
	if st.Excellent < st.Good || st.Good < st.Fair || st.Fair < st.Poor {
		return fmt.Errorf("score thresholds must be in descending order")
	}

	if _, err := models.ParseCategory(c.Analysis.FailOn); err != nil {
		return fmt.Errorf("invalid fail_on: %w", err)
	}

	validFormats := []string{"console", "json"}
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, validFormats)
	}

	if c.Bridge.Enabled {
		if c.Bridge.Command == "" {
			return fmt.Errorf("bridge.command must be set when the bridge is enabled")
		}
		if c.Bridge.Timeout <= 0 {
			return fmt.Errorf("bridge.timeout must be positive")
		}
	}

	if c.Explain.Enabled {
		validProviders := []string{"anthropic", "openai"}
		if !slices.Contains(validProviders, c.Explain.Provider) {
			return fmt.Errorf("invalid explain provider: %s (valid: %v)", c.Explain.Provider, validProviders)
		}
		if c.Explain.MaxConcurrency < 1 {
			return fmt.Errorf("explain.max_concurrency must be at least 1")
		}
		if c.Explain.RequestsPerSecond <= 0 {
			return fmt.Errorf("explain.requests_per_second must be positive")
		}
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s (valid: text, json)", c.Logging.Format)
	}

	// Plain range checks live in the struct tags.
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateConfig creates a sample configuration file
func GenerateConfig(configPath string) error {
	return DefaultConfig().SaveConfig(configPath)
}

// IsRuleEnabled checks if a specific detector rule is enabled
func (c *Config) IsRuleEnabled(rule string) bool {
	switch rule {
	case "mutable_default":
		return c.Rules.MutableDefault.Enabled
	case "infinite_loop":
		return c.Rules.InfiniteLoop.Enabled
	case "exception_handling":
		return c.Rules.ExceptionHandling.Enabled
	case "resource_management":
		return c.Rules.ResourceManagement.Enabled
	case "unreachable_code":
		return c.Rules.UnreachableCode.Enabled
	case "builtin_shadowing":
		return c.Rules.BuiltinShadowing.Enabled
	default:
		return false
	}
}

// FailThreshold returns the category parsed from analysis.fail_on.
func (c *Config) FailThreshold() models.Category {
	cat, err := models.ParseCategory(c.Analysis.FailOn)
	if err != nil {
		return models.CategoryRuntimeError
	}
	return cat
}

// ParseLevel maps a logging.level value onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid logging level: %s", s)
	}
	return level, nil
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
