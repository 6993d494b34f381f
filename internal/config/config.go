package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all demski configuration.
type Config struct {
	Sampling SamplingConfig `yaml:"sampling"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SamplingConfig bounds and shapes prior sampling.
type SamplingConfig struct {
	Duration   string `yaml:"duration" validate:"duration"`     // wall-clock budget, "" for none
	MaxSamples int    `yaml:"max_samples" validate:"gte=0"`     // 0 = unlimited
	Workers    int    `yaml:"workers" validate:"gte=1,lte=256"` // parallel oracle scopes
	Seed       int64  `yaml:"seed"`                             // 0 = time-seeded
}

// OracleConfig configures the satisfiability oracle.
type OracleConfig struct {
	CheckTimeout string `yaml:"check_timeout" validate:"duration"` // "" = wait for an answer
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Duration: "10s",
			Workers:  1,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(".demski", "runs.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparsable
// numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("DEMSKI_DB"); path != "" {
		c.Store.Path = path
	}
	if v := os.Getenv("DEMSKI_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sampling.Workers = n
		}
	}
	if v := os.Getenv("DEMSKI_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Sampling.Seed = n
		}
	}
	if level := os.Getenv("DEMSKI_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// SampleDuration returns the sampling budget, or 0 when none is set.
func (c *Config) SampleDuration() time.Duration {
	d, err := time.ParseDuration(c.Sampling.Duration)
	if err != nil {
		return 0
	}
	return d
}

// CheckTimeout returns the per-check oracle timeout, or 0 for none.
func (c *Config) CheckTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.CheckTimeout)
	if err != nil {
		return 0
	}
	return d
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", validateDuration)
	return v
}

// validateDuration accepts "" or a non-negative time.ParseDuration string.
func validateDuration(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d >= 0
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.SampleDuration() == 0 && c.Sampling.MaxSamples == 0 {
		return fmt.Errorf("invalid configuration: sampling needs a duration or max_samples")
	}
	return nil
}
