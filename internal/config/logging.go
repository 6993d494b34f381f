package config

import "demski/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string          `yaml:"format" validate:"omitempty,oneof=json text console"`
	File       string          `yaml:"file,omitempty"`       // "" writes to stderr
	DebugMode  bool            `yaml:"debug_mode"`           // false = warnings and errors only
	Categories map[string]bool `yaml:"categories,omitempty"` // per-category toggles
}

// Options converts the section for logging.Initialize.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
		OutputPath: c.File,
	}
}
