package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Analyzer() AnalyzerConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods; decoding happens
// through the exported fileConfig shadow.
type Config struct {
	logger   LoggerConfig
	analyzer AnalyzerConfig

	// scan is populated from CLI flags, never from files.
	scan ScanConfig
}

// fileConfig mirrors Config with exported fields so viper can decode it.
type fileConfig struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
}

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Analyzer() AnalyzerConfig { return c.analyzer }
func (c *Config) Scan() ScanConfig         { return c.scan }

func (c *Config) SetScanConfig(sc ScanConfig) { c.scan = sc }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AnalyzerConfig tunes the taint analysis engine.
type AnalyzerConfig struct {
	// Concurrency bounds how many files are analyzed in parallel during a
	// directory scan.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// ExtraSources maps additional call names to taint kinds, layered on
	// top of the built-in catalog.
	ExtraSources map[string]string `mapstructure:"extra_sources" yaml:"extra_sources"`
	// ExtraSinks maps additional call names to vulnerability kinds.
	ExtraSinks map[string]string `mapstructure:"extra_sinks" yaml:"extra_sinks"`
	// ExtraPropagators lists additional taint preserving method names.
	ExtraPropagators []string `mapstructure:"extra_propagators" yaml:"extra_propagators"`
}

// ScanConfig describes one scan invocation. It comes from CLI flags, not
// from the configuration file.
type ScanConfig struct {
	Targets      []string
	OutputPath   string
	OutputFormat string
}

// NewDefaultConfig returns a Config populated solely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pysafescan")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Analyzer --
	v.SetDefault("analyzer.concurrency", 8)
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := &Config{logger: raw.Logger, analyzer: raw.Analyzer}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.analyzer.Concurrency <= 0 {
		return fmt.Errorf("analyzer.concurrency must be a positive integer")
	}
	for name, kind := range c.analyzer.ExtraSources {
		if name == "" || kind == "" {
			return fmt.Errorf("analyzer.extra_sources entries must have both a name and a kind")
		}
	}
	for name, kind := range c.analyzer.ExtraSinks {
		if name == "" || kind == "" {
			return fmt.Errorf("analyzer.extra_sinks entries must have both a name and a kind")
		}
	}
	return nil
}
