// Package config provides configuration management for the codex worker.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"medcodex/internal/adapter"
)

// Configuration validation errors.
var (
	ErrNoSources                = errors.New("at least one source is required")
	ErrNoEnabledSources         = errors.New("at least one source must be enabled")
	ErrSourceMissingID          = errors.New("id is required")
	ErrSourceMissingCodex       = errors.New("codex is required")
	ErrSourceMissingURLOrFile   = errors.New("either url or file path is required")
	ErrSourceInvalidFormat      = errors.New("format must be fixed-width, delimited, or archive-member")
	ErrSourceMissingFields      = errors.New("fixed-width sources must declare fields")
	ErrSourceInvalidField       = errors.New("fixed-width field needs a name, start >= 0, and length >= 1")
	ErrSourceInvalidDelimiter   = errors.New("delimiter must be a single character, 'tab', or 'pipe'")
	ErrSourceMissingColumns     = errors.New("delimited sources need header: true or explicit columns")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrMissingOutputPath        = errors.New("output.base_path is required")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidParallelism       = errors.New("advanced.max_parallel_sources must be at least 1")
)

// Config represents the complete worker configuration.
type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Features FeaturesConfig `yaml:"features"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// WorkerConfig contains pipeline-wide settings.
type WorkerConfig struct {
	InputDir string         `yaml:"input_dir"`
	Output   OutputConfig   `yaml:"output"`
	Sources  []SourceConfig `yaml:"sources"`
	Logging  LoggingConfig  `yaml:"logging"`
	Retry    RetryPolicy    `yaml:"retry"`
}

// SourceConfig describes one codex source: where its raw release lives and
// how to parse it into the canonical schema.
type SourceConfig struct {
	ID      string `yaml:"id"`
	Codex   string `yaml:"codex"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	File    string `yaml:"file"`
	Enabled bool   `yaml:"enabled"`

	// Format selection. Format defaults to "delimited".
	Format    string       `yaml:"format"`
	Encoding  string       `yaml:"encoding"`
	Delimiter string       `yaml:"delimiter"`
	Header    bool         `yaml:"header"`
	Columns   []string     `yaml:"columns"`
	Fields    []FieldRange `yaml:"fields"`

	// Field-selection overrides; empty means the codex profile decides.
	CodeColumns        []string          `yaml:"code_columns"`
	DescriptionColumns []string          `yaml:"description_columns"`
	Filters            map[string]string `yaml:"filters"`
	MaxCodeLength      int               `yaml:"max_code_length"`

	Archive ArchiveConfig `yaml:"archive"`
}

// FieldRange declares one fixed-width column.
type FieldRange struct {
	Name   string `yaml:"name"`
	Start  int    `yaml:"start"`
	Length int    `yaml:"length"`
}

// ArchiveConfig controls zip member selection for archived releases.
type ArchiveConfig struct {
	Prefer  string `yaml:"prefer"`
	Exclude string `yaml:"exclude"`
}

// RetryPolicy defines download retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// OutputConfig defines where snapshots and reject files land.
type OutputConfig struct {
	BasePath   string `yaml:"base_path"`
	RejectPath string `yaml:"reject_path"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	ShowProgress bool   `yaml:"show_progress"`
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableCodePatterns bool `yaml:"enable_code_patterns"`
	EnableFetch        bool `yaml:"enable_fetch"`
}

// AdvancedConfig contains advanced settings.
type AdvancedConfig struct {
	MaxParallelSources int  `yaml:"max_parallel_sources"`
	SaveFailedRows     bool `yaml:"save_failed_rows"`
	RejectSampleSize   int  `yaml:"reject_sample_size"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.Logging.Level == "" {
		c.Worker.Logging.Level = "info"
	}

	if c.Advanced.MaxParallelSources == 0 {
		c.Advanced.MaxParallelSources = 1
	}

	if c.Advanced.RejectSampleSize == 0 {
		c.Advanced.RejectSampleSize = 25
	}

	for i := range c.Worker.Sources {
		if c.Worker.Sources[i].Format == "" {
			c.Worker.Sources[i].Format = string(adapter.KindDelimited)
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Worker.Sources) == 0 {
		return ErrNoSources
	}

	enabledCount := 0

	for i, src := range c.Worker.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("%w: source[%d]", err, i)
		}

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	if c.Worker.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Worker.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Worker.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Worker.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Worker.Output.BasePath == "" {
		return ErrMissingOutputPath
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Worker.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Advanced.MaxParallelSources < 1 {
		return ErrInvalidParallelism
	}

	return nil
}

func (s *SourceConfig) validate() error {
	if s.ID == "" {
		return ErrSourceMissingID
	}

	if s.Codex == "" {
		return ErrSourceMissingCodex
	}

	if s.URL == "" && s.File == "" {
		return ErrSourceMissingURLOrFile
	}

	switch adapter.Kind(s.Format) {
	case adapter.KindFixedWidth:
		if len(s.Fields) == 0 {
			return ErrSourceMissingFields
		}

		for _, f := range s.Fields {
			if f.Name == "" || f.Start < 0 || f.Length < 1 {
				return ErrSourceInvalidField
			}
		}
	case adapter.KindDelimited, adapter.KindArchiveMember:
		if !s.Header && len(s.Columns) == 0 {
			return ErrSourceMissingColumns
		}

		if _, err := s.DelimiterRune(); err != nil {
			return err
		}
	default:
		return ErrSourceInvalidFormat
	}

	for name, pattern := range map[string]string{
		"archive.prefer":  s.Archive.Prefer,
		"archive.exclude": s.Archive.Exclude,
	} {
		if pattern == "" {
			continue
		}

		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%s is invalid regex: %w", name, err)
		}
	}

	return nil
}

// IsLocalFile returns true if this source reads from a local file.
func (s *SourceConfig) IsLocalFile() bool {
	return s.File != ""
}

// GetSource returns the file path if local, or URL if remote.
func (s *SourceConfig) GetSource() string {
	if s.IsLocalFile() {
		return s.File
	}

	return s.URL
}

// DelimiterRune resolves the configured delimiter name to a rune.
func (s *SourceConfig) DelimiterRune() (rune, error) {
	switch s.Delimiter {
	case "", ",":
		return ',', nil
	case "tab", "\t":
		return '\t', nil
	case "pipe", "|":
		return '|', nil
	default:
		runes := []rune(s.Delimiter)
		if len(runes) != 1 {
			return 0, fmt.Errorf("%w: %q", ErrSourceInvalidDelimiter, s.Delimiter)
		}

		return runes[0], nil
	}
}

// FormatSpec assembles the adapter format spec for this source.
func (s *SourceConfig) FormatSpec() (adapter.FormatSpec, error) {
	spec := adapter.FormatSpec{
		Kind:     adapter.Kind(s.Format),
		Header:   s.Header,
		Columns:  s.Columns,
		Encoding: s.Encoding,
	}

	if spec.Kind == adapter.KindFixedWidth {
		spec.Fields = make([]adapter.Field, len(s.Fields))
		for i, f := range s.Fields {
			spec.Fields[i] = adapter.Field{Name: f.Name, Start: f.Start, Length: f.Length}
		}

		return spec, nil
	}

	delim, err := s.DelimiterRune()
	if err != nil {
		return adapter.FormatSpec{}, err
	}

	spec.Delimiter = delim

	return spec, nil
}

// GetEnabledSources returns only enabled sources.
func (c *Config) GetEnabledSources() []SourceConfig {
	var enabled []SourceConfig

	for _, src := range c.Worker.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// GetOutputPath returns the snapshot path for a source:
// {base_path}/{id}_clean.csv.
func (c *Config) GetOutputPath(sourceID string) string {
	return filepath.Join(c.Worker.Output.BasePath, sourceID+"_clean.csv")
}

// GetRejectPath returns the rejected-rows path for a source:
// {reject_path}/{id}_invalid.csv. Falls back next to the snapshot when
// reject_path is unset.
func (c *Config) GetRejectPath(sourceID string) string {
	dir := c.Worker.Output.RejectPath
	if dir == "" {
		dir = c.Worker.Output.BasePath
	}

	return filepath.Join(dir, sourceID+"_invalid.csv")
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if rp.MaxDelayMs > 0 && int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d, MaxAttempts: %d, Output: %s}",
		len(c.Worker.Sources),
		c.Worker.Retry.MaxAttempts,
		c.Worker.Output.BasePath,
	)
}
