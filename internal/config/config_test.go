package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"medcodex/internal/adapter"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// validConfigYAML is a minimal valid configuration.
const validConfigYAML = `
worker:
  sources:
    - id: "icd10cm"
      codex: "icd10cm"
      name: "ICD-10-CM order file"
      file: "./data/icd10cm_order_2025.txt"
      enabled: true
      format: "fixed-width"
      fields:
        - name: "order"
          start: 0
          length: 5
        - name: "code"
          start: 6
          length: 7
        - name: "description"
          start: 77
          length: 200
    - id: "hcpcs"
      codex: "hcpcs"
      url: "https://example.com/hcpcs.csv"
      enabled: true
      header: true
  retry:
    max_attempts: 3
    initial_delay_ms: 100
    max_delay_ms: 5000
    backoff_multiplier: 2.0
    timeout_sec: 30
  output:
    base_path: "./output"
    reject_path: "./output/rejects"
  logging:
    level: "info"
    show_progress: true
features:
  enable_code_patterns: true
  enable_fetch: false
advanced:
  max_parallel_sources: 2
  save_failed_rows: true
`

// validSource returns a source that passes validation on its own.
func validSource() SourceConfig {
	return SourceConfig{
		ID:      "hcpcs",
		Codex:   "hcpcs",
		URL:     "https://example.com/hcpcs.csv",
		Enabled: true,
		Format:  "delimited",
		Header:  true,
	}
}

// validBase returns a config that passes Validate, for mutation in tests.
func validBase() *Config {
	return &Config{
		Worker: WorkerConfig{
			Sources: []SourceConfig{validSource()},
			Retry:   RetryPolicy{MaxAttempts: 1, InitialDelayMs: 100, BackoffMultiplier: 1.0, TimeoutSec: 10},
			Output:  OutputConfig{BasePath: "./out"},
			Logging: LoggingConfig{Level: "info"},
		},
		Advanced: AdvancedConfig{MaxParallelSources: 1},
	}
}

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(cfg.Worker.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(cfg.Worker.Sources))
	}

	if cfg.Worker.Sources[0].ID != "icd10cm" {
		t.Errorf("Expected source id 'icd10cm', got '%s'", cfg.Worker.Sources[0].ID)
	}

	if cfg.Worker.Sources[0].Format != "fixed-width" {
		t.Errorf("Expected fixed-width format, got '%s'", cfg.Worker.Sources[0].Format)
	}

	if len(cfg.Worker.Sources[0].Fields) != 3 {
		t.Errorf("Expected 3 fields, got %d", len(cfg.Worker.Sources[0].Fields))
	}

	if !cfg.Features.EnableCodePatterns {
		t.Error("Expected enable_code_patterns to be true")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	configPath := createTempConfigFile(t, `
worker:
  sources:
    - id: "hcpcs"
      codex: "hcpcs"
      url: "https://example.com/hcpcs.csv"
      enabled: true
      header: true
  retry:
    max_attempts: 1
    backoff_multiplier: 1.0
    timeout_sec: 10
  output:
    base_path: "./out"
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Worker.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.Worker.Logging.Level)
	}

	if cfg.Worker.Sources[0].Format != "delimited" {
		t.Errorf("Expected default format 'delimited', got '%s'", cfg.Worker.Sources[0].Format)
	}

	if cfg.Advanced.MaxParallelSources != 1 {
		t.Errorf("Expected default parallelism 1, got %d", cfg.Advanced.MaxParallelSources)
	}

	if cfg.Advanced.RejectSampleSize != 25 {
		t.Errorf("Expected default reject sample size 25, got %d", cfg.Advanced.RejectSampleSize)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "invalid: yaml: content: [}")

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate_NoSources(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Sources = nil

	if err := cfg.Validate(); !errors.Is(err, ErrNoSources) {
		t.Fatalf("Expected ErrNoSources, got %v", err)
	}
}

func TestConfig_Validate_NoEnabledSources(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Sources[0].Enabled = false

	if err := cfg.Validate(); !errors.Is(err, ErrNoEnabledSources) {
		t.Fatalf("Expected ErrNoEnabledSources, got %v", err)
	}
}

func TestConfig_Validate_SourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SourceConfig)
		want   error
	}{
		{"missing id", func(s *SourceConfig) { s.ID = "" }, ErrSourceMissingID},
		{"missing codex", func(s *SourceConfig) { s.Codex = "" }, ErrSourceMissingCodex},
		{"missing url and file", func(s *SourceConfig) { s.URL = "" }, ErrSourceMissingURLOrFile},
		{"bad format", func(s *SourceConfig) { s.Format = "xml" }, ErrSourceInvalidFormat},
		{"fixed-width without fields", func(s *SourceConfig) { s.Format = "fixed-width" }, ErrSourceMissingFields},
		{
			"fixed-width zero-length field",
			func(s *SourceConfig) {
				s.Format = "fixed-width"
				s.Fields = []FieldRange{{Name: "code", Start: 0, Length: 0}}
			},
			ErrSourceInvalidField,
		},
		{
			"delimited without header or columns",
			func(s *SourceConfig) { s.Header = false },
			ErrSourceMissingColumns,
		},
		{
			"multi-character delimiter",
			func(s *SourceConfig) { s.Delimiter = "::" },
			ErrSourceInvalidDelimiter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(&cfg.Worker.Sources[0])

			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfig_Validate_InvalidArchiveRegex(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Sources[0].Archive.Prefer = "[invalid(regex"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for invalid archive regex")
	}
}

func TestConfig_Validate_InvalidRetryMaxAttempts(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Retry.MaxAttempts = 0

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxAttempts) {
		t.Fatalf("Expected ErrInvalidMaxAttempts, got %v", err)
	}
}

func TestConfig_Validate_InvalidBackoffMultiplier(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Retry.BackoffMultiplier = 0.5

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoffMultiplier) {
		t.Fatalf("Expected ErrInvalidBackoffMultiplier, got %v", err)
	}
}

func TestConfig_Validate_MissingOutputPath(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Output.BasePath = ""

	if err := cfg.Validate(); !errors.Is(err, ErrMissingOutputPath) {
		t.Fatalf("Expected ErrMissingOutputPath, got %v", err)
	}
}

func TestConfig_Validate_InvalidLoggingLevel(t *testing.T) {
	cfg := validBase()
	cfg.Worker.Logging.Level = "verbose"

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidLogLevel) {
		t.Fatalf("Expected ErrInvalidLogLevel, got %v", err)
	}
}

// --- SourceConfig Tests ---

func TestSourceConfig_IsLocalFile(t *testing.T) {
	tests := []struct {
		name     string
		src      SourceConfig
		expected bool
	}{
		{"URL only", SourceConfig{URL: "https://example.com"}, false},
		{"File only", SourceConfig{File: "/data/codes.csv"}, true},
		{"Both URL and File", SourceConfig{URL: "https://example.com", File: "/data/codes.csv"}, true},
		{"Neither", SourceConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.IsLocalFile(); got != tt.expected {
				t.Errorf("IsLocalFile() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSourceConfig_GetSource(t *testing.T) {
	tests := []struct {
		name     string
		src      SourceConfig
		expected string
	}{
		{"URL only", SourceConfig{URL: "https://example.com"}, "https://example.com"},
		{"File only", SourceConfig{File: "/data/codes.csv"}, "/data/codes.csv"},
		{"Both (File takes precedence)", SourceConfig{URL: "https://example.com", File: "/data/codes.csv"}, "/data/codes.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.GetSource(); got != tt.expected {
				t.Errorf("GetSource() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSourceConfig_DelimiterRune(t *testing.T) {
	tests := []struct {
		delimiter string
		want      rune
		wantErr   bool
	}{
		{"", ',', false},
		{",", ',', false},
		{"tab", '\t', false},
		{"\t", '\t', false},
		{"pipe", '|', false},
		{"|", '|', false},
		{";", ';', false},
		{"::", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.delimiter, func(t *testing.T) {
			src := SourceConfig{Delimiter: tt.delimiter}

			got, err := src.DelimiterRune()
			if tt.wantErr {
				if !errors.Is(err, ErrSourceInvalidDelimiter) {
					t.Fatalf("Expected ErrSourceInvalidDelimiter, got %v", err)
				}

				return
			}

			if err != nil {
				t.Fatalf("DelimiterRune failed: %v", err)
			}

			if got != tt.want {
				t.Errorf("DelimiterRune() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSourceConfig_FormatSpec_FixedWidth(t *testing.T) {
	src := SourceConfig{
		Format: "fixed-width",
		Fields: []FieldRange{
			{Name: "code", Start: 6, Length: 7},
			{Name: "description", Start: 77, Length: 200},
		},
	}

	spec, err := src.FormatSpec()
	if err != nil {
		t.Fatalf("FormatSpec failed: %v", err)
	}

	if spec.Kind != adapter.KindFixedWidth {
		t.Errorf("Kind = %v", spec.Kind)
	}

	if len(spec.Fields) != 2 || spec.Fields[0].Start != 6 {
		t.Errorf("Fields not carried over: %+v", spec.Fields)
	}
}

func TestSourceConfig_FormatSpec_Delimited(t *testing.T) {
	src := SourceConfig{Format: "delimited", Delimiter: "tab", Header: true}

	spec, err := src.FormatSpec()
	if err != nil {
		t.Fatalf("FormatSpec failed: %v", err)
	}

	if spec.Kind != adapter.KindDelimited || spec.Delimiter != '\t' || !spec.Header {
		t.Errorf("spec = %+v", spec)
	}
}

// --- RetryPolicy Tests ---

func TestRetryPolicy_GetRetryDelay(t *testing.T) {
	rp := RetryPolicy{
		InitialDelayMs:    100,
		MaxDelayMs:        1000,
		BackoffMultiplier: 2.0,
	}

	// The implementation applies multiplier for each retry after the first.
	// Attempt 1: no delay (first attempt)
	// Attempt 2: 100 * 2.0 = 200ms
	// Attempt 3: 200 * 2.0 = 400ms
	// etc.
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 0},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1000 * time.Millisecond},  // Capped at max
		{10, 1000 * time.Millisecond}, // Still capped
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			got := rp.GetRetryDelay(tt.attempt)
			if got != tt.expected {
				t.Errorf("GetRetryDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_GetTimeout(t *testing.T) {
	rp := RetryPolicy{TimeoutSec: 30}
	expected := 30 * time.Second

	if got := rp.GetTimeout(); got != expected {
		t.Errorf("GetTimeout() = %v, want %v", got, expected)
	}
}

// --- Config Helper Method Tests ---

func TestConfig_GetEnabledSources(t *testing.T) {
	cfg := &Config{
		Worker: WorkerConfig{
			Sources: []SourceConfig{
				{ID: "icd10cm", Enabled: true},
				{ID: "loinc", Enabled: false},
				{ID: "hcpcs", Enabled: true},
			},
		},
	}

	enabled := cfg.GetEnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled sources, got %d", len(enabled))
	}

	if enabled[0].ID != "icd10cm" || enabled[1].ID != "hcpcs" {
		t.Errorf("Enabled sources out of order: %+v", enabled)
	}
}

func TestConfig_GetOutputPath(t *testing.T) {
	cfg := &Config{
		Worker: WorkerConfig{
			Output: OutputConfig{BasePath: "./data"},
		},
	}

	path := cfg.GetOutputPath("icd10cm")
	expected := filepath.Join("./data", "icd10cm_clean.csv")

	if path != expected {
		t.Errorf("GetOutputPath() = %v, want %v", path, expected)
	}
}

func TestConfig_GetRejectPath(t *testing.T) {
	cfg := &Config{
		Worker: WorkerConfig{
			Output: OutputConfig{BasePath: "./data", RejectPath: "./data/rejects"},
		},
	}

	path := cfg.GetRejectPath("icd10cm")
	expected := filepath.Join("./data/rejects", "icd10cm_invalid.csv")

	if path != expected {
		t.Errorf("GetRejectPath() = %v, want %v", path, expected)
	}
}

func TestConfig_GetRejectPath_FallsBackToBasePath(t *testing.T) {
	cfg := &Config{
		Worker: WorkerConfig{
			Output: OutputConfig{BasePath: "./data"},
		},
	}

	path := cfg.GetRejectPath("icd10cm")
	expected := filepath.Join("./data", "icd10cm_invalid.csv")

	if path != expected {
		t.Errorf("GetRejectPath() = %v, want %v", path, expected)
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Worker: WorkerConfig{
			Sources: []SourceConfig{{}, {}, {}},
			Retry:   RetryPolicy{MaxAttempts: 5},
			Output:  OutputConfig{BasePath: "./output"},
		},
	}

	if cfg.String() == "" {
		t.Error("Expected non-empty string representation")
	}
}
