package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Report      ReportConfig     `toml:"report"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Retention   RetentionConfig  `toml:"retention"`
}

type ServerConfig struct {
	Port        int    `toml:"port" validate:"min=1,max=65535"`
	Host        string `toml:"host"`
	MaxUploadMB int64  `toml:"max_upload_mb" validate:"min=1"` // Multipart body limit in megabytes (default: 64)
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep the index in memory only (tests, demos)
}

type FilesystemConfig struct {
	Uploads string `toml:"uploads" validate:"required"` // Saved uploads, one sub-directory per report
	Reports string `toml:"reports" validate:"required"` // Rendered artifacts: <id>.docx, <id>.pdf
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// LLMProvider selects the default generative model backend
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`      // Google Gemini API key
	Model       string  `toml:"model"`        // Model for report extraction (default: "gemini-2.5-flash")
	VisionModel string  `toml:"vision_model"` // Model for OCR and speech transcription (default: same as model)
	Timeout     string  `toml:"timeout"`      // Per-call timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`   // Minimum spacing between calls (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"`  // Sampling temperature (default: 0.1)
	// StructuredOutput attaches the canonical JSON schema to extraction calls.
	// The schema types every field as a string, so nested findings arrive pre-flattened.
	StructuredOutput bool `toml:"structured_output"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for report extraction (default: "claude-haiku-4-5")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between calls (default: "1s")
	Temperature float32 `toml:"temperature"` // Sampling temperature (default: 0.1)
}

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
	Timeout         string      `toml:"timeout"`      // Budget for the whole extraction call incl. retries (default: "5m")
	MaxRetries      int         `toml:"max_retries"`  // Retries on transient failures (default: 3)
	EnhanceText     bool        `toml:"enhance_text"` // Run the refinement pre-pass on extracted text
	OnFailure       string      `toml:"on_failure" validate:"oneof=degrade fail"`
}

type ReportConfig struct {
	Placeholder      string `toml:"placeholder" validate:"required"`                  // Rendered for fields with no extracted value (default: "UNKNOWN")
	CompletionPolicy string `toml:"completion_policy" validate:"oneof=falsy missing"` // "falsy": empty/zero/false count as missing; "missing": only absent or null
	MergeOnRetry     bool   `toml:"merge_on_retry"`                                   // Merge salvaged fields into a degraded record instead of replacing it
	TemplatePath     string `toml:"template_path"`                                    // Optional .docx with {{field}} placeholders
	Title            string `toml:"title"`                                            // Heading of the generated document
}

type ExtractionConfig struct {
	DefaultLanguage string   `toml:"default_language" validate:"required"` // Speech locale when none is supplied
	Languages       []string `toml:"languages" validate:"min=1"`           // Accepted speech locales
}

type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule with seconds field
	MaxAge   string `toml:"max_age"`  // Artifacts older than this are purged (default: "720h")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:        8085,
			Host:        "localhost",
			MaxUploadMB: 64,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Uploads: "./uploads",
				Reports: "./reports",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			RateLimit:   "4s",
			Temperature: 0.1,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			Timeout:         "5m",
			MaxRetries:      3,
			EnhanceText:     true,
			OnFailure:       "degrade",
		},
		Report: ReportConfig{
			Placeholder:      "UNKNOWN",
			CompletionPolicy: "falsy",
			MergeOnRetry:     true,
			Title:            "Medical Imaging Report",
		},
		Extraction: ExtractionConfig{
			DefaultLanguage: "en",
			Languages:       []string{"en", "cn"},
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Schedule: "0 0 3 * * *", // Daily at 03:00
			MaxAge:   "720h",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: defaults -> file1 -> file2 -> ... -> env
// Later files override earlier files
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies RELATIO_* environment variables to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RELATIO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("RELATIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RELATIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if maxUpload := os.Getenv("RELATIO_SERVER_MAX_UPLOAD_MB"); maxUpload != "" {
		if mb, err := strconv.ParseInt(maxUpload, 10, 64); err == nil {
			config.Server.MaxUploadMB = mb
		}
	}

	// Storage
	if path := os.Getenv("RELATIO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("RELATIO_BADGER_RESET_ON_STARTUP"); reset != "" {
		config.Storage.Badger.ResetOnStartup = reset == "true" || reset == "1"
	}
	if uploads := os.Getenv("RELATIO_UPLOADS_DIR"); uploads != "" {
		config.Storage.Filesystem.Uploads = uploads
	}
	if reports := os.Getenv("RELATIO_REPORTS_DIR"); reports != "" {
		config.Storage.Filesystem.Reports = reports
	}

	// Logging
	if level := os.Getenv("RELATIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("RELATIO_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitString(output, ",")
	}

	// Gemini (GOOGLE_API_KEY accepted as the SDK's conventional fallback)
	if apiKey := os.Getenv("RELATIO_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("RELATIO_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("RELATIO_GEMINI_VISION_MODEL"); model != "" {
		config.Gemini.VisionModel = model
	}
	if timeout := os.Getenv("RELATIO_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("RELATIO_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude
	if apiKey := os.Getenv("RELATIO_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	} else if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("RELATIO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("RELATIO_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}

	// LLM
	if provider := os.Getenv("RELATIO_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("RELATIO_LLM_TIMEOUT"); timeout != "" {
		config.LLM.Timeout = timeout
	}
	if enhance := os.Getenv("RELATIO_LLM_ENHANCE_TEXT"); enhance != "" {
		config.LLM.EnhanceText = enhance == "true" || enhance == "1"
	}
	if onFailure := os.Getenv("RELATIO_LLM_ON_FAILURE"); onFailure != "" {
		config.LLM.OnFailure = onFailure
	}

	// Report
	if placeholder := os.Getenv("RELATIO_REPORT_PLACEHOLDER"); placeholder != "" {
		config.Report.Placeholder = placeholder
	}
	if policy := os.Getenv("RELATIO_REPORT_COMPLETION_POLICY"); policy != "" {
		config.Report.CompletionPolicy = policy
	}
	if templatePath := os.Getenv("RELATIO_REPORT_TEMPLATE_PATH"); templatePath != "" {
		config.Report.TemplatePath = templatePath
	}

	// Retention
	if enabled := os.Getenv("RELATIO_RETENTION_ENABLED"); enabled != "" {
		config.Retention.Enabled = enabled == "true" || enabled == "1"
	}
	if maxAge := os.Getenv("RELATIO_RETENTION_MAX_AGE"); maxAge != "" {
		config.Retention.MaxAge = maxAge
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct constraints and the duration/cron strings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if strings.TrimSpace(c.Report.Placeholder) == "" {
		return fmt.Errorf("report.placeholder must not be blank")
	}

	durations := map[string]string{
		"gemini.timeout":    c.Gemini.Timeout,
		"gemini.rate_limit": c.Gemini.RateLimit,
		"claude.timeout":    c.Claude.Timeout,
		"claude.rate_limit": c.Claude.RateLimit,
		"llm.timeout":       c.LLM.Timeout,
		"retention.max_age": c.Retention.MaxAge,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, value)
		}
	}

	if c.Retention.Enabled {
		if err := ValidateSchedule(c.Retention.Schedule); err != nil {
			return err
		}
	}

	if !c.IsSupportedLanguage(c.Extraction.DefaultLanguage) {
		return fmt.Errorf("default_language %q is not listed in extraction.languages", c.Extraction.DefaultLanguage)
	}

	return nil
}

// ValidateSchedule validates a cron expression with a leading seconds field
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsSupportedLanguage reports whether lang is an accepted speech locale
func (c *Config) IsSupportedLanguage(lang string) bool {
	for _, l := range c.Extraction.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// ParseDurationOr parses value or returns fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// splitString splits a string by separator and trims whitespace
func splitString(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
