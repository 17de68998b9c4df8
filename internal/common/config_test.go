package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "UNKNOWN", config.Report.Placeholder)
	assert.Equal(t, "falsy", config.Report.CompletionPolicy)
	assert.True(t, config.Report.MergeOnRetry)
	assert.Equal(t, LLMProviderGemini, config.LLM.DefaultProvider)
	assert.Equal(t, "degrade", config.LLM.OnFailure)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[report]
placeholder = "N/A"
completion_policy = "missing"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "N/A", config.Report.Placeholder)
	assert.Equal(t, "missing", config.Report.CompletionPolicy)
	// Untouched sections keep their defaults
	assert.Equal(t, "./reports", config.Storage.Filesystem.Reports)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relatio.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\non_failure = \"degrade\"\n"), 0644))

	t.Setenv("RELATIO_LLM_ON_FAILURE", "fail")
	t.Setenv("RELATIO_SERVER_PORT", "7070")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "fail", config.LLM.OnFailure)
	assert.Equal(t, 7070, config.Server.Port)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown completion policy", func(c *Config) { c.Report.CompletionPolicy = "lenient" }},
		{"empty placeholder", func(c *Config) { c.Report.Placeholder = "" }},
		{"blank placeholder", func(c *Config) { c.Report.Placeholder = "   " }},
		{"unknown provider", func(c *Config) { c.LLM.DefaultProvider = "ollama" }},
		{"bad duration", func(c *Config) { c.LLM.Timeout = "soon" }},
		{"bad schedule", func(c *Config) {
			c.Retention.Enabled = true
			c.Retention.Schedule = "every day"
		}},
		{"default language not listed", func(c *Config) { c.Extraction.DefaultLanguage = "fr" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8085, config.Server.Port)

	ApplyFlagOverrides(config, 9999, "0.0.0.0")
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}
