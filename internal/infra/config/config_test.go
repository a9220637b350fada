package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Completion.WindowSize != 10 {
		t.Errorf("WindowSize = %d, want 10", cfg.Completion.WindowSize)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Delay != 15*time.Second {
		t.Errorf("Delay = %v, want 15s", cfg.Retry.Delay)
	}
	assert.Equal(t, 0.7, cfg.Completion.Temperature)
	assert.Equal(t, 0.95, cfg.Completion.TopP)
	assert.Equal(t, 800, cfg.Completion.MaxTokens)
	assert.Equal(t, "azure", cfg.LLM.Provider)
	assert.Equal(t, DefaultAPIVersion, cfg.LLM.APIVersion)
	require.NoError(t, Validate(cfg))
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Completion.WindowSize)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
slack:
  bot_token: "xoxb-test"
llm:
  provider: "openai"
  api_key: "sk-test"
  engine: "gpt-4o-mini"
completion:
  window_size: 6
retry:
  max_attempts: 3
  delay: 2s
  abort_on_fatal: true
logger:
  level: "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Engine)
	assert.Equal(t, 6, cfg.Completion.WindowSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.True(t, cfg.Retry.AbortOnFatal)
	assert.Equal(t, "debug", cfg.Logger.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.95, cfg.Completion.TopP)
}

func TestLoadRejectsWorldWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600))
	require.NoError(t, os.Chmod(path, 0666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry: [unclosed"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GPTALK_LLM_ENGINE", "gpt-35-turbo")
	t.Setenv("GPTALK_RETRY_DELAY", "250ms")
	t.Setenv("GPTALK_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("GPTALK_LOGGER_LEVEL", "debug")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "gpt-35-turbo", cfg.LLM.Engine)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestEnvOverridesLegacyNames(t *testing.T) {
	t.Setenv("GPTALK_LLM_BASE_URL", "")
	t.Setenv("GPTALK_LLM_API_KEY", "")
	t.Setenv("GPTALK_LLM_ENGINE", "")
	t.Setenv("OPENAI_API_BASE", "https://example.openai.azure.com")
	t.Setenv("OPENAI_API_KEY", "legacy-key")
	t.Setenv("OPENAI_API_ENGINE", "legacy-engine")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "https://example.openai.azure.com", cfg.LLM.BaseURL)
	assert.Equal(t, "legacy-key", cfg.LLM.APIKey)
	assert.Equal(t, "legacy-engine", cfg.LLM.Engine)
}

func TestEnvOverridesPreferPrefixed(t *testing.T) {
	t.Setenv("GPTALK_LLM_API_KEY", "new-key")
	t.Setenv("OPENAI_API_KEY", "legacy-key")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "new-key", cfg.LLM.APIKey)
}

func TestEncryptDecryptSecrets(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "passphrase")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "llm:\n  api_key: \"enc:" + enc + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("GPTALK_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GPTALK_CONFIG_KEY", "passphrase")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "right")
	require.NoError(t, err)

	_, err = DecryptValue(enc, "wrong")
	require.Error(t, err)

	_, err = DecryptValue("no-separator", "right")
	require.Error(t, err)
}
