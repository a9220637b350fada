package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration. It is loaded once at
// start-up and treated as read-only afterwards.
type Config struct {
	Slack      SlackConfig      `yaml:"slack"`
	LLM        LLMConfig        `yaml:"llm"`
	Completion CompletionConfig `yaml:"completion"`
	Retry      RetryConfig      `yaml:"retry"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
}

// SlackConfig holds Slack credentials and outbound pacing.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"` // socket mode only
	// BotUserID overrides the id resolved through auth.test.
	BotUserID string `yaml:"bot_user_id,omitempty"`
	// PostRate is the sustained chat.postMessage rate per second.
	PostRate  float64 `yaml:"post_rate"`
	PostBurst int     `yaml:"post_burst"`
	// APIURL points the client at a different Slack API root (tests, proxies).
	APIURL string `yaml:"api_url,omitempty"`
}

// LLMConfig holds completion endpoint settings.
type LLMConfig struct {
	Provider       string               `yaml:"provider"` // azure, openai, bedrock
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	APIVersion     string               `yaml:"api_version"`
	Engine         string               `yaml:"engine"` // deployment or model id
	Region         string               `yaml:"region,omitempty"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	RespTimeout    time.Duration        `yaml:"resp_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for the LLM provider.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// CompletionConfig holds the prompt and sampling parameters.
type CompletionConfig struct {
	SystemPrompt     string  `yaml:"system_prompt"`
	WindowSize       int     `yaml:"window_size"`
	Temperature      float64 `yaml:"temperature"`
	TopP             float64 `yaml:"top_p"`
	MaxTokens        int     `yaml:"max_tokens"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
}

// RetryConfig controls the completion retry loop.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	Delay           time.Duration `yaml:"delay"`
	AbortOnFatal    bool          `yaml:"abort_on_fatal"`
	FallbackMessage string        `yaml:"fallback_message"`
}

// ServerConfig holds the Events API HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Default values shared with the components that consume them.
const (
	DefaultSystemPrompt    = "You are an AI assistant that helps people find information. You should respond in markdown format."
	DefaultFallbackMessage = "Service unavailable, please try again later."
	DefaultAPIVersion      = "2023-07-01-preview"
	DefaultWindowSize      = 10
	DefaultMaxAttempts     = 5
	DefaultRetryDelay      = 15 * time.Second
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Slack: SlackConfig{
			PostRate:  1,
			PostBurst: 5,
		},
		LLM: LLMConfig{
			Provider:    "azure",
			APIVersion:  DefaultAPIVersion,
			ConnTimeout: 30 * time.Second,
			RespTimeout: 120 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Completion: CompletionConfig{
			SystemPrompt: DefaultSystemPrompt,
			WindowSize:   DefaultWindowSize,
			Temperature:  0.7,
			TopP:         0.95,
			MaxTokens:    800,
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			Delay:           DefaultRetryDelay,
			FallbackMessage: DefaultFallbackMessage,
		},
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := validatePermissions(path); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("GPTALK_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps GPTALK_* env vars, and the OPENAI_* / SLACK_* names
// used by earlier deployments, to config fields. GPTALK_* wins when both are set.
func ApplyEnvOverrides(cfg *Config) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				*dst = d
			}
		}
	}
	num := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str(&cfg.Slack.BotToken, "GPTALK_SLACK_BOT_TOKEN", "SLACK_BOT_TOKEN")
	str(&cfg.Slack.AppToken, "GPTALK_SLACK_APP_TOKEN", "SLACK_APP_TOKEN")
	str(&cfg.Slack.BotUserID, "GPTALK_SLACK_BOT_USER_ID")

	str(&cfg.LLM.Provider, "GPTALK_LLM_PROVIDER", "OPENAI_API_TYPE")
	str(&cfg.LLM.BaseURL, "GPTALK_LLM_BASE_URL", "OPENAI_API_BASE")
	str(&cfg.LLM.APIKey, "GPTALK_LLM_API_KEY", "OPENAI_API_KEY")
	str(&cfg.LLM.APIVersion, "GPTALK_LLM_API_VERSION", "OPENAI_API_VERSION")
	str(&cfg.LLM.Engine, "GPTALK_LLM_ENGINE", "OPENAI_API_ENGINE")
	str(&cfg.LLM.Region, "GPTALK_LLM_REGION", "AWS_REGION")
	if v := os.Getenv("GPTALK_LLM_CIRCUIT_BREAKER"); v != "" {
		cfg.LLM.CircuitBreaker.Enabled = v == "true"
	}

	str(&cfg.Completion.SystemPrompt, "GPTALK_SYSTEM_PROMPT")
	num(&cfg.Completion.WindowSize, "GPTALK_WINDOW_SIZE")

	num(&cfg.Retry.MaxAttempts, "GPTALK_RETRY_MAX_ATTEMPTS")
	dur(&cfg.Retry.Delay, "GPTALK_RETRY_DELAY")
	if v := os.Getenv("GPTALK_RETRY_ABORT_ON_FATAL"); v != "" {
		cfg.Retry.AbortOnFatal = v == "true"
	}

	str(&cfg.Server.Addr, "GPTALK_SERVER_ADDR")
	str(&cfg.Logger.Level, "GPTALK_LOGGER_LEVEL")
	str(&cfg.Logger.Format, "GPTALK_LOGGER_FORMAT")
	if v := os.Getenv("GPTALK_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	str(&cfg.Tracer.Exporter, "GPTALK_TRACER_EXPORTER")
}

// decryptSecrets finds "enc:..." values in credentials and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"llm.api_key":     &cfg.LLM.APIKey,
		"slack.bot_token": &cfg.Slack.BotToken,
		"slack.app_token": &cfg.Slack.AppToken,
	}
	for name, fp := range secrets {
		if !strings.HasPrefix(*fp, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*fp = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// newGCM derives a 32-byte Argon2id key from passphrase + salt and wraps it in AES-GCM.
func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// validatePermissions checks the config file is not writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
