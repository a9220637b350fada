package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// Credentials are not required here; commands that need them check with
// RequireSlack / RequireLLM.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLLM(cfg, ve)
	validateCompletion(cfg, ve)
	validateRetry(cfg, ve)
	validateSlack(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validProviders = map[string]bool{
	"azure":   true,
	"openai":  true,
	"bedrock": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if !validProviders[cfg.LLM.Provider] {
		ve.Add("llm.provider %q is invalid (want: azure, openai, bedrock)", cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == "azure" && cfg.LLM.APIVersion == "" {
		ve.Add("llm.api_version must not be empty for azure")
	}
	if cfg.LLM.ConnTimeout < 0 || cfg.LLM.RespTimeout < 0 {
		ve.Add("llm timeouts must be >= 0")
	}
}

func validateCompletion(cfg *Config, ve *ValidationError) {
	c := cfg.Completion
	if c.SystemPrompt == "" {
		ve.Add("completion.system_prompt must not be empty")
	}
	if c.WindowSize <= 0 {
		ve.Add("completion.window_size must be > 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		ve.Add("completion.temperature must be in [0, 2]")
	}
	if c.TopP <= 0 || c.TopP > 1 {
		ve.Add("completion.top_p must be in (0, 1]")
	}
	if c.MaxTokens <= 0 {
		ve.Add("completion.max_tokens must be > 0")
	}
}

func validateRetry(cfg *Config, ve *ValidationError) {
	if cfg.Retry.MaxAttempts <= 0 {
		ve.Add("retry.max_attempts must be > 0")
	}
	if cfg.Retry.Delay < 0 {
		ve.Add("retry.delay must be >= 0")
	}
	if cfg.Retry.FallbackMessage == "" {
		ve.Add("retry.fallback_message must not be empty")
	}
}

func validateSlack(cfg *Config, ve *ValidationError) {
	if cfg.Slack.PostRate <= 0 {
		ve.Add("slack.post_rate must be > 0")
	}
	if cfg.Slack.PostBurst <= 0 {
		ve.Add("slack.post_burst must be > 0")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

// RequireSlack reports missing Slack credentials. Socket mode additionally
// needs the app-level token.
func RequireSlack(cfg *Config, socketMode bool) error {
	ve := &ValidationError{}
	if cfg.Slack.BotToken == "" {
		ve.Add("slack.bot_token is required (set via GPTALK_SLACK_BOT_TOKEN)")
	}
	if socketMode && cfg.Slack.AppToken == "" {
		ve.Add("slack.app_token is required for socket mode (set via GPTALK_SLACK_APP_TOKEN)")
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// RequireLLM reports missing completion endpoint settings.
func RequireLLM(cfg *Config) error {
	ve := &ValidationError{}
	if cfg.LLM.Engine == "" {
		ve.Add("llm.engine is required (set via GPTALK_LLM_ENGINE)")
	}
	switch cfg.LLM.Provider {
	case "azure":
		if cfg.LLM.BaseURL == "" {
			ve.Add("llm.base_url is required for azure (set via GPTALK_LLM_BASE_URL)")
		}
		if cfg.LLM.APIKey == "" {
			ve.Add("llm.api_key is required (set via GPTALK_LLM_API_KEY)")
		}
	case "openai":
		if cfg.LLM.APIKey == "" {
			ve.Add("llm.api_key is required (set via GPTALK_LLM_API_KEY)")
		}
	case "bedrock":
		if cfg.LLM.Region == "" {
			ve.Add("llm.region is required for bedrock")
		}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}
