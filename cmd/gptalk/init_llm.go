package main

import (
	"context"
	"fmt"
	"log/slog"

	"gptalk/internal/adapter/llm"
	"gptalk/internal/domain"
	"gptalk/internal/infra/config"
	"gptalk/internal/usecase"
)

// initLLM builds the configured completion provider, wrapped in a circuit
// breaker when enabled.
func initLLM(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.LLMProvider, error) {
	if err := config.RequireLLM(cfg); err != nil {
		return nil, err
	}

	var provider domain.LLMProvider
	switch cfg.LLM.Provider {
	case "bedrock":
		p, err := llm.NewBedrockProvider(ctx, cfg.LLM, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider bedrock: %w", err)
		}
		provider = p
	default:
		p, err := llm.NewOpenAIProvider(cfg.LLM, nil, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", cfg.LLM.Provider, err)
		}
		provider = p
	}

	if cb := cfg.LLM.CircuitBreaker; cb.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cb, log)
		log.Info("llm circuit breaker enabled",
			"max_failures", cb.MaxFailures,
			"timeout", cb.Timeout,
			"interval", cb.Interval,
		)
	}

	log.Info("llm provider ready", "provider", provider.Name(), "engine", cfg.LLM.Engine)
	return provider, nil
}

// newCompletionClient maps completion and retry settings onto the usecase
// client.
func newCompletionClient(cfg *config.Config, provider domain.LLMProvider, log *slog.Logger) *usecase.CompletionClient {
	c := cfg.Completion
	return usecase.NewCompletionClient(usecase.CompletionDeps{
		LLM:    provider,
		Logger: log,
	}, usecase.CompletionOptions{
		Model:            cfg.LLM.Engine,
		SystemPrompt:     c.SystemPrompt,
		WindowSize:       c.WindowSize,
		Temperature:      c.Temperature,
		TopP:             c.TopP,
		MaxTokens:        c.MaxTokens,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
		MaxAttempts:      cfg.Retry.MaxAttempts,
		RetryDelay:       cfg.Retry.Delay,
		AbortOnFatal:     cfg.Retry.AbortOnFatal,
		FallbackMessage:  cfg.Retry.FallbackMessage,
	})
}
