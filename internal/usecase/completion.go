package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gptalk/internal/domain"
	"gptalk/internal/infra/tracer"
)

// Completion defaults.
const (
	DefaultWindowSize      = 10
	DefaultMaxAttempts     = 5
	DefaultRetryDelay      = 15 * time.Second
	DefaultFallbackMessage = "Service unavailable, please try again later."
)

// CompletionOptions fixes the request shape and retry policy of a
// CompletionClient. Zero values for WindowSize, MaxAttempts and
// FallbackMessage fall back to the package defaults.
type CompletionOptions struct {
	Model            string
	SystemPrompt     string
	WindowSize       int
	Temperature      float64
	TopP             float64
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64

	MaxAttempts     int
	RetryDelay      time.Duration
	AbortOnFatal    bool // stop retrying on Fatal failures
	FallbackMessage string
}

// CompletionDeps holds injected dependencies for the completion client.
type CompletionDeps struct {
	LLM        domain.LLMProvider
	Classifier *ErrorClassifier // optional, nil = NewErrorClassifier()
	Logger     *slog.Logger
	// Sleep waits between attempts. nil = a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// CompletionClient sends a conversation window to the LLM with a bounded,
// fixed-delay retry loop. It never returns an error: exhausted retries
// produce the fallback text.
type CompletionClient struct {
	deps CompletionDeps
	opts CompletionOptions
}

func NewCompletionClient(deps CompletionDeps, opts CompletionOptions) *CompletionClient {
	if deps.Classifier == nil {
		deps.Classifier = NewErrorClassifier()
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.FallbackMessage == "" {
		opts.FallbackMessage = DefaultFallbackMessage
	}
	return &CompletionClient{deps: deps, opts: opts}
}

// BuildRequest maps the most recent WindowSize utterances to a chat request
// headed by the system prompt.
func (c *CompletionClient) BuildRequest(window domain.ConversationWindow) domain.ChatRequest {
	tail := window.Tail(c.opts.WindowSize)

	messages := make([]domain.Message, 0, len(tail)+1)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: c.opts.SystemPrompt})
	for _, u := range tail {
		messages = append(messages, domain.Message{Role: u.Role(), Content: u.Text})
	}

	return domain.ChatRequest{
		Model:            c.opts.Model,
		Messages:         messages,
		Temperature:      c.opts.Temperature,
		TopP:             c.opts.TopP,
		MaxTokens:        c.opts.MaxTokens,
		FrequencyPenalty: c.opts.FrequencyPenalty,
		PresencePenalty:  c.opts.PresencePenalty,
	}
}

// Complete runs the completion with retries and returns the model's reply, or
// the fallback text once attempts are exhausted or ctx ends during a wait.
func (c *CompletionClient) Complete(ctx context.Context, window domain.ConversationWindow) domain.CompletionOutcome {
	ctx, span := tracer.StartSpan(ctx, "completion.complete")
	defer span.End()

	req := c.BuildRequest(window)
	log := c.deps.Logger.With("provider", c.deps.LLM.Name(), "model", req.Model)

	attempts := 0
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		attempts = attempt
		log.Info("sending completion request",
			"attempt", attempt,
			"max_attempts", c.opts.MaxAttempts,
			"messages", len(req.Messages),
		)

		resp, err := c.call(ctx, req)
		if err == nil {
			if resp.Usage.TotalTokens > 0 {
				log.Debug("completion usage",
					"prompt_tokens", resp.Usage.PromptTokens,
					"completion_tokens", resp.Usage.CompletionTokens,
				)
			}
			span.SetAttributes(tracer.IntAttr("attempts", attempt), tracer.BoolAttr("fallback", false))
			tracer.SetOK(span)
			return domain.CompletionOutcome{Text: resp.Content, Attempts: attempt}
		}

		classified := c.deps.Classifier.Classify(err)
		log.Warn("completion attempt failed",
			"attempt", attempt,
			"kind", classified.Kind.String(),
			"code", string(domain.ErrorCodeOf(err)),
			"error", err,
		)

		if classified.Kind == FailureFatal && c.opts.AbortOnFatal {
			log.Error("aborting completion on fatal error", "error", err)
			break
		}
		if attempt == c.opts.MaxAttempts {
			break
		}
		if werr := c.deps.Sleep(ctx, c.opts.RetryDelay); werr != nil {
			log.Warn("completion retry wait interrupted", "error", werr)
			break
		}
	}

	log.Error("completion failed, replying with fallback", "attempts", attempts)
	span.SetAttributes(tracer.IntAttr("attempts", attempts), tracer.BoolAttr("fallback", true))
	tracer.RecordError(span, fmt.Errorf("completion exhausted after %d attempts", attempts))
	return domain.CompletionOutcome{Text: c.opts.FallbackMessage, Attempts: attempts, Fallback: true}
}

// call invokes the provider once. Panics and empty replies become errors.
func (c *CompletionClient) call(ctx context.Context, req domain.ChatRequest) (resp *domain.ChatResponse, err error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%w: provider panic: %v", domain.ErrProviderError, r)
		}
		tracer.Finish(span, err)
	}()

	resp, err = c.deps.LLM.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Content == "" {
		return nil, domain.ErrEmptyCompletion
	}
	return resp, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
