package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"gptalk/internal/domain"
	"gptalk/internal/infra/config"
	"gptalk/internal/infra/tracer"
)

// Compile-time interface check.
var _ domain.LLMProvider = (*OpenAIProvider)(nil)

// OpenAIProvider implements domain.LLMProvider for Azure OpenAI deployments
// and the public OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
	logger *slog.Logger
}

// NewOpenAIProvider builds a provider for cfg.Provider "azure" or "openai".
// For Azure, cfg.Engine is the deployment name and is used verbatim.
func NewOpenAIProvider(cfg config.LLMConfig, httpClient *http.Client, logger *slog.Logger) (*OpenAIProvider, error) {
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientCfg.APIVersion = cfg.APIVersion
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	case "openai":
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	default:
		return nil, domain.NewDomainError("NewOpenAIProvider", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported provider %q", cfg.Provider))
	}
	clientCfg.HTTPClient = httpClient

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		name:   cfg.Provider,
		model:  cfg.Engine,
		logger: logger,
	}, nil
}

// Chat implements domain.LLMProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.openai.chat")
	defer span.End()

	model := req.Model
	if model == "" {
		model = p.model
	}
	span.SetAttributes(tracer.StringAttr("llm.provider", p.name), tracer.StringAttr("llm.model", model))

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            model,
		Messages:         messages,
		Temperature:      float32(req.Temperature),
		TopP:             float32(req.TopP),
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: float32(req.FrequencyPenalty),
		PresencePenalty:  float32(req.PresencePenalty),
		Stop:             req.Stop,
	})
	if err != nil {
		err = domain.WrapOp(p.name+".chat", mapOpenAIError(err))
		tracer.RecordError(span, err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err := domain.WrapOp(p.name+".chat", domain.ErrEmptyCompletion)
		tracer.RecordError(span, err)
		return nil, err
	}

	result := &domain.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Content: resp.Choices[0].Message.Content,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)
	return result, nil
}

// Name implements domain.LLMProvider.
func (p *OpenAIProvider) Name() string { return p.name }
