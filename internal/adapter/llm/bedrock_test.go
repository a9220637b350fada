package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptalk/internal/domain"
)

type mockBedrockClient struct {
	converseFunc func(ctx context.Context, params *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error)
}

func (m *mockBedrockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return m.converseFunc(ctx, params)
}

func textOutput(parts ...string) *bedrockruntime.ConverseOutput {
	content := make([]types.ContentBlock, 0, len(parts))
	for _, p := range parts {
		content = append(content, &types.ContentBlockMemberText{Value: p})
	}
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{Role: types.ConversationRoleAssistant, Content: content},
		},
		Usage: &types.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5)},
	}
}

func blockText(t *testing.T, b types.ContentBlock) string {
	t.Helper()
	text, ok := b.(*types.ContentBlockMemberText)
	require.True(t, ok)
	return text.Value
}

func TestBedrockChat(t *testing.T) {
	var received *bedrockruntime.ConverseInput
	mock := &mockBedrockClient{
		converseFunc: func(_ context.Context, params *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
			received = params
			return textOutput("Hello ", "from Bedrock!"), nil
		},
	}

	provider := newBedrockProviderWithClient("anthropic.claude-3-haiku", mock, newTestLogger())
	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are helpful."},
			{Role: domain.RoleUser, Content: "Hello"},
		},
		Temperature: 0.7,
		TopP:        0.95,
		MaxTokens:   800,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello from Bedrock!", resp.Content)
	assert.Equal(t, "anthropic.claude-3-haiku", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "bedrock", provider.Name())

	require.NotNil(t, received)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(received.ModelId))
	require.Len(t, received.System, 1)
	assert.Equal(t, "You are helpful.", received.System[0].(*types.SystemContentBlockMemberText).Value)
	assert.Equal(t, int32(800), aws.ToInt32(received.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.7, aws.ToFloat32(received.InferenceConfig.Temperature), 1e-6)
	assert.InDelta(t, 0.95, aws.ToFloat32(received.InferenceConfig.TopP), 1e-6)
}

func TestBedrockConverseInputMergesTurns(t *testing.T) {
	input := toBedrockConverseInput(domain.ChatRequest{
		Model: "m",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "sys"},
			{Role: domain.RoleAssistant, Content: "earlier answer"},
			{Role: domain.RoleUser, Content: "one"},
			{Role: domain.RoleUser, Content: "two"},
			{Role: domain.RoleAssistant, Content: "reply"},
			{Role: domain.RoleUser, Content: "three"},
		},
	})

	require.Len(t, input.Messages, 3)
	assert.Equal(t, types.ConversationRoleUser, input.Messages[0].Role)
	require.Len(t, input.Messages[0].Content, 2)
	assert.Equal(t, "one", blockText(t, input.Messages[0].Content[0]))
	assert.Equal(t, "two", blockText(t, input.Messages[0].Content[1]))
	assert.Equal(t, types.ConversationRoleAssistant, input.Messages[1].Role)
	assert.Equal(t, types.ConversationRoleUser, input.Messages[2].Role)

	assert.Nil(t, input.InferenceConfig.MaxTokens)
	assert.Nil(t, input.InferenceConfig.Temperature)
}

func TestBedrockEmptyOutput(t *testing.T) {
	mock := &mockBedrockClient{
		converseFunc: func(context.Context, *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
			return &bedrockruntime.ConverseOutput{}, nil
		},
	}
	provider := newBedrockProviderWithClient("m", mock, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)
}

func TestBedrockErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate limited"}, domain.ErrRateLimit},
		{"too many requests", &smithy.GenericAPIError{Code: "TooManyRequestsException", Message: "too many"}, domain.ErrRateLimit},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no access"}, domain.ErrAuthInvalid},
		{"context too long", &smithy.GenericAPIError{Code: "ValidationException", Message: "input is too long"}, domain.ErrContextOverflow},
		{"service unavailable", &smithy.GenericAPIError{Code: "ServiceUnavailableException", Message: "busy"}, domain.ErrProviderError},
		{"server fault", &smithy.GenericAPIError{Code: "Whatever", Message: "boom", Fault: smithy.FaultServer}, domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockBedrockClient{
				converseFunc: func(context.Context, *bedrockruntime.ConverseInput) (*bedrockruntime.ConverseOutput, error) {
					return nil, tt.err
				},
			}
			provider := newBedrockProviderWithClient("m", mock, newTestLogger())

			_, err := provider.Chat(context.Background(), domain.ChatRequest{
				Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBedrockPlainErrorIsWrapped(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	err := mapBedrockError(plain)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, domain.CodeUnknown, domain.ErrorCodeOf(err))
	assert.NoError(t, mapBedrockError(nil))
}
