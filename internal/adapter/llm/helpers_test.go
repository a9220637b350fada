package llm

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"gptalk/internal/domain"
)

func TestMapStatusError(t *testing.T) {
	base := errors.New("upstream")
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthInvalid},
		{http.StatusForbidden, domain.ErrAuthInvalid},
		{http.StatusRequestEntityTooLarge, domain.ErrContextOverflow},
		{http.StatusBadGateway, domain.ErrProviderError},
	}
	for _, tt := range tests {
		err := mapStatusError(tt.status, base)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.ErrorIs(t, err, base)
	}

	assert.Same(t, base, mapStatusError(http.StatusBadRequest, base))
}

func TestMapOpenAIError(t *testing.T) {
	apiErr := &openai.APIError{Code: "context_length_exceeded", Message: "too long", HTTPStatusCode: http.StatusBadRequest}
	assert.ErrorIs(t, mapOpenAIError(apiErr), domain.ErrContextOverflow)

	reqErr := &openai.RequestError{HTTPStatusCode: http.StatusServiceUnavailable, Err: errors.New("bad gateway")}
	assert.ErrorIs(t, mapOpenAIError(reqErr), domain.ErrProviderError)

	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, mapOpenAIError(plain))
}
