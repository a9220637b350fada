package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("ContextBuilder.Build", ErrHistoryFetch, "channel C1")
	want := "ContextBuilder.Build: channel C1: thread history fetch failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Dispatcher.Dispatch", ErrReplyPost, "")
	want := "Dispatcher.Dispatch: reply post failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDomainError("LLM.Chat", ErrRateLimit, "azure"))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "LLM.Chat", de.Op)
	assert.ErrorIs(t, err, ErrRateLimit)
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	assert.ErrorIs(t, WrapOp("op", ErrReplyPost), ErrReplyPost)
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"plain", errors.New("boom"), CodeUnknown},
		{"direct", ErrRateLimit, CodeRateLimit},
		{"wrapped", fmt.Errorf("chat: %w", ErrAuthInvalid), CodeAuthInvalid},
		{"domain error", NewDomainError("Build", ErrHistoryFetch, ""), CodeHistoryFetch},
		{"most specific wins", fmt.Errorf("%w: %w", ErrProviderError, ErrRateLimit), CodeRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}
