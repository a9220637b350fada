package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptalk/internal/domain"
)

func TestDispatchInThread(t *testing.T) {
	p := &fakePoster{}
	d := NewDispatcher(p, testLogger())

	err := d.Dispatch(context.Background(),
		domain.CompletionOutcome{Text: "**bold** answer", Attempts: 1},
		Destination{ChannelID: "C1", ThreadTS: "100.1", MessageTS: "200.2"},
	)
	require.NoError(t, err)

	posted := p.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, domain.Reply{
		ChannelID:    "C1",
		ThreadAnchor: "100.1",
		Text:         "**bold** answer",
		Blocks:       []domain.Block{{Type: domain.BlockSection, Markdown: "**bold** answer"}},
	}, posted[0])
}

func TestDispatchStartsThread(t *testing.T) {
	p := &fakePoster{}
	d := NewDispatcher(p, testLogger())

	require.NoError(t, d.Dispatch(context.Background(),
		domain.CompletionOutcome{Text: DefaultFallbackMessage, Fallback: true},
		Destination{ChannelID: "C1", MessageTS: "200.2"},
	))

	posted := p.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "200.2", posted[0].ThreadAnchor)
	assert.Equal(t, DefaultFallbackMessage, posted[0].Blocks[0].Markdown)
}

func TestDispatchPostFailure(t *testing.T) {
	p := &fakePoster{err: errors.New("not_in_channel")}
	d := NewDispatcher(p, testLogger())

	err := d.Dispatch(context.Background(), domain.CompletionOutcome{Text: "hi"}, Destination{ChannelID: "C1", MessageTS: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReplyPost))
	assert.Equal(t, domain.CodeReplyPost, domain.ErrorCodeOf(err))
	assert.Len(t, p.posted(), 1, "post failures are not retried")
}
