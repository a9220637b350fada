package domain

import "context"

// BlockType identifies a reply block layout.
type BlockType string

// BlockSection is a section block whose markdown is rendered by the platform.
const BlockSection BlockType = "section"

// Block is one platform-neutral layout block of a reply.
type Block struct {
	Type     BlockType `json:"type"`
	Markdown string    `json:"markdown"`
}

// Reply is a message posted back to a channel.
type Reply struct {
	ChannelID    string
	ThreadAnchor string
	// Text is the notification fallback shown where blocks cannot render.
	Text   string
	Blocks []Block
}

// HistoryFetcher returns the messages of a thread, oldest first.
type HistoryFetcher interface {
	FetchReplies(ctx context.Context, channelID, threadTS string) ([]RawMessage, error)
}

// MessagePoster posts a reply to a channel.
type MessagePoster interface {
	PostMessage(ctx context.Context, reply Reply) error
}

// EventHandler handles one inbound event end to end.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}
