package domain

// Utterance is one sanitized chat-history entry.
type Utterance struct {
	Text  string `json:"text"`
	IsBot bool   `json:"is_bot"`
}

// Role returns the chat role for the utterance: assistant for the bot's own
// messages, user for everything else.
func (u Utterance) Role() string {
	if u.IsBot {
		return RoleAssistant
	}
	return RoleUser
}

// ConversationWindow is an ordered (oldest first) sequence of utterances.
type ConversationWindow []Utterance

// Tail returns the most recent n utterances, preserving order. A non-positive
// n returns an empty window.
func (w ConversationWindow) Tail(n int) ConversationWindow {
	if n <= 0 {
		return ConversationWindow{}
	}
	if len(w) <= n {
		return w
	}
	return w[len(w)-n:]
}

// FilterMode decides which thread messages enter the context.
type FilterMode int

const (
	// FilterMentionGated keeps messages that mention the bot or were written by it.
	FilterMentionGated FilterMode = iota
	// FilterUnfiltered keeps every message in the thread.
	FilterUnfiltered
)

func (m FilterMode) String() string {
	switch m {
	case FilterMentionGated:
		return "mention_gated"
	case FilterUnfiltered:
		return "unfiltered"
	default:
		return "unknown"
	}
}

// RawMessage is a thread message as returned by the history-fetch collaborator.
type RawMessage struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}
