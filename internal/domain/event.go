package domain

// EventKind identifies the kind of inbound chat event.
type EventKind string

const (
	EventMention EventKind = "mention"
	EventMessage EventKind = "message"
)

// Event is an inbound chat event that may trigger a reply.
type Event struct {
	Kind            EventKind `json:"kind"`
	ChannelID       string    `json:"channel_id"`
	Timestamp       string    `json:"ts"`
	ThreadTimestamp string    `json:"thread_ts,omitempty"`
	SenderID        string    `json:"sender_id"`
	Text            string    `json:"text"`
	BotUserID       string    `json:"bot_user_id,omitempty"`

	// EventID is the platform's delivery id, used only for log correlation.
	EventID string `json:"event_id,omitempty"`
}

// ThreadAnchor returns the timestamp a reply should be threaded under: the
// thread root when the event is inside a thread, otherwise the event itself.
func (e Event) ThreadAnchor() string {
	if e.ThreadTimestamp != "" {
		return e.ThreadTimestamp
	}
	return e.Timestamp
}
