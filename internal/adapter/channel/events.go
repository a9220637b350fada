package channel

import (
	"encoding/json"

	"github.com/slack-go/slack/slackevents"

	"gptalk/internal/domain"
)

// channelTypeIM marks direct-message conversations.
const channelTypeIM = "im"

// callbackEnvelope holds the event_callback fields slackevents does not decode.
type callbackEnvelope struct {
	EventID        string `json:"event_id"`
	Authorizations []struct {
		UserID string `json:"user_id"`
		IsBot  bool   `json:"is_bot"`
	} `json:"authorizations"`
}

// parseEnvelope extracts the delivery id and the authorized bot user id from
// a raw event_callback payload. Missing fields yield empty strings.
func parseEnvelope(raw json.RawMessage) (eventID, botUserID string) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", ""
	}
	if len(env.Authorizations) > 0 {
		botUserID = env.Authorizations[0].UserID
	}
	return env.EventID, botUserID
}

// TranslateEvent maps a parsed Events API callback to a domain event. The
// boolean is false for events the bot does not answer: anything other than
// app mentions and direct messages, edits and other subtypes, and messages
// written by bots.
func TranslateEvent(outer slackevents.EventsAPIEvent, raw json.RawMessage) (domain.Event, bool) {
	if outer.Type != slackevents.CallbackEvent {
		return domain.Event{}, false
	}
	eventID, botUserID := parseEnvelope(raw)

	switch ev := outer.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" {
			return domain.Event{}, false
		}
		return domain.Event{
			Kind:            domain.EventMention,
			ChannelID:       ev.Channel,
			Timestamp:       ev.TimeStamp,
			ThreadTimestamp: ev.ThreadTimeStamp,
			SenderID:        ev.User,
			Text:            ev.Text,
			BotUserID:       botUserID,
			EventID:         eventID,
		}, true

	case *slackevents.MessageEvent:
		if ev.ChannelType != channelTypeIM || ev.SubType != "" || ev.BotID != "" {
			return domain.Event{}, false
		}
		if botUserID != "" && ev.User == botUserID {
			return domain.Event{}, false
		}
		return domain.Event{
			Kind:            domain.EventMessage,
			ChannelID:       ev.Channel,
			Timestamp:       ev.TimeStamp,
			ThreadTimestamp: ev.ThreadTimeStamp,
			SenderID:        ev.User,
			Text:            ev.Text,
			BotUserID:       botUserID,
			EventID:         eventID,
		}, true
	}
	return domain.Event{}, false
}
