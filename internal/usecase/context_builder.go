package usecase

import (
	"context"
	"log/slog"
	"strings"

	"gptalk/internal/domain"
	"gptalk/internal/infra/tracer"
)

// ThreadQuery identifies the conversation to assemble for one event.
type ThreadQuery struct {
	ChannelID   string
	ThreadTS    string // empty when the event is not inside a thread
	BotUserID   string
	TriggerText string
	Mode        domain.FilterMode
}

// ContextBuilder turns a thread's history into an ordered, role-labeled
// conversation window.
type ContextBuilder struct {
	history domain.HistoryFetcher
	logger  *slog.Logger
}

func NewContextBuilder(history domain.HistoryFetcher, logger *slog.Logger) *ContextBuilder {
	return &ContextBuilder{history: history, logger: logger}
}

// Build returns the conversation window for q. Outside a thread the window is
// the sanitized trigger text alone and no history is fetched. The result is
// not truncated; the completion client keeps the tail.
func (cb *ContextBuilder) Build(ctx context.Context, q ThreadQuery) (domain.ConversationWindow, error) {
	if q.ThreadTS == "" {
		return domain.ConversationWindow{{Text: SanitizeMentions(q.TriggerText)}}, nil
	}

	ctx, span := tracer.StartSpan(ctx, "context.build")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("channel", q.ChannelID),
		tracer.StringAttr("mode", q.Mode.String()),
	)

	raw, err := cb.history.FetchReplies(ctx, q.ChannelID, q.ThreadTS)
	if err != nil {
		err = domain.NewDomainError("ContextBuilder.Build", domain.ErrHistoryFetch, err.Error())
		tracer.RecordError(span, err)
		return nil, err
	}

	window := make(domain.ConversationWindow, 0, len(raw))
	token := mentionToken(q.BotUserID)
	for _, m := range raw {
		if m.Text == "" {
			continue
		}
		isBot := q.BotUserID != "" && m.SenderID == q.BotUserID
		if q.Mode == domain.FilterMentionGated && !isBot && !strings.Contains(m.Text, token) {
			continue
		}
		text := SanitizeMentions(m.Text)
		if text == "" {
			continue
		}
		window = append(window, domain.Utterance{Text: text, IsBot: isBot})
	}

	cb.logger.Debug("thread context built",
		"channel", q.ChannelID,
		"fetched", len(raw),
		"kept", len(window),
		"mode", q.Mode.String(),
	)
	span.SetAttributes(tracer.IntAttr("utterances", len(window)))
	tracer.SetOK(span)
	return window, nil
}
