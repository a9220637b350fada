package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"gptalk/internal/domain"
	"gptalk/internal/infra/tracer"
)

// Compile-time interface check.
var _ domain.EventHandler = (*EventRouter)(nil)

// EventRouter runs one inbound event through context assembly, completion
// and reply dispatch.
type EventRouter struct {
	builder    *ContextBuilder
	completion *CompletionClient
	dispatcher *Dispatcher
	botUserID  string // used when an event carries no bot id
	logger     *slog.Logger
}

func NewEventRouter(
	builder *ContextBuilder,
	completion *CompletionClient,
	dispatcher *Dispatcher,
	botUserID string,
	logger *slog.Logger,
) *EventRouter {
	return &EventRouter{
		builder:    builder,
		completion: completion,
		dispatcher: dispatcher,
		botUserID:  botUserID,
		logger:     logger,
	}
}

// FilterModeFor selects the context filter for an event kind: mentions only
// see the messages addressed to or written by the bot.
func FilterModeFor(kind domain.EventKind) domain.FilterMode {
	if kind == domain.EventMessage {
		return domain.FilterUnfiltered
	}
	return domain.FilterMentionGated
}

// Handle processes ev synchronously. An event without a channel is dropped
// with a warning and returns nil.
func (r *EventRouter) Handle(ctx context.Context, ev domain.Event) (err error) {
	if ev.EventID == "" {
		ev.EventID = ulid.Make().String()
	}
	log := r.logger.With("event_id", ev.EventID, "kind", string(ev.Kind), "channel", ev.ChannelID)

	ctx, span := tracer.StartSpan(ctx, "event.handle")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("event_id", ev.EventID),
		tracer.StringAttr("kind", string(ev.Kind)),
	)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("EventRouter.Handle: panic: %v", rec)
			log.Error("event handler panicked", "panic", rec)
		}
		tracer.Finish(span, err)
	}()

	if ev.ChannelID == "" {
		log.Warn("event has no channel, ignoring", "code", string(domain.CodeMissingChannel))
		return nil
	}
	if ev.Kind != domain.EventMention && ev.Kind != domain.EventMessage {
		return domain.NewDomainError("EventRouter.Handle", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported event kind %q", ev.Kind))
	}

	botID := ev.BotUserID
	if botID == "" {
		botID = r.botUserID
	}
	mode := FilterModeFor(ev.Kind)
	log.Info("handling event", "thread_ts", ev.ThreadTimestamp, "mode", mode.String())

	window, err := r.builder.Build(ctx, ThreadQuery{
		ChannelID:   ev.ChannelID,
		ThreadTS:    ev.ThreadTimestamp,
		BotUserID:   botID,
		TriggerText: ev.Text,
		Mode:        mode,
	})
	if err != nil {
		log.Error("thread context unavailable, no reply sent",
			"code", string(domain.ErrorCodeOf(err)), "error", err)
		return err
	}

	outcome := r.completion.Complete(ctx, window)

	if err := r.dispatcher.Dispatch(ctx, outcome, Destination{
		ChannelID: ev.ChannelID,
		ThreadTS:  ev.ThreadTimestamp,
		MessageTS: ev.Timestamp,
	}); err != nil {
		log.Error("reply post failed", "code", string(domain.ErrorCodeOf(err)), "error", err)
		return err
	}

	log.Info("event handled", "attempts", outcome.Attempts, "fallback", outcome.Fallback)
	return nil
}
