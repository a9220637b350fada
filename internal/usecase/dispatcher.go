package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"gptalk/internal/domain"
	"gptalk/internal/infra/tracer"
)

// Destination addresses a reply. ThreadTS is empty when the triggering
// message is not inside a thread.
type Destination struct {
	ChannelID string
	ThreadTS  string
	MessageTS string
}

// Anchor returns the thread root when known, else the triggering message,
// which starts a new thread.
func (d Destination) Anchor() string {
	if d.ThreadTS != "" {
		return d.ThreadTS
	}
	return d.MessageTS
}

// Dispatcher formats a completion outcome as a single markdown block and
// posts it exactly once.
type Dispatcher struct {
	poster domain.MessagePoster
	logger *slog.Logger
}

func NewDispatcher(poster domain.MessagePoster, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{poster: poster, logger: logger}
}

// FormatReply wraps the outcome text in one section block.
func FormatReply(outcome domain.CompletionOutcome, dest Destination) domain.Reply {
	return domain.Reply{
		ChannelID:    dest.ChannelID,
		ThreadAnchor: dest.Anchor(),
		Text:         outcome.Text,
		Blocks:       []domain.Block{{Type: domain.BlockSection, Markdown: outcome.Text}},
	}
}

// Dispatch posts the reply. Post failures are not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, outcome domain.CompletionOutcome, dest Destination) error {
	ctx, span := tracer.StartSpan(ctx, "reply.dispatch")
	defer span.End()

	reply := FormatReply(outcome, dest)
	span.SetAttributes(
		tracer.StringAttr("channel", reply.ChannelID),
		tracer.StringAttr("thread_ts", reply.ThreadAnchor),
		tracer.BoolAttr("fallback", outcome.Fallback),
	)

	if err := d.poster.PostMessage(ctx, reply); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrReplyPost, err)
		tracer.RecordError(span, err)
		return domain.WrapOp("Dispatcher.Dispatch", err)
	}

	d.logger.Info("reply posted",
		"channel", reply.ChannelID,
		"thread_ts", reply.ThreadAnchor,
		"fallback", outcome.Fallback,
		"chars", len(outcome.Text),
	)
	tracer.SetOK(span)
	return nil
}
