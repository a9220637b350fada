package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"gptalk/internal/domain"
)

// acker acknowledges Socket Mode envelopes.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// SocketRunner receives events over Slack Socket Mode. Each event is handled
// in its own goroutine; Run waits for them before returning.
type SocketRunner struct {
	client  *socketmode.Client
	ack     acker
	handler domain.EventHandler
	budget  time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewSocketRunner creates a runner on api, which must carry the app-level token.
func NewSocketRunner(api *slack.Client, handler domain.EventHandler, budget time.Duration, logger *slog.Logger) *SocketRunner {
	if budget <= 0 {
		budget = defaultHandleBudget
	}
	client := socketmode.New(api)
	return &SocketRunner{
		client:  client,
		ack:     client,
		handler: handler,
		budget:  budget,
		logger:  logger,
	}
}

// Run connects and processes events until ctx is cancelled.
func (s *SocketRunner) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.consume(loopCtx, s.client.Events)
	}()

	err := s.client.RunContext(ctx)
	stopLoop()
	<-loopDone
	s.wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *SocketRunner) consume(ctx context.Context, events <-chan socketmode.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			s.dispatch(ctx, evt)
		}
	}
}

func (s *SocketRunner) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		s.logger.Info("slack socket mode connecting")
	case socketmode.EventTypeConnected:
		s.logger.Info("slack socket mode connected")
	case socketmode.EventTypeConnectionError, socketmode.EventTypeInvalidAuth:
		s.logger.Error("slack socket mode connection failed", "type", string(evt.Type), "data", evt.Data)
	case socketmode.EventTypeEventsAPI:
		outer, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || evt.Request == nil {
			return
		}
		s.ack.Ack(*evt.Request)

		if evt.Request.RetryAttempt > 0 {
			s.logger.Info("ignoring slack redelivery",
				"retry_num", evt.Request.RetryAttempt,
				"reason", evt.Request.RetryReason)
			return
		}

		ev, ok := TranslateEvent(outer, evt.Request.Payload)
		if !ok {
			s.logger.Debug("slack event ignored", "type", outer.InnerEvent.Type)
			return
		}
		s.wg.Add(1)
		go s.handle(ctx, ev)
	}
}

func (s *SocketRunner) handle(parent context.Context, ev domain.Event) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("slack event handler panicked", "event_id", ev.EventID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.budget)
	defer cancel()
	if err := s.handler.Handle(ctx, ev); err != nil {
		s.logger.Error("slack event handling failed",
			"event_id", ev.EventID,
			"code", string(domain.ErrorCodeOf(err)),
			"error", err)
	}
}
