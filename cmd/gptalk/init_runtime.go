package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gptalk/internal/adapter/channel"
	"gptalk/internal/infra/config"
	"gptalk/internal/infra/logger"
	"gptalk/internal/infra/tracer"
	"gptalk/internal/usecase"
)

// app holds the components shared by the serve and socket commands.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	gateway *channel.SlackGateway
	router  *usecase.EventRouter
	// budget bounds one event's processing: every attempt plus the waits
	// between them, with headroom for the Slack calls.
	budget  time.Duration
	cleanup func()
}

// initInfra loads config and sets up logging and tracing.
func initInfra(ctx context.Context) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("logger: %w", err)
	}

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		logCloser()
		return nil, nil, nil, fmt.Errorf("tracer: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown error", "error", err)
		}
		logCloser()
	}
	return cfg, log, cleanup, nil
}

// initApp wires Slack, the LLM provider and the event pipeline.
func initApp(ctx context.Context, socketMode bool) (*app, error) {
	cfg, log, cleanup, err := initInfra(ctx)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*app, error) {
		cleanup()
		return nil, err
	}

	if err := config.RequireSlack(cfg, socketMode); err != nil {
		return fail(err)
	}

	provider, err := initLLM(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("llm: %w", err))
	}

	opts := []channel.SlackOption{
		channel.WithSlackPostRate(cfg.Slack.PostRate, cfg.Slack.PostBurst),
		channel.WithSlackAPIURL(cfg.Slack.APIURL),
	}
	if socketMode {
		opts = append(opts, channel.WithSlackAppToken(cfg.Slack.AppToken))
	}
	gateway := channel.NewSlackGateway(cfg.Slack.BotToken, log, opts...)

	botUserID := cfg.Slack.BotUserID
	if botUserID == "" {
		authCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		botUserID, err = gateway.BotUserID(authCtx)
		cancel()
		if err != nil {
			return fail(fmt.Errorf("slack: %w", err))
		}
	}

	router := usecase.NewEventRouter(
		usecase.NewContextBuilder(gateway, log),
		newCompletionClient(cfg, provider, log),
		usecase.NewDispatcher(gateway, log),
		botUserID,
		log,
	)

	return &app{
		cfg:     cfg,
		log:     log,
		gateway: gateway,
		router:  router,
		budget:  handleBudget(cfg),
		cleanup: cleanup,
	}, nil
}

// handleBudget covers the worst case of the retry loop plus a minute for
// history fetch and posting.
func handleBudget(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.Retry.MaxAttempts)
	perAttempt := cfg.LLM.ConnTimeout + cfg.LLM.RespTimeout
	return attempts*perAttempt + (attempts-1)*cfg.Retry.Delay + time.Minute
}
