package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/slack-go/slack/slackevents"

	"gptalk/internal/domain"
)

const (
	maxEventBody        = 1 << 20 // 1MB
	headerSlackRetryNum = "X-Slack-Retry-Num"
	defaultHandleBudget = 5 * time.Minute
)

// EventsHandler serves the Slack Events API endpoint.
type EventsHandler struct {
	handler domain.EventHandler
	logger  *slog.Logger
	// budget bounds one event's processing after Slack has been answered or
	// has hung up.
	budget time.Duration
}

// NewEventsHandler creates the endpoint. A non-positive budget uses the
// five minute default.
func NewEventsHandler(handler domain.EventHandler, budget time.Duration, logger *slog.Logger) *EventsHandler {
	if budget <= 0 {
		budget = defaultHandleBudget
	}
	return &EventsHandler{handler: handler, logger: logger, budget: budget}
}

// Routes returns the chi router with the events and health endpoints.
func (h *EventsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/slack/events", h.handleEvents)
	return r
}

func (h *EventsHandler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *EventsHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Slack redelivers when the first delivery is not answered within three
	// seconds. The first delivery is still being processed.
	if retry := r.Header.Get(headerSlackRetryNum); retry != "" {
		h.logger.Info("ignoring slack redelivery",
			"retry_num", retry,
			"reason", r.Header.Get("X-Slack-Retry-Reason"))
		w.WriteHeader(http.StatusOK)
		return
	}

	outer, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.Warn("unparseable slack event", "error", err)
		http.Error(w, "invalid event payload", http.StatusBadRequest)
		return
	}

	switch outer.Type {
	case slackevents.URLVerification:
		challenge, ok := outer.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			http.Error(w, "invalid url_verification", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": challenge.Challenge})
		return

	case slackevents.CallbackEvent:
		ev, ok := TranslateEvent(outer, body)
		if !ok {
			h.logger.Debug("slack event ignored", "type", outer.InnerEvent.Type)
			w.WriteHeader(http.StatusOK)
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.budget)
		defer cancel()
		if err := h.handler.Handle(ctx, ev); err != nil {
			h.logger.Error("slack event handling failed",
				"event_id", ev.EventID,
				"code", string(domain.ErrorCodeOf(err)),
				"error", err)
		}
		w.WriteHeader(http.StatusOK)

	default:
		h.logger.Debug("unhandled slack envelope", "type", outer.Type)
		w.WriteHeader(http.StatusOK)
	}
}

// EventsServer runs the events endpoint on an HTTP listener.
type EventsServer struct {
	addr      string
	boundAddr string
	server    *http.Server
	logger    *slog.Logger
}

// NewEventsServer wraps handler in an http.Server. The write timeout must
// cover the full completion retry budget.
func NewEventsServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger *slog.Logger) *EventsServer {
	return &EventsServer{
		addr:   addr,
		logger: logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start begins listening. Non-blocking.
func (s *EventsServer) Start(ctx context.Context) error {
	s.server.BaseContext = func(_ net.Listener) context.Context { return ctx }

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()

	go func() {
		s.logger.Info("slack events endpoint started", "addr", s.boundAddr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *EventsServer) Addr() string { return s.boundAddr }

// Stop gracefully shuts down the server, waiting for in-flight events.
func (s *EventsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
