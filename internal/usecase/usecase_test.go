package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gptalk/internal/domain"
)

// --- Fakes ---

type fakeHistory struct {
	mu       sync.Mutex
	messages []domain.RawMessage
	err      error
	calls    int
}

func (f *fakeHistory) FetchReplies(_ context.Context, _, _ string) ([]domain.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func (f *fakeHistory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePoster struct {
	mu      sync.Mutex
	replies []domain.Reply
	err     error
}

func (f *fakePoster) PostMessage(_ context.Context, r domain.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	return f.err
}

func (f *fakePoster) posted() []domain.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reply(nil), f.replies...)
}

// mockProvider scripts Chat results per call; once the script runs out the
// last entry repeats.
type mockProvider struct {
	mu       sync.Mutex
	results  []providerResult
	requests []domain.ChatRequest
	panicOn  int // 1-based call index that panics; 0 disables
}

type providerResult struct {
	content string
	err     error
}

func (m *mockProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	var res providerResult
	if len(m.results) > 0 {
		res = m.results[min(n, len(m.results))-1]
	}
	m.mu.Unlock()

	if m.panicOn == n {
		panic("provider exploded")
	}
	if res.err != nil {
		return nil, res.err
	}
	return &domain.ChatResponse{ID: fmt.Sprintf("chatcmpl-%d", n), Content: res.content}, nil
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) calls() []domain.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChatRequest(nil), m.requests...)
}

func failing(err error) providerResult  { return providerResult{err: err} }
func succeeding(s string) providerResult { return providerResult{content: s} }

var errUpstream = errors.New("upstream unavailable")

// recordingSleeper records requested waits and returns immediately.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func testLogger() *slog.Logger { return slog.Default() }
