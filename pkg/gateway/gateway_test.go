package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionServer fakes an OpenAI-compatible endpoint. The handler is
// selected by the model name in the request, calls are counted per model.
type completionServer struct {
	*httptest.Server
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(w http.ResponseWriter, callNum int)
}

func newCompletionServer(t *testing.T) *completionServer {
	s := &completionServer{
		calls:    map[string]int{},
		handlers: map[string]func(http.ResponseWriter, int){},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.calls[req.Model]++
		n := s.calls[req.Model]
		h := s.handlers[req.Model]
		s.mu.Unlock()

		require.NotNil(t, h, "no handler for model %s", req.Model)
		h(w, n)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *completionServer) callCount(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model]
}

func (s *completionServer) on(model string, h func(w http.ResponseWriter, callNum int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[model] = h
}

func respondContent(w http.ResponseWriter, content string) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "api_error"},
	})
}

func testConfig(srv *completionServer, primaryModels, fallbackModels []string) Config {
	cfg := Config{
		Primary: ProviderConfig{
			Endpoint: srv.URL + "/v1",
			APIKey:   "primary-key",
			Models:   primaryModels,
		},
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	if len(fallbackModels) > 0 {
		cfg.Fallback = ProviderConfig{
			Endpoint: srv.URL + "/v1",
			APIKey:   "fallback-key",
			Models:   fallbackModels,
		}
	}
	return cfg
}

func TestGateway_RateLimitFailsOver(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("model-a", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded: too many requests")
	})
	srv.on("model-b", func(w http.ResponseWriter, _ int) {
		respondContent(w, "answer from b")
	})

	g, err := New(testConfig(srv, []string{"model-a", "model-b"}, nil))
	require.NoError(t, err)

	content, err := g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "answer from b", content)
	assert.Equal(t, 1, srv.callCount("model-a"), "quota failure should not be retried")
	assert.Equal(t, []string{"model-a"}, g.FailedModels())

	// second call skips model-a entirely
	content, err = g.Invoke(context.Background(), []Message{{Role: "user", Content: "again"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "answer from b", content)
	assert.Equal(t, 1, srv.callCount("model-a"))
}

func TestGateway_TransientFailureNotMarked(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("model-a", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusInternalServerError, "upstream timeout")
	})
	srv.on("model-b", func(w http.ResponseWriter, _ int) {
		respondContent(w, "b wins")
	})

	g, err := New(testConfig(srv, []string{"model-a", "model-b"}, nil))
	require.NoError(t, err)

	content, err := g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "b wins", content)
	assert.Equal(t, 2, srv.callCount("model-a"), "transient failure retried up to max retries")
	assert.Empty(t, g.FailedModels(), "transient failures must not poison the roster")

	// model-a is still listed first on the next call
	_, err = g.Invoke(context.Background(), []Message{{Role: "user", Content: "again"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 4, srv.callCount("model-a"))
}

func TestGateway_ProviderSwitchIsMonotonic(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("p-only", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusForbidden, "insufficient_permissions")
	})
	srv.on("f-only", func(w http.ResponseWriter, _ int) {
		respondContent(w, "from fallback")
	})

	g, err := New(testConfig(srv, []string{"p-only"}, []string{"f-only"}))
	require.NoError(t, err)
	assert.Equal(t, ProviderPrimary, g.CurrentProvider())

	content, err := g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", content)
	assert.Equal(t, ProviderFallback, g.CurrentProvider())

	// exhaust the fallback roster too
	srv.on("f-only", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusNotFound, "model not found")
	})
	_, err = g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.ErrorIs(t, err, ErrExhaustedRoster)

	// terminal state, no further calls are made
	before := srv.callCount("f-only")
	_, err = g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.ErrorIs(t, err, ErrExhaustedRoster)
	assert.Equal(t, before, srv.callCount("f-only"))
	assert.Equal(t, ProviderFallback, g.CurrentProvider(), "no transition back")
}

func TestGateway_EmptyResponseRetried(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("model-a", func(w http.ResponseWriter, callNum int) {
		if callNum == 1 {
			respondContent(w, "   ")
			return
		}
		respondContent(w, "second try")
	})

	g, err := New(testConfig(srv, []string{"model-a"}, nil))
	require.NoError(t, err)

	content, err := g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "second try", content)
	assert.Equal(t, 2, srv.callCount("model-a"))
}

func TestGateway_AllTransientFailures(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("model-a", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusBadGateway, "connection reset")
	})

	g, err := New(testConfig(srv, []string{"model-a"}, nil))
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhaustedRoster, "roster is not exhausted by transient failures")
	assert.Empty(t, g.FailedModels())
}

func TestGateway_MissingCredentials(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	g, err := New(Config{Fallback: ProviderConfig{APIKey: "key", Models: []string{"m"}}})
	require.NoError(t, err)
	assert.Equal(t, ProviderFallback, g.CurrentProvider())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"quota code", errors.New("error: insufficient_quota for this key"), errQuota},
		{"rate limit", errors.New("Rate_Limit_Exceeded"), errQuota},
		{"http 429 text", errors.New("status code: 429"), errQuota},
		{"permission", errors.New("permission denied for model"), errPermission},
		{"forbidden", errors.New("status code: 403"), errPermission},
		{"unavailable", errors.New("model currently unavailable"), errUnavailable},
		{"not found", errors.New("model not found"), errUnavailable},
		{"transient", errors.New("i/o timeout"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestGateway_ConcurrentInvokes(t *testing.T) {
	srv := newCompletionServer(t)
	srv.on("model-a", func(w http.ResponseWriter, _ int) {
		respondError(w, http.StatusTooManyRequests, "quota_exceeded")
	})
	srv.on("model-b", func(w http.ResponseWriter, _ int) {
		respondContent(w, "ok")
	})

	g, err := New(testConfig(srv, []string{"model-a", "model-b"}, nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, err := g.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
			assert.NoError(t, err)
			assert.Equal(t, "ok", content)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"model-a"}, g.FailedModels())
}
