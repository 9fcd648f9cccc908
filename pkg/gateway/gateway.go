package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/sashabaranov/go-openai"
)

// Provider identifies one of the two backing completion services.
type Provider string

// provider names, in priority order
const (
	ProviderPrimary  Provider = "primary"
	ProviderFallback Provider = "fallback"
)

// ErrExhaustedRoster is returned by Invoke once every model on both
// providers has been marked failed. Callers are expected to degrade.
var ErrExhaustedRoster = errors.New("all model rosters exhausted")

// failure classes for a single completion call. Quota, permission and
// unavailable are deterministic for the rest of the run and poison the
// model; anything else is transient and retried with backoff.
var (
	errQuota         = errors.New("quota exceeded")
	errPermission    = errors.New("permission denied")
	errUnavailable   = errors.New("model unavailable")
	errEmptyResponse = errors.New("empty response")
)

// Message is a single chat message sent to the completion service.
type Message struct {
	Role    string
	Content string
}

// ProviderConfig describes one completion endpoint and its model
// roster, most-preferred model first. An empty APIKey disables the
// provider; the gateway degrades to the other one.
type ProviderConfig struct {
	Endpoint string
	APIKey   string
	Models   []string
	Timeout  time.Duration
}

// Config holds gateway configuration.
type Config struct {
	Primary    ProviderConfig
	Fallback   ProviderConfig
	MaxRetries int           // attempts per model for transient failures
	RetryDelay time.Duration // base delay, doubled per attempt
}

// Gateway routes completion calls across an ordered roster of models
// on two providers. It tracks models that failed deterministically and
// never retries them within the run. One Gateway is constructed per
// pipeline run; the failure state is guarded by a mutex because
// selection workers call Invoke concurrently.
type Gateway struct {
	primary    *providerClient
	fallback   *providerClient
	maxRetries int
	retryDelay time.Duration

	mu      sync.Mutex
	current Provider
	failed  map[string]struct{}
}

type providerClient struct {
	name   Provider
	client *openai.Client
	models []string
}

type candidate struct {
	provider *providerClient
	model    string
}

// New creates a gateway from the configuration. At least one provider
// must have a credential; this is the only place in the pipeline where
// a missing credential is fatal.
func New(cfg Config) (*Gateway, error) {
	g := &Gateway{
		primary:    newProviderClient(ProviderPrimary, cfg.Primary),
		fallback:   newProviderClient(ProviderFallback, cfg.Fallback),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		current:    ProviderPrimary,
		failed:     map[string]struct{}{},
	}
	if g.maxRetries <= 0 {
		g.maxRetries = 2
	}
	if g.retryDelay <= 0 {
		g.retryDelay = 3 * time.Second
	}
	if g.primary == nil && g.fallback == nil {
		return nil, errors.New("no completion provider configured")
	}
	if g.primary == nil {
		lgr.Printf("[WARN] primary provider has no credential, starting on fallback")
		g.current = ProviderFallback
	}
	if g.fallback == nil {
		lgr.Printf("[WARN] fallback provider has no credential, running without failover")
	}
	return g, nil
}

func newProviderClient(name Provider, cfg ProviderConfig) *providerClient {
	if cfg.APIKey == "" || len(cfg.Models) == 0 {
		return nil
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &providerClient{
		name:   name,
		client: openai.NewClientWithConfig(clientCfg),
		models: cfg.Models,
	}
}

// Invoke sends the messages to the first usable model and returns the
// trimmed response content. It walks the roster in priority order,
// retrying transient failures with exponential backoff and failing
// over to the next model (and eventually the fallback provider) on
// deterministic errors. Returns ErrExhaustedRoster once no usable
// models remain.
func (g *Gateway) Invoke(ctx context.Context, messages []Message, jsonMode bool) (string, error) {
	tried := map[string]struct{}{}
	for {
		cands := g.availableModels()
		if len(cands) == 0 {
			return "", ErrExhaustedRoster
		}

		progress := false
		for _, c := range cands {
			if _, ok := tried[c.model]; ok {
				continue
			}
			tried[c.model] = struct{}{}
			progress = true

			lgr.Printf("[DEBUG] trying model %s on %s provider", c.model, c.provider.name)
			content, err := g.attempt(ctx, c, messages, jsonMode)
			if err == nil {
				lgr.Printf("[DEBUG] model %s succeeded", c.model)
				return content, nil
			}

			switch {
			case errors.Is(err, errQuota), errors.Is(err, errPermission), errors.Is(err, errUnavailable):
				lgr.Printf("[WARN] model %s failed permanently: %v", c.model, err)
				g.markFailed(c.model)
			case ctx.Err() != nil:
				return "", ctx.Err()
			default:
				// transient exhaustion, the model may recover on a later run
				lgr.Printf("[WARN] model %s failed after %d attempts: %v", c.model, g.maxRetries, err)
			}
		}

		if !progress {
			// every remaining model was already tried and failed
			// transiently, nothing left to do for this call
			return "", fmt.Errorf("all available models failed")
		}
	}
}

// attempt calls a single model up to maxRetries times with exponential
// backoff. Deterministic failures stop the retrier immediately.
func (g *Gateway) attempt(ctx context.Context, c candidate, messages []Message, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var content string
	retrier := repeater.NewBackoff(g.maxRetries, g.retryDelay)
	err := retrier.Do(ctx, func() error {
		resp, err := c.provider.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errEmptyResponse
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return errEmptyResponse
		}
		content = text
		return nil
	}, errQuota, errPermission, errUnavailable)

	return content, err
}

// availableModels returns the current provider's roster minus failed
// models. When the primary roster empties, the gateway switches to the
// fallback provider for the rest of the run; the transition is one-way.
func (g *Gateway) availableModels() []candidate {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == ProviderPrimary {
		if cands := g.filter(g.primary); len(cands) > 0 {
			return cands
		}
		lgr.Printf("[WARN] primary roster exhausted, switching to fallback provider")
		g.current = ProviderFallback
	}
	return g.filter(g.fallback)
}

// filter must be called with the mutex held
func (g *Gateway) filter(p *providerClient) []candidate {
	if p == nil {
		return nil
	}
	cands := make([]candidate, 0, len(p.models))
	for _, m := range p.models {
		if _, ok := g.failed[m]; ok {
			continue
		}
		cands = append(cands, candidate{provider: p, model: m})
	}
	return cands
}

func (g *Gateway) markFailed(model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[model] = struct{}{}
}

// CurrentProvider reports which provider the gateway is on.
func (g *Gateway) CurrentProvider() Provider {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// FailedModels returns the identifiers excluded from the roster so far.
func (g *Gateway) FailedModels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	models := make([]string, 0, len(g.failed))
	for m := range g.failed {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// vocabulary for free-text error classification. Best effort, the
// completion services do not guarantee stable wording.
var (
	quotaVocab       = []string{"quota_exceeded", "insufficient_quota", "rate_limit", "429"}
	permissionVocab  = []string{"403", "permission", "insufficient_permissions"}
	unavailableVocab = []string{"unavailable", "not found"}
)

// classify maps a completion call error to one of the failure classes.
// Structured API errors are consulted first; the substring heuristic
// handles providers that only return free text.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", errQuota, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", errPermission, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", errUnavailable, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, quotaVocab) {
		return fmt.Errorf("%w: %v", errQuota, err)
	}
	if containsAny(msg, permissionVocab) {
		return fmt.Errorf("%w: %v", errPermission, err)
	}
	if containsAny(msg, unavailableVocab) {
		return fmt.Errorf("%w: %v", errUnavailable, err)
	}
	return err
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
