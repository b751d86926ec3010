package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/sony/gobreaker"
)

// LLM providers selectable via LLM_PROVIDER.
const (
	ProviderOpenAI = "openai" // OpenAI-compatible endpoint (Gemini by default)
	ProviderGenAI  = "genai"  // native Gemini SDK
)

// CallOptions tunes a single completion.
type CallOptions struct {
	Temperature *float64 // nil = configured LLM_TEMPERATURE; 0 is a valid setting
	MaxTokens   int
}

// Temp returns a Temperature value for CallOptions.
func Temp(t float64) *float64 { return &t }

// Completer generates a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// NewLLM builds the configured completer wrapped in metrics and a circuit breaker.
// Returns nil without error when no API key is configured; callers treat that
// as ErrLLMUnavailable.
func NewLLM(ctx context.Context, c Config) (Completer, error) {
	if c.LLMAPIKey == "" {
		return nil, nil
	}

	var base Completer
	switch strings.ToLower(c.LLMProvider) {
	case ProviderGenAI:
		g, err := NewGenAI(ctx, c.LLMAPIKey, c.LLMModel)
		if err != nil {
			return nil, err
		}
		base = g
	default:
		base = &kitLLM{client: llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
		)}
	}
	return Guard(base, "llm"), nil
}

// kitLLM adapts the go-kit OpenAI-compatible client.
type kitLLM struct {
	client *llm.Client
}

func (k *kitLLM) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	opts = withDefaults(opts)
	return k.client.Complete(ctx, "", prompt,
		llm.WithChatTemperature(*opts.Temperature),
		llm.WithChatMaxTokens(opts.MaxTokens),
	)
}

func withDefaults(o CallOptions) CallOptions {
	if o.Temperature == nil {
		o.Temperature = Temp(cfg.LLMTemperature)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = cfg.LLMMaxTokens
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	return o
}

// guardedLLM counts calls and short-circuits a failing provider.
type guardedLLM struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

// Guard wraps next with call metrics and a circuit breaker that opens after
// five consecutive failures and retries after 30s.
func Guard(next Completer, name string) Completer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("llm: circuit breaker state change",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &guardedLLM{next: next, cb: cb}
}

func (g *guardedLLM) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	metrics.LLMCalls.Add(1)
	out, err := g.cb.Execute(func() (any, error) {
		return g.next.Complete(ctx, prompt, opts)
	})
	if err != nil {
		metrics.LLMErrors.Add(1)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", ErrLLMUnavailable, err)
		}
		return "", err
	}
	text, _ := out.(string)
	if strings.TrimSpace(text) == "" {
		return "", ErrLLMEmpty
	}
	return text, nil
}

// CallJSON completes prompt and decodes the first JSON object in the reply into T.
// Empty replies and unparseable JSON are reported as ErrLLMEmpty / ErrLLMInvalidJSON
// so callers can retry them.
func CallJSON[T any](ctx context.Context, c Completer, prompt string, opts CallOptions) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrLLMUnavailable
	}
	raw, err := c.Complete(ctx, prompt, opts)
	if err != nil {
		return zero, err
	}
	out, ok := DecodeJSONObject[T](raw)
	if !ok {
		slog.Debug("llm: unparseable reply", slog.String("raw", TruncateRunes(raw, 300, "...")))
		return zero, ErrLLMInvalidJSON
	}
	return out, nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSONObject strips code fences and any prose around the outermost
// braces, then decodes strictly into T. It never panics; ok is false when no
// object can be recovered.
func DecodeJSONObject[T any](raw string) (out T, ok bool) {
	s := stripFences(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return out, false
	}
	var v T
	if err := json.Unmarshal([]byte(s[start:end+1]), &v); err != nil {
		return out, false
	}
	return v, true
}

// ParseJSONObject is DecodeJSONObject for free-form objects.
func ParseJSONObject(raw string) (map[string]any, bool) {
	m, ok := DecodeJSONObject[map[string]any](raw)
	if ok && m == nil {
		return nil, false
	}
	return m, ok
}
