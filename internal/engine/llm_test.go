package engine

import (
	"context"
	"errors"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `  {"a":1}  `, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripFences(tt.in); got != tt.want {
				t.Errorf("stripFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		key    string
	}{
		{"plain", `{"answer": "yes"}`, true, "answer"},
		{"fenced", "```json\n{\"answer\": \"yes\"}\n```", true, "answer"},
		{"prose around", "Sure! Here is the result: {\"answer\": \"yes\"} Hope it helps.", true, "answer"},
		{"nested", `{"outer": {"inner": 1}}`, true, "outer"},
		{"malformed", `{"answer": "yes",}`, false, ""},
		{"truncated", `{"answer": "ye`, false, ""},
		{"no braces", `just text`, false, ""},
		{"empty", ``, false, ""},
		{"reversed braces", `} nope {`, false, ""},
		{"array", `[1, 2, 3]`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseJSONObject(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseJSONObject(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok {
				if _, present := got[tt.key]; !present {
					t.Errorf("key %q missing in %v", tt.key, got)
				}
			}
		})
	}
}

func TestDecodeJSONObjectTyped(t *testing.T) {
	type answer struct {
		Answer     string   `json:"answer"`
		Confidence string   `json:"confidence"`
		Relevant   []string `json:"relevant_comments"`
	}
	raw := "```json\n{\"answer\": \"people love it\", \"confidence\": \"high\", \"relevant_comments\": [\"a\", \"b\"]}\n```"
	got, ok := DecodeJSONObject[answer](raw)
	if !ok {
		t.Fatal("expected ok")
	}
	if got.Answer != "people love it" || got.Confidence != "high" || len(got.Relevant) != 2 {
		t.Errorf("unexpected decode: %+v", got)
	}

	if _, ok := DecodeJSONObject[answer](`{"answer": 12}`); ok {
		t.Error("type mismatch must not decode")
	}
}

type fakeLLM struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeLLM) Complete(_ context.Context, _ string, _ CallOptions) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return reply, err
}

func TestCallJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("nil completer", func(t *testing.T) {
		_, err := CallJSON[map[string]any](ctx, nil, "p", CallOptions{})
		if !errors.Is(err, ErrLLMUnavailable) {
			t.Errorf("expected ErrLLMUnavailable, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		f := &fakeLLM{replies: []string{"not json"}}
		_, err := CallJSON[map[string]any](ctx, f, "p", CallOptions{})
		if !errors.Is(err, ErrLLMInvalidJSON) {
			t.Errorf("expected ErrLLMInvalidJSON, got %v", err)
		}
	})

	t.Run("ok", func(t *testing.T) {
		f := &fakeLLM{replies: []string{`{"k": "v"}`}}
		got, err := CallJSON[map[string]any](ctx, f, "p", CallOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got["k"] != "v" {
			t.Errorf("got %v", got)
		}
	})
}

func TestGuardEmptyReply(t *testing.T) {
	g := Guard(&fakeLLM{replies: []string{"   "}}, "test-empty")
	_, err := g.Complete(context.Background(), "p", CallOptions{MaxTokens: 10, Temperature: Temp(0.1)})
	if !errors.Is(err, ErrLLMEmpty) {
		t.Errorf("expected ErrLLMEmpty, got %v", err)
	}
}

func TestGuardOpensBreaker(t *testing.T) {
	boom := errors.New("provider down")
	f := &fakeLLM{errs: []error{boom, boom, boom, boom, boom, boom, boom}}
	g := Guard(f, "test-breaker")
	ctx := context.Background()

	for range 5 {
		if _, err := g.Complete(ctx, "p", CallOptions{}); !errors.Is(err, boom) {
			t.Fatalf("expected provider error, got %v", err)
		}
	}
	_, err := g.Complete(ctx, "p", CallOptions{})
	if !errors.Is(err, ErrLLMUnavailable) {
		t.Fatalf("expected breaker to report ErrLLMUnavailable, got %v", err)
	}
	if f.calls != 5 {
		t.Errorf("provider called %d times, want 5 (open breaker must short-circuit)", f.calls)
	}
}

func TestWithDefaults(t *testing.T) {
	Init(Config{LLMTemperature: 0.7, LLMMaxTokens: 512})
	t.Cleanup(func() { Init(Config{}) })

	tests := []struct {
		name     string
		in       CallOptions
		wantTemp float64
		wantMax  int
	}{
		{"unset uses config", CallOptions{}, 0.7, 512},
		{"zero temperature kept", CallOptions{Temperature: Temp(0)}, 0, 512},
		{"explicit values kept", CallOptions{Temperature: Temp(0.2), MaxTokens: 64}, 0.2, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withDefaults(tt.in)
			if got.Temperature == nil || *got.Temperature != tt.wantTemp {
				t.Errorf("temperature = %v, want %v", got.Temperature, tt.wantTemp)
			}
			if got.MaxTokens != tt.wantMax {
				t.Errorf("max tokens = %d, want %d", got.MaxTokens, tt.wantMax)
			}
		})
	}
}
