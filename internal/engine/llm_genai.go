package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAI talks to Gemini through the native SDK.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a Gemini SDK client for the given model.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Complete implements Completer. A fresh model handle per call keeps the
// generation settings request-scoped.
func (g *GenAI) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	opts = withDefaults(opts)
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(float32(*opts.Temperature))
	m.SetMaxOutputTokens(int32(opts.MaxTokens))

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrLLMEmpty
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying gRPC connection.
func (g *GenAI) Close() error {
	return g.client.Close()
}
