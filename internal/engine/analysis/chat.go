package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// ChatAnswer is the model's answer to a question about a comment set.
type ChatAnswer struct {
	Answer             string   `json:"answer"`
	RelevantComments   []string `json:"relevant_comments"`
	Confidence         string   `json:"confidence"`
	AdditionalInsights string   `json:"additional_insights"`
}

// FallbackAnswer is sent alongside the error when chat fails.
func FallbackAnswer() ChatAnswer {
	return ChatAnswer{
		Answer:             "Sorry, I couldn't analyze the comments at this time. Please try again later.",
		RelevantComments:   []string{},
		Confidence:         "low",
		AdditionalInsights: "Error occurred during analysis",
	}
}

// Chat answers question from the stored comments. Errors are returned once
// the retry policy is exhausted; ErrLLMUnavailable when llm is nil.
func Chat(ctx context.Context, llm engine.Completer, comments []engine.Comment, question string) (ChatAnswer, error) {
	if llm == nil {
		return ChatAnswer{}, engine.ErrLLMUnavailable
	}
	prompt := fmt.Sprintf(chatPrompt, question, CommentsBlock(comments))

	ans, err := engine.Retry(ctx, engine.DefaultRetryPolicy(), func(ctx context.Context) (ChatAnswer, error) {
		return engine.CallJSON[ChatAnswer](ctx, llm, prompt, engine.CallOptions{Temperature: engine.Temp(analysisTemp)})
	})
	if err != nil {
		slog.Warn("chat: failed", slog.Any("error", err))
		return ChatAnswer{}, err
	}
	if ans.RelevantComments == nil {
		ans.RelevantComments = []string{}
	}
	ans.Confidence = normalizeConfidence(ans.Confidence)
	return ans, nil
}

func normalizeConfidence(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case "high", "medium", "low":
		return c
	}
	return "medium"
}
