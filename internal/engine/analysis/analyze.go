package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

const (
	promptMaxComments = 50
	promptMaxReplies  = 5
	analysisTemp      = 0.7

	maxCount = math.MaxInt32
)

// Count is a non-negative tally from the model. It accepts integers, floats
// and numeric strings since models are loose about number formatting.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("count %q: %w", s, err)
	}
	switch {
	case math.IsNaN(f) || f < 0:
		f = 0
	case f > maxCount:
		f = maxCount
	}
	*c = Count(f + 0.5)
	return nil
}

type SentimentDistribution struct {
	Positive Count `json:"positive"`
	Neutral  Count `json:"neutral"`
	Negative Count `json:"negative"`
}

type CommentCategories struct {
	Questions   Count `json:"questions"`
	Praise      Count `json:"praise"`
	Suggestions Count `json:"suggestions"`
	Complaints  Count `json:"complaints"`
	General     Count `json:"general"`
}

// Ordered returns category names and counts in display order.
func (c CommentCategories) Ordered() ([]string, []float64) {
	return []string{"questions", "praise", "suggestions", "complaints", "general"},
		[]float64{float64(c.Questions), float64(c.Praise), float64(c.Suggestions), float64(c.Complaints), float64(c.General)}
}

type EngagementMetrics struct {
	High   Count `json:"high_engagement"`
	Medium Count `json:"medium_engagement"`
	Low    Count `json:"low_engagement"`
}

type KeyTopic struct {
	Topic string `json:"topic"`
	Count Count  `json:"count"`
}

type OverallAnalysis struct {
	Sentiment       string `json:"sentiment"`
	EngagementLevel string `json:"engagement_level"`
	CommunityHealth string `json:"community_health"`
}

// Result is the model's structured read of a comment set.
type Result struct {
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	CommentCategories     CommentCategories     `json:"comment_categories"`
	EngagementMetrics     EngagementMetrics     `json:"engagement_metrics"`
	KeyTopics             []KeyTopic            `json:"key_topics"`
	OverallAnalysis       OverallAnalysis       `json:"overall_analysis"`
	Recommendations       []string              `json:"recommendations"`
	PositiveInsights      []string              `json:"positiveInsights,omitempty"`
	FutureImprovements    []string              `json:"futureImprovementsSuggests,omitempty"`
}

var requiredKeys = []string{
	"sentiment_distribution",
	"comment_categories",
	"engagement_metrics",
	"key_topics",
	"overall_analysis",
	"recommendations",
}

// DefaultResult is returned when the model is unavailable or its output is unusable.
func DefaultResult() Result {
	const unavailable = "Analysis unavailable"
	return Result{
		KeyTopics: []KeyTopic{{Topic: "No topics analyzed", Count: 0}},
		OverallAnalysis: OverallAnalysis{
			Sentiment:       unavailable,
			EngagementLevel: unavailable,
			CommunityHealth: unavailable,
		},
		Recommendations: []string{"No recommendations available"},
	}
}

// ParseResult decodes a raw model reply. ok is false when no JSON object can
// be recovered or any required key is missing.
func ParseResult(raw string) (Result, bool) {
	keys, ok := engine.DecodeJSONObject[map[string]json.RawMessage](raw)
	if !ok {
		return Result{}, false
	}
	for _, k := range requiredKeys {
		if v, present := keys[k]; !present || string(v) == "null" {
			return Result{}, false
		}
	}
	res, ok := engine.DecodeJSONObject[Result](raw)
	if !ok {
		return Result{}, false
	}
	if res.KeyTopics == nil {
		res.KeyTopics = []KeyTopic{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	return res, true
}

// Detailed asks the model for the structured analysis of comments. Model
// failures never surface: after the retry policy is exhausted (or when llm is
// nil) DefaultResult is returned.
func Detailed(ctx context.Context, llm engine.Completer, comments []engine.Comment) Result {
	if llm == nil {
		slog.Warn("analysis: LLM not configured, using default result")
		return DefaultResult()
	}
	prompt := fmt.Sprintf(analysisPrompt, CommentsBlock(comments))

	res, err := engine.Retry(ctx, engine.DefaultRetryPolicy(), func(ctx context.Context) (Result, error) {
		raw, err := llm.Complete(ctx, prompt, engine.CallOptions{Temperature: engine.Temp(analysisTemp)})
		if err != nil {
			return Result{}, err
		}
		res, ok := ParseResult(raw)
		if !ok {
			slog.Debug("analysis: unusable reply", slog.String("raw", engine.TruncateRunes(raw, 300, "...")))
			return Result{}, engine.ErrLLMInvalidJSON
		}
		return res, nil
	})
	if err != nil {
		slog.Warn("analysis: falling back to default result", slog.Any("error", err))
		return DefaultResult()
	}
	return res
}

// CommentsBlock renders the first 50 comments (5 replies each) in the
// "Comment i / Reply j" layout shared by the analysis and chat prompts.
func CommentsBlock(comments []engine.Comment) string {
	var sb strings.Builder
	for i, c := range comments[:min(len(comments), promptMaxComments)] {
		fmt.Fprintf(&sb, "Comment %d:\n- Text: %s\n- Likes: %d\n", i+1, c.Text, c.Likes)
		for j, r := range c.Replies[:min(len(c.Replies), promptMaxReplies)] {
			fmt.Fprintf(&sb, "  Reply %d: %s (Likes: %d)\n", j+1, r.Text, r.Likes)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
