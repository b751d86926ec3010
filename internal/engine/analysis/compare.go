package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/history"
)

const compareTemp = 0.4

// TopicComparison splits the key topics of two videos.
type TopicComparison struct {
	Common         []string `json:"common"`
	UniqueToVideo1 []string `json:"unique_to_video1"`
	UniqueToVideo2 []string `json:"unique_to_video2"`
}

// Comparison is the model's side-by-side read of two analyses.
type Comparison struct {
	SentimentComparison         string          `json:"sentiment_comparison"`
	EngagementComparison        string          `json:"engagement_comparison"`
	KeyTopics                   TopicComparison `json:"key_topics"`
	CommentCategoriesComparison string          `json:"comment_categories_comparison"`
	CommunityHealthComparison   string          `json:"community_health_comparison"`
	OtherInsights               string          `json:"other_insights"`
}

// DefaultComparison is returned when the model cannot produce a comparison.
func DefaultComparison() Comparison {
	return Comparison{
		SentimentComparison:         "Unable to compare sentiment due to an error",
		EngagementComparison:        "Unable to compare engagement due to an error",
		KeyTopics:                   TopicComparison{Common: []string{}, UniqueToVideo1: []string{}, UniqueToVideo2: []string{}},
		CommentCategoriesComparison: "Unable to compare categories due to an error",
		CommunityHealthComparison:   "Unable to compare community health due to an error",
		OtherInsights:               "Comparison failed; please try again later",
	}
}

// comparedFields are the parts of a stored AI analysis sent to the model.
var comparedFields = []struct{ label, key string }{
	{"Sentiment Distribution", "sentiment_distribution"},
	{"Comment Categories", "comment_categories"},
	{"Engagement Metrics", "engagement_metrics"},
	{"Key Topics", "key_topics"},
	{"Overall Analysis", "overall_analysis"},
}

// CompareBlock renders one record as the "- Label: json" lines of the
// comparison prompt. Missing fields render as null.
func CompareBlock(rec history.Record) string {
	doc, _ := engine.DecodeJSONObject[map[string]json.RawMessage](string(rec.AIAnalysis))

	var sb strings.Builder
	for _, f := range comparedFields {
		v := doc[f.key]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		fmt.Fprintf(&sb, "- %s: %s\n", f.label, v)
	}
	stats, _ := json.Marshal(struct {
		TotalComments int64 `json:"total_comments"`
		TotalLikes    int64 `json:"total_likes"`
		ViewCount     int64 `json:"view_count"`
	}{rec.TotalComments, rec.TotalLikes, rec.ViewCount})
	fmt.Fprintf(&sb, "- Statistics: %s\n", stats)
	return sb.String()
}

// Compare asks the model to contrast two analyses. Like Detailed it never
// fails: without a model or after the retry policy is exhausted the
// DefaultComparison is returned and the flag reports the fallback.
func Compare(ctx context.Context, llm engine.Completer, a, b history.Record) (Comparison, bool) {
	if llm == nil {
		slog.Warn("compare: LLM not configured, using default comparison")
		return DefaultComparison(), true
	}
	prompt := fmt.Sprintf(comparePrompt, CompareBlock(a), CompareBlock(b))

	out, err := engine.Retry(ctx, engine.DefaultRetryPolicy(), func(ctx context.Context) (Comparison, error) {
		return engine.CallJSON[Comparison](ctx, llm, prompt, engine.CallOptions{Temperature: engine.Temp(compareTemp)})
	})
	if err != nil {
		slog.Warn("compare: falling back to default comparison",
			slog.String("a", a.ID), slog.String("b", b.ID), slog.Any("error", err))
		return DefaultComparison(), true
	}
	for _, s := range []*[]string{&out.KeyTopics.Common, &out.KeyTopics.UniqueToVideo1, &out.KeyTopics.UniqueToVideo2} {
		if *s == nil {
			*s = []string{}
		}
	}
	return out, false
}
