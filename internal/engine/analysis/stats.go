package analysis

import (
	"cmp"
	"slices"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

type EngagementRates struct {
	High   float64 `json:"high_engagement_rate"`
	Medium float64 `json:"medium_engagement_rate"`
	Low    float64 `json:"low_engagement_rate"`
}

type SentimentMetrics struct {
	PositiveRate     float64 `json:"positive_rate"`
	NeutralRate      float64 `json:"neutral_rate"`
	NegativeRate     float64 `json:"negative_rate"`
	AverageSentiment float64 `json:"average_sentiment"`
}

// Statistics summarizes a comment set for the analyze response.
type Statistics struct {
	TotalComments    int64            `json:"total_comments"`
	TotalLikes       int64            `json:"total_likes"`
	AverageLikes     float64          `json:"average_likes"`
	EngagementRates  EngagementRates  `json:"engagement_rates"`
	SentimentMetrics SentimentMetrics `json:"sentiment_metrics"`
	ViewCount        int64            `json:"view_count"`
}

// SortByTotalLikes orders comments by own + reply likes, most liked first.
// The sort is stable so ties keep fetch order.
func SortByTotalLikes(comments []engine.Comment) {
	slices.SortStableFunc(comments, func(a, b engine.Comment) int {
		return cmp.Compare(b.TotalLikes(), a.TotalLikes())
	})
}

// ComputeStatistics derives the response statistics. comments must already
// carry sentiment. Rates are relative to fetched comments plus replies.
func ComputeStatistics(set engine.CommentSet, res Result) Statistics {
	fetched := engine.CountWithReplies(set.Comments)

	var total, likes int64
	switch set.Source {
	case engine.SourceScrape:
		total = set.CountParsed
		if total <= 0 {
			// Hybrid fallback keeps the API counters.
			total = set.Stats.CommentCount
		}
		for _, c := range set.Comments {
			likes += c.Likes
		}
	default:
		total = set.Stats.CommentCount
		likes = set.Stats.LikeCount
	}
	if total <= 0 {
		total = int64(fetched)
	}

	var polarity float64
	for _, c := range set.Comments {
		if c.Sentiment != nil {
			polarity += c.Sentiment.Polarity
		}
	}

	st := Statistics{
		TotalComments: total,
		TotalLikes:    likes,
		ViewCount:     set.Stats.ViewCount,
	}
	if total > 0 {
		st.AverageLikes = engine.Round2(float64(likes) / float64(total))
	}
	if fetched > 0 {
		rate := func(n Count) float64 { return float64(n) / float64(fetched) * 100 }
		st.EngagementRates = EngagementRates{
			High:   rate(res.EngagementMetrics.High),
			Medium: rate(res.EngagementMetrics.Medium),
			Low:    rate(res.EngagementMetrics.Low),
		}
		st.SentimentMetrics = SentimentMetrics{
			PositiveRate:     rate(res.SentimentDistribution.Positive),
			NeutralRate:      rate(res.SentimentDistribution.Neutral),
			NegativeRate:     rate(res.SentimentDistribution.Negative),
			AverageSentiment: polarity / float64(fetched),
		}
	}
	return st
}
