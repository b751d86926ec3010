package analysis

import (
	"math"
	"sync"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/jonreiter/govader"
)

var vader = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// ScoreSentiment returns polarity (VADER compound, -1..1) and subjectivity
// (share of non-neutral lexical mass, 0..1), both rounded to 2 decimals.
func ScoreSentiment(text string) engine.Sentiment {
	s := vader().PolarityScores(text)
	return engine.Sentiment{
		Polarity:     engine.Round2(clamp(s.Compound, -1, 1)),
		Subjectivity: engine.Round2(clamp(s.Positive+s.Negative, 0, 1)),
	}
}

// AttachSentiment scores every comment and reply in place.
func AttachSentiment(comments []engine.Comment) {
	for i := range comments {
		s := ScoreSentiment(comments[i].Text)
		comments[i].Sentiment = &s
		for j := range comments[i].Replies {
			rs := ScoreSentiment(comments[i].Replies[j].Text)
			comments[i].Replies[j].Sentiment = &rs
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
