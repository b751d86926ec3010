package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	AnalyzeRequests    atomic.Int64
	ChatRequests       atomic.Int64
	SummaryRequests    atomic.Int64
	FrameRequests      atomic.Int64
	CompareRequests    atomic.Int64
	ChannelRequests    atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	YouTubeAPIRequests atomic.Int64
	YouTubeAPIErrors   atomic.Int64
	ScrapeRuns         atomic.Int64
	ScrapeErrors       atomic.Int64
	TranscriptRequests atomic.Int64
	CommentsFetched    atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"analyze_requests", "chat_requests", "summary_requests", "frame_requests",
	"compare_requests", "channel_requests",
	"llm_calls", "llm_errors",
	"youtube_api_requests", "youtube_api_errors",
	"scrape_runs", "scrape_errors",
	"transcript_requests", "comments_fetched",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"analyze_requests":     metrics.AnalyzeRequests.Load(),
		"chat_requests":        metrics.ChatRequests.Load(),
		"summary_requests":     metrics.SummaryRequests.Load(),
		"frame_requests":       metrics.FrameRequests.Load(),
		"compare_requests":     metrics.CompareRequests.Load(),
		"channel_requests":     metrics.ChannelRequests.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"youtube_api_requests": metrics.YouTubeAPIRequests.Load(),
		"youtube_api_errors":   metrics.YouTubeAPIErrors.Load(),
		"scrape_runs":          metrics.ScrapeRuns.Load(),
		"scrape_errors":        metrics.ScrapeErrors.Load(),
		"transcript_requests":  metrics.TranscriptRequests.Load(),
		"comments_fetched":     metrics.CommentsFetched.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// MetricKeys returns metric names in display order.
func MetricKeys() []string {
	return append([]string(nil), metricKeys...)
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrAnalyzeRequests()      { metrics.AnalyzeRequests.Add(1) }
func IncrChatRequests()         { metrics.ChatRequests.Add(1) }
func IncrSummaryRequests()      { metrics.SummaryRequests.Add(1) }
func IncrFrameRequests()        { metrics.FrameRequests.Add(1) }
func IncrCompareRequests()      { metrics.CompareRequests.Add(1) }
func IncrChannelRequests()      { metrics.ChannelRequests.Add(1) }
func IncrYouTubeAPI()           { metrics.YouTubeAPIRequests.Add(1) }
func IncrYouTubeAPIErrors()     { metrics.YouTubeAPIErrors.Add(1) }
func IncrScrapeRuns()           { metrics.ScrapeRuns.Add(1) }
func IncrScrapeErrors()         { metrics.ScrapeErrors.Add(1) }
func IncrTranscript()           { metrics.TranscriptRequests.Add(1) }
func AddCommentsFetched(n int)  { metrics.CommentsFetched.Add(int64(n)) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
