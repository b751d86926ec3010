package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
)

const (
	summaryTemp          = 0.3
	summaryMaxTranscript = 30000 // runes sent to the model
)

// SummaryRequest selects a video and an optional time range.
type SummaryRequest struct {
	VideoURL  string
	StartTime string // HH:MM:SS, MM:SS or seconds; empty = from start
	EndTime   string // empty = to the end
}

// SummaryAnalysis is the structured part of a video summary.
type SummaryAnalysis struct {
	KeyPoints      []string `json:"key_points"`
	Topics         []string `json:"topics"`
	Sentiment      string   `json:"sentiment"`
	TargetAudience string   `json:"target_audience"`
}

// VideoSummary is the summarize-video response.
type VideoSummary struct {
	Status     string          `json:"status"`
	VideoID    string          `json:"video_id"`
	StartTime  string          `json:"start_time,omitempty"`
	EndTime    string          `json:"end_time,omitempty"`
	Transcript string          `json:"transcript"`
	Summary    string          `json:"summary"`
	Analysis   SummaryAnalysis `json:"analysis"`
}

type summaryReply struct {
	Summary string `json:"summary"`
	SummaryAnalysis
}

// parseRange validates the optional start/end timecodes.
func parseRange(req SummaryRequest) (start, end time.Duration, err error) {
	if req.StartTime != "" {
		if start, err = sources.ParseTimecode(req.StartTime); err != nil {
			return 0, 0, err
		}
	}
	if req.EndTime != "" {
		if end, err = sources.ParseTimecode(req.EndTime); err != nil {
			return 0, 0, err
		}
		if end <= start {
			return 0, 0, fmt.Errorf("%w: end_time must be after start_time", engine.ErrInvalidTime)
		}
	}
	return start, end, nil
}

func describeRange(start, end time.Duration) string {
	switch {
	case start == 0 && end == 0:
		return "entire video"
	case end == 0:
		return fmt.Sprintf("from %s to the end", sources.FormatTimecode(start))
	default:
		return fmt.Sprintf("%s to %s", sources.FormatTimecode(start), sources.FormatTimecode(end))
	}
}

// Summarize fetches the transcript for the requested range and asks the
// model to summarize it. Results are cached per video and range.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (VideoSummary, error) {
	engine.IncrSummaryRequests()

	if req.VideoURL == "" {
		return VideoSummary{}, fmt.Errorf("%w: YouTube URL is required", engine.ErrMissingParams)
	}
	if !sources.IsValidYouTubeURL(req.VideoURL) {
		return VideoSummary{}, fmt.Errorf("%w: %q", engine.ErrInvalidURL, req.VideoURL)
	}
	videoID, err := sources.ExtractVideoID(req.VideoURL)
	if err != nil {
		return VideoSummary{}, err
	}
	start, end, err := parseRange(req)
	if err != nil {
		return VideoSummary{}, err
	}
	if s.LLM == nil {
		return VideoSummary{}, engine.ErrLLMUnavailable
	}
	if s.Transcripts == nil {
		return VideoSummary{}, fmt.Errorf("%w: transcript source not configured", engine.ErrNoTranscript)
	}

	cacheKey := engine.CacheKey("summary", videoID, start.String(), end.String())
	if cached, ok := engine.CacheLoadJSON[VideoSummary](ctx, cacheKey); ok {
		slog.Debug("summarize: cache hit", slog.String("id", videoID))
		return cached, nil
	}

	segs, err := s.Transcripts.Fetch(ctx, videoID)
	if err != nil {
		return VideoSummary{}, err
	}
	segs = sources.ClipSegments(segs, start, end)
	if len(segs) == 0 {
		return VideoSummary{}, fmt.Errorf("%w: nothing said in %s", engine.ErrNoTranscript, describeRange(start, end))
	}
	transcript := sources.JoinSegments(segs)

	prompt := fmt.Sprintf(summaryPrompt, describeRange(start, end),
		engine.TruncateRunes(transcript, summaryMaxTranscript, "..."))
	reply, err := engine.Retry(ctx, engine.DefaultRetryPolicy(), func(ctx context.Context) (summaryReply, error) {
		return engine.CallJSON[summaryReply](ctx, s.LLM, prompt, engine.CallOptions{Temperature: engine.Temp(summaryTemp)})
	})
	if err != nil {
		return VideoSummary{}, fmt.Errorf("summarize %s: %w", videoID, err)
	}
	if reply.KeyPoints == nil {
		reply.KeyPoints = []string{}
	}
	if reply.Topics == nil {
		reply.Topics = []string{}
	}

	out := VideoSummary{
		Status:     "success",
		VideoID:    videoID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Transcript: transcript,
		Summary:    reply.Summary,
		Analysis:   reply.SummaryAnalysis,
	}
	engine.CacheStoreJSON(ctx, cacheKey, out)
	return out, nil
}
