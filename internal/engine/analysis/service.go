package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/charts"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
	"github.com/anatolykoptev/go_ytinsight/internal/history"
)

// CommentSource fetches the comment set for a video URL.
type CommentSource interface {
	Fetch(ctx context.Context, videoURL string) (engine.CommentSet, error)
}

// TranscriptSource fetches timed captions for a video id.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error)
}

// FrameExtractor grabs a single JPEG frame from a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoURL string, at time.Duration) ([]byte, error)
}

// ChannelSource lists the uploads of a channel.
type ChannelSource interface {
	ChannelVideos(ctx context.Context, channelURL string, limit int) (sources.ChannelVideos, error)
}

// Service runs the analysis operations. Nil dependencies disable the
// operations that need them; Store is required.
type Service struct {
	API         CommentSource // nil when no Data API key is configured
	Scraper     CommentSource
	Source      string // default comment source: api | scrape | hybrid
	LLM         engine.Completer
	Store       engine.CommentStore
	History     history.Repository
	Transcripts TranscriptSource
	Frames      FrameExtractor
	Channels    ChannelSource // nil when no Data API key is configured
}

// AnalyzeRequest identifies the video and the id the comments are kept under.
type AnalyzeRequest struct {
	VideoURL   string `json:"video_url"`
	AnalysisID string `json:"analysis_id"`
	Source     string `json:"source,omitempty"`
}

// AnalyzeResponse is the full analysis document.
type AnalyzeResponse struct {
	Status         string           `json:"status"`
	ID             string           `json:"id"`
	Source         string           `json:"source"`
	Comments       []engine.Comment `json:"comments"`
	Statistics     Statistics       `json:"statistics"`
	Visualizations charts.Set       `json:"visualizations"`
	AIAnalysis     Result           `json:"ai_analysis"`
	Error          *string          `json:"error"`

	CountDisplayed string `json:"comment_count_displayed,omitempty"`
	CountParsed    int64  `json:"comment_count_parsed,omitempty"`
}

func (s *Service) pickSource(requested string) (string, error) {
	src := strings.ToLower(strings.TrimSpace(requested))
	if src == "" {
		src = s.Source
	}
	switch src {
	case "":
		return engine.SourceHybrid, nil
	case engine.SourceAPI, engine.SourceScrape, engine.SourceHybrid:
		return src, nil
	}
	return "", fmt.Errorf("%w: unknown source %q (use api, scrape or hybrid)", engine.ErrInvalidParams, requested)
}

// fetch selects the comment source. Without an API fetcher everything is
// scraped. In hybrid mode the scraper runs when the API is forbidden or
// returns no comments for a video that reports some.
func (s *Service) fetch(ctx context.Context, videoURL, source string) (engine.CommentSet, error) {
	if s.API == nil && s.Scraper == nil {
		return engine.CommentSet{}, errors.New("no comment source configured")
	}
	switch {
	case source == engine.SourceScrape || s.API == nil:
		if s.Scraper == nil {
			return engine.CommentSet{}, errors.New("scraper not configured")
		}
		return s.Scraper.Fetch(ctx, videoURL)
	case source == engine.SourceAPI || s.Scraper == nil:
		return s.API.Fetch(ctx, videoURL)
	}

	set, err := s.API.Fetch(ctx, videoURL)
	switch {
	case errors.Is(err, engine.ErrForbidden):
		slog.Warn("analyze: API forbidden, scraping instead", slog.Any("error", err))
	case err != nil:
		return engine.CommentSet{}, err
	case len(set.Comments) > 0 || set.Stats.CommentCount == 0:
		return set, nil
	default:
		slog.Info("analyze: API returned no comments, scraping instead",
			slog.Int64("reported", set.Stats.CommentCount))
	}

	scraped, serr := s.Scraper.Fetch(ctx, videoURL)
	if serr != nil {
		if err != nil {
			return engine.CommentSet{}, err
		}
		slog.Warn("analyze: scrape fallback failed, keeping API result", slog.Any("error", serr))
		return set, nil
	}
	scraped.Stats = set.Stats
	return scraped, nil
}

// Analyze fetches comments, scores them, asks the model for the structured
// analysis and renders the charts. The fetched comments are stored under
// req.AnalysisID for later chat requests.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	engine.IncrAnalyzeRequests()

	if strings.TrimSpace(req.VideoURL) == "" || strings.TrimSpace(req.AnalysisID) == "" {
		return AnalyzeResponse{}, engine.ErrMissingParams
	}
	videoID, err := sources.ExtractVideoID(req.VideoURL)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	source, err := s.pickSource(req.Source)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	set, err := s.fetch(ctx, req.VideoURL, source)
	if err != nil {
		return AnalyzeResponse{}, err
	}
	if set.Comments == nil {
		set.Comments = []engine.Comment{}
	}
	if len(set.Comments) == 0 && set.Stats.CommentCount == 0 && set.CountParsed <= 0 {
		return AnalyzeResponse{}, engine.ErrNoComments
	}

	AttachSentiment(set.Comments)
	if err := s.Store.Put(ctx, req.AnalysisID, set.Comments); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("store comments: %w", err)
	}

	sorted := slices.Clone(set.Comments)
	SortByTotalLikes(sorted)
	set.Comments = sorted

	res := Detailed(ctx, s.LLM, sorted)
	names, counts := res.CommentCategories.Ordered()
	vis, err := charts.Render(ctx, charts.Input{
		Comments:       sorted,
		CategoryNames:  names,
		CategoryCounts: counts,
	})
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("render charts: %w", err)
	}

	resp := AnalyzeResponse{
		Status:         "success",
		ID:             req.AnalysisID,
		Source:         set.Source,
		Comments:       sorted,
		Statistics:     ComputeStatistics(set, res),
		Visualizations: vis,
		AIAnalysis:     res,
	}
	if set.Source == engine.SourceScrape {
		resp.CountDisplayed = set.CountDisplayed
		resp.CountParsed = set.CountParsed
	}

	slog.Info("analyze: done",
		slog.String("id", req.AnalysisID),
		slog.String("video", videoID),
		slog.String("source", set.Source),
		slog.Int("fetched", engine.CountWithReplies(sorted)),
	)
	s.record(ctx, req, videoID, resp)
	return resp, nil
}

// record saves the analysis summary. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, req AnalyzeRequest, videoID string, resp AnalyzeResponse) {
	if s.History == nil {
		return
	}
	rec, err := newRecord(req, videoID, resp)
	if err != nil {
		slog.Warn("history: marshal analysis", slog.Any("error", err))
		return
	}
	if err := s.History.Save(ctx, rec); err != nil {
		slog.Warn("history: save failed", slog.String("id", req.AnalysisID), slog.Any("error", err))
	}
}

func newRecord(req AnalyzeRequest, videoID string, resp AnalyzeResponse) (history.Record, error) {
	ai, err := json.Marshal(resp.AIAnalysis)
	if err != nil {
		return history.Record{}, err
	}
	return history.Record{
		ID:            req.AnalysisID,
		VideoURL:      req.VideoURL,
		VideoID:       videoID,
		Source:        resp.Source,
		TotalComments: resp.Statistics.TotalComments,
		TotalLikes:    resp.Statistics.TotalLikes,
		ViewCount:     resp.Statistics.ViewCount,
		AIAnalysis:    ai,
		CreatedAt:     time.Now(),
	}, nil
}

// Chat answers a question about the comments stored for analysisID.
func (s *Service) Chat(ctx context.Context, analysisID, question string) (ChatAnswer, error) {
	engine.IncrChatRequests()

	if strings.TrimSpace(analysisID) == "" || strings.TrimSpace(question) == "" {
		return ChatAnswer{}, engine.ErrMissingParams
	}
	comments, ok := s.Store.Get(ctx, analysisID)
	if !ok {
		return ChatAnswer{}, fmt.Errorf("%w: No comments found for this analysis", engine.ErrNotFound)
	}
	if s.LLM == nil {
		return ChatAnswer{}, engine.ErrLLMUnavailable
	}
	return Chat(ctx, s.LLM, comments, question)
}

// RawPrompt sends prompt to the model as-is and returns the JSON object
// found in the reply.
func (s *Service) RawPrompt(ctx context.Context, prompt string) (map[string]any, error) {
	if s.LLM == nil {
		return nil, engine.ErrLLMUnavailable
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: Missing required parameter 'prompt'", engine.ErrMissingParams)
	}
	raw, err := s.LLM.Complete(ctx, prompt, engine.CallOptions{})
	if err != nil {
		return nil, err
	}
	obj, ok := engine.ParseJSONObject(raw)
	if !ok {
		return nil, engine.ErrLLMInvalidJSON
	}
	return obj, nil
}

// ExtractFrame validates the request and returns one JPEG frame at timecode.
func (s *Service) ExtractFrame(ctx context.Context, videoURL, timecode string) ([]byte, error) {
	if strings.TrimSpace(videoURL) == "" || strings.TrimSpace(timecode) == "" {
		return nil, fmt.Errorf("%w: YouTube URL and time are required", engine.ErrMissingParams)
	}
	if !sources.IsValidYouTubeURL(videoURL) {
		return nil, fmt.Errorf("%w: %q", engine.ErrInvalidURL, videoURL)
	}
	at, err := sources.ParseTimecode(timecode)
	if err != nil {
		return nil, err
	}
	if s.Frames == nil {
		return nil, errors.New("frame extraction not configured")
	}
	return s.Frames.ExtractFrame(ctx, videoURL, at)
}

// ListAnalyses returns the most recent analysis records and the total count.
func (s *Service) ListAnalyses(ctx context.Context, limit int) ([]history.Record, int, error) {
	if s.History == nil {
		return []history.Record{}, 0, nil
	}
	return s.History.List(ctx, limit)
}

// GetAnalysis returns one analysis record.
func (s *Service) GetAnalysis(ctx context.Context, id string) (history.Record, error) {
	if s.History == nil {
		return history.Record{}, fmt.Errorf("%w: analysis history disabled", engine.ErrNotFound)
	}
	return s.History.Get(ctx, id)
}

// CompareRequest names the two analyses to compare. Each side is either a
// stored analysis id or a video URL that is analyzed first.
type CompareRequest struct {
	VideoURL1   string `json:"video_url1"`
	VideoURL2   string `json:"video_url2"`
	AnalysisID1 string `json:"analysis_id1"`
	AnalysisID2 string `json:"analysis_id2"`
}

// CompareResponse carries the comparison and the ids it was built from.
type CompareResponse struct {
	Status      string     `json:"status"`
	Comparison  Comparison `json:"comparison"`
	AnalysisID1 string     `json:"analysis_id1"`
	AnalysisID2 string     `json:"analysis_id2"`
	Fallback    bool       `json:"fallback,omitempty"`
}

// Compare resolves both sides and asks the model to contrast them. A model
// failure yields DefaultComparison with Fallback set, not an error.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (CompareResponse, error) {
	engine.IncrCompareRequests()

	blank := func(v string) bool { return strings.TrimSpace(v) == "" }
	if (blank(req.VideoURL1) && blank(req.AnalysisID1)) || (blank(req.VideoURL2) && blank(req.AnalysisID2)) {
		return CompareResponse{}, fmt.Errorf("%w: At least one video URL or analysis ID is required for both videos", engine.ErrMissingParams)
	}
	a, err := s.compareSide(ctx, 1, req.VideoURL1, req.AnalysisID1)
	if err != nil {
		return CompareResponse{}, err
	}
	b, err := s.compareSide(ctx, 2, req.VideoURL2, req.AnalysisID2)
	if err != nil {
		return CompareResponse{}, err
	}

	result, fallback := Compare(ctx, s.LLM, a, b)
	slog.Info("compare: done", slog.String("a", a.ID), slog.String("b", b.ID), slog.Bool("fallback", fallback))
	return CompareResponse{
		Status:      "success",
		Comparison:  result,
		AnalysisID1: a.ID,
		AnalysisID2: b.ID,
		Fallback:    fallback,
	}, nil
}

// compareSide loads a stored analysis, or analyzes videoURL when one is given.
func (s *Service) compareSide(ctx context.Context, n int, videoURL, id string) (history.Record, error) {
	if strings.TrimSpace(videoURL) == "" {
		rec, err := s.GetAnalysis(ctx, id)
		if errors.Is(err, engine.ErrNotFound) {
			return history.Record{}, fmt.Errorf("%w: Analysis ID %d not found", engine.ErrNotFound, n)
		}
		return rec, err
	}
	if !sources.IsValidYouTubeURL(videoURL) {
		return history.Record{}, fmt.Errorf("%w: video %d", engine.ErrInvalidURL, n)
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	req := AnalyzeRequest{VideoURL: videoURL, AnalysisID: id}
	resp, err := s.Analyze(ctx, req)
	if err != nil {
		return history.Record{}, fmt.Errorf("video %d: %w", n, err)
	}
	videoID, _ := sources.ExtractVideoID(videoURL)
	return newRecord(req, videoID, resp)
}

// ChannelVideos lists recent uploads of a channel through the Data API.
func (s *Service) ChannelVideos(ctx context.Context, channelURL string, limit int) (sources.ChannelVideos, error) {
	engine.IncrChannelRequests()

	if _, err := sources.ParseChannelURL(channelURL); err != nil {
		return sources.ChannelVideos{}, err
	}
	if s.Channels == nil {
		return sources.ChannelVideos{}, engine.ErrAPIUnavailable
	}
	return s.Channels.ChannelVideos(ctx, channelURL, limit)
}
