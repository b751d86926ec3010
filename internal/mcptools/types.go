package mcptools

import (
	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/charts"
)

// AnalyzeInput is the input for analyze_video_comments.
type AnalyzeInput struct {
	VideoURL      string `json:"video_url" jsonschema:"YouTube video URL (watch?v= or youtu.be link)"`
	AnalysisID    string `json:"analysis_id,omitempty" jsonschema:"Id to store the comments under for comment_chat. Generated when empty"`
	Source        string `json:"source,omitempty" jsonschema:"Comment source: api, scrape, hybrid (default from server config)"`
	TopComments   int    `json:"top_comments,omitempty" jsonschema:"How many of the most liked comments to return (default 20, max 100)"`
	IncludeCharts bool   `json:"include_charts,omitempty" jsonschema:"Include base64 PNG charts in the result"`
}

// AnalyzeOutput is a compact view of the analysis document.
type AnalyzeOutput struct {
	AnalysisID     string              `json:"analysis_id"`
	Source         string              `json:"source"`
	Statistics     analysis.Statistics `json:"statistics"`
	AIAnalysis     analysis.Result     `json:"ai_analysis"`
	TopComments    []engine.Comment    `json:"top_comments"`
	Fetched        int                 `json:"comments_fetched"`
	Visualizations *charts.Set         `json:"visualizations,omitempty"`
}

// ChatInput is the input for comment_chat.
type ChatInput struct {
	AnalysisID string `json:"analysis_id" jsonschema:"Id returned by analyze_video_comments"`
	Question   string `json:"question" jsonschema:"Question about the comments (e.g. what do viewers dislike?)"`
}

// SummarizeInput is the input for summarize_video.
type SummarizeInput struct {
	VideoURL  string `json:"video_url" jsonschema:"YouTube video URL"`
	StartTime string `json:"start_time,omitempty" jsonschema:"Range start: HH:MM:SS, MM:SS or seconds. Empty = from the beginning"`
	EndTime   string `json:"end_time,omitempty" jsonschema:"Range end: HH:MM:SS, MM:SS or seconds. Empty = to the end"`
}

// ListInput is the input for list_analyses.
type ListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 200)"`
}

// AnalysisSummary is one history row without the AI document.
type AnalysisSummary struct {
	AnalysisID    string `json:"analysis_id"`
	VideoURL      string `json:"video_url"`
	VideoID       string `json:"video_id"`
	Source        string `json:"source"`
	TotalComments int64  `json:"total_comments"`
	TotalLikes    int64  `json:"total_likes"`
	ViewCount     int64  `json:"view_count"`
	CreatedAt     string `json:"created_at"`
}

// ListOutput is the output of list_analyses.
type ListOutput struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Total    int               `json:"total"`
}

// GetInput is the input for get_analysis.
type GetInput struct {
	AnalysisID string `json:"analysis_id" jsonschema:"Id of a stored analysis (see list_analyses)"`
}

// GetOutput is one stored analysis with its AI document decoded.
type GetOutput struct {
	Summary    AnalysisSummary `json:"summary"`
	AIAnalysis map[string]any  `json:"ai_analysis"`
}

// CompareInput is the input for compare_analyses. Each side is a stored
// analysis id or a video URL that is analyzed first.
type CompareInput struct {
	AnalysisID1 string `json:"analysis_id1,omitempty" jsonschema:"Id of the first stored analysis"`
	VideoURL1   string `json:"video_url1,omitempty" jsonschema:"First video URL, used when analysis_id1 is empty"`
	AnalysisID2 string `json:"analysis_id2,omitempty" jsonschema:"Id of the second stored analysis"`
	VideoURL2   string `json:"video_url2,omitempty" jsonschema:"Second video URL, used when analysis_id2 is empty"`
}

// ChannelInput is the input for list_channel_videos.
type ChannelInput struct {
	ChannelURL string `json:"channel_url" jsonschema:"Channel URL, @handle or UC... channel id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum videos to return (default 50, max 500)"`
}
