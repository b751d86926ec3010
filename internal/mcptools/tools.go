package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
	"github.com/anatolykoptev/go_ytinsight/internal/history"
)

const (
	defaultTopComments = 20
	maxTopComments     = 100
)

func (t *tools) analyze(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, *AnalyzeOutput, error) {
	if input.VideoURL == "" {
		return nil, nil, errors.New("video_url is required")
	}
	id := input.AnalysisID
	if id == "" {
		id = uuid.NewString()
	}
	resp, err := t.svc.Analyze(ctx, analysis.AnalyzeRequest{
		VideoURL:   input.VideoURL,
		AnalysisID: id,
		Source:     input.Source,
	})
	if err != nil {
		return nil, nil, err
	}

	n := input.TopComments
	if n <= 0 {
		n = defaultTopComments
	}
	n = min(n, maxTopComments, len(resp.Comments))

	out := &AnalyzeOutput{
		AnalysisID:  resp.ID,
		Source:      resp.Source,
		Statistics:  resp.Statistics,
		AIAnalysis:  resp.AIAnalysis,
		TopComments: withReplies(resp.Comments[:n]),
		Fetched:     engine.CountWithReplies(resp.Comments),
	}
	if input.IncludeCharts {
		viz := resp.Visualizations
		out.Visualizations = &viz
	}
	return nil, out, nil
}

// withReplies copies comments so that every Replies slice is non-nil.
func withReplies(comments []engine.Comment) []engine.Comment {
	out := make([]engine.Comment, len(comments))
	for i, c := range comments {
		if c.Replies == nil {
			c.Replies = []engine.Reply{}
		}
		out[i] = c
	}
	return out
}

func (t *tools) chat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, *analysis.ChatAnswer, error) {
	if input.AnalysisID == "" || input.Question == "" {
		return nil, nil, errors.New("analysis_id and question are required")
	}
	ans, err := t.svc.Chat(ctx, input.AnalysisID, input.Question)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, nil, fmt.Errorf("no comments stored for analysis %q, run analyze_video_comments first", input.AnalysisID)
		}
		return nil, nil, err
	}
	return nil, &ans, nil
}

func (t *tools) summarize(ctx context.Context, _ *mcp.CallToolRequest, input SummarizeInput) (*mcp.CallToolResult, *analysis.VideoSummary, error) {
	if input.VideoURL == "" {
		return nil, nil, errors.New("video_url is required")
	}
	sum, err := t.svc.Summarize(ctx, analysis.SummaryRequest{
		VideoURL:  input.VideoURL,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, &sum, nil
}

func (t *tools) listAnalyses(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *ListOutput, error) {
	recs, total, err := t.svc.ListAnalyses(ctx, input.Limit)
	if err != nil {
		return nil, nil, err
	}
	out := &ListOutput{Analyses: make([]AnalysisSummary, 0, len(recs)), Total: total}
	for _, r := range recs {
		out.Analyses = append(out.Analyses, toSummary(r))
	}
	return nil, out, nil
}

func (t *tools) getAnalysis(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, *GetOutput, error) {
	if input.AnalysisID == "" {
		return nil, nil, errors.New("analysis_id is required")
	}
	rec, err := t.svc.GetAnalysis(ctx, input.AnalysisID)
	if err != nil {
		return nil, nil, err
	}
	doc := map[string]any{}
	if len(rec.AIAnalysis) > 0 {
		if err := json.Unmarshal(rec.AIAnalysis, &doc); err != nil {
			return nil, nil, fmt.Errorf("decode stored analysis %s: %w", rec.ID, err)
		}
	}
	return nil, &GetOutput{Summary: toSummary(rec), AIAnalysis: doc}, nil
}

func (t *tools) compare(ctx context.Context, _ *mcp.CallToolRequest, input CompareInput) (*mcp.CallToolResult, *analysis.CompareResponse, error) {
	resp, err := t.svc.Compare(ctx, analysis.CompareRequest{
		VideoURL1:   input.VideoURL1,
		VideoURL2:   input.VideoURL2,
		AnalysisID1: input.AnalysisID1,
		AnalysisID2: input.AnalysisID2,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, &resp, nil
}

func (t *tools) channelVideos(ctx context.Context, _ *mcp.CallToolRequest, input ChannelInput) (*mcp.CallToolResult, *sources.ChannelVideos, error) {
	videos, err := t.svc.ChannelVideos(ctx, input.ChannelURL, input.Limit)
	if err != nil {
		return nil, nil, err
	}
	return nil, &videos, nil
}

func toSummary(r history.Record) AnalysisSummary {
	return AnalysisSummary{
		AnalysisID:    r.ID,
		VideoURL:      r.VideoURL,
		VideoID:       r.VideoID,
		Source:        r.Source,
		TotalComments: r.TotalComments,
		TotalLikes:    r.TotalLikes,
		ViewCount:     r.ViewCount,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
