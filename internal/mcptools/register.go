// Package mcptools exposes the comment analysis service as MCP tools:
// analyze_video_comments, comment_chat, summarize_video, list_analyses,
// get_analysis, compare_analyses and list_channel_videos.
package mcptools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
)

// tools binds MCP handlers to a Service.
type tools struct {
	svc *analysis.Service
}

// RegisterTools registers every tool on server. Returns the number registered.
func RegisterTools(server *mcp.Server, svc *analysis.Service) int {
	t := &tools{svc: svc}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_video_comments",
		Description: "Fetch the comments of a YouTube video (Data API, browser scrape, or hybrid), score sentiment, compute engagement statistics and run an AI analysis of themes, audience and recommendations. Returns statistics, the AI analysis, the most liked comments and an analysis_id for comment_chat. Set include_charts to also receive base64 PNG charts.",
	}, t.analyze)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "comment_chat",
		Description: "Ask a question about the comments of a video analyzed earlier with analyze_video_comments. Returns an answer, supporting comments, a confidence level (high, medium, low) and extra insights.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.chat)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_video",
		Description: "Summarize a YouTube video from its transcript, optionally limited to a time range (HH:MM:SS, MM:SS or seconds). Returns the transcript excerpt, a summary, key points, topics, overall sentiment and target audience.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.summarize)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_analyses",
		Description: "List recent comment analyses, newest first, with video, source and engagement totals.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.listAnalyses)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Get one stored comment analysis by analysis_id, including the full AI analysis document.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.getAnalysis)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_analyses",
		Description: "Compare the comment analyses of two videos. Each side is an analysis_id from analyze_video_comments or a video URL that is analyzed first. Returns sentiment, engagement, topic, category and community health comparisons. fallback is true when the AI comparison was unavailable.",
	}, t.compare)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_channel_videos",
		Description: "List the latest uploads of a YouTube channel given its URL, @handle or channel id. Returns video ids, titles, publish dates and watch URLs. Requires a YouTube Data API key.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.channelVideos)

	return 7
}
