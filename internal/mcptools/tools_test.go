package mcptools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/analysis"
	"github.com/anatolykoptev/go_ytinsight/internal/engine/sources"
	"github.com/anatolykoptev/go_ytinsight/internal/history"
)

const testVideo = "https://youtu.be/dQw4w9WgXcQ"

type stubSource struct{ set engine.CommentSet }

func (s stubSource) Fetch(context.Context, string) (engine.CommentSet, error) { return s.set, nil }

type replyLLM string

func (r replyLLM) Complete(context.Context, string, engine.CallOptions) (string, error) {
	return string(r), nil
}

func newTools(t *testing.T) *tools {
	t.Helper()
	engine.Init(engine.Config{RetryWait: time.Millisecond})
	t.Cleanup(func() { engine.Init(engine.Config{}) })

	cache := engine.NewTieredCache("mcptest", nil, time.Minute, 100, time.Minute)
	t.Cleanup(cache.Close)
	repo, err := history.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	comments := make([]engine.Comment, 30)
	for i := range comments {
		comments[i] = engine.Comment{Text: fmt.Sprintf("comment %d", i), Likes: int64(i)}
	}
	return &tools{svc: &analysis.Service{
		API: stubSource{set: engine.CommentSet{
			Source:   engine.SourceAPI,
			Comments: comments,
			Stats:    engine.VideoStats{CommentCount: 30, LikeCount: 100, ViewCount: 1000},
		}},
		Store:   engine.NewCommentStore(cache),
		History: repo,
	}}
}

func TestRegisterTools(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "dev"}, nil)
	if n := RegisterTools(server, &analysis.Service{}); n != 7 {
		t.Errorf("registered %d tools, want 7", n)
	}
}

func TestAnalyzeTool(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	if _, _, err := tl.analyze(ctx, nil, AnalyzeInput{}); err == nil {
		t.Error("expected error for missing video_url")
	}

	_, out, err := tl.analyze(ctx, nil, AnalyzeInput{VideoURL: testVideo})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.AnalysisID == "" {
		t.Error("analysis id not generated")
	}
	if len(out.TopComments) != defaultTopComments {
		t.Errorf("top comments = %d, want %d", len(out.TopComments), defaultTopComments)
	}
	if out.TopComments[0].Text != "comment 29" {
		t.Errorf("first comment = %q, want most liked", out.TopComments[0].Text)
	}
	if out.TopComments[0].Replies == nil {
		t.Error("replies should be an empty slice")
	}
	if out.Fetched != 30 {
		t.Errorf("fetched = %d, want 30", out.Fetched)
	}
	if out.Visualizations != nil {
		t.Error("charts returned without include_charts")
	}

	_, out, err = tl.analyze(ctx, nil, AnalyzeInput{VideoURL: testVideo, AnalysisID: "fixed", TopComments: 500, IncludeCharts: true})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.AnalysisID != "fixed" || len(out.TopComments) != 30 {
		t.Errorf("got id %q with %d comments", out.AnalysisID, len(out.TopComments))
	}
	if out.Visualizations == nil || out.Visualizations.SentimentScatter == "" {
		t.Error("charts missing")
	}
}

func TestChatTool(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	if _, _, err := tl.chat(ctx, nil, ChatInput{AnalysisID: "x"}); err == nil {
		t.Error("expected error for missing question")
	}
	_, _, err := tl.chat(ctx, nil, ChatInput{AnalysisID: "unknown", Question: "why?"})
	if err == nil || !strings.Contains(err.Error(), "analyze_video_comments") {
		t.Errorf("unknown analysis: %v", err)
	}

	if _, _, err := tl.analyze(ctx, nil, AnalyzeInput{VideoURL: testVideo, AnalysisID: "c1"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tl.chat(ctx, nil, ChatInput{AnalysisID: "c1", Question: "why?"}); !errors.Is(err, engine.ErrLLMUnavailable) {
		t.Errorf("no model: %v", err)
	}

	tl.svc.LLM = replyLLM(`{"answer":"They like it","relevant_comments":["comment 29"],"confidence":"low"}`)
	_, ans, err := tl.chat(ctx, nil, ChatInput{AnalysisID: "c1", Question: "why?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if ans.Answer != "They like it" || ans.Confidence != "low" {
		t.Errorf("answer = %+v", ans)
	}
}

func TestSummarizeTool(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	if _, _, err := tl.summarize(ctx, nil, SummarizeInput{}); err == nil {
		t.Error("expected error for missing video_url")
	}
	if _, _, err := tl.summarize(ctx, nil, SummarizeInput{VideoURL: testVideo, StartTime: "later"}); !errors.Is(err, engine.ErrInvalidTime) {
		t.Errorf("bad time: %v", err)
	}
}

func TestHistoryTools(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	_, list, err := tl.listAnalyses(ctx, nil, ListInput{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 || list.Analyses == nil {
		t.Errorf("empty list = %+v", list)
	}

	for _, id := range []string{"a", "b"} {
		if _, _, err := tl.analyze(ctx, nil, AnalyzeInput{VideoURL: testVideo, AnalysisID: id}); err != nil {
			t.Fatal(err)
		}
	}
	_, list, err = tl.listAnalyses(ctx, nil, ListInput{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || len(list.Analyses) != 1 {
		t.Errorf("list = %+v", list)
	}
	if list.Analyses[0].VideoID != "dQw4w9WgXcQ" || list.Analyses[0].CreatedAt == "" {
		t.Errorf("summary = %+v", list.Analyses[0])
	}

	_, rec, err := tl.getAnalysis(ctx, nil, GetInput{AnalysisID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Summary.AnalysisID != "a" || rec.Summary.TotalComments != 30 {
		t.Errorf("record = %+v", rec.Summary)
	}
	if _, ok := rec.AIAnalysis["overall_analysis"]; !ok {
		t.Errorf("ai_analysis missing overall_analysis: %v", rec.AIAnalysis)
	}

	if _, _, err := tl.getAnalysis(ctx, nil, GetInput{AnalysisID: "zzz"}); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("missing record: %v", err)
	}
}

func TestCompareTool(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	if _, _, err := tl.compare(ctx, nil, CompareInput{AnalysisID1: "a"}); !errors.Is(err, engine.ErrMissingParams) {
		t.Errorf("one side: %v", err)
	}
	if _, _, err := tl.analyze(ctx, nil, AnalyzeInput{VideoURL: testVideo, AnalysisID: "a"}); err != nil {
		t.Fatal(err)
	}

	_, out, err := tl.compare(ctx, nil, CompareInput{AnalysisID1: "a", VideoURL2: testVideo})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !out.Fallback || out.AnalysisID1 != "a" || out.AnalysisID2 == "" {
		t.Errorf("no model compare = %+v", out)
	}

	tl.svc.LLM = replyLLM(`{"sentiment_comparison":"same","engagement_comparison":"same","key_topics":{"common":["x"]},` +
		`"comment_categories_comparison":"same","community_health_comparison":"fine","other_insights":"none"}`)
	_, out, err = tl.compare(ctx, nil, CompareInput{AnalysisID1: "a", AnalysisID2: out.AnalysisID2})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if out.Fallback || out.Comparison.CommunityHealthComparison != "fine" {
		t.Errorf("model compare = %+v", out)
	}
	if out.Comparison.KeyTopics.UniqueToVideo1 == nil {
		t.Error("missing topic lists should be empty slices")
	}
}

type stubChannels struct{}

func (stubChannels) ChannelVideos(_ context.Context, url string, limit int) (sources.ChannelVideos, error) {
	return sources.ChannelVideos{ChannelID: "UCchan", ChannelTitle: url, TotalVideos: limit}, nil
}

func TestChannelVideosTool(t *testing.T) {
	tl := newTools(t)
	ctx := context.Background()

	if _, _, err := tl.channelVideos(ctx, nil, ChannelInput{ChannelURL: "@someone"}); !errors.Is(err, engine.ErrAPIUnavailable) {
		t.Errorf("no api: %v", err)
	}
	tl.svc.Channels = stubChannels{}
	if _, _, err := tl.channelVideos(ctx, nil, ChannelInput{}); !errors.Is(err, engine.ErrMissingParams) {
		t.Errorf("missing url: %v", err)
	}
	_, out, err := tl.channelVideos(ctx, nil, ChannelInput{ChannelURL: "@someone", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if out.ChannelID != "UCchan" || out.TotalVideos != 3 {
		t.Errorf("videos = %+v", out)
	}
}
