package sources

import (
	"strings"
	"testing"
)

func TestThreadsToComments(t *testing.T) {
	raw := []rawThread{
		{Text: "great video", Author: " @a ", Likes: "1.2K", Replies: []rawReply{
			{Text: "agreed", Author: "@b", Likes: "3"},
			{Text: "  ", Author: "@ghost"},
			{Text: "same", Author: "@c", Likes: ""},
		}},
		{Text: "", Author: "@empty", Likes: "5"},
		{Text: "meh", Author: "@d", Likes: "3M"},
	}

	got, fetched := threadsToComments(raw, 0, 100)
	if fetched != 4 {
		t.Errorf("fetched = %d, want 4", fetched)
	}
	if len(got) != 2 {
		t.Fatalf("got %d comments, want 2", len(got))
	}
	if got[0].Author != "@a" || got[0].Likes != 1200 || len(got[0].Replies) != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[0].Replies[1].Likes != 0 {
		t.Errorf("blank likes should be 0, got %d", got[0].Replies[1].Likes)
	}
	if got[1].Likes != 3_000_000 || got[1].Replies == nil {
		t.Errorf("second = %+v", got[1])
	}
}

func TestThreadsToCommentsLimit(t *testing.T) {
	raw := []rawThread{
		{Text: "one", Replies: []rawReply{{Text: "r1"}, {Text: "r2"}}},
		{Text: "two"},
	}
	got, fetched := threadsToComments(raw, 0, 2)
	if fetched != 2 {
		t.Errorf("fetched = %d, want 2", fetched)
	}
	if len(got) != 1 || len(got[0].Replies) != 1 {
		t.Errorf("limit not honored: %+v", got)
	}

	got, fetched = threadsToComments(raw, 5, 5)
	if len(got) != 0 || fetched != 5 {
		t.Errorf("exhausted budget should add nothing, got %d (%d)", len(got), fetched)
	}
}

func TestExtractThreadsJS(t *testing.T) {
	js := extractThreadsJS(42)
	for _, want := range []string{"ytd-comment-thread-renderer", "#vote-count-middle", "})(42)"} {
		if !strings.Contains(js, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestJSStringArray(t *testing.T) {
	if got := jsStringArray([]string{"View replies", `say "hi"`}); got != `["View replies","say \"hi\""]` {
		t.Errorf("jsStringArray = %s", got)
	}
}

func TestBrowserOptionsHeadless(t *testing.T) {
	headed := len(BrowserOptions(false, ""))
	headless := len(BrowserOptions(true, "ua"))
	if headless != headed+1 {
		t.Errorf("headless should add disable-gpu: %d vs %d", headless, headed)
	}
}

func TestNewScraperDefaults(t *testing.T) {
	s := NewScraper(WithScrapeLimits(0, 5, 0))
	if s.maxComments != defaultScrapeMaxComments || s.maxScrolls != 5 || s.scrollPause != defaultScrapeScrollPause {
		t.Errorf("unexpected scraper config: %+v", s)
	}
	if !s.headless {
		t.Error("headless should default to true")
	}
}
