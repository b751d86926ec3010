package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Watch page DOM selectors. YouTube reshuffles these regularly; keep them here.
const (
	selThread      = `ytd-comment-thread-renderer`
	selContentText = `#content-text`
	selAuthorText  = `#author-text`
	selVoteCount   = `#vote-count-middle`
	selPublished   = `#published-time-text`
	selReplies     = `#replies ytd-comment-renderer, #replies ytd-comment-view-model`
	selCountText   = `ytd-comments-header-renderer #count .count-text, ytd-comments-header-renderer .count-text`
)

const (
	scrapeAttemptTimeout = 5 * time.Minute
	scrapeInitialWait    = 5 * time.Second
	scrapeCountWait      = 10 * time.Second
	scrapeReplyClickWait = 500 * time.Millisecond

	defaultScrapeMaxScrolls  = 100
	defaultScrapeMaxComments = 10000
	defaultScrapeScrollPause = 2 * time.Second

	countUnknown = "Unknown"
)

// Scraper loads a watch page in headless Chrome and reads comments off the DOM.
type Scraper struct {
	headless    bool
	userAgent   string
	maxComments int // comments + replies
	maxScrolls  int
	scrollPause time.Duration
	policy      engine.RetryPolicy
}

// ScrapeOption customizes a Scraper.
type ScrapeOption func(*Scraper)

// WithHeadless toggles headless Chrome (default true).
func WithHeadless(b bool) ScrapeOption { return func(s *Scraper) { s.headless = b } }

// WithScrapeLimits sets the comment cap, scroll cap and pause between scrolls.
// Zero values keep the defaults.
func WithScrapeLimits(maxComments, maxScrolls int, pause time.Duration) ScrapeOption {
	return func(s *Scraper) {
		if maxComments > 0 {
			s.maxComments = maxComments
		}
		if maxScrolls > 0 {
			s.maxScrolls = maxScrolls
		}
		if pause > 0 {
			s.scrollPause = pause
		}
	}
}

// WithScrapeRetryPolicy overrides the per-video retry policy.
func WithScrapeRetryPolicy(p engine.RetryPolicy) ScrapeOption {
	return func(s *Scraper) { s.policy = p }
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) ScrapeOption { return func(s *Scraper) { s.userAgent = ua } }

// NewScraper creates a scraper with the given options.
func NewScraper(opts ...ScrapeOption) *Scraper {
	s := &Scraper{
		headless:    true,
		maxComments: defaultScrapeMaxComments,
		maxScrolls:  defaultScrapeMaxScrolls,
		scrollPause: defaultScrapeScrollPause,
		policy:      engine.DefaultRetryPolicy(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fetch scrapes comments and replies for videoURL. Each attempt runs its own
// Chrome process, released when the attempt returns.
func (s *Scraper) Fetch(ctx context.Context, videoURL string) (engine.CommentSet, error) {
	if _, err := ExtractVideoID(videoURL); err != nil {
		return engine.CommentSet{}, err
	}
	engine.IncrScrapeRuns()

	set, err := engine.Retry(ctx, s.policy, func(ctx context.Context) (engine.CommentSet, error) {
		set, err := s.scrapeOnce(ctx, videoURL)
		if err != nil {
			slog.Warn("scrape: attempt failed", slog.String("url", videoURL), slog.Any("error", err))
		}
		return set, err
	})
	if err != nil {
		engine.IncrScrapeErrors()
		return engine.CommentSet{}, fmt.Errorf("scrape comments: %w", err)
	}
	engine.AddCommentsFetched(engine.CountWithReplies(set.Comments))
	return set, nil
}

func (s *Scraper) scrapeOnce(ctx context.Context, videoURL string) (engine.CommentSet, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, BrowserOptions(s.headless, s.userAgent)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, scrapeAttemptTimeout)
	defer timeoutCancel()

	if err := chromedp.Run(browserCtx, consentCookies(), chromedp.Navigate(videoURL)); err != nil {
		return engine.CommentSet{}, fmt.Errorf("load watch page: %w", err)
	}
	if err := sleepCtx(browserCtx, scrapeInitialWait); err != nil {
		return engine.CommentSet{}, err
	}

	var clicked bool
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(clickByTextJS("Accept all"), &clicked)); err != nil || !clicked {
		slog.Debug("scrape: no consent dialog", slog.Any("error", err))
	}

	set := engine.CommentSet{
		Source:         engine.SourceScrape,
		CountDisplayed: countUnknown,
	}
	if label := s.readCountLabel(browserCtx); label != "" {
		set.CountDisplayed = label
		set.CountParsed = ParseCommentCount(label)
	}

	comments, err := s.scrollAndCollect(browserCtx)
	if err != nil {
		return engine.CommentSet{}, err
	}
	set.Comments = comments
	return set, nil
}

// consentCookies pre-accepts the EU consent wall so the comments render.
func consentCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range map[string]string{"CONSENT": "YES+cb", "SOCS": "CAI"} {
			err := network.SetCookie(name, value).
				WithDomain(".youtube.com").
				WithPath("/").
				WithSecure(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set %s cookie: %w", name, err)
			}
		}
		return nil
	})
}

// readCountLabel nudges the page so the comment header renders, then polls for
// its label. Empty when it never appears.
func (s *Scraper) readCountLabel(ctx context.Context) string {
	_ = chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, 600)`, nil))

	js := fmt.Sprintf(`(document.querySelector(%q)?.textContent || '').trim()`, selCountText)
	deadline := time.Now().Add(scrapeCountWait)
	for time.Now().Before(deadline) {
		var label string
		if err := chromedp.Run(ctx, chromedp.Evaluate(js, &label)); err == nil && label != "" {
			return strings.Join(strings.Fields(label), " ")
		}
		if sleepCtx(ctx, 500*time.Millisecond) != nil {
			break
		}
	}
	slog.Debug("scrape: comment count label not found")
	return ""
}

// scrollAndCollect scrolls until the page stops growing, the scroll cap is
// hit or enough comments were read.
func (s *Scraper) scrollAndCollect(ctx context.Context) ([]engine.Comment, error) {
	comments := []engine.Comment{}
	fetched := 0   // comments + replies
	processed := 0 // thread nodes already read

	lastHeight, err := pageHeight(ctx)
	if err != nil {
		return nil, err
	}

	for scrolls := 0; fetched < s.maxComments && scrolls < s.maxScrolls; scrolls++ {
		if err := chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.documentElement.scrollHeight)`, nil)); err != nil {
			return nil, fmt.Errorf("scroll: %w", err)
		}
		if err := sleepCtx(ctx, s.scrollPause); err != nil {
			return nil, err
		}

		var clicked bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(clickByTextJS("Load more comments"), &clicked)); err == nil && clicked {
			if err := sleepCtx(ctx, s.scrollPause); err != nil {
				return nil, err
			}
		}

		var expanded int
		_ = chromedp.Run(ctx, chromedp.Evaluate(clickAllByTextJS([]string{"View replies", "Show more replies"}), &expanded))
		if expanded > 0 {
			if err := sleepCtx(ctx, time.Duration(expanded)*scrapeReplyClickWait); err != nil {
				return nil, err
			}
		}

		var raw []rawThread
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractThreadsJS(processed), &raw)); err != nil {
			return nil, fmt.Errorf("extract comments: %w", err)
		}
		processed += len(raw)

		var batch []engine.Comment
		batch, fetched = threadsToComments(raw, fetched, s.maxComments)
		comments = append(comments, batch...)
		slog.Debug("scrape: progress", slog.Int("threads", processed), slog.Int("fetched", fetched))

		height, err := pageHeight(ctx)
		if err != nil {
			return nil, err
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}
	return comments, nil
}

func pageHeight(ctx context.Context) (float64, error) {
	var h float64
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.documentElement.scrollHeight`, &h)); err != nil {
		return 0, fmt.Errorf("page height: %w", err)
	}
	return h, nil
}

// rawThread is one comment thread as read from the DOM.
type rawThread struct {
	Text      string     `json:"text"`
	Author    string     `json:"author"`
	Likes     string     `json:"likes"`
	Published string     `json:"published"`
	Replies   []rawReply `json:"replies"`
}

type rawReply struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Likes  string `json:"likes"`
}

// threadsToComments converts raw threads, counting comments and replies
// against limit starting at fetched. It returns the new fetched total.
func threadsToComments(raw []rawThread, fetched, limit int) ([]engine.Comment, int) {
	out := make([]engine.Comment, 0, len(raw))
	for _, t := range raw {
		if fetched >= limit {
			break
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		c := engine.Comment{
			Text:        t.Text,
			Author:      strings.TrimSpace(t.Author),
			Likes:       ParseLikes(t.Likes),
			PublishedAt: t.Published,
			Replies:     []engine.Reply{},
		}
		fetched++
		for _, r := range t.Replies {
			if fetched >= limit {
				break
			}
			if strings.TrimSpace(r.Text) == "" {
				continue
			}
			c.Replies = append(c.Replies, engine.Reply{
				Text:   r.Text,
				Author: strings.TrimSpace(r.Author),
				Likes:  ParseLikes(r.Likes),
			})
			fetched++
		}
		out = append(out, c)
	}
	return out, fetched
}

// clickByTextJS clicks the first button-ish element whose text is label.
// Evaluates to true when something was clicked.
func clickByTextJS(label string) string {
	return fmt.Sprintf(`(function(label) {
	const nodes = document.querySelectorAll('button, tp-yt-paper-button, yt-formatted-string, ytd-button-renderer, ytd-continuation-item-renderer');
	for (const el of nodes) {
		if ((el.textContent || '').trim() === label) {
			el.scrollIntoView();
			el.click();
			return true;
		}
	}
	return false;
})(%q)`, label)
}

// clickAllByTextJS clicks every button whose text is one of labels (or a
// "N replies" expander) and evaluates to the number of clicks.
func clickAllByTextJS(labels []string) string {
	return fmt.Sprintf(`(function(labels) {
	let n = 0;
	for (const el of document.querySelectorAll('button, tp-yt-paper-button')) {
		const t = (el.textContent || '').trim();
		if (!labels.includes(t) && !/^\d[\d,.]*[KM]? repl(y|ies)$/i.test(t)) continue;
		try { el.scrollIntoView(); el.click(); n++; } catch (e) {}
	}
	return n;
})(%s)`, jsStringArray(labels))
}

// extractThreadsJS reads every comment thread from index from onward.
func extractThreadsJS(from int) string {
	return fmt.Sprintf(`(function(from) {
	const pick = (el, sel) => ((el && el.querySelector(sel)?.textContent) || '').trim();
	const threads = Array.from(document.querySelectorAll(%q)).slice(from);
	return threads.map(t => {
		const top = t.querySelector('#comment') || t;
		return {
			text: pick(top, %q),
			author: pick(top, %q),
			likes: pick(top, %q),
			published: pick(top, %q),
			replies: Array.from(t.querySelectorAll(%q)).map(r => ({
				text: pick(r, %q),
				author: pick(r, %q),
				likes: pick(r, %q),
			})),
		};
	});
})(%d)`, selThread, selContentText, selAuthorText, selVoteCount, selPublished,
		selReplies, selContentText, selAuthorText, selVoteCount, from)
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
