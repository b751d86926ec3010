package sources

import (
	"context"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/chromedp/chromedp"
)

// BrowserOptions returns chromedp allocator options with anti-automation
// measures. Every scrape allocator is built from these.
func BrowserOptions(headless bool, userAgent string) []chromedp.ExecAllocatorOption {
	if userAgent == "" {
		userAgent = engine.UserAgentChrome
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Hides navigator.webdriver.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("mute-audio", true),

		// Containers ship a tiny /dev/shm and often run as root.
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
