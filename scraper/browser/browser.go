package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"listing-watch/config"
	"listing-watch/scraper"
	"listing-watch/utils"
)

const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Fetcher renders pages in headless Chrome and returns their markup once the
// listing container is present.
type Fetcher struct {
	chromeBin   string
	userAgent   string
	waitTimeout time.Duration
	pageTimeout time.Duration
	logger      *utils.Logger
}

// New creates a Fetcher from the browser settings in cfg.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	bin := cfg.ChromeBin
	if bin == "" {
		bin = findChromeBinary()
	}
	return &Fetcher{
		chromeBin:   bin,
		userAgent:   cfg.UserAgent,
		waitTimeout: cfg.WaitTimeout,
		pageTimeout: cfg.PageTimeout,
		logger:      logger,
	}
}

// Fetch starts a browser, loads url and waits up to the wait timeout for
// sel.Listing. The browser is torn down before Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, url string, sel config.Selectors) (string, error) {
	f.logger.Info("[browser] Loading %s", url)
	if f.chromeBin != "" {
		f.logger.Debug("[browser] Using browser binary: %s", f.chromeBin)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	pageCtx, cancelPage := context.WithTimeout(browserCtx, f.pageTimeout)
	defer cancelPage()

	var html string
	err := chromedp.Run(pageCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, cancel := context.WithTimeout(ctx, f.waitTimeout)
			defer cancel()
			if err := chromedp.WaitReady(sel.Listing, chromedp.ByQuery).Do(waitCtx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("listing container %q did not appear within %v", sel.Listing, f.waitTimeout)
				}
				return err
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &scraper.FetchError{URL: url, Err: err}
	}

	f.logger.Debug("[browser] Retrieved %d bytes from %s", len(html), url)
	return html, nil
}

func (f *Fetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(f.userAgent),
	)
	if f.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(f.chromeBin))
	}
	return opts
}

// findChromeBinary locates a Chrome/Chromium binary on PATH or in the usual
// install locations. Config.ChromeBin takes precedence over it.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
