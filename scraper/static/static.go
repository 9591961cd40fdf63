package static

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"listing-watch/config"
	"listing-watch/scraper"
	"listing-watch/utils"
)

// Fetcher downloads pages over plain HTTP. It suits sites that render their
// listings server-side; no script runs, so there is nothing to wait for.
type Fetcher struct {
	userAgent string
	timeout   time.Duration
	logger    *utils.Logger
}

// New creates a Fetcher from cfg.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		userAgent: cfg.UserAgent,
		timeout:   cfg.PageTimeout,
		logger:    logger,
	}
}

// Fetch performs a single GET of url and returns the response body.
func (f *Fetcher) Fetch(ctx context.Context, url string, _ config.Selectors) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &scraper.FetchError{URL: url, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(f.timeout)

	var (
		body     []byte
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	f.logger.Info("[static] Loading %s", url)
	if err := c.Visit(url); err != nil {
		return "", &scraper.FetchError{URL: url, Err: err}
	}
	if fetchErr != nil {
		return "", &scraper.FetchError{URL: url, Err: fetchErr}
	}
	if err := ctx.Err(); err != nil {
		return "", &scraper.FetchError{URL: url, Err: err}
	}
	if body == nil {
		return "", &scraper.FetchError{URL: url, Err: fmt.Errorf("empty response")}
	}

	f.logger.Debug("[static] Retrieved %d bytes from %s", len(body), url)
	return string(body), nil
}
