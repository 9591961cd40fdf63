package scraper

import (
	"context"
	"fmt"

	"listing-watch/config"
)

// PageFetcher retrieves the markup of a listings page. Implementations bound
// their own wait and return a *FetchError when the page is unreachable or
// the listing container does not appear in time.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, sel config.Selectors) (string, error)
}

// FetchError is fatal to a run: nothing is written to the store.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
