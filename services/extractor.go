package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"listing-watch/config"
	"listing-watch/models"
	"listing-watch/scraper"
	"listing-watch/utils"
)

// ExtractionError describes a listing card that was left out of the batch.
type ExtractionError struct {
	Index int
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("listing #%d: %s: %v", e.Index+1, e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var errMissing = errors.New("missing")

// Extractor turns listing cards of a parsed page into candidates.
type Extractor struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewExtractor creates an Extractor with the given logger.
func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger, now: time.Now}
}

// Extract reads every card matching site.Selectors.Listing, in page order.
// Cards without a title, price or link are skipped and reported in the
// returned errors; the rest of the page is still processed.
func (e *Extractor) Extract(doc scraper.ElementQuery, site config.Site, pageURL string) ([]models.Candidate, []error) {
	sel := site.Selectors
	cards := doc.FindAll(sel.Listing)
	if len(cards) == 0 {
		e.logger.Warn("[extract] No listings found on the page")
		return nil, nil
	}

	base, _ := url.Parse(pageURL)
	scrapedAt := e.now()

	var (
		candidates = make([]models.Candidate, 0, len(cards))
		errs       []error
	)
	for i, card := range cards {
		c, err := e.extractCard(card, sel, base)
		if err != nil {
			err.Index = i
			e.logger.Warn("[extract] Skipping %v", err)
			errs = append(errs, err)
			continue
		}
		c.ScrapedAt = scrapedAt
		candidates = append(candidates, c)
	}

	e.logger.Info("[extract] Extracted %d of %d listings", len(candidates), len(cards))
	return candidates, errs
}

func (e *Extractor) extractCard(card scraper.ElementQuery, sel config.Selectors, base *url.URL) (models.Candidate, *ExtractionError) {
	var c models.Candidate

	titleEl, ok := card.First(sel.Title)
	if !ok {
		return c, &ExtractionError{Field: "title", Err: errMissing}
	}
	c.Title = normaliseText(titleEl.Text())
	if c.Title == "" {
		return c, &ExtractionError{Field: "title", Err: errors.New("empty")}
	}

	priceEl, ok := card.First(sel.Price)
	if !ok {
		return c, &ExtractionError{Field: "price", Err: errMissing}
	}
	c.RawPrice = strings.TrimSpace(priceEl.Text())
	price, currency, err := ExtractPriceAndCurrency(c.RawPrice)
	if err != nil {
		e.logger.Warn("[extract] %q: using price 0 %s: %v", c.Title, currency, err)
	}
	c.Price, c.Currency = price, currency

	linkEl, ok := card.First(sel.Link)
	if !ok {
		return c, &ExtractionError{Field: "link", Err: errMissing}
	}
	href, ok := linkEl.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return c, &ExtractionError{Field: "link", Err: errors.New("no href")}
	}
	c.URL = resolveURL(base, href)

	if sel.Image != "" {
		if img, ok := card.First(sel.Image); ok {
			if src, ok := img.Attr("src"); ok {
				c.ImageURL = resolveURL(base, strings.TrimSpace(src))
			}
		}
	}
	if sel.Location != "" {
		if loc, ok := card.First(sel.Location); ok {
			c.Location = ExtractLocation(loc.Text())
		}
	}

	return c, nil
}

// resolveURL makes href absolute against base; unparsable input is kept as is.
func resolveURL(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
