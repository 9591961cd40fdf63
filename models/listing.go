package models

import "time"

// Currency is the three-letter code a listing is priced in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyRON Currency = "RON"
	CurrencyUSD Currency = "USD"
)

// Source is a configured origin website. BaseURL is unique across sources.
type Source struct {
	ID        int64
	Name      string
	BaseURL   string
	CreatedAt time.Time
}

// Candidate is a freshly scraped listing that has not been reconciled yet.
type Candidate struct {
	Title    string
	Price    float64
	Currency Currency
	URL      string
	ImageURL string
	Location string
	// RawPrice keeps the price text as it appeared on the page.
	RawPrice  string
	ScrapedAt time.Time
}

// ListingRecord is a persisted listing, keyed by Fingerprint.
// ImageURL and Location are empty when the page did not provide them.
type ListingRecord struct {
	ID          int64
	SourceID    int64
	Fingerprint string
	URL         string
	Title       string
	Price       float64
	Currency    Currency
	ImageURL    string
	Location    string
	FirstSeenAt time.Time
	LastUpdated time.Time

	// Joined from the owning source on lookup.
	SourceName    string
	SourceBaseURL string
}

// Classification is the outcome of reconciling one candidate.
type Classification string

const (
	ClassNew          Classification = "NEW"
	ClassPriceChanged Classification = "PRICE_CHANGED"
	ClassUnchanged    Classification = "UNCHANGED"
	ClassSkipped      Classification = "SKIPPED"
)

// ReconciliationResult is the per-candidate outcome of one pass. It is never
// persisted. PreviousPrice is set only for ClassPriceChanged.
type ReconciliationResult struct {
	Classification Classification
	Fingerprint    string
	Candidate      Candidate
	PreviousPrice  *float64
	Err            error
}

// RunSummary holds the counts reported after a pass. Considered counts
// every listing card seen, including the excluded ones.
type RunSummary struct {
	RunID         string
	SourceName    string
	Considered    int
	Excluded      int
	New           int
	PriceChanged  int
	Unchanged     int
	Skipped       int
	Notified      int
	StoredTotal   int
	DeliveryError string
}
