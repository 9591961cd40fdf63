package models

// PriceStats summarises notified prices in one currency.
type PriceStats struct {
	Count   int
	Min     float64
	Max     float64
	Average float64
}

// RunReport is printed at the end of a pass.
type RunReport struct {
	Summary            RunSummary
	PricesByCurrency   map[Currency]PriceStats
	// CheapestByCurrency holds the lowest priced notified listing per currency.
	CheapestByCurrency map[Currency]*ReconciliationResult
	ListingsByPlace    map[string]int
	StoredForSource    int
}
