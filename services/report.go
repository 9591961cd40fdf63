package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"listing-watch/models"
	"listing-watch/utils"
)

// ReportService builds and prints the end-of-run report.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate computes per-currency price statistics over the notify-set.
// Zero prices (unparsable on the page) are left out of the statistics.
func (s *ReportService) Generate(summary models.RunSummary, notify []models.ReconciliationResult, stored int) *models.RunReport {
	report := &models.RunReport{
		Summary:            summary,
		PricesByCurrency:   make(map[models.Currency]models.PriceStats),
		CheapestByCurrency: make(map[models.Currency]*models.ReconciliationResult),
		ListingsByPlace:    make(map[string]int),
		StoredForSource:    stored,
	}

	totals := make(map[models.Currency]float64)
	for i := range notify {
		r := &notify[i]
		c := r.Candidate
		if c.Location != "" {
			report.ListingsByPlace[c.Location]++
		}
		if c.Price <= 0 {
			continue
		}

		st, seen := report.PricesByCurrency[c.Currency]
		if !seen || c.Price < st.Min {
			st.Min = c.Price
		}
		if !seen || c.Price > st.Max {
			st.Max = c.Price
		}
		st.Count++
		totals[c.Currency] += c.Price
		report.PricesByCurrency[c.Currency] = st

		if cheapest, ok := report.CheapestByCurrency[c.Currency]; !ok || c.Price < cheapest.Candidate.Price {
			report.CheapestByCurrency[c.Currency] = r
		}
	}

	for cur, st := range report.PricesByCurrency {
		st.Average = round2(totals[cur] / float64(st.Count))
		st.Min = round2(st.Min)
		st.Max = round2(st.Max)
		report.PricesByCurrency[cur] = st
	}

	s.logger.Debug("[report] %d notified listings across %d currencies", len(notify), len(report.PricesByCurrency))
	return report
}

func (s *ReportService) Print(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	sum := r.Summary

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  LISTING WATCH: %s\033[0m\n", strings.ToUpper(sum.SourceName))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Summary\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run                    : %s\n", sum.RunID)
	fmt.Fprintf(w, "  Total listings found   : \033[1m%d\033[0m\n", sum.Considered)
	fmt.Fprintf(w, "  New                    : \033[1m%d\033[0m\n", sum.New)
	fmt.Fprintf(w, "  Price changed          : \033[1m%d\033[0m\n", sum.PriceChanged)
	fmt.Fprintf(w, "  Unchanged              : %d\n", sum.Unchanged)
	fmt.Fprintf(w, "  Excluded / skipped     : %d / %d\n", sum.Excluded, sum.Skipped)
	fmt.Fprintf(w, "  Stored for this source : %d\n", r.StoredForSource)
	if sum.DeliveryError != "" {
		fmt.Fprintf(w, "  Email                  : \033[1;31mfailed: %s\033[0m\n", sum.DeliveryError)
	} else if sum.Notified > 0 {
		fmt.Fprintf(w, "  Email                  : \033[1;32msent (%d listings)\033[0m\n", sum.Notified)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Prices of notified listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.PricesByCurrency) == 0 {
		fmt.Fprintf(w, "  No price data available\n")
	} else {
		for _, cur := range sortedCurrencies(r.PricesByCurrency) {
			st := r.PricesByCurrency[cur]
			fmt.Fprintf(w, "  %s  min %.2f | avg %.2f | max %.2f  (%d)\n", cur, st.Min, st.Average, st.Max, st.Count)
		}
	}
	fmt.Fprintln(w)

	if len(r.CheapestByCurrency) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Cheapest notified listing per currency\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, cur := range sortedCurrencies(r.CheapestByCurrency) {
			c := r.CheapestByCurrency[cur].Candidate
			fmt.Fprintf(w, "  %s\n", truncate(c.Title, 50))
			fmt.Fprintf(w, "  Price : \033[1;32m%.2f %s\033[0m\n", c.Price, c.Currency)
			fmt.Fprintf(w, "  URL   : %s\n\n", c.URL)
		}
	}

	if len(r.ListingsByPlace) > 0 {
		type placeCount struct {
			place string
			count int
		}
		places := make([]placeCount, 0, len(r.ListingsByPlace))
		for p, n := range r.ListingsByPlace {
			places = append(places, placeCount{p, n})
		}
		sort.Slice(places, func(i, j int) bool {
			if places[i].count != places[j].count {
				return places[i].count > places[j].count
			}
			return places[i].place < places[j].place
		})

		fmt.Fprintf(w, "\033[1;33m  Notified listings by location\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, pc := range places {
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(pc.place, 28), strings.Repeat("█", pc.count), pc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func sortedCurrencies[V any](m map[models.Currency]V) []models.Currency {
	out := make([]models.Currency, 0, len(m))
	for cur := range m {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
