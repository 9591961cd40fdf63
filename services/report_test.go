package services

import (
	"bytes"
	"strings"
	"testing"

	"listing-watch/models"
)

func sampleNotify() []models.ReconciliationResult {
	mk := func(title string, price float64, cur models.Currency, loc string) models.ReconciliationResult {
		return models.ReconciliationResult{
			Classification: models.ClassNew,
			Candidate:      models.Candidate{Title: title, Price: price, Currency: cur, Location: loc, URL: "https://x/" + title},
		}
	}
	return []models.ReconciliationResult{
		mk("A", 20000, models.CurrencyEUR, "Chicerea"),
		mk("B", 30000, models.CurrencyEUR, "Chicerea"),
		mk("C", 100000, models.CurrencyRON, "Tomesti"),
		mk("D", 0, models.CurrencyRON, ""),
	}
}

func TestReportPriceStats(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(models.RunSummary{}, sampleNotify(), 7)

	eur := r.PricesByCurrency[models.CurrencyEUR]
	if eur.Count != 2 || eur.Min != 20000 || eur.Max != 30000 || eur.Average != 25000 {
		t.Errorf("EUR stats: %+v", eur)
	}
	ron := r.PricesByCurrency[models.CurrencyRON]
	if ron.Count != 1 || ron.Average != 100000 {
		t.Errorf("RON stats (zero price excluded): %+v", ron)
	}
	if r.StoredForSource != 7 {
		t.Errorf("StoredForSource: got %d, want 7", r.StoredForSource)
	}
}

func TestReportLocationGrouping(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(models.RunSummary{}, sampleNotify(), 0)
	if r.ListingsByPlace["Chicerea"] != 2 || r.ListingsByPlace["Tomesti"] != 1 {
		t.Errorf("ListingsByPlace: %v", r.ListingsByPlace)
	}
	if _, ok := r.ListingsByPlace[""]; ok {
		t.Error("empty location should not be grouped")
	}
}

func TestReportCheapestPerCurrency(t *testing.T) {
	svc := NewReportService(newTestLogger())
	items := sampleNotify()
	items = append(items, models.ReconciliationResult{
		Classification: models.ClassPriceChanged,
		Candidate:      models.Candidate{Title: "E", Price: 45000, Currency: models.CurrencyRON, URL: "https://x/E"},
	})
	r := svc.Generate(models.RunSummary{}, items, 0)

	tests := []struct {
		cur  models.Currency
		want string
	}{
		{models.CurrencyEUR, "A"},
		{models.CurrencyRON, "E"},
	}
	for _, tt := range tests {
		got, ok := r.CheapestByCurrency[tt.cur]
		if !ok || got.Candidate.Title != tt.want {
			t.Errorf("cheapest %s: got %+v, want %s", tt.cur, got, tt.want)
		}
	}
	if _, ok := r.CheapestByCurrency[models.CurrencyUSD]; ok {
		t.Error("USD has no priced listings")
	}

	var buf bytes.Buffer
	svc.Print(&buf, r)
	out := buf.String()
	if !strings.Contains(out, "Cheapest notified listing per currency") || !strings.Contains(out, "45000.00 RON") {
		t.Errorf("printed report:\n%s", out)
	}
}

func TestReportEmptyInput(t *testing.T) {
	svc := NewReportService(newTestLogger())
	r := svc.Generate(models.RunSummary{SourceName: "Storia"}, nil, 0)
	if len(r.PricesByCurrency) != 0 || len(r.CheapestByCurrency) != 0 {
		t.Errorf("expected an empty report, got %+v", r)
	}

	var buf bytes.Buffer
	svc.Print(&buf, r)
	if !strings.Contains(buf.String(), "No price data available") {
		t.Errorf("printed report:\n%s", buf.String())
	}
}

func TestReportPrint(t *testing.T) {
	svc := NewReportService(newTestLogger())
	sum := models.RunSummary{RunID: "run-1", SourceName: "Storia", Considered: 4, New: 4, Notified: 4}
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sum, sampleNotify(), 4))

	out := buf.String()
	for _, w := range []string{"STORIA", "run-1", "EUR  min 20000.00 | avg 25000.00 | max 30000.00  (2)", "Chicerea"} {
		if !strings.Contains(out, w) {
			t.Errorf("report missing %q:\n%s", w, out)
		}
	}
}
