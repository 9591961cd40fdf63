package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"listing-watch/models"
)

// storeFactory returns an empty store and a hook that replaces its clock.
type storeFactory func(t *testing.T) (ListingStore, func(func() time.Time))

func sampleInput(sourceID int64) UpsertInput {
	return UpsertInput{
		Fingerprint: "fp-1",
		SourceID:    sourceID,
		URL:         "https://x/1",
		Title:       "Teren 500mp",
		Price:       25000,
		Currency:    models.CurrencyEUR,
	}
}

// runStoreContract checks the behaviour every ListingStore must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	tests := []struct {
		name string
		run  func(t *testing.T, s ListingStore, setClock func(func() time.Time))
	}{
		{"source is unique per base url", testSourceIsUnique},
		{"upsert is idempotent", testUpsertIsIdempotent},
		{"upsert records a price change", testUpsertPriceChange},
		{"lookup of an absent fingerprint", testLookupAbsent},
		{"upsert for an unknown source", testUpsertUnknownSource},
		{"list by source", testListBySource},
		{"cancelled context", testCancelledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, setClock := newStore(t)
			tt.run(t, s, setClock)
		})
	}
}

func testSourceIsUnique(t *testing.T, s ListingStore, _ func(func() time.Time)) {
	ctx := context.Background()

	a, err := s.GetOrCreateSource(ctx, "Storia", "https://www.storia.ro")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	b, err := s.GetOrCreateSource(ctx, "Storia.ro", "https://www.storia.ro")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("source ids differ: %d vs %d", a.ID, b.ID)
	}
	if b.Name != "Storia" {
		t.Errorf("existing source renamed to %q", b.Name)
	}

	c, err := s.GetOrCreateSource(ctx, "Imobiliare", "https://www.imobiliare.ro")
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if c.ID == a.ID {
		t.Error("distinct base urls share an id")
	}
}

func testUpsertIsIdempotent(t *testing.T, s ListingStore, _ func(func() time.Time)) {
	ctx := context.Background()
	src, err := s.GetOrCreateSource(ctx, "Storia", "https://www.storia.ro")
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.Upsert(ctx, sampleInput(src.ID))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !first.Created || first.PriceChanged || first.Previous != nil {
		t.Errorf("first upsert: %+v", first)
	}

	before, ok, err := s.Lookup(ctx, "fp-1")
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if !before.FirstSeenAt.Equal(before.LastUpdated) {
		t.Errorf("new record: first seen %v, last updated %v", before.FirstSeenAt, before.LastUpdated)
	}

	second, err := s.Upsert(ctx, sampleInput(src.ID))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Created || second.PriceChanged {
		t.Errorf("second upsert: %+v", second)
	}

	after, _, _ := s.Lookup(ctx, "fp-1")
	if after.ID != before.ID || after.Price != before.Price || !after.LastUpdated.Equal(before.LastUpdated) {
		t.Errorf("record mutated by identical upsert:\nbefore %+v\nafter  %+v", before, after)
	}

	listings, err := s.ListBySource(ctx, src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 {
		t.Errorf("listings: got %d, want 1", len(listings))
	}
}

func testUpsertPriceChange(t *testing.T, s ListingStore, setClock func(func() time.Time)) {
	ctx := context.Background()
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	setClock(func() time.Time { return now })
	src, err := s.GetOrCreateSource(ctx, "Storia", "https://www.storia.ro")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Upsert(ctx, sampleInput(src.ID)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now = t0.Add(2 * time.Hour)
	in := sampleInput(src.ID)
	in.Price = 23000
	in.Location = "Chicerea"
	res, err := s.Upsert(ctx, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.PriceChanged || res.Created {
		t.Fatalf("update result: %+v", res)
	}
	if res.Previous == nil || res.Previous.Price != 25000 {
		t.Errorf("previous: %+v", res.Previous)
	}

	rec, ok, err := s.Lookup(ctx, "fp-1")
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if rec.Price != 23000 || rec.Location != "Chicerea" {
		t.Errorf("record not updated: %+v", rec)
	}
	if !rec.FirstSeenAt.Equal(t0) || !rec.LastUpdated.Equal(now) {
		t.Errorf("timestamps: first %v last %v", rec.FirstSeenAt, rec.LastUpdated)
	}
	if rec.SourceName != "Storia" || rec.SourceBaseURL != "https://www.storia.ro" {
		t.Errorf("source join: %q %q", rec.SourceName, rec.SourceBaseURL)
	}
}

func testLookupAbsent(t *testing.T, s ListingStore, _ func(func() time.Time)) {
	rec, ok, err := s.Lookup(context.Background(), "nope")
	if err != nil || ok || rec != nil {
		t.Errorf("Lookup absent: rec=%v ok=%v err=%v", rec, ok, err)
	}
}

func testUpsertUnknownSource(t *testing.T, s ListingStore, _ func(func() time.Time)) {
	_, err := s.Upsert(context.Background(), sampleInput(424242))
	var se *StoreError
	if !errors.As(err, &se) {
		t.Errorf("got %v, want *StoreError", err)
	}
}

func testListBySource(t *testing.T, s ListingStore, setClock func(func() time.Time)) {
	ctx := context.Background()
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	setClock(func() time.Time { return now })

	storia, err := s.GetOrCreateSource(ctx, "Storia", "https://www.storia.ro")
	if err != nil {
		t.Fatal(err)
	}
	other, err := s.GetOrCreateSource(ctx, "Imobiliare", "https://www.imobiliare.ro")
	if err != nil {
		t.Fatal(err)
	}

	for i, fp := range []string{"a", "b", "c"} {
		now = t0.Add(time.Duration(i) * time.Minute)
		in := sampleInput(storia.ID)
		in.Fingerprint = fp
		if _, err := s.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	in := sampleInput(other.ID)
	in.Fingerprint = "z"
	if _, err := s.Upsert(ctx, in); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBySource(ctx, storia.ID)
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("listings: got %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Fingerprint != want {
			t.Errorf("listing %d: got %s, want %s", i, got[i].Fingerprint, want)
		}
		if got[i].SourceName != "Storia" {
			t.Errorf("listing %d: source %q", i, got[i].SourceName)
		}
	}
}

func testCancelledContext(t *testing.T, s ListingStore, _ func(func() time.Time)) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetOrCreateSource(ctx, "Storia", "https://www.storia.ro")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	var se *StoreError
	if !errors.As(err, &se) {
		t.Errorf("got %T, want *StoreError", err)
	}
}
