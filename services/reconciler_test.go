package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"listing-watch/models"
	"listing-watch/storage"
)

// flakyStore fails Upsert for one URL and delegates everything else.
type flakyStore struct {
	*storage.MemoryStore
	failURL string
}

func (f *flakyStore) Upsert(ctx context.Context, in storage.UpsertInput) (*storage.UpsertResult, error) {
	if in.URL == f.failURL {
		return nil, &storage.StoreError{Op: "upsert", Err: errors.New("connection reset")}
	}
	return f.MemoryStore.Upsert(ctx, in)
}

func newSource(t *testing.T, store storage.ListingStore) models.Source {
	t.Helper()
	src, err := store.GetOrCreateSource(context.Background(), "Storia", "https://www.storia.ro")
	if err != nil {
		t.Fatalf("GetOrCreateSource: %v", err)
	}
	return *src
}

func teren(n string, price float64) models.Candidate {
	return models.Candidate{
		Title:    "Teren " + n,
		Price:    price,
		Currency: models.CurrencyEUR,
		URL:      "https://x/" + n,
	}
}

func TestReconcileNewListing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	c := models.Candidate{Title: "Teren 500mp", Price: 25000, Currency: models.CurrencyEUR, URL: "https://x/1"}
	out := r.Reconcile(ctx, src, []models.Candidate{c})

	if len(out.Notify) != 1 {
		t.Fatalf("notify-set: got %d, want 1", len(out.Notify))
	}
	if out.Notify[0].Classification != models.ClassNew {
		t.Errorf("classification: got %s, want NEW", out.Notify[0].Classification)
	}

	stored, err := store.ListBySource(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored: got %d, want 1", len(stored))
	}
	if !stored[0].FirstSeenAt.Equal(stored[0].LastUpdated) {
		t.Errorf("first seen %v != last updated %v", stored[0].FirstSeenAt, stored[0].LastUpdated)
	}
	if stored[0].Fingerprint != Fingerprint(c.Title, c.Price, c.Currency, c.URL) {
		t.Errorf("stored fingerprint does not match the candidate")
	}
}

func TestReconcileUnchangedOnSecondRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	batch := []models.Candidate{teren("1", 25000), teren("2", 30000)}

	first := r.Reconcile(ctx, src, batch)
	if len(first.Notify) != 2 {
		t.Fatalf("first run notify-set: got %d, want 2", len(first.Notify))
	}

	second := r.Reconcile(ctx, src, batch)
	if len(second.Notify) != 0 {
		t.Errorf("second run notify-set: got %d, want 0", len(second.Notify))
	}
	if second.Summary.Unchanged != 2 || second.Summary.Considered != 2 {
		t.Errorf("second run summary: %+v", second.Summary)
	}
}

func TestReconcileExcludesMalformedCandidate(t *testing.T) {
	store := storage.NewMemoryStore()
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	broken := teren("2", 30000)
	broken.Title = ""
	out := r.Reconcile(context.Background(), src, []models.Candidate{teren("1", 25000), broken, teren("3", 27000)})

	if len(out.Notify) != 2 {
		t.Fatalf("notify-set: got %d, want 2", len(out.Notify))
	}
	if out.Notify[0].Candidate.URL != "https://x/1" || out.Notify[1].Candidate.URL != "https://x/3" {
		t.Errorf("notify order: got %s, %s", out.Notify[0].Candidate.URL, out.Notify[1].Candidate.URL)
	}
	if out.Results[1].Classification != models.ClassSkipped {
		t.Errorf("broken candidate: got %s, want SKIPPED", out.Results[1].Classification)
	}
	var xe *ExtractionError
	if !errors.As(out.Results[1].Err, &xe) {
		t.Errorf("broken candidate error: got %v, want *ExtractionError", out.Results[1].Err)
	}
	if out.Summary.Excluded != 1 || out.Summary.New != 2 {
		t.Errorf("summary: %+v", out.Summary)
	}
}

func TestReconcileStoreFailureSkipsCandidate(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(), failURL: "https://x/2"}
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	out := r.Reconcile(ctx, src, []models.Candidate{teren("1", 1), teren("2", 2), teren("3", 3)})

	if len(out.Notify) != 2 {
		t.Fatalf("notify-set: got %d, want 2", len(out.Notify))
	}
	if out.Summary.Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", out.Summary.Skipped)
	}
	var se *storage.StoreError
	if !errors.As(out.Results[1].Err, &se) {
		t.Errorf("store failure: got %v, want *storage.StoreError", out.Results[1].Err)
	}

	// The failed candidate is picked up again by the next run.
	store.failURL = ""
	again := r.Reconcile(ctx, src, []models.Candidate{teren("1", 1), teren("2", 2), teren("3", 3)})
	if len(again.Notify) != 1 || again.Notify[0].Candidate.URL != "https://x/2" {
		t.Errorf("retry run notify-set: %+v", again.Notify)
	}
}

func TestReconcilePriceChangeUnderFieldsPolicy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	r.Reconcile(ctx, src, []models.Candidate{teren("1", 25000)})
	out := r.Reconcile(ctx, src, []models.Candidate{teren("1", 23000)})

	if len(out.Notify) != 1 || out.Notify[0].Classification != models.ClassNew {
		t.Fatalf("fields policy should report the cheaper listing as NEW, got %+v", out.Notify)
	}
	stored, _ := store.ListBySource(ctx, src.ID)
	if len(stored) != 2 {
		t.Errorf("stored: got %d, want 2 (one per fingerprint)", len(stored))
	}
}

func TestReconcilePriceChangeUnderURLPolicy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	now := base
	store.SetClock(func() time.Time { return now })
	src := newSource(t, store)
	r := NewReconciler(store, PolicyURL, newTestLogger())

	r.Reconcile(ctx, src, []models.Candidate{teren("1", 25000)})
	now = base.Add(time.Hour)
	out := r.Reconcile(ctx, src, []models.Candidate{teren("1", 23000)})

	if len(out.Notify) != 1 {
		t.Fatalf("notify-set: got %d, want 1", len(out.Notify))
	}
	res := out.Notify[0]
	if res.Classification != models.ClassPriceChanged {
		t.Fatalf("classification: got %s, want PRICE_CHANGED", res.Classification)
	}
	if res.PreviousPrice == nil || *res.PreviousPrice != 25000 {
		t.Errorf("previous price: got %v, want 25000", res.PreviousPrice)
	}

	rec, ok, err := store.Lookup(ctx, URLFingerprint("https://x/1"))
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v err=%v", ok, err)
	}
	if rec.Price != 23000 {
		t.Errorf("stored price: got %.2f, want 23000", rec.Price)
	}
	if !rec.FirstSeenAt.Equal(base) || !rec.LastUpdated.Equal(base.Add(time.Hour)) {
		t.Errorf("timestamps: first %v last %v", rec.FirstSeenAt, rec.LastUpdated)
	}

	again := r.Reconcile(ctx, src, []models.Candidate{teren("1", 23000)})
	if len(again.Notify) != 0 {
		t.Errorf("unchanged price re-notified: %+v", again.Notify)
	}
}

func TestReconcileEmptyBatch(t *testing.T) {
	store := storage.NewMemoryStore()
	src := newSource(t, store)
	out := NewReconciler(store, PolicyFields, newTestLogger()).Reconcile(context.Background(), src, nil)
	if len(out.Notify) != 0 || out.Summary.Considered != 0 {
		t.Errorf("empty batch: %+v", out)
	}
}

func TestReconcileStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := storage.NewMemoryStore()
	src := newSource(t, store)
	r := NewReconciler(store, PolicyFields, newTestLogger())

	first := r.Reconcile(ctx, src, []models.Candidate{teren("1", 100)})
	if first.Interrupted != nil || len(first.Notify) != 1 {
		t.Fatalf("first pass: interrupted=%v notify=%d", first.Interrupted, len(first.Notify))
	}

	cancel()
	out := r.Reconcile(ctx, src, []models.Candidate{teren("2", 200), teren("3", 300)})
	if !errors.Is(out.Interrupted, context.Canceled) {
		t.Errorf("Interrupted: got %v, want context.Canceled", out.Interrupted)
	}
	if len(out.Results) != 0 || out.Summary.Skipped != 0 {
		t.Errorf("candidates processed after cancel: %+v", out.Summary)
	}
}
