package services

import (
	"context"
	"errors"

	"listing-watch/models"
	"listing-watch/storage"
	"listing-watch/utils"
)

var (
	errNoTitle = errors.New("missing title")
	errNoURL   = errors.New("missing url")
)

// Outcome is the result of one reconciliation pass.
type Outcome struct {
	// Results holds one entry per candidate, in input order.
	Results []models.ReconciliationResult
	// Notify holds the NEW and PRICE_CHANGED results, in input order.
	Notify  []models.ReconciliationResult
	Summary models.RunSummary
	// Interrupted is set when ctx ended before every candidate was
	// processed. Results and Notify then cover the processed prefix only.
	Interrupted error
}

// Reconciler classifies scraped candidates against the store and records
// the new ones.
type Reconciler struct {
	store  storage.ListingStore
	policy IdentityPolicy
	logger *utils.Logger
}

// NewReconciler creates a Reconciler over store using policy for identity.
func NewReconciler(store storage.ListingStore, policy IdentityPolicy, logger *utils.Logger) *Reconciler {
	return &Reconciler{store: store, policy: policy, logger: logger}
}

// Reconcile processes candidates one by one. Each candidate's write is its
// own atomic unit; a failure on one candidate is logged and the pass moves
// on. Once ctx is done no further candidate is started. With PolicyFields a known fingerprint implies an identical price, so
// only NEW and UNCHANGED occur; PolicyURL makes PRICE_CHANGED reachable.
func (r *Reconciler) Reconcile(ctx context.Context, source models.Source, candidates []models.Candidate) *Outcome {
	out := &Outcome{
		Results: make([]models.ReconciliationResult, 0, len(candidates)),
		Summary: models.RunSummary{SourceName: source.Name, Considered: len(candidates)},
	}

	if len(candidates) == 0 {
		r.logger.Info("[reconcile] No candidates for %s", source.Name)
		return out
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			out.Interrupted = err
			r.logger.Warn("[reconcile] Interrupted after %d of %d candidates: %v", i, len(candidates), err)
			break
		}
		res := r.reconcileOne(ctx, source, i, c)
		out.Results = append(out.Results, res)

		switch res.Classification {
		case models.ClassNew:
			out.Summary.New++
			out.Notify = append(out.Notify, res)
			r.logger.Info("[reconcile] ✓ Listing #%d: %s", len(out.Notify), c.Title)
		case models.ClassPriceChanged:
			out.Summary.PriceChanged++
			out.Notify = append(out.Notify, res)
			r.logger.Info("[reconcile] ✓ Listing #%d: %s (price %.2f → %.2f %s)",
				len(out.Notify), c.Title, *res.PreviousPrice, c.Price, c.Currency)
		case models.ClassUnchanged:
			out.Summary.Unchanged++
		case models.ClassSkipped:
			if errors.Is(res.Err, errNoTitle) || errors.Is(res.Err, errNoURL) {
				out.Summary.Excluded++
			} else {
				out.Summary.Skipped++
			}
		}
	}

	out.Summary.Notified = len(out.Notify)
	r.logger.Info("[reconcile] Total listings found: %d | new: %d | price changed: %d | unchanged: %d | skipped: %d",
		out.Summary.Considered, out.Summary.New, out.Summary.PriceChanged, out.Summary.Unchanged,
		out.Summary.Skipped+out.Summary.Excluded)
	return out
}

func (r *Reconciler) reconcileOne(ctx context.Context, source models.Source, idx int, c models.Candidate) models.ReconciliationResult {
	res := models.ReconciliationResult{Candidate: c, Classification: models.ClassSkipped}

	switch {
	case c.Title == "":
		res.Err = &ExtractionError{Index: idx, Field: "title", Err: errNoTitle}
	case c.URL == "":
		res.Err = &ExtractionError{Index: idx, Field: "url", Err: errNoURL}
	}
	if res.Err != nil {
		r.logger.Warn("[reconcile] Excluding candidate: %v", res.Err)
		return res
	}

	res.Fingerprint = r.policy.Fingerprint(c)
	log := r.logger.With("fingerprint", res.Fingerprint, "url", c.URL)

	existing, found, err := r.store.Lookup(ctx, res.Fingerprint)
	if err != nil {
		res.Err = err
		log.Error("[reconcile] Lookup failed, skipping %s: %v", c.URL, err)
		return res
	}

	if found && existing.Price == c.Price {
		res.Classification = models.ClassUnchanged
		log.Debug("[reconcile] Unchanged: %s", c.Title)
		return res
	}

	up, err := r.store.Upsert(ctx, storage.UpsertInput{
		Fingerprint: res.Fingerprint,
		SourceID:    source.ID,
		URL:         c.URL,
		Title:       c.Title,
		Price:       c.Price,
		Currency:    c.Currency,
		ImageURL:    c.ImageURL,
		Location:    c.Location,
	})
	if err != nil {
		res.Err = err
		log.Error("[reconcile] Upsert failed, skipping %s: %v", c.URL, err)
		return res
	}

	switch {
	case up.Created:
		res.Classification = models.ClassNew
		log.Debug("[reconcile] Added new listing %s", res.Fingerprint)
	case up.PriceChanged:
		prev := up.Previous.Price
		res.Classification = models.ClassPriceChanged
		res.PreviousPrice = &prev
		log.Info("[reconcile] Updated listing %s (price changed from %.2f to %.2f)", res.Fingerprint, prev, c.Price)
	default:
		res.Classification = models.ClassUnchanged
	}
	return res
}
