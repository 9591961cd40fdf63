package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"listing-watch/config"
	"listing-watch/models"
	"listing-watch/notify"
	"listing-watch/scraper"
	"listing-watch/storage"
	"listing-watch/utils"
)

// Pipeline runs one reconciliation pass for a single source:
// fetch, parse, extract, reconcile, notify.
type Pipeline struct {
	Site      config.Site
	Fetcher   scraper.PageFetcher
	Store     storage.ListingStore
	Notifier  notify.Notifier
	Recipient string
	Policy    IdentityPolicy
	// SnapshotPath, when set, receives a CSV of the pass's candidates.
	SnapshotPath string
	Logger       *utils.Logger
	// Out receives the printed report; nil means stdout.
	Out io.Writer
}

// Run executes the pass. Errors returned are fatal for the run: a source
// that cannot be registered, or a page that cannot be fetched or parsed.
// In both cases the store is left untouched. A pass cancelled during
// reconciliation returns its partial summary together with ctx's error. Per-listing and delivery
// failures are logged and reflected in the summary instead.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	runID := uuid.NewString()
	log := p.Logger.With("run_id", runID, "source", p.Site.Name)

	log.Info("=== Starting %s scraper ===", p.Site.Name)
	log.Info("URL: %s", p.Site.URL)

	source, err := p.Store.GetOrCreateSource(ctx, p.Site.Name, p.Site.URL)
	if err != nil {
		return nil, fmt.Errorf("register source %s: %w", p.Site.Name, err)
	}

	raw, err := p.Fetcher.Fetch(ctx, p.Site.URL, p.Site.Selectors)
	if err != nil {
		var fe *scraper.FetchError
		if !errors.As(err, &fe) {
			err = &scraper.FetchError{URL: p.Site.URL, Err: err}
		}
		return nil, err
	}

	doc, err := scraper.ParseHTML(raw)
	if err != nil {
		return nil, &scraper.FetchError{URL: p.Site.URL, Err: err}
	}

	candidates, extractErrs := NewExtractor(log).Extract(doc, p.Site, p.Site.URL)

	reconciler := NewReconciler(p.Store, p.Policy, log)
	outcome := reconciler.Reconcile(ctx, *source, candidates)
	summary := outcome.Summary
	summary.RunID = runID
	summary.Considered += len(extractErrs)
	summary.Excluded += len(extractErrs)

	p.writeSnapshot(log, outcome.Results)

	// Listings stored before an interruption are still announced, otherwise
	// the next pass would see them as unchanged and never notify them.
	finishCtx := ctx
	if ctx.Err() != nil {
		finishCtx = context.WithoutCancel(ctx)
	}

	if len(outcome.Notify) > 0 {
		if err := p.notify(finishCtx, log, outcome.Notify); err != nil {
			log.Error("[notify] %v", err)
			summary.DeliveryError = err.Error()
		}
	} else {
		log.Info("No new listings found")
	}

	stored := 0
	if listings, err := p.Store.ListBySource(finishCtx, source.ID); err != nil {
		log.Warn("Could not count stored listings: %v", err)
	} else {
		stored = len(listings)
	}
	summary.StoredTotal = stored

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	reports := NewReportService(log)
	reports.Print(out, reports.Generate(summary, outcome.Notify, stored))

	if outcome.Interrupted != nil {
		return &summary, fmt.Errorf("pass interrupted after %d of %d candidates: %w",
			len(outcome.Results), len(candidates), outcome.Interrupted)
	}
	return &summary, nil
}

func (p *Pipeline) notify(ctx context.Context, log *utils.Logger, items []models.ReconciliationResult) error {
	subject, body, err := FormatDigest(p.Site.Name, items)
	if err != nil {
		return err
	}
	if err := p.Notifier.Deliver(ctx, notify.Message{
		Subject:   subject,
		HTMLBody:  body,
		Recipient: p.Recipient,
	}); err != nil {
		return err
	}
	log.Info("Sent email with %d new listings", len(items))
	return nil
}

func (p *Pipeline) writeSnapshot(log *utils.Logger, results []models.ReconciliationResult) {
	if p.SnapshotPath == "" {
		return
	}
	w, err := storage.NewCSVWriter(p.SnapshotPath)
	if err != nil {
		log.Warn("Snapshot disabled for this run: %v", err)
		return
	}
	defer w.Close()

	if err := w.WriteResults(p.Site.Name, results); err != nil {
		log.Warn("Snapshot write failed: %v", err)
		return
	}
	log.Debug("Snapshot saved to %s", p.SnapshotPath)
}
