package storage

import (
	"context"
	"fmt"

	"listing-watch/models"
)

// ListingStore is the durable mapping from fingerprint to listing, plus the
// source registry. Implementations assume a single writer.
type ListingStore interface {
	// GetOrCreateSource returns the source registered for baseURL, creating
	// it under name on first use.
	GetOrCreateSource(ctx context.Context, name, baseURL string) (*models.Source, error)
	// Lookup returns the record for fingerprint; ok is false when absent.
	Lookup(ctx context.Context, fingerprint string) (rec *models.ListingRecord, ok bool, err error)
	// Upsert inserts or conditionally updates one listing atomically.
	Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error)
	// ListBySource returns a source's listings ordered by first sighting.
	ListBySource(ctx context.Context, sourceID int64) ([]*models.ListingRecord, error)
	Close() error
}

// UpsertInput carries the fields written by Upsert.
type UpsertInput struct {
	Fingerprint string
	SourceID    int64
	URL         string
	Title       string
	Price       float64
	Currency    models.Currency
	ImageURL    string
	Location    string
}

// UpsertResult reports what Upsert did. Previous is the record as it was
// before the call, nil when Created.
type UpsertResult struct {
	Created      bool
	PriceChanged bool
	Previous     *models.ListingRecord
}

// StoreError wraps persistence failures.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
