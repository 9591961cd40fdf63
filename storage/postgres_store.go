package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"listing-watch/models"
	"listing-watch/utils"
)

// PostgresStore persists sources and listings in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore. Connection attempts are retried
// with back-off; any failure here is fatal for the run.
func NewPostgresStore(ctx context.Context, dsn string, attempts int, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: attempts, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, storeErr("connect", err)
	}

	ps := &PostgresStore{db: db, now: time.Now}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("migrate", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sources (
			id          SERIAL PRIMARY KEY,
			name        TEXT        NOT NULL,
			base_url    TEXT        NOT NULL UNIQUE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS listings (
			id              BIGSERIAL PRIMARY KEY,
			source_id       INTEGER          NOT NULL REFERENCES sources(id),
			fingerprint     VARCHAR(64)      NOT NULL UNIQUE,
			url             TEXT             NOT NULL,
			title           TEXT             NOT NULL,
			price           DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
			currency        VARCHAR(3)       NOT NULL,
			image_url       TEXT,
			location        TEXT,
			first_seen_at   TIMESTAMPTZ      NOT NULL,
			last_updated_at TIMESTAMPTZ      NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_source_id ON listings(source_id);
	`)
	return err
}

// GetOrCreateSource looks the source up by base URL and registers it when
// absent.
func (ps *PostgresStore) GetOrCreateSource(ctx context.Context, name, baseURL string) (*models.Source, error) {
	if _, err := ps.db.ExecContext(ctx, `
		INSERT INTO sources (name, base_url) VALUES ($1, $2)
		ON CONFLICT (base_url) DO NOTHING
	`, name, baseURL); err != nil {
		return nil, storeErr("create source", err)
	}

	src := &models.Source{}
	err := ps.db.QueryRowContext(ctx, `
		SELECT id, name, base_url, created_at FROM sources WHERE base_url = $1
	`, baseURL).Scan(&src.ID, &src.Name, &src.BaseURL, &src.CreatedAt)
	if err != nil {
		return nil, storeErr("get source", err)
	}
	return src, nil
}

const selectListing = `
	SELECT l.id, l.source_id, l.fingerprint, l.url, l.title, l.price, l.currency,
	       l.image_url, l.location, l.first_seen_at, l.last_updated_at,
	       s.name, s.base_url
	FROM listings l
	JOIN sources s ON l.source_id = s.id`

// Lookup returns the listing stored under fingerprint, joined with its source.
func (ps *PostgresStore) Lookup(ctx context.Context, fingerprint string) (*models.ListingRecord, bool, error) {
	rec, err := scanListing(ps.db.QueryRowContext(ctx, selectListing+` WHERE l.fingerprint = $1`, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr("lookup", err)
	}
	return rec, true, nil
}

// Upsert inserts the listing when its fingerprint is new. For a known
// fingerprint it rewrites the mutable fields only if the price differs.
// Everything happens in one transaction.
func (ps *PostgresStore) Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("upsert: begin", err)
	}
	defer tx.Rollback()

	prev, err := scanListing(tx.QueryRowContext(ctx,
		selectListing+` WHERE l.fingerprint = $1 FOR UPDATE OF l`, in.Fingerprint))
	now := ps.now().UTC()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO listings (source_id, fingerprint, url, title, price, currency,
			                      image_url, location, first_seen_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		`, in.SourceID, in.Fingerprint, in.URL, in.Title, in.Price, string(in.Currency),
			nullString(in.ImageURL), nullString(in.Location), now)
		if err != nil {
			return nil, storeErr("upsert: insert", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, storeErr("upsert: commit", err)
		}
		return &UpsertResult{Created: true}, nil

	case err != nil:
		return nil, storeErr("upsert: select", err)
	}

	if prev.Price == in.Price {
		return &UpsertResult{Previous: prev}, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings
		SET title = $2, price = $3, currency = $4, image_url = $5, location = $6, last_updated_at = $7
		WHERE fingerprint = $1
	`, in.Fingerprint, in.Title, in.Price, string(in.Currency),
		nullString(in.ImageURL), nullString(in.Location), now)
	if err != nil {
		return nil, storeErr("upsert: update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("upsert: commit", err)
	}
	return &UpsertResult{PriceChanged: true, Previous: prev}, nil
}

// ListBySource retrieves every listing of a source, oldest first.
func (ps *PostgresStore) ListBySource(ctx context.Context, sourceID int64) ([]*models.ListingRecord, error) {
	rows, err := ps.db.QueryContext(ctx,
		selectListing+` WHERE l.source_id = $1 ORDER BY l.first_seen_at, l.id`, sourceID)
	if err != nil {
		return nil, storeErr("list by source", err)
	}
	defer rows.Close()

	var listings []*models.ListingRecord
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, storeErr("list by source: scan", err)
		}
		listings = append(listings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list by source", err)
	}
	return listings, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.ListingRecord, error) {
	var (
		rec      models.ListingRecord
		currency string
		image    sql.NullString
		location sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.SourceID, &rec.Fingerprint, &rec.URL, &rec.Title, &rec.Price, &currency,
		&image, &location, &rec.FirstSeenAt, &rec.LastUpdated,
		&rec.SourceName, &rec.SourceBaseURL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	rec.Currency = models.Currency(currency)
	rec.ImageURL = image.String
	rec.Location = location.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
