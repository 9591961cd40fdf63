package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"listing-watch/models"
)

// CSVWriter writes the candidates of the latest pass, with their
// fingerprint and classification, to a CSV file.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"source", "classification", "fingerprint", "title", "raw_price", "price", "currency",
		"url", "image_url", "location", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteResults appends one row per reconciled candidate.
func (c *CSVWriter) WriteResults(source string, results []models.ReconciliationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range results {
		l := r.Candidate
		row := []string{
			source,
			string(r.Classification),
			r.Fingerprint,
			l.Title,
			l.RawPrice,
			strconv.FormatFloat(l.Price, 'f', -1, 64),
			string(l.Currency),
			l.URL,
			l.ImageURL,
			l.Location,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
