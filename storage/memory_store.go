package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"listing-watch/models"
)

// MemoryStore keeps sources and listings in process memory. It backs
// STORE_BACKEND=memory dry runs and the tests.
type MemoryStore struct {
	mu sync.Mutex

	sources      map[int64]*models.Source
	sourceByURL  map[string]int64
	listings     map[string]*models.ListingRecord
	bySource     map[int64][]string
	nextSourceID int64
	nextID       int64

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:     make(map[int64]*models.Source),
		sourceByURL: make(map[string]int64),
		listings:    make(map[string]*models.ListingRecord),
		bySource:    make(map[int64][]string),
		now:         time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) GetOrCreateSource(ctx context.Context, name, baseURL string) (*models.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("get source", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.sourceByURL[baseURL]; ok {
		src := *m.sources[id]
		return &src, nil
	}

	m.nextSourceID++
	src := &models.Source{
		ID:        m.nextSourceID,
		Name:      name,
		BaseURL:   baseURL,
		CreatedAt: m.now().UTC(),
	}
	m.sources[src.ID] = src
	m.sourceByURL[baseURL] = src.ID

	out := *src
	return &out, nil
}

func (m *MemoryStore) Lookup(ctx context.Context, fingerprint string) (*models.ListingRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, storeErr("lookup", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.listings[fingerprint]
	if !ok {
		return nil, false, nil
	}
	return m.joined(rec), true, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("upsert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[in.SourceID]; !ok {
		return nil, storeErr("upsert: insert", fmt.Errorf("unknown source id %d", in.SourceID))
	}

	now := m.now().UTC()
	existing, ok := m.listings[in.Fingerprint]
	if !ok {
		m.nextID++
		m.listings[in.Fingerprint] = &models.ListingRecord{
			ID:          m.nextID,
			SourceID:    in.SourceID,
			Fingerprint: in.Fingerprint,
			URL:         in.URL,
			Title:       in.Title,
			Price:       in.Price,
			Currency:    in.Currency,
			ImageURL:    in.ImageURL,
			Location:    in.Location,
			FirstSeenAt: now,
			LastUpdated: now,
		}
		m.bySource[in.SourceID] = append(m.bySource[in.SourceID], in.Fingerprint)
		return &UpsertResult{Created: true}, nil
	}

	prev := m.joined(existing)
	if existing.Price == in.Price {
		return &UpsertResult{Previous: prev}, nil
	}

	existing.Title = in.Title
	existing.Price = in.Price
	existing.Currency = in.Currency
	existing.ImageURL = in.ImageURL
	existing.Location = in.Location
	existing.LastUpdated = now
	return &UpsertResult{PriceChanged: true, Previous: prev}, nil
}

func (m *MemoryStore) ListBySource(ctx context.Context, sourceID int64) ([]*models.ListingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list by source", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fps := m.bySource[sourceID]
	out := make([]*models.ListingRecord, 0, len(fps))
	for _, fp := range fps {
		out = append(out, m.joined(m.listings[fp]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
	})
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// joined returns a copy of rec with its source fields filled in.
func (m *MemoryStore) joined(rec *models.ListingRecord) *models.ListingRecord {
	out := *rec
	if src, ok := m.sources[rec.SourceID]; ok {
		out.SourceName = src.Name
		out.SourceBaseURL = src.BaseURL
	}
	return &out
}
