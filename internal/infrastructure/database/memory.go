package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/core/services/upsert"
)

// MemoryStore is a process-local document store with the same lookup
// semantics as PostgresStore. Documents are stored in their encoded form,
// so values read back look exactly as they would from Postgres.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Collection returns the named collection, creating it on first use
func (s *MemoryStore) Collection(ctx context.Context, name string) (upsert.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{name: name, indexes: make(map[string]bool)}
		s.collections[name] = c
	}
	return c, nil
}

// Count returns the number of documents in name
func (s *MemoryStore) Count(name string) int {
	s.mu.Lock()
	c, ok := s.collections[name]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Records returns a snapshot of every document in name, in insertion order
func (s *MemoryStore) Records(name string) []domain.Record {
	s.mu.Lock()
	c, ok := s.collections[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]domain.Record, 0, len(c.docs))
	for _, doc := range c.docs {
		if record, err := doc.Record(); err == nil {
			records = append(records, record)
		}
	}
	return records
}

// Collections lists the names of the collections created so far
func (s *MemoryStore) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryCollection struct {
	mu      sync.Mutex
	name    string
	docs    []domain.Document
	indexes map[string]bool
}

func (c *memoryCollection) Name() string {
	return c.name
}

func (c *memoryCollection) EnsureIndex(ctx context.Context, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes[field] = true
	return nil
}

func (c *memoryCollection) Indexes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := make([]string, 0, len(c.indexes))
	for field := range c.indexes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// matches compares the string form of the stored field with key, the
// equivalent of body ->> field = key
func matches(record domain.Record, field, key string) bool {
	v, ok := record[field]
	if !ok {
		return false
	}
	s, err := domain.KeyString(v)
	return err == nil && s == key
}

func (c *memoryCollection) FindBy(ctx context.Context, field string, value any) ([]domain.Record, error) {
	key, err := domain.KeyString(value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var found []domain.Record
	for _, doc := range c.docs {
		record, err := doc.Record()
		if err != nil {
			return nil, err
		}
		if matches(record, field, key) {
			found = append(found, record)
		}
	}
	return found, nil
}

func (c *memoryCollection) DeleteBy(ctx context.Context, field string, value any) (int64, error) {
	key, err := domain.KeyString(value)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]domain.Document, 0, len(c.docs))
	var deleted int64
	for _, doc := range c.docs {
		record, err := doc.Record()
		if err != nil {
			return 0, err
		}
		if matches(record, field, key) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return deleted, nil
}

func (c *memoryCollection) InsertMany(ctx context.Context, records []domain.Record) ([]string, error) {
	docs := make([]domain.Document, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		doc, err := domain.NewDocument(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
	return ids, nil
}
