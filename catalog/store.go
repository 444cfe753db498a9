package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CatalogStore manages persistence of catalog entries.
type CatalogStore interface {
	// Add a new entry
	Add(ctx context.Context, entry *Entry) error

	// Get an entry by code
	Get(ctx context.Context, code string) (*Entry, error)

	// List all entries ordered by code
	List(ctx context.Context) ([]*Entry, error)

	// Update an existing entry
	Update(ctx context.Context, entry *Entry) error

	// Delete an entry
	Delete(ctx context.Context, code string) error
}

// InMemoryCatalogStore implements CatalogStore using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryCatalogStore struct {
	entries map[string]*Entry
	mu      sync.RWMutex
}

// NewInMemoryCatalogStore creates a new in-memory catalog store
func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		entries: make(map[string]*Entry),
	}
}

// Add adds a new entry to the store.
// Codes are unique; CreatedAt and UpdatedAt are set here.
func (s *InMemoryCatalogStore) Add(_ context.Context, entry *Entry) error {
	if err := ValidateEntry(*entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Code]; exists {
		return fmt.Errorf("entry %s: %w", entry.Code, ErrEntryExists)
	}

	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	stored := entry.Clone()
	s.entries[entry.Code] = &stored
	return nil
}

// Get retrieves an entry by code
func (s *InMemoryCatalogStore) Get(_ context.Context, code string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[code]
	if !exists {
		return nil, fmt.Errorf("entry %s: %w", code, ErrEntryNotFound)
	}
	out := entry.Clone()
	return &out, nil
}

// List returns all entries ordered by code
func (s *InMemoryCatalogStore) List(_ context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out := entry.Clone()
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}

// Update replaces an existing entry, preserving CreatedAt
func (s *InMemoryCatalogStore) Update(_ context.Context, entry *Entry) error {
	if err := ValidateEntry(*entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.entries[entry.Code]
	if !exists {
		return fmt.Errorf("entry %s: %w", entry.Code, ErrEntryNotFound)
	}

	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = time.Now()
	stored := entry.Clone()
	s.entries[entry.Code] = &stored
	return nil
}

// Delete removes an entry from the store
func (s *InMemoryCatalogStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[code]; !exists {
		return fmt.Errorf("entry %s: %w", code, ErrEntryNotFound)
	}

	delete(s.entries, code)
	return nil
}
