package catalog

import (
	"context"
	"sort"
	"time"
)

// Provider supplies the catalog to the rule core.
//
// Snapshot never returns nil and never fails: a provider that cannot load its
// source hands back an empty snapshot so that callers fail open.
type Provider interface {
	Snapshot(ctx context.Context) *Snapshot
}

// Snapshot is an immutable code -> Entry mapping. It is safe for concurrent
// reads and is never mutated after construction.
type Snapshot struct {
	entries  map[string]Entry
	codes    []string
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from the given entries. Later entries with a
// code already seen are ignored; entries with an empty code are dropped.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries:  make(map[string]Entry, len(entries)),
		codes:    make([]string, 0, len(entries)),
		loadedAt: time.Now(),
	}
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		if _, exists := s.entries[e.Code]; exists {
			continue
		}
		s.entries[e.Code] = e.Clone()
		s.codes = append(s.codes, e.Code)
	}
	sort.Strings(s.codes)
	return s
}

// EmptySnapshot returns a snapshot with no entries.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil)
}

// Lookup returns a copy of the entry for code.
func (s *Snapshot) Lookup(code string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.entries[code]
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Codes returns all codes in ascending order.
func (s *Snapshot) Codes() []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s.codes...)
}

// Entries returns copies of all entries ordered by code.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return []Entry{}
	}
	out := make([]Entry, 0, len(s.codes))
	for _, code := range s.codes {
		out = append(out, s.entries[code].Clone())
	}
	return out
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// StaticProvider serves a fixed snapshot. Useful for tests and offline tools.
type StaticProvider struct {
	snapshot *Snapshot
}

// NewStaticProvider wraps entries in a provider that never reloads.
func NewStaticProvider(entries []Entry) *StaticProvider {
	return &StaticProvider{snapshot: NewSnapshot(entries)}
}

// Snapshot returns the fixed snapshot.
func (p *StaticProvider) Snapshot(_ context.Context) *Snapshot {
	if p == nil || p.snapshot == nil {
		return EmptySnapshot()
	}
	return p.snapshot
}
