package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// Loader produces the raw entries a Cache builds its snapshot from.
type Loader interface {
	Load(ctx context.Context) ([]Entry, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]Entry, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) ([]Entry, error) {
	return f(ctx)
}

// StoreLoader loads every entry held by a CatalogStore.
type StoreLoader struct {
	store CatalogStore
}

// NewStoreLoader creates a loader backed by store.
func NewStoreLoader(store CatalogStore) *StoreLoader {
	return &StoreLoader{store: store}
}

// Load lists all entries from the store.
func (l *StoreLoader) Load(ctx context.Context) ([]Entry, error) {
	list, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	entries := make([]Entry, 0, len(list))
	for _, e := range list {
		entries = append(entries, *e)
	}
	return entries, nil
}

// FileLoader reads a normalized catalog JSON file. It checks the configured
// paths in order and uses the first one that exists.
type FileLoader struct {
	paths []string
}

// NewFileLoader creates a loader over the candidate paths. Blank paths are ignored.
func NewFileLoader(paths ...string) *FileLoader {
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return &FileLoader{paths: clean}
}

// Paths returns the candidate paths in the order they are tried.
func (l *FileLoader) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Resolve returns the first candidate path that exists and is a regular file.
func (l *FileLoader) Resolve() (string, error) {
	for _, p := range l.paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrCatalogNotFound, strings.Join(l.paths, ", "))
}

// Load reads and decodes the resolved catalog file.
func (l *FileLoader) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.Resolve()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	entries, err := DecodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return entries, nil
}

// DecodeEntries accepts either a JSON array of entries or a JSON object keyed by
// code. In the object form the key is the entry's code, replacing any code
// inside the entry, and entries come back ordered by key.
func DecodeEntries(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty catalog document")
	}

	switch trimmed[0] {
	case '[':
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	case '{':
		var byCode map[string]Entry
		if err := json.Unmarshal(trimmed, &byCode); err != nil {
			return nil, err
		}
		codes := make([]string, 0, len(byCode))
		for code := range byCode {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		entries := make([]Entry, 0, len(byCode))
		for _, code := range codes {
			e := byCode[code]
			e.Code = code
			entries = append(entries, e)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("catalog document must be a JSON array or object")
	}
}
