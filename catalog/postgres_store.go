package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresCatalogStore implements CatalogStore backed by PostgreSQL
type PostgresCatalogStore struct {
	db *sql.DB
}

// NewPostgresCatalogStore creates a new PostgreSQL-backed CatalogStore
func NewPostgresCatalogStore(db *sql.DB) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

const selectEntryColumns = `
	SELECT code, title, fee, time_threshold, flags, mutually_exclusive_with,
	       conditions, reference_materials, created_at, updated_at
	FROM catalog_entries`

// Add inserts a new entry into the database
func (s *PostgresCatalogStore) Add(ctx context.Context, entry *Entry) error {
	if err := ValidateEntry(*entry); err != nil {
		return err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM catalog_entries WHERE code = $1)
	`, entry.Code).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check entry existence: %w", err)
	}
	if exists {
		return fmt.Errorf("entry %s: %w", entry.Code, ErrEntryExists)
	}

	flags, conditions, references, err := marshalEntryDocuments(entry)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_entries (code, title, fee, time_threshold, flags, mutually_exclusive_with,
		                             conditions, reference_materials, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.Code, entry.Title, entry.Fee, nullableFloat(entry.TimeThreshold), flags,
		pq.Array(nonNilStrings(entry.MutuallyExclusiveWith)), conditions, references,
		entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// Get retrieves an entry by code
func (s *PostgresCatalogStore) Get(ctx context.Context, code string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntryColumns+` WHERE code = $1`, code)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", code, ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return entry, nil
}

// List returns all entries ordered by code
func (s *PostgresCatalogStore) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntryColumns+` ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// Update modifies an existing entry
func (s *PostgresCatalogStore) Update(ctx context.Context, entry *Entry) error {
	if err := ValidateEntry(*entry); err != nil {
		return err
	}

	flags, conditions, references, err := marshalEntryDocuments(entry)
	if err != nil {
		return err
	}

	entry.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE catalog_entries
		SET title = $1, fee = $2, time_threshold = $3, flags = $4, mutually_exclusive_with = $5,
		    conditions = $6, reference_materials = $7, updated_at = $8
		WHERE code = $9
	`, entry.Title, entry.Fee, nullableFloat(entry.TimeThreshold), flags,
		pq.Array(nonNilStrings(entry.MutuallyExclusiveWith)), conditions, references,
		entry.UpdatedAt, entry.Code)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry %s: %w", entry.Code, ErrEntryNotFound)
	}

	return nil
}

// Delete removes an entry from the database
func (s *PostgresCatalogStore) Delete(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog_entries WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry %s: %w", code, ErrEntryNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry                         Entry
		threshold                     sql.NullFloat64
		flags, conditions, references []byte
		exclusions                    []string
	)
	err := row.Scan(
		&entry.Code,
		&entry.Title,
		&entry.Fee,
		&threshold,
		&flags,
		pq.Array(&exclusions),
		&conditions,
		&references,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if threshold.Valid {
		t := threshold.Float64
		entry.TimeThreshold = &t
	}
	entry.MutuallyExclusiveWith = nonNilStrings(exclusions)
	entry.Flags = Flags{}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &entry.Flags); err != nil {
			return nil, fmt.Errorf("invalid flags for %s: %w", entry.Code, err)
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &entry.Conditions); err != nil {
			return nil, fmt.Errorf("invalid conditions for %s: %w", entry.Code, err)
		}
	}
	if len(references) > 0 {
		if err := json.Unmarshal(references, &entry.References); err != nil {
			return nil, fmt.Errorf("invalid references for %s: %w", entry.Code, err)
		}
	}
	return &entry, nil
}

func marshalEntryDocuments(entry *Entry) (flags, conditions, references []byte, err error) {
	f := entry.Flags
	if f == nil {
		f = Flags{}
	}
	if flags, err = json.Marshal(f); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal flags: %w", err)
	}
	c := entry.Conditions
	if c == nil {
		c = []Condition{}
	}
	if conditions, err = json.Marshal(c); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	r := entry.References
	if r == nil {
		r = []Reference{}
	}
	if references, err = json.Marshal(r); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal references: %w", err)
	}
	return flags, conditions, references, nil
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
