package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/liamcoop/mbsrules/catalog"
	"github.com/liamcoop/mbsrules/internal/logger"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

// ErrImportRejected is returned by import when the store refused one or more entries.
var ErrImportRejected = errors.New("catalog entries rejected by the store")

// importReport lists the codes an import touched, by outcome.
type importReport struct {
	Added     []string        `json:"added"`
	Updated   []string        `json:"updated"`
	Unchanged []string        `json:"unchanged"`
	Deleted   []string        `json:"deleted"`
	Rejected  []catalog.Issue `json:"rejected"`
}

func importCmd() *cobra.Command {
	var (
		format      string
		databaseURL string
		dryRun      bool
		prune       bool
	)

	cmd := &cobra.Command{
		Use:   "import <input|->",
		Short: "Normalize a catalog and write it to the catalog store",
		Long: `import normalizes catalog data the same way normalize does, then adds new
codes to the PostgreSQL catalog store and updates codes whose content changed.
With --prune, stored codes missing from the input are deleted.

The database URL comes from --database-url or MBSRULES_DATABASE_URL.
--dry-run imports into an in-memory store instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			entries, _, err := normalizeInput(cmd, format, data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, databaseURL, dryRun)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := importEntries(ctx, store, entries, prune)
			if err != nil {
				return err
			}

			for _, issue := range report.Rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "rejected: %s\n", issue)
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d added, %d updated, %d unchanged, %d deleted, %d rejected\n",
				len(report.Added), len(report.Updated), len(report.Unchanged), len(report.Deleted), len(report.Rejected))

			if len(report.Rejected) > 0 {
				return fmt.Errorf("%w: %d of %d", ErrImportRejected, len(report.Rejected), len(entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "catalog", "Input format: catalog or mbs")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (default $MBSRULES_DATABASE_URL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Import into an in-memory store and report what would be stored")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete stored codes that are not in the input")
	return cmd
}

func openStore(ctx context.Context, databaseURL string, dryRun bool) (catalog.CatalogStore, func(), error) {
	if dryRun {
		return catalog.NewInMemoryCatalogStore(), func() {}, nil
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("MBSRULES_DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, nil, errors.New("database URL required: set --database-url or MBSRULES_DATABASE_URL")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return catalog.NewPostgresCatalogStore(db), func() { db.Close() }, nil
}

// importEntries writes entries to store. Entries the store rejects as invalid
// are reported and skipped; any other store error stops the import.
func importEntries(ctx context.Context, store catalog.CatalogStore, entries []catalog.Entry, prune bool) (importReport, error) {
	report := importReport{
		Added:     []string{},
		Updated:   []string{},
		Unchanged: []string{},
		Deleted:   []string{},
		Rejected:  []catalog.Issue{},
	}
	keep := make(map[string]struct{}, len(entries))

	for i := range entries {
		entry := entries[i].Clone()
		keep[entry.Code] = struct{}{}

		existing, err := store.Get(ctx, entry.Code)
		if err != nil && !errors.Is(err, catalog.ErrEntryNotFound) {
			return report, fmt.Errorf("failed to read entry %s: %w", entry.Code, err)
		}
		if existing != nil && sameContent(*existing, entry) {
			report.Unchanged = append(report.Unchanged, entry.Code)
			continue
		}

		if existing == nil {
			err = store.Add(ctx, &entry)
		} else {
			err = store.Update(ctx, &entry)
		}
		switch {
		case errors.Is(err, catalog.ErrInvalidEntry):
			report.Rejected = append(report.Rejected, catalog.Issue{Code: entry.Code, Message: err.Error()})
		case err != nil:
			return report, fmt.Errorf("failed to store entry %s: %w", entry.Code, err)
		case existing == nil:
			report.Added = append(report.Added, entry.Code)
		default:
			report.Updated = append(report.Updated, entry.Code)
		}
	}

	if prune {
		stored, err := store.List(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to list stored entries: %w", err)
		}
		for _, e := range stored {
			if _, ok := keep[e.Code]; ok {
				continue
			}
			if err := store.Delete(ctx, e.Code); err != nil && !errors.Is(err, catalog.ErrEntryNotFound) {
				return report, fmt.Errorf("failed to delete entry %s: %w", e.Code, err)
			}
			report.Deleted = append(report.Deleted, e.Code)
		}
	}

	logger.Debug("catalog import finished",
		"added", len(report.Added), "updated", len(report.Updated), "deleted", len(report.Deleted))
	return report, nil
}

// sameContent compares two entries ignoring their timestamps. Empty and nil
// collections compare equal.
func sameContent(a, b catalog.Entry) bool {
	a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	if a.Flags == nil {
		a.Flags = catalog.Flags{}
	}
	if b.Flags == nil {
		b.Flags = catalog.Flags{}
	}
	if a.MutuallyExclusiveWith == nil {
		a.MutuallyExclusiveWith = []string{}
	}
	if b.MutuallyExclusiveWith == nil {
		b.MutuallyExclusiveWith = []string{}
	}

	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
