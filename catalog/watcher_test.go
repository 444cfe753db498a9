package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRefreshesOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"23","title":"Level B"}]`), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := DefaultCacheConfig()
	cfg.Logger = logger
	cache := NewCache(NewFileLoader(path), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.Equal(t, 1, cache.Snapshot(ctx).Len())

	w, err := NewWatcher(WatcherConfig{Path: path, DebounceDelay: 20 * time.Millisecond, Logger: logger}, cache)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Close()

	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"code":"23","title":"Level B"},{"code":"36","title":"Level C"}]`), 0o600))

	select {
	case err := <-w.refreshed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}

	assert.Equal(t, []string{"23", "36"}, cache.Snapshot(ctx).Codes())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	target := &refreshCounter{}
	w, err := NewWatcher(WatcherConfig{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, target)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case <-w.refreshed:
		t.Fatal("unrelated file should not trigger a refresh")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Zero(t, target.count())
}

func TestNewWatcherDefaults(t *testing.T) {
	w, err := NewWatcher(WatcherConfig{Path: "catalog.json"}, &refreshCounter{})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 250*time.Millisecond, w.config.DebounceDelay)
	assert.NotNil(t, w.logger)
}

type refreshCounter struct {
	n atomic.Int32
}

func (r *refreshCounter) Refresh(context.Context) error {
	r.n.Add(1)
	return nil
}

func (r *refreshCounter) count() int {
	return int(r.n.Load())
}
