package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Load outcomes reported through CacheConfig.OnLoad.
const (
	LoadResultSuccess = "success"
	LoadResultFailure = "failure"
)

// LoadEvent describes one completed catalog load.
type LoadEvent struct {
	Result   string
	Entries  int
	Issues   int
	Duration time.Duration
	Err      error
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for a loaded snapshot.
	// Set to 0 for no expiration (load once, refresh only on request).
	TTL time.Duration

	// LoadTimeout bounds a single load. Zero means no timeout.
	LoadTimeout time.Duration

	// Logger receives load failures and normalization issues. Defaults to slog.Default().
	Logger *slog.Logger

	// OnLoad, when set, is called after every load attempt.
	OnLoad func(LoadEvent)
}

// DefaultCacheConfig returns sensible defaults for catalog caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:         0, // No TTL - load once, explicit refresh only
		LoadTimeout: 30 * time.Second,
	}
}

type cacheState struct {
	snapshot *Snapshot
	loadedAt time.Time
}

// Cache is a Provider that loads the catalog lazily, at most once, and then
// serves the same immutable snapshot to every caller until Refresh (or TTL
// expiry) replaces it.
//
// A failed load never surfaces to Snapshot callers: the first failure yields an
// empty snapshot, a failed reload keeps the previous one.
type Cache struct {
	loader Loader
	config CacheConfig
	logger *slog.Logger

	mu    sync.Mutex // serializes loads
	state atomic.Pointer[cacheState]
}

// NewCache creates a cache over loader.
func NewCache(loader Loader, config CacheConfig) *Cache {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		loader: loader,
		config: config,
		logger: logger,
	}
}

// Snapshot returns the current snapshot, loading it on first use.
func (c *Cache) Snapshot(ctx context.Context) *Snapshot {
	if st := c.state.Load(); st != nil && !c.expired(st) {
		return st.snapshot
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have finished loading while we waited.
	prev := c.state.Load()
	if prev != nil && !c.expired(prev) {
		return prev.snapshot
	}

	snapshot, err := c.load(ctx)
	if err != nil {
		if prev != nil {
			c.logger.Warn("catalog reload failed, keeping previous snapshot",
				"error", err, "entries", prev.snapshot.Len())
			snapshot = prev.snapshot
		} else {
			c.logger.Warn("catalog load failed, continuing with empty catalog", "error", err)
			snapshot = EmptySnapshot()
		}
	}

	c.state.Store(&cacheState{snapshot: snapshot, loadedAt: time.Now()})
	return snapshot
}

// Refresh reloads the catalog now. On success the new snapshot replaces the
// old one atomically; on failure the current snapshot is kept and the error
// is returned.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.state.Store(&cacheState{snapshot: snapshot, loadedAt: time.Now()})
	return nil
}

func (c *Cache) expired(st *cacheState) bool {
	return c.config.TTL > 0 && time.Since(st.loadedAt) > c.config.TTL
}

// load must be called with c.mu held.
func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	// A cancelled request must not poison the process-wide snapshot.
	ctx = context.WithoutCancel(ctx)
	if c.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.LoadTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.loader.Load(ctx)
	if err != nil {
		c.report(LoadEvent{Result: LoadResultFailure, Duration: time.Since(start), Err: err})
		return nil, err
	}

	entries, issues := Normalize(raw)
	for _, issue := range issues {
		c.logger.Debug("catalog normalization issue", "code", issue.Code, "issue", issue.Message)
	}
	if len(issues) > 0 {
		c.logger.Warn("catalog normalized with corrections", "issues", len(issues))
	}

	snapshot := NewSnapshot(entries)
	c.logger.Info("catalog loaded", "entries", snapshot.Len(), "duration", time.Since(start).String())
	c.report(LoadEvent{
		Result:   LoadResultSuccess,
		Entries:  snapshot.Len(),
		Issues:   len(issues),
		Duration: time.Since(start),
	})
	return snapshot, nil
}

func (c *Cache) report(ev LoadEvent) {
	if c.config.OnLoad != nil {
		c.config.OnLoad(ev)
	}
}
