package images

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is the key/value store behind both cache tiers.
//
// Get never reports errors: a value that cannot be read is a miss. Set returns
// immediately; persistence happens in the background and is eventually durable.
// Callers that must not wait on disk call Get from their own goroutine, which is
// what the sessions and loaders in this package do.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(key string, value []byte)
}

// MemoryStore is a bounded, process-local Store with LRU eviction.
type MemoryStore struct {
	entries *lru.Cache[string, []byte]
}

// NewMemoryStore creates a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	return m.entries.Get(key)
}

func (m *MemoryStore) Set(key string, value []byte) {
	m.entries.Add(key, value)
}

// Len returns the number of entries currently held.
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

// TieredStore layers a MemoryStore over a DiskStore. Reads check memory first
// and promote disk hits; writes land in memory immediately and on disk from a
// background goroutine.
type TieredStore struct {
	memory  *MemoryStore
	disk    *DiskStore
	metrics *Metrics

	writes      sync.WaitGroup
	stopCleanup context.CancelFunc
}

// NewTieredStore creates a TieredStore. A nil disk keeps everything in memory.
// A nil metrics uses an unregistered set of counters.
func NewTieredStore(memoryEntries int, disk *DiskStore, metrics *Metrics) (*TieredStore, error) {
	memory, err := NewMemoryStore(memoryEntries)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &TieredStore{
		memory:      memory,
		disk:        disk,
		metrics:     metrics,
		stopCleanup: func() {},
	}, nil
}

// NewStoreFromConfig builds the process-wide store described by cfg.
func NewStoreFromConfig(cfg Config, metrics *Metrics) (*TieredStore, error) {
	var disk *DiskStore
	if cfg.CachePath != "" {
		var err error
		disk, err = NewDiskStore(cfg.CachePath, cfg.CacheMaxMB, cfg.CacheTTLDays)
		if err != nil {
			return nil, err
		}
	}
	return NewTieredStore(cfg.MemoryEntries, disk, metrics)
}

func (t *TieredStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := t.memory.Get(ctx, key); ok {
		return data, true
	}
	if t.disk == nil || ctx.Err() != nil {
		return nil, false
	}

	data, found, err := t.disk.Read(key)
	if err != nil {
		slog.Warn("[IMAGES] cache read error, treating as miss",
			"key", key,
			"error", err,
		)
		return nil, false
	}
	if !found {
		return nil, false
	}

	t.memory.Set(key, data)
	return data, true
}

func (t *TieredStore) Set(key string, value []byte) {
	t.memory.Set(key, value)
	if t.disk == nil {
		return
	}

	t.writes.Add(1)
	go func() {
		defer t.writes.Done()
		if err := t.disk.Write(key, value); err != nil {
			t.metrics.StoreWriteErrors.Inc()
			slog.Error("[IMAGES] async cache write failed",
				"key", key,
				"error", err,
			)
			return
		}
		slog.Debug("[IMAGES] persisted cache entry",
			"key", key,
			"size_bytes", len(value),
		)
	}()
}

// Flush blocks until every pending disk write has finished.
func (t *TieredStore) Flush() {
	t.writes.Wait()
}

// StartCleanup runs the disk tier's cleanup job every interval until Close.
func (t *TieredStore) StartCleanup(interval time.Duration) {
	if t.disk == nil {
		return
	}
	t.stopCleanup()
	t.stopCleanup = t.disk.StartCleanupJob(interval)
}

// Close stops background cleanup and waits for pending writes.
func (t *TieredStore) Close() {
	t.stopCleanup()
	t.Flush()
}
