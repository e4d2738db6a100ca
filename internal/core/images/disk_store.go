package images

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	// ErrEmptyKey is returned when a cache key is empty
	ErrEmptyKey = errors.New("cache key is empty")
	// ErrInvalidCacheBasePath is returned when the cache base path is empty
	ErrInvalidCacheBasePath = errors.New("cache base path cannot be empty")
	// ErrInvalidCacheMaxSize is returned when the size limit is not positive
	ErrInvalidCacheMaxSize = errors.New("cache max size must be positive")
)

const tmpSuffix = ".tmp"

// keyPrefix names disk entries by the CIDv1 of their key, which gives every key
// a fixed-length, filesystem-safe name regardless of what characters it holds.
var keyPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// DiskStore keeps one file per key on the local filesystem.
// Layout: {basePath}/{shard}/{cid} where cid is the CIDv1 of the key and shard
// is its last two characters.
type DiskStore struct {
	basePath     string
	maxSizeBytes int64
	ttlDays      int
}

// NewDiskStore creates a DiskStore rooted at basePath.
// ttlDays of 0 disables TTL-based cleanup (only LRU eviction applies).
func NewDiskStore(basePath string, maxSizeMB int, ttlDays int) (*DiskStore, error) {
	if basePath == "" {
		return nil, ErrInvalidCacheBasePath
	}
	if maxSizeMB <= 0 {
		return nil, ErrInvalidCacheMaxSize
	}
	if ttlDays < 0 {
		return nil, ErrInvalidCacheTTL
	}
	return &DiskStore{
		basePath:     basePath,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
		ttlDays:      ttlDays,
	}, nil
}

// ContentID returns the CIDv1 string naming key. It is stable across
// processes, so it also serves as an HTTP entity tag for the value under key.
func ContentID(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	c, err := keyPrefix.Sum([]byte(key))
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// path returns the file holding key.
func (d *DiskStore) path(key string) (string, error) {
	name, err := ContentID(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.basePath, name[len(name)-2:], name), nil
}

// Read returns the bytes stored under key.
// If the key is not present, returns (nil, false, nil).
// Updates the file's modification time on access for LRU tracking.
func (d *DiskStore) Read(key string) ([]byte, bool, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	now := time.Now()
	if chtimesErr := os.Chtimes(path, now, now); chtimesErr != nil {
		slog.Warn("[IMAGES] failed to update mtime for LRU tracking",
			"path", path,
			"error", chtimesErr,
		)
	}

	return data, true, nil
}

// Write stores data under key, replacing any previous value.
// The file is written to a temporary name and renamed into place so readers
// never observe a partial entry.
func (d *DiskStore) Write(key string, data []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*"+tmpSuffix)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Remove deletes the entry for key. Removing a missing key is not an error.
func (d *DiskStore) Remove(key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// diskEntry represents a cached file with its metadata.
type diskEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// scan walks the cache directory and returns all entries.
// In-progress temporary files are skipped.
func (d *DiskStore) scan() ([]diskEntry, int64, error) {
	var entries []diskEntry
	var totalSize int64

	err := filepath.WalkDir(d.basePath, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || strings.HasSuffix(path, tmpSuffix) {
			return nil
		}

		info, err := de.Info()
		if err != nil {
			slog.Warn("[IMAGES] failed to stat file during cache scan, cache size may be inaccurate",
				"path", path,
				"error", err,
			)
			return nil
		}

		entries = append(entries, diskEntry{
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		totalSize += info.Size()
		return nil
	})

	if err != nil && !os.IsNotExist(err) {
		return nil, 0, err
	}

	return entries, totalSize, nil
}

// Size returns the current disk usage of the store in bytes.
func (d *DiskStore) Size() (int64, error) {
	_, total, err := d.scan()
	return total, err
}

// EvictLRU removes the least recently used entries until the store is under its
// size limit. Returns the number of entries removed.
func (d *DiskStore) EvictLRU() (int, error) {
	entries, totalSize, err := d.scan()
	if err != nil {
		return 0, err
	}
	if totalSize <= d.maxSizeBytes {
		return 0, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})

	removed := 0
	for _, entry := range entries {
		if totalSize <= d.maxSizeBytes {
			break
		}

		if err := os.Remove(entry.path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("[IMAGES] failed to remove cache entry during LRU eviction",
					"path", entry.path,
					"error", err,
				)
			}
			continue
		}

		totalSize -= entry.size
		removed++
	}

	if removed > 0 {
		slog.Info("[IMAGES] LRU eviction completed",
			"entries_removed", removed,
			"new_size_bytes", totalSize,
			"max_size_bytes", d.maxSizeBytes,
		)
	}

	return removed, nil
}

// CleanExpired removes entries older than the configured TTL.
// If TTL is 0 (disabled), returns 0 without scanning.
func (d *DiskStore) CleanExpired() (int, error) {
	if d.ttlDays <= 0 {
		return 0, nil
	}

	entries, _, err := d.scan()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -d.ttlDays)
	removed := 0

	for _, entry := range entries {
		if entry.modTime.After(cutoff) {
			continue
		}
		if err := os.Remove(entry.path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("[IMAGES] failed to remove expired cache entry",
					"path", entry.path,
					"mod_time", entry.modTime,
					"error", err,
				)
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("[IMAGES] TTL cleanup completed",
			"entries_removed", removed,
			"ttl_days", d.ttlDays,
		)
	}

	return removed, nil
}

// Cleanup runs TTL cleanup first, then LRU eviction if still over the limit.
// Returns the total number of entries removed.
func (d *DiskStore) Cleanup() (int, error) {
	ttlRemoved, err := d.CleanExpired()
	if err != nil {
		return 0, err
	}

	lruRemoved, err := d.EvictLRU()
	if err != nil {
		return ttlRemoved, err
	}

	return ttlRemoved + lruRemoved, nil
}

// cleanEmptyDirs removes shard directories left empty by cleanup.
func (d *DiskStore) cleanEmptyDirs() {
	shards, err := os.ReadDir(d.basePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("[IMAGES] failed to read cache directory during cleanup",
				"path", d.basePath,
				"error", err,
			)
		}
		return
	}

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		dir := filepath.Join(d.basePath, shard.Name())
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			slog.Warn("[IMAGES] failed to remove empty directory",
				"path", dir,
				"error", err,
			)
		}
	}
}

// StartCleanupJob starts a background goroutine that periodically runs Cleanup.
// Returns a cancel function that should be called during graceful shutdown.
// If interval is 0 or negative, no job is started and the cancel function is a no-op.
func (d *DiskStore) StartCleanupJob(interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		slog.Info("[IMAGES] cache cleanup job disabled (interval=0)")
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("[IMAGES] CRITICAL: cache cleanup job panicked",
					"panic", r,
				)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("[IMAGES] cache cleanup job started",
			"interval", interval,
			"ttl_days", d.ttlDays,
			"max_size_bytes", d.maxSizeBytes,
		)

		for {
			select {
			case <-ctx.Done():
				slog.Info("[IMAGES] cache cleanup job stopped")
				return
			case <-ticker.C:
				removed, err := d.Cleanup()
				if err != nil {
					slog.Error("[IMAGES] cache cleanup error", "error", err)
					continue
				}
				if removed > 0 {
					d.cleanEmptyDirs()
					slog.Info("[IMAGES] cache cleanup completed", "entries_removed", removed)
				}
			}
		}
	}()

	return cancel
}
