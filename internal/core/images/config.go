package images

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config validation errors
var (
	// ErrInvalidCacheMaxMB is returned when CacheMaxMB is not positive
	ErrInvalidCacheMaxMB = errors.New("CacheMaxMB must be positive")
	// ErrInvalidMemoryEntries is returned when MemoryEntries is not positive
	ErrInvalidMemoryEntries = errors.New("MemoryEntries must be positive")
	// ErrInvalidFetchTimeout is returned when FetchTimeout is not positive
	ErrInvalidFetchTimeout = errors.New("FetchTimeout must be positive")
	// ErrInvalidMaxSourceSize is returned when MaxSourceSizeMB is not positive
	ErrInvalidMaxSourceSize = errors.New("MaxSourceSizeMB must be positive")
	// ErrInvalidCacheTTL is returned when CacheTTLDays is negative
	ErrInvalidCacheTTL = errors.New("CacheTTLDays cannot be negative")
	// ErrInvalidDisplayScale is returned when DisplayScale is not positive
	ErrInvalidDisplayScale = errors.New("DisplayScale must be positive")
)

// Config holds the configuration for the image pipeline.
type Config struct {
	// CachePath is the directory holding the persistent cache.
	// Empty keeps the cache in memory only.
	CachePath string

	// CacheMaxMB is the size the disk cache is trimmed back to by cleanup.
	CacheMaxMB int

	// CacheTTLDays is the maximum age in days for disk entries.
	// Set to 0 to disable TTL-based cleanup (only LRU eviction applies).
	CacheTTLDays int

	// CleanupInterval is how often to run disk cache cleanup.
	// Set to 0 to disable background cleanup.
	CleanupInterval time.Duration

	// MemoryEntries is the number of entries held by the in-memory tier.
	MemoryEntries int

	// FetchTimeout is the maximum time allowed for one image download.
	FetchTimeout time.Duration

	// MaxSourceSizeMB is the maximum allowed size for source images in megabytes.
	MaxSourceSizeMB int

	// DisplayScale is the device pixel scale used by loaders for scaled requests.
	DisplayScale float64

	// AllowedHosts restricts source URLs to these hosts. Empty allows any host.
	AllowedHosts []string
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.CacheMaxMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheMaxMB, c.CacheMaxMB)
	}
	if c.MemoryEntries <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMemoryEntries, c.MemoryEntries)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	if c.MaxSourceSizeMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxSourceSize, c.MaxSourceSizeMB)
	}
	if c.CacheTTLDays < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCacheTTL, c.CacheTTLDays)
	}
	if c.DisplayScale <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDisplayScale, c.DisplayScale)
	}
	return nil
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		CachePath:       "/var/cache/verygoods/images",
		CacheMaxMB:      2048,
		CacheTTLDays:    30,
		CleanupInterval: 1 * time.Hour,
		MemoryEntries:   512,
		FetchTimeout:    30 * time.Second,
		MaxSourceSizeMB: 10,
		DisplayScale:    2,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Uses defaults for any missing or invalid environment variables.
//
// Environment variables:
//   - IMAGES_CACHE_PATH: disk cache directory, "-" for memory only (default: "/var/cache/verygoods/images")
//   - IMAGES_CACHE_MAX_MB: disk cache size limit in MB (default: 2048)
//   - IMAGES_CACHE_TTL_DAYS: max age for disk entries in days, 0 to disable (default: 30)
//   - IMAGES_CLEANUP_INTERVAL_MINUTES: cleanup job interval in minutes, 0 to disable (default: 60)
//   - IMAGES_MEMORY_ENTRIES: in-memory tier capacity (default: 512)
//   - IMAGES_FETCH_TIMEOUT_SECONDS: download timeout in seconds (default: 30)
//   - IMAGES_MAX_SOURCE_SIZE_MB: max source image size in MB (default: 10)
//   - IMAGES_DISPLAY_SCALE: device pixel scale for loaders (default: 2)
//   - IMAGES_ALLOWED_HOSTS: comma-separated host allowlist (default: any host)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("IMAGES_CACHE_PATH"); v != "" {
		if v == "-" {
			cfg.CachePath = ""
		} else {
			cfg.CachePath = v
		}
	}

	cfg.CacheMaxMB = envInt("IMAGES_CACHE_MAX_MB", cfg.CacheMaxMB, 1)
	cfg.CacheTTLDays = envInt("IMAGES_CACHE_TTL_DAYS", cfg.CacheTTLDays, 0)
	cfg.MemoryEntries = envInt("IMAGES_MEMORY_ENTRIES", cfg.MemoryEntries, 1)
	cfg.MaxSourceSizeMB = envInt("IMAGES_MAX_SOURCE_SIZE_MB", cfg.MaxSourceSizeMB, 1)

	minutes := envInt("IMAGES_CLEANUP_INTERVAL_MINUTES", int(cfg.CleanupInterval.Minutes()), 0)
	cfg.CleanupInterval = time.Duration(minutes) * time.Minute

	seconds := envInt("IMAGES_FETCH_TIMEOUT_SECONDS", int(cfg.FetchTimeout.Seconds()), 1)
	cfg.FetchTimeout = time.Duration(seconds) * time.Second

	if v := os.Getenv("IMAGES_DISPLAY_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && isFinite(f) {
			cfg.DisplayScale = f
		} else {
			slog.Warn("[IMAGES] invalid IMAGES_DISPLAY_SCALE value, using default",
				"value", v,
				"default", cfg.DisplayScale,
				"error", err,
			)
		}
	}

	if v := os.Getenv("IMAGES_ALLOWED_HOSTS"); v != "" {
		for _, host := range strings.Split(v, ",") {
			if host = strings.TrimSpace(host); host != "" {
				cfg.AllowedHosts = append(cfg.AllowedHosts, strings.ToLower(host))
			}
		}
	}

	return cfg
}

// envInt reads an integer variable, keeping def when it is unset, malformed,
// or below min.
func envInt(name string, def, min int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		slog.Warn("[IMAGES] invalid "+name+" value, using default",
			"value", v,
			"default", def,
			"error", err,
		)
		return def
	}
	return n
}
