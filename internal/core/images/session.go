package images

import (
	"context"
	"fmt"
	"log/slog"
)

// Session produces a value for a request, possibly asynchronously.
type Session[Req any, V any] interface {
	Get(ctx context.Context, req Req) (V, error)
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc[Req any, V any] func(ctx context.Context, req Req) (V, error)

func (f SessionFunc[Req, V]) Get(ctx context.Context, req Req) (V, error) {
	return f(ctx, req)
}

// CachedSession is a read-through cache in front of a retrieval function.
// Values are addressed in the store by makeKey(req); a hit never calls retrieve,
// a miss calls it once and stores the result. Failures are never cached.
type CachedSession[Req any, V any] struct {
	tier     string
	store    Store
	makeKey  func(Req) string
	retrieve Session[Req, V]
	codec    Codec[V]
	metrics  *Metrics
}

// NewCachedSession creates a CachedSession. tier names the session in logs and
// metrics. A nil metrics uses an unregistered set of counters.
func NewCachedSession[Req any, V any](
	tier string,
	store Store,
	makeKey func(Req) string,
	retrieve Session[Req, V],
	codec Codec[V],
	metrics *Metrics,
) (*CachedSession[Req, V], error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilDependency)
	}
	if makeKey == nil {
		return nil, fmt.Errorf("%w: makeKey", ErrNilDependency)
	}
	if retrieve == nil {
		return nil, fmt.Errorf("%w: retrieve", ErrNilDependency)
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: codec", ErrNilDependency)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &CachedSession[Req, V]{
		tier:     tier,
		store:    store,
		makeKey:  makeKey,
		retrieve: retrieve,
		codec:    codec,
		metrics:  metrics,
	}, nil
}

// Get returns the cached value for req, retrieving and storing it on a miss.
func (c *CachedSession[Req, V]) Get(ctx context.Context, req Req) (V, error) {
	key := c.makeKey(req)

	if data, ok := c.store.Get(ctx, key); ok {
		value, err := c.codec.Decode(data)
		if err == nil {
			c.metrics.CacheLookups.WithLabelValues(c.tier, "hit").Inc()
			slog.Debug("[IMAGES] cache hit", "tier", c.tier, "key", key)
			return value, nil
		}
		slog.Warn("[IMAGES] undecodable cache entry, treating as miss",
			"tier", c.tier,
			"key", key,
			"error", err,
		)
	}
	c.metrics.CacheLookups.WithLabelValues(c.tier, "miss").Inc()

	value, err := c.retrieve.Get(ctx, req)
	if err != nil {
		var zero V
		return zero, err
	}

	data, err := c.codec.Encode(value)
	if err != nil {
		slog.Warn("[IMAGES] failed to encode value for cache",
			"tier", c.tier,
			"key", key,
			"error", err,
		)
		return value, nil
	}
	c.store.Set(key, data)

	return value, nil
}
