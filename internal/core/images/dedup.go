package images

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Deduplicated collapses concurrent requests for the same key into one call to
// the wrapped session. Every caller waiting on a key receives the same value or
// error. The registry entry is dropped when the call returns, so a later request
// starts fresh and failures are not remembered.
//
// The shared call runs on a context detached from its callers: a caller whose
// context ends stops waiting and gets ctx.Err(), while the call continues for
// everyone else.
type Deduplicated[Req any, V any] struct {
	tier    string
	session Session[Req, V]
	makeKey func(Req) string
	metrics *Metrics

	group   singleflight.Group
	waiting atomic.Int64
}

// Deduplicate wraps session, keying in-flight calls with makeKey.
func Deduplicate[Req any, V any](tier string, session Session[Req, V], makeKey func(Req) string, metrics *Metrics) *Deduplicated[Req, V] {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Deduplicated[Req, V]{
		tier:    tier,
		session: session,
		makeKey: makeKey,
		metrics: metrics,
	}
}

// Get joins the in-flight call for req's key, starting one if none exists.
func (d *Deduplicated[Req, V]) Get(ctx context.Context, req Req) (V, error) {
	var zero V

	d.waiting.Add(1)
	defer d.waiting.Add(-1)

	ch := d.group.DoChan(d.makeKey(req), func() (any, error) {
		return d.session.Get(context.WithoutCancel(ctx), req)
	})

	select {
	case res := <-ch:
		if res.Shared {
			d.metrics.Coalesced.WithLabelValues(d.tier).Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(V)
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Waiting returns the number of callers currently blocked in Get.
func (d *Deduplicated[Req, V]) Waiting() int {
	return int(d.waiting.Load())
}
