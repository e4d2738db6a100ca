// Package images implements the image loading pipeline: fetching remote images,
// caching originals and scaled renditions, and collapsing concurrent requests.
//
// The pipeline is layered:
//   - Store: in-memory LRU over a content-addressed disk cache
//   - Fetcher: HTTP download and decode
//   - CachedSession: read-through caching keyed by a string derived from the request
//   - Deduplicated: at most one in-flight operation per cache key
//   - Scale: aspect-preserving fit of an original into a target box
//
// Service wires these into two tiers. Originals are cached by URL, scaled
// renditions by ScaleRequest.CacheKey, and every scaled miss goes through the
// original tier, so different sizes of one image share a single download.
package images

import (
	"context"
	"fmt"
	"image"
	"log/slog"
)

const (
	tierOriginal = "original"
	tierScaled   = "scaled"
)

// Service is the process-wide image pipeline.
type Service struct {
	originals *Deduplicated[string, image.Image]
	scaled    *Deduplicated[ScaleRequest, LoadedImage]
	fetcher   Fetcher
	metrics   *Metrics
}

// NewService creates a Service over the given store and fetcher.
// Returns an error if any required dependency is nil.
func NewService(store Store, fetcher Fetcher, metrics *Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilDependency)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher", ErrNilDependency)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	s := &Service{fetcher: fetcher, metrics: metrics}

	originalKey := func(url string) string { return url }
	cachedOriginals, err := NewCachedSession[string, image.Image](
		tierOriginal,
		store,
		originalKey,
		SessionFunc[string, image.Image](s.fetch),
		ImageCodec{},
		metrics,
	)
	if err != nil {
		return nil, err
	}
	s.originals = Deduplicate[string, image.Image](tierOriginal, cachedOriginals, originalKey, metrics)

	scaledKey := ScaleRequest.CacheKey
	cachedScaled, err := NewCachedSession[ScaleRequest, LoadedImage](
		tierScaled,
		store,
		scaledKey,
		SessionFunc[ScaleRequest, LoadedImage](s.scale),
		LoadedImageCodec{},
		metrics,
	)
	if err != nil {
		return nil, err
	}
	s.scaled = Deduplicate[ScaleRequest, LoadedImage](tierScaled, cachedScaled, scaledKey, metrics)

	return s, nil
}

// Load returns the unscaled image at url via cache or network.
func (s *Service) Load(ctx context.Context, url string) (LoadedImage, error) {
	if url == "" {
		return LoadedImage{}, fmt.Errorf("%w: empty URL", ErrInvalidRequest)
	}
	img, err := s.originals.Get(ctx, url)
	if err != nil {
		return LoadedImage{}, err
	}
	return NewOriginal(img), nil
}

// LoadScaled returns a scaled rendition via cache, or by scaling the original.
func (s *Service) LoadScaled(ctx context.Context, req ScaleRequest) (LoadedImage, error) {
	if _, err := NewScaleRequest(req.URL, req.Scale, req.Size); err != nil {
		return LoadedImage{}, err
	}
	return s.scaled.Get(ctx, req)
}

// fetch is the network retrieval behind the original tier.
func (s *Service) fetch(ctx context.Context, url string) (image.Image, error) {
	s.metrics.Fetches.Inc()
	img, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.metrics.FetchErrors.Inc()
		slog.Warn("[IMAGES] image fetch failed",
			"url", url,
			"error", err,
		)
		return nil, err
	}
	slog.Debug("[IMAGES] fetched image",
		"url", url,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return img, nil
}

// scale is the retrieval behind the scaled tier: original tier, then Scale.
func (s *Service) scale(ctx context.Context, req ScaleRequest) (LoadedImage, error) {
	original, err := s.originals.Get(ctx, req.URL)
	if err != nil {
		return LoadedImage{}, err
	}

	scaled, err := Scale(original, req.Size, req.Scale)
	if err != nil {
		slog.Warn("[IMAGES] failed to scale image",
			"url", req.URL,
			"size", req.Size.String(),
			"scale", req.Scale,
			"error", err,
		)
		return LoadedImage{}, err
	}
	s.metrics.Scales.Inc()

	return LoadedImage{
		Image:        scaled,
		Scale:        req.Scale,
		OriginalSize: pixelSize(original),
	}, nil
}
