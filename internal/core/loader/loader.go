// Package loader drives what an image view displays from two inputs, a URL and
// a target size, using the shared image pipeline.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"VeryGoods/internal/core/images"
	"VeryGoods/internal/reactive"
)

// Source is the part of the image pipeline a Loader needs.
type Source interface {
	Load(ctx context.Context, url string) (images.LoadedImage, error)
	LoadScaled(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error)
}

// Loader turns ImageURL, Size and FallbackImage into a live Display.
//
// Changing the URL shows Loading and starts a load; clearing it shows Empty.
// Changing the size while a URL is set reloads at the new size. A zero size
// loads the original image, any other size a rendition fitted to it at the
// loader's pixel scale. Results from loads that have since been superseded are
// dropped. While the pipeline state is Empty, Loading or a Failure, a configured
// fallback image is displayed instead.
//
// Loaders are cheap; any number may share one Source.
type Loader struct {
	// ImageURL is the image to display. nil clears the display.
	ImageURL *reactive.Property[*url.URL]

	// Size is the box to fit the image within, in points.
	Size *reactive.Property[images.Size]

	// FallbackImage is shown while no loaded image is available.
	FallbackImage *reactive.Property[*images.LoadedImage]

	display *reactive.Property[Display]
	source  Source
	scale   float64

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Loader rendering scaled images at the given pixel scale and
// starts it. Call Close to stop it.
func New(source Source, scale float64) (*Loader, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: source", images.ErrNilDependency)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale must be positive, got %v", images.ErrInvalidRequest, scale)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		ImageURL:      reactive.NewPropertyFunc[*url.URL](nil, sameURL),
		Size:          reactive.NewProperty(images.Size{}),
		FallbackImage: reactive.NewPropertyFunc[*images.LoadedImage](nil, sameImage),
		display:       reactive.NewPropertyFunc(Empty(), Display.Equal),
		source:        source,
		scale:         scale,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	go l.run(ctx)
	return l, nil
}

// Display returns what should currently be shown.
func (l *Loader) Display() Display {
	return l.display.Value()
}

// Subscribe returns the current display followed by every change.
func (l *Loader) Subscribe() (<-chan Display, func()) {
	return l.display.Subscribe()
}

// Close stops the loader and ends all subscriptions. In-flight loads shared
// with other loaders keep running.
func (l *Loader) Close() {
	l.cancel()
	<-l.done
	l.display.Close()
	l.ImageURL.Close()
	l.Size.Close()
	l.FallbackImage.Close()
}

type result struct {
	generation uint64
	display    Display
}

func (l *Loader) run(ctx context.Context) {
	defer close(l.done)

	urls, stopURLs := l.ImageURL.Subscribe()
	defer stopURLs()
	sizes, stopSizes := l.Size.Subscribe()
	defer stopSizes()
	fallbacks, stopFallbacks := l.FallbackImage.Subscribe()
	defer stopFallbacks()

	results := make(chan result)

	var (
		current     *url.URL
		size        images.Size
		fallback    *images.LoadedImage
		state       = Empty()
		generation  uint64
		cancelFetch context.CancelFunc = func() {}
	)
	defer func() { cancelFetch() }()

	publish := func() {
		if fallback != nil && state.AllowsFallback() {
			l.display.Set(Loaded(*fallback))
			return
		}
		l.display.Set(state)
	}

	// restart supersedes any load in progress and, if a URL is set, starts a
	// new one tagged with the next generation.
	restart := func() {
		cancelFetch()
		cancelFetch = func() {}
		generation++
		if current == nil {
			return
		}
		fetchCtx, cancel := context.WithCancel(ctx)
		cancelFetch = cancel
		go l.fetch(fetchCtx, generation, current.String(), size, results)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-urls:
			if !ok {
				return
			}
			current = u
			if u == nil {
				state = Empty()
			} else {
				state = Loading()
			}
			restart()
			publish()

		case s, ok := <-sizes:
			if !ok {
				return
			}
			if s == size {
				continue
			}
			size = s
			if current != nil {
				restart()
			}

		case f, ok := <-fallbacks:
			if !ok {
				return
			}
			fallback = f
			publish()

		case r := <-results:
			if r.generation != generation {
				continue
			}
			state = r.display
			publish()
		}
	}
}

func (l *Loader) fetch(ctx context.Context, generation uint64, rawURL string, size images.Size, results chan<- result) {
	var (
		img images.LoadedImage
		err error
	)
	if size.IsZero() {
		img, err = l.source.Load(ctx, rawURL)
	} else {
		img, err = l.source.LoadScaled(ctx, images.ScaleRequest{URL: rawURL, Scale: l.scale, Size: size})
	}

	if ctx.Err() != nil {
		return
	}

	display := Loaded(img)
	if err != nil {
		slog.Debug("[IMAGE-LOADER] load failed",
			"url", rawURL,
			"size", size.String(),
			"error", err,
		)
		display = Failed(err)
	}

	select {
	case results <- result{generation: generation, display: display}:
	case <-ctx.Done():
	}
}

func sameURL(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

func sameImage(a, b *images.LoadedImage) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
