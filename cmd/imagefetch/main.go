package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"VeryGoods/internal/core/images"
	"VeryGoods/internal/core/loader"
)

// imagefetch loads one image through the same pipeline the server uses and
// writes the displayed result to a file.
//
// Usage:
//
//	go run ./cmd/imagefetch -url https://example.com/shoe.jpg -width 120 -height 120 -out shoe.jpg
//
// A zero width and height writes the original image. The cache location and
// limits come from the same IMAGES_* environment variables as the server;
// -cache overrides the cache directory ("-" keeps it in memory).
func main() {
	var (
		rawURL  = flag.String("url", "", "image URL to load (required)")
		width   = flag.Float64("width", 0, "target width in points, 0 for the original")
		height  = flag.Float64("height", 0, "target height in points, 0 for the original")
		scale   = flag.Float64("scale", 0, "pixel scale, 0 uses IMAGES_DISPLAY_SCALE")
		out     = flag.String("out", "out.img", "output file")
		quality = flag.Int("quality", 85, "JPEG quality for opaque images")
		timeout = flag.Duration("timeout", time.Minute, "overall time limit")
		cache   = flag.String("cache", "", "cache directory override, \"-\" for memory only")
	)
	flag.Parse()

	if *rawURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		flag.Usage()
		os.Exit(2)
	}
	source, err := url.Parse(*rawURL)
	if err != nil {
		log.Fatalf("Invalid URL: %v", err)
	}

	cfg := images.ConfigFromEnv()
	switch *cache {
	case "":
	case "-":
		cfg.CachePath = ""
	default:
		cfg.CachePath = *cache
	}
	if *scale > 0 {
		cfg.DisplayScale = *scale
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := images.NewStoreFromConfig(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer store.Close()

	service, err := images.NewService(store, images.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxSourceSizeMB), nil)
	if err != nil {
		log.Fatalf("Failed to create image service: %v", err)
	}

	l, err := loader.New(service, cfg.DisplayScale)
	if err != nil {
		log.Fatalf("Failed to create loader: %v", err)
	}
	defer l.Close()

	displays, cancel := l.Subscribe()
	defer cancel()

	l.Size.Set(images.Size{Width: *width, Height: *height})
	l.ImageURL.Set(source)

	ctx, stop := context.WithTimeout(context.Background(), *timeout)
	defer stop()

	if err := waitAndWrite(ctx, displays, *out, *quality); err != nil {
		store.Close()
		log.Fatalf("Failed to load %s: %v", *rawURL, err)
	}
}

// waitAndWrite follows the loader until it shows an image or a failure.
func waitAndWrite(ctx context.Context, displays <-chan loader.Display, out string, quality int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-displays:
			if !ok {
				return errors.New("loader closed")
			}
			slog.Info("[IMAGEFETCH] display changed", "display", d.String())

			switch d.Kind() {
			case loader.KindFailure:
				return d.Err()
			case loader.KindImage:
				img, _ := d.Image()
				encoded, err := images.EncodeForTransport(img, quality)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, encoded.Data, 0o644); err != nil {
					return err
				}
				size := img.Size()
				fmt.Printf("Wrote %s (%s, %.0fx%.0f points at scale %g, %d bytes)\n",
					out, encoded.ContentType, size.Width, size.Height, img.Scale, len(encoded.Data))
				return nil
			}
		}
	}
}
