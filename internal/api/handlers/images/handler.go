// Package images provides HTTP handlers that serve images through the shared
// image pipeline, scaled to a named preset or an explicit box.
package images

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"VeryGoods/internal/core/images"
)

const (
	// maxFitDimension bounds each side of a /img/fit box, in points.
	maxFitDimension = 4096
	// maxFitScale bounds the pixel scale accepted by /img/fit.
	maxFitScale = 4
	// fitQuality is the JPEG quality for /img/fit responses.
	fitQuality = 85
)

// Service defines the part of the image pipeline the handler uses.
type Service interface {
	Load(ctx context.Context, url string) (images.LoadedImage, error)
	LoadScaled(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error)
}

// Handler handles HTTP requests for pipeline images.
type Handler struct {
	service      Service
	allowedHosts []string
}

// NewHandler creates a new image handler. allowedHosts restricts source URLs;
// empty allows any host.
func NewHandler(service Service, allowedHosts []string) *Handler {
	return &Handler{
		service:      service,
		allowedHosts: allowedHosts,
	}
}

// HandlePreset handles GET /img/{preset}?url=...
// The "original" preset serves the image unscaled.
func (h *Handler) HandlePreset(w http.ResponseWriter, r *http.Request) {
	presetName := chi.URLParam(r, "preset")
	preset, err := images.GetPreset(presetName)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid preset: "+presetName)
		return
	}

	sourceURL, ok := h.sourceURL(w, r)
	if !ok {
		return
	}

	if preset.Size() == (images.Size{}) {
		h.serve(w, r, sourceURL, preset.Quality, func(ctx context.Context) (images.LoadedImage, error) {
			return h.service.Load(ctx, sourceURL)
		})
		return
	}

	req := images.ScaleRequest{URL: sourceURL, Scale: preset.Scale, Size: preset.Size()}
	h.serve(w, r, req.CacheKey(), preset.Quality, func(ctx context.Context) (images.LoadedImage, error) {
		return h.service.LoadScaled(ctx, req)
	})
}

// HandleFit handles GET /img/fit/{size}?url=...&scale=...
// size is "{width}x{height}" in points; scale defaults to 1.
func (h *Handler) HandleFit(w http.ResponseWriter, r *http.Request) {
	size, err := parseBox(chi.URLParam(r, "size"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid size: expected {width}x{height}")
		return
	}

	scale := 1.0
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err = strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(scale) || scale <= 0 || scale > maxFitScale {
			writeErrorResponse(w, http.StatusBadRequest, "invalid scale")
			return
		}
	}

	sourceURL, ok := h.sourceURL(w, r)
	if !ok {
		return
	}

	req, err := images.NewScaleRequest(sourceURL, scale, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.serve(w, r, req.CacheKey(), fitQuality, func(ctx context.Context) (images.LoadedImage, error) {
		return h.service.LoadScaled(ctx, req)
	})
}

// sourceURL reads and validates the url query parameter, writing a 400 if it
// is unusable.
func (h *Handler) sourceURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeErrorResponse(w, http.StatusBadRequest, "missing url parameter")
		return "", false
	}
	sourceURL, err := images.ValidateSourceURL(raw, h.allowedHosts)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid url")
		return "", false
	}
	return sourceURL, true
}

// serve answers a conditional request from the entity tag of key, or loads,
// encodes and writes the image.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, key string, quality int, load func(context.Context) (images.LoadedImage, error)) {
	id, err := images.ContentID(key)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	etag := `"` + id + `"`

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	img, err := load(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			slog.Debug("[IMAGE-API] client went away before image was ready",
				"key", key,
				"error", err,
			)
			return
		}
		handleServiceError(w, err)
		return
	}

	encoded, err := images.EncodeForTransport(img, quality)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", encoded.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(encoded.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("ETag", etag)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded.Data); err != nil {
		slog.Warn("[IMAGE-API] failed to write image response",
			"key", key,
			"error", err,
		)
	}
}

// parseBox parses "{width}x{height}" into a Size with both sides in (0, maxFitDimension].
func parseBox(raw string) (images.Size, error) {
	w, h, ok := strings.Cut(raw, "x")
	if !ok {
		return images.Size{}, images.ErrInvalidRequest
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return images.Size{}, err
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return images.Size{}, err
	}
	if width <= 0 || height <= 0 || width > maxFitDimension || height > maxFitDimension {
		return images.Size{}, images.ErrInvalidRequest
	}
	return images.Size{Width: float64(width), Height: float64(height)}, nil
}

// handleServiceError converts pipeline errors to appropriate HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, images.ErrInvalidURL):
		writeErrorResponse(w, http.StatusBadRequest, "invalid url")
	case errors.Is(err, images.ErrInvalidPreset):
		writeErrorResponse(w, http.StatusBadRequest, "invalid preset")
	case errors.Is(err, images.ErrInvalidRequest):
		writeErrorResponse(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, images.ErrNotFound):
		writeErrorResponse(w, http.StatusNotFound, "image not found")
	case errors.Is(err, images.ErrTimeout):
		writeErrorResponse(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, images.ErrImageTooLarge):
		writeErrorResponse(w, http.StatusRequestEntityTooLarge, "image too large")
	case errors.Is(err, images.ErrFetchFailed):
		writeErrorResponse(w, http.StatusBadGateway, "failed to fetch image")
	case errors.Is(err, images.ErrInvalidData):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "source is not a supported image")
	case errors.Is(err, images.ErrFailedToScale):
		writeErrorResponse(w, http.StatusInternalServerError, "image scaling failed")
	default:
		slog.Error("[IMAGE-API] unhandled service error",
			"error", err,
		)
		writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeErrorResponse writes a plain text error response.
// Image endpoints answer with plain text rather than JSON since the expected
// response is binary image data.
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(message)); err != nil {
		slog.Warn("[IMAGE-API] failed to write error response",
			"status", status,
			"message", message,
			"error", err,
		)
	}
}
