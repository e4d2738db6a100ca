package routes

import (
	"github.com/go-chi/chi/v5"

	imagehandlers "VeryGoods/internal/api/handlers/images"
)

// RegisterImageRoutes registers image endpoints on the router.
//
// Routes:
//   - GET /img/{preset}?url=...               image fitted to a named preset
//   - GET /img/fit/{width}x{height}?url=&scale= image fitted to an explicit box
//
// Both endpoints support ETag-based caching with If-None-Match headers.
func RegisterImageRoutes(r chi.Router, handler *imagehandlers.Handler) {
	r.Get("/img/{preset}", handler.HandlePreset)
	r.Get("/img/fit/{size}", handler.HandleFit)
}
