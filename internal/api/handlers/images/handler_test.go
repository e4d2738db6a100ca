package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VeryGoods/internal/core/images"
)

const testSource = "https://img.example.com/products/shoe.jpg"

// mockService implements Service for testing
type mockService struct {
	loadFunc       func(ctx context.Context, url string) (images.LoadedImage, error)
	loadScaledFunc func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error)
}

func (m *mockService) Load(ctx context.Context, url string) (images.LoadedImage, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, url)
	}
	return images.LoadedImage{}, errors.New("not implemented")
}

func (m *mockService) LoadScaled(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
	if m.loadScaledFunc != nil {
		return m.loadScaledFunc(ctx, req)
	}
	return images.LoadedImage{}, errors.New("not implemented")
}

func opaque(width, height int) images.LoadedImage {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return images.NewOriginal(img)
}

func translucent(width, height int) images.LoadedImage {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 100})
		}
	}
	return images.NewOriginal(img)
}

// newRouter mounts the handler the way the server does.
func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/img/{preset}", h.HandlePreset)
	r.Get("/img/fit/{size}", h.HandleFit)
	return r
}

func get(t *testing.T, router http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withURL(path, source string) string {
	return path + "?url=" + url.QueryEscape(source)
}

func TestHandler_HandlePreset_Success(t *testing.T) {
	var got images.ScaleRequest
	svc := &mockService{
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			got = req
			return opaque(240, 240), nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	w := get(t, router, withURL("/img/thumbnail", testSource), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, images.ScaleRequest{URL: testSource, Scale: 2, Size: images.Size{Width: 120, Height: 120}}, got)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	id, err := images.ContentID(got.CacheKey())
	require.NoError(t, err)
	assert.Equal(t, `"`+id+`"`, w.Header().Get("ETag"))

	img, err := jpeg.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 240, 240), img.Bounds())
}

func TestHandler_HandlePreset_AlphaIsPNG(t *testing.T) {
	svc := &mockService{
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			return translucent(20, 20), nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	w := get(t, router, withURL("/img/avatar", testSource), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)
}

func TestHandler_HandlePreset_OriginalIsUnscaled(t *testing.T) {
	loaded := false
	svc := &mockService{
		loadFunc: func(ctx context.Context, u string) (images.LoadedImage, error) {
			loaded = true
			assert.Equal(t, testSource, u)
			return opaque(10, 10), nil
		},
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			t.Error("LoadScaled should not be called for the original preset")
			return images.LoadedImage{}, nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	w := get(t, router, withURL("/img/original", testSource), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, loaded)
}

func TestHandler_HandlePreset_ETagMatch_Returns304(t *testing.T) {
	svc := &mockService{
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			t.Error("Service should not be called when ETag matches")
			return images.LoadedImage{}, nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	req := images.ScaleRequest{URL: testSource, Scale: 2, Size: images.Size{Width: 120, Height: 120}}
	id, err := images.ContentID(req.CacheKey())
	require.NoError(t, err)

	w := get(t, router, withURL("/img/thumbnail", testSource), http.Header{"If-None-Match": {`"` + id + `"`}})

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Equal(t, 0, w.Body.Len())
}

func TestHandler_HandlePreset_BadRequests(t *testing.T) {
	svc := &mockService{}
	router := newRouter(NewHandler(svc, []string{"img.example.com"}))

	tests := []struct {
		name string
		path string
	}{
		{name: "unknown preset", path: withURL("/img/gigantic", testSource)},
		{name: "missing url", path: "/img/thumbnail"},
		{name: "relative url", path: withURL("/img/thumbnail", "/shoe.jpg")},
		{name: "unsupported scheme", path: withURL("/img/thumbnail", "file:///etc/passwd")},
		{name: "host not allowed", path: withURL("/img/thumbnail", "https://evil.example.com/x.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		})
	}
}

func TestHandler_HandleFit(t *testing.T) {
	var got images.ScaleRequest
	svc := &mockService{
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			got = req
			return opaque(300, 150), nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	w := get(t, router, withURL("/img/fit/100x50", testSource)+"&scale=3", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, images.ScaleRequest{URL: testSource, Scale: 3, Size: images.Size{Width: 100, Height: 50}}, got)
}

func TestHandler_HandleFit_DefaultScale(t *testing.T) {
	var got images.ScaleRequest
	svc := &mockService{
		loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
			got = req
			return opaque(10, 10), nil
		},
	}
	router := newRouter(NewHandler(svc, nil))

	w := get(t, router, withURL("/img/fit/10x10", testSource), nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1.0, got.Scale)
}

func TestHandler_HandleFit_BadRequests(t *testing.T) {
	router := newRouter(NewHandler(&mockService{}, nil))

	paths := map[string]string{
		"no separator":   withURL("/img/fit/100", testSource),
		"not a number":   withURL("/img/fit/axb", testSource),
		"zero width":     withURL("/img/fit/0x10", testSource),
		"negative":       withURL("/img/fit/-5x10", testSource),
		"too large":      withURL("/img/fit/5000x10", testSource),
		"bad scale":      withURL("/img/fit/10x10", testSource) + "&scale=abc",
		"zero scale":     withURL("/img/fit/10x10", testSource) + "&scale=0",
		"scale too high": withURL("/img/fit/10x10", testSource) + "&scale=10",
		"missing url":    "/img/fit/10x10",
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			w := get(t, router, path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandler_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: &images.StatusError{URL: testSource, StatusCode: 404}, wantStatus: http.StatusNotFound},
		{name: "upstream error", err: &images.StatusError{URL: testSource, StatusCode: 503}, wantStatus: http.StatusBadGateway},
		{name: "fetch failed", err: images.ErrFetchFailed, wantStatus: http.StatusBadGateway},
		{name: "timeout", err: images.ErrTimeout, wantStatus: http.StatusGatewayTimeout},
		{name: "too large", err: images.ErrImageTooLarge, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "invalid data", err: images.ErrInvalidData, wantStatus: http.StatusUnprocessableEntity},
		{name: "failed to scale", err: images.ErrFailedToScale, wantStatus: http.StatusInternalServerError},
		{name: "invalid request", err: images.ErrInvalidRequest, wantStatus: http.StatusBadRequest},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				loadScaledFunc: func(ctx context.Context, req images.ScaleRequest) (images.LoadedImage, error) {
					return images.LoadedImage{}, tt.err
				},
			}
			router := newRouter(NewHandler(svc, nil))

			w := get(t, router, withURL("/img/product", testSource), nil)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Empty(t, w.Header().Get("ETag"))
		})
	}
}
