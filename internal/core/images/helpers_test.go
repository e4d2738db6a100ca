package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newOpaqueImage creates an RGBA image with every pixel fully opaque.
func newOpaqueImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// newTranslucentImage creates an NRGBA image with a half-transparent fill.
func newTranslucentImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 64, G: 128, B: 255, A: 128})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// MockFetcher implements Fetcher for testing
type MockFetcher struct {
	mu      sync.Mutex
	images  map[string]image.Image
	errs    map[string]error
	calls   map[string]int
	release chan struct{}
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		images: make(map[string]image.Image),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (m *MockFetcher) SetImage(url string, img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[url] = img
	delete(m.errs, url)
}

func (m *MockFetcher) SetError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

// Block makes every Fetch wait until the returned function is called.
func (m *MockFetcher) Block() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = make(chan struct{})
	ch := m.release
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	m.mu.Lock()
	m.calls[url]++
	release := m.release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	if img, ok := m.images[url]; ok {
		return img, nil
	}
	return nil, &StatusError{URL: url, StatusCode: 404}
}

func (m *MockFetcher) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// MockStore implements Store for testing
type MockStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	getCalls int
	setCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	data, ok := m.data[key]
	return data, ok
}

func (m *MockStore) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	m.data[key] = value
}

func (m *MockStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockStore) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

func (m *MockStore) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}
