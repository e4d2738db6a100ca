package images

import (
	"fmt"
	"math"
	"strconv"
)

// Size is a width/height pair in points.
// The zero value is the "unset" sentinel: loaders request the original image for it.
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether both dimensions are zero.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Rounded returns the size with both dimensions rounded to the nearest integer.
func (s Size) Rounded() Size {
	return Size{Width: math.Round(s.Width), Height: math.Round(s.Height)}
}

// String formats the size as "WxH".
func (s Size) String() string {
	return formatFloat(s.Width) + "x" + formatFloat(s.Height)
}

func (s Size) valid() bool {
	return isFinite(s.Width) && isFinite(s.Height) && s.Width >= 0 && s.Height >= 0
}

// ScaleRequest identifies one scaled rendition of a remote image.
// Two requests are interchangeable iff all fields compare equal, so the type is
// safe to use with == and as a map key.
type ScaleRequest struct {
	// URL is the absolute source image URL.
	URL string

	// Scale is the pixel scale factor to render at.
	Scale float64

	// Size is the box, in points, to fit the image within.
	Size Size
}

// NewScaleRequest validates and builds a ScaleRequest.
func NewScaleRequest(url string, scale float64, size Size) (ScaleRequest, error) {
	if url == "" {
		return ScaleRequest{}, fmt.Errorf("%w: empty URL", ErrInvalidRequest)
	}
	if !isFinite(scale) || scale <= 0 {
		return ScaleRequest{}, fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidRequest, scale)
	}
	if !size.valid() {
		return ScaleRequest{}, fmt.Errorf("%w: invalid size %v", ErrInvalidRequest, size)
	}
	return ScaleRequest{URL: url, Scale: scale, Size: size}, nil
}

// CacheKey returns the composite key addressing this rendition in the store and
// the in-flight registry. Originals are keyed by the bare URL.
func (r ScaleRequest) CacheKey() string {
	return r.URL + "|" + formatFloat(r.Scale) + "|" + r.Size.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
