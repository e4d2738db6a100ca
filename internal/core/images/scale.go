package images

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// maxScaledPixels bounds the bitmap a single scale may allocate.
const maxScaledPixels = 64 * 1024 * 1024

// FitSize returns the largest size that fits source within target while keeping
// its aspect ratio. Sources that already fit are returned unchanged, so images
// are never upscaled.
func FitSize(source, target Size) Size {
	if source.Width > target.Width || source.Height > target.Height {
		factor := math.Min(target.Width/source.Width, target.Height/source.Height)
		return Size{Width: source.Width * factor, Height: source.Height * factor}
	}
	return source
}

// Scale renders src into a new bitmap fitted to target (in points) at the given
// pixel scale. The fitted size is rounded to whole points before rendering.
// The bitmap carries an alpha channel only if the source does. src is not modified.
func Scale(src image.Image, target Size, scale float64) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrFailedToScale)
	}
	if !isFinite(scale) || scale <= 0 {
		return nil, fmt.Errorf("%w: invalid scale %v", ErrFailedToScale, scale)
	}

	fit := FitSize(pixelSize(src), target).Rounded()
	width := int(math.Round(fit.Width * scale))
	height := int(math.Round(fit.Height * scale))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty fit size %v", ErrFailedToScale, fit)
	}
	if width*height > maxScaledPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrFailedToScale, width, height)
	}

	rect := image.Rect(0, 0, width, height)
	var dst xdraw.Image
	if hasAlpha(src) {
		dst = image.NewNRGBA(rect)
	} else {
		dst = image.NewRGBA(rect)
	}

	xdraw.CatmullRom.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// hasAlpha reports whether the image has any transparency. Images that cannot
// report their opacity are judged by color model, and unknown models are
// assumed to carry alpha.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	model := img.ColorModel()
	if palette, ok := model.(color.Palette); ok {
		for _, c := range palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}
	switch model {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return false
	}
	return true
}
