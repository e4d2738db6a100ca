package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"reflect"

	cbornode "github.com/ipfs/go-ipld-cbor"
)

// LoadedImage is a decoded bitmap ready for display, together with the size of
// the image it was derived from.
type LoadedImage struct {
	// Image is the bitmap, which may have been scaled from its original dimensions.
	Image image.Image

	// Scale is the pixel scale the bitmap was rendered at. Unscaled originals use 1.
	Scale float64

	// OriginalSize is the size of the source image before any scaling.
	OriginalSize Size
}

// NewOriginal wraps an unscaled image.
func NewOriginal(img image.Image) LoadedImage {
	return LoadedImage{Image: img, Scale: 1, OriginalSize: pixelSize(img)}
}

// Size returns the point size of the bitmap (pixels divided by scale).
func (l LoadedImage) Size() Size {
	if l.Image == nil {
		return Size{}
	}
	px := pixelSize(l.Image)
	scale := l.Scale
	if scale <= 0 {
		scale = 1
	}
	return Size{Width: px.Width / scale, Height: px.Height / scale}
}

// Equal reports structural equality: same scale, same original size, and
// pixel-identical bitmaps.
func (l LoadedImage) Equal(other LoadedImage) bool {
	if l.Scale != other.Scale || l.OriginalSize != other.OriginalSize {
		return false
	}
	return imagesEqual(l.Image, other.Image)
}

func imagesEqual(a, b image.Image) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}
	if samePointer(a, b) {
		return true
	}
	switch an := a.(type) {
	case *image.NRGBA:
		if bn, ok := b.(*image.NRGBA); ok && an.Stride == bn.Stride && an.Rect == bn.Rect {
			return bytes.Equal(an.Pix, bn.Pix)
		}
	case *image.RGBA:
		if bn, ok := b.(*image.RGBA); ok && an.Stride == bn.Stride && an.Rect == bn.Rect {
			return bytes.Equal(an.Pix, bn.Pix)
		}
	}
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ca := color.NRGBAModel.Convert(a.At(ab.Min.X+x, ab.Min.Y+y))
			cb := color.NRGBAModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y))
			if ca != cb {
				return false
			}
		}
	}
	return true
}

// samePointer reports whether a and b are the same pointer-backed image.
func samePointer(a, b image.Image) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	return va.Kind() == reflect.Pointer && va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}

func pixelSize(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// loadedImageEnvelope is the persisted form of a LoadedImage.
type loadedImageEnvelope struct {
	Bitmap         []byte
	Scale          float64
	OriginalWidth  float64
	OriginalHeight float64
}

func init() {
	cbornode.RegisterCborType(loadedImageEnvelope{})
}

// MarshalBinary encodes the image as a CBOR envelope around a PNG bitmap.
func (l LoadedImage) MarshalBinary() ([]byte, error) {
	if l.Image == nil {
		return nil, fmt.Errorf("%w: nil bitmap", ErrInvalidData)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, l.Image); err != nil {
		return nil, fmt.Errorf("encode bitmap: %w", err)
	}
	return cbornode.DumpObject(loadedImageEnvelope{
		Bitmap:         buf.Bytes(),
		Scale:          l.Scale,
		OriginalWidth:  l.OriginalSize.Width,
		OriginalHeight: l.OriginalSize.Height,
	})
}

// UnmarshalBinary restores an image written by MarshalBinary.
func (l *LoadedImage) UnmarshalBinary(data []byte) error {
	var env loadedImageEnvelope
	if err := cbornode.DecodeInto(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	img, err := png.Decode(bytes.NewReader(env.Bitmap))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	*l = LoadedImage{
		Image:        img,
		Scale:        env.Scale,
		OriginalSize: Size{Width: env.OriginalWidth, Height: env.OriginalHeight},
	}
	return nil
}
