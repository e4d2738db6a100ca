package images

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// ErrEncodingFailed is returned when a bitmap cannot be encoded for transport.
var ErrEncodingFailed = errors.New("image encoding failed")

// Encoded is a bitmap serialized for an HTTP response.
type Encoded struct {
	Data        []byte
	ContentType string
}

// EncodeForTransport serializes img as PNG when it carries alpha and as JPEG at
// the given quality otherwise.
func EncodeForTransport(img LoadedImage, quality int) (Encoded, error) {
	if img.Image == nil {
		return Encoded{}, fmt.Errorf("%w: nil bitmap", ErrEncodingFailed)
	}

	format, contentType := imaging.JPEG, "image/jpeg"
	if hasAlpha(img.Image) {
		format, contentType = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.Image, format, imaging.JPEGQuality(quality)); err != nil {
		return Encoded{}, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return Encoded{Data: buf.Bytes(), ContentType: contentType}, nil
}
