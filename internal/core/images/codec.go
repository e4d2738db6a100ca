package images

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Codec converts cached values to and from the bytes held by a Store.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// ImageCodec stores unscaled images as PNG, which keeps alpha intact.
type ImageCodec struct{}

func (ImageCodec) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ImageCodec) Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return img, nil
}

// LoadedImageCodec stores scaled renditions using LoadedImage's binary form.
type LoadedImageCodec struct{}

func (LoadedImageCodec) Encode(img LoadedImage) ([]byte, error) {
	return img.MarshalBinary()
}

func (LoadedImageCodec) Decode(data []byte) (LoadedImage, error) {
	var img LoadedImage
	err := img.UnmarshalBinary(data)
	return img, err
}
