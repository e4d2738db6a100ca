package loader

import (
	"errors"

	"VeryGoods/internal/core/images"
)

// Kind tags the variant held by a Display.
type Kind int

const (
	KindEmpty Kind = iota
	KindLoading
	KindImage
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindLoading:
		return "loading"
	case KindImage:
		return "image"
	case KindFailure:
		return "failure"
	}
	return "unknown"
}

// Display is what an image view should currently show.
// The zero value is Empty.
type Display struct {
	kind  Kind
	image images.LoadedImage
	err   error
}

// Empty is the display for a loader without a URL.
func Empty() Display {
	return Display{kind: KindEmpty}
}

// Loading is the display while a load is in progress.
func Loading() Display {
	return Display{kind: KindLoading}
}

// Loaded is the display for a successfully loaded image.
func Loaded(img images.LoadedImage) Display {
	return Display{kind: KindImage, image: img}
}

// Failed is the display for a load that failed with err.
func Failed(err error) Display {
	return Display{kind: KindFailure, err: err}
}

// Kind returns the variant.
func (d Display) Kind() Kind {
	return d.kind
}

// Image returns the loaded image, if the display holds one.
func (d Display) Image() (images.LoadedImage, bool) {
	return d.image, d.kind == KindImage
}

// Err returns the failure, if the display holds one.
func (d Display) Err() error {
	if d.kind != KindFailure {
		return nil
	}
	return d.err
}

func (d Display) IsLoading() bool { return d.kind == KindLoading }
func (d Display) IsFailure() bool { return d.kind == KindFailure }

// AllowsFallback reports whether a fallback image may be shown in place of d.
func (d Display) AllowsFallback() bool {
	return d.kind != KindImage
}

// Equal reports whether both displays hold the same variant and payload.
func (d Display) Equal(other Display) bool {
	if d.kind != other.kind {
		return false
	}
	switch d.kind {
	case KindImage:
		return d.image.Equal(other.image)
	case KindFailure:
		return sameError(d.err, other.err)
	}
	return true
}

func (d Display) String() string {
	switch d.kind {
	case KindImage:
		return "image(" + d.image.Size().String() + ")"
	case KindFailure:
		if d.err != nil {
			return "failure(" + d.err.Error() + ")"
		}
	}
	return d.kind.String()
}

func sameError(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return errors.Is(a, b) || a.Error() == b.Error()
}
