package images

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData is returned when fetched bytes cannot be decoded into an image.
	ErrInvalidData = errors.New("invalid image data")

	// ErrFailedToScale is returned when a scaled bitmap cannot be allocated or rendered.
	ErrFailedToScale = errors.New("failed to scale image")

	// ErrFetchFailed is returned when retrieving an image over HTTP fails for any reason.
	ErrFetchFailed = errors.New("failed to fetch image")

	// ErrNotFound is returned when the image host responds with 404.
	ErrNotFound = errors.New("image not found")

	// ErrTimeout is returned when an image request exceeds the configured timeout.
	ErrTimeout = errors.New("image request timed out")

	// ErrImageTooLarge is returned when the response body exceeds the maximum allowed size.
	ErrImageTooLarge = errors.New("source image exceeds size limit")

	// ErrInvalidRequest is returned when a scale request has an empty URL, a
	// non-positive scale, or a negative size.
	ErrInvalidRequest = errors.New("invalid image scale request")

	// ErrInvalidURL is returned when a source URL is not an acceptable image location.
	ErrInvalidURL = errors.New("invalid image URL")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)

// StatusError reports a non-success HTTP status from the image host.
// It matches ErrFetchFailed with errors.Is, and ErrNotFound for 404.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d for %s", ErrFetchFailed, e.StatusCode, e.URL)
}

// Is lets callers test a StatusError against the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrFetchFailed:
		return true
	case ErrNotFound:
		return e.StatusCode == 404
	}
	return false
}
