package facefind

import "github.com/pkg/errors"

// Sentinel errors returned by the detection pipeline. Callers should match
// them with errors.Is, since they are usually wrapped with more context.
var (
	// ErrMissingInput is reported by request handlers when no image was uploaded.
	ErrMissingInput = errors.New("no file")

	// ErrInvalidImage means the bytes do not decode to a non-empty image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrImageTooLarge means the image declares more pixels than allowed.
	ErrImageTooLarge = errors.New("image too large")

	// ErrInvalidParameters means the detection configuration is malformed.
	ErrInvalidParameters = errors.New("invalid detection parameters")

	// ErrInvalidCascade means the cascade classifier data could not be unpacked.
	ErrInvalidCascade = errors.New("invalid cascade")
)
