package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Facing modes understood by cameras.
const (
	FacingEnvironment = "environment"
	FacingUser        = "user"
)

var (
	ErrCapabilityDenied = errors.New("camera capability denied")
	ErrCameraBusy       = fmt.Errorf("%w: camera is in use", ErrCapabilityDenied)
	ErrRequestTimeout   = fmt.Errorf("%w: no grant before timeout", ErrCapabilityDenied)
	ErrDecoderFault     = errors.New("decoder fault")
	ErrDecoderMissing   = errors.New("decoder unavailable")

	ErrSessionActive    = errors.New("capture session already active")
	ErrSessionClosed    = errors.New("capture session closed")
	ErrControllerClosed = errors.New("capture controller closed")
	ErrEmptyPayload     = errors.New("payload is empty")
)

// Constraints are the hints sent with a camera request.
type Constraints struct {
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// DefaultConstraints prefers the rear camera at 1280x720.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingEnvironment, Width: 1280, Height: 720}
}

// Camera grants exclusive streams. Acquire blocks until access is granted,
// denied, or ctx is done.
type Camera interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a bound live video stream.
type Stream interface {
	// Ready reports whether enough data is buffered to sample a frame.
	Ready() bool
	// Frame captures the current frame into an off-screen image.
	Frame(ctx context.Context) (image.Image, error)
	Release() error
}

// Decoder extracts one text payload from an image. An inconclusive attempt
// returns ("", nil); a non-nil error is a fault of the decode subsystem.
type Decoder interface {
	Available() bool
	Decode(img image.Image) (string, error)
}

// NoDecoder is used when the platform has no decode capability.
// Sessions then resolve only through manual entry or cancellation.
type NoDecoder struct{}

func (NoDecoder) Available() bool { return false }

func (NoDecoder) Decode(image.Image) (string, error) { return "", ErrDecoderMissing }
