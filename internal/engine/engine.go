// Package engine applies transform pipelines to images.
//
// An Engine is single use: it is created from the source bytes, receives one
// or more Apply calls and is consumed by Generate. Backends implement the
// Engine interface and are handed to the proxy through a Factory.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aliskhannn/image-proxy/internal/model"
)

var (
	// ErrDecode means the source bytes are not a readable image.
	ErrDecode = errors.New("cannot decode source image")
	// ErrConsumed is returned by an engine after Generate has been called.
	ErrConsumed = errors.New("engine already consumed")
	// ErrUnsupported marks a declared transform the backend has no kernel for.
	ErrUnsupported = errors.New("unsupported transform")
	// ErrOutOfBounds means the transform does not fit the current image.
	ErrOutOfBounds = errors.New("transform outside image bounds")
	// ErrInvalidGeometry means the transform would produce an unusable image.
	ErrInvalidGeometry = errors.New("invalid target geometry")
	// ErrUnsupportedFormat is returned for output formats without an encoder.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Engine applies pipelines to one working image and encodes the result.
type Engine interface {
	// Apply runs every spec of p in order. It either applies the whole
	// pipeline or leaves the working image unchanged and returns a
	// *TransformError.
	Apply(p model.Pipeline) error
	// Generate encodes the working image and consumes the engine.
	Generate(format Format) ([]byte, error)
}

// Factory creates an engine for the given source bytes.
type Factory func(src []byte) (Engine, error)

// TransformError reports which spec of a pipeline failed.
type TransformError struct {
	Index int
	Kind  model.Kind
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("spec %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// EncodeError reports a failure to produce the requested output format.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Format is an output container format.
type Format uint8

const (
	JPEG Format = iota + 1
	PNG
	GIF
	BMP
	TIFF
	WEBP
)

var formats = []struct {
	format      Format
	name        string
	contentType string
}{
	{JPEG, "jpeg", "image/jpeg"},
	{PNG, "png", "image/png"},
	{GIF, "gif", "image/gif"},
	{BMP, "bmp", "image/bmp"},
	{TIFF, "tiff", "image/tiff"},
	{WEBP, "webp", "image/webp"},
}

// ParseFormat parses a format name such as "png" or "jpg" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimPrefix(s, "."))
	switch name {
	case "jpg":
		name = "jpeg"
	case "tif":
		name = "tiff"
	}

	for _, f := range formats {
		if f.name == name {
			return f.format, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) String() string {
	for _, v := range formats {
		if v.format == f {
			return v.name
		}
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	for _, v := range formats {
		if v.format == f {
			return v.contentType
		}
	}
	return "application/octet-stream"
}
