package model

import "fmt"

// Kind identifies a transform variant. The numeric values are part of the
// token wire format and must never be renumbered; new kinds are appended.
type Kind uint8

const (
	KindResize      Kind = 1
	KindCrop        Kind = 2
	KindColorFilter Kind = 3
	KindWatermark   Kind = 4
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindResize:
		return "resize"
	case KindCrop:
		return "crop"
	case KindColorFilter:
		return "filter"
	case KindWatermark:
		return "watermark"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TransformSpec is a single step of a pipeline. It is implemented only by the
// value types of this package, so a spec cannot be changed after it has been
// built.
type TransformSpec interface {
	Kind() Kind
	Validate() error
}

// Resize scales the image to Width x Height.
// A zero dimension keeps the aspect ratio.
type Resize struct {
	Width  uint32
	Height uint32
	Mode   ResizeMode
	Filter SampleFilter
}

// Crop keeps the rectangle [X0, X1) x [Y0, Y1).
type Crop struct {
	X0 uint32
	Y0 uint32
	X1 uint32
	Y1 uint32
}

// ColorFilter applies a named color filter to the whole image.
type ColorFilter struct {
	Filter FilterKind
}

// Watermark places the watermark with its top-left corner at (X, Y).
type Watermark struct {
	X uint32
	Y uint32
}

func (Resize) Kind() Kind      { return KindResize }
func (Crop) Kind() Kind        { return KindCrop }
func (ColorFilter) Kind() Kind { return KindColorFilter }
func (Watermark) Kind() Kind   { return KindWatermark }

// Validate checks the enum fields of the resize.
func (r Resize) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("resize: invalid mode %d", uint8(r.Mode))
	}
	if !r.Filter.Valid() {
		return fmt.Errorf("resize: invalid sample filter %d", uint8(r.Filter))
	}
	return nil
}

// Validate checks that the crop rectangle is not inverted.
// Whether it fits the image is only known while applying it.
func (c Crop) Validate() error {
	if c.X0 >= c.X1 || c.Y0 >= c.Y1 {
		return fmt.Errorf("crop: empty rectangle (%d,%d)-(%d,%d)", c.X0, c.Y0, c.X1, c.Y1)
	}
	return nil
}

// Validate checks the filter kind.
func (f ColorFilter) Validate() error {
	if !f.Filter.Valid() {
		return fmt.Errorf("filter: invalid kind %d", uint8(f.Filter))
	}
	return nil
}

// Validate always succeeds; the position is checked against the image later.
func (Watermark) Validate() error { return nil }

// NewResize returns a normal resize using the given sample filter.
func NewResize(width, height uint32, filter SampleFilter) Resize {
	return Resize{Width: width, Height: height, Mode: ResizeNormal, Filter: filter}
}

// NewSeamCarve returns a content-aware resize.
func NewSeamCarve(width, height uint32) Resize {
	return Resize{Width: width, Height: height, Mode: ResizeSeamCarve, Filter: SampleUndefined}
}

// Pipeline is an ordered list of transforms. Transforms are applied in list
// order and the order is preserved by the token encoding.
type Pipeline []TransformSpec

// Validate checks every spec of the pipeline and reports the first invalid
// one together with its position.
func (p Pipeline) Validate() error {
	for i, spec := range p {
		if spec == nil {
			return fmt.Errorf("spec %d: missing transform", i)
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("spec %d: %w", i, err)
		}
	}
	return nil
}
