package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP source decoder

	"github.com/aliskhannn/image-proxy/internal/model"
)

// maxDimension bounds the width and height a resize may produce.
const maxDimension = 16384

// Options configures the imaging backend.
type Options struct {
	JPEGQuality      int                  // 1-100, default 85
	PNGCompression   png.CompressionLevel // png.DefaultCompression when zero
	MaxSourcePixels  int                  // reject larger sources, 0 disables the check
	Watermark        image.Image          // mark used by Watermark specs, see NewMark
	WatermarkOpacity float64              // 0-1, default 1
}

// Imaging is an Engine backed by github.com/disintegration/imaging.
type Imaging struct {
	img  *image.NRGBA
	opts Options
}

// NewFactory returns a Factory creating Imaging engines with opts.
func NewFactory(opts Options) Factory {
	return func(src []byte) (Engine, error) {
		return NewImaging(src, opts)
	}
}

// NewImaging decodes src into a new working image.
func NewImaging(src []byte, opts Options) (*Imaging, error) {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 85
	}
	if opts.WatermarkOpacity <= 0 || opts.WatermarkOpacity > 1 {
		opts.WatermarkOpacity = 1
	}

	// Check the declared size before allocating the raster.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if opts.MaxSourcePixels > 0 && cfg.Width*cfg.Height > opts.MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, opts.MaxSourcePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &Imaging{img: imaging.Clone(img), opts: opts}, nil
}

// Bounds returns the size of the working image.
func (e *Imaging) Bounds() image.Rectangle {
	if e.img == nil {
		return image.Rectangle{}
	}
	return e.img.Bounds()
}

// Apply implements Engine. Each transform returns a new image, so the
// working image is only replaced once the whole pipeline succeeded.
func (e *Imaging) Apply(p model.Pipeline) error {
	if e.img == nil {
		return ErrConsumed
	}

	img := e.img
	for i, spec := range p {
		if spec == nil {
			return &TransformError{Index: i, Err: fmt.Errorf("%w: missing transform", ErrUnsupported)}
		}

		next, err := e.transform(img, spec)
		if err != nil {
			return &TransformError{Index: i, Kind: spec.Kind(), Err: err}
		}
		img = next
	}

	e.img = img
	return nil
}

// Generate implements Engine.
func (e *Imaging) Generate(format Format) ([]byte, error) {
	if e.img == nil {
		return nil, ErrConsumed
	}

	img := e.img
	e.img = nil

	f, err := imagingFormat(format)
	if err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}

	buf := new(bytes.Buffer)
	err = imaging.Encode(buf, img, f,
		imaging.JPEGQuality(e.opts.JPEGQuality),
		imaging.PNGCompressionLevel(e.opts.PNGCompression),
	)
	if err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}

	return buf.Bytes(), nil
}

func (e *Imaging) transform(img *image.NRGBA, spec model.TransformSpec) (*image.NRGBA, error) {
	switch s := spec.(type) {
	case model.Resize:
		return e.resize(img, s)
	case model.Crop:
		return crop(img, s)
	case model.ColorFilter:
		return applyColorFilter(img, s.Filter)
	case model.Watermark:
		return e.watermark(img, s)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, spec)
	}
}

func (e *Imaging) resize(img *image.NRGBA, s model.Resize) (*image.NRGBA, error) {
	if s.Width == 0 && s.Height == 0 {
		return nil, fmt.Errorf("%w: zero-sized resize target", ErrInvalidGeometry)
	}
	if s.Width > maxDimension || s.Height > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidGeometry, s.Width, s.Height, maxDimension)
	}

	switch s.Mode {
	case model.ResizeNormal:
	case model.ResizeSeamCarve:
		return nil, fmt.Errorf("%w: seam carving", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: resize mode %s", ErrUnsupported, s.Mode)
	}

	filter, err := resampleFilter(s.Filter)
	if err != nil {
		return nil, err
	}

	return imaging.Resize(img, int(s.Width), int(s.Height), filter), nil
}

func crop(img *image.NRGBA, s model.Crop) (*image.NRGBA, error) {
	b := img.Bounds()

	if s.X0 >= s.X1 || s.Y0 >= s.Y1 {
		return nil, fmt.Errorf("%w: empty crop (%d,%d)-(%d,%d)", ErrInvalidGeometry, s.X0, s.Y0, s.X1, s.Y1)
	}
	if uint64(s.X1) > uint64(b.Dx()) || uint64(s.Y1) > uint64(b.Dy()) {
		return nil, fmt.Errorf("%w: crop (%d,%d)-(%d,%d) on %dx%d image",
			ErrOutOfBounds, s.X0, s.Y0, s.X1, s.Y1, b.Dx(), b.Dy())
	}

	return imaging.Crop(img, image.Rect(int(s.X0), int(s.Y0), int(s.X1), int(s.Y1))), nil
}

func (e *Imaging) watermark(img *image.NRGBA, s model.Watermark) (*image.NRGBA, error) {
	if e.opts.Watermark == nil {
		return nil, fmt.Errorf("%w: no watermark configured", ErrUnsupported)
	}

	b := img.Bounds()
	if uint64(s.X) >= uint64(b.Dx()) || uint64(s.Y) >= uint64(b.Dy()) {
		return nil, fmt.Errorf("%w: watermark at (%d,%d) on %dx%d image", ErrOutOfBounds, s.X, s.Y, b.Dx(), b.Dy())
	}

	return imaging.Overlay(img, e.opts.Watermark, image.Pt(int(s.X), int(s.Y)), e.opts.WatermarkOpacity), nil
}

func imagingFormat(f Format) (imaging.Format, error) {
	switch f {
	case JPEG:
		return imaging.JPEG, nil
	case PNG:
		return imaging.PNG, nil
	case GIF:
		return imaging.GIF, nil
	case BMP:
		return imaging.BMP, nil
	case TIFF:
		return imaging.TIFF, nil
	case WEBP:
		return 0, fmt.Errorf("%w: no webp encoder", ErrUnsupportedFormat)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}
