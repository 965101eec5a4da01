package engine

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-proxy/internal/model"
)

// createPatternImage creates an image with a different color in each quadrant.
func createPatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.NRGBA
			switch {
			case x < width/2 && y < height/2:
				c = color.NRGBA{255, 0, 0, 255} // red top-left
			case x >= width/2 && y < height/2:
				c = color.NRGBA{0, 255, 0, 255} // green top-right
			case x < width/2:
				c = color.NRGBA{0, 0, 255, 255} // blue bottom-left
			default:
				c = color.NRGBA{255, 255, 255, 255} // white bottom-right
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEngine(t *testing.T, width, height int) *Imaging {
	t.Helper()
	e, err := NewImaging(encodePNG(t, createPatternImage(width, height)), Options{Watermark: NewMark("test")})
	require.NoError(t, err)
	return e
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestNewImaging_RejectsGarbage(t *testing.T) {
	_, err := NewImaging([]byte("definitely not an image"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestNewImaging_MaxSourcePixels(t *testing.T) {
	src := encodePNG(t, createPatternImage(100, 100))

	_, err := NewImaging(src, Options{MaxSourcePixels: 5000})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = NewImaging(src, Options{MaxSourcePixels: 10000})
	assert.NoError(t, err)
}

func TestApply_Resize(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	require.NoError(t, e.Apply(model.Pipeline{model.NewResize(50, 40, model.SampleLanczos3)}))
	assert.Equal(t, image.Rect(0, 0, 50, 40), e.Bounds())
}

func TestApply_ResizeKeepsAspectWithZeroDimension(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	require.NoError(t, e.Apply(model.Pipeline{model.NewResize(50, 0, model.SampleTriangle)}))
	assert.Equal(t, image.Rect(0, 0, 50, 40), e.Bounds())
}

func TestApply_ResizeEverySampleFilter(t *testing.T) {
	for _, f := range model.SampleFilters() {
		t.Run(f.String(), func(t *testing.T) {
			e := newTestEngine(t, 40, 40)
			require.NoError(t, e.Apply(model.Pipeline{model.NewResize(20, 10, f)}))
			assert.Equal(t, image.Rect(0, 0, 20, 10), e.Bounds())
		})
	}
}

func TestApply_ZeroSizedResize(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	err := e.Apply(model.Pipeline{model.NewResize(0, 0, model.SampleNearest)})

	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 0, terr.Index)
	assert.Equal(t, model.KindResize, terr.Kind)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestApply_SeamCarveUnsupported(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	err := e.Apply(model.Pipeline{model.NewSeamCarve(50, 50)})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, image.Rect(0, 0, 100, 80), e.Bounds())
}

func TestApply_Crop(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	require.NoError(t, e.Apply(model.Pipeline{model.Crop{X0: 10, Y0: 10, X1: 60, Y1: 30}}))
	assert.Equal(t, image.Rect(0, 0, 50, 20), e.Bounds())
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, e.img.NRGBAAt(0, 0))
}

func TestApply_FailureIsAtomic(t *testing.T) {
	e := newTestEngine(t, 100, 80)
	before := e.img

	err := e.Apply(model.Pipeline{
		model.NewResize(50, 40, model.SampleNearest),
		model.Crop{X0: 0, Y0: 0, X1: 60, Y1: 40},
	})

	var terr *TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, model.KindCrop, terr.Kind)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Contains(t, err.Error(), "spec 1 (crop)")

	assert.Same(t, before, e.img)
	assert.Equal(t, image.Rect(0, 0, 100, 80), e.Bounds())
}

func TestApply_OrderMatters(t *testing.T) {
	crop := model.Crop{X0: 0, Y0: 0, X1: 50, Y1: 50}
	resize := model.NewResize(200, 200, model.SampleNearest)

	first := newTestEngine(t, 100, 100)
	require.NoError(t, first.Apply(model.Pipeline{crop, resize}))
	a, err := first.Generate(PNG)
	require.NoError(t, err)

	second := newTestEngine(t, 100, 100)
	require.NoError(t, second.Apply(model.Pipeline{resize, crop}))
	b, err := second.Generate(PNG)
	require.NoError(t, err)

	w, h := decodedSize(t, a)
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, h)

	w, h = decodedSize(t, b)
	assert.Equal(t, 50, w)
	assert.Equal(t, 50, h)

	assert.NotEqual(t, a, b)
}

func TestApply_SequentialCalls(t *testing.T) {
	e := newTestEngine(t, 100, 100)

	require.NoError(t, e.Apply(model.Pipeline{model.Crop{X0: 0, Y0: 0, X1: 50, Y1: 50}}))
	require.NoError(t, e.Apply(model.Pipeline{model.NewResize(10, 10, model.SampleNearest)}))
	assert.Equal(t, image.Rect(0, 0, 10, 10), e.Bounds())
}

func TestApply_ColorFilters(t *testing.T) {
	t.Run("unspecified is identity", func(t *testing.T) {
		e := newTestEngine(t, 10, 10)
		before := e.img
		require.NoError(t, e.Apply(model.Pipeline{model.ColorFilter{Filter: model.FilterUnspecified}}))
		assert.Equal(t, before.Pix, e.img.Pix)
	})

	t.Run("oceanic tints towards blue", func(t *testing.T) {
		e := newTestEngine(t, 10, 10)
		require.NoError(t, e.Apply(model.Pipeline{model.ColorFilter{Filter: model.FilterOceanic}}))

		px := e.img.NRGBAAt(0, 0) // was pure red
		assert.Less(t, px.R, uint8(255))
		assert.Greater(t, px.B, uint8(0))
		assert.Equal(t, uint8(255), px.A)
	})

	t.Run("grayscale", func(t *testing.T) {
		e := newTestEngine(t, 10, 10)
		require.NoError(t, e.Apply(model.Pipeline{model.ColorFilter{Filter: model.FilterGrayscale}}))

		px := e.img.NRGBAAt(0, 0)
		assert.Equal(t, px.R, px.G)
		assert.Equal(t, px.G, px.B)
	})

	t.Run("invert", func(t *testing.T) {
		e := newTestEngine(t, 10, 10)
		require.NoError(t, e.Apply(model.Pipeline{model.ColorFilter{Filter: model.FilterInvert}}))
		assert.Equal(t, color.NRGBA{0, 255, 255, 255}, e.img.NRGBAAt(0, 0))
	})

	t.Run("every declared kind", func(t *testing.T) {
		for _, k := range model.FilterKinds() {
			e := newTestEngine(t, 8, 8)
			assert.NoError(t, e.Apply(model.Pipeline{model.ColorFilter{Filter: k}}), k.String())
			assert.Equal(t, image.Rect(0, 0, 8, 8), e.Bounds(), k.String())
		}
	})

	t.Run("undeclared kind fails", func(t *testing.T) {
		e := newTestEngine(t, 8, 8)
		err := e.Apply(model.Pipeline{model.ColorFilter{Filter: 250}})
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestResampleFilterTotal(t *testing.T) {
	for _, f := range model.SampleFilters() {
		rf, err := resampleFilter(f)
		require.NoError(t, err, f.String())
		assert.NotNil(t, rf.Kernel, f.String())
	}

	_, err := resampleFilter(model.SampleFilter(200))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestApply_Watermark(t *testing.T) {
	e := newTestEngine(t, 100, 80)
	// Left padding of the label: background only, no glyphs.
	before := e.img.NRGBAAt(56, 55)

	require.NoError(t, e.Apply(model.Pipeline{model.Watermark{X: 55, Y: 45}}))
	assert.Equal(t, image.Rect(0, 0, 100, 80), e.Bounds())
	assert.NotEqual(t, before, e.img.NRGBAAt(56, 55))
}

func TestApply_WatermarkOutsideImage(t *testing.T) {
	e := newTestEngine(t, 100, 80)

	err := e.Apply(model.Pipeline{model.Watermark{X: 100, Y: 0}})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestApply_WatermarkWithoutMark(t *testing.T) {
	e, err := NewImaging(encodePNG(t, createPatternImage(20, 20)), Options{})
	require.NoError(t, err)

	err = e.Apply(model.Pipeline{model.Watermark{}})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestGenerate_Formats(t *testing.T) {
	for _, f := range []Format{JPEG, PNG, GIF, BMP, TIFF} {
		t.Run(f.String(), func(t *testing.T) {
			e := newTestEngine(t, 30, 20)
			data, err := e.Generate(f)
			require.NoError(t, err)

			cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, f.String(), name)
			assert.Equal(t, 30, cfg.Width)
			assert.Equal(t, 20, cfg.Height)
		})
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	e := newTestEngine(t, 10, 10)

	_, err := e.Generate(WEBP)

	var eerr *EncodeError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, WEBP, eerr.Format)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestGenerate_ConsumesEngine(t *testing.T) {
	e := newTestEngine(t, 10, 10)

	_, err := e.Generate(PNG)
	require.NoError(t, err)

	_, err = e.Generate(PNG)
	assert.True(t, errors.Is(err, ErrConsumed))
	assert.ErrorIs(t, e.Apply(model.Pipeline{}), ErrConsumed)
}

func TestFactory(t *testing.T) {
	factory := NewFactory(Options{})

	e, err := factory(encodePNG(t, createPatternImage(10, 10)))
	require.NoError(t, err)
	require.NoError(t, e.Apply(model.Pipeline{}))

	data, err := e.Generate(JPEG)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"jpeg", JPEG},
		{"JPG", JPEG},
		{".png", PNG},
		{"gif", GIF},
		{"bmp", BMP},
		{"tif", TIFF},
		{"webp", WEBP},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("heic")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, "image/png", PNG.ContentType())
	assert.Equal(t, "application/octet-stream", Format(99).ContentType())
}

func TestNewMark(t *testing.T) {
	mark := NewMark("")
	b := mark.Bounds()
	assert.Greater(t, b.Dx(), 0)
	assert.Greater(t, b.Dy(), 0)
}
