package engine

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/aliskhannn/image-proxy/internal/model"
)

// tintAmount is how far the preset filters move each pixel towards their color.
const tintAmount = 0.2

var (
	oceanic = rgb(0, 89, 173)
	islands = rgb(0, 24, 95)
	marine  = rgb(0, 14, 119)
)

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// resampleFilter maps a declared sample filter to an imaging filter.
// Undefined resamples with the nearest neighbour.
func resampleFilter(f model.SampleFilter) (imaging.ResampleFilter, error) {
	switch f {
	case model.SampleUndefined, model.SampleNearest:
		return imaging.NearestNeighbor, nil
	case model.SampleTriangle:
		return imaging.Linear, nil
	case model.SampleCatmullRom:
		return imaging.CatmullRom, nil
	case model.SampleGaussian:
		return imaging.Gaussian, nil
	case model.SampleLanczos3:
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("%w: sample filter %s", ErrUnsupported, f)
	}
}

// applyColorFilter maps a declared filter kind to its kernel.
// Unspecified is the identity.
func applyColorFilter(img *image.NRGBA, kind model.FilterKind) (*image.NRGBA, error) {
	switch kind {
	case model.FilterUnspecified:
		return img, nil
	case model.FilterOceanic:
		return tint(img, oceanic, tintAmount), nil
	case model.FilterIslands:
		return tint(img, islands, tintAmount), nil
	case model.FilterMarine:
		return tint(img, marine, tintAmount), nil
	case model.FilterGrayscale:
		return imaging.Clone(effect.Grayscale(img)), nil
	case model.FilterSepia:
		return imaging.Clone(effect.Sepia(img)), nil
	case model.FilterInvert:
		return imaging.Clone(effect.Invert(img)), nil
	default:
		return nil, fmt.Errorf("%w: filter %s", ErrUnsupported, kind)
	}
}

// tint blends every visible pixel towards c by amount, keeping its alpha.
func tint(img image.Image, c colorful.Color, amount float64) *image.NRGBA {
	out := adjust.Apply(img, func(px color.RGBA) color.RGBA {
		src, ok := colorful.MakeColor(px)
		if !ok {
			return px
		}

		r, g, b := src.BlendRgb(c, amount).Clamped().RGB255()

		// adjust.Apply works on premultiplied pixels.
		return color.RGBA{
			R: premultiply(r, px.A),
			G: premultiply(g, px.A),
			B: premultiply(b, px.A),
			A: px.A,
		}
	})

	return imaging.Clone(out)
}

func premultiply(v, a uint8) uint8 {
	return uint8(uint16(v) * uint16(a) / 255)
}
