package engine

import (
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	defaultWatermarkText = "image-proxy"
	watermarkPadding     = 4.0
)

// NewMark renders text as a watermark label: white text on a translucent
// dark rounded box. The label is rendered once and shared by all engines.
func NewMark(text string) image.Image {
	if text == "" {
		text = defaultWatermarkText
	}

	face := basicfont.Face7x13

	// Measure the text on a throwaway context to size the label.
	probe := gg.NewContext(1, 1)
	probe.SetFontFace(face)
	tw, th := probe.MeasureString(text)

	w := tw + 2*watermarkPadding
	h := th + 2*watermarkPadding

	dc := gg.NewContext(int(w+0.5), int(h+0.5))
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRoundedRectangle(0, 0, w, h, 3)
	dc.Fill()

	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, w/2, h/2, 0.5, 0.5)

	return dc.Image()
}
