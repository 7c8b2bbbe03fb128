package facefind

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/esimov/facefind/utils"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// Style selects how detected faces are rendered on the output image.
type Style string

const (
	Outline Style = "outline"
	Blur    Style = "blur"
)

// OutlineColor is the stroke color of the face rectangles.
var OutlineColor = color.NRGBA{R: 0x00, G: 0xe6, B: 0x76, A: 0xff}

// ParseStyle maps a style name to a Style. An empty name selects Outline.
func ParseStyle(name string) (Style, error) {
	switch Style(name) {
	case "", Outline:
		return Outline, nil
	case Blur:
		return Blur, nil
	}
	return "", errors.Wrapf(ErrInvalidParameters, "unknown annotation style %q", name)
}

// Annotate returns a copy of img with every box rendered in the given style.
// The source image is left untouched.
func Annotate(img image.Image, boxes []Box, style Style) *image.NRGBA {
	dst := imaging.Clone(img)
	if len(boxes) == 0 {
		return dst
	}

	switch style {
	case Blur:
		for _, b := range boxes {
			blurRegion(dst, b.Rect())
		}
		return dst
	default:
		return drawOutlines(dst, boxes)
	}
}

// drawOutlines strokes a rectangle around each box.
func drawOutlines(img *image.NRGBA, boxes []Box) *image.NRGBA {
	dc := gg.NewContextForImage(img)
	dc.SetColor(OutlineColor)

	for _, b := range boxes {
		dc.SetLineWidth(float64(utils.Max(2, b.W/40)))
		dc.DrawRectangle(float64(b.X), float64(b.Y), float64(b.W), float64(b.H))
		dc.Stroke()
	}
	return imaging.Clone(dc.Image())
}

// blurRegion replaces rect with a blurred copy of itself.
func blurRegion(img *image.NRGBA, rect image.Rectangle) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	region := imaging.Crop(img, rect)
	w, h := region.Bounds().Dx(), region.Bounds().Dy()

	radius := utils.Min(utils.Max(1, utils.Min(w, h)/4), maxBlurRadius)
	region = Stackblur(region, uint32(w), uint32(h), uint32(radius))

	draw.Draw(img, rect, region, image.Point{}, draw.Src)
}
