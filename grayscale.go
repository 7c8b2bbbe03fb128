package facefind

import (
	"image"
	"image/color"

	pigo "github.com/esimov/pigo/core"
)

// Raster is a decoded single-channel 8-bit image, stored row by row.
type Raster struct {
	Pixels []uint8
	Width  int
	Height int
}

// NewRaster converts an image to grayscale using the BT.601 luminance weights.
// The common decoder outputs are read directly, without an intermediate RGBA copy.
func NewRaster(img image.Image) *Raster {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	pixels := make([]uint8, width*height)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pixels[y*width:(y+1)*width], src.Pix[si:si+width])
		}
	case *image.NRGBA:
		for y := 0; y < height; y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < width; x++ {
				pixels[y*width+x] = luminance(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
				si += 4
			}
		}
	case *image.YCbCr:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				pixels[y*width+x] = luminance(r, g, bl)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				pixels[y*width+x] = luminance(c.R, c.G, c.B)
			}
		}
	}

	return &Raster{Pixels: pixels, Width: width, Height: height}
}

// At returns the intensity at (x, y).
func (r *Raster) At(x, y int) uint8 {
	return r.Pixels[y*r.Width+x]
}

// Bounds returns the raster rectangle, anchored at the origin.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// Gray exposes the raster as an *image.Gray sharing the same pixel buffer.
func (r *Raster) Gray() *image.Gray {
	return &image.Gray{
		Pix:    r.Pixels,
		Stride: r.Width,
		Rect:   r.Bounds(),
	}
}

func (r *Raster) imageParams() pigo.ImageParams {
	return pigo.ImageParams{
		Pixels: r.Pixels,
		Rows:   r.Height,
		Cols:   r.Width,
		Dim:    r.Width,
	}
}

// luminance weighs the channels as 0.299 R + 0.587 G + 0.114 B, rounded.
func luminance(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}
