package facefind

import "image"

// Box is an axis-aligned face rectangle in raster pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// X2 returns the exclusive right edge.
func (b Box) X2() int { return b.X + b.W }

// Y2 returns the exclusive bottom edge.
func (b Box) Y2() int { return b.Y + b.H }

// clamp trims the box to a width x height raster.
func (b Box) clamp(width, height int) Box {
	x1, y1 := max(b.X, 0), max(b.Y, 0)
	x2, y2 := min(b.X2(), width), min(b.Y2(), height)
	return Box{X: x1, Y: y1, W: max(x2-x1, 0), H: max(y2-y1, 0)}
}

// Result is the outcome of a single detection request.
type Result struct {
	Boxes []Box `json:"boxes"`
	Count int   `json:"count"`
}

// NewResult wraps the boxes, keeping Count in sync and never returning a nil slice.
func NewResult(boxes []Box) *Result {
	if boxes == nil {
		boxes = []Box{}
	}
	return &Result{
		Boxes: boxes,
		Count: len(boxes),
	}
}
