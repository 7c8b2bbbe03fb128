package facefind

import (
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// Default detection parameters.
const (
	DefaultScaleFactor  = 1.1
	DefaultMinNeighbors = 5
	DefaultShiftFactor  = 0.1
)

// Params controls the multi-scale scan and the grouping of raw candidates.
// ScaleFactor: growth of the detection window between two scan passes, must be greater than 1.
// MinNeighbors: minimum number of raw candidates a group needs to be reported. Zero disables grouping.
// MinSize: smallest window side to scan. Zero means the cascade base size.
// MaxSize: largest window side to scan. Zero means the shortest raster side.
// ShiftFactor: window step as a fraction of the window side.
type Params struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
}

// DefaultParams returns the reference detection parameters.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  DefaultScaleFactor,
		MinNeighbors: DefaultMinNeighbors,
		ShiftFactor:  DefaultShiftFactor,
	}
}

// Validate reports malformed parameters as ErrInvalidParameters.
func (p Params) Validate() error {
	switch {
	case !(p.ScaleFactor > 1.0):
		return errors.Wrapf(ErrInvalidParameters, "scale factor must be greater than 1.0, got %v", p.ScaleFactor)
	case p.MinNeighbors < 0:
		return errors.Wrapf(ErrInvalidParameters, "min neighbors must not be negative, got %d", p.MinNeighbors)
	case p.MinSize < 0:
		return errors.Wrapf(ErrInvalidParameters, "min size must not be negative, got %d", p.MinSize)
	case p.MaxSize < 0:
		return errors.Wrapf(ErrInvalidParameters, "max size must not be negative, got %d", p.MaxSize)
	case p.MaxSize > 0 && p.MaxSize < p.MinSize:
		return errors.Wrapf(ErrInvalidParameters, "max size %d is below min size %d", p.MaxSize, p.MinSize)
	case !(p.ShiftFactor > 0 && p.ShiftFactor <= 1):
		return errors.Wrapf(ErrInvalidParameters, "shift factor must be in (0, 1], got %v", p.ShiftFactor)
	}
	return nil
}

// Candidate is a window that survived every stage of the cascade.
type Candidate struct {
	Box
	Score float32
}

// Detector runs a cascade over rasters with a fixed set of parameters.
// It holds no per-call state and is safe for concurrent use.
type Detector struct {
	cascade *Cascade
	params  Params
}

// NewDetector binds a cascade to validated parameters.
func NewDetector(c *Cascade, p Params) (*Detector, error) {
	if c == nil {
		return nil, errors.Wrap(ErrInvalidCascade, "no cascade provided")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cascade: c, params: p}, nil
}

// Params returns the parameters the detector was built with.
func (d *Detector) Params() Params {
	return d.params
}

// Detect returns the face boxes found in r.
func (d *Detector) Detect(r *Raster) []Box {
	return Group(d.Scan(r), d.params.MinNeighbors, r.Width, r.Height)
}

// Scan slides the detection window over every scale and returns the raw
// candidates in scan order: by scale, then row, then column.
func (d *Detector) Scan(r *Raster) []Candidate {
	var cands []Candidate

	for _, scale := range d.scales(r.Width, r.Height) {
		// Restrict the classifier to a single scale. Its own scale step is
		// set to 2 so that its internal loop ends after this pass.
		cp := pigo.CascadeParams{
			MinSize:     scale,
			MaxSize:     scale,
			ShiftFactor: d.params.ShiftFactor,
			ScaleFactor: 2,
			ImageParams: r.imageParams(),
		}
		for _, det := range d.cascade.classifier.RunCascade(cp, 0) {
			box := Box{
				X: det.Col - det.Scale/2,
				Y: det.Row - det.Scale/2,
				W: det.Scale,
				H: det.Scale,
			}.clamp(r.Width, r.Height)

			if box.W > 0 && box.H > 0 {
				cands = append(cands, Candidate{Box: box, Score: det.Q})
			}
		}
	}
	return cands
}

// scales lists the window sides to scan over a width x height raster.
func (d *Detector) scales(width, height int) []int {
	upper := min(width, height)
	if d.params.MaxSize > 0 {
		upper = min(upper, d.params.MaxSize)
	}

	var scales []int
	for scale := max(d.cascade.BaseSize, d.params.MinSize); scale <= upper; {
		scales = append(scales, scale)

		next := int(float64(scale) * d.params.ScaleFactor)
		if next <= scale {
			next = scale + 1
		}
		scale = next
	}
	return scales
}
