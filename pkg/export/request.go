package export

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/units"
)

// ErrInvalidRequest is wrapped by every [Request.Validate] failure.
var ErrInvalidRequest = errors.New("invalid export request")

// Request describes one export. Width and height are in Unit and already
// oriented: a portrait request has Width < Height.
type Request struct {
	Width      float64
	Height     float64
	Unit       units.Unit
	DPI        int
	Format     Format
	Credential string
}

// Validate checks the request before any rendering starts.
func (r Request) Validate() error {
	switch {
	case !(r.Width > 0) || !(r.Height > 0):
		return fmt.Errorf("%w: page size %vx%v must be positive", ErrInvalidRequest, r.Width, r.Height)
	case !units.ValidDPI(r.DPI):
		return fmt.Errorf("%w: dpi %d not in %v", ErrInvalidRequest, r.DPI, units.DPIs)
	case !r.Format.Valid():
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrUnsupportedFormat)
	}
	return nil
}

// Target returns the off-screen target size and pixel ratio.
func (r Request) Target() render.TargetOptions {
	return render.SizeFor(r.Width, r.Height, r.DPI, r.Unit)
}

// PageMM returns the page size in millimeters.
func (r Request) PageMM() (width, height float64) {
	return units.ToMM(r.Width, r.Unit), units.ToMM(r.Height, r.Unit)
}

// Orientation reports the page orientation implied by the size.
func (r Request) Orientation() units.Orientation {
	return units.OrientationOf(r.Width, r.Height)
}

// String describes the request for logs.
func (r Request) String() string {
	return strconv.FormatFloat(r.Width, 'f', -1, 64) + "x" +
		strconv.FormatFloat(r.Height, 'f', -1, 64) + r.Unit.String() +
		" @" + strconv.Itoa(r.DPI) + "dpi " + r.Format.String()
}
