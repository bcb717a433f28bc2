package export

import (
	"github.com/matzehuels/mapexport/pkg/units"
)

// Default settings of the export control.
const (
	DefaultFormat = "pdf"
	DefaultDPI    = 300
)

// DefaultPageSize is A4.
var DefaultPageSize = units.PageSize{297, 210}

// Settings is the user-facing configuration of an export. Format is kept
// as a string here because it comes from flags, config files and forms.
type Settings struct {
	PageSize    units.PageSize    `toml:"page_size" json:"page_size"`
	Orientation units.Orientation `toml:"orientation" json:"orientation"`
	Unit        units.Unit        `toml:"unit" json:"unit"`
	Format      string            `toml:"format" json:"format"`
	DPI         int               `toml:"dpi" json:"dpi"`
	Credential  string            `toml:"-" json:"-"`
}

// DefaultSettings returns A4, landscape, PDF at 300 dpi.
func DefaultSettings() Settings {
	return Settings{
		PageSize:    DefaultPageSize,
		Orientation: units.Landscape,
		Unit:        units.MM,
		Format:      DefaultFormat,
		DPI:         DefaultDPI,
	}
}

// Request resolves the orientation and parses the format. Portrait swaps
// the page size pair.
func (s Settings) Request() (Request, error) {
	format, err := ParseFormat(s.Format)
	if err != nil {
		return Request{}, &Error{Kind: KindValidation, Err: err}
	}
	w, h := s.PageSize.Oriented(s.Orientation)
	req := Request{
		Width:      w,
		Height:     h,
		Unit:       s.Unit,
		DPI:        s.DPI,
		Format:     format,
		Credential: s.Credential,
	}
	if err := req.Validate(); err != nil {
		return Request{}, &Error{Kind: KindValidation, Err: err}
	}
	return req, nil
}
