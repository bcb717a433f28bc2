package units

import (
	"fmt"
	"strings"
)

// Unit is the physical unit a page length is expressed in.
type Unit int

const (
	MM Unit = iota
	Inch
)

// DefaultDPI is the reference pixel density of a CSS pixel.
const DefaultDPI = 96

// MMPerInch is the number of millimeters in an inch.
const MMPerInch = 25.4

// ToPixels converts length in unit to a pixel count at dpi.
func ToPixels(length, dpi float64, unit Unit) float64 {
	if unit == Inch {
		return length * dpi
	}
	return length * (dpi / MMPerInch)
}

// ToMM converts length in unit to millimeters.
func ToMM(length float64, unit Unit) float64 {
	if unit == Inch {
		return length * MMPerInch
	}
	return length
}

// String returns the short unit name ("mm" or "in").
func (u Unit) String() string {
	if u == Inch {
		return "in"
	}
	return "mm"
}

// ParseUnit parses "mm", "in" or "inch". An empty string means millimeters.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mm":
		return MM, nil
	case "in", "inch", "inches":
		return Inch, nil
	default:
		return MM, fmt.Errorf("invalid unit: %q (must be mm or in)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (u Unit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Unit) UnmarshalText(b []byte) error {
	parsed, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
