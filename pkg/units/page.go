package units

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Orientation is the page orientation chosen by the user.
type Orientation int

const (
	Landscape Orientation = iota
	Portrait
)

// String returns "landscape" or "portrait".
func (o Orientation) String() string {
	if o == Portrait {
		return "portrait"
	}
	return "landscape"
}

// ParseOrientation parses "landscape" or "portrait" (also "l" and "p").
// An empty string means landscape.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "landscape", "l":
		return Landscape, nil
	case "portrait", "p":
		return Portrait, nil
	default:
		return Landscape, fmt.Errorf("invalid orientation: %q (must be landscape or portrait)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(b []byte) error {
	parsed, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// OrientationOf reports the orientation of a width x height page.
// A page is landscape only when it is strictly wider than it is tall.
func OrientationOf(width, height float64) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

// PageSize is a [width, height] pair in millimeters, landscape order for presets.
type PageSize [2]float64

// Oriented returns the width and height for orientation o. Portrait reverses
// the pair; landscape returns it unchanged.
func (p PageSize) Oriented(o Orientation) (width, height float64) {
	if o == Portrait {
		return p[1], p[0]
	}
	return p[0], p[1]
}

// String formats the size as "WxH".
func (p PageSize) String() string {
	return strconv.FormatFloat(p[0], 'f', -1, 64) + "x" + strconv.FormatFloat(p[1], 'f', -1, 64)
}

// UnmarshalJSON accepts a preset name ("A4"), a "WxH" string or a [w, h] array.
func (p *PageSize) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("page size must have exactly 2 values, got %d", len(pair))
		}
		*p = PageSize{pair[0], pair[1]}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("page size must be a name, \"WxH\" or [w, h]: %w", err)
	}
	parsed, err := ParsePageSize(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config files and flags.
func (p *PageSize) UnmarshalText(b []byte) error {
	parsed, err := ParsePageSize(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// presets are the supported paper sizes in millimeters, landscape order.
var presets = map[string]PageSize{
	"A2": {594, 420},
	"A3": {420, 297},
	"A4": {297, 210},
	"A5": {210, 148},
	"A6": {148, 105},
	"B2": {707, 500},
	"B3": {500, 353},
	"B4": {353, 250},
	"B5": {250, 176},
	"B6": {176, 125},
}

// NamedPageSize pairs a preset name with its dimensions.
type NamedPageSize struct {
	Name string   `json:"name"`
	Size PageSize `json:"size"`
}

// PageSizes lists the presets ordered by series then by size, largest first.
func PageSizes() []NamedPageSize {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]NamedPageSize, len(names))
	for i, name := range names {
		out[i] = NamedPageSize{Name: name, Size: presets[name]}
	}
	return out
}

// LookupPageSize returns the preset with the given name, case-insensitively.
func LookupPageSize(name string) (PageSize, bool) {
	p, ok := presets[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// ParsePageSize parses a preset name or a "WxH" string in millimeters.
func ParsePageSize(s string) (PageSize, error) {
	if p, ok := LookupPageSize(s); ok {
		return p, nil
	}
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return PageSize{}, fmt.Errorf("unknown page size: %q", s)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return PageSize{}, fmt.Errorf("invalid page width in %q: %w", s, err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return PageSize{}, fmt.Errorf("invalid page height in %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return PageSize{}, fmt.Errorf("page size must be positive: %q", s)
	}
	return PageSize{width, height}, nil
}

// DPIs is the set of resolutions an export may be rendered at.
var DPIs = []int{72, 96, 200, 300, 400}

// ValidDPI reports whether dpi is one of [DPIs].
func ValidDPI(dpi int) bool {
	return slices.Contains(DPIs, dpi)
}
