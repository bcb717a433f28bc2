package mapstyle

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidStyle is returned when a style document cannot be used.
var ErrInvalidStyle = errors.New("invalid style")

// Style is a GL style document. Known top-level members are decoded into
// fields; everything else (sprite, glyphs, light, terrain...) is kept
// verbatim and written back by MarshalJSON.
type Style struct {
	Version  int
	Name     string
	Sources  map[string]Source
	Layers   []Layer
	Metadata map[string]any

	extra map[string]any
}

// Parse decodes and validates a style document.
func Parse(data []byte) (*Style, error) {
	var s Style
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the structural requirements the renderers rely on.
func (s *Style) Validate() error {
	if s.Version != 8 {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidStyle, s.Version)
	}
	seen := make(map[string]bool, len(s.Layers))
	for i, l := range s.Layers {
		id := l.ID()
		if id == "" {
			return fmt.Errorf("%w: layer %d has no id", ErrInvalidStyle, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate layer id %q", ErrInvalidStyle, id)
		}
		seen[id] = true
		if l.Type() == "" {
			return fmt.Errorf("%w: layer %q has no type", ErrInvalidStyle, id)
		}
		if src := l.Source(); src != "" {
			if _, ok := s.Sources[src]; !ok {
				return fmt.Errorf("%w: layer %q references unknown source %q", ErrInvalidStyle, id, src)
			}
		}
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Style) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Style{extra: raw}
	if v, ok := raw["version"].(float64); ok {
		s.Version = int(v)
	}
	if v, ok := raw["name"].(string); ok {
		s.Name = v
	}
	if v, ok := raw["metadata"].(map[string]any); ok {
		s.Metadata = v
	}
	if v, ok := raw["sources"].(map[string]any); ok {
		s.Sources = make(map[string]Source, len(v))
		for name, src := range v {
			m, ok := src.(map[string]any)
			if !ok {
				return fmt.Errorf("source %q is not an object", name)
			}
			s.Sources[name] = Source(m)
		}
	}
	if v, ok := raw["layers"].([]any); ok {
		s.Layers = make([]Layer, 0, len(v))
		for i, l := range v {
			m, ok := l.(map[string]any)
			if !ok {
				return fmt.Errorf("layer %d is not an object", i)
			}
			s.Layers = append(s.Layers, Layer(m))
		}
	}
	for _, k := range []string{"version", "name", "metadata", "sources", "layers"} {
		delete(raw, k)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Style) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.extra)+5)
	for k, v := range s.extra {
		out[k] = v
	}
	out["version"] = s.Version
	if s.Name != "" {
		out["name"] = s.Name
	}
	if s.Metadata != nil {
		out["metadata"] = s.Metadata
	}
	sources := s.Sources
	if sources == nil {
		sources = map[string]Source{}
	}
	out["sources"] = sources
	layers := s.Layers
	if layers == nil {
		layers = []Layer{}
	}
	out["layers"] = layers
	return json.Marshal(out)
}

// Clone returns a deep copy of the style.
func (s *Style) Clone() *Style {
	c := &Style{
		Version:  s.Version,
		Name:     s.Name,
		Metadata: deepCopyMap(s.Metadata),
		extra:    deepCopyMap(s.extra),
	}
	if s.Sources != nil {
		c.Sources = make(map[string]Source, len(s.Sources))
		for k, v := range s.Sources {
			c.Sources[k] = Source(deepCopyMap(v))
		}
	}
	if s.Layers != nil {
		c.Layers = make([]Layer, len(s.Layers))
		for i, l := range s.Layers {
			c.Layers[i] = Layer(deepCopyMap(l))
		}
	}
	return c
}

// Sanitize returns a deep copy of style in which every source property
// with a falsy value (null, false, 0, NaN or "") has been removed.
// Empty arrays and objects are kept. The input is not modified.
func Sanitize(style *Style) *Style {
	if style == nil {
		return nil
	}
	c := style.Clone()
	for _, src := range c.Sources {
		for k, v := range src {
			if falsy(v) {
				delete(src, k)
			}
		}
	}
	return c
}

func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0 || math.IsNaN(x)
	case int:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}
		return out
	case Source:
		return Source(deepCopyMap(x))
	case Layer:
		return Layer(deepCopyMap(x))
	}
	return v
}

// Source is the raw property map of a style source.
type Source map[string]any

// Type returns the source type (raster, vector, raster-dem, geojson...).
func (s Source) Type() string { return stringProp(s, "type") }

// URL returns the TileJSON url, if any.
func (s Source) URL() string { return stringProp(s, "url") }

// Tiles returns the tile URL templates.
func (s Source) Tiles() []string {
	raw, _ := s["tiles"].([]any)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if str, ok := t.(string); ok && str != "" {
			out = append(out, str)
		}
	}
	if len(out) == 0 {
		if typed, ok := s["tiles"].([]string); ok {
			return typed
		}
	}
	return out
}

// TileSize returns the tile edge in logical pixels (default 512).
func (s Source) TileSize() int {
	if v := numberProp(s, "tileSize", 0); v > 0 {
		return int(v)
	}
	return 512
}

// Scheme returns "xyz" or "tms".
func (s Source) Scheme() string {
	if stringProp(s, "scheme") == "tms" {
		return "tms"
	}
	return "xyz"
}

// MinZoom returns the lowest zoom level tiles exist for.
func (s Source) MinZoom() int { return int(numberProp(s, "minzoom", 0)) }

// MaxZoom returns the highest zoom level tiles exist for.
func (s Source) MaxZoom() int { return int(numberProp(s, "maxzoom", 22)) }

// Bounds returns the geographic extent of the source.
// Sources without bounds cover the whole mercator world.
func (s Source) Bounds() orb.Bound {
	world := orb.Bound{Min: orb.Point{-180, -MaxLatitude}, Max: orb.Point{180, MaxLatitude}}
	raw, ok := s["bounds"].([]any)
	if !ok || len(raw) != 4 {
		return world
	}
	var v [4]float64
	for i, e := range raw {
		f, ok := e.(float64)
		if !ok {
			return world
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
}

// Layer is the raw property map of a style layer.
type Layer map[string]any

// ID returns the layer id.
func (l Layer) ID() string { return stringProp(l, "id") }

// Type returns the layer type.
func (l Layer) Type() string { return stringProp(l, "type") }

// Source returns the name of the source the layer draws from.
func (l Layer) Source() string { return stringProp(l, "source") }

// MinZoom returns the layer's minzoom (default 0).
func (l Layer) MinZoom() float64 { return numberProp(l, "minzoom", 0) }

// MaxZoom returns the layer's maxzoom (default 24).
func (l Layer) MaxZoom() float64 { return numberProp(l, "maxzoom", 24) }

// Visible reports whether the layer draws at zoom.
// A layer is hidden at and above its maxzoom.
func (l Layer) Visible(zoom float64) bool {
	if layout, ok := l["layout"].(map[string]any); ok {
		if layout["visibility"] == "none" {
			return false
		}
	}
	return zoom >= l.MinZoom() && zoom < l.MaxZoom()
}

// PaintNumber returns a constant numeric paint property, or def when the
// property is missing or an expression.
func (l Layer) PaintNumber(name string, def float64) float64 {
	paint, ok := l["paint"].(map[string]any)
	if !ok {
		return def
	}
	return numberProp(paint, name, def)
}

// PaintColor returns a constant color paint property.
func (l Layer) PaintColor(name string) (color.NRGBA, bool) {
	paint, ok := l["paint"].(map[string]any)
	if !ok {
		return color.NRGBA{}, false
	}
	str, ok := paint[name].(string)
	if !ok {
		return color.NRGBA{}, false
	}
	c, err := ParseColor(str)
	return c, err == nil
}

func stringProp(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func numberProp(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
