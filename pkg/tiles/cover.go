package tiles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
)

// earthCircumference is the web mercator world width in meters.
const earthCircumference = 2 * math.Pi * 6378137

// coverEpsilon keeps clamped edges strictly inside the tile grid.
const coverEpsilon = 1e-9

// Cover returns the tiles at zoom z intersecting bound. The bound is
// clamped to the mercator latitude limit and the antimeridian first.
func Cover(bound orb.Bound, z maptile.Zoom) maptile.Set {
	maxLat := mapstyle.MaxLatitude - coverEpsilon
	clamped := orb.Bound{
		Min: orb.Point{math.Max(bound.Min.Lon(), -180), math.Max(bound.Min.Lat(), -maxLat)},
		Max: orb.Point{math.Min(bound.Max.Lon(), 180-coverEpsilon), math.Min(bound.Max.Lat(), maxLat)},
	}
	if clamped.Min.Lon() >= clamped.Max.Lon() || clamped.Min.Lat() >= clamped.Max.Lat() {
		return maptile.Set{}
	}

	n := uint32(1) << uint32(z)
	out := make(maptile.Set)
	for t := range tilecover.Bound(clamped, z) {
		if t.X < n && t.Y < n {
			out[t] = true
		}
	}
	return out
}

// Intersect reports whether two bounds overlap.
func Intersect(a, b orb.Bound) bool {
	return a.Min.Lon() <= b.Max.Lon() && a.Max.Lon() >= b.Min.Lon() &&
		a.Min.Lat() <= b.Max.Lat() && a.Max.Lat() >= b.Min.Lat()
}

// ExpandOptions controls template expansion.
type ExpandOptions struct {
	// Scheme is "xyz" (default) or "tms".
	Scheme string
	// Subdomains fill {s}; defaults to a, b, c.
	Subdomains []string
	// PixelRatio selects "@2x" for {ratio} when >= 2.
	PixelRatio float64
}

// Expand fills the placeholders of a tile URL template:
// {z} {x} {y} {s} {quadkey} {bbox-epsg-3857} {ratio}.
func Expand(template string, t maptile.Tile, opts ExpandOptions) string {
	y := t.Y
	if opts.Scheme == "tms" {
		y = flipY(t)
	}
	subdomains := opts.Subdomains
	if len(subdomains) == 0 {
		subdomains = []string{"a", "b", "c"}
	}
	ratio := ""
	if opts.PixelRatio >= 2 {
		ratio = "@2x"
	}

	r := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(t.Z), 10),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
		"{s}", subdomains[int(t.X+t.Y)%len(subdomains)],
		"{quadkey}", Quadkey(t),
		"{bbox-epsg-3857}", bbox3857(t),
		"{ratio}", ratio,
	)
	return r.Replace(template)
}

// Quadkey returns the Bing-style quadkey of t.
func Quadkey(t maptile.Tile) string {
	var b strings.Builder
	for i := int(t.Z); i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << uint(i-1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

func bbox3857(t maptile.Tile) string {
	size := earthCircumference / float64(uint64(1)<<uint(t.Z))
	half := earthCircumference / 2
	minX := float64(t.X)*size - half
	maxY := half - float64(t.Y)*size
	return fmt.Sprintf("%s,%s,%s,%s",
		formatMeters(minX), formatMeters(maxY-size), formatMeters(minX+size), formatMeters(maxY))
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
