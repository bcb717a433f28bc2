package mapstyle

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// MaxLatitude is the latitude limit of the web mercator projection.
const MaxLatitude = 85.0511287798066

// MaxZoom is the highest camera zoom accepted.
const MaxZoom = 24

// ErrInvalidCamera is returned by [Camera.Validate].
var ErrInvalidCamera = errors.New("invalid camera")

// Camera is the view of the live map that the export reproduces.
type Camera struct {
	Center  orb.Point `json:"center"` // [lng, lat]
	Zoom    float64   `json:"zoom"`
	Bearing float64   `json:"bearing"`
	Pitch   float64   `json:"pitch"`
}

// Validate checks that the camera can be projected.
func (c Camera) Validate() error {
	lng, lat := c.Center.Lon(), c.Center.Lat()
	switch {
	case math.IsNaN(lng) || math.IsNaN(lat):
		return fmt.Errorf("%w: center is NaN", ErrInvalidCamera)
	case lat < -90 || lat > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCamera, lat)
	case c.Zoom < 0 || c.Zoom > MaxZoom:
		return fmt.Errorf("%w: zoom %v out of range [0, %d]", ErrInvalidCamera, c.Zoom, MaxZoom)
	case c.Pitch < 0 || c.Pitch > 85:
		return fmt.Errorf("%w: pitch %v out of range [0, 85]", ErrInvalidCamera, c.Pitch)
	}
	return nil
}

// Normalized returns the camera with longitude wrapped into [-180, 180),
// latitude clamped to the mercator limit and bearing wrapped into [0, 360).
func (c Camera) Normalized() Camera {
	lng := math.Mod(c.Center.Lon()+180, 360)
	if lng < 0 {
		lng += 360
	}
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, c.Center.Lat()))
	bearing := math.Mod(c.Bearing, 360)
	if bearing < 0 {
		bearing += 360
	}
	c.Center = orb.Point{lng - 180, lat}
	c.Bearing = bearing
	return c
}

// String formats the camera the way PDF metadata records it.
func (c Camera) String() string {
	return fmt.Sprintf("center: [%v, %v], zoom: %v", c.Center.Lon(), c.Center.Lat(), c.Zoom)
}
