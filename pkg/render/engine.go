package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/matzehuels/mapexport/pkg/cache"
	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/tiles"
	"github.com/matzehuels/mapexport/pkg/units"
)

var (
	// ErrInvalidTarget is returned when target options or the snapshot are unusable.
	ErrInvalidTarget = errors.New("invalid render target")

	// ErrUnavailable is returned when an engine cannot start its backend.
	ErrUnavailable = errors.New("render engine unavailable")
)

// Snapshot is the map state captured at the start of an export.
// It must not be modified while a target renders it.
type Snapshot struct {
	Camera    mapstyle.Camera
	Style     *mapstyle.Style
	Transform tiles.RequestTransform
}

// Hash identifies the snapshot's camera and style for artifact caching.
// The request transform is not part of the hash.
func (s Snapshot) Hash() (string, error) {
	data, err := json.Marshal(struct {
		Camera mapstyle.Camera `json:"camera"`
		Style  *mapstyle.Style `json:"style"`
	}{s.Camera, s.Style})
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}

// TargetOptions sizes an off-screen target.
type TargetOptions struct {
	Width      int     // canvas width in device pixels
	Height     int     // canvas height in device pixels
	PixelRatio float64 // device pixels per logical (96 dpi) pixel
}

// SizeFor computes target options for a page of width x height in unit
// printed at dpi. The logical viewport is the page at 96 dpi and the
// pixel ratio is dpi/96.
func SizeFor(width, height float64, dpi int, unit units.Unit) TargetOptions {
	d := float64(dpi)
	return TargetOptions{
		Width:      int(math.Round(units.ToPixels(width, d, unit))),
		Height:     int(math.Round(units.ToPixels(height, d, unit))),
		PixelRatio: d / units.DefaultDPI,
	}
}

// LogicalSize returns the viewport size in logical pixels.
func (o TargetOptions) LogicalSize() (w, h float64) {
	return float64(o.Width) / o.PixelRatio, float64(o.Height) / o.PixelRatio
}

// Validate checks that the options describe a drawable canvas.
func (o TargetOptions) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidTarget, o.Width, o.Height)
	}
	if !(o.PixelRatio > 0) || math.IsInf(o.PixelRatio, 0) {
		return fmt.Errorf("%w: pixel ratio %v", ErrInvalidTarget, o.PixelRatio)
	}
	return nil
}

// Engine creates off-screen render targets.
type Engine interface {
	// NewTarget builds a target for snap and starts loading it.
	NewTarget(ctx context.Context, snap Snapshot, opts TargetOptions) (Target, error)

	// Live reports how many targets are open.
	Live() int
}

// Target is an off-screen map instance. It is non-interactive, draws no
// attribution and does not fade tiles in.
type Target interface {
	// Idle returns the future that resolves when rendering has settled.
	// Every call returns the same future.
	Idle() *Future

	// Close aborts loading and releases the target. It is idempotent.
	Close() error
}

// Tracker counts open targets for an engine.
type Tracker struct {
	n atomic.Int64
}

// Open records a new target.
func (t *Tracker) Open() { t.n.Add(1) }

// Closed records a released target.
func (t *Tracker) Closed() { t.n.Add(-1) }

// Live returns the number of open targets.
func (t *Tracker) Live() int { return int(t.n.Load()) }

func validateSnapshot(snap Snapshot) error {
	if snap.Style == nil {
		return fmt.Errorf("%w: snapshot has no style", ErrInvalidTarget)
	}
	if err := snap.Camera.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return nil
}
