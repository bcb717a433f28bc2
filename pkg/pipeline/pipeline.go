// Package pipeline runs the complete map export: load the style, build the
// snapshot, render it off-screen, encode and deliver.
//
// The CLI and the HTTP service both go through a [Runner] so that style
// loading, artifact caching and credential scoping behave the same on every
// entry point.
//
// # Stages
//
//  1. Style: parse an inline document or fetch style_url through the
//     configured fetcher (same retry, cache and credential as tiles)
//  2. Export: hand the snapshot to an [export.Exporter] built for this run
//  3. Cache: store the encoded artifact under the snapshot hash and the
//     export parameters, so an identical request is served without rendering
//
// # Usage
//
//	runner := pipeline.NewRunner(engine, fetcher, c, nil, logger)
//	opts := pipeline.Options{
//	    StyleURL: "https://demotiles.maplibre.org/style.json",
//	    Camera:   mapstyle.Camera{Center: orb.Point{13.4, 52.5}, Zoom: 10},
//	    Format:   "png",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.Artifact.Data
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/render/sink"
	"github.com/matzehuels/mapexport/pkg/units"
)

// ErrNoStyle is returned when neither an inline style nor a style URL is set.
var ErrNoStyle = errors.New("style or style_url is required")

// Options describes one export. It is also the JSON body accepted by the
// HTTP service; zero fields take the runner's defaults.
type Options struct {
	// Exactly one of Style and StyleURL must be set.
	Style    json.RawMessage `json:"style,omitempty"`
	StyleURL string          `json:"style_url,omitempty"`

	mapstyle.Camera

	PageSize    units.PageSize     `json:"page_size,omitempty"`
	Orientation *units.Orientation `json:"orientation,omitempty"`
	Unit        *units.Unit        `json:"unit,omitempty"`
	Format      string             `json:"format,omitempty"`
	DPI         int                `json:"dpi,omitempty"`
	Credential  string             `json:"credential,omitempty"`

	// Refresh skips the artifact cache lookup.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger     *log.Logger       `json:"-"`
	Feedback   export.Feedback   `json:"-"`
	Downloader export.Downloader `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Artifact is the encoded map, named map.<ext>.
	Artifact sink.Artifact

	// Request is the resolved export request.
	Request export.Request

	// SnapshotHash is the content hash of camera and style.
	SnapshotHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Width      int
	Height     int
	Bytes      int
	StyleTime  time.Duration
	ExportTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	ArtifactHit bool
	// RenderedAt is when a cached artifact was originally rendered.
	RenderedAt time.Time
}

// ValidateAndSetDefaults checks the style source and camera, and fills
// unset export fields from defaults. It is idempotent. Failures are
// [*export.Error] values of kind validation.
func (o *Options) ValidateAndSetDefaults(defaults export.Settings) error {
	if o.validated {
		return nil
	}
	switch {
	case len(o.Style) == 0 && o.StyleURL == "":
		return invalid(ErrNoStyle)
	case len(o.Style) > 0 && o.StyleURL != "":
		return invalid(errors.New("style and style_url are mutually exclusive"))
	}
	if err := o.Camera.Validate(); err != nil {
		return invalid(err)
	}

	if o.PageSize == (units.PageSize{}) {
		o.PageSize = defaults.PageSize
	}
	if o.Orientation == nil {
		orientation := defaults.Orientation
		o.Orientation = &orientation
	}
	if o.Unit == nil {
		unit := defaults.Unit
		o.Unit = &unit
	}
	if o.Format == "" {
		o.Format = defaults.Format
	}
	if o.DPI == 0 {
		o.DPI = defaults.DPI
	}
	if o.Credential == "" {
		o.Credential = defaults.Credential
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Settings returns the export settings of o. Call ValidateAndSetDefaults
// first.
func (o *Options) Settings() export.Settings {
	s := export.Settings{
		PageSize:   o.PageSize,
		Format:     o.Format,
		DPI:        o.DPI,
		Credential: o.Credential,
	}
	if o.Orientation != nil {
		s.Orientation = *o.Orientation
	}
	if o.Unit != nil {
		s.Unit = *o.Unit
	}
	return s
}

// Request resolves the export request.
func (o *Options) Request() (export.Request, error) {
	return o.Settings().Request()
}

// Target returns the render target size and pixel ratio.
func (o *Options) Target() (render.TargetOptions, error) {
	req, err := o.Request()
	if err != nil {
		return render.TargetOptions{}, err
	}
	return req.Target(), nil
}

func invalid(err error) error {
	return &export.Error{Kind: export.KindValidation, Err: fmt.Errorf("invalid options: %w", err)}
}
