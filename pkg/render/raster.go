package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // tile decoders
	_ "image/png"
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/observability"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

// worldTileSize is the logical size of one tile at integer zoom.
const worldTileSize = 512

// RasterOptions configures a [RasterEngine].
type RasterOptions struct {
	// Concurrency bounds parallel tile loads per target (default 8).
	Concurrency int
	// StrictTiles fails the render on the first tile error instead of
	// leaving a transparent gap.
	StrictTiles bool
	Logger      *log.Logger
}

// RasterEngine composites background and raster layers into an RGBA canvas.
type RasterEngine struct {
	fetcher tiles.Fetcher
	opts    RasterOptions
	logger  *log.Logger
	live    Tracker
}

// NewRasterEngine creates an engine that loads tiles through fetcher.
func NewRasterEngine(fetcher tiles.Fetcher, opts RasterOptions) *RasterEngine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &RasterEngine{fetcher: fetcher, opts: opts, logger: logger}
}

// Live implements [Engine].
func (e *RasterEngine) Live() int { return e.live.Live() }

// NewTarget implements [Engine]. Loading starts immediately and continues
// until the target settles or is closed.
func (e *RasterEngine) NewTarget(ctx context.Context, snap Snapshot, opts TargetOptions) (Target, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}
	if snap.Camera.Pitch != 0 {
		e.logger.Warn("pitch is not supported by the raster engine, rendering flat", "pitch", snap.Camera.Pitch)
	}

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &rasterTarget{
		engine: e,
		snap:   Snapshot{Camera: snap.Camera.Normalized(), Style: mapstyle.Sanitize(snap.Style), Transform: snap.Transform},
		opts:   opts,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.future = NewFuture(cancel)

	e.live.Open()
	go func() {
		defer close(t.done)
		canvas, err := t.render(loadCtx)
		t.future.Resolve(canvas, err)
	}()
	return t, nil
}

type rasterTarget struct {
	engine *RasterEngine
	snap   Snapshot
	opts   TargetOptions
	future *Future
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

func (t *rasterTarget) Idle() *Future { return t.future }

func (t *rasterTarget) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
		t.future.Resolve(nil, context.Canceled)
		t.engine.live.Closed()
	})
	return nil
}

// loadedTile is a decoded tile ready to be drawn.
type loadedTile struct {
	tile maptile.Tile
	img  image.Image
}

// layerTiles holds what one raster layer draws.
type layerTiles struct {
	layer   mapstyle.Layer
	tileZ   maptile.Zoom
	tileLen float64 // logical edge length of one tile
	tiles   []loadedTile
}

func (t *rasterTarget) render(ctx context.Context) (*Canvas, error) {
	e := t.engine
	cam := t.snap.Camera
	style := t.snap.Style

	view := newViewport(cam, t.opts)
	sources := make(map[string]mapstyle.Source)
	plans := make([]*layerTiles, len(style.Layers))

	loadCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(loadCtx)
	g.SetLimit(e.opts.Concurrency)
	var mu sync.Mutex

	for i, layer := range style.Layers {
		if layer.Type() != "raster" {
			if layer.Type() != "background" {
				e.logger.Debug("skipping unsupported layer", "id", layer.ID(), "type", layer.Type())
			}
			continue
		}
		if !layer.Visible(cam.Zoom) {
			continue
		}

		src, ok := sources[layer.Source()]
		if !ok {
			resolved, err := tiles.ResolveSource(ctx, style.Sources[layer.Source()], e.fetcher, t.snap.Transform)
			if err != nil {
				if e.opts.StrictTiles || ctx.Err() != nil {
					stop()
					_ = g.Wait()
					return nil, fmt.Errorf("resolve source %q: %w", layer.Source(), err)
				}
				e.logger.Warn("source unavailable", "source", layer.Source(), "error", err)
				resolved = nil
			}
			sources[layer.Source()] = resolved
			src = resolved
		}
		templates := src.Tiles()
		if len(templates) == 0 {
			continue
		}

		z := math.Round(cam.Zoom + math.Log2(worldTileSize/float64(src.TileSize())))
		if z < float64(src.MinZoom()) {
			continue
		}
		z = math.Max(0, math.Min(z, float64(src.MaxZoom())))
		plan := &layerTiles{
			layer:   layer,
			tileZ:   maptile.Zoom(z),
			tileLen: view.worldSize / math.Exp2(z),
		}
		plans[i] = plan

		bounds := src.Bounds()
		sourceID := layer.Source()
		for tile := range tiles.Cover(view.bound(), plan.tileZ) {
			if !tiles.Intersect(tile.Bound(), bounds) {
				continue
			}
			url := tiles.Expand(templates[int(tile.X+tile.Y)%len(templates)], tile, tiles.ExpandOptions{
				Scheme:     src.Scheme(),
				PixelRatio: t.opts.PixelRatio,
			})
			g.Go(func() error {
				img, err := t.loadTile(gctx, sourceID, tile, url)
				if err != nil {
					return err
				}
				if img == nil {
					return nil
				}
				mu.Lock()
				plan.tiles = append(plan.tiles, loadedTile{tile: tile, img: img})
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, t.opts.Width, t.opts.Height))
	for i, layer := range style.Layers {
		switch layer.Type() {
		case "background":
			if layer.Visible(cam.Zoom) {
				fillBackground(dst, layer)
			}
		case "raster":
			if plans[i] != nil {
				view.drawLayer(dst, plans[i])
			}
		}
	}
	return NewCanvas(dst, t.opts.PixelRatio), nil
}

// loadTile fetches and decodes one tile. A nil image without error means
// the tile is left empty.
func (t *rasterTarget) loadTile(ctx context.Context, sourceID string, tile maptile.Tile, url string) (image.Image, error) {
	e := t.engine
	hooks := observability.Tile()

	data, err := e.fetcher.Fetch(ctx, t.snap.Transform.Apply(url, tiles.KindTile))
	if err == nil && len(data) == 0 {
		return nil, nil
	}
	var img image.Image
	if err == nil {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decode tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
		}
	}
	switch {
	case err == nil:
		hooks.OnTileLoaded(ctx, sourceID, int(tile.Z), len(data))
		return img, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, tiles.ErrNotFound):
		return nil, nil
	}

	hooks.OnTileFailed(ctx, sourceID, int(tile.Z), err)
	if e.opts.StrictTiles {
		return nil, fmt.Errorf("load tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	e.logger.Warn("tile failed", "source", sourceID, "z", tile.Z, "x", tile.X, "y", tile.Y, "error", err)
	return nil, nil
}

func fillBackground(dst *image.RGBA, layer mapstyle.Layer) {
	c, ok := layer.PaintColor("background-color")
	if !ok {
		c = color.NRGBA{A: 0xff}
	}
	c.A = uint8(math.Round(float64(c.A) * clamp01(layer.PaintNumber("background-opacity", 1))))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
}

// viewport maps mercator world pixels at the camera zoom to device pixels.
type viewport struct {
	center    orb.Point // camera center in world pixels
	worldSize float64
	ratio     float64
	sin, cos  float64
	halfW     float64 // device pixels
	halfH     float64
}

func newViewport(cam mapstyle.Camera, opts TargetOptions) viewport {
	ws := worldTileSize * math.Exp2(cam.Zoom)
	rad := cam.Bearing * math.Pi / 180
	return viewport{
		center:    project(cam.Center, ws),
		worldSize: ws,
		ratio:     opts.PixelRatio,
		sin:       math.Sin(rad),
		cos:       math.Cos(rad),
		halfW:     float64(opts.Width) / 2,
		halfH:     float64(opts.Height) / 2,
	}
}

// unproject maps a device pixel back to lng/lat.
func (v viewport) unproject(px, py float64) orb.Point {
	dx := (px - v.halfW) / v.ratio
	dy := (py - v.halfH) / v.ratio
	wx := v.center[0] + dx*v.cos - dy*v.sin
	wy := v.center[1] + dx*v.sin + dy*v.cos
	lng := wx/v.worldSize*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*wy/v.worldSize))) * 180 / math.Pi
	return orb.Point{lng, lat}
}

// bound is the geographic bound of the rotated viewport.
func (v viewport) bound() orb.Bound {
	w, h := 2*v.halfW, 2*v.halfH
	b := orb.Bound{Min: v.unproject(0, 0), Max: v.unproject(0, 0)}
	for _, p := range []orb.Point{v.unproject(w, 0), v.unproject(0, h), v.unproject(w, h)} {
		b = b.Extend(p)
	}
	return b
}

// tileTransform returns the affine map from tile image pixels to device pixels.
func (v viewport) tileTransform(t maptile.Tile, tileLen float64, imgW, imgH int) f64.Aff3 {
	sx := tileLen / float64(imgW) * v.ratio
	sy := tileLen / float64(imgH) * v.ratio
	ox := (float64(t.X)*tileLen - v.center[0]) * v.ratio
	oy := (float64(t.Y)*tileLen - v.center[1]) * v.ratio
	return f64.Aff3{
		v.cos * sx, v.sin * sy, v.cos*ox + v.sin*oy + v.halfW,
		-v.sin * sx, v.cos * sy, -v.sin*ox + v.cos*oy + v.halfH,
	}
}

func (v viewport) drawLayer(dst *image.RGBA, plan *layerTiles) {
	opacity := clamp01(plan.layer.PaintNumber("raster-opacity", 1))
	if opacity == 0 || len(plan.tiles) == 0 {
		return
	}
	target := dst
	if opacity < 1 {
		target = image.NewRGBA(dst.Bounds())
	}
	for _, lt := range plan.tiles {
		b := lt.img.Bounds()
		m := v.tileTransform(lt.tile, plan.tileLen, b.Dx(), b.Dy())
		draw.BiLinear.Transform(target, m, lt.img, b, draw.Over, nil)
	}
	if target != dst {
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 0xff))})
		draw.DrawMask(dst, dst.Bounds(), target, image.Point{}, mask, image.Point{}, draw.Over)
	}
}

// project maps lng/lat to world pixels for a world of size ws.
func project(p orb.Point, ws float64) orb.Point {
	lat := math.Max(-mapstyle.MaxLatitude, math.Min(mapstyle.MaxLatitude, p.Lat()))
	x := (p.Lon() + 180) / 360 * ws
	s := math.Sin(lat * math.Pi / 180)
	y := (0.5 - math.Log((1+s)/(1-s))/(4*math.Pi)) * ws
	return orb.Point{x, y}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
