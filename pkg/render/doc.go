// Package render draws a map snapshot into an off-screen pixel buffer.
//
// # Overview
//
// An [Engine] creates a [Target] for one [Snapshot] at an explicit canvas
// size and pixel ratio. The target starts loading immediately; its
// [Target.Idle] future resolves once every resource has settled:
//
//	opts := render.SizeFor(297, 210, 300, units.MM)
//	target, err := engine.NewTarget(ctx, snap, opts)
//	if err != nil {
//	    return err
//	}
//	defer target.Close()
//	canvas, err := target.Idle().Wait(ctx)
//
// The pixel ratio is passed per target. Nothing in this package changes
// process-wide state, so targets at different DPIs can render side by side.
//
// # Engines
//
//   - [RasterEngine]: built in; composites background and raster layers
//   - [chromium]: drives headless Chromium running MapLibre GL
//
// Every engine counts its open targets ([Engine.Live]) so callers can check
// that teardown happened.
//
// [chromium]: github.com/matzehuels/mapexport/pkg/render/chromium
package render
