// Package chromium renders map snapshots with MapLibre GL in headless Chromium.
//
// Each target opens its own tab, which plays the role of the detached map
// container. The tab's device metrics are overridden with the target's
// pixel ratio, so nothing outside the tab changes. The page builds a
// non-interactive map without attribution or fading, waits for the map's
// first idle event and reads the canvas back as PNG.
//
// The request transform of the snapshot is applied by intercepting the
// tab's network requests and rewriting their URL and headers.
//
//	engine := &chromium.Engine{Headless: true}
//	defer engine.Close()
//	target, err := engine.NewTarget(ctx, snap, render.SizeFor(297, 210, 300, units.MM))
package chromium
