// Package pkg provides the core libraries for mapexport, an off-screen map
// renderer that produces print-ready files.
//
// # Overview
//
// mapexport takes a MapLibre style and a camera, renders the map into a
// hidden pixel buffer sized for a paper format, and encodes the result as
// PNG, JPEG, PDF or SVG. The on-screen map (if any) is never touched. The
// pkg directory is organized into three areas:
//
//  1. Domain logic: [units], [mapstyle], [render], [export]
//  2. Data plumbing: [tiles], [cache], [httputil]
//  3. Orchestration: [pipeline]
//
// # Architecture
//
// The data flow of one export:
//
//	style JSON or style URL
//	         ↓
//	    [mapstyle] (parse layers, sources, camera)
//	         ↓
//	    [render] (size the target, draw tiles off-screen)
//	         ↓        ↑
//	         ↓     [tiles] (TileJSON, raster tiles, MBTiles) ← [cache]
//	         ↓
//	    [render/sink] (encode PNG, JPEG, PDF or SVG)
//	         ↓
//	    [export] (deliver map.<ext>)
//
// # Quick Start
//
//	fetcher := tiles.NewRouter(tiles.NewHTTPFetcher())
//	engine := render.NewRasterEngine(fetcher, render.RasterOptions{})
//	runner := pipeline.NewRunner(engine, fetcher, cache.NewNullCache(), cache.NewDefaultKeyer(), nil)
//
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    StyleURL:   "https://demotiles.maplibre.org/style.json",
//	    PageSize:   units.PageSize{297, 210},
//	    Format:     "pdf",
//	    DPI:        300,
//	    Downloader: export.DirDownloader{Dir: "."},
//	})
//
// # Main Packages
//
// [units] - Paper sizes in millimetres, orientation, and the conversion from
// a physical page at a given DPI to a pixel size.
//
// [mapstyle] - The style document and the camera (center, zoom, bearing,
// pitch) the snapshot starts from.
//
// [render] - Engines that draw a snapshot into an off-screen canvas. The
// raster engine composites raster tiles in Go; [render/chromium] drives a
// headless browser running MapLibre GL JS. Both render at an explicit pixel
// ratio derived from the requested DPI.
//
// [render/sink] - Encoders for the four output formats.
//
// [export] - The exporter state machine: one export at a time, a timeout,
// user feedback, and teardown that always returns to idle.
//
// [tiles] - Fetchers for TileJSON and tiles over HTTP, plus MBTiles archives
// for offline rendering and [tiles.Pack] for building them.
//
// [cache] - Byte caches (file, Redis, MongoDB) keyed by content hashes.
//
// [pipeline] - The complete export (load style, render, encode, deliver)
// shared by the CLI and the HTTP service.
//
// [units]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/units
// [mapstyle]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/mapstyle
// [render]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/render
// [render/chromium]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/render/chromium
// [render/sink]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/render/sink
// [export]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/export
// [tiles]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/tiles
// [tiles.Pack]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/tiles#Pack
// [cache]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/httputil
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/mapexport/pkg/pipeline
package pkg
