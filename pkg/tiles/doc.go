// Package tiles loads the resources a style references: TileJSON
// documents and raster tiles.
//
// Every outgoing URL first passes through a [RequestTransform], which can
// rewrite it and attach headers (the hook used to add access tokens).
// The transformed [Request] is then handed to a [Fetcher]:
//
//   - [HTTPFetcher] fetches over HTTP with retry and a byte cache
//   - [MBTiles] serves tiles from a local SQLite archive
//   - [Router] dispatches mbtiles:// URLs to archives and the rest to HTTP
//
// [Cover] and [Expand] provide the web mercator tile math used by the
// raster engine.
package tiles
