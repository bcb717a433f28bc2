// Package cli implements the mapexport command-line interface.
//
// This package provides commands for exporting map snapshots to image and
// document files, serving exports over HTTP, packing raster tiles into
// MBTiles archives, and managing the tile cache. The CLI is built using
// cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - export: Render a style at a paper size and write map.<ext>
//   - serve: Run the HTTP export service
//   - sizes: List paper presets and their pixel dimensions
//   - pack: Download raster tiles into an MBTiles archive
//   - cache: Manage the tile and artifact cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. With
// --verbose, export, tile, cache and HTTP events are also logged through
// the observability hooks.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mapexport/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Packed 1365 tiles (4.210s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability
// =============================================================================

// logHooks writes observability events as debug log lines.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.ExportHooks = logHooks{}
	_ observability.TileHooks   = logHooks{}
	_ observability.CacheHooks  = logHooks{}
	_ observability.HTTPHooks   = logHooks{}
)

// RegisterLogHooks routes all observability events to logger.
func RegisterLogHooks(logger *log.Logger) {
	h := logHooks{logger: logger.WithPrefix("obs")}
	observability.SetExportHooks(h)
	observability.SetTileHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h logHooks) OnExportStart(_ context.Context, format string, width, height int) {
	h.logger.Debug("export start", "format", format, "width", width, "height", height)
}

func (h logHooks) OnRenderComplete(_ context.Context, d time.Duration, err error) {
	h.logger.Debug("render complete", "duration", d.Round(time.Millisecond), "error", err)
}

func (h logHooks) OnEncodeComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	h.logger.Debug("encode complete", "format", format, "bytes", size, "duration", d.Round(time.Millisecond), "error", err)
}

func (h logHooks) OnExportComplete(_ context.Context, format string, d time.Duration, err error) {
	h.logger.Debug("export complete", "format", format, "duration", d.Round(time.Millisecond), "error", err)
}

func (h logHooks) OnTileLoaded(_ context.Context, source string, z int, size int) {
	h.logger.Debug("tile", "source", source, "z", z, "bytes", size)
}

func (h logHooks) OnTileFailed(_ context.Context, source string, z int, err error) {
	h.logger.Debug("tile failed", "source", source, "z", z, "error", err)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string)  { h.logger.Debug("cache hit", "type", keyType) }
func (h logHooks) OnCacheMiss(_ context.Context, keyType string) { h.logger.Debug("cache miss", "type", keyType) }

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "error", err)
}
