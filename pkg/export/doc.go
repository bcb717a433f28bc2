// Package export turns a map snapshot into a downloadable file.
//
// # Overview
//
// An [Exporter] runs one export at a time through a fixed sequence:
//
//  1. Show the loading indicator ([Feedback.ShowLoading])
//  2. Build an off-screen target at the request's pixel ratio
//  3. Wait for the target to become idle, bounded by a timeout
//  4. Encode the canvas in the requested [Format]
//  5. Tear the target down and hide the indicator
//  6. Hand the artifact to the [Downloader]
//
// Steps 5 and the return to the idle state run on every exit path. A
// failure is reported exactly once through [Feedback.Alert] and returned as
// an [*Error].
//
// # Formats
//
// [Format] is a closed set. Strings coming from flags, config files or HTTP
// bodies are parsed once with [ParseFormat]; everything past that boundary
// uses the typed value:
//
//	settings := export.DefaultSettings()
//	settings.Format = "png"
//	req, err := settings.Request()
//	art, err := exporter.Export(ctx, snap, req)
package export
