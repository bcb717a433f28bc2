// Package sink encodes a rendered [render.Canvas] into a downloadable artifact.
//
// # Overview
//
// A "sink" turns the canvas pixels into a final output format. Encoders
// never perform I/O; they return an [Artifact] that the caller delivers.
//
//   - PNG: lossless pixels ([EncodePNG])
//   - JPEG: quality 85, alpha flattened onto white ([EncodeJPEG])
//   - PDF: one page of the requested paper size ([EncodePDF])
//   - SVG: the PNG embedded as a data URI image ([EncodeSVG])
//
// Every artifact is named map.<ext>:
//
//	art, err := sink.EncodePDF(canvas,
//	    sink.WithPageSize(297, 210),
//	    sink.WithTitle(style.Name),
//	)
//
// [render.Canvas]: github.com/matzehuels/mapexport/pkg/render.Canvas
package sink
