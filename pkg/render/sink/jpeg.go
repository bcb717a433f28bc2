package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/matzehuels/mapexport/pkg/render"
)

// DefaultJPEGQuality matches the 0.85 quality of browser canvas exports.
const DefaultJPEGQuality = 85

// JPEGOption configures JPEG encoding.
type JPEGOption func(*jpegEncoder)

type jpegEncoder struct {
	quality    int
	background color.Color
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) JPEGOption {
	return func(e *jpegEncoder) {
		if q >= 1 && q <= 100 {
			e.quality = q
		}
	}
}

// WithBackground sets the color transparent pixels are flattened onto.
func WithBackground(c color.Color) JPEGOption {
	return func(e *jpegEncoder) { e.background = c }
}

// EncodeJPEG encodes the canvas as JPEG. JPEG has no alpha channel, so the
// canvas is composited onto an opaque background (white by default).
func EncodeJPEG(c *render.Canvas, opts ...JPEGOption) (Artifact, error) {
	if c == nil {
		return Artifact{}, ErrNoCanvas
	}
	e := jpegEncoder{quality: DefaultJPEGQuality, background: color.White}
	for _, opt := range opts {
		opt(&e)
	}

	src := c.Image()
	flat := image.NewRGBA(src.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(e.background), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, src.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: e.quality}); err != nil {
		return Artifact{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return newArtifact("jpg", MediaJPEG, buf.Bytes()), nil
}
