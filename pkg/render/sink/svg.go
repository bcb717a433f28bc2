package sink

import (
	"bytes"
	"fmt"

	"github.com/matzehuels/mapexport/pkg/render"
)

// SVGOption configures SVG encoding.
type SVGOption func(*svgEncoder)

type svgEncoder struct {
	width, height int
}

// WithSVGSize sets the target size in pixels. Without it the canvas size
// is used.
func WithSVGSize(width, height int) SVGOption {
	return func(e *svgEncoder) { e.width, e.height = width, height }
}

// EncodeSVG wraps the canvas PNG in an SVG document. The image is scaled
// to the target size, which also defines the width, height and viewBox.
func EncodeSVG(c *render.Canvas, opts ...SVGOption) (Artifact, error) {
	data, err := pngBytes(c)
	if err != nil {
		return Artifact{}, err
	}
	e := svgEncoder{width: c.Width(), height: c.Height()}
	for _, opt := range opts {
		opt(&e)
	}
	href := newArtifact("png", MediaPNG, data).DataURI()

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		e.width, e.height, e.width, e.height)
	fmt.Fprintf(&buf, `  <image x="0" y="0" width="%d" height="%d" preserveAspectRatio="none" xlink:href="%s"/>`+"\n",
		e.width, e.height, href)
	buf.WriteString("</svg>\n")

	return newArtifact("svg", MediaSVG, buf.Bytes()), nil
}
