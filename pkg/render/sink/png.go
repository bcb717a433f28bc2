package sink

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/matzehuels/mapexport/pkg/render"
)

// EncodePNG encodes the canvas as PNG.
func EncodePNG(c *render.Canvas) (Artifact, error) {
	data, err := pngBytes(c)
	if err != nil {
		return Artifact{}, err
	}
	return newArtifact("png", MediaPNG, data), nil
}

func pngBytes(c *render.Canvas) ([]byte, error) {
	if c == nil {
		return nil, ErrNoCanvas
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, c.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
