package render

import "image"

// Canvas is the rendered pixel buffer of a target. Treat it as read-only.
type Canvas struct {
	img        image.Image
	pixelRatio float64
}

// NewCanvas wraps img rendered at pixelRatio.
func NewCanvas(img image.Image, pixelRatio float64) *Canvas {
	return &Canvas{img: img, pixelRatio: pixelRatio}
}

// Image returns the pixels.
func (c *Canvas) Image() image.Image { return c.img }

// PixelRatio returns device pixels per logical pixel.
func (c *Canvas) PixelRatio() float64 { return c.pixelRatio }

// Width returns the width in device pixels.
func (c *Canvas) Width() int { return c.img.Bounds().Dx() }

// Height returns the height in device pixels.
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// LogicalSize returns the size in logical (96 dpi) pixels.
func (c *Canvas) LogicalSize() (w, h float64) {
	return float64(c.Width()) / c.pixelRatio, float64(c.Height()) / c.pixelRatio
}
