package sink

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/matzehuels/mapexport/pkg/render"
)

// ErrNoCanvas is returned when an encoder is called without pixels.
var ErrNoCanvas = errors.New("no canvas to encode")

// Default PDF document properties.
const (
	DefaultCreator = "mapexport"
	DefaultAuthor  = "(c)Mapbox, (c)OpenStreetMap"
)

// PDFOption configures PDF encoding.
type PDFOption func(*pdfEncoder)

type pdfEncoder struct {
	widthMM, heightMM float64
	title, subject    string
	author, creator   string
}

// WithPageSize sets the page size in millimeters. Without it the page is
// the canvas at 96 dpi.
func WithPageSize(widthMM, heightMM float64) PDFOption {
	return func(e *pdfEncoder) { e.widthMM, e.heightMM = widthMM, heightMM }
}

// WithTitle sets the document title, usually the style name.
func WithTitle(s string) PDFOption { return func(e *pdfEncoder) { e.title = s } }

// WithSubject sets the document subject, usually the camera description.
func WithSubject(s string) PDFOption { return func(e *pdfEncoder) { e.subject = s } }

// WithAuthor overrides [DefaultAuthor].
func WithAuthor(s string) PDFOption { return func(e *pdfEncoder) { e.author = s } }

// WithCreator overrides [DefaultCreator].
func WithCreator(s string) PDFOption { return func(e *pdfEncoder) { e.creator = s } }

// EncodePDF writes a single compressed page with the canvas drawn across
// it. The page is landscape exactly when it is wider than tall.
func EncodePDF(c *render.Canvas, opts ...PDFOption) (Artifact, error) {
	if c == nil {
		return Artifact{}, ErrNoCanvas
	}
	e := pdfEncoder{author: DefaultAuthor, creator: DefaultCreator}
	for _, opt := range opts {
		opt(&e)
	}
	if e.widthMM <= 0 || e.heightMM <= 0 {
		w, h := c.LogicalSize()
		e.widthMM, e.heightMM = w*25.4/96, h*25.4/96
	}

	var buf bytes.Buffer
	options := pdf.DefaultOptions
	options.Compress = true
	writer := pdf.New(&buf, e.widthMM, e.heightMM, &options)
	writer.SetInfo(e.title, e.subject, "", e.author, e.creator)

	page := canvas.New(e.widthMM, e.heightMM)
	ctx := canvas.NewContext(page)
	dpmm := float64(c.Width()) / e.widthMM
	ctx.DrawImage(0, 0, c.Image(), canvas.DPMM(dpmm))
	page.RenderTo(writer)

	if err := writer.Close(); err != nil {
		return Artifact{}, fmt.Errorf("encode pdf: %w", err)
	}
	return newArtifact("pdf", MediaPDF, buf.Bytes()), nil
}
