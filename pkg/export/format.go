package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matzehuels/mapexport/pkg/render/sink"
)

// ErrUnsupportedFormat is returned by [ParseFormat] for unknown names.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format is an output file format.
type Format int

const (
	PNG Format = iota + 1
	JPEG
	PDF
	SVG
)

var formats = []Format{PNG, JPEG, PDF, SVG}

// Formats lists every supported format.
func Formats() []Format { return append([]Format(nil), formats...) }

// ParseFormat parses a format name. "jpg" and "jpeg" both mean [JPEG].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "pdf":
		return PDF, nil
	case "svg":
		return SVG, nil
	}
	return 0, fmt.Errorf("%w: %q (must be png, jpg, pdf or svg)", ErrUnsupportedFormat, s)
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool { return f >= PNG && f <= SVG }

// String returns the canonical name, which is also the file extension.
func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpg"
	case PDF:
		return "pdf"
	case SVG:
		return "svg"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return f.String() }

// FileName returns the artifact name, map.<ext>.
func (f Format) FileName() string { return sink.BaseName + "." + f.Ext() }

// MediaType returns the MIME type of the encoded file.
func (f Format) MediaType() string {
	switch f {
	case PNG:
		return sink.MediaPNG
	case JPEG:
		return sink.MediaJPEG
	case PDF:
		return sink.MediaPDF
	case SVG:
		return sink.MediaSVG
	}
	return "application/octet-stream"
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
