package sink

import (
	"encoding/base64"
	"path"
)

// BaseName is the file name stem of every artifact.
const BaseName = "map"

// Media types of the supported formats.
const (
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
	MediaPDF  = "application/pdf"
	MediaSVG  = "image/svg+xml"
)

// Artifact is an encoded export ready for delivery.
type Artifact struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

func newArtifact(ext, mediaType string, data []byte) Artifact {
	return Artifact{Name: BaseName + "." + ext, MediaType: mediaType, Data: data}
}

// Ext returns the file extension without the dot.
func (a Artifact) Ext() string {
	ext := path.Ext(a.Name)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

// DataURI renders the artifact as a base64 data URI.
func (a Artifact) DataURI() string {
	return "data:" + a.MediaType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}
